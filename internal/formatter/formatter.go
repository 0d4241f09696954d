// Package formatter renders signals, proposals, tracker items and exclude
// lists for the CLI.
package formatter

import (
	"fmt"
	"strings"

	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/tracker"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

type Formatter interface {
	FormatSignals([]signal.Signal) (string, error)
	FormatTasks([]signal.ProposedTask) (string, error)
	FormatItems([]tracker.Item) (string, error)
	FormatList(name string, values []string) (string, error)
}

// ListView is the serialized form of one exclude list.
type ListView struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

func New(format OutputFormat) (Formatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}
