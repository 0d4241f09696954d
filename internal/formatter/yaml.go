package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/tracker"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatSignals(signals []signal.Signal) (string, error) {
	return marshalYAML(nonNil(signals))
}

func (f *YAMLFormatter) FormatTasks(tasks []signal.ProposedTask) (string, error) {
	return marshalYAML(nonNil(tasks))
}

func (f *YAMLFormatter) FormatItems(items []tracker.Item) (string, error) {
	return marshalYAML(nonNil(items))
}

func (f *YAMLFormatter) FormatList(name string, values []string) (string, error) {
	return marshalYAML(ListView{Name: name, Values: nonNil(values)})
}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
