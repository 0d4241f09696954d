package formatter

import (
	"encoding/json"

	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/tracker"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatSignals(signals []signal.Signal) (string, error) {
	return marshalJSON(nonNil(signals))
}

func (f *JSONFormatter) FormatTasks(tasks []signal.ProposedTask) (string, error) {
	return marshalJSON(nonNil(tasks))
}

func (f *JSONFormatter) FormatItems(items []tracker.Item) (string, error) {
	return marshalJSON(nonNil(items))
}

func (f *JSONFormatter) FormatList(name string, values []string) (string, error) {
	return marshalJSON(ListView{Name: name, Values: nonNil(values)})
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
