package formatter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var sampleSignals = []signal.Signal{
	{
		ID:         "slack-C1-1700000000000100",
		ExternalID: "1700000000.000100",
		Provider:   signal.ProviderNativeMessage,
		Title:      "@Alice check this",
		URL:        "https://acme.slack.com/archives/C1/p1700000000000100",
		Status:     signal.StatusTodo,
		CreatedAt:  time.Date(2023, 11, 14, 22, 13, 20, 100000, time.UTC),
		Metadata: signal.Metadata{
			Author:      "Bob",
			SourceLabel: "#general",
			SourceType:  signal.SourceTypeChannel,
		},
	},
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{"TABLE", OutputFormatTable, false},
		{"json", OutputFormatJSON, false},
		{" yaml ", OutputFormatYAML, false},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	for _, format := range []OutputFormat{OutputFormatTable, OutputFormatJSON, OutputFormatYAML} {
		f, err := New(format)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}
	_, err := New("xml")
	assert.Error(t, err)
}

func TestTableFormatSignals(t *testing.T) {
	out, err := NewTableFormatter().FormatSignals(sampleSignals)
	require.NoError(t, err)
	assert.Contains(t, out, "slack-C1-1700000000000100")
	assert.Contains(t, out, "#general")
	assert.Contains(t, out, "@Alice check this")

	empty, err := NewTableFormatter().FormatSignals(nil)
	require.NoError(t, err)
	assert.Equal(t, "No signals found", empty)
}

func TestTableFormatTasksAndItems(t *testing.T) {
	out, err := NewTableFormatter().FormatTasks([]signal.ProposedTask{
		{Title: "Review doc", Project: "Ops", Subtasks: []string{"Read", "Comment"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Review doc")
	assert.Contains(t, out, "Read; Comment")

	due := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	out, err = NewTableFormatter().FormatItems([]tracker.Item{{ID: "11", Name: "Write report", Due: &due, Completed: true}})
	require.NoError(t, err)
	assert.Contains(t, out, "2024-05-03")
	assert.Contains(t, out, "yes")
}

func TestJSONFormatSignals(t *testing.T) {
	out, err := NewJSONFormatter().FormatSignals(sampleSignals)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "native-message", decoded[0]["source_provider"])
	assert.Equal(t, "#general", decoded[0]["metadata"].(map[string]any)["source_label"])

	empty, err := NewJSONFormatter().FormatSignals(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestYAMLFormatList(t *testing.T) {
	out, err := NewYAMLFormatter().FormatList("archived", []string{"a", "b"})
	require.NoError(t, err)

	var decoded ListView
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, ListView{Name: "archived", Values: []string{"a", "b"}}, decoded)

	out, err = NewYAMLFormatter().FormatSignals(sampleSignals)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "source_provider: native-message"))
}

func TestTruncateStringIsRuneSafe(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "📄 ab...", truncateString("📄 abcdefgh", 7))
}
