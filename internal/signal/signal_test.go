package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderTextRoundTrip(t *testing.T) {
	for p, name := range providerNames {
		text, err := p.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))

		var back Provider
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
	}

	var p Provider
	assert.Error(t, p.UnmarshalText([]byte("email")))

	_, err := Provider(0).MarshalText()
	assert.Error(t, err, "zero value is not a valid provider")
}

func TestSignalJSONShape(t *testing.T) {
	s := Signal{
		ID:         "slack-C1-1700000000000100",
		ExternalID: "1700000000.000100",
		Provider:   ProviderNativeMessage,
		Title:      "hello",
		Status:     StatusTodo,
		CreatedAt:  time.Unix(1700000000, 100000).UTC(),
		Metadata:   Metadata{Author: "Alice", SourceLabel: "#general", SourceType: SourceTypeChannel},
	}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "native-message", generic["source_provider"])
	assert.Equal(t, "2023-11-14T22:13:20.0001Z", generic["created_at"])
	assert.Equal(t, "", generic["url"], "url is always present, empty when unresolved")
}

func TestSourceTypeForLabel(t *testing.T) {
	assert.Equal(t, SourceTypeDirectMessage, SourceTypeForLabel("DM: Alice"))
	assert.Equal(t, SourceTypeDirectMessage, SourceTypeForLabel("DM: Alice, Bob"))
	assert.Equal(t, SourceTypeChannel, SourceTypeForLabel("#general"))
	assert.Equal(t, SourceTypeChannel, SourceTypeForLabel("Unknown Channel"))
}

func TestSortAndExclude(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	signals := []Signal{
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Hour)},
		{ID: "c", CreatedAt: base},
	}

	SortNewestFirst(signals)
	assert.Equal(t, []string{"b", "a", "c"}, ids(signals))

	archived := map[string]struct{}{"a": {}}
	blocked := map[string]struct{}{"b": {}}
	kept := ExcludeIDs(signals, archived, blocked)
	assert.Equal(t, []string{"c"}, ids(kept))

	found, ok := Find(signals, "c")
	assert.True(t, ok)
	assert.Equal(t, "c", found.ID)
	_, ok = Find(signals, "zzz")
	assert.False(t, ok)
}

func ids(signals []Signal) []string {
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.ID)
	}
	return out
}
