package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/harunnryd/triage/internal/parser"
	"github.com/harunnryd/triage/internal/refstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	pages   map[int]Page
	failAt  int
	total   int
	calls   []int
	queries []string
}

func (f *fakeSearcher) SearchPage(ctx context.Context, query string, page, count int) (Page, error) {
	f.calls = append(f.calls, page)
	f.queries = append(f.queries, query)
	if page == f.failAt {
		return Page{}, errors.New("internal_error")
	}
	p := f.pages[page]
	p.Number = page
	if f.total > 0 {
		p.Pages = f.total
	}
	return p, nil
}

func testStore() *refstore.Store {
	return refstore.NewStore(
		refstore.Identity{UserID: "USELF"},
		[]refstore.User{
			{ID: "U1", Handle: "alice", DisplayName: "Alice"},
			{ID: "UASANA", Handle: "asana", DisplayName: "Asana"},
			{ID: "USELF", Handle: "me", DisplayName: "Me"},
		},
		nil,
		[]refstore.Channel{{ID: "C1", Name: "general"}},
	)
}

func ts(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

func TestFetchWindowIsInclusive(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)

	searcher := &fakeSearcher{pages: map[int]Page{
		1: {Pages: 1, Events: []parser.RawEvent{
			{Timestamp: ts(start), ChannelID: "C1", UserID: "U1", Text: "at start"},
			{Timestamp: ts(end), ChannelID: "C1", UserID: "U1", Text: "at end"},
			{Timestamp: ts(start.Add(-time.Millisecond)), ChannelID: "C1", UserID: "U1", Text: "just before"},
			{Timestamp: ts(end.Add(time.Millisecond)), ChannelID: "C1", UserID: "U1", Text: "just after"},
		}},
	}}

	f := New(searcher, Options{Query: "to:me"})
	signals, err := f.Fetch(context.Background(), testStore(), start, end)
	require.NoError(t, err)

	titles := make([]string, 0, len(signals))
	for _, s := range signals {
		titles = append(titles, s.Title)
	}
	assert.ElementsMatch(t, []string{"at start", "at end"}, titles)
	assert.Equal(t, "to:me after:2024-04-29 before:2024-05-03", searcher.queries[0])
}

func TestFetchDropsNoise(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	at := ts(start.Add(time.Hour))

	searcher := &fakeSearcher{pages: map[int]Page{
		1: {Pages: 1, Events: []parser.RawEvent{
			{Timestamp: at, ChannelID: "C1", UserID: "U1", Text: "keep"},
			{Timestamp: at, ChannelID: "C1", UserID: "U1", Text: "duplicate"},
			{Timestamp: ts(start.Add(2 * time.Hour)), ChannelID: "C1", Username: "ASANA", Text: "bot write-back"},
			{Timestamp: ts(start.Add(3 * time.Hour)), ChannelID: "C1", UserID: "UASANA", Text: "resolved write-back"},
			{Timestamp: ts(start.Add(4 * time.Hour)), ChannelID: "C1", UserID: "USELF", Text: "mine"},
			{Timestamp: ts(start.Add(5 * time.Hour)), ChannelID: "CGONE", UserID: "U1", Text: "archived"},
			{Timestamp: "", ChannelID: "C1", UserID: "U1", Text: "no ts"},
		}},
	}}

	f := New(searcher, Options{SystemAuthor: "asana", ExcludeSelf: true})
	signals, err := f.Fetch(context.Background(), testStore(), start, start.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, signals, 1)
	assert.Equal(t, "keep", signals[0].Title)
}

func TestFetchKeepsUnknownChannelsWithoutChannelData(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := refstore.NewStore(refstore.Identity{UserID: "USELF"}, nil, nil, nil)

	searcher := &fakeSearcher{pages: map[int]Page{
		1: {Pages: 1, Events: []parser.RawEvent{
			{Timestamp: ts(start.Add(time.Hour)), ChannelID: "C9", ChannelName: "random", Text: "hi"},
		}},
	}}

	signals, err := New(searcher, Options{}).Fetch(context.Background(), store, start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "#random", signals[0].Metadata.SourceLabel)
}

func TestFetchStopsOnPageFailure(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	searcher := &fakeSearcher{
		total:  5,
		failAt: 3,
		pages: map[int]Page{
			1: {Events: []parser.RawEvent{{Timestamp: ts(start.Add(time.Minute)), ChannelID: "C1", Text: "one"}}},
			2: {Events: []parser.RawEvent{{Timestamp: ts(start.Add(2 * time.Minute)), ChannelID: "C1", Text: "two"}}},
			4: {Events: []parser.RawEvent{{Timestamp: ts(start.Add(4 * time.Minute)), ChannelID: "C1", Text: "four"}}},
		},
	}

	signals, err := New(searcher, Options{}).Fetch(context.Background(), testStore(), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, signals, 2)
	assert.Equal(t, []int{1, 2, 3}, searcher.calls)
}

func TestFetchRespectsPageCap(t *testing.T) {
	searcher := &fakeSearcher{total: 50}

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := New(searcher, Options{}).Fetch(context.Background(), testStore(), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, searcher.calls, DefaultMaxPages)

	searcher = &fakeSearcher{total: 50}
	_, err = New(searcher, Options{MaxPages: 40}).Fetch(context.Background(), testStore(), start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, searcher.calls, DefaultMaxPages, "configured page cap is clamped")
}

func TestFetchRejectsInvertedWindow(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := New(&fakeSearcher{}, Options{}).Fetch(context.Background(), testStore(), start, start.Add(-time.Second))
	assert.Error(t, err)
}

func TestFetchWaitsForMinimumInterval(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var waits []time.Duration

	f := New(&fakeSearcher{}, Options{MinInterval: 30 * time.Second})
	f.now = func() time.Time { return clock }
	f.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		clock = clock.Add(d)
		return nil
	}

	store := testStore()
	_, err := f.Fetch(context.Background(), store, clock.Add(-time.Hour), clock)
	require.NoError(t, err)
	assert.Empty(t, waits, "first fetch never waits")

	clock = clock.Add(10 * time.Second)
	_, err = f.Fetch(context.Background(), store, clock.Add(-time.Hour), clock)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{20 * time.Second}, waits)

	other := New(&fakeSearcher{}, Options{MinInterval: 30 * time.Second})
	other.sleep = f.sleep
	_, err = other.Fetch(context.Background(), store, clock.Add(-time.Hour), clock)
	require.NoError(t, err)
	assert.Len(t, waits, 1, "instances do not share interval state")
}
