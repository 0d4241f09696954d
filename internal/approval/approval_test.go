package approval

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/harunnryd/triage/internal/excludelist"
	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	mu       sync.Mutex
	items    []string
	subs     map[string][]string
	failSubs map[string]int
	failItem error
}

func (f *fakeTracker) ListAssignedItems(ctx context.Context) ([]tracker.Item, error) { return nil, nil }
func (f *fakeTracker) ListCategories(ctx context.Context) ([]tracker.Category, error) {
	return nil, nil
}
func (f *fakeTracker) CompleteItem(ctx context.Context, id string) error { return nil }

func (f *fakeTracker) CreateItem(ctx context.Context, title, category, notes string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failItem != nil {
		return "", f.failItem
	}
	f.items = append(f.items, title)
	return "T1", nil
}

func (f *fakeTracker) CreateSubItem(ctx context.Context, parentID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubs[title] > 0 {
		f.failSubs[title]--
		return errors.New("asana request failed (status 503)")
	}
	if f.subs == nil {
		f.subs = map[string][]string{}
	}
	f.subs[parentID] = append(f.subs[parentID], title)
	return nil
}

func (f *fakeTracker) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.items)
	for _, s := range f.subs {
		n += len(s)
	}
	return n
}

type countingStore struct {
	inner *excludelist.Store
	calls int
}

func (c *countingStore) Add(ctx context.Context, name, value string) (bool, error) {
	c.calls++
	return c.inner.Add(ctx, name, value)
}

func newLists(t *testing.T) *countingStore {
	t.Helper()
	s, err := excludelist.Open(filepath.Join(t.TempDir(), "lists.json"), excludelist.Options{})
	require.NoError(t, err)
	return &countingStore{inner: s}
}

var testSignal = signal.Signal{
	ID:    "slack-C1-1700000000000100",
	Title: "@Alice check this",
	URL:   "https://acme.slack.com/archives/C1/p1700000000000100",
	Metadata: signal.Metadata{
		Author:      "Bob",
		SourceLabel: "#general",
	},
}

func TestApproveRoundTripResumesAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTracker{failSubs: map[string]int{"Draft": 1}}
	lists := newLists(t)
	a := New(tr, lists, "archived")

	task := signal.ProposedTask{
		Title:    "Review the doc",
		Project:  "Ops",
		Subtasks: []string{"Read", "Draft", "Send"},
	}

	out, err := a.Approve(ctx, testSignal, task)
	require.Error(t, err)
	assert.Equal(t, "T1", out.ItemID)
	assert.Equal(t, 1, out.Subtasks)
	assert.False(t, out.Archived)
	assert.Equal(t, 0, lists.calls)

	out, err = a.Approve(ctx, testSignal, task)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Subtasks)
	assert.True(t, out.Archived)

	_, err = a.Approve(ctx, testSignal, task)
	require.NoError(t, err)

	assert.Equal(t, len(task.Subtasks)+1, tr.writes())
	assert.Equal(t, []string{"Review the doc"}, tr.items)
	assert.Equal(t, []string{"Read", "Draft", "Send"}, tr.subs["T1"])
	assert.Equal(t, 1, lists.calls)

	archived, err := lists.inner.Get(ctx, "archived")
	require.NoError(t, err)
	assert.Equal(t, []string{testSignal.ID}, archived)
}

func TestApproveItemFailureWritesNothing(t *testing.T) {
	tr := &fakeTracker{failItem: errors.New("boom")}
	lists := newLists(t)
	a := New(tr, lists, "archived")

	_, err := a.Approve(context.Background(), testSignal, signal.ProposedTask{Title: "x", Project: "Ops", Subtasks: []string{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 0, tr.writes())
	assert.Equal(t, 0, lists.calls)
}

func TestApproveRejectsEmptyTitle(t *testing.T) {
	a := New(&fakeTracker{}, newLists(t), "archived")
	_, err := a.Approve(context.Background(), testSignal, signal.ProposedTask{Title: "  "})
	assert.Error(t, err)
}

func TestNotes(t *testing.T) {
	got := Notes(testSignal, signal.ProposedTask{
		Justification: "Alice asked for a review.",
		Citations:     []string{"check this"},
	})
	assert.Equal(t, "Alice asked for a review.\n\n> check this\n\nFrom #general (Bob)\nhttps://acme.slack.com/archives/C1/p1700000000000100", got)
}
