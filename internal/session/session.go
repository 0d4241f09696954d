// Package session ties the reference store, the signal fetcher, the tracker
// and the exclude lists together for one running process.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/logger"
	"github.com/harunnryd/triage/internal/refstore"
	"github.com/harunnryd/triage/internal/signal"
	"github.com/harunnryd/triage/internal/tracker"
)

type StoreBuilder interface {
	Build(ctx context.Context) (*refstore.Store, error)
}

type SignalFetcher interface {
	Fetch(ctx context.Context, store *refstore.Store, start, end time.Time) ([]signal.Signal, error)
}

type Lists interface {
	Lookup(ctx context.Context, name string) (map[string]struct{}, error)
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Lookback returns the window ending at now.
func Lookback(now time.Time, d time.Duration) Window {
	return Window{Start: now.Add(-d), End: now}
}

type Options struct {
	// ExcludeLists names the lists whose members never appear in a sync.
	ExcludeLists []string
}

type Result struct {
	Signals  []signal.Signal
	Chat     int
	Tracker  int
	Excluded int
}

type Session struct {
	builder StoreBuilder
	fetcher SignalFetcher
	tracker tracker.Tracker
	lists   Lists
	opts    Options

	store   atomic.Pointer[refstore.Store]
	buildMu sync.Mutex
}

// New creates a session. tracker may be nil when no tracker is configured.
func New(builder StoreBuilder, f SignalFetcher, t tracker.Tracker, lists Lists, opts Options) *Session {
	return &Session{
		builder: builder,
		fetcher: f,
		tracker: t,
		lists:   lists,
		opts:    opts,
	}
}

// Store returns the reference store, building it on first use.
func (s *Session) Store(ctx context.Context) (*refstore.Store, error) {
	if st := s.store.Load(); st != nil {
		return st, nil
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	if st := s.store.Load(); st != nil {
		return st, nil
	}
	return s.build(ctx)
}

// Rebuild builds a fresh store and swaps it in. The previous store stays in
// use when the build fails.
func (s *Session) Rebuild(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	_, err := s.build(ctx)
	return err
}

func (s *Session) build(ctx context.Context) (*refstore.Store, error) {
	st, err := s.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	s.store.Store(st)
	return st, nil
}

// Sync fetches chat signals in the window plus assigned tracker items, drops
// excluded ids and returns the rest newest first.
func (s *Session) Sync(ctx context.Context, w Window) (*Result, error) {
	if w.End.Before(w.Start) {
		return nil, triageErrors.InvalidInput("sync window end is before start")
	}
	log := logger.From(ctx)

	st, err := s.Store(ctx)
	if err != nil {
		return nil, err
	}

	chat, err := s.fetcher.Fetch(ctx, st, w.Start, w.End)
	if err != nil {
		return nil, err
	}

	var items []signal.Signal
	if s.tracker != nil {
		assigned, err := s.tracker.ListAssignedItems(ctx)
		if err != nil {
			log.Warn("Tracker items unavailable", "resource", "tracker", "error", err)
		}
		items = tracker.Signals(assigned)
	}

	sets := make([]map[string]struct{}, 0, len(s.opts.ExcludeLists))
	for _, name := range s.opts.ExcludeLists {
		set, err := s.lists.Lookup(ctx, name)
		if err != nil {
			return nil, triageErrors.Wrap(err, "read exclude list "+name)
		}
		sets = append(sets, set)
	}

	all := append(chat, items...)
	kept := signal.ExcludeIDs(all, sets...)
	signal.SortNewestFirst(kept)

	res := &Result{
		Signals:  kept,
		Chat:     len(chat),
		Tracker:  len(items),
		Excluded: len(all) - len(kept),
	}
	log.Info("Sync complete", "chat", res.Chat, "tracker", res.Tracker, "excluded", res.Excluded, "signals", len(kept))
	return res, nil
}
