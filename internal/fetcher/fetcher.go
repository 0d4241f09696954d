// Package fetcher runs the paginated message search for a time window and
// turns the matches into signals.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/logger"
	"github.com/harunnryd/triage/internal/parser"
	"github.com/harunnryd/triage/internal/refstore"
	"github.com/harunnryd/triage/internal/signal"
)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 10

	// windowPadding widens the day-granular search bounds so that workspace
	// time zones never clip the window; the exact bounds are applied afterwards.
	windowPadding = 48 * time.Hour
	dayLayout     = "2006-01-02"
)

// Page is one page of search matches.
type Page struct {
	Events []parser.RawEvent
	Number int
	Pages  int
}

// Searcher runs one page of a full-text message search. Pages are 1-based.
type Searcher interface {
	SearchPage(ctx context.Context, query string, page, count int) (Page, error)
}

type Options struct {
	Query        string
	PageSize     int
	MaxPages     int
	PageDelay    time.Duration
	SystemAuthor string
	ExcludeSelf  bool
	MinInterval  time.Duration
	Parser       parser.Options
}

// Fetcher is safe for concurrent use; fetches on one instance are serialized
// and spaced at least MinInterval apart.
type Fetcher struct {
	searcher Searcher
	opts     Options

	mu        sync.Mutex
	lastFetch time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(searcher Searcher, opts Options) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 || opts.MaxPages > DefaultMaxPages {
		opts.MaxPages = DefaultMaxPages
	}
	return &Fetcher{
		searcher: searcher,
		opts:     opts,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Fetch returns the signals whose event time lies in [start, end]. Order is
// unspecified. A failing search page ends pagination and the signals from
// earlier pages are returned without error.
func (f *Fetcher) Fetch(ctx context.Context, store *refstore.Store, start, end time.Time) ([]signal.Signal, error) {
	if end.Before(start) {
		return nil, triageErrors.InvalidInput(fmt.Sprintf("window end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.waitInterval(ctx); err != nil {
		return nil, err
	}
	defer func() { f.lastFetch = f.now() }()

	log := logger.From(ctx)
	query := f.query(start, end)
	p := parser.New(store, f.opts.Parser)

	seen := make(map[string]struct{})
	var out []signal.Signal
	for page := 1; page <= f.opts.MaxPages; page++ {
		if page > 1 && f.opts.PageDelay > 0 {
			if err := f.sleep(ctx, f.opts.PageDelay); err != nil {
				log.Warn("Search interrupted", "page", page, "error", err)
				break
			}
		}

		res, err := f.searcher.SearchPage(ctx, query, page, f.opts.PageSize)
		if err != nil {
			log.Warn("Search page failed, keeping earlier pages",
				"resource", "search",
				"page", page,
				"kept", len(out),
				"error", triageErrors.WrapWithCategory(err, "search page", triageErrors.ErrResourceUnavailable),
			)
			break
		}

		for _, ev := range res.Events {
			s, ok := f.accept(ctx, p, store, ev, start, end)
			if !ok {
				continue
			}
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s)
		}

		if res.Pages <= page {
			break
		}
	}

	log.Debug("Search complete", "query", query, "signals", len(out))
	return out, nil
}

func (f *Fetcher) accept(ctx context.Context, p *parser.Parser, store *refstore.Store, ev parser.RawEvent, start, end time.Time) (signal.Signal, bool) {
	log := logger.From(ctx)

	created, err := parser.ParseTimestamp(ev.Timestamp)
	if err != nil {
		log.Debug("Skipping event without timestamp", "channel", ev.ChannelID, "error", err)
		return signal.Signal{}, false
	}
	if created.Before(start) || created.After(end) {
		return signal.Signal{}, false
	}
	if f.isSystemAuthor(store, ev) {
		return signal.Signal{}, false
	}
	if f.opts.ExcludeSelf && ev.UserID != "" && ev.UserID == store.SelfID() {
		return signal.Signal{}, false
	}
	if ev.ChannelID != "" && store.HasChannels() {
		if _, ok := store.Channel(ev.ChannelID); !ok {
			log.Debug("Skipping event from inaccessible channel", "channel", ev.ChannelID)
			return signal.Signal{}, false
		}
	}

	s, err := p.Parse(ev)
	if err != nil {
		if errors.Is(err, triageErrors.ErrParseSkip) {
			log.Debug("Skipping unparseable event", "channel", ev.ChannelID, "error", err)
		} else {
			log.Warn("Skipping event", "channel", ev.ChannelID, "error", err)
		}
		return signal.Signal{}, false
	}
	return s, true
}

// isSystemAuthor matches the configured write-back account by name.
func (f *Fetcher) isSystemAuthor(store *refstore.Store, ev parser.RawEvent) bool {
	name := strings.TrimSpace(f.opts.SystemAuthor)
	if name == "" {
		return false
	}
	if strings.EqualFold(ev.Username, name) {
		return true
	}
	if u, ok := store.User(ev.UserID); ok {
		return strings.EqualFold(u.Handle, name) || strings.EqualFold(u.Name(), name)
	}
	return false
}

func (f *Fetcher) query(start, end time.Time) string {
	q := strings.TrimSpace(f.opts.Query)
	bounds := fmt.Sprintf("after:%s before:%s",
		start.Add(-windowPadding).Format(dayLayout),
		end.Add(windowPadding).Format(dayLayout),
	)
	if q == "" {
		return bounds
	}
	return q + " " + bounds
}

func (f *Fetcher) waitInterval(ctx context.Context) error {
	if f.opts.MinInterval <= 0 || f.lastFetch.IsZero() {
		return nil
	}
	wait := f.opts.MinInterval - f.now().Sub(f.lastFetch)
	if wait <= 0 {
		return nil
	}
	logger.From(ctx).Debug("Waiting for minimum fetch interval", "wait", wait)
	return f.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
