package refstore

import (
	"context"
	"fmt"
	"time"

	triageErrors "github.com/harunnryd/triage/internal/errors"
)

const (
	DefaultMaxPages = 10
	DefaultMaxItems = 1000
	DefaultPageSize = 200
)

// Limits bound one paginated listing. They are ceilings on memory and
// latency; reaching one ends the listing normally. Values above the
// defaults are clamped to them.
type Limits struct {
	MaxPages int
	MaxItems int
	PageSize int
	Delay    time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.MaxPages <= 0 || l.MaxPages > DefaultMaxPages {
		l.MaxPages = DefaultMaxPages
	}
	if l.MaxItems <= 0 || l.MaxItems > DefaultMaxItems {
		l.MaxItems = DefaultMaxItems
	}
	if l.PageSize <= 0 {
		l.PageSize = DefaultPageSize
	}
	return l
}

// PageFunc fetches one page starting at cursor. An empty next cursor ends the listing.
type PageFunc[T any] func(ctx context.Context, cursor string, limit int) (items []T, next string, err error)

// Collect follows continuation cursors until the provider stops issuing
// them or a limit is reached. On failure it returns what was accumulated
// together with a ResourceUnavailable error.
func Collect[T any](ctx context.Context, resource string, limits Limits, fetch PageFunc[T]) ([]T, error) {
	limits = limits.withDefaults()

	var out []T
	cursor := ""
	for page := 0; page < limits.MaxPages; page++ {
		if page > 0 && limits.Delay > 0 {
			if err := sleep(ctx, limits.Delay); err != nil {
				return out, triageErrors.WrapWithCategory(err, fmt.Sprintf("%s: page %d", resource, page+1), triageErrors.ErrResourceUnavailable)
			}
		}

		items, next, err := fetch(ctx, cursor, limits.PageSize)
		if err != nil {
			return out, triageErrors.WrapWithCategory(err, fmt.Sprintf("%s: page %d", resource, page+1), triageErrors.ErrResourceUnavailable)
		}

		out = append(out, items...)
		if len(out) >= limits.MaxItems {
			return out[:limits.MaxItems], nil
		}
		if next == "" {
			return out, nil
		}
		cursor = next
	}
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
