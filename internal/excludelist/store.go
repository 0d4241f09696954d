// Package excludelist persists named sets of signal ids, such as the archived
// and blocked lists, in a single JSON file shared between processes.
package excludelist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/triage/internal/config"
	triageErrors "github.com/harunnryd/triage/internal/errors"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

type lists struct {
	Lists map[string][]string `json:"lists"`
}

type Options struct {
	LockTimeout time.Duration
	LockRetry   time.Duration
}

func DefaultOptions() Options {
	timeout, _ := config.DurationOrDefault(config.DefaultStoreLockTimeout, config.DefaultStoreLockTimeout)
	retry, _ := config.DurationOrDefault(config.DefaultStoreLockRetry, config.DefaultStoreLockRetry)
	return Options{LockTimeout: timeout, LockRetry: retry}
}

// Store reads the file on every call and rewrites it atomically under an
// exclusive file lock, so a long-running watch and a review session can share
// it safely.
type Store struct {
	path string
	lock *flock.Flock
	opts Options
	mu   sync.Mutex
}

func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, triageErrors.Configuration("exclude list path is required")
	}
	if opts.LockTimeout <= 0 || opts.LockRetry <= 0 {
		opts = DefaultOptions()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create exclude list dir: %w", err)
	}

	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		opts: opts,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(lists{Lists: map[string][]string{}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Get returns the members of a list in sorted order. A missing list is empty.
func (s *Store) Get(ctx context.Context, name string) ([]string, error) {
	var out []string
	err := s.view(ctx, func(state lists) {
		out = append([]string{}, state.Lists[name]...)
	})
	return out, err
}

// Lookup returns a list as a set.
func (s *Store) Lookup(ctx context.Context, name string) (map[string]struct{}, error) {
	values, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set, nil
}

// Names returns the names of all non-empty lists.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := s.view(ctx, func(state lists) {
		for name, values := range state.Lists {
			if len(values) > 0 {
				names = append(names, name)
			}
		}
	})
	sort.Strings(names)
	return names, err
}

// Set replaces a list. Duplicates and blank values are dropped.
func (s *Store) Set(ctx context.Context, name string, values []string) error {
	return s.update(ctx, func(state *lists) bool {
		state.Lists[name] = normalize(values)
		return true
	})
}

// Add inserts value and reports whether the list changed.
func (s *Store) Add(ctx context.Context, name, value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, triageErrors.InvalidInput("exclude list value is empty")
	}

	added := false
	err := s.update(ctx, func(state *lists) bool {
		for _, v := range state.Lists[name] {
			if v == value {
				return false
			}
		}
		state.Lists[name] = normalize(append(state.Lists[name], value))
		added = true
		return true
	})
	return added, err
}

// Remove deletes value and reports whether it was present.
func (s *Store) Remove(ctx context.Context, name, value string) (bool, error) {
	removed := false
	err := s.update(ctx, func(state *lists) bool {
		current := state.Lists[name]
		kept := current[:0:0]
		for _, v := range current {
			if v == value {
				removed = true
				continue
			}
			kept = append(kept, v)
		}
		if !removed {
			return false
		}
		if len(kept) == 0 {
			delete(state.Lists, name)
		} else {
			state.Lists[name] = kept
		}
		return true
	})
	return removed, err
}

func (s *Store) view(ctx context.Context, fn func(lists)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx, s.lock.TryRLock); err != nil {
		return err
	}
	defer s.lock.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	fn(state)
	return nil
}

func (s *Store) update(ctx context.Context, fn func(*lists) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx, s.lock.TryLock); err != nil {
		return err
	}
	defer s.lock.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	if !fn(&state) {
		return nil
	}
	return s.save(state)
}

func (s *Store) acquire(ctx context.Context, try func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	for {
		locked, err := try()
		if err != nil {
			return fmt.Errorf("failed to attempt lock: %w", err)
		}
		if locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return triageErrors.Transient(fmt.Sprintf("exclude list %s is locked by another process (timeout after %v)", s.path, s.opts.LockTimeout))
		case <-time.After(s.opts.LockRetry):
		}
	}
}

func (s *Store) load() (lists, error) {
	state := lists{Lists: map[string][]string{}}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return state, nil
	}
	if err != nil {
		return state, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return state, nil
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, triageErrors.WrapWithCategory(err, fmt.Sprintf("read exclude list %s", s.path), triageErrors.ErrInternal)
	}
	if state.Lists == nil {
		state.Lists = map[string][]string{}
	}
	return state, nil
}

func (s *Store) save(state lists) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

func normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
