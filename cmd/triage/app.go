package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/harunnryd/triage/internal/adapter"
	"github.com/harunnryd/triage/internal/approval"
	"github.com/harunnryd/triage/internal/config"
	"github.com/harunnryd/triage/internal/excludelist"
	"github.com/harunnryd/triage/internal/fetcher"
	"github.com/harunnryd/triage/internal/formatter"
	"github.com/harunnryd/triage/internal/logger"
	"github.com/harunnryd/triage/internal/model"
	"github.com/harunnryd/triage/internal/parser"
	"github.com/harunnryd/triage/internal/refstore"
	"github.com/harunnryd/triage/internal/session"
	"github.com/harunnryd/triage/internal/suggest"
	"github.com/harunnryd/triage/internal/tracker"

	"github.com/spf13/cobra"
)

// app holds the components one command invocation works with.
type app struct {
	cfg     *config.Config
	slack   *adapter.SlackAdapter
	asana   *adapter.AsanaAdapter
	lists   *excludelist.Store
	session *session.Session
	out     formatter.Formatter

	engineOnce sync.Once
	engine     *suggest.Engine
	engineErr  error
	models     []string
}

func newApp(cfg *config.Config, format string) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	outFormat, err := formatter.ParseOutputFormat(format)
	if err != nil {
		return nil, err
	}
	out, err := formatter.New(outFormat)
	if err != nil {
		return nil, err
	}

	pageDelay, err := config.DurationOrDefault(cfg.Slack.PageDelay, config.DefaultSlackPageDelay)
	if err != nil {
		return nil, fmt.Errorf("parse slack page delay: %w", err)
	}
	minInterval, err := config.DurationOrDefault(cfg.Slack.Search.MinFetchInterval, config.DefaultSearchMinFetchInterval)
	if err != nil {
		return nil, fmt.Errorf("parse min fetch interval: %w", err)
	}
	lockTimeout, err := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse store lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(cfg.Store.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return nil, fmt.Errorf("parse store lock retry: %w", err)
	}

	lists, err := excludelist.Open(cfg.Store.Path, excludelist.Options{LockTimeout: lockTimeout, LockRetry: lockRetry})
	if err != nil {
		return nil, err
	}

	slackAdapter := adapter.NewSlackAdapter(cfg.Slack.Token, cfg.Slack.APIURL,
		adapter.WithFileLookup(cfg.Slack.Search.FileLookup))

	builder := refstore.NewBuilder(slackAdapter, refstore.Limits{
		MaxPages: cfg.Slack.MaxPages,
		MaxItems: cfg.Slack.MaxItems,
		PageSize: cfg.Slack.PageSize,
		Delay:    pageDelay,
	})

	f := fetcher.New(slackAdapter, fetcher.Options{
		Query:        cfg.Slack.Search.Query,
		PageSize:     cfg.Slack.Search.PageSize,
		MaxPages:     cfg.Slack.Search.MaxPages,
		PageDelay:    pageDelay,
		SystemAuthor: cfg.Slack.Search.SystemAuthor,
		ExcludeSelf:  cfg.Slack.Search.ExcludeSelf,
		MinInterval:  minInterval,
		Parser: parser.Options{
			DocumentDomains:  cfg.Slack.DocumentDomains,
			DocumentServices: cfg.Slack.DocumentServices,
		},
	})

	a := &app{
		cfg:   cfg,
		slack: slackAdapter,
		lists: lists,
		out:   out,
	}

	var t tracker.Tracker
	if cfg.Tracker.Token != "" {
		timeout, err := config.DurationOrDefault(cfg.Tracker.Timeout, config.DefaultTrackerTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse tracker timeout: %w", err)
		}
		a.asana = adapter.NewAsanaAdapter(cfg.Tracker.Token, cfg.Tracker.Workspace, cfg.Tracker.BaseURL, timeout)
		t = a.asana
	}

	a.session = session.New(builder, f, t, lists, session.Options{
		ExcludeLists: []string{cfg.Store.ArchivedList, cfg.Store.BlockedList},
	})
	return a, nil
}

// tracker returns the configured tracker or an error naming the missing token.
func (a *app) tracker() (tracker.Tracker, error) {
	if a.asana == nil {
		return nil, fmt.Errorf("no task tracker configured (set ASANA_TOKEN or tracker.token)")
	}
	return a.asana, nil
}

// suggestEngine builds the model cascade on first use.
func (a *app) suggestEngine() (*suggest.Engine, error) {
	a.engineOnce.Do(func() {
		router, err := model.NewModelRouter(a.cfg.AI)
		if err != nil {
			a.engineErr = err
			return
		}
		a.models = router.ListModels()
		a.engine, a.engineErr = suggest.NewEngine(router.Providers())
	})
	return a.engine, a.engineErr
}

// categories lists tracker project names, or none when no tracker is set.
func (a *app) categories(ctx context.Context) []string {
	if a.asana == nil {
		return nil
	}
	cats, err := a.asana.ListCategories(ctx)
	if err != nil {
		logger.From(ctx).Warn("Tracker categories unavailable", "error", err)
		return nil
	}
	return tracker.CategoryNames(cats)
}

func (a *app) approver() (*approval.Approver, error) {
	t, err := a.tracker()
	if err != nil {
		return nil, err
	}
	return approval.New(t, a.lists, a.cfg.Store.ArchivedList), nil
}

func (a *app) adapters() []adapter.Adapter {
	out := []adapter.Adapter{a.slack}
	if a.asana != nil {
		out = append(out, a.asana)
	}
	return out
}

// executeWithApp builds the app, installs the interrupt handler and runs fn
// with a traced context.
func executeWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	loaded := cfg
	if loaded == nil {
		var err error
		loaded, err = config.Load(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	a, err := newApp(loaded, outputFormat)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	sig := NewSignalHandler(parent)
	sig.Start()
	defer sig.Stop()

	ctx, _ := logger.WithNewTraceID(sig.Context())
	return fn(ctx, a)
}
