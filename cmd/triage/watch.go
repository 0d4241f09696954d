package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/harunnryd/triage/internal/config"
	"github.com/harunnryd/triage/internal/logger"
	"github.com/harunnryd/triage/internal/session"
	"github.com/harunnryd/triage/internal/signal"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync on a schedule and print new signals",
	Long:  `Run sync on the sync.schedule cron expression (for example "@every 5m" or "*/10 8-18 * * 1-5") and print signals not seen before. The reference store is rebuilt every --rebuild-every runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			expr, _ := cmd.Flags().GetString("schedule")
			if expr == "" {
				expr = a.cfg.Sync.Schedule
			}
			schedule, err := cron.ParseStandard(expr)
			if err != nil {
				return fmt.Errorf("invalid schedule %q: %w", expr, err)
			}
			lookback, err := config.DurationOrDefault(a.cfg.Sync.Lookback, config.DefaultSyncLookback)
			if err != nil {
				return fmt.Errorf("invalid lookback: %w", err)
			}
			rebuildEvery, _ := cmd.Flags().GetInt("rebuild-every")

			w := &watcher{
				schedule:     schedule,
				lookback:     lookback,
				rebuildEvery: rebuildEvery,
				session:      a.session,
				out:          cmd.OutOrStdout(),
				render:       a.out.FormatSignals,
				seen:         make(map[string]struct{}),
				now:          time.Now,
			}
			return w.Run(ctx)
		})
	},
}

type syncer interface {
	Sync(ctx context.Context, w session.Window) (*session.Result, error)
	Rebuild(ctx context.Context) error
}

type watcher struct {
	schedule     cron.Schedule
	lookback     time.Duration
	rebuildEvery int
	session      syncer
	out          io.Writer
	render       func([]signal.Signal) (string, error)

	seen map[string]struct{}
	runs int
	now  func() time.Time
}

// Run syncs once immediately and then at every scheduled time until ctx is done.
func (w *watcher) Run(ctx context.Context) error {
	for {
		w.tick(ctx)

		next := w.schedule.Next(w.now())
		logger.From(ctx).Debug("Next sync scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (w *watcher) tick(parent context.Context) {
	ctx, _ := logger.WithNewTraceID(parent)
	log := logger.From(ctx)
	w.runs++

	if w.rebuildEvery > 0 && w.runs > 1 && (w.runs-1)%w.rebuildEvery == 0 {
		if err := w.session.Rebuild(ctx); err != nil {
			log.Warn("Reference store rebuild failed, keeping previous", "error", err)
		}
	}

	res, err := w.session.Sync(ctx, session.Lookback(w.now(), w.lookback))
	if err != nil {
		log.Error("Scheduled sync failed", "run", w.runs, "error", err)
		return
	}

	fresh := make([]signal.Signal, 0)
	for _, s := range res.Signals {
		if _, ok := w.seen[s.ID]; ok {
			continue
		}
		w.seen[s.ID] = struct{}{}
		fresh = append(fresh, s)
	}

	log.Info("Scheduled sync done", "run", w.runs, "signals", len(res.Signals), "new", len(fresh))
	if len(fresh) == 0 {
		return
	}

	rendered, err := w.render(fresh)
	if err != nil {
		log.Error("Failed to render signals", "error", err)
		return
	}
	fmt.Fprintln(w.out, rendered)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("schedule", "", "cron schedule (default from sync.schedule)")
	watchCmd.Flags().Int("rebuild-every", 12, "rebuild the reference store every N runs (0 disables)")
}
