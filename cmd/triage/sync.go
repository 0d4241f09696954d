package main

import (
	"context"
	"fmt"
	"time"

	"github.com/harunnryd/triage/internal/config"
	"github.com/harunnryd/triage/internal/session"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch and list open signals",
	Long:  `Fetch messages addressed to you in the lookback window plus your assigned tracker items, and list those not archived or blocked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			w, err := syncWindow(cmd, a.cfg)
			if err != nil {
				return err
			}

			res, err := a.session.Sync(ctx, w)
			if err != nil {
				return err
			}

			rendered, err := a.out.FormatSignals(res.Signals)
			if err != nil {
				return fmt.Errorf("failed to render signals: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		})
	},
}

// syncWindow resolves --since, falling back to sync.lookback.
func syncWindow(cmd *cobra.Command, c *config.Config) (session.Window, error) {
	since, _ := cmd.Flags().GetString("since")
	lookback, err := config.DurationOrDefault(since, c.Sync.Lookback)
	if err != nil {
		return session.Window{}, fmt.Errorf("invalid lookback: %w", err)
	}
	return session.Lookback(time.Now(), lookback), nil
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("since", "", "lookback window (default from sync.lookback)")
}
