package main

import (
	"context"
	"fmt"
	"strings"

	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/signal"

	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [signal-id]",
	Short: "Propose tasks for a signal or free text",
	Long:  `Run the AI model cascade over a synced signal (by id) or over --text, and print the proposed tasks.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		if len(args) == 0 && strings.TrimSpace(text) == "" {
			return triageErrors.InvalidInput("pass a signal id or --text")
		}

		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			engine, err := a.suggestEngine()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				sig, err := findSignal(ctx, cmd, a, args[0])
				if err != nil {
					return err
				}
				text = sig.Title
			}

			res, err := engine.Suggest(ctx, text, a.categories(ctx))
			if err != nil {
				return err
			}
			if res.Exhausted {
				fmt.Fprintln(cmd.ErrOrStderr(), "All AI models are unavailable right now; try again later.")
				return nil
			}

			rendered, err := a.out.FormatTasks(res.Tasks)
			if err != nil {
				return fmt.Errorf("failed to render tasks: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		})
	},
}

// findSignal syncs the lookback window and returns the signal with id.
func findSignal(ctx context.Context, cmd *cobra.Command, a *app, id string) (signal.Signal, error) {
	w, err := syncWindow(cmd, a.cfg)
	if err != nil {
		return signal.Signal{}, err
	}
	res, err := a.session.Sync(ctx, w)
	if err != nil {
		return signal.Signal{}, err
	}
	sig, ok := signal.Find(res.Signals, id)
	if !ok {
		return signal.Signal{}, triageErrors.NotFound(fmt.Sprintf("signal %s not found in the sync window", id))
	}
	return sig, nil
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().String("text", "", "free text to suggest tasks for")
	suggestCmd.Flags().String("since", "", "lookback window used to find the signal (default from sync.lookback)")
}
