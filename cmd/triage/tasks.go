package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tracker tasks",
	Long:  `List and complete tasks assigned to you in the task tracker.`,
}

var tasksLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List assigned tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			t, err := a.tracker()
			if err != nil {
				return err
			}

			items, err := t.ListAssignedItems(ctx)
			if err != nil && len(items) == 0 {
				return err
			}

			rendered, err := a.out.FormatItems(items)
			if err != nil {
				return fmt.Errorf("failed to render tasks: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		})
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done [id...]",
	Short: "Mark tasks complete",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			t, err := a.tracker()
			if err != nil {
				return err
			}

			for _, id := range args {
				if err := t.CompleteItem(ctx, trimTrackerPrefix(id)); err != nil {
					return fmt.Errorf("failed to complete %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Completed %s\n", id)
			}
			return nil
		})
	},
}

func init() {
	tasksCmd.AddCommand(tasksLsCmd)
	tasksCmd.AddCommand(tasksDoneCmd)
	rootCmd.AddCommand(tasksCmd)
}
