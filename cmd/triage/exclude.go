package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var excludeCmd = &cobra.Command{
	Use:   "exclude",
	Short: "Manage exclude lists",
	Long:  `Show and edit the named lists (archived, blocked) whose signals are hidden from sync.`,
}

var excludeLsCmd = &cobra.Command{
	Use:   "ls [list]",
	Short: "Show exclude lists",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			names := []string{a.cfg.Store.ArchivedList, a.cfg.Store.BlockedList}
			if len(args) == 1 {
				names = args
			}

			for _, name := range names {
				values, err := a.lists.Get(ctx, name)
				if err != nil {
					return err
				}
				rendered, err := a.out.FormatList(name, values)
				if err != nil {
					return fmt.Errorf("failed to render list: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), rendered)
			}
			return nil
		})
	},
}

var excludeAddCmd = &cobra.Command{
	Use:   "add [list] [id...]",
	Short: "Add signal ids to a list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			for _, id := range args[1:] {
				added, err := a.lists.Add(ctx, args[0], id)
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s to %s\n", id, args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already in %s\n", id, args[0])
				}
			}
			return nil
		})
	},
}

var excludeRmCmd = &cobra.Command{
	Use:   "rm [list] [id...]",
	Short: "Remove signal ids from a list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			for _, id := range args[1:] {
				removed, err := a.lists.Remove(ctx, args[0], id)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s from %s\n", id, args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is not in %s\n", id, args[0])
				}
			}
			return nil
		})
	},
}

func init() {
	excludeCmd.AddCommand(excludeLsCmd)
	excludeCmd.AddCommand(excludeAddCmd)
	excludeCmd.AddCommand(excludeRmCmd)
	rootCmd.AddCommand(excludeCmd)
}
