package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to chat, tracker and AI backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithApp(cmd, func(ctx context.Context, a *app) error {
			w := cmd.OutOrStdout()
			failed := 0

			for _, ad := range a.adapters() {
				if err := ad.Health(ctx); err != nil {
					failed++
					fmt.Fprintf(w, "✗ %s: %v\n", ad.Name(), err)
					continue
				}
				fmt.Fprintf(w, "✓ %s\n", ad.Name())
			}

			if _, err := a.suggestEngine(); err != nil {
				failed++
				fmt.Fprintf(w, "✗ ai: %v\n", err)
			} else {
				fmt.Fprintf(w, "✓ ai: %s\n", strings.Join(a.models, " → "))
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
