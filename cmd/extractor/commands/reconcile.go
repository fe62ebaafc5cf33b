package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/church-news-api/internal/app"
)

var reconcileYear int

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair issues left in processing by runs that no longer exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			issues, err := a.IssueRepo.List(ctx, reconcileYear)
			if err != nil {
				return fmt.Errorf("list issues: %w", err)
			}
			changed := a.Reconciler.Reconcile(ctx, issues)
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d issues, corrected %d\n", len(issues), changed)
			return nil
		})
	},
}

func init() {
	reconcileCmd.Flags().IntVar(&reconcileYear, "year", 0, "only reconcile issues of this year")
	rootCmd.AddCommand(reconcileCmd)
}
