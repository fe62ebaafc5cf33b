package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/church-news-api/internal/app"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List extraction providers in fallback order and whether each has an active key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tPROVIDER\tCREDENTIAL")
			usable := 0
			for i, name := range a.Oracles.Order() {
				state := "missing"
				_, ok, err := a.Credentials.ActiveKey(ctx, name)
				switch {
				case err != nil:
					state = "error: " + err.Error()
				case ok:
					state = "active"
					usable++
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, name, state)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if usable == 0 {
				return fmt.Errorf("no provider has an active credential")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
