package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/church-news-api/internal/app"
	"github.com/noah-isme/church-news-api/internal/models"
)

var (
	runWait     time.Duration
	runInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <issueID>",
	Short: "Extract one issue in this process",
	Long: `run claims the issue, executes the full scrape, download and extraction pipeline
in this process and prints progress until the job finishes. With --wait the run is
cancelled once the duration elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issueID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || issueID <= 0 {
			return fmt.Errorf("invalid issue id %q", args[0])
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return runExtraction(ctx, cmd, a, issueID)
		})
	},
}

func init() {
	runCmd.Flags().DurationVar(&runWait, "wait", 0, "cancel the run if it has not finished after this long (0 waits indefinitely)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 2*time.Second, "progress reporting interval")
	rootCmd.AddCommand(runCmd)
}

func runExtraction(ctx context.Context, cmd *cobra.Command, a *app.App, issueID int64) error {
	a.Queue.Start(ctx)

	job, err := a.Extraction.StartExtraction(ctx, issueID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "issue %d: job %s started\n", issueID, job.ID)

	waitCtx := ctx
	if runWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, runWait)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- a.Extraction.Wait(waitCtx, job.ID) }()

	ticker := time.NewTicker(runInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				_ = a.Extraction.CancelExtraction(context.WithoutCancel(ctx), issueID)
				_ = a.Extraction.Wait(context.WithoutCancel(ctx), job.ID)
			}
			printProgress(ctx, cmd, a, issueID)
			return err
		case <-ticker.C:
			printProgress(ctx, cmd, a, issueID)
		}
	}
}

func printProgress(ctx context.Context, cmd *cobra.Command, a *app.App, issueID int64) {
	progress, err := a.Extraction.GetExtractionProgress(context.WithoutCancel(ctx), issueID)
	if err != nil {
		logr.Sugar().Warnw("failed to read progress", "issue_id", issueID, "error", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatProgress(progress))
}

func formatProgress(p *models.ExtractionProgress) string {
	line := fmt.Sprintf("%-12s %3d%% (%d/%d)", p.Status, p.Progress, p.ProcessedItems, p.TotalItems)
	if p.ErrorMessage != nil && *p.ErrorMessage != "" {
		line += " error: " + *p.ErrorMessage
	}
	return line
}
