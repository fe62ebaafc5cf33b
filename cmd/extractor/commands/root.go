package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/church-news-api/internal/app"
	"github.com/noah-isme/church-news-api/pkg/config"
	"github.com/noah-isme/church-news-api/pkg/logger"
)

var (
	logLevel string

	cfg  *config.Config
	logr *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "extractor",
	Short: "Operate the church newspaper extraction pipeline from the shell",
	Long: `extractor runs extractions in-process against the same database the API uses.
It can seed the issue catalogue, repair issues stuck in processing and report
which AI providers currently have an active credential.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if loaded.Log.Format == "" || loaded.Log.Format == "json" {
			loaded.Log.Format = "console"
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		l, err := logger.New(loaded)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg = loaded
		logr = l.Named("extractor")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logr != nil {
			_ = logr.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// withApp builds the application for one command and tears it down afterwards.
// The context is cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	return fn(ctx, a)
}
