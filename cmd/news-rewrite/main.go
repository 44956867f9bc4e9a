// news-rewrite drains a small batch of the queue through the completion API
// and publishes the resulting article files.
//
// Usage:
//
//	news-rewrite [--config newsroom.yaml] [--data-dir data] [--batch 2]
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/pipeline"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/rewrite"
)

func main() {
	var (
		opts  pipeline.Options
		batch int
	)

	cmd := &cobra.Command{
		Use:          "news-rewrite",
		Short:        "Rewrite queued aviation news items into published articles",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Setup(opts)
			if err != nil {
				return err
			}
			if batch > 0 {
				p.Config.Rewrite.BatchSize = batch
			}
			res, err := p.Rewrite(cmd.Context())
			if errors.Is(err, rewrite.ErrNoCredential) {
				p.Logger.Info("no completion API key configured, skipping rewrite")
				return nil
			}
			if err != nil {
				return err
			}
			p.Logger.Info("rewrite complete",
				"attempted", res.Attempted,
				"rewritten", res.Rewritten,
				"failed", res.Failed,
				"dead_lettered", res.DeadLettered,
				"cost_usd", res.Cost,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./newsroom.yaml)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "state directory (overrides config)")
	cmd.Flags().IntVar(&batch, "batch", 0, "items per run (overrides config)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("rewrite failed", "error", err)
		stop()
		os.Exit(1)
	}
}
