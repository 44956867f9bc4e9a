// news-ingest polls every enabled source once, records new items in the
// ingest log and queues them for rewriting.
//
// Usage:
//
//	news-ingest [--config newsroom.yaml] [--data-dir data]
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/pipeline"
)

func main() {
	var opts pipeline.Options

	cmd := &cobra.Command{
		Use:          "news-ingest",
		Short:        "Fetch aviation news sources and queue new items",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Setup(opts)
			if err != nil {
				return err
			}
			res, err := p.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			p.Logger.Info("ingest complete",
				"attempted", res.Attempted,
				"failed", len(res.Failed),
				"new_log_entries", res.NewLogEntries,
				"new_queue_items", res.NewQueueItems,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./newsroom.yaml)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "state directory (overrides config)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("ingest failed", "error", err)
		stop()
		os.Exit(1)
	}
}
