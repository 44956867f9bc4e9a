// newsroom operates the aviation news pipeline.
//
// Usage:
//
//	newsroom run [--every 1h]   # ingest then rewrite, once or on an interval
//	newsroom serve              # read API and RSS feed over the index
//	newsroom list               # newest published articles
//	newsroom queue [--failed]   # queue status counts
//	newsroom reindex            # rebuild the index from article files
//	newsroom feed               # print the RSS feed
//	newsroom version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/pipeline"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/rewrite"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/scheduler"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/server"
	"github.com/RobinCoderZhao/newsroom/internal/newsroom/state"
)

var version = "dev"

var opts pipeline.Options

func main() {
	rootCmd := &cobra.Command{
		Use:          "newsroom",
		Short:        "Aviation history news pipeline",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./newsroom.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "state directory (overrides config)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(feedCmd())
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run ingest then rewrite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Setup(opts)
			if err != nil {
				return err
			}

			sched := scheduler.New(p.Logger)
			sched.Add(scheduler.Job{Name: "ingest", Fn: func(ctx context.Context) error {
				_, err := p.Ingest(ctx)
				return err
			}})
			sched.Add(scheduler.Job{Name: "rewrite", Fn: func(ctx context.Context) error {
				_, err := p.Rewrite(ctx)
				if errors.Is(err, rewrite.ErrNoCredential) {
					p.Logger.Info("no completion API key configured, skipping rewrite")
					return nil
				}
				return err
			}})

			if every <= 0 {
				return sched.RunOnce(cmd.Context())
			}
			sched.Start(cmd.Context(), every)
			return nil
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat on this interval until interrupted")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API and RSS feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Setup(opts)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = p.Config.Server.Addr
			}
			ix, err := p.OpenIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()
			return p.Server(ix).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		limit      int
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest published articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Setup(opts)
			if err != nil {
				return err
			}
			ix, err := p.OpenIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()

			list, err := ix.ListArticles(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}
			if outputJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PUBLISHED\tSLUG\tWORDS")
			for _, a := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\n", a.PublishedAt.Format("2006-01-02"), a.Slug, a.WordCount)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum articles to show")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print JSON")
	return cmd
}

func queueCmd() *cobra.Command {
	var showFailed bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show rewrite queue status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Setup(opts)
			if err != nil {
				return err
			}
			queue, err := p.Store.LoadQueue()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			counts := state.CountByStatus(queue)
			for _, st := range []state.QueueStatus{state.StatusNew, state.StatusRewritten, state.StatusFailed} {
				fmt.Fprintf(out, "%-10s %d\n", st, counts[st])
			}
			if !showFailed {
				return nil
			}
			for _, item := range queue {
				if item.Status != state.StatusFailed {
					continue
				}
				fmt.Fprintf(out, "\n%s (%d attempts)\n  %s\n  %s\n", item.Title, item.Attempts, item.SourceURL, item.LastError)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showFailed, "failed", false, "list dead-lettered items")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the article index from the published files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Setup(opts)
			if err != nil {
				return err
			}
			n, err := p.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			p.Logger.Info("reindex complete", "articles", n)
			return nil
		},
	}
}

func feedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the RSS feed of the newest articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.Setup(opts)
			if err != nil {
				return err
			}
			ix, err := p.OpenIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()

			list, err := ix.ListArticles(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}
			rss, err := server.BuildFeed(list, p.ServerConfig(), time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rss)
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "items in the feed")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsroom %s\n", version)
		},
	}
}
