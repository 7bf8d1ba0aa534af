// Package app provides the newslens application: a news retrieval and
// analysis core driven from the command line.
package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kart-io/newslens/pkg/infra/app"
	"github.com/kart-io/newslens/pkg/infra/config"
	"github.com/kart-io/newslens/pkg/utils/json"
)

const (
	appName        = "newslens"
	appDescription = `newslens

News retrieval-augmented analysis core.

  - Ingests RSS/Atom feeds, deduplicates by canonical URL and scores quality
  - Semantic search over article embeddings with tag filters
  - Cached summaries, multi-source perspective analysis and trending topics

Every command prints its result as JSON.`
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()
	v := viper.New()
	watcher := config.NewWatcher(v)

	return app.NewApp(
		app.WithViper(v),
		app.WithName(appName),
		app.WithShortDescription("News retrieval-augmented analysis core"),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithInitFunc(func() error {
			return opts.Log.Init("service.name", appName, "service.version", app.GetVersion())
		}),
		app.WithCommands(
			newServeCommand(opts, watcher),
			newIngestCommand(opts),
			newSearchCommand(opts),
			newArticlesCommand(opts),
			newSummarizeCommand(opts),
			newAnalyzeCommand(opts),
			newCompareCommand(opts),
			newTrendingCommand(opts),
			newSourcesCommand(opts),
			newTagsCommand(opts),
			newReindexCommand(opts),
			newPurgeCommand(opts),
			newStatsCommand(opts),
			newHealthCommand(opts),
		),
	)
}

// withServer builds the server, runs fn and releases the server.
func withServer(opts *Options, fn func(ctx context.Context, s *Server) error) error {
	ctx, cancel := setupSignalContext()
	defer cancel()

	s, err := NewServer(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warnw("failed to close server", "error", err.Error())
		}
	}()
	return fn(ctx, s)
}

// setupSignalContext returns a context that is cancelled on SIGINT or
// SIGTERM. A second signal exits immediately.
func setupSignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
			signal.Stop(c)
			return
		}
		<-c
		os.Exit(1)
	}()
	return ctx, cancel
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTo(cmd *cobra.Command, v any) error {
	return printJSON(cmd.OutOrStdout(), v)
}
