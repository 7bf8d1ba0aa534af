package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/biz"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/pkg/errors"
	"github.com/kart-io/newslens/pkg/infra/config"
)

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.ErrNewsValidation.WithMessagef("invalid article id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newServeCommand(opts *Options, watcher *config.Watcher) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Ingest the active sources periodically until interrupted",
		Long: `Ingest the active sources periodically until interrupted.

When started with a config file, changes to news.ingest.interval in that
file take effect without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				watcher.Subscribe("news", s.Reload)
				defer watcher.Unsubscribe("news")
				watcher.Start()
				return s.Run(ctx)
			})
		},
	}
}

func newIngestCommand(opts *Options) *cobra.Command {
	var sourceIDs []uint
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the active sources once and store new articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				if len(sourceIDs) == 0 {
					report, err := s.Ingestor.IngestActive(ctx)
					if err != nil {
						return err
					}
					return printTo(cmd, report)
				}
				sources := make([]*model.Source, 0, len(sourceIDs))
				for _, id := range sourceIDs {
					src, err := s.Store.Sources.Get(ctx, uint64(id))
					if err != nil {
						return err
					}
					sources = append(sources, src)
				}
				return printTo(cmd, s.Ingestor.IngestAll(ctx, sources))
			})
		},
	}
	cmd.Flags().UintSliceVar(&sourceIDs, "source", nil, "Ingest only these source ids.")
	return cmd
}

func newSearchCommand(opts *Options) *cobra.Command {
	var (
		limit     int
		tags      []string
		within    time.Duration
		enhanced  bool
		summaries bool
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Semantic search over ingested articles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				tagIDs, err := s.Registry.ResolveTagIDs(ctx, tags)
				if err != nil {
					return err
				}
				results, err := s.Searcher.Search(ctx, &biz.SearchRequest{
					Query:         args[0],
					Limit:         limit,
					TagIDs:        tagIDs,
					TimeWindow:    within,
					AIEnhanced:    enhanced,
					WithSummaries: summaries,
				})
				if err != nil {
					return err
				}
				return printTo(cmd, results)
			})
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&limit, "limit", 0, "Number of results, 0 for the default.")
	fs.StringSliceVar(&tags, "tags", nil, "Only articles from sources carrying any of these tags.")
	fs.DurationVar(&within, "within", 0, "Only articles published within this duration, e.g. 48h.")
	fs.BoolVar(&enhanced, "enhanced", false, "Re-rank results with the generation service.")
	fs.BoolVar(&summaries, "with-summaries", false, "Attach brief summaries to the results.")
	return cmd
}

func newArticlesCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Browse stored articles",
	}

	var url string
	get := &cobra.Command{
		Use:   "get [ARTICLE_ID]",
		Short: "Show one article by id or canonical URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (url != "") {
				return errors.ErrNewsValidation.WithMessage("give exactly one of ARTICLE_ID or --url")
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				var (
					a   *model.Article
					err error
				)
				if url != "" {
					a, err = s.Store.Articles.GetByURL(ctx, url)
				} else {
					var id uint64
					if id, err = parseID(args[0]); err == nil {
						a, err = s.Store.Articles.Get(ctx, id)
					}
				}
				if err != nil {
					return err
				}
				return printTo(cmd, a)
			})
		},
	}
	get.Flags().StringVar(&url, "url", "", "Canonical URL of the article.")

	var filter store.ListFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List articles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if filter.Offset < 0 || filter.Limit < 1 || filter.Limit > 100 {
				return errors.ErrNewsValidation.WithMessagef("offset must be >= 0 and limit in [1,100], got %d and %d", filter.Offset, filter.Limit)
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				rows, total, err := s.Store.Articles.List(ctx, filter)
				if err != nil {
					return err
				}
				return printTo(cmd, &model.ArticlePage{Total: total, Offset: filter.Offset, Limit: filter.Limit, Articles: rows})
			})
		},
	}
	list.Flags().StringVar(&filter.SourceName, "source", "", "Only articles from this source name.")
	list.Flags().IntVar(&filter.Offset, "offset", 0, "Number of articles to skip.")
	list.Flags().IntVar(&filter.Limit, "limit", 20, "Page size, at most 100.")

	var limit int
	similar := &cobra.Command{
		Use:   "similar ARTICLE_ID",
		Short: "Find articles semantically close to an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				out, err := s.Searcher.Similar(ctx, id, limit)
				if err != nil {
					return err
				}
				return printTo(cmd, out)
			})
		},
	}
	similar.Flags().IntVar(&limit, "limit", 5, "Maximum number of results.")

	cmd.AddCommand(get, list, similar)
	return cmd
}

func newSummarizeCommand(opts *Options) *cobra.Command {
	var (
		variant string
		force   bool
		list    bool
		drop    bool
	)
	cmd := &cobra.Command{
		Use:   "summarize ARTICLE_ID",
		Short: "Get or generate a cached summary of an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				if list {
					out, err := s.Summaries.List(ctx, id)
					if err != nil {
						return err
					}
					return printTo(cmd, out)
				}
				v, err := model.ParseSummaryVariant(variant)
				if err != nil {
					return errors.ErrNewsValidation.WithCause(err)
				}
				if drop {
					return s.Summaries.Invalidate(ctx, id, v)
				}
				var sum *model.Summary
				if force {
					sum, err = s.Summaries.Regenerate(ctx, id, v)
				} else {
					sum, err = s.Summaries.GetOrGenerate(ctx, id, v)
				}
				if err != nil {
					return err
				}
				return printTo(cmd, sum)
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&variant, "variant", string(model.SummaryBrief), "Summary variant (brief|comprehensive|analytical).")
	fs.BoolVar(&force, "force", false, "Regenerate even when a summary is cached.")
	fs.BoolVar(&list, "list", false, "List the cached summaries of the article.")
	fs.BoolVar(&drop, "invalidate", false, "Drop the cached summary of the variant.")
	return cmd
}

func newAnalyzeCommand(opts *Options) *cobra.Command {
	var focus string
	cmd := &cobra.Command{
		Use:   "analyze ARTICLE_ID...",
		Short: "Compare how 2 to 10 articles cover a story",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				out, err := s.Analyzer.Analyze(ctx, ids, focus)
				if err != nil {
					return err
				}
				return printTo(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&focus, "focus", "", "Aspect the analysis concentrates on.")
	return cmd
}

func newCompareCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "compare ARTICLE_ID ARTICLE_ID",
		Short: "Free-form comparison of two articles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				out, err := s.Analyzer.Compare(ctx, ids[0], ids[1])
				if err != nil {
					return err
				}
				return printTo(cmd, out)
			})
		},
	}
}

func newTrendingCommand(opts *Options) *cobra.Command {
	var (
		hours   int
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Narrate the topics of recently published articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				if refresh {
					if err := s.Trending.Invalidate(ctx, hours); err != nil {
						return err
					}
				}
				out, err := s.Trending.Trending(ctx, hours)
				if err != nil {
					return err
				}
				return printTo(cmd, out)
			})
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 0, "Look-back window in hours, 0 for the default.")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore a cached result for this window.")
	return cmd
}

func newSourcesCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage feed sources",
	}

	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				out, err := s.Registry.ListSources(ctx, activeOnly)
				if err != nil {
					return err
				}
				return printTo(cmd, out)
			})
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "Only active sources.")

	var (
		addIn      biz.SourceInput
		reputation float64
		inactive   bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("reputation") {
				addIn.Reputation = &reputation
			}
			if inactive {
				active := false
				addIn.Active = &active
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				src, err := s.Registry.AddSource(ctx, &addIn)
				if err != nil {
					return err
				}
				return printTo(cmd, src)
			})
		},
	}
	add.Flags().StringVar(&addIn.Name, "name", "", "Display name.")
	add.Flags().StringVar(&addIn.FeedURL, "url", "", "Feed URL.")
	add.Flags().StringSliceVar(&addIn.Tags, "tags", nil, "Tags, created when missing.")
	add.Flags().Float64Var(&reputation, "reputation", biz.DefaultReputation, "Reputation in [0,2], 1 is neutral.")
	add.Flags().BoolVar(&inactive, "inactive", false, "Register without fetching it.")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("url")

	var (
		newName, newURL string
		newActive       bool
		newReputation   float64
	)
	update := &cobra.Command{
		Use:   "update SOURCE_ID",
		Short: "Change a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.ErrNewsValidation.WithMessagef("invalid source id %q", args[0])
			}
			in := &biz.SourceUpdate{}
			fs := cmd.Flags()
			if fs.Changed("name") {
				in.Name = &newName
			}
			if fs.Changed("url") {
				in.FeedURL = &newURL
			}
			if fs.Changed("active") {
				in.Active = &newActive
			}
			if fs.Changed("reputation") {
				in.Reputation = &newReputation
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				src, err := s.Registry.UpdateSource(ctx, id, in)
				if err != nil {
					return err
				}
				return printTo(cmd, src)
			})
		},
	}
	update.Flags().StringVar(&newName, "name", "", "New display name.")
	update.Flags().StringVar(&newURL, "url", "", "New feed URL.")
	update.Flags().BoolVar(&newActive, "active", true, "Whether the source is fetched.")
	update.Flags().Float64Var(&newReputation, "reputation", biz.DefaultReputation, "New reputation in [0,2].")

	var tagNames []string
	tag := &cobra.Command{
		Use:   "tag SOURCE_ID",
		Short: "Replace the tags of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.ErrNewsValidation.WithMessagef("invalid source id %q", args[0])
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				return s.Registry.SetSourceTags(ctx, id, tagNames)
			})
		},
	}
	tag.Flags().StringSliceVar(&tagNames, "tags", nil, "Tags of the source, an empty list clears them.")

	remove := &cobra.Command{
		Use:   "remove SOURCE_ID",
		Short: "Delete a source, its articles are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.ErrNewsValidation.WithMessagef("invalid source id %q", args[0])
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				return s.Registry.RemoveSource(ctx, id)
			})
		},
	}

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Register the sources listed in a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withServer(opts, func(ctx context.Context, s *Server) error {
				report, err := s.Registry.ImportSources(ctx, f)
				if err != nil {
					return err
				}
				return printTo(cmd, report)
			})
		},
	}

	cmd.AddCommand(list, add, update, tag, remove, imp)
	return cmd
}

func newTagsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage tags",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				out, err := s.Registry.ListTags(ctx)
				if err != nil {
					return err
				}
				return printTo(cmd, out)
			})
		},
	}

	var color string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				t, err := s.Registry.AddTag(ctx, args[0], color)
				if err != nil {
					return err
				}
				return printTo(cmd, t)
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "Display color, e.g. #3366ff.")

	remove := &cobra.Command{
		Use:   "remove NAME",
		Short: "Delete a tag and detach it from every source",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				return s.Registry.RemoveTag(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newReindexCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Embed every article that has no vector record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				report, err := s.Indexer.Reindex(ctx)
				if err != nil {
					return err
				}
				return printTo(cmd, report)
			})
		},
	}
}

func newPurgeCommand(opts *Options) *cobra.Command {
	var (
		articleID uint64
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete articles with their summaries and vectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (articleID == 0) == (olderThan == 0) {
				return errors.ErrNewsValidation.WithMessage("exactly one of --id and --older-than is required")
			}
			return withServer(opts, func(ctx context.Context, s *Server) error {
				var (
					report *model.PurgeReport
					err    error
				)
				if articleID != 0 {
					report, err = s.Purger.PurgeArticle(ctx, articleID)
				} else {
					report, err = s.Purger.PurgeOlderThan(ctx, olderThan)
				}
				if err != nil {
					return err
				}
				return printTo(cmd, report)
			})
		},
	}
	cmd.Flags().Uint64Var(&articleID, "id", 0, "Purge one article.")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Purge articles ingested longer ago than this, e.g. 720h.")
	return cmd
}

func newStatsCommand(opts *Options) *cobra.Command {
	var withMetrics bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Corpus statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				st, err := s.Stats.Collect(ctx)
				if err != nil {
					return err
				}
				if err := printTo(cmd, st); err != nil {
					return err
				}
				if !withMetrics {
					return nil
				}
				text, err := s.metrics.Export()
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "Also print the process metrics in Prometheus text format.")
	return cmd
}

func newHealthCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the configured backing stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(opts, func(ctx context.Context, s *Server) error {
				statuses := s.Health(ctx)
				if err := printTo(cmd, statuses); err != nil {
					return err
				}
				for _, st := range statuses {
					if !st.Healthy {
						return fmt.Errorf("%s is unhealthy: %s", st.Name, st.Message)
					}
				}
				return nil
			})
		},
	}
}
