package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/kart-io/newslens/internal/newslens/biz"
	"github.com/kart-io/newslens/internal/newslens/feed"
	"github.com/kart-io/newslens/internal/newslens/metrics"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/internal/pkg/news/enhancer"
	"github.com/kart-io/newslens/pkg/component/milvus"
	"github.com/kart-io/newslens/pkg/component/redis"
	"github.com/kart-io/newslens/pkg/component/storage"
	"github.com/kart-io/newslens/pkg/infra/pool"
	"github.com/kart-io/newslens/pkg/infra/tracing"
	"github.com/kart-io/newslens/pkg/llm"
	"github.com/kart-io/newslens/pkg/llm/resilience"
	llmopts "github.com/kart-io/newslens/pkg/options/llm"
	newsopts "github.com/kart-io/newslens/pkg/options/news"

	// Register providers
	_ "github.com/kart-io/newslens/pkg/llm/ollama"
	_ "github.com/kart-io/newslens/pkg/llm/openai"
)

// Server holds the wired news core and the backing-store clients it owns.
type Server struct {
	opts    *Options
	clients []storage.Client
	tracing *tracing.Provider
	pools   *pool.Manager
	metrics *metrics.Metrics
	index   store.VectorIndex

	mu       sync.Mutex
	interval time.Duration
	restart  context.CancelFunc

	Store     *store.Store
	Registry  *biz.Registry
	Indexer   *biz.Indexer
	Ingestor  *biz.Ingestor
	Searcher  *biz.Searcher
	Summaries *biz.SummaryCache
	Analyzer  *biz.Analyzer
	Trending  *biz.TrendingAggregator
	Purger    *biz.Purger
	Stats     *biz.StatsCollector
}

// NewServer connects the configured backends and wires the core. The caller
// must Close the returned server.
func NewServer(ctx context.Context, opts *Options) (_ *Server, err error) {
	s := &Server{opts: opts, metrics: metrics.Default(), interval: opts.News.Ingest.Interval}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	// 1. tracing
	if s.tracing, err = tracing.NewProvider(ctx, opts.Tracing); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// 2. 关系存储
	db, err := store.Open(ctx, opts.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", opts.Store.Driver, err)
	}
	s.clients = append(s.clients, db)
	if s.Store, err = store.New(ctx, db.DB()); err != nil {
		return nil, err
	}

	// 3. redis（可选）
	var rdb goredis.UniversalClient
	if opts.Redis.Enabled {
		c, err := redis.NewFactory(opts.Redis).Create(ctx)
		if err != nil {
			return nil, err
		}
		s.clients = append(s.clients, c)
		rdb = c.(*redis.Client).Client()
		logger.Infow("redis cache enabled", "addr", opts.Redis.Addr())
	}

	// 4. 模型供应商
	embedder, err := newEmbedder(opts.Embedding, rdb, opts.Cache.KeyPrefix, opts.Cache.EmbeddingTTL)
	if err != nil {
		return nil, err
	}
	chat, err := newChat(opts.Chat)
	if err != nil {
		return nil, err
	}

	// 5. 向量索引
	if s.index, err = s.newVectorIndex(ctx); err != nil {
		return nil, err
	}

	// 6. 协程池
	s.pools, err = pool.NewManager(map[pool.Type]*pool.Config{
		pool.IngestPool:     pool.IngestPoolConfig(opts.News.Ingest.Concurrency),
		pool.BackgroundPool: pool.BackgroundPoolConfig(),
	})
	if err != nil {
		return nil, err
	}
	ingestPool, err := s.pools.Get(pool.IngestPool)
	if err != nil {
		return nil, err
	}

	// 7. biz
	news := opts.News
	s.Registry = biz.NewRegistry(s.Store)
	s.Indexer = biz.NewIndexer(s.Store.Articles, s.index, embedder, biz.IndexerConfig{
		EmbedWindow:   news.Ingest.EmbedWindow,
		SnippetLength: news.Search.SnippetLength,
	}, s.metrics)
	s.Ingestor = biz.NewIngestor(
		s.Store,
		feed.NewHTTPFetcher(news.Ingest.FetchTimeout, news.Ingest.UserAgent),
		s.Indexer,
		biz.NewNormalizer(news.Ingest.MinContentLength),
		ingestPool,
		s.metrics,
	)
	s.Summaries = biz.NewSummaryCache(s.Store, chat, news.Analysis.GenerationTimeout, s.metrics)
	s.Searcher = biz.NewSearcher(s.Store, s.index, embedder, biz.SearchConfig{
		DefaultLimit:  news.Search.DefaultLimit,
		MaxLimit:      news.Search.MaxLimit,
		OverFetch:     news.Search.OverFetch,
		SnippetLength: news.Search.SnippetLength,
		EmbedWindow:   news.Ingest.EmbedWindow,
	},
		biz.WithEnhancer(enhancer.New(chat, enhancer.Config{
			EnableQueryRewrite: news.Search.QueryRewrite,
			MaxCandidates:      news.Search.RerankCandidates,
		})),
		biz.WithSummaryCache(s.Summaries),
		biz.WithSearchMetrics(s.metrics),
	)
	s.Analyzer = biz.NewAnalyzer(s.Store.Articles, chat, biz.AnalyzerConfig{
		BodyChars: news.Analysis.BodyChars,
		Timeout:   news.Analysis.GenerationTimeout,
	}, s.metrics)

	var rc biz.ResultCache
	if rdb != nil {
		rc = biz.NewRedisResultCache(rdb, opts.Cache.KeyPrefix)
	}
	ttl := opts.Cache.TrendingTTL
	if ttl == 0 {
		ttl = -1 // 0 表示不缓存
	}
	s.Trending = biz.NewTrendingAggregator(s.Store.Articles, chat, rc, biz.TrendingConfig{
		DefaultHours:   news.Trending.DefaultHours,
		MaxHours:       news.Trending.MaxHours,
		MinArticles:    news.Trending.MinArticles,
		MaxArticles:    news.Trending.MaxArticles,
		PromptArticles: news.Trending.PromptArticles,
		ExcerptChars:   news.Trending.ExcerptChars,
		SampleSize:     news.Trending.SampleSize,
		TTL:            ttl,
		Timeout:        news.Analysis.GenerationTimeout,
	}, s.metrics)
	s.Purger = biz.NewPurger(s.Store.Articles, s.Indexer)

	// 内存索引随进程丢失，启动时按记录库重建
	if news.VectorBackend == newsopts.VectorMemory {
		if _, err := s.Indexer.Rebuild(ctx); err != nil {
			return nil, fmt.Errorf("failed to rebuild vector index: %w", err)
		}
	}
	s.Stats = biz.NewStatsCollector(s.Store, s.Indexer)

	logger.Infow("newslens core initialized",
		"store", opts.Store.Driver,
		"vector_backend", news.VectorBackend,
		"embedding", embedder.Name(),
		"chat", chat.Name(),
	)
	return s, nil
}

func (s *Server) newVectorIndex(ctx context.Context) (store.VectorIndex, error) {
	dim := s.opts.News.EmbeddingDim
	switch s.opts.News.VectorBackend {
	case newsopts.VectorMilvus:
		c, err := milvus.New(ctx, s.opts.Milvus)
		if err != nil {
			return nil, err
		}
		s.clients = append(s.clients, c)
		return store.NewMilvusIndex(ctx, c, s.opts.Milvus.Collection, dim)
	default:
		logger.Warn("using the in-process vector index, vectors are lost on exit")
		return store.NewMemoryIndex(dim), nil
	}
}

func newEmbedder(o *llmopts.ProviderOptions, rdb goredis.UniversalClient, prefix string, ttl time.Duration) (llm.EmbeddingProvider, error) {
	p, err := llm.NewEmbeddingProvider(o.Provider, o.Config())
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	var out llm.EmbeddingProvider = resilience.WrapEmbedding(p, o.RetryConfig(), o.BreakerConfig())
	if rdb != nil {
		out = llm.NewCachedEmbeddingProvider(out, rdb, &llm.EmbeddingCacheConfig{
			TTL:       ttl,
			KeyPrefix: prefix + "emb:",
			Namespace: o.Provider + "/" + o.Model,
		})
	}
	return out, nil
}

func newChat(o *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	p, err := llm.NewChatProvider(o.Provider, o.Config())
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return resilience.WrapChat(p, o.RetryConfig(), o.BreakerConfig()), nil
}

// Run ingests the active sources every news.ingest.interval until ctx is
// cancelled. Articles whose embedding failed are retried in the background
// after each run. A Reload that changes the interval restarts the schedule.
func (s *Server) Run(ctx context.Context) error {
	if s.opts.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              s.opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Infow("metrics endpoint listening", "addr", s.opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("metrics endpoint failed", "error", err.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	for ctx.Err() == nil {
		interval := s.IngestInterval()
		loopCtx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.restart = cancel
		s.mu.Unlock()

		logger.Infow("scheduled ingestion started", "interval", interval.String())
		wait.UntilWithContext(loopCtx, func(context.Context) { s.ingestOnce(ctx) }, interval)
		cancel()
	}

	logger.Info("scheduled ingestion stopped")
	return nil
}

func (s *Server) ingestOnce(ctx context.Context) {
	report, err := s.Ingestor.IngestActive(ctx)
	if err != nil {
		logger.Errorw("scheduled ingestion failed", "error", err.Error())
		return
	}
	for _, st := range s.pools.Stats() {
		logger.Debugw("pool stats", "pool", st.Name, "running", st.Running,
			"submitted", st.Submitted, "completed", st.Completed, "rejected", st.Rejected, "panics", st.Panics)
	}
	if report.EmbeddingFailures == 0 {
		return
	}
	if err := s.pools.SubmitWithContext(ctx, pool.BackgroundPool, func() {
		if _, err := s.Indexer.Reindex(ctx); err != nil {
			logger.Warnw("background reindex failed", "error", err.Error())
		}
	}); err != nil {
		logger.Warnw("background reindex not scheduled", "error", err.Error())
	}
}

// IngestInterval returns the current schedule period.
func (s *Server) IngestInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Reload applies a changed news.ingest.interval from the config file. Other
// settings need a restart.
func (s *Server) Reload(v *viper.Viper) error {
	cur := s.opts.News
	ingest, search, analysis, trending := *cur.Ingest, *cur.Search, *cur.Analysis, *cur.Trending
	next := *cur
	next.Ingest, next.Search, next.Analysis, next.Trending = &ingest, &search, &analysis, &trending
	if err := v.UnmarshalKey("news", &next); err != nil {
		return fmt.Errorf("failed to read news config: %w", err)
	}
	if err := utilerrors.NewAggregate(next.Validate()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if next.Ingest.Interval == s.interval {
		return nil
	}
	logger.Infow("ingest interval changed", "from", s.interval.String(), "to", next.Ingest.Interval.String())
	s.interval = next.Ingest.Interval
	if s.restart != nil {
		s.restart()
	}
	return nil
}

// Health probes every backing store.
func (s *Server) Health(ctx context.Context) []storage.HealthStatus {
	return storage.Probe(ctx, s.clients...)
}

// Close releases pools, tracing and every client.
func (s *Server) Close() error {
	var errs []error
	if s.pools != nil {
		if err := s.pools.ReleaseAllTimeout(10 * time.Second); err != nil {
			errs = append(errs, err)
		}
	}
	if s.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if err := storage.CloseAll(s.clients...); err != nil {
		errs = append(errs, err)
	}
	return utilerrors.NewAggregate(errs)
}
