package biz

import (
	"context"
	"sort"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/metrics"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/internal/pkg/news/enhancer"
	"github.com/kart-io/newslens/internal/pkg/news/textutil"
	"github.com/kart-io/newslens/pkg/errors"
	"github.com/kart-io/newslens/pkg/llm"
	"github.com/kart-io/newslens/pkg/validator"
)

// SearchRequest is one semantic search.
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=1000"`
	// Limit 为 0 时使用默认值，超过上限时截断。
	Limit int `json:"limit" validate:"gte=0"`
	// TagIDs 非空时只保留带有任一标签的订阅源的文章（OR 语义）。
	TagIDs []uint64 `json:"tag_ids,omitempty"`
	// TimeWindow 为 0 时不限制发布时间。
	TimeWindow    time.Duration `json:"time_window,omitempty" validate:"gte=0"`
	AIEnhanced    bool          `json:"ai_enhanced"`
	WithSummaries bool          `json:"with_summaries"`
}

// SearchConfig 检索配置。
type SearchConfig struct {
	DefaultLimit  int
	MaxLimit      int
	OverFetch     int
	SnippetLength int
	// SummaryWorkers 并行生成附带摘要的数量。
	SummaryWorkers int
	// EmbedWindow 相似文章检索时截取的正文长度，须与入库时一致。
	EmbedWindow int
}

// Searcher answers semantic queries. It never mutates the article store or
// the vector index.
type Searcher struct {
	articles  *store.ArticleStore
	sources   *store.SourceStore
	index     store.VectorIndex
	embedder  llm.EmbeddingProvider
	matcher   SourceMatcher
	enhancer  *enhancer.Enhancer
	summaries *SummaryCache
	config    SearchConfig
	metrics   *metrics.Metrics
	now       func() time.Time
}

// SearcherOption configures optional collaborators.
type SearcherOption func(*Searcher)

// WithEnhancer enables AI re-ranking.
func WithEnhancer(e *enhancer.Enhancer) SearcherOption {
	return func(s *Searcher) { s.enhancer = e }
}

// WithSummaryCache enables attaching brief summaries to results.
func WithSummaryCache(c *SummaryCache) SearcherOption {
	return func(s *Searcher) { s.summaries = c }
}

// WithMatcher replaces the default TokenMatcher.
func WithMatcher(m SourceMatcher) SearcherOption {
	return func(s *Searcher) { s.matcher = m }
}

// WithSearchMetrics sets the metrics sink.
func WithSearchMetrics(m *metrics.Metrics) SearcherOption {
	return func(s *Searcher) { s.metrics = m }
}

// NewSearcher creates a Searcher. The embedder must be the one used at
// ingestion.
func NewSearcher(st *store.Store, index store.VectorIndex, embedder llm.EmbeddingProvider, config SearchConfig, opts ...SearcherOption) *Searcher {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	if config.MaxLimit < config.DefaultLimit {
		config.MaxLimit = config.DefaultLimit
	}
	if config.OverFetch < 1 {
		config.OverFetch = 4
	}
	if config.SnippetLength <= 0 {
		config.SnippetLength = 200
	}
	if config.SummaryWorkers <= 0 {
		config.SummaryWorkers = 4
	}
	s := &Searcher{
		articles: st.Articles,
		sources:  st.Sources,
		index:    index,
		embedder: embedder,
		matcher:  NewTokenMatcher(),
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
	}
	return s
}

type scored struct {
	hit     *store.VectorHit
	article *model.Article
	sim     float64
}

// Search returns up to limit results ordered by similarity, ties broken by
// newer publication then article id. An empty result is not an error.
func (s *Searcher) Search(ctx context.Context, req *SearchRequest) (results []*model.RankedResult, err error) {
	start := time.Now()
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	enhanced := req.AIEnhanced && s.enhancer != nil

	ctx, span := tracer.Start(ctx, "Searcher.Search", trace.WithAttributes(
		attribute.Int("news.limit", req.Limit),
		attribute.Int("news.tags", len(req.TagIDs)),
		attribute.Bool("news.ai_enhanced", enhanced),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("news.results", len(results)))
		span.End()
		s.metrics.RecordSearch(enhanced, start, err)
	}()

	limit := s.limit(req.Limit)

	query := req.Query
	if enhanced {
		query = s.enhancer.RewriteQuery(ctx, query)
	}
	vec, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}

	now := s.now().UTC()
	var filter *store.VectorFilter
	if req.TimeWindow > 0 {
		filter = &store.VectorFilter{PublishedFrom: now.Add(-req.TimeWindow)}
	}
	hits, err := s.index.Search(ctx, vec, limit*s.config.OverFetch, filter)
	if err != nil {
		return nil, errors.ErrIndexFailed.WithCause(err)
	}

	if len(req.TagIDs) > 0 {
		hits, err = s.filterByTags(ctx, hits, sets.New(req.TagIDs...))
		if err != nil {
			return nil, err
		}
	}
	if filter != nil {
		// 向量库的发布时间精确到秒
		from := filter.PublishedFrom.Truncate(time.Second)
		kept := hits[:0]
		for _, h := range hits {
			if !h.PublishedAt.Before(from) {
				kept = append(kept, h)
			}
		}
		hits = kept
	}
	results, err = s.rank(ctx, hits, limit, 0)
	if err != nil || len(results) == 0 {
		return results, err
	}

	if enhanced {
		results = s.rerank(ctx, req.Query, results)
	}
	if req.WithSummaries && s.summaries != nil {
		s.attachSummaries(ctx, results)
	}

	logger.Debugw("search finished", "query", req.Query, "hits", len(hits), "results", len(results), "enhanced", enhanced)
	return results, nil
}

// Similar returns up to limit articles closest to the article articleID,
// excluding the article itself. The article must have been embedded.
func (s *Searcher) Similar(ctx context.Context, articleID uint64, limit int) (results []*model.RankedResult, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Searcher.Similar", trace.WithAttributes(
		attribute.Int64("news.article_id", int64(articleID)),
		attribute.Int("news.limit", limit),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("news.results", len(results)))
		span.End()
		s.metrics.RecordSearch(false, start, err)
	}()

	if limit < 0 {
		return nil, errors.ErrNewsValidation.WithMessagef("limit must not be negative, got %d", limit)
	}
	limit = s.limit(limit)

	a, err := s.articles.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !a.Embedded {
		return nil, errors.ErrIndexFailed.WithMessagef("article %d is not indexed yet", articleID)
	}
	vec, err := s.embedder.EmbedSingle(ctx, a.IndexText(s.config.EmbedWindow))
	if err != nil {
		return nil, errors.ErrEmbeddingFailed.WithCause(err)
	}
	// 多取一条，结果中包含文章自身
	hits, err := s.index.Search(ctx, vec, limit*s.config.OverFetch+1, nil)
	if err != nil {
		return nil, errors.ErrIndexFailed.WithCause(err)
	}
	results, err = s.rank(ctx, hits, limit, articleID)
	if err != nil {
		return nil, err
	}
	logger.Debugw("similar articles", "article_id", articleID, "hits", len(hits), "results", len(results))
	return results, nil
}

func (s *Searcher) limit(n int) int {
	if n <= 0 {
		n = s.config.DefaultLimit
	}
	if n > s.config.MaxLimit {
		n = s.config.MaxLimit
	}
	return n
}

// rank loads the articles behind hits and orders them by similarity, ties
// broken by newer publication then article id. Hits whose article is gone
// and the hit for exclude are dropped.
func (s *Searcher) rank(ctx context.Context, hits []*store.VectorHit, limit int, exclude uint64) ([]*model.RankedResult, error) {
	ids := make([]uint64, 0, len(hits))
	for _, h := range hits {
		if h.ArticleID != exclude {
			ids = append(ids, h.ArticleID)
		}
	}
	if len(ids) == 0 {
		return []*model.RankedResult{}, nil
	}
	found, err := s.articles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	ranked := make([]scored, 0, len(hits))
	for _, h := range hits {
		if h.ArticleID == exclude {
			continue
		}
		a, ok := found[h.ArticleID]
		if !ok {
			// 向量存在但文章已删除
			continue
		}
		ranked = append(ranked, scored{
			hit:     h,
			article: a,
			sim:     textutil.Clamp(float64(h.Score), 0, 1),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		if !ranked[i].article.PublishedAt.Equal(ranked[j].article.PublishedAt) {
			return ranked[i].article.PublishedAt.After(ranked[j].article.PublishedAt)
		}
		return ranked[i].article.ID < ranked[j].article.ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]*model.RankedResult, len(ranked))
	for i, r := range ranked {
		results[i] = &model.RankedResult{
			ArticleID:   r.article.ID,
			Title:       r.article.Title,
			SourceName:  r.article.SourceName,
			URL:         r.article.CanonicalURL,
			PublishedAt: r.article.PublishedAt,
			Similarity:  r.sim,
			Snippet:     textutil.Snippet(r.article.Body, s.config.SnippetLength),
		}
	}
	return results, nil
}

// filterByTags keeps hits whose source label matches a source carrying any
// of tagIDs.
func (s *Searcher) filterByTags(ctx context.Context, hits []*store.VectorHit, tagIDs sets.Set[uint64]) ([]*store.VectorHit, error) {
	sources, err := s.sources.List(ctx, false)
	if err != nil {
		return nil, err
	}
	var tagged []string
	for _, src := range sources {
		if src.HasAnyTag(tagIDs) {
			tagged = append(tagged, src.Name)
		}
	}
	if len(tagged) == 0 {
		return nil, nil
	}

	memo := make(map[string]bool)
	kept := make([]*store.VectorHit, 0, len(hits))
	for _, h := range hits {
		ok, seen := memo[h.SourceName]
		if !seen {
			for _, name := range tagged {
				if s.matcher.Matches(h.SourceName, name) {
					ok = true
					break
				}
			}
			memo[h.SourceName] = ok
		}
		if ok {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

// rerank 失败时返回原始排序
func (s *Searcher) rerank(ctx context.Context, query string, results []*model.RankedResult) []*model.RankedResult {
	start := time.Now()
	cands := make([]enhancer.Candidate, len(results))
	byID := make(map[uint64]*model.RankedResult, len(results))
	for i, r := range results {
		cands[i] = enhancer.Candidate{
			ID:      r.ArticleID,
			Title:   r.Title,
			Source:  r.SourceName,
			Excerpt: r.Snippet,
			Score:   r.Similarity,
		}
		byID[r.ArticleID] = r
	}

	judgements, err := s.enhancer.Rerank(ctx, query, cands)
	s.metrics.RecordGeneration(metrics.KindRerank, start, err)
	if err != nil {
		s.metrics.EnhanceFallbacks.Inc()
		logger.Warnw("ai re-ranking failed, using similarity order", "query", query, "error", err.Error())
		return results
	}

	out := make([]*model.RankedResult, 0, len(results))
	for _, j := range judgements {
		r, ok := byID[j.ID]
		if !ok {
			continue
		}
		r.Explanation = j.Explanation
		out = append(out, r)
		delete(byID, j.ID)
	}
	return out
}

func (s *Searcher) attachSummaries(ctx context.Context, results []*model.RankedResult) {
	var g errgroup.Group
	g.SetLimit(s.config.SummaryWorkers)
	for _, r := range results {
		g.Go(func() error {
			sum, err := s.summaries.GetOrGenerate(ctx, r.ArticleID, model.SummaryBrief)
			if err != nil {
				logger.Warnw("attach summary failed", "article_id", r.ArticleID, "error", err.Error())
				return nil
			}
			r.AISummary = sum.Text
			return nil
		})
	}
	_ = g.Wait()
}
