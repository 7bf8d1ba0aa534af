package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/metrics"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/internal/pkg/news/textutil"
	"github.com/kart-io/newslens/pkg/errors"
	"github.com/kart-io/newslens/pkg/llm"
)

// Summary lookup outcomes.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

// SummaryCache generates each (article, variant) summary at most once and
// serves the stored copy afterwards.
//
// 状态: 无行 = UNCACHED，singleflight 中 = GENERATING，有行 = CACHED。
// 生成失败或超时不写入任何数据。
type SummaryCache struct {
	articles  *store.ArticleStore
	summaries *store.SummaryStore
	chat      llm.ChatProvider
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time

	inflight singleflight.Group
}

// NewSummaryCache creates a SummaryCache. timeout bounds one generation call.
func NewSummaryCache(st *store.Store, chat llm.ChatProvider, timeout time.Duration, m *metrics.Metrics) *SummaryCache {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if m == nil {
		m = metrics.Default()
	}
	return &SummaryCache{
		articles:  st.Articles,
		summaries: st.Summaries,
		chat:      chat,
		timeout:   timeout,
		metrics:   m,
		now:       time.Now,
	}
}

// GetOrGenerate returns the cached summary or generates it. Concurrent
// callers for the same key share one generation call.
func (c *SummaryCache) GetOrGenerate(ctx context.Context, articleID uint64, v model.SummaryVariant) (*model.Summary, error) {
	if _, err := model.ParseSummaryVariant(string(v)); err != nil {
		return nil, errors.ErrNewsValidation.WithMessage(err.Error())
	}

	sum, err := c.summaries.Get(ctx, articleID, v)
	if err == nil {
		c.metrics.SummaryLookups.WithLabelValues(LookupHit).Inc()
		return sum, nil
	}
	if !errors.IsCode(err, errors.ErrNotFound.Code) {
		return nil, err
	}
	c.metrics.SummaryLookups.WithLabelValues(LookupMiss).Inc()
	return c.generate(ctx, articleID, v, false)
}

// Regenerate replaces the cached summary with a fresh generation. The old
// summary stays in place if generation fails.
func (c *SummaryCache) Regenerate(ctx context.Context, articleID uint64, v model.SummaryVariant) (*model.Summary, error) {
	if _, err := model.ParseSummaryVariant(string(v)); err != nil {
		return nil, errors.ErrNewsValidation.WithMessage(err.Error())
	}
	return c.generate(ctx, articleID, v, true)
}

// Invalidate drops the cached summary.
func (c *SummaryCache) Invalidate(ctx context.Context, articleID uint64, v model.SummaryVariant) error {
	return c.summaries.Delete(ctx, articleID, v)
}

// List returns every cached summary of an article.
func (c *SummaryCache) List(ctx context.Context, articleID uint64) ([]*model.Summary, error) {
	if _, err := c.articles.Get(ctx, articleID); err != nil {
		return nil, err
	}
	return c.summaries.List(ctx, articleID)
}

func (c *SummaryCache) generate(ctx context.Context, articleID uint64, v model.SummaryVariant, force bool) (*model.Summary, error) {
	key := fmt.Sprintf("%d/%s", articleID, v)
	if force {
		key += "/force"
	}

	// 生成不随调用方取消，调用方放弃后结果仍会写入缓存
	gctx := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(key, func() (any, error) {
		return c.produce(gctx, articleID, v, force)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		sum := *res.Val.(*model.Summary)
		return &sum, nil
	}
}

func (c *SummaryCache) produce(ctx context.Context, articleID uint64, v model.SummaryVariant, force bool) (*model.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "SummaryCache.generate", trace.WithAttributes(
		attribute.Int64("news.article_id", int64(articleID)),
		attribute.String("news.variant", string(v)),
		attribute.Bool("news.force", force),
	))
	defer span.End()

	// 上一轮 singleflight 可能刚写入
	if !force {
		if sum, err := c.summaries.Get(ctx, articleID, v); err == nil {
			return sum, nil
		}
	}

	a, err := c.articles.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := c.chat.Generate(ctx, summaryPrompt(v, a), summarySystemPrompt)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = fmt.Errorf("empty response")
	}
	c.metrics.RecordGeneration(metrics.KindSummary, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		logger.Warnw("summary generation failed", "article_id", articleID, "variant", v, "error", err.Error())
		return nil, errors.ErrGenerationFailed.WithCause(err)
	}

	sum := &model.Summary{
		ArticleID: articleID,
		Variant:   v,
		Text:      text,
		WordCount: textutil.WordCount(text),
		Model:     c.chat.Name(),
		// 截断到毫秒，mysql datetime(3) 精度最低
		GeneratedAt: c.now().UTC().Truncate(time.Millisecond),
	}
	if err := c.summaries.Save(ctx, sum); err != nil {
		return nil, err
	}
	logger.Infow("summary generated", "article_id", articleID, "variant", v, "words", sum.WordCount,
		"duration", time.Since(start).String())
	return sum, nil
}
