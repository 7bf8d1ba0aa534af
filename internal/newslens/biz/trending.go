package biz

import (
	"context"
	"fmt"
	"sort"
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
	"github.com/kart-io/newslens/pkg/errors"
	"github.com/kart-io/newslens/pkg/llm"
)

// TrendingConfig 热点聚合配置。
type TrendingConfig struct {
	DefaultHours   int
	MaxHours       int
	MinArticles    int
	MaxArticles    int
	PromptArticles int
	ExcerptChars   int
	SampleSize     int
	TTL            time.Duration
	Timeout        time.Duration
}

// DefaultTrendingConfig returns the default bounds.
func DefaultTrendingConfig() TrendingConfig {
	return TrendingConfig{
		DefaultHours:   24,
		MaxHours:       168,
		MinArticles:    3,
		MaxArticles:    50,
		PromptArticles: 10,
		ExcerptChars:   500,
		SampleSize:     5,
		TTL:            5 * time.Minute,
		Timeout:        2 * time.Minute,
	}
}

// TrendingAggregator narrates what recent coverage is about. Results are
// cached per window length.
type TrendingAggregator struct {
	articles *store.ArticleStore
	chat     llm.ChatProvider
	cache    ResultCache
	config   TrendingConfig
	metrics  *metrics.Metrics
	now      func() time.Time

	inflight singleflight.Group
}

// NewTrendingAggregator creates a TrendingAggregator. A nil cache falls back
// to an in-process one.
func NewTrendingAggregator(articles *store.ArticleStore, chat llm.ChatProvider, rc ResultCache, config TrendingConfig, m *metrics.Metrics) *TrendingAggregator {
	d := DefaultTrendingConfig()
	if config.DefaultHours <= 0 {
		config.DefaultHours = d.DefaultHours
	}
	if config.MaxHours <= 0 {
		config.MaxHours = d.MaxHours
	}
	if config.MinArticles <= 0 {
		config.MinArticles = d.MinArticles
	}
	if config.MaxArticles <= 0 {
		config.MaxArticles = d.MaxArticles
	}
	if config.PromptArticles <= 0 {
		config.PromptArticles = d.PromptArticles
	}
	if config.ExcerptChars <= 0 {
		config.ExcerptChars = d.ExcerptChars
	}
	if config.SampleSize <= 0 || config.SampleSize > 5 {
		config.SampleSize = d.SampleSize
	}
	if config.Timeout <= 0 {
		config.Timeout = d.Timeout
	}
	// TTL 小于 0 时不缓存
	if config.TTL == 0 {
		config.TTL = d.TTL
	}
	if rc == nil {
		rc = NewMemoryResultCache()
	}
	if m == nil {
		m = metrics.Default()
	}
	return &TrendingAggregator{
		articles: articles,
		chat:     chat,
		cache:    rc,
		config:   config,
		metrics:  m,
		now:      time.Now,
	}
}

func trendingKey(hours int) string {
	return fmt.Sprintf("trending:%d", hours)
}

// Trending analyzes the articles published in the last hoursBack hours. 0
// selects the default window.
func (t *TrendingAggregator) Trending(ctx context.Context, hoursBack int) (*model.TrendingResult, error) {
	hoursBack, err := t.window(hoursBack)
	if err != nil {
		return nil, err
	}

	key := trendingKey(hoursBack)
	var cached model.TrendingResult
	if ok, err := t.cache.Get(ctx, key, &cached); err != nil {
		logger.Warnw("trending cache read failed", "key", key, "error", err.Error())
	} else if ok {
		t.metrics.TrendingLookups.WithLabelValues(LookupHit).Inc()
		return &cached, nil
	}
	t.metrics.TrendingLookups.WithLabelValues(LookupMiss).Inc()

	ch := t.inflight.DoChan(key, func() (any, error) {
		return t.compute(context.WithoutCancel(ctx), hoursBack)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*model.TrendingResult)
		return &out, nil
	}
}

// Invalidate drops the cached result of one window. 0 selects the default
// window, same as Trending.
func (t *TrendingAggregator) Invalidate(ctx context.Context, hoursBack int) error {
	hoursBack, err := t.window(hoursBack)
	if err != nil {
		return err
	}
	return t.cache.Delete(ctx, trendingKey(hoursBack))
}

func (t *TrendingAggregator) window(hoursBack int) (int, error) {
	if hoursBack == 0 {
		hoursBack = t.config.DefaultHours
	}
	if hoursBack < 1 || hoursBack > t.config.MaxHours {
		return 0, errors.ErrNewsValidation.WithMessagef("hours_back must be between 1 and %d, got %d", t.config.MaxHours, hoursBack)
	}
	return hoursBack, nil
}

func (t *TrendingAggregator) compute(ctx context.Context, hoursBack int) (result *model.TrendingResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "TrendingAggregator.compute", trace.WithAttributes(
		attribute.Int("news.hours_back", hoursBack),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	now := t.now().UTC()
	articles, err := t.articles.ListPublishedSince(ctx, now.Add(-time.Duration(hoursBack)*time.Hour), t.config.MaxArticles)
	if err != nil {
		return nil, err
	}
	if len(articles) < t.config.MinArticles {
		return nil, errors.ErrInsufficientArticles.WithMessagef(
			"found %d articles in the last %d hours, need at least %d", len(articles), hoursBack, t.config.MinArticles)
	}

	ranked := rankByQuality(articles)
	top := ranked
	if len(top) > t.config.PromptArticles {
		top = top[:t.config.PromptArticles]
	}

	start := time.Now()
	text, err := t.chat.Generate(ctx, trendingPrompt(top, hoursBack, t.config.ExcerptChars), trendingSystemPrompt)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = fmt.Errorf("empty response")
	}
	t.metrics.RecordGeneration(metrics.KindTrending, start, err)
	if err != nil {
		return nil, errors.ErrGenerationFailed.WithCause(err)
	}

	samples := ranked
	if len(samples) > t.config.SampleSize {
		samples = samples[:t.config.SampleSize]
	}
	ids := make([]uint64, len(samples))
	for i, a := range samples {
		ids[i] = a.ID
	}

	result = &model.TrendingResult{
		AnalysisText:     text,
		ArticleCount:     len(articles),
		HoursBack:        hoursBack,
		SampleArticleIDs: ids,
		GeneratedAt:      now,
	}
	if t.config.TTL > 0 {
		if err := t.cache.Set(ctx, trendingKey(hoursBack), result, t.config.TTL); err != nil {
			logger.Warnw("trending cache write failed", "hours_back", hoursBack, "error", err.Error())
		}
	}
	logger.Infow("trending analysis generated", "hours_back", hoursBack, "articles", len(articles))
	return result, nil
}

// rankByQuality orders by quality, then newer, then id.
func rankByQuality(articles []*model.Article) []*model.Article {
	out := append([]*model.Article(nil), articles...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
	return out
}
