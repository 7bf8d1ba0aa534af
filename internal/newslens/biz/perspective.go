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
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/metrics"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/pkg/errors"
	"github.com/kart-io/newslens/pkg/llm"
	"github.com/kart-io/newslens/pkg/utils/json"
)

// Analysis bounds.
const (
	MinAnalysisArticles = 2
	MaxAnalysisArticles = 10

	defaultFocus     = "the main topic"
	compareBodyChars = 800
)

// AnalyzerConfig 多视角分析配置。
type AnalyzerConfig struct {
	// BodyChars 每篇文章送入提示词的正文长度。
	BodyChars int
	// Timeout 单次生成超时。
	Timeout time.Duration
}

// Analyzer compares the coverage of several articles. Results are never
// cached.
type Analyzer struct {
	articles *store.ArticleStore
	chat     llm.ChatProvider
	config   AnalyzerConfig
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(articles *store.ArticleStore, chat llm.ChatProvider, config AnalyzerConfig, m *metrics.Metrics) *Analyzer {
	if config.BodyChars <= 0 {
		config.BodyChars = 1000
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Analyzer{articles: articles, chat: chat, config: config, metrics: m, now: time.Now}
}

type analysisResponse struct {
	CommonThemes       []string `json:"common_themes"`
	UniquePerspectives []struct {
		Source      string `json:"source"`
		ArticleID   uint64 `json:"article_id"`
		Perspective string `json:"perspective"`
	} `json:"unique_perspectives"`
	BiasIndicators []struct {
		Source     string   `json:"source"`
		Indicators []string `json:"indicators"`
		Assessment string   `json:"assessment"`
	} `json:"bias_indicators"`
	CoverageGaps []string `json:"coverage_gaps"`
}

// Analyze compares 2 to 10 distinct existing articles. focus defaults to the
// main topic.
func (a *Analyzer) Analyze(ctx context.Context, ids []uint64, focus string) (result *model.Analysis, err error) {
	if n := len(ids); n < MinAnalysisArticles || n > MaxAnalysisArticles {
		return nil, errors.ErrNewsValidation.WithMessagef(
			"analysis needs %d to %d articles, got %d", MinAnalysisArticles, MaxAnalysisArticles, n)
	}
	if sets.New(ids...).Len() != len(ids) {
		return nil, errors.ErrNewsValidation.WithMessagef("article ids must be distinct: %v", ids)
	}
	focus = strings.TrimSpace(focus)
	if focus == "" {
		focus = defaultFocus
	}

	ctx, span := tracer.Start(ctx, "Analyzer.Analyze", trace.WithAttributes(
		attribute.Int("news.articles", len(ids)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	articles, err := a.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	text, err := a.generate(ctx, metrics.KindAnalysis, analysisPrompt(articles, focus, a.config.BodyChars), analysisSystemPrompt)
	if err != nil {
		return nil, err
	}
	parsed, err := parseAnalysis(text)
	if err != nil {
		logger.Warnw("analysis response rejected", "ids", ids, "error", err.Error())
		return nil, errors.ErrGenerationFailed.WithCause(err)
	}

	return a.assemble(parsed, articles, focus), nil
}

// Compare writes a free-form comparison of two articles.
func (a *Analyzer) Compare(ctx context.Context, first, second uint64) (*model.Comparison, error) {
	if first == second {
		return nil, errors.ErrNewsValidation.WithMessagef("cannot compare article %d with itself", first)
	}
	ctx, span := tracer.Start(ctx, "Analyzer.Compare")
	defer span.End()

	articles, err := a.load(ctx, []uint64{first, second})
	if err != nil {
		return nil, err
	}
	text, err := a.generate(ctx, metrics.KindComparison, comparePrompt(articles[0], articles[1], compareBodyChars), compareSystemPrompt)
	if err != nil {
		return nil, err
	}
	return &model.Comparison{
		Article1ID:     articles[0].ID,
		Article2ID:     articles[1].ID,
		Article1Title:  articles[0].Title,
		Article2Title:  articles[1].Title,
		ComparisonText: text,
		GeneratedAt:    a.now().UTC(),
	}, nil
}

// load returns the articles in ids order or a validation error naming the
// missing ids.
func (a *Analyzer) load(ctx context.Context, ids []uint64) ([]*model.Article, error) {
	found, err := a.articles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []uint64
	out := make([]*model.Article, 0, len(ids))
	for _, id := range ids {
		art, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, art)
	}
	if len(missing) > 0 {
		return nil, errors.ErrNewsValidation.
			WithMessagef("articles not found: %v", missing).
			WithCause(errors.ErrArticleNotFound)
	}
	return out, nil
}

func (a *Analyzer) generate(ctx context.Context, kind, prompt, system string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	start := time.Now()
	text, err := a.chat.Generate(ctx, prompt, system)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = fmt.Errorf("empty response")
	}
	a.metrics.RecordGeneration(kind, start, err)
	if err != nil {
		return "", errors.ErrGenerationFailed.WithCause(err)
	}
	return text, nil
}

func parseAnalysis(text string) (*analysisResponse, error) {
	raw, ok := json.ExtractObject(text)
	if !ok {
		return nil, fmt.Errorf("response contains no JSON object")
	}
	var parsed analysisResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	if len(parsed.CommonThemes) == 0 && len(parsed.UniquePerspectives) == 0 &&
		len(parsed.BiasIndicators) == 0 && len(parsed.CoverageGaps) == 0 {
		return nil, fmt.Errorf("response has none of the required sections")
	}
	return &parsed, nil
}

func (a *Analyzer) assemble(parsed *analysisResponse, articles []*model.Article, focus string) *model.Analysis {
	bySource := make(map[string]uint64, len(articles))
	byID := make(map[uint64]*model.Article, len(articles))
	diversity := sets.New[string]()
	details := make([]model.ArticleDetail, 0, len(articles))
	for _, art := range articles {
		if _, ok := bySource[strings.ToLower(art.SourceName)]; !ok {
			bySource[strings.ToLower(art.SourceName)] = art.ID
		}
		byID[art.ID] = art
		diversity.Insert(art.SourceName)
		details = append(details, model.ArticleDetail{
			ID:          art.ID,
			Title:       art.Title,
			Source:      art.SourceName,
			URL:         art.CanonicalURL,
			PublishedAt: art.PublishedAt,
		})
	}

	out := &model.Analysis{
		CommonThemes:       nonEmpty(parsed.CommonThemes),
		UniquePerspectives: []model.Perspective{},
		BiasIndicators:     []model.BiasIndicator{},
		CoverageGaps:       nonEmpty(parsed.CoverageGaps),
		AnalysisFocus:      focus,
		SourceDiversity:    sets.List(diversity),
		ArticleDetails:     details,
		GeneratedAt:        a.now().UTC(),
	}
	for _, p := range parsed.UniquePerspectives {
		text := strings.TrimSpace(p.Perspective)
		if text == "" {
			continue
		}
		id := p.ArticleID
		// 生成服务给出的 id 不在请求内时按来源名回填
		if _, ok := byID[id]; !ok {
			id = bySource[strings.ToLower(strings.TrimSpace(p.Source))]
		}
		source := strings.TrimSpace(p.Source)
		if art, ok := byID[id]; ok && source == "" {
			source = art.SourceName
		}
		out.UniquePerspectives = append(out.UniquePerspectives, model.Perspective{Source: source, ArticleID: id, Text: text})
	}
	for _, b := range parsed.BiasIndicators {
		out.BiasIndicators = append(out.BiasIndicators, model.BiasIndicator{
			Source:     strings.TrimSpace(b.Source),
			Indicators: nonEmpty(b.Indicators),
			Assessment: strings.TrimSpace(b.Assessment),
		})
	}
	sort.SliceStable(out.BiasIndicators, func(i, j int) bool {
		return out.BiasIndicators[i].Source < out.BiasIndicators[j].Source
	})
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
