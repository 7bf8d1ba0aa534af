// Package news provides the tunables of the news retrieval and analysis core.
package news

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/newslens/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Vector index backends.
const (
	VectorMilvus = "milvus"
	VectorMemory = "memory"
)

// Options contains the news core configuration.
type Options struct {
	Ingest   *IngestOptions   `json:"ingest" mapstructure:"ingest"`
	Search   *SearchOptions   `json:"search" mapstructure:"search"`
	Analysis *AnalysisOptions `json:"analysis" mapstructure:"analysis"`
	Trending *TrendingOptions `json:"trending" mapstructure:"trending"`

	// VectorBackend is milvus or memory.
	VectorBackend string `json:"vector-backend" mapstructure:"vector-backend"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`
}

// IngestOptions 抓取与入库配置。
type IngestOptions struct {
	// Concurrency 并行抓取的 source 数量。
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`
	// FetchTimeout 单个 feed 抓取超时。
	FetchTimeout time.Duration `json:"fetch-timeout" mapstructure:"fetch-timeout"`
	// MinContentLength 清洗后正文少于该长度的条目被跳过。
	MinContentLength int `json:"min-content-length" mapstructure:"min-content-length"`
	// EmbedWindow 参与向量化的正文前缀长度（字符）。
	EmbedWindow int `json:"embed-window" mapstructure:"embed-window"`
	// UserAgent 抓取时使用的 User-Agent。
	UserAgent string `json:"user-agent" mapstructure:"user-agent"`
	// Interval serve 模式下的定时抓取间隔。
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// SearchOptions 语义检索配置。
type SearchOptions struct {
	// DefaultLimit 未指定 limit 时返回的条数。
	DefaultLimit int `json:"default-limit" mapstructure:"default-limit"`
	// MaxLimit limit 上限。
	MaxLimit int `json:"max-limit" mapstructure:"max-limit"`
	// OverFetch 向量召回的放大倍数，为过滤留余量。
	OverFetch int `json:"over-fetch" mapstructure:"over-fetch"`
	// SnippetLength 匹配片段长度。
	SnippetLength int `json:"snippet-length" mapstructure:"snippet-length"`
	// QueryRewrite AI 增强检索时先重写查询。
	QueryRewrite bool `json:"query-rewrite" mapstructure:"query-rewrite"`
	// RerankCandidates AI 增强时送入重排序的结果数量。
	RerankCandidates int `json:"rerank-candidates" mapstructure:"rerank-candidates"`
}

// AnalysisOptions 生成类请求配置。
type AnalysisOptions struct {
	// GenerationTimeout 单次生成调用超时。
	GenerationTimeout time.Duration `json:"generation-timeout" mapstructure:"generation-timeout"`
	// BodyChars 多视角分析中每篇文章的正文截断长度。
	BodyChars int `json:"body-chars" mapstructure:"body-chars"`
}

// TrendingOptions 热点聚合配置。
type TrendingOptions struct {
	DefaultHours   int `json:"default-hours" mapstructure:"default-hours"`
	MaxHours       int `json:"max-hours" mapstructure:"max-hours"`
	MinArticles    int `json:"min-articles" mapstructure:"min-articles"`
	MaxArticles    int `json:"max-articles" mapstructure:"max-articles"`
	PromptArticles int `json:"prompt-articles" mapstructure:"prompt-articles"`
	ExcerptChars   int `json:"excerpt-chars" mapstructure:"excerpt-chars"`
	SampleSize     int `json:"sample-size" mapstructure:"sample-size"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Ingest: &IngestOptions{
			Concurrency:      8,
			FetchTimeout:     30 * time.Second,
			MinContentLength: 50,
			EmbedWindow:      2000,
			UserAgent:        "newslens/1.0 (+https://github.com/kart-io/newslens)",
			Interval:         30 * time.Minute,
		},
		Search: &SearchOptions{
			DefaultLimit:     10,
			MaxLimit:         50,
			OverFetch:        4,
			SnippetLength:    200,
			RerankCandidates: 10,
		},
		Analysis: &AnalysisOptions{
			GenerationTimeout: 2 * time.Minute,
			BodyChars:         1000,
		},
		Trending: &TrendingOptions{
			DefaultHours:   24,
			MaxHours:       168,
			MinArticles:    3,
			MaxArticles:    50,
			PromptArticles: 10,
			ExcerptChars:   500,
			SampleSize:     5,
		},
		VectorBackend: VectorMemory,
		EmbeddingDim:  768, // nomic-embed-text
	}
}

// AddFlags adds flags for news options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "news."
	fs.StringVar(&o.VectorBackend, p+"vector-backend", o.VectorBackend, "Vector index backend (milvus|memory).")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")

	fs.IntVar(&o.Ingest.Concurrency, p+"ingest.concurrency", o.Ingest.Concurrency, "Sources fetched in parallel.")
	fs.DurationVar(&o.Ingest.FetchTimeout, p+"ingest.fetch-timeout", o.Ingest.FetchTimeout, "Per-feed fetch timeout.")
	fs.IntVar(&o.Ingest.MinContentLength, p+"ingest.min-content-length", o.Ingest.MinContentLength, "Entries with a shorter cleaned body are skipped.")
	fs.IntVar(&o.Ingest.EmbedWindow, p+"ingest.embed-window", o.Ingest.EmbedWindow, "Leading body characters used for the article embedding.")
	fs.StringVar(&o.Ingest.UserAgent, p+"ingest.user-agent", o.Ingest.UserAgent, "User-Agent for feed requests.")
	fs.DurationVar(&o.Ingest.Interval, p+"ingest.interval", o.Ingest.Interval, "Ingestion interval in serve mode.")

	fs.IntVar(&o.Search.DefaultLimit, p+"search.default-limit", o.Search.DefaultLimit, "Default number of search results.")
	fs.IntVar(&o.Search.MaxLimit, p+"search.max-limit", o.Search.MaxLimit, "Maximum number of search results.")
	fs.IntVar(&o.Search.OverFetch, p+"search.over-fetch", o.Search.OverFetch, "Nearest-neighbour over-fetch factor (3-5).")
	fs.IntVar(&o.Search.SnippetLength, p+"search.snippet-length", o.Search.SnippetLength, "Matched snippet length.")
	fs.BoolVar(&o.Search.QueryRewrite, p+"search.query-rewrite", o.Search.QueryRewrite, "Rewrite the query before embedding when AI enhancement is requested.")
	fs.IntVar(&o.Search.RerankCandidates, p+"search.rerank-candidates", o.Search.RerankCandidates, "Results passed to the AI re-ranking step.")

	fs.DurationVar(&o.Analysis.GenerationTimeout, p+"analysis.generation-timeout", o.Analysis.GenerationTimeout, "Timeout of a single generation call.")
	fs.IntVar(&o.Analysis.BodyChars, p+"analysis.body-chars", o.Analysis.BodyChars, "Body characters per article in comparisons.")

	fs.IntVar(&o.Trending.DefaultHours, p+"trending.default-hours", o.Trending.DefaultHours, "Default trending window in hours.")
	fs.IntVar(&o.Trending.MaxHours, p+"trending.max-hours", o.Trending.MaxHours, "Largest trending window in hours.")
	fs.IntVar(&o.Trending.MinArticles, p+"trending.min-articles", o.Trending.MinArticles, "Minimum articles needed for a trending analysis.")
	fs.IntVar(&o.Trending.MaxArticles, p+"trending.max-articles", o.Trending.MaxArticles, "Articles considered per trending window.")
	fs.IntVar(&o.Trending.PromptArticles, p+"trending.prompt-articles", o.Trending.PromptArticles, "Articles sent to the generation service.")
	fs.IntVar(&o.Trending.ExcerptChars, p+"trending.excerpt-chars", o.Trending.ExcerptChars, "Excerpt length per article.")
	fs.IntVar(&o.Trending.SampleSize, p+"trending.sample-size", o.Trending.SampleSize, "Representative articles returned (at most 5).")
}

// Validate validates the news options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.VectorBackend {
	case VectorMilvus, VectorMemory:
	default:
		errs = append(errs, fmt.Errorf("news.vector-backend %q is not supported", o.VectorBackend))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("news.embedding-dim must be positive"))
	}
	if o.Ingest.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("news.ingest.concurrency must be positive"))
	}
	if o.Ingest.Interval < time.Minute {
		errs = append(errs, fmt.Errorf("news.ingest.interval must be at least 1m"))
	}
	if o.Search.OverFetch < 1 {
		errs = append(errs, fmt.Errorf("news.search.over-fetch must be at least 1"))
	}
	if o.Search.DefaultLimit <= 0 || o.Search.DefaultLimit > o.Search.MaxLimit {
		errs = append(errs, fmt.Errorf("news.search.default-limit must be in [1, max-limit]"))
	}
	if o.Trending.SampleSize < 0 || o.Trending.SampleSize > 5 {
		errs = append(errs, fmt.Errorf("news.trending.sample-size must be in [0, 5]"))
	}
	if o.Trending.DefaultHours < 1 || o.Trending.DefaultHours > o.Trending.MaxHours {
		errs = append(errs, fmt.Errorf("news.trending.default-hours must be in [1, max-hours]"))
	}
	return errs
}
