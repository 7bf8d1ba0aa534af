package model

import (
	"fmt"
	"time"
)

// IngestionReport aggregates the outcome of one ingestion run. Per-source
// failures are recorded here and never abort the run.
type IngestionReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Sources    int       `json:"sources"`
	New        int       `json:"new"`
	Updated    int       `json:"updated"`
	Duplicates int       `json:"duplicates"`
	// Skipped 缺少标题/链接或正文过短的条目。
	Skipped int `json:"skipped"`
	// Failures 抓取失败的订阅源数量。
	Failures          int `json:"failures"`
	EmbeddingFailures int `json:"embedding_failures"`
	// PerSourceErrors 以 "名称 (ID)" 为键，订阅源名称不唯一。
	PerSourceErrors map[string]string `json:"per_source_errors,omitempty"`
	PerSource         []*SourceReport   `json:"per_source,omitempty"`
}

// SourceReport is the per-source breakdown of a run.
type SourceReport struct {
	SourceID   uint64 `json:"source_id"`
	Source     string `json:"source"`
	Fetched    int    `json:"fetched"`
	New        int    `json:"new"`
	Updated    int    `json:"updated"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	// EmbeddingFailures 已入库但向量化失败的文章数。
	EmbeddingFailures int    `json:"embedding_failures"`
	Error             string `json:"error,omitempty"`
}

// Key identifies the source in IngestionReport.PerSourceErrors.
func (r *SourceReport) Key() string {
	return fmt.Sprintf("%s (%d)", r.Source, r.SourceID)
}

// ArticlePage is one page of the article listing.
type ArticlePage struct {
	Total    int64      `json:"total"`
	Offset   int        `json:"offset"`
	Limit    int        `json:"limit"`
	Articles []*Article `json:"articles"`
}

// RankedResult is one semantic search hit.
type RankedResult struct {
	ArticleID   uint64    `json:"article_id"`
	Title       string    `json:"title"`
	SourceName  string    `json:"source_name"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	// Similarity 余弦相似度截断到 [0,1]。
	Similarity float64 `json:"similarity_score"`
	Snippet    string  `json:"matched_snippet"`
	// Explanation 仅在 AI 增强成功时存在。
	Explanation string `json:"explanation,omitempty"`
	// AISummary 请求附带摘要时填充 brief 摘要。
	AISummary string `json:"ai_summary,omitempty"`
}

// Perspective is a viewpoint specific to one source.
type Perspective struct {
	Source    string `json:"source"`
	ArticleID uint64 `json:"article_id"`
	Text      string `json:"text"`
}

// BiasIndicator describes framing signals found in one source.
type BiasIndicator struct {
	Source     string   `json:"source"`
	Indicators []string `json:"indicators"`
	Assessment string   `json:"assessment"`
}

// ArticleDetail identifies an analyzed article.
type ArticleDetail struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Analysis is a structured cross-source comparison.
type Analysis struct {
	CommonThemes       []string        `json:"common_themes"`
	UniquePerspectives []Perspective   `json:"unique_perspectives"`
	BiasIndicators     []BiasIndicator `json:"bias_indicators"`
	CoverageGaps       []string        `json:"coverage_gaps"`
	AnalysisFocus      string          `json:"analysis_focus"`
	SourceDiversity    []string        `json:"source_diversity"`
	ArticleDetails     []ArticleDetail `json:"article_details"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// Comparison is a free-form comparison of two articles.
type Comparison struct {
	Article1ID     uint64    `json:"article1_id"`
	Article2ID     uint64    `json:"article2_id"`
	Article1Title  string    `json:"article1_title"`
	Article2Title  string    `json:"article2_title"`
	ComparisonText string    `json:"comparison_text"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// ReindexReport is the outcome of embedding the articles that lack a
// vector.
type ReindexReport struct {
	Candidates int `json:"candidates"`
	Indexed    int `json:"indexed"`
	Failed     int `json:"failed"`
}

// PurgeReport lists the articles removed by a purge.
type PurgeReport struct {
	ArticleIDs []uint64 `json:"article_ids"`
	// VectorError 向量索引删除失败时记录，文章已删除。
	VectorError string `json:"vector_error,omitempty"`
}

// TrendingResult is the narrative over a recent time window.
type TrendingResult struct {
	AnalysisText     string    `json:"analysis_text"`
	ArticleCount     int       `json:"article_count"`
	HoursBack        int       `json:"hours_back"`
	SampleArticleIDs []uint64  `json:"sample_article_ids"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Stats describes the corpus.
type Stats struct {
	TotalArticles    int64            `json:"total_articles"`
	EmbeddedArticles int64            `json:"embedded_articles"`
	PendingEmbedding int64            `json:"pending_embedding"`
	Last24Hours      int64            `json:"last_24_hours"`
	BySource         map[string]int64 `json:"by_source"`
	Sources          int64            `json:"sources"`
	ActiveSources    int64            `json:"active_sources"`
	Tags             int64            `json:"tags"`
	Summaries        int64            `json:"summaries"`
	VectorEntries    int64            `json:"vector_entries"`
}
