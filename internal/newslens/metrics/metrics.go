// Package metrics 提供新闻分析服务的业务指标收集。
package metrics

import (
	"bytes"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "newslens"

// Generation kinds.
const (
	KindSummary    = "summary"
	KindAnalysis   = "analysis"
	KindComparison = "comparison"
	KindTrending   = "trending"
	KindRerank     = "rerank"
)

// Metrics 新闻服务业务指标。
type Metrics struct {
	registry *prometheus.Registry

	// 入库指标
	IngestRuns      prometheus.Counter
	Entries         *prometheus.CounterVec
	FetchErrors     prometheus.Counter
	EmbeddingErrors prometheus.Counter

	// 检索指标
	Searches         *prometheus.CounterVec
	SearchDuration   prometheus.Histogram
	EnhanceFallbacks prometheus.Counter

	// 生成指标
	SummaryLookups     *prometheus.CounterVec
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	TrendingLookups    *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default 获取进程级指标实例。
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New 创建使用独立 Registry 的指标实例。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IngestRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Total number of ingestion runs.",
		}),
		Entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_entries_total",
			Help:      "Feed entries processed, by outcome.",
		}, []string{"result"}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Feeds that failed to fetch or parse.",
		}),
		EmbeddingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_errors_total",
			Help:      "Articles whose embedding failed.",
		}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Semantic searches, by mode and status.",
		}, []string{"mode", "status"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Semantic search latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		EnhanceFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_enhance_fallbacks_total",
			Help:      "AI enhanced searches that fell back to the plain ranking.",
		}),
		SummaryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_lookups_total",
			Help:      "Summary cache lookups, by result.",
		}, []string{"result"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation service calls, by kind and status.",
		}, []string{"kind", "status"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation service latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		TrendingLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trending_lookups_total",
			Help:      "Trending cache lookups, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.IngestRuns, m.Entries, m.FetchErrors, m.EmbeddingErrors,
		m.Searches, m.SearchDuration, m.EnhanceFallbacks,
		m.SummaryLookups, m.Generations, m.GenerationDuration, m.TrendingLookups,
	)
	return m
}

// Registry 返回底层 Registry，供 promhttp 暴露。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEntry 记录一条 feed 条目的处理结果（new/duplicate/updated/skipped）。
func (m *Metrics) RecordEntry(result string) {
	m.Entries.WithLabelValues(result).Inc()
}

// RecordSearch 记录一次检索。
func (m *Metrics) RecordSearch(enhanced bool, start time.Time, err error) {
	mode := "plain"
	if enhanced {
		mode = "enhanced"
	}
	m.Searches.WithLabelValues(mode, status(err)).Inc()
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

// RecordGeneration 记录一次生成服务调用。
func (m *Metrics) RecordGeneration(kind string, start time.Time, err error) {
	m.Generations.WithLabelValues(kind, status(err)).Inc()
	if err == nil {
		m.GenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

// Export 以 Prometheus 文本格式导出所有指标。
func (m *Metrics) Export() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
