package biz

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/feed"
	"github.com/kart-io/newslens/internal/newslens/metrics"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/pkg/id"
	"github.com/kart-io/newslens/pkg/infra/pool"
)

// Entry outcomes.
const (
	EntryNew       = "new"
	EntryDuplicate = "duplicate"
	EntryUpdated   = "updated"
	EntrySkipped   = "skipped"
)

// Ingestor fetches sources and turns their entries into deduplicated
// articles. Sources are processed in parallel; the canonical URL check and
// the insert are serialized.
type Ingestor struct {
	articles   *store.ArticleStore
	sources    *store.SourceStore
	fetcher    feed.Fetcher
	indexer    *Indexer
	normalizer *Normalizer
	scorer     *QualityScorer
	pool       *pool.Pool
	metrics    *metrics.Metrics
	now        func() time.Time

	// writeMu 串行化 canonical_url 查重与写入
	writeMu sync.Mutex
}

// NewIngestor creates an Ingestor. A nil pool processes sources inline.
func NewIngestor(st *store.Store, fetcher feed.Fetcher, indexer *Indexer, normalizer *Normalizer, p *pool.Pool, m *metrics.Metrics) *Ingestor {
	if m == nil {
		m = metrics.Default()
	}
	return &Ingestor{
		articles:   st.Articles,
		sources:    st.Sources,
		fetcher:    fetcher,
		indexer:    indexer,
		normalizer: normalizer,
		scorer:     NewQualityScorer(),
		pool:       p,
		metrics:    m,
		now:        time.Now,
	}
}

// IngestActive ingests every active source.
func (p *Ingestor) IngestActive(ctx context.Context) (*model.IngestionReport, error) {
	sources, err := p.sources.List(ctx, true)
	if err != nil {
		return nil, err
	}
	return p.IngestAll(ctx, sources), nil
}

// IngestAll ingests the active sources among sources. A failing source is
// recorded in the report and never aborts the run.
//
// Source.Reputation is used as stored: 0 mutes the quality score of every
// article from that source. Sources created through Registry default
// to DefaultReputation; callers building model.Source by hand must set it.
func (p *Ingestor) IngestAll(ctx context.Context, sources []*model.Source) *model.IngestionReport {
	report := &model.IngestionReport{
		RunID:           id.NewRunID(),
		StartedAt:       p.now().UTC(),
		PerSourceErrors: map[string]string{},
	}

	ctx, span := tracer.Start(ctx, "Ingestor.IngestAll", trace.WithAttributes(
		attribute.String("news.run_id", report.RunID),
	))
	defer span.End()

	logger.Infow("ingestion started", "run_id", report.RunID, "sources", len(sources))
	p.metrics.IngestRuns.Inc()

	var mu sync.Mutex
	group := pool.NewGroup(p.pool)
	for _, src := range sources {
		if src == nil || !src.IsActive {
			continue
		}
		report.Sources++
		group.Go(ctx, func(ctx context.Context) {
			sr := p.ingestSource(ctx, src, report.RunID)
			mu.Lock()
			defer mu.Unlock()
			mergeSourceReport(report, sr)
		})
	}
	group.Wait()

	sort.Slice(report.PerSource, func(i, j int) bool {
		return report.PerSource[i].Source < report.PerSource[j].Source
	})
	report.FinishedAt = p.now().UTC()

	span.SetAttributes(
		attribute.Int("news.new", report.New),
		attribute.Int("news.duplicates", report.Duplicates),
		attribute.Int("news.failures", report.Failures),
	)
	logger.Infow("ingestion finished",
		"run_id", report.RunID,
		"sources", report.Sources,
		"new", report.New,
		"updated", report.Updated,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"failures", report.Failures,
		"embedding_failures", report.EmbeddingFailures,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	return report
}

func mergeSourceReport(report *model.IngestionReport, sr *model.SourceReport) {
	report.PerSource = append(report.PerSource, sr)
	report.New += sr.New
	report.Updated += sr.Updated
	report.Duplicates += sr.Duplicates
	report.Skipped += sr.Skipped
	report.EmbeddingFailures += sr.EmbeddingFailures
	if sr.Error != "" {
		report.Failures++
		report.PerSourceErrors[sr.Key()] = sr.Error
	}
}

func (p *Ingestor) ingestSource(ctx context.Context, src *model.Source, runID string) *model.SourceReport {
	sr := &model.SourceReport{SourceID: src.ID, Source: src.Name}

	ctx, span := tracer.Start(ctx, "Ingestor.ingestSource", trace.WithAttributes(
		attribute.String("news.source", src.Name),
		attribute.String("news.feed_url", src.FeedURL),
	))
	defer span.End()

	fd, err := p.fetcher.Fetch(ctx, src.FeedURL)
	if err != nil {
		p.metrics.FetchErrors.Inc()
		p.failSource(ctx, span, src, sr, err)
		logger.Warnw("fetch source failed", "run_id", runID, "source", src.Name, "feed_url", src.FeedURL, "error", err.Error())
		return sr
	}
	sr.Fetched = len(fd.Entries)

	for _, e := range fd.Entries {
		if err := ctx.Err(); err != nil {
			p.failSource(ctx, span, src, sr, err)
			return sr
		}
		if err := p.ingestEntry(ctx, src, fd, e, sr); err != nil {
			p.failSource(ctx, span, src, sr, err)
			logger.Errorw("store entry failed", "run_id", runID, "source", src.Name, "link", e.Link, "error", err.Error())
			return sr
		}
	}

	if src.ID != 0 {
		if err := p.sources.RecordFetch(ctx, src.ID, p.now().UTC(), nil); err != nil {
			logger.Warnw("record fetch failed", "source", src.Name, "error", err.Error())
		}
	}
	logger.Debugw("source ingested", "run_id", runID, "source", src.Name,
		"fetched", sr.Fetched, "new", sr.New, "duplicates", sr.Duplicates, "skipped", sr.Skipped)
	return sr
}

// ingestEntry returns an error only when the article store fails.
func (p *Ingestor) ingestEntry(ctx context.Context, src *model.Source, fd *feed.Feed, e *feed.Entry, sr *model.SourceReport) error {
	cand, reason := p.normalizer.Normalize(fd, e)
	if reason != "" {
		sr.Skipped++
		p.metrics.RecordEntry(EntrySkipped)
		logger.Debugw("entry skipped", "source", src.Name, "link", e.Link, "reason", reason)
		return nil
	}

	art := cand.Article
	quality := p.scorer.Score(QualityInput{
		Title:      art.Title,
		Body:       art.Body,
		Author:     art.Author,
		HasDate:    cand.HasDate,
		Reputation: src.Reputation,
	})
	art.QualityScore = quality.Score

	p.writeMu.Lock()
	stored, created, err := p.articles.CreateIfAbsent(ctx, art)
	updated := false
	if err == nil && !created {
		updated, err = p.refreshDuplicate(ctx, stored, art)
	}
	p.writeMu.Unlock()
	if err != nil {
		return err
	}

	if !created {
		sr.Duplicates++
		p.metrics.RecordEntry(EntryDuplicate)
		if updated {
			sr.Updated++
			p.metrics.RecordEntry(EntryUpdated)
		}
		return nil
	}

	sr.New++
	p.metrics.RecordEntry(EntryNew)
	if err := p.indexer.Index(ctx, stored); err != nil {
		sr.EmbeddingFailures++
		logger.Warnw("embed article failed", "article_id", stored.ID, "source", src.Name, "error", err.Error())
	}
	return nil
}

// refreshDuplicate updates author and quality of an existing article. The
// title and body are never overwritten.
func (p *Ingestor) refreshDuplicate(ctx context.Context, stored, fresh *model.Article) (bool, error) {
	author := stored.Author
	if fresh.Author != "" {
		author = fresh.Author
	}
	if author == stored.Author && math.Abs(fresh.QualityScore-stored.QualityScore) < 1e-9 {
		return false, nil
	}
	if err := p.articles.UpdateMutable(ctx, stored.ID, author, fresh.QualityScore); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Ingestor) failSource(ctx context.Context, span trace.Span, src *model.Source, sr *model.SourceReport, err error) {
	sr.Error = err.Error()
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	if src.ID == 0 {
		return
	}
	// 调用方取消时仍记录失败原因
	if rerr := p.sources.RecordFetch(context.WithoutCancel(ctx), src.ID, p.now().UTC(), err); rerr != nil {
		logger.Warnw("record fetch failed", "source", src.Name, "error", rerr.Error())
	}
}
