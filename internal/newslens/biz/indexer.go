package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/metrics"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/internal/pkg/news/textutil"
	"github.com/kart-io/newslens/pkg/errors"
	"github.com/kart-io/newslens/pkg/llm"
)

// IndexerConfig 向量索引配置。
type IndexerConfig struct {
	// EmbedWindow 参与向量化的正文前缀长度。
	EmbedWindow int
	// SnippetLength 存入向量索引的摘录长度。
	SnippetLength int
	// BatchSize reindex 时每批向量化的文章数。
	BatchSize int
}

// Indexer maintains one vector record per article.
type Indexer struct {
	articles *store.ArticleStore
	index    store.VectorIndex
	embedder llm.EmbeddingProvider
	config   IndexerConfig
	metrics  *metrics.Metrics
}

// NewIndexer creates an Indexer.
func NewIndexer(articles *store.ArticleStore, index store.VectorIndex, embedder llm.EmbeddingProvider, config IndexerConfig, m *metrics.Metrics) *Indexer {
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.SnippetLength <= 0 {
		config.SnippetLength = 200
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Indexer{articles: articles, index: index, embedder: embedder, config: config, metrics: m}
}

// Index embeds a and stores its vector. On failure the article stays
// unembedded and is picked up by Reindex.
func (x *Indexer) Index(ctx context.Context, a *model.Article) error {
	vec, err := x.embedder.EmbedSingle(ctx, a.IndexText(x.config.EmbedWindow))
	if err != nil {
		x.metrics.EmbeddingErrors.Inc()
		return errors.ErrEmbeddingFailed.WithCause(err)
	}
	if err := x.index.Upsert(ctx, []*store.VectorRecord{x.record(a, vec)}); err != nil {
		return errors.ErrIndexFailed.WithCause(err)
	}
	if err := x.articles.SetEmbedded(ctx, []uint64{a.ID}, true); err != nil {
		return err
	}
	a.Embedded = true
	return nil
}

// Reindex embeds every article without a vector record.
func (x *Indexer) Reindex(ctx context.Context) (*model.ReindexReport, error) {
	report := &model.ReindexReport{}
	var afterID uint64
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		batch, err := x.articles.ListUnembedded(ctx, afterID, x.config.BatchSize)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID
		report.Candidates += len(batch)

		indexed, err := x.indexBatch(ctx, batch)
		report.Indexed += indexed
		report.Failed += len(batch) - indexed
		if err != nil {
			logger.Warnw("reindex batch failed", "after_id", afterID, "size", len(batch), "error", err.Error())
		}
	}

	logger.Infow("reindex finished", "candidates", report.Candidates, "indexed", report.Indexed, "failed", report.Failed)
	return report, nil
}

// Rebuild re-embeds every stored article. It is used when the vector index
// does not outlive the process while the record store does.
func (x *Indexer) Rebuild(ctx context.Context) (*model.ReindexReport, error) {
	n, err := x.articles.ResetEmbedded(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infow("rebuilding vector index", "articles", n)
	return x.Reindex(ctx)
}

func (x *Indexer) indexBatch(ctx context.Context, batch []*model.Article) (int, error) {
	texts := make([]string, len(batch))
	for i, a := range batch {
		texts[i] = a.IndexText(x.config.EmbedWindow)
	}
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		x.metrics.EmbeddingErrors.Add(float64(len(batch)))
		return 0, errors.ErrEmbeddingFailed.WithCause(err)
	}
	if len(vectors) != len(batch) {
		x.metrics.EmbeddingErrors.Add(float64(len(batch)))
		return 0, errors.ErrEmbeddingFailed.WithMessagef("expected %d vectors, got %d", len(batch), len(vectors))
	}

	records := make([]*store.VectorRecord, len(batch))
	ids := make([]uint64, len(batch))
	for i, a := range batch {
		records[i] = x.record(a, vectors[i])
		ids[i] = a.ID
	}
	if err := x.index.Upsert(ctx, records); err != nil {
		return 0, errors.ErrIndexFailed.WithCause(err)
	}
	if err := x.articles.SetEmbedded(ctx, ids, true); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// Remove deletes the vector records of purged articles.
func (x *Indexer) Remove(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := x.index.Delete(ctx, ids); err != nil {
		return errors.ErrIndexFailed.WithCause(err)
	}
	return nil
}

// Count returns the number of vector records.
func (x *Indexer) Count(ctx context.Context) (int64, error) {
	return x.index.Count(ctx)
}

func (x *Indexer) record(a *model.Article, vec []float32) *store.VectorRecord {
	return &store.VectorRecord{
		ArticleID:   a.ID,
		Vector:      vec,
		SourceName:  a.SourceName,
		PublishedAt: a.PublishedAt,
		Snippet:     textutil.Snippet(a.Body, x.config.SnippetLength),
	}
}
