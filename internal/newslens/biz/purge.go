package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/pkg/errors"
)

// Purger removes articles together with their summaries and vector records.
// It is the only path that deletes articles.
type Purger struct {
	articles *store.ArticleStore
	indexer  *Indexer
	now      func() time.Time
}

// NewPurger creates a Purger.
func NewPurger(articles *store.ArticleStore, indexer *Indexer) *Purger {
	return &Purger{articles: articles, indexer: indexer, now: time.Now}
}

// PurgeArticle removes one article.
func (p *Purger) PurgeArticle(ctx context.Context, id uint64) (*model.PurgeReport, error) {
	if err := p.articles.Delete(ctx, id); err != nil {
		return nil, err
	}
	return p.dropVectors(ctx, []uint64{id}), nil
}

// PurgeOlderThan removes every article ingested more than age ago.
func (p *Purger) PurgeOlderThan(ctx context.Context, age time.Duration) (*model.PurgeReport, error) {
	if age <= 0 {
		return nil, errors.ErrNewsValidation.WithMessagef("purge age must be positive, got %s", age)
	}
	ids, err := p.articles.DeleteIngestedBefore(ctx, p.now().UTC().Add(-age))
	if err != nil {
		return nil, err
	}
	return p.dropVectors(ctx, ids), nil
}

// dropVectors 文章已删除，向量删除失败只记录不回滚
func (p *Purger) dropVectors(ctx context.Context, ids []uint64) *model.PurgeReport {
	report := &model.PurgeReport{ArticleIDs: ids}
	if report.ArticleIDs == nil {
		report.ArticleIDs = []uint64{}
	}
	if err := p.indexer.Remove(ctx, ids); err != nil {
		report.VectorError = err.Error()
		logger.Warnw("purge vector records failed", "articles", len(ids), "error", err.Error())
	}
	logger.Infow("articles purged", "articles", len(ids))
	return report
}
