package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/pkg/errors"
)

// ArticleStore persists articles.
type ArticleStore struct {
	db *gorm.DB
}

// CreateIfAbsent inserts a unless an article with the same canonical URL
// exists. It returns the stored row and whether it was created. A unique
// constraint violation from a concurrent writer is reported as a duplicate.
func (s *ArticleStore) CreateIfAbsent(ctx context.Context, a *model.Article) (*model.Article, bool, error) {
	existing, err := s.GetByURL(ctx, a.CanonicalURL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.IsCode(err, errors.ErrArticleNotFound.Code) {
		return nil, false, err
	}

	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		if existing, lookupErr := s.GetByURL(ctx, a.CanonicalURL); lookupErr == nil {
			return existing, false, nil
		}
		return nil, false, errors.ErrDatabase.WithCause(err)
	}
	return a, true, nil
}

// UpdateMutable updates the fields a duplicate may refresh. Title, body and
// URL are never touched.
func (s *ArticleStore) UpdateMutable(ctx context.Context, id uint64, author string, quality float64) error {
	err := s.db.WithContext(ctx).Model(&model.Article{}).Where("id = ?", id).
		Updates(map[string]any{"author": author, "quality_score": quality}).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get returns an article by id.
func (s *ArticleStore) Get(ctx context.Context, id uint64) (*model.Article, error) {
	var a model.Article
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrArticleNotFound.WithMessagef("article %d not found", id)
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &a, nil
}

// GetByURL returns an article by canonical URL.
func (s *ArticleStore) GetByURL(ctx context.Context, url string) (*model.Article, error) {
	var a model.Article
	err := s.db.WithContext(ctx).Where("canonical_url = ?", url).Take(&a).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrArticleNotFound.WithMessagef("article %q not found", url)
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &a, nil
}

// GetMany returns the articles found among ids keyed by id. Missing ids are
// simply absent from the map.
func (s *ArticleStore) GetMany(ctx context.Context, ids []uint64) (map[uint64]*model.Article, error) {
	out := make(map[uint64]*model.Article, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*model.Article
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}

// ListPublishedSince returns up to limit articles published at or after
// since, newest first.
func (s *ArticleStore) ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]*model.Article, error) {
	var rows []*model.Article
	err := s.db.WithContext(ctx).
		Where("published_at >= ?", since).
		Order("published_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return rows, nil
}

// ListUnembedded pages through articles without a vector, by ascending id.
func (s *ArticleStore) ListUnembedded(ctx context.Context, afterID uint64, limit int) ([]*model.Article, error) {
	var rows []*model.Article
	err := s.db.WithContext(ctx).
		Where("embedded = ? AND id > ?", false, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return rows, nil
}

// SetEmbedded flags articles as having (or lacking) a vector record.
func (s *ArticleStore) SetEmbedded(ctx context.Context, ids []uint64, embedded bool) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&model.Article{}).Where("id IN ?", ids).
		Update("embedded", embedded).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// ResetEmbedded clears the embedded flag of every article, so that the next
// Reindex rebuilds an index that lost its vectors.
func (s *ArticleStore) ResetEmbedded(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Article{}).Where("embedded = ?", true).
		Update("embedded", false)
	if res.Error != nil {
		return 0, errors.ErrDatabase.WithCause(res.Error)
	}
	return res.RowsAffected, nil
}

// ListFilter pages through stored articles.
type ListFilter struct {
	// SourceName 为空时不过滤
	SourceName string
	Offset     int
	Limit      int
}

// List returns one page of articles, newest first, and the total count
// matching the filter.
func (s *ArticleStore) List(ctx context.Context, f ListFilter) ([]*model.Article, int64, error) {
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.Article{})
		if f.SourceName != "" {
			q = q.Where("source_name = ?", f.SourceName)
		}
		return q
	}
	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, errors.ErrDatabase.WithCause(err)
	}
	var rows []*model.Article
	err := scoped().Order("published_at DESC").Order("id DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, errors.ErrDatabase.WithCause(err)
	}
	return rows, total, nil
}

// Delete removes an article and its summaries.
func (s *ArticleStore) Delete(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", id).Delete(&model.Summary{}).Error; err != nil {
			return errors.ErrDatabase.WithCause(err)
		}
		res := tx.Delete(&model.Article{}, id)
		if res.Error != nil {
			return errors.ErrDatabase.WithCause(res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.ErrArticleNotFound.WithMessagef("article %d not found", id)
		}
		return nil
	})
}

// DeleteIngestedBefore removes articles ingested before cutoff together with
// their summaries and returns the removed ids.
func (s *ArticleStore) DeleteIngestedBefore(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Article{}).Where("ingested_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("article_id IN ?", ids).Delete(&model.Summary{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.Article{}).Error
	})
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return ids, nil
}
