package store

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/pkg/errors"
)

// SummaryStore persists generated summaries keyed by (article, variant).
type SummaryStore struct {
	db *gorm.DB
}

// Get returns the cached summary or ErrNotFound.
func (s *SummaryStore) Get(ctx context.Context, articleID uint64, v model.SummaryVariant) (*model.Summary, error) {
	var sum model.Summary
	err := s.db.WithContext(ctx).Where("article_id = ? AND variant = ?", articleID, v).Take(&sum).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound.WithMessagef("no %s summary for article %d", v, articleID)
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &sum, nil
}

// Save inserts the summary or replaces the existing row for its key.
func (s *SummaryStore) Save(ctx context.Context, sum *model.Summary) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}, {Name: "variant"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "word_count", "model", "generated_at"}),
	}).Create(sum).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Delete removes one cached summary. Missing rows are not an error.
func (s *SummaryStore) Delete(ctx context.Context, articleID uint64, v model.SummaryVariant) error {
	err := s.db.WithContext(ctx).Where("article_id = ? AND variant = ?", articleID, v).Delete(&model.Summary{}).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// List returns all cached summaries of an article.
func (s *SummaryStore) List(ctx context.Context, articleID uint64) ([]*model.Summary, error) {
	var rows []*model.Summary
	if err := s.db.WithContext(ctx).Where("article_id = ?", articleID).Order("variant ASC").Find(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return rows, nil
}
