package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/pkg/errors"
)

// SourceStore persists feed sources and their tag associations.
type SourceStore struct {
	db *gorm.DB
}

// Create inserts a source. FeedURL must be unique.
func (s *SourceStore) Create(ctx context.Context, src *model.Source) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Source{}).Where("feed_url = ?", src.FeedURL).Count(&count).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if count > 0 {
		return errors.ErrAlreadyExists.WithMessagef("source with feed url %q already exists", src.FeedURL)
	}
	if err := s.db.WithContext(ctx).Omit("Tags.*").Create(src).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get returns a source with its tags.
func (s *SourceStore) Get(ctx context.Context, id uint64) (*model.Source, error) {
	var src model.Source
	if err := s.db.WithContext(ctx).Preload("Tags").First(&src, id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrSourceNotFound.WithMessagef("source %d not found", id)
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &src, nil
}

// List returns sources with their tags ordered by id.
func (s *SourceStore) List(ctx context.Context, activeOnly bool) ([]*model.Source, error) {
	q := s.db.WithContext(ctx).Preload("Tags").Order("id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []*model.Source
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return rows, nil
}

// Update saves the editable columns of src.
func (s *SourceStore) Update(ctx context.Context, src *model.Source) error {
	res := s.db.WithContext(ctx).Model(&model.Source{}).Where("id = ?", src.ID).Updates(map[string]any{
		"name":       src.Name,
		"feed_url":   src.FeedURL,
		"is_active":  src.IsActive,
		"reputation": src.Reputation,
	})
	if res.Error != nil {
		return errors.ErrDatabase.WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.ErrSourceNotFound.WithMessagef("source %d not found", src.ID)
	}
	return nil
}

// Delete removes a source and its tag associations. Articles keep their
// source_name.
func (s *SourceStore) Delete(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src := &model.Source{ID: id}
		if err := tx.Model(src).Association("Tags").Clear(); err != nil {
			return errors.ErrDatabase.WithCause(err)
		}
		res := tx.Delete(src)
		if res.Error != nil {
			return errors.ErrDatabase.WithCause(res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.ErrSourceNotFound.WithMessagef("source %d not found", id)
		}
		return nil
	})
}

// SetTags replaces the tag set of a source.
func (s *SourceStore) SetTags(ctx context.Context, sourceID uint64, tagIDs []uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var src model.Source
		if err := tx.First(&src, sourceID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrSourceNotFound.WithMessagef("source %d not found", sourceID)
			}
			return errors.ErrDatabase.WithCause(err)
		}

		var tags []*model.Tag
		if len(tagIDs) > 0 {
			if err := tx.Where("id IN ?", tagIDs).Find(&tags).Error; err != nil {
				return errors.ErrDatabase.WithCause(err)
			}
			if len(tags) != len(tagIDs) {
				return errors.ErrTagNotFound.WithMessagef("some of tags %v do not exist", tagIDs)
			}
		}
		if err := tx.Model(&src).Association("Tags").Replace(tags); err != nil {
			return errors.ErrDatabase.WithCause(err)
		}
		return nil
	})
}

// RecordFetch stores the outcome of the latest fetch.
func (s *SourceStore) RecordFetch(ctx context.Context, id uint64, at time.Time, fetchErr error) error {
	msg := ""
	if fetchErr != nil {
		msg = fetchErr.Error()
		if len(msg) > 1024 {
			msg = msg[:1024]
		}
	}
	err := s.db.WithContext(ctx).Model(&model.Source{}).Where("id = ?", id).
		Updates(map[string]any{"last_fetched_at": at, "last_error": msg}).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}
