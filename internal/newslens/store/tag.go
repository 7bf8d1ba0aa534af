package store

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/pkg/errors"
)

// TagStore persists tags.
type TagStore struct {
	db *gorm.DB
}

// Create inserts a tag. Names are unique.
func (s *TagStore) Create(ctx context.Context, tag *model.Tag) error {
	if _, err := s.GetByName(ctx, tag.Name); err == nil {
		return errors.ErrAlreadyExists.WithMessagef("tag %q already exists", tag.Name)
	}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// GetByName returns a tag by its exact name.
func (s *TagStore) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	if err := s.db.WithContext(ctx).Where("name = ?", name).Take(&tag).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrTagNotFound.WithMessagef("tag %q not found", name)
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &tag, nil
}

// List returns all tags ordered by name.
func (s *TagStore) List(ctx context.Context) ([]*model.Tag, error) {
	var rows []*model.Tag
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return rows, nil
}

// Delete removes a tag and its association rows. Sources are kept.
func (s *TagStore) Delete(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM news_source_tags WHERE tag_id = ?", id).Error; err != nil {
			return errors.ErrDatabase.WithCause(err)
		}
		res := tx.Delete(&model.Tag{}, id)
		if res.Error != nil {
			return errors.ErrDatabase.WithCause(res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.ErrTagNotFound.WithMessagef("tag %d not found", id)
		}
		return nil
	})
}
