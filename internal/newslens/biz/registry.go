package biz

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/kart-io/logger"
	"gopkg.in/yaml.v3"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/pkg/errors"
	"github.com/kart-io/newslens/pkg/validator"
)

// DefaultReputation is the neutral source weight.
const DefaultReputation = 1.0

// SourceInput describes a source to register.
type SourceInput struct {
	Name    string `json:"name" yaml:"name" validate:"required,trimmed,max=255"`
	FeedURL string `json:"feed_url" yaml:"feed_url" validate:"required,feedurl,max=768"`
	// Active 为空时默认启用。
	Active *bool `json:"active,omitempty" yaml:"active"`
	// Reputation 为空时默认 1。
	Reputation *float64 `json:"reputation,omitempty" yaml:"reputation" validate:"omitempty,gte=0,lte=2"`
	Tags       []string `json:"tags,omitempty" yaml:"tags" validate:"dive,required,max=64"`
}

// SourceUpdate carries the fields to change. Nil fields are kept.
type SourceUpdate struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,min=1,trimmed,max=255"`
	FeedURL    *string  `json:"feed_url,omitempty" validate:"omitempty,feedurl,max=768"`
	Active     *bool    `json:"active,omitempty"`
	Reputation *float64 `json:"reputation,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// SourcesFile is the yaml document accepted by ImportSources.
type SourcesFile struct {
	Sources []SourceInput `yaml:"sources"`
}

// ImportReport is the outcome of ImportSources.
type ImportReport struct {
	Created []string          `json:"created"`
	Skipped []string          `json:"skipped,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Registry administers sources and tags.
type Registry struct {
	sources *store.SourceStore
	tags    *store.TagStore
}

// NewRegistry creates a Registry.
func NewRegistry(st *store.Store) *Registry {
	return &Registry{sources: st.Sources, tags: st.Tags}
}

// AddSource registers a source and its tags. Missing tags are created.
func (r *Registry) AddSource(ctx context.Context, in *SourceInput) (*model.Source, error) {
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	src := &model.Source{
		Name:       in.Name,
		FeedURL:    in.FeedURL,
		IsActive:   true,
		Reputation: DefaultReputation,
	}
	if in.Active != nil {
		src.IsActive = *in.Active
	}
	if in.Reputation != nil {
		src.Reputation = *in.Reputation
	}
	if err := r.sources.Create(ctx, src); err != nil {
		return nil, err
	}
	if len(in.Tags) > 0 {
		if err := r.SetSourceTags(ctx, src.ID, in.Tags); err != nil {
			return nil, err
		}
	}
	logger.Infow("source registered", "id", src.ID, "name", src.Name, "feed_url", src.FeedURL)
	return r.sources.Get(ctx, src.ID)
}

// UpdateSource applies the non-nil fields of in.
func (r *Registry) UpdateSource(ctx context.Context, id uint64, in *SourceUpdate) (*model.Source, error) {
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	src, err := r.sources.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		src.Name = *in.Name
	}
	if in.FeedURL != nil {
		src.FeedURL = *in.FeedURL
	}
	if in.Active != nil {
		src.IsActive = *in.Active
	}
	if in.Reputation != nil {
		src.Reputation = *in.Reputation
	}
	if err := r.sources.Update(ctx, src); err != nil {
		return nil, err
	}
	return r.sources.Get(ctx, id)
}

// RemoveSource deletes a source. Its articles are kept.
func (r *Registry) RemoveSource(ctx context.Context, id uint64) error {
	return r.sources.Delete(ctx, id)
}

// ListSources returns the registered sources with their tags.
func (r *Registry) ListSources(ctx context.Context, activeOnly bool) ([]*model.Source, error) {
	return r.sources.List(ctx, activeOnly)
}

// SetSourceTags replaces the tags of a source by name, creating unknown tags.
func (r *Registry) SetSourceTags(ctx context.Context, sourceID uint64, names []string) error {
	ids := make([]uint64, 0, len(names))
	seen := make(map[uint64]bool, len(names))
	for _, name := range names {
		tag, err := r.ensureTag(ctx, name)
		if err != nil {
			return err
		}
		if !seen[tag.ID] {
			seen[tag.ID] = true
			ids = append(ids, tag.ID)
		}
	}
	return r.sources.SetTags(ctx, sourceID, ids)
}

func (r *Registry) ensureTag(ctx context.Context, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.ErrNewsValidation.WithMessage("tag name is required")
	}
	tag, err := r.tags.GetByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.IsCode(err, errors.ErrTagNotFound.Code) {
		return nil, err
	}
	tag = &model.Tag{Name: name}
	if err := r.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// AddTag creates a tag.
func (r *Registry) AddTag(ctx context.Context, name, color string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return nil, errors.ErrNewsValidation.WithMessage("tag name must be 1-64 characters")
	}
	tag := &model.Tag{Name: name, Color: color}
	if err := r.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// ListTags returns every tag.
func (r *Registry) ListTags(ctx context.Context) ([]*model.Tag, error) {
	return r.tags.List(ctx)
}

// RemoveTag deletes a tag by name. Sources keep their other tags.
func (r *Registry) RemoveTag(ctx context.Context, name string) error {
	tag, err := r.tags.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	return r.tags.Delete(ctx, tag.ID)
}

// ResolveTagIDs maps tag names to ids.
func (r *Registry) ResolveTagIDs(ctx context.Context, names []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		tag, err := r.tags.GetByName(ctx, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

// ImportSources registers the sources of a yaml document. Sources whose
// feed URL already exists are skipped; invalid entries are reported and do
// not stop the import.
func (r *Registry) ImportSources(ctx context.Context, in io.Reader) (*ImportReport, error) {
	var doc SourcesFile
	if err := yaml.NewDecoder(in).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.ErrNewsValidation.WithMessagef("invalid sources file: %v", err)
	}

	report := &ImportReport{Created: []string{}, Errors: map[string]string{}}
	for i := range doc.Sources {
		item := &doc.Sources[i]
		_, err := r.AddSource(ctx, item)
		switch {
		case err == nil:
			report.Created = append(report.Created, item.Name)
		case errors.IsCode(err, errors.ErrAlreadyExists.Code):
			report.Skipped = append(report.Skipped, item.Name)
		default:
			key := item.Name
			if key == "" {
				key = item.FeedURL
			}
			report.Errors[key] = err.Error()
		}
	}
	sort.Strings(report.Skipped)
	logger.Infow("sources imported", "created", len(report.Created), "skipped", len(report.Skipped), "errors", len(report.Errors))
	return report, nil
}
