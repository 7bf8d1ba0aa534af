package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/newslens/pkg/errors"
)

func TestRegistrySources(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := NewRegistry(e.store)

	src, err := r.AddSource(ctx, &SourceInput{
		Name:    "Science Daily",
		FeedURL: "https://www.sciencedaily.com/rss/all.xml",
		Tags:    []string{"Science", "Technology", "Science"},
	})
	require.NoError(t, err)
	assert.True(t, src.IsActive)
	assert.Equal(t, DefaultReputation, src.Reputation)
	assert.Len(t, src.Tags, 2)

	_, err = r.AddSource(ctx, &SourceInput{Name: "Dup", FeedURL: src.FeedURL})
	assert.True(t, errors.IsCode(err, errors.ErrAlreadyExists.Code))

	rep := 3.0
	_, err = r.AddSource(ctx, &SourceInput{Name: "Bad", FeedURL: "https://bad.example.com/feed", Reputation: &rep})
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))
	_, err = r.AddSource(ctx, &SourceInput{Name: "Bad", FeedURL: "not a url"})
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))

	inactive := false
	half := 0.5
	updated, err := r.UpdateSource(ctx, src.ID, &SourceUpdate{Active: &inactive, Reputation: &half})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 0.5, updated.Reputation)
	assert.Equal(t, "Science Daily", updated.Name)

	active, err := r.ListSources(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, r.SetSourceTags(ctx, src.ID, []string{"Health"}))
	got, err := e.store.Sources.Get(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "Health", got.Tags[0].Name)

	require.NoError(t, r.RemoveSource(ctx, src.ID))
	_, err = e.store.Sources.Get(ctx, src.ID)
	assert.True(t, errors.IsCode(err, errors.ErrSourceNotFound.Code))
	_, err = r.UpdateSource(ctx, src.ID, &SourceUpdate{})
	assert.True(t, errors.IsCode(err, errors.ErrSourceNotFound.Code))
}

func TestRegistryTags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := NewRegistry(e.store)

	_, err := r.AddTag(ctx, "Politics", "#ff0000")
	require.NoError(t, err)
	_, err = r.AddTag(ctx, "Politics", "")
	assert.True(t, errors.IsCode(err, errors.ErrAlreadyExists.Code))
	_, err = r.AddTag(ctx, "  ", "")
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))

	src, err := r.AddSource(ctx, &SourceInput{Name: "Wire", FeedURL: "https://wire.example.com/feed", Tags: []string{"Politics", "World"}})
	require.NoError(t, err)

	ids, err := r.ResolveTagIDs(ctx, []string{"World"})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	_, err = r.ResolveTagIDs(ctx, []string{"Sports"})
	assert.True(t, errors.IsCode(err, errors.ErrTagNotFound.Code))

	require.NoError(t, r.RemoveTag(ctx, "Politics"))
	got, err := e.store.Sources.Get(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "World", got.Tags[0].Name)

	tags, err := r.ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

const sourcesYAML = `
sources:
  - name: Tech Daily
    feed_url: https://tech.example.com/feed
    tags: [Technology]
  - name: Paused Wire
    feed_url: https://paused.example.com/feed
    active: false
    reputation: 1.5
  - name: Broken
    feed_url: ftp://broken.example.com/feed
  - name: Tech Daily again
    feed_url: https://tech.example.com/feed
`

func TestRegistryImport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := NewRegistry(e.store)

	report, err := r.ImportSources(ctx, strings.NewReader(sourcesYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"Tech Daily", "Paused Wire"}, report.Created)
	assert.Equal(t, []string{"Tech Daily again"}, report.Skipped)
	assert.Contains(t, report.Errors, "Broken")

	all, err := r.ListSources(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[1].IsActive)
	assert.Equal(t, 1.5, all[1].Reputation)
	require.Len(t, all[0].Tags, 1)

	again, err := r.ImportSources(ctx, strings.NewReader(sourcesYAML))
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Skipped, 3)

	_, err = r.ImportSources(ctx, strings.NewReader("sources: [unclosed"))
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))

	empty, err := r.ImportSources(ctx, strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Created)
}
