package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/pkg/errors"
)

func TestPurgeArticle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	a := seedArticle(t, e, "alpha", "AI disease diagnosis", diseaseBody, now)
	b := seedArticle(t, e, "beta", "AI disease diagnosis", diseaseBody, now.Add(-time.Minute))
	require.NoError(t, e.store.Summaries.Save(ctx, &model.Summary{
		ArticleID: a.ID, Variant: model.SummaryBrief, Text: "brief", GeneratedAt: now,
	}))

	p := NewPurger(e.store.Articles, e.indexer)
	report, err := p.PurgeArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{a.ID}, report.ArticleIDs)
	assert.Empty(t, report.VectorError)

	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = e.store.Summaries.Get(ctx, a.ID, model.SummaryBrief)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound.Code))

	results, err := newSearcher(e).Search(ctx, &SearchRequest{Query: "disease"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, b.ID, results[0].ArticleID)

	_, err = p.PurgeArticle(ctx, a.ID)
	assert.True(t, errors.IsCode(err, errors.ErrArticleNotFound.Code))
}

func TestPurgeOlderThan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	old := seedArticle(t, e, "alpha", "Old story", diseaseBody, now.Add(-40*24*time.Hour))
	fresh := seedArticle(t, e, "beta", "Fresh story", diseaseBody, now.Add(-time.Hour))

	p := NewPurger(e.store.Articles, e.indexer)
	report, err := p.PurgeOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []uint64{old.ID}, report.ArticleIDs)

	_, err = e.store.Articles.Get(ctx, fresh.ID)
	require.NoError(t, err)
	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	none, err := p.PurgeOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, none.ArticleIDs)

	_, err = p.PurgeOlderThan(ctx, 0)
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))
}

func TestStatsCollector(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedArticle(t, e, "alpha", "One", diseaseBody, now)
	seedArticle(t, e, "alpha", "Two", diseaseBody, now.Add(-time.Minute))
	storeArticle(t, e, "https://example.com/unembedded", "Three", "beta")

	st, err := NewStatsCollector(e.store, e.indexer).Collect(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.TotalArticles)
	assert.EqualValues(t, 2, st.EmbeddedArticles)
	assert.EqualValues(t, 1, st.PendingEmbedding)
	assert.EqualValues(t, 2, st.VectorEntries)
	assert.EqualValues(t, 2, st.BySource["alpha"])
	assert.EqualValues(t, 1, st.BySource["beta"])
}
