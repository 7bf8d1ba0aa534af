package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s, err := New(context.Background(), db)
	require.NoError(t, err)
	return s
}

func newArticle(url, title string, published time.Time) *model.Article {
	return &model.Article{
		Title:        title,
		Body:         "body of " + title,
		CanonicalURL: url,
		SourceName:   "Example News",
		PublishedAt:  published,
		IngestedAt:   published,
		QualityScore: 5,
	}
}

func TestArticleCreateIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a, created, err := s.Articles.CreateIfAbsent(ctx, newArticle("https://example.com/a", "First", now))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, a.ID)

	dup, created, err := s.Articles.CreateIfAbsent(ctx, newArticle("https://example.com/a", "Other title", now))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, dup.ID)
	assert.Equal(t, "First", dup.Title)

	require.NoError(t, s.Articles.UpdateMutable(ctx, a.ID, "Jane", 7.5))
	got, err := s.Articles.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.Author)
	assert.Equal(t, 7.5, got.QualityScore)
	assert.Equal(t, "First", got.Title)

	_, err = s.Articles.Get(ctx, 999)
	assert.True(t, errors.IsCode(err, errors.ErrArticleNotFound.Code))
}

func TestArticleListingAndEmbedding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var ids []uint64
	for i := 0; i < 5; i++ {
		a, _, err := s.Articles.CreateIfAbsent(ctx, newArticle(fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("T%d", i), now.Add(-time.Duration(i)*time.Hour)))
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	recent, err := s.Articles.ListPublishedSince(ctx, now.Add(-150*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "T0", recent[0].Title)

	require.NoError(t, s.Articles.SetEmbedded(ctx, ids[:2], true))
	pending, err := s.Articles.ListUnembedded(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	page, err := s.Articles.ListUnembedded(ctx, pending[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, pending[1].ID, page[0].ID)

	many, err := s.Articles.GetMany(ctx, []uint64{ids[0], 12345})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}

func TestArticleListPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		a := newArticle(fmt.Sprintf("https://example.com/p/%d", i), fmt.Sprintf("P%d", i), now.Add(-time.Duration(i)*time.Hour))
		if i%2 == 1 {
			a.SourceName = "Other Wire"
		}
		_, _, err := s.Articles.CreateIfAbsent(ctx, a)
		require.NoError(t, err)
	}

	page, total, err := s.Articles.List(ctx, ListFilter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "P1", page[0].Title)
	assert.Equal(t, "P2", page[1].Title)

	other, total, err := s.Articles.List(ctx, ListFilter{SourceName: "Other Wire", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, other, 2)
	assert.Equal(t, "P1", other[0].Title)

	none, total, err := s.Articles.List(ctx, ListFilter{SourceName: "Nobody", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)

	require.NoError(t, s.Articles.SetEmbedded(ctx, []uint64{page[0].ID, page[1].ID}, true))
	n, err := s.Articles.ResetEmbedded(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	pending, err := s.Articles.ListUnembedded(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 5)
}

func TestArticlePurge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := newArticle("https://example.com/old", "Old", now.Add(-48*time.Hour))
	fresh := newArticle("https://example.com/new", "New", now)
	_, _, err := s.Articles.CreateIfAbsent(ctx, old)
	require.NoError(t, err)
	_, _, err = s.Articles.CreateIfAbsent(ctx, fresh)
	require.NoError(t, err)
	require.NoError(t, s.Summaries.Save(ctx, &model.Summary{ArticleID: old.ID, Variant: model.SummaryBrief, Text: "x", GeneratedAt: now}))

	ids, err := s.Articles.DeleteIngestedBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uint64{old.ID}, ids)

	sums, err := s.Summaries.List(ctx, old.ID)
	require.NoError(t, err)
	assert.Empty(t, sums)

	require.NoError(t, s.Articles.Delete(ctx, fresh.ID))
	err = s.Articles.Delete(ctx, fresh.ID)
	assert.True(t, errors.IsCode(err, errors.ErrArticleNotFound.Code))
}

func TestSourcesAndTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tech := &model.Tag{Name: "Technology", Color: "#0af"}
	sci := &model.Tag{Name: "Science"}
	require.NoError(t, s.Tags.Create(ctx, tech))
	require.NoError(t, s.Tags.Create(ctx, sci))
	err := s.Tags.Create(ctx, &model.Tag{Name: "Technology"})
	assert.True(t, errors.IsCode(err, errors.ErrAlreadyExists.Code))

	src := &model.Source{Name: "Science Daily", FeedURL: "https://sd.example.com/rss", IsActive: true, Reputation: 1}
	require.NoError(t, s.Sources.Create(ctx, src))
	err = s.Sources.Create(ctx, &model.Source{Name: "dup", FeedURL: src.FeedURL})
	assert.True(t, errors.IsCode(err, errors.ErrAlreadyExists.Code))

	inactive := &model.Source{Name: "Paused", FeedURL: "https://paused.example.com/rss"}
	require.NoError(t, s.Sources.Create(ctx, inactive))

	require.NoError(t, s.Sources.SetTags(ctx, src.ID, []uint64{tech.ID, sci.ID}))
	err = s.Sources.SetTags(ctx, src.ID, []uint64{tech.ID, 999})
	assert.True(t, errors.IsCode(err, errors.ErrTagNotFound.Code))

	active, err := s.Sources.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Len(t, active[0].Tags, 2)

	require.NoError(t, s.Tags.Delete(ctx, sci.ID))
	got, err := s.Sources.Get(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "Technology", got.Tags[0].Name)

	require.NoError(t, s.Sources.RecordFetch(ctx, src.ID, time.Now(), fmt.Errorf("timeout")))
	got, err = s.Sources.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "timeout", got.LastError)
	assert.NotNil(t, got.LastFetchedAt)

	require.NoError(t, s.Sources.Delete(ctx, src.ID))
	_, err = s.Sources.Get(ctx, src.ID)
	assert.True(t, errors.IsCode(err, errors.ErrSourceNotFound.Code))

	tags, err := s.Tags.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestSummarySaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.Summaries.Save(ctx, &model.Summary{ArticleID: 1, Variant: model.SummaryBrief, Text: "one", GeneratedAt: at}))
	require.NoError(t, s.Summaries.Save(ctx, &model.Summary{ArticleID: 1, Variant: model.SummaryBrief, Text: "two", GeneratedAt: at.Add(time.Hour)}))

	got, err := s.Summaries.Get(ctx, 1, model.SummaryBrief)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Text)

	_, err = s.Summaries.Get(ctx, 1, model.SummaryAnalytical)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound.Code))

	require.NoError(t, s.Summaries.Delete(ctx, 1, model.SummaryBrief))
	list, err := s.Summaries.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStatsCollect(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a1 := newArticle("https://example.com/1", "A", now)
	a2 := newArticle("https://example.com/2", "B", now.Add(-72*time.Hour))
	a3 := newArticle("https://example.com/3", "C", now)
	a3.SourceName = "Other Wire"
	for _, a := range []*model.Article{a1, a2, a3} {
		_, _, err := s.Articles.CreateIfAbsent(ctx, a)
		require.NoError(t, err)
	}
	require.NoError(t, s.Articles.SetEmbedded(ctx, []uint64{a1.ID}, true))

	st, err := s.Stats.Collect(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.TotalArticles)
	assert.EqualValues(t, 1, st.EmbeddedArticles)
	assert.EqualValues(t, 2, st.PendingEmbedding)
	assert.EqualValues(t, 2, st.Last24Hours)
	assert.Equal(t, map[string]int64{"Example News": 2, "Other Wire": 1}, st.BySource)
}
