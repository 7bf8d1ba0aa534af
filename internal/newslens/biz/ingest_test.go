package biz

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/feed"
	"github.com/kart-io/newslens/pkg/infra/pool"
)

func timePtr(t time.Time) *time.Time { return &t }

func addSource(t *testing.T, e *env, name, url string) *model.Source {
	t.Helper()
	src := &model.Source{Name: name, FeedURL: url, IsActive: true, Reputation: 1}
	require.NoError(t, e.store.Sources.Create(context.Background(), src))
	return src
}

func techFeed(published time.Time) *feed.Feed {
	return &feed.Feed{
		Title: "Tech Daily",
		Link:  "https://tech.example.com/",
		Entries: []*feed.Entry{
			{
				Title:     "Chip makers expand fabs",
				Link:      "https://tech.example.com/chips?utm_source=rss",
				Content:   "<p>" + longBody("semiconductor fab expansion") + "</p>",
				Author:    "Ada",
				Published: timePtr(published),
			},
			{
				Title:     "Quantum networking trial",
				Link:      "/quantum",
				Content:   longBody("quantum network trial"),
				Published: timePtr(published.Add(-time.Hour)),
			},
			{
				Title:     "Chip makers expand fabs (updated headline)",
				Link:      "https://TECH.example.com/chips#comments",
				Content:   "<p>" + longBody("semiconductor fab expansion") + "</p>",
				Author:    "Ada",
				Published: timePtr(published),
			},
		},
	}
}

func TestIngestDedupScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := addSource(t, e, "Tech Daily", "https://tech.example.com/feed")
	e.feeds.set(src.FeedURL, techFeed(time.Now().UTC().Add(-2*time.Hour)))

	report, err := e.ingestor.IngestActive(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 1, report.Duplicates)
	assert.Zero(t, report.Failures)
	assert.Zero(t, report.EmbeddingFailures)
	require.Len(t, report.PerSource, 1)
	assert.Equal(t, 3, report.PerSource[0].Fetched)

	a, err := e.store.Articles.GetByURL(ctx, "https://tech.example.com/chips")
	require.NoError(t, err)
	assert.Equal(t, "Chip makers expand fabs", a.Title)
	assert.Equal(t, "Tech Daily", a.SourceName)
	assert.True(t, a.Embedded)

	_, err = e.store.Articles.GetByURL(ctx, "https://tech.example.com/quantum")
	require.NoError(t, err)

	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := e.store.Sources.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastFetchedAt)
	assert.Empty(t, got.LastError)

	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.Entries.WithLabelValues(EntryNew)))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Entries.WithLabelValues(EntryDuplicate)))
}

func TestIngestIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := addSource(t, e, "Tech Daily", "https://tech.example.com/feed")
	e.feeds.set(src.FeedURL, techFeed(time.Now().UTC().Add(-2*time.Hour)))

	_, err := e.ingestor.IngestActive(ctx)
	require.NoError(t, err)
	embedCalls := e.embedder.calls.Load()

	report, err := e.ingestor.IngestActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.New)
	assert.Zero(t, report.Updated)
	assert.Equal(t, 3, report.Duplicates)
	assert.Equal(t, embedCalls, e.embedder.calls.Load())

	st, err := e.store.Stats.Collect(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalArticles)
}

func TestIngestDuplicateRefreshesAuthorOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := addSource(t, e, "Tech Daily", "https://tech.example.com/feed")
	published := time.Now().UTC().Add(-time.Hour)

	fd := &feed.Feed{Title: "Tech Daily", Entries: []*feed.Entry{{
		Title:     "Original title",
		Link:      "https://tech.example.com/story",
		Content:   longBody("original story"),
		Published: timePtr(published),
	}}}
	e.feeds.set(src.FeedURL, fd)
	_, err := e.ingestor.IngestActive(ctx)
	require.NoError(t, err)

	fd.Entries[0].Title = "Rewritten title"
	fd.Entries[0].Author = "Grace"
	report, err := e.ingestor.IngestActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Updated)

	a, err := e.store.Articles.GetByURL(ctx, "https://tech.example.com/story")
	require.NoError(t, err)
	assert.Equal(t, "Original title", a.Title)
	assert.Equal(t, "Grace", a.Author)
}

func TestIngestSourceFailureIsolated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	good := addSource(t, e, "Tech Daily", "https://tech.example.com/feed")
	bad := addSource(t, e, "Broken Wire", "https://broken.example.com/feed")
	e.feeds.set(good.FeedURL, techFeed(time.Now().UTC()))
	e.feeds.fail(bad.FeedURL, fmt.Errorf("connection refused"))

	p, err := pool.NewPool("ingest-test", pool.IngestPoolConfig(4))
	require.NoError(t, err)
	defer p.Release()
	ing := NewIngestor(e.store, e.feeds, e.indexer, NewNormalizer(50), p, e.metrics)

	report, err := ing.IngestActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sources)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 2, report.New)
	assert.Contains(t, report.PerSourceErrors[fmt.Sprintf("Broken Wire (%d)", bad.ID)], "connection refused")
	require.Len(t, report.PerSource, 2)
	assert.Equal(t, "Broken Wire", report.PerSource[0].Source)

	got, err := e.store.Sources.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.Contains(t, got.LastError, "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.FetchErrors))
}

func TestIngestErrorsKeyedBySourceID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := addSource(t, e, "Local News", "https://a.example.com/feed")
	second := addSource(t, e, "Local News", "https://b.example.com/feed")
	e.feeds.fail(first.FeedURL, fmt.Errorf("timeout"))
	e.feeds.fail(second.FeedURL, fmt.Errorf("404 not found"))

	report, err := e.ingestor.IngestActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failures)
	require.Len(t, report.PerSourceErrors, 2)
	assert.Contains(t, report.PerSourceErrors[fmt.Sprintf("Local News (%d)", first.ID)], "timeout")
	assert.Contains(t, report.PerSourceErrors[fmt.Sprintf("Local News (%d)", second.ID)], "404 not found")
}

func TestIngestReputationAsStored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := NewRegistry(e.store)
	rated, err := r.AddSource(ctx, &SourceInput{Name: "Tech Daily", FeedURL: "https://tech.example.com/feed"})
	require.NoError(t, err)
	muted := &model.Source{Name: "Muted", FeedURL: "https://muted.example.com/feed", IsActive: true}
	require.NoError(t, e.store.Sources.Create(ctx, muted))

	now := time.Now().UTC()
	e.feeds.set(rated.FeedURL, techFeed(now))
	e.feeds.set(muted.FeedURL, &feed.Feed{Entries: []*feed.Entry{{
		Title: "Muted story", Link: "https://muted.example.com/story", Author: "Lin",
		Content: longBody("muted story"), Published: timePtr(now),
	}}})

	_, err = e.ingestor.IngestActive(ctx)
	require.NoError(t, err)

	a, err := e.store.Articles.GetByURL(ctx, "https://tech.example.com/chips")
	require.NoError(t, err)
	assert.Greater(t, a.QualityScore, 0.0)
	m, err := e.store.Articles.GetByURL(ctx, "https://muted.example.com/story")
	require.NoError(t, err)
	assert.Zero(t, m.QualityScore)
}

func TestIngestSkipsAndInactive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := addSource(t, e, "Tech Daily", "https://tech.example.com/feed")
	e.feeds.set(src.FeedURL, &feed.Feed{Entries: []*feed.Entry{
		{Title: "", Link: "https://tech.example.com/a", Content: longBody("a")},
		{Title: "No link", Content: longBody("b")},
		{Title: "Short", Link: "https://tech.example.com/c", Content: "too short"},
		{Title: "Bad scheme", Link: "ftp://tech.example.com/d", Content: longBody("d")},
	}})

	inactive := &model.Source{ID: 99, Name: "Paused", FeedURL: "https://paused.example.com/feed", Reputation: 1}
	sources, err := e.store.Sources.List(ctx, true)
	require.NoError(t, err)

	report := e.ingestor.IngestAll(ctx, append(sources, inactive))
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, 4, report.Skipped)
	assert.Zero(t, report.New)
	assert.Zero(t, report.Failures)
}

func TestIngestEmbeddingFailureThenReindex(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := addSource(t, e, "Tech Daily", "https://tech.example.com/feed")
	e.feeds.set(src.FeedURL, techFeed(time.Now().UTC()))

	e.embedder.fail.Store(true)
	report, err := e.ingestor.IngestActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 2, report.EmbeddingFailures)
	assert.Zero(t, report.Failures)

	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.embedder.fail.Store(false)
	rr, err := e.indexer.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rr.Candidates)
	assert.Equal(t, 2, rr.Indexed)
	assert.Zero(t, rr.Failed)

	n, err = e.index.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rr, err = e.indexer.Reindex(ctx)
	require.NoError(t, err)
	assert.Zero(t, rr.Candidates)
}
