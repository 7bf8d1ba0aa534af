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
	"github.com/kart-io/newslens/internal/newslens/store"
	"github.com/kart-io/newslens/internal/pkg/news/enhancer"
	"github.com/kart-io/newslens/pkg/errors"
)

// seedArticle stores and indexes an article directly.
func seedArticle(t *testing.T, e *env, source, title, body string, published time.Time) *model.Article {
	t.Helper()
	ctx := context.Background()
	a := &model.Article{
		Title:        title,
		Body:         body,
		CanonicalURL: fmt.Sprintf("https://%s.example.com/%d", source, published.UnixNano()),
		SourceName:   source,
		PublishedAt:  published,
		IngestedAt:   published,
		QualityScore: 5,
	}
	stored, created, err := e.store.Articles.CreateIfAbsent(ctx, a)
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, e.indexer.Index(ctx, stored))
	return stored
}

func tagSource(t *testing.T, e *env, name, tag string) {
	t.Helper()
	r := NewRegistry(e.store)
	in := &SourceInput{Name: name, FeedURL: "https://" + fmt.Sprint(len(name)) + "-" + tag + ".example.com/feed", Tags: []string{tag}}
	_, err := r.AddSource(context.Background(), in)
	require.NoError(t, err)
}

func tagID(t *testing.T, e *env, name string) uint64 {
	t.Helper()
	tag, err := e.store.Tags.GetByName(context.Background(), name)
	require.NoError(t, err)
	return tag.ID
}

func newSearcher(e *env, opts ...SearcherOption) *Searcher {
	opts = append([]SearcherOption{WithSearchMetrics(e.metrics)}, opts...)
	return NewSearcher(e.store, e.index, e.embedder, SearchConfig{DefaultLimit: 10, MaxLimit: 50, OverFetch: 4, SnippetLength: 200}, opts...)
}

const diseaseBody = "Doctors used an AI model for disease diagnosis in hospital scans, improving early detection rates."

func TestSearchTagFilterScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tagSource(t, e, "ScienceDaily", "Technology")
	tagSource(t, e, "Wired", "Technology")
	tagSource(t, e, "Health Weekly", "Health")

	tagged1 := seedArticle(t, e, "Science Daily", "AI disease diagnosis", diseaseBody, now.Add(-time.Hour))
	tagged2 := seedArticle(t, e, "WIRED", "Disease diagnosis with AI", diseaseBody+" More trials are planned.", now.Add(-2*time.Hour))
	seedArticle(t, e, "Health Weekly", "AI disease diagnosis study", diseaseBody, now.Add(-3*time.Hour))
	seedArticle(t, e, "Random Blog", "AI diagnosis of disease", diseaseBody, now.Add(-4*time.Hour))
	seedArticle(t, e, "Another Outlet", "Disease AI diagnosis", diseaseBody, now.Add(-5*time.Hour))

	s := newSearcher(e)
	results, err := s.Search(ctx, &SearchRequest{
		Query:  "disease diagnosis AI",
		Limit:  5,
		TagIDs: []uint64{tagID(t, e, "Technology")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []uint64{results[0].ArticleID, results[1].ArticleID}
	assert.ElementsMatch(t, []uint64{tagged1.ID, tagged2.ID}, ids)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.0)
		assert.LessOrEqual(t, r.Similarity, 1.0)
		assert.NotEmpty(t, r.Snippet)
	}

	// OR 语义
	union, err := s.Search(ctx, &SearchRequest{
		Query:  "disease diagnosis AI",
		Limit:  5,
		TagIDs: []uint64{tagID(t, e, "Technology"), tagID(t, e, "Health")},
	})
	require.NoError(t, err)
	assert.Len(t, union, 3)
}

func TestSearchDeterministicAndTies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	older := seedArticle(t, e, "alpha", "Same title", diseaseBody, now.Add(-3*time.Hour))
	newer := seedArticle(t, e, "beta", "Same title", diseaseBody, now.Add(-time.Hour))
	seedArticle(t, e, "gamma", "Football results", "The home team won the final match after extra time and penalties.", now)

	s := newSearcher(e)
	req := &SearchRequest{Query: "AI disease diagnosis", Limit: 2}
	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, first, 2)
	// 相似度相同按发布时间倒序
	assert.Equal(t, newer.ID, first[0].ArticleID)
	assert.Equal(t, older.ID, first[1].ArticleID)

	for i := 0; i < 3; i++ {
		again, err := s.Search(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	n, err := e.index.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestSearchTimeWindowAndLimits(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recent := seedArticle(t, e, "alpha", "AI disease diagnosis", diseaseBody, now.Add(-time.Hour))
	seedArticle(t, e, "beta", "AI disease diagnosis", diseaseBody, now.Add(-72*time.Hour))

	s := newSearcher(e)
	results, err := s.Search(ctx, &SearchRequest{Query: "disease diagnosis", TimeWindow: 24 * time.Hour})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, recent.ID, results[0].ArticleID)

	results, err = s.Search(ctx, &SearchRequest{Query: "disease diagnosis", Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	empty, err := s.Search(ctx, &SearchRequest{Query: "disease", TagIDs: []uint64{12345}})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = s.Search(ctx, &SearchRequest{Query: ""})
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))
	_, err = s.Search(ctx, &SearchRequest{Query: "x", Limit: -1})
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))
}

func TestSearchSkipsPurgedArticles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	a := seedArticle(t, e, "alpha", "AI disease diagnosis", diseaseBody, now)
	seedArticle(t, e, "beta", "AI disease diagnosis", diseaseBody, now.Add(-time.Minute))

	// 只删除文章，保留向量
	require.NoError(t, e.store.Articles.Delete(ctx, a.ID))
	results, err := newSearcher(e).Search(ctx, &SearchRequest{Query: "disease diagnosis"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEqual(t, a.ID, results[0].ArticleID)
}

func TestSearchEnhanced(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	first := seedArticle(t, e, "alpha", "AI disease diagnosis", diseaseBody, now)
	second := seedArticle(t, e, "beta", "Hospital AI pilot", "A hospital pilot of AI tools for diagnosis.", now.Add(-time.Hour))

	e.chat.respond = func(string) (string, error) {
		return fmt.Sprintf(`Sure: {"results":[{"id":%d,"relevance":1.0,"explanation":"pilot details"},{"id":%d,"relevance":0.0,"explanation":"generic"}]}`,
			second.ID, first.ID), nil
	}
	s := newSearcher(e, WithEnhancer(enhancer.New(e.chat, enhancer.DefaultConfig())))

	results, err := s.Search(ctx, &SearchRequest{Query: "AI diagnosis", AIEnhanced: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, second.ID, results[0].ArticleID)
	assert.Equal(t, "pilot details", results[0].Explanation)

	// 生成失败时回退到相似度排序
	e.chat.respond = func(string) (string, error) { return "", fmt.Errorf("quota exceeded") }
	plain, err := s.Search(ctx, &SearchRequest{Query: "AI diagnosis"})
	require.NoError(t, err)
	fallback, err := s.Search(ctx, &SearchRequest{Query: "AI diagnosis", AIEnhanced: true})
	require.NoError(t, err)
	require.Len(t, fallback, len(plain))
	for i := range plain {
		assert.Equal(t, plain[i].ArticleID, fallback[i].ArticleID)
		assert.Empty(t, fallback[i].Explanation)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.EnhanceFallbacks))
}

func TestSearchWithSummaries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := seedArticle(t, e, "alpha", "AI disease diagnosis", diseaseBody, time.Now().UTC())

	e.chat.respond = func(string) (string, error) { return "Short brief summary.", nil }
	cache := NewSummaryCache(e.store, e.chat, time.Minute, e.metrics)
	s := newSearcher(e, WithSummaryCache(cache))

	results, err := s.Search(ctx, &SearchRequest{Query: "disease", WithSummaries: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Short brief summary.", results[0].AISummary)

	sum, err := e.store.Summaries.Get(ctx, a.ID, model.SummaryBrief)
	require.NoError(t, err)
	assert.Equal(t, "Short brief summary.", sum.Text)
}

// secondIndex stores publication times at second resolution, as the Milvus
// collection does.
type secondIndex struct {
	store.VectorIndex
}

func (s secondIndex) Search(ctx context.Context, vector []float32, topK int, filter *store.VectorFilter) ([]*store.VectorHit, error) {
	var f *store.VectorFilter
	if filter != nil {
		f = &store.VectorFilter{PublishedFrom: time.Unix(filter.PublishedFrom.Unix(), 0).UTC()}
	}
	hits, err := s.VectorIndex.Search(ctx, vector, topK, f)
	for _, h := range hits {
		h.PublishedAt = h.PublishedAt.Truncate(time.Second)
	}
	return hits, err
}

func TestSearchTimeWindowSecondResolution(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 12, 0, 0, 700_000_000, time.UTC)
	// 窗口起点 11:00:00.7，文章发布于同一秒内稍晚
	inside := seedArticle(t, e, "Wire", "AI disease diagnosis", diseaseBody, now.Add(-time.Hour).Add(200*time.Millisecond))
	seedArticle(t, e, "Wire", "Disease diagnosis with AI", diseaseBody, now.Add(-time.Hour).Add(-2*time.Second))

	s := NewSearcher(e.store, secondIndex{e.index}, e.embedder, SearchConfig{}, WithSearchMetrics(e.metrics))
	s.now = func() time.Time { return now }

	results, err := s.Search(ctx, &SearchRequest{Query: "disease diagnosis", TimeWindow: time.Hour})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, inside.ID, results[0].ArticleID)
}

func TestSimilar(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	base := seedArticle(t, e, "Wire", "AI disease diagnosis", diseaseBody, now.Add(-time.Hour))
	near := seedArticle(t, e, "Lancet", "Disease diagnosis with AI", diseaseBody+" Trials continue.", now.Add(-2*time.Hour))
	far := seedArticle(t, e, "Sports", "Cup final tonight", "The football cup final kicks off tonight with both teams at full strength.", now)

	s := newSearcher(e)
	results, err := s.Similar(ctx, base.ID, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near.ID, results[0].ArticleID)
	assert.Equal(t, far.ID, results[1].ArticleID)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	for _, r := range results {
		assert.NotEqual(t, base.ID, r.ArticleID)
	}

	one, err := s.Similar(ctx, base.ID, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, near.ID, one[0].ArticleID)

	_, err = s.Similar(ctx, 9999, 5)
	assert.True(t, errors.IsCode(err, errors.ErrArticleNotFound.Code))
	_, err = s.Similar(ctx, base.ID, -1)
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))

	pending, _, err := e.store.Articles.CreateIfAbsent(ctx, &model.Article{
		Title: "Pending", Body: diseaseBody, CanonicalURL: "https://pending.example.com/1",
		SourceName: "Wire", PublishedAt: now, IngestedAt: now,
	})
	require.NoError(t, err)
	_, err = s.Similar(ctx, pending.ID, 5)
	assert.True(t, errors.IsCode(err, errors.ErrIndexFailed.Code))
}
