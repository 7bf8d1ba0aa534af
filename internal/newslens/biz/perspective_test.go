package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/newslens/pkg/errors"
)

func TestAnalyzePreconditions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := storeArticle(t, e, "https://one.example.com/x", "Summit opens", "One News")
	an := NewAnalyzer(e.store.Articles, e.chat, AnalyzerConfig{}, e.metrics)

	eleven := make([]uint64, 11)
	for i := range eleven {
		eleven[i] = uint64(i + 1)
	}
	for _, ids := range [][]uint64{nil, {a.ID}, eleven} {
		_, err := an.Analyze(ctx, ids, "")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))
		assert.Contains(t, err.Error(), fmt.Sprintf("got %d", len(ids)))
	}

	_, err := an.Analyze(ctx, []uint64{404, a.ID}, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))
	assert.True(t, stderrors.Is(err, errors.ErrArticleNotFound))
	assert.Contains(t, err.Error(), "404")

	_, err = an.Analyze(ctx, []uint64{a.ID, a.ID}, "")
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))

	assert.Zero(t, e.chat.Calls())
}

func TestAnalyze(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := storeArticle(t, e, "https://one.example.com/x", "Summit opens", "One News")
	b := storeArticle(t, e, "https://two.example.com/y", "Leaders meet at summit", "Two Times")

	e.chat.respond = func(string) (string, error) {
		return fmt.Sprintf("```json\n%s\n```", fmt.Sprintf(`{
  "common_themes": ["summit agenda", " "],
  "unique_perspectives": [
    {"source": "One News", "article_id": %d, "perspective": "focuses on protests"},
    {"source": "two times", "article_id": 999, "perspective": "focuses on trade"}
  ],
  "bias_indicators": [{"source": "Two Times", "indicators": ["loaded adjectives"], "assessment": "mild"}],
  "coverage_gaps": ["climate commitments"]
}`, a.ID)), nil
	}
	an := NewAnalyzer(e.store.Articles, e.chat, AnalyzerConfig{BodyChars: 100}, e.metrics)

	res, err := an.Analyze(ctx, []uint64{a.ID, b.ID}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"summit agenda"}, res.CommonThemes)
	require.Len(t, res.UniquePerspectives, 2)
	assert.Equal(t, a.ID, res.UniquePerspectives[0].ArticleID)
	assert.Equal(t, b.ID, res.UniquePerspectives[1].ArticleID)
	require.Len(t, res.BiasIndicators, 1)
	assert.Equal(t, []string{"loaded adjectives"}, res.BiasIndicators[0].Indicators)
	assert.Equal(t, []string{"climate commitments"}, res.CoverageGaps)
	assert.Equal(t, "the main topic", res.AnalysisFocus)
	assert.Equal(t, []string{"One News", "Two Times"}, res.SourceDiversity)
	require.Len(t, res.ArticleDetails, 2)
	assert.Equal(t, "https://two.example.com/y", res.ArticleDetails[1].URL)

	prompt := e.chat.LastPrompt()
	assert.Contains(t, prompt, "Summit opens")
	assert.Contains(t, prompt, "Leaders meet at summit")
	assert.Contains(t, prompt, "coverage_gaps")

	// 每次请求都重新生成
	_, err = an.Analyze(ctx, []uint64{a.ID, b.ID}, "economic impact")
	require.NoError(t, err)
	assert.Equal(t, 2, e.chat.Calls())
	assert.Contains(t, e.chat.LastPrompt(), "economic impact")
}

func TestAnalyzeGenerationFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := storeArticle(t, e, "https://one.example.com/x", "Summit opens", "One News")
	b := storeArticle(t, e, "https://two.example.com/y", "Leaders meet", "Two Times")
	an := NewAnalyzer(e.store.Articles, e.chat, AnalyzerConfig{}, e.metrics)

	for _, reply := range []string{"no json at all", `{"unrelated": true}`, `{"common_themes": [`} {
		e.chat.respond = func(string) (string, error) { return reply, nil }
		_, err := an.Analyze(ctx, []uint64{a.ID, b.ID}, "")
		assert.True(t, errors.IsCode(err, errors.ErrGenerationFailed.Code), reply)
	}

	e.chat.respond = func(string) (string, error) { return "", fmt.Errorf("timeout") }
	_, err := an.Analyze(ctx, []uint64{a.ID, b.ID}, "")
	assert.True(t, errors.IsCode(err, errors.ErrGenerationFailed.Code))
}

func TestCompare(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := storeArticle(t, e, "https://one.example.com/x", "Summit opens", "One News")
	b := storeArticle(t, e, "https://two.example.com/y", "Leaders meet", "Two Times")
	e.chat.respond = func(string) (string, error) { return "Both agree the summit opened.", nil }
	an := NewAnalyzer(e.store.Articles, e.chat, AnalyzerConfig{}, e.metrics)

	cmp, err := an.Compare(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, cmp.Article1ID)
	assert.Equal(t, "Leaders meet", cmp.Article2Title)
	assert.Equal(t, "Both agree the summit opened.", cmp.ComparisonText)

	_, err = an.Compare(ctx, a.ID, a.ID)
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))
	_, err = an.Compare(ctx, a.ID, 777)
	assert.True(t, stderrors.Is(err, errors.ErrArticleNotFound))
}
