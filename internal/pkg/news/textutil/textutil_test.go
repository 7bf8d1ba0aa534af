package textutil_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/newslens/internal/pkg/news/textutil"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"短字符串", "hello", 10, "hello"},
		{"刚好长度", "hello", 5, "hello"},
		{"需要截断", "hello world", 5, "hello"},
		{"中文字符", "你好世界", 2, "你好"},
		{"零长度", "hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutil.Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("a", 250)
	s := textutil.Snippet(long, 200)
	assert.Equal(t, strings.Repeat("a", 200)+"...", s)

	assert.Equal(t, "short body", textutil.Snippet("  short \n body ", 200))
	assert.Equal(t, "新闻摘要...", textutil.Snippet("新闻摘要内容", 4))
}

func TestSentences(t *testing.T) {
	got := textutil.Sentences("First one. Second one! Third? 第四句。")
	assert.Equal(t, []string{"First one.", "Second one!", "Third?", "第四句。"}, got)
	assert.Empty(t, textutil.Sentences("   "))
}

func TestRatios(t *testing.T) {
	assert.InDelta(t, 1.0, textutil.UpperRatio("BUY NOW"), 0.0001)
	assert.InDelta(t, 0.5, textutil.UpperRatio("AbCd"), 0.0001)
	assert.Zero(t, textutil.UpperRatio("123 !!"))

	assert.InDelta(t, 0.5, textutil.PunctRatio("ab!!"), 0.0001)
	assert.Zero(t, textutil.PunctRatio(""))
}

func TestTokensAndSquash(t *testing.T) {
	assert.Equal(t, []string{"science", "daily"}, textutil.Tokens("Science-Daily!"))
	assert.Equal(t, "sciencedaily", textutil.Squash("Science Daily"))
	assert.Equal(t, textutil.Squash("ScienceDaily"), textutil.Squash("science  daily"))
}

func TestSplitByLines(t *testing.T) {
	input := "1. 第一点\n- second\n\n* third\n\"quoted\""
	assert.Equal(t, []string{"第一点", "second", "third", "quoted"}, textutil.SplitByLines(input))
}

func TestWordCountAndClamp(t *testing.T) {
	assert.Equal(t, 3, textutil.WordCount(" one two\nthree "))
	assert.Equal(t, 0.0, textutil.Clamp(-0.2, 0, 1))
	assert.Equal(t, 1.0, textutil.Clamp(1.3, 0, 1))
	assert.Equal(t, 0.4, textutil.Clamp(0.4, 0, 1))
}
