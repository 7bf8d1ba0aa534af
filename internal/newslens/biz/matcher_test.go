package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenMatcher(t *testing.T) {
	m := NewTokenMatcher()

	tests := []struct {
		name    string
		article string
		source  string
		want    bool
	}{
		{"空格差异", "Science Daily", "ScienceDaily", true},
		{"大小写与标点", "science-daily!", "Science Daily", true},
		{"包含关系", "The Verge", "Verge", true},
		{"feed 标题更长", "BBC News - World", "BBC News World", true},
		{"token 重叠", "Reuters Technology News", "Technology Reuters", true},
		{"短名不做子串匹配", "AP", "Apple Insider", false},
		{"同一机构不同频道", "BBC Sport", "BBC News", false},
		{"完全不同", "Nature", "Wired", false},
		{"空名称", "", "Wired", false},
		{"只有标点", "!!!", "---", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Matches(tt.article, tt.source))
			// 对称
			assert.Equal(t, tt.want, m.Matches(tt.source, tt.article))
		})
	}
}

func TestExactMatcher(t *testing.T) {
	assert.True(t, ExactMatcher.Matches("Wired", " wired "))
	assert.False(t, ExactMatcher.Matches("Science Daily", "ScienceDaily"))
	assert.False(t, ExactMatcher.Matches("", ""))
}
