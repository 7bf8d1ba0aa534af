package biz

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kart-io/newslens/internal/pkg/news/textutil"
)

// SourceMatcher decides whether the free-text source label of an article
// refers to a configured source. Implementations must be pure.
type SourceMatcher interface {
	Matches(articleSource, sourceName string) bool
}

// MatcherFunc adapts a function to SourceMatcher.
type MatcherFunc func(articleSource, sourceName string) bool

// Matches calls f.
func (f MatcherFunc) Matches(articleSource, sourceName string) bool {
	return f(articleSource, sourceName)
}

// ExactMatcher compares names case-insensitively.
var ExactMatcher = MatcherFunc(func(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
})

// 不参与 token 重叠计算的常见词
var matcherStopwords = sets.New("the", "a", "an", "of", "and", "on", "in")

// TokenMatcher matches names after case, whitespace and punctuation
// normalization, by squashed containment or by token overlap.
type TokenMatcher struct {
	// MinContainLen 子串匹配时较短一方的最小长度，避免 "ap" 命中 "apple"。
	MinContainLen int
	// MinJaccard token 集合 Jaccard 相似度阈值。
	MinJaccard float64
}

// NewTokenMatcher returns a TokenMatcher with default thresholds.
func NewTokenMatcher() *TokenMatcher {
	return &TokenMatcher{MinContainLen: 4, MinJaccard: 0.5}
}

var _ SourceMatcher = (*TokenMatcher)(nil)

// Matches implements SourceMatcher.
func (m *TokenMatcher) Matches(articleSource, sourceName string) bool {
	a, b := textutil.Squash(articleSource), textutil.Squash(sourceName)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= m.MinContainLen && strings.Contains(long, short) {
		return true
	}

	ta, tb := tokenSet(articleSource), tokenSet(sourceName)
	if ta.Len() == 0 || tb.Len() == 0 {
		return false
	}
	inter := ta.Intersection(tb).Len()
	union := ta.Union(tb).Len()
	return float64(inter)/float64(union) >= m.MinJaccard
}

func tokenSet(s string) sets.Set[string] {
	out := sets.New[string]()
	for _, tok := range textutil.Tokens(s) {
		if !matcherStopwords.Has(tok) {
			out.Insert(tok)
		}
	}
	return out
}
