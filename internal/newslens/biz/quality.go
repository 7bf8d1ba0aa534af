package biz

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/newslens/internal/pkg/news/textutil"
)

// Spam signals lowering the quality score.
const (
	SignalShouting    = "excessive_capitalization"
	SignalPunctuation = "excessive_punctuation"
	SignalPromotional = "promotional_content"
	SignalRepetitive  = "repetitive_content"
)

var promotionalKeywords = []string{
	"click here", "buy now", "limited time", "act now", "free money",
	"make money fast", "get rich", "work from home", "lose weight fast",
}

// QualityInput carries the fields the score depends on.
type QualityInput struct {
	Title      string
	Body       string
	Author     string
	HasDate    bool
	Reputation float64
}

// Quality is a score in [0,10] with the spam signals that lowered it.
type Quality struct {
	Score   float64  `json:"score"`
	Signals []string `json:"signals,omitempty"`
}

// QualityScorer computes a deterministic quality score. It never rejects an
// article.
type QualityScorer struct {
	// FullLength 正文达到该长度（字符）时长度分满分。
	FullLength int
	// SignalPenalty 每个垃圾信号扣除的分数。
	SignalPenalty float64
}

// NewQualityScorer returns a scorer with default weights.
func NewQualityScorer() *QualityScorer {
	return &QualityScorer{FullLength: 2000, SignalPenalty: 2}
}

// Score rates in. Content length contributes up to 4 points, title, author
// and date 1.5 each, and a 1.5 base; spam signals subtract SignalPenalty
// each. The result is weighted by the source reputation (1 is neutral) and
// clamped to [0,10].
func (q *QualityScorer) Score(in QualityInput) Quality {
	score := 1.5

	length := float64(utf8.RuneCountInString(in.Body))
	score += 4 * math.Min(length/float64(q.FullLength), 1)

	if strings.TrimSpace(in.Title) != "" {
		score += 1.5
	}
	if strings.TrimSpace(in.Author) != "" {
		score += 1.5
	}
	if in.HasDate {
		score += 1.5
	}

	signals := SpamSignals(in.Title, in.Body)
	score -= float64(len(signals)) * q.SignalPenalty

	rep := in.Reputation
	if rep < 0 {
		rep = 0
	}
	score *= rep

	// 保留两位小数，保证重复打分结果可比较
	score = math.Round(textutil.Clamp(score, 0, 10)*100) / 100
	return Quality{Score: score, Signals: signals}
}

// SpamSignals returns the spam signals found in an entry.
func SpamSignals(title, body string) []string {
	var signals []string
	if textutil.UpperRatio(title) > 0.7 && len(textutil.Tokens(title)) > 1 {
		signals = append(signals, SignalShouting)
	}
	if textutil.PunctRatio(title) > 0.3 {
		signals = append(signals, SignalPunctuation)
	}

	combined := strings.ToLower(title + " " + body)
	for _, kw := range promotionalKeywords {
		if strings.Contains(combined, kw) {
			signals = append(signals, SignalPromotional)
			break
		}
	}

	if isRepetitive(body) {
		signals = append(signals, SignalRepetitive)
	}
	return signals
}

// isRepetitive reports two sentences sharing their first five words.
func isRepetitive(body string) bool {
	if utf8.RuneCountInString(body) < 100 {
		return false
	}
	sentences := textutil.Sentences(body)
	if len(sentences) < 3 {
		return false
	}

	prefixes := make(map[string]bool)
	for _, s := range sentences {
		s = strings.ToLower(strings.TrimRight(s, ".!?。！？"))
		if utf8.RuneCountInString(s) <= 10 {
			continue
		}
		words := strings.Fields(s)
		if len(words) > 5 {
			words = words[:5]
		}
		key := strings.Join(words, " ")
		if prefixes[key] {
			return true
		}
		prefixes[key] = true
	}
	return false
}
