package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const cleanBody = "Researchers at the institute published results on Tuesday. " +
	"The model flagged early signs of disease in scans. " +
	"Independent experts called the findings promising but preliminary."

func TestQualityScore(t *testing.T) {
	q := NewQualityScorer()

	full := q.Score(QualityInput{
		Title:      "AI model spots disease early",
		Body:       strings.Repeat("x", 2000),
		Author:     "Jane Doe",
		HasDate:    true,
		Reputation: 1,
	})
	assert.Equal(t, 10.0, full.Score)
	assert.Empty(t, full.Signals)

	bare := q.Score(QualityInput{Title: "Title here", Body: cleanBody, Reputation: 1})
	assert.Greater(t, bare.Score, 3.0)
	assert.Less(t, bare.Score, full.Score)

	// 来源权重
	weighted := q.Score(QualityInput{Title: "Title here", Body: cleanBody, Reputation: 2})
	assert.InDelta(t, bare.Score*2, weighted.Score, 0.011)
	zero := q.Score(QualityInput{Title: "Title here", Body: cleanBody, Reputation: 0})
	assert.Zero(t, zero.Score)

	// 确定性
	assert.Equal(t, bare, q.Score(QualityInput{Title: "Title here", Body: cleanBody, Reputation: 1}))
}

func TestQualityClamp(t *testing.T) {
	q := NewQualityScorer()
	spam := q.Score(QualityInput{
		Title:      "BUY NOW!!!! FREE $$$ MONEY!!!!",
		Body:       "Click here. Click here to win big today. Click here to win big tomorrow. Click here to win big forever.",
		Reputation: 1,
	})
	assert.Zero(t, spam.Score)
	assert.ElementsMatch(t, []string{SignalShouting, SignalPunctuation, SignalPromotional, SignalRepetitive}, spam.Signals)

	high := q.Score(QualityInput{Title: "T", Body: strings.Repeat("y", 4000), Author: "a", HasDate: true, Reputation: 2})
	assert.Equal(t, 10.0, high.Score)
}

func TestSpamSignals(t *testing.T) {
	assert.Empty(t, SpamSignals("NASA launches probe", cleanBody))
	assert.Equal(t, []string{SignalShouting}, SpamSignals("BREAKING NEWS TODAY", cleanBody))
	assert.Equal(t, []string{SignalPunctuation}, SpamSignals("Wow?!?! ...", cleanBody))
	assert.Equal(t, []string{SignalPromotional}, SpamSignals("Offer", "Limited time deal on "+cleanBody))
}
