package model

import (
	"fmt"
	"time"
)

// SummaryVariant selects the length and structure of a generated summary.
type SummaryVariant string

const (
	// SummaryBrief 100-150 词，一段正文加 2-3 条要点，不做分析。
	SummaryBrief SummaryVariant = "brief"
	// SummaryComprehensive 250-400 词，要点、背景与意义。
	SummaryComprehensive SummaryVariant = "comprehensive"
	// SummaryAnalytical 300-500 词，摘要、分析、展望与待解问题。
	SummaryAnalytical SummaryVariant = "analytical"
)

// SummaryVariants lists every variant.
var SummaryVariants = []SummaryVariant{SummaryBrief, SummaryComprehensive, SummaryAnalytical}

// ParseSummaryVariant validates s.
func ParseSummaryVariant(s string) (SummaryVariant, error) {
	v := SummaryVariant(s)
	for _, known := range SummaryVariants {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown summary variant %q", s)
}

// Summary is a cached generated summary. At most one row exists per
// (ArticleID, Variant).
type Summary struct {
	ID          uint64         `json:"id" gorm:"primaryKey;autoIncrement"`
	ArticleID   uint64         `json:"article_id" gorm:"not null;uniqueIndex:idx_summary_article_variant"`
	Variant     SummaryVariant `json:"variant" gorm:"type:varchar(32);not null;uniqueIndex:idx_summary_article_variant"`
	Text        string         `json:"text" gorm:"type:text;not null"`
	WordCount   int            `json:"word_count"`
	Model       string         `json:"model,omitempty" gorm:"type:varchar(128)"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// TableName specifies the table name for Summary.
func (Summary) TableName() string {
	return "news_summaries"
}
