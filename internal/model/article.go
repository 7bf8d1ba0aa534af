// Package model provides the data models of the newslens corpus.
package model

import (
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Article is a deduplicated news item. CanonicalURL is unique across the
// corpus; the ingestion path never deletes an Article.
type Article struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Title        string    `json:"title" gorm:"type:varchar(512);not null"`
	Body         string    `json:"body,omitempty" gorm:"type:text"`
	CanonicalURL string    `json:"canonical_url" gorm:"type:varchar(768);uniqueIndex;not null"`
	SourceName   string    `json:"source_name" gorm:"type:varchar(255);index"`
	Author       string    `json:"author,omitempty" gorm:"type:varchar(255)"`
	PublishedAt  time.Time `json:"published_at" gorm:"index"`
	IngestedAt   time.Time `json:"ingested_at" gorm:"index"`
	QualityScore float64   `json:"quality_score" gorm:"index"`
	// Embedded 为 false 时文章不参与语义检索，等待 reindex 重试。
	Embedded bool `json:"embedded" gorm:"index"`
}

// TableName specifies the table name for Article.
func (Article) TableName() string {
	return "news_articles"
}

// IndexText returns the text embedded for the article: the title followed
// by the leading window characters of the body.
func (a *Article) IndexText(window int) string {
	body := a.Body
	if window > 0 {
		if r := []rune(body); len(r) > window {
			body = string(r[:window])
		}
	}
	return a.Title + "\n\n" + body
}

// Source is an administratively configured feed.
type Source struct {
	ID      uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	Name    string `json:"name" gorm:"type:varchar(255);not null"`
	FeedURL string `json:"feed_url" gorm:"type:varchar(768);uniqueIndex;not null"`
	// IsActive 仅活跃的订阅源参与抓取。
	IsActive bool `json:"is_active"`
	// Reputation 质量评分的来源权重，范围 [0,2]，1 为中性。
	Reputation    float64    `json:"reputation"`
	Tags          []*Tag     `json:"tags,omitempty" gorm:"many2many:news_source_tags;"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	LastError     string     `json:"last_error,omitempty" gorm:"type:varchar(1024)"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Source.
func (Source) TableName() string {
	return "news_sources"
}

// HasAnyTag reports whether the source carries at least one of ids.
func (s *Source) HasAnyTag(ids sets.Set[uint64]) bool {
	for _, t := range s.Tags {
		if ids.Has(t.ID) {
			return true
		}
	}
	return false
}

// Tag groups sources. Deleting a Tag only removes association rows.
type Tag struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(64);uniqueIndex;not null"`
	Color     string    `json:"color,omitempty" gorm:"type:varchar(16)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Tag.
func (Tag) TableName() string {
	return "news_tags"
}
