package store

import (
	"context"
	"time"
)

// VectorRecord is the embedding of one article. It is a derived copy and
// must be deleted when the article is purged.
type VectorRecord struct {
	ArticleID   uint64
	Vector      []float32
	SourceName  string
	PublishedAt time.Time
	Snippet     string
}

// VectorFilter restricts a search by publication time. Zero bounds are open.
type VectorFilter struct {
	PublishedFrom time.Time
	PublishedTo   time.Time
}

// VectorHit is a nearest-neighbour match. Score is the raw cosine
// similarity in [-1, 1].
type VectorHit struct {
	ArticleID   uint64
	Score       float32
	SourceName  string
	PublishedAt time.Time
}

// VectorIndex stores one vector per article and answers cosine
// nearest-neighbour queries, best match first.
type VectorIndex interface {
	Upsert(ctx context.Context, records []*VectorRecord) error
	Search(ctx context.Context, vector []float32, topK int, filter *VectorFilter) ([]*VectorHit, error)
	Delete(ctx context.Context, articleIDs []uint64) error
	Count(ctx context.Context) (int64, error)
}
