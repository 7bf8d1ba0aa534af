package store

import (
	"context"
	"time"

	"github.com/kart-io/newslens/pkg/component/milvus"
)

// MilvusIndex is a VectorIndex backed by a Milvus collection. The time
// filter is pushed down as a boolean expression on published_unix.
type MilvusIndex struct {
	client     *milvus.Client
	collection string
}

var _ VectorIndex = (*MilvusIndex)(nil)

// NewMilvusIndex ensures the collection exists and returns the index.
func NewMilvusIndex(ctx context.Context, client *milvus.Client, collection string, dim int) (*MilvusIndex, error) {
	if err := client.EnsureCollection(ctx, collection, dim); err != nil {
		return nil, err
	}
	return &MilvusIndex{client: client, collection: collection}, nil
}

// Upsert writes the records.
func (m *MilvusIndex) Upsert(ctx context.Context, records []*VectorRecord) error {
	rows := make([]milvus.Row, len(records))
	for i, r := range records {
		rows[i] = milvus.Row{
			ArticleID:     int64(r.ArticleID),
			Embedding:     r.Vector,
			SourceName:    r.SourceName,
			PublishedUnix: r.PublishedAt.Unix(),
			Snippet:       r.Snippet,
		}
	}
	return m.client.Upsert(ctx, m.collection, rows)
}

// Search queries the collection.
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, topK int, filter *VectorFilter) ([]*VectorHit, error) {
	expr := ""
	if filter != nil {
		expr = milvus.PublishedRangeFilter(filter.PublishedFrom, filter.PublishedTo)
	}
	hits, err := m.client.Search(ctx, m.collection, vector, topK, expr)
	if err != nil {
		return nil, err
	}
	out := make([]*VectorHit, len(hits))
	for i, h := range hits {
		out[i] = &VectorHit{
			ArticleID:   uint64(h.ArticleID),
			Score:       h.Score,
			SourceName:  h.SourceName,
			PublishedAt: time.Unix(h.PublishedUnix, 0).UTC(),
		}
	}
	return out, nil
}

// Delete removes vectors by article id.
func (m *MilvusIndex) Delete(ctx context.Context, articleIDs []uint64) error {
	ids := make([]int64, len(articleIDs))
	for i, id := range articleIDs {
		ids[i] = int64(id)
	}
	return m.client.Delete(ctx, m.collection, ids)
}

// Count returns the number of stored vectors.
func (m *MilvusIndex) Count(ctx context.Context) (int64, error) {
	return m.client.Count(ctx, m.collection)
}
