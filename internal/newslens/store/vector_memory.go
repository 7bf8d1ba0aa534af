package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kart-io/newslens/pkg/cache"
)

// MemoryIndex is an exact in-process VectorIndex.
type MemoryIndex struct {
	records *cache.MemoryCache[uint64, *VectorRecord]

	mu  sync.RWMutex
	dim int
}

var _ VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an index for vectors of the given dimension. A
// dimension of 0 accepts the dimension of the first inserted vector.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		records: cache.NewMemoryCache[uint64, *VectorRecord](),
		dim:     dim,
	}
}

// Upsert stores records, replacing existing vectors of the same article.
func (m *MemoryIndex) Upsert(_ context.Context, records []*VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if m.dim == 0 {
			m.dim = len(r.Vector)
		}
		if len(r.Vector) != m.dim {
			return fmt.Errorf("article %d: vector dimension %d, want %d", r.ArticleID, len(r.Vector), m.dim)
		}
		v := make([]float32, len(r.Vector))
		copy(v, r.Vector)
		cp := *r
		cp.Vector = v
		m.records.Set(r.ArticleID, &cp)
	}
	return nil
}

// Search scans every record. Equal scores are ordered by article id so the
// result is deterministic.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int, filter *VectorFilter) ([]*VectorHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	dim := m.dim
	m.mu.RUnlock()
	if dim != 0 && len(vector) != dim {
		return nil, fmt.Errorf("query dimension %d, want %d", len(vector), dim)
	}

	var hits []*VectorHit
	m.records.Range(func(id uint64, r *VectorRecord) bool {
		if filter != nil {
			if !filter.PublishedFrom.IsZero() && r.PublishedAt.Before(filter.PublishedFrom) {
				return true
			}
			if !filter.PublishedTo.IsZero() && r.PublishedAt.After(filter.PublishedTo) {
				return true
			}
		}
		hits = append(hits, &VectorHit{
			ArticleID:   id,
			Score:       Cosine(vector, r.Vector),
			SourceName:  r.SourceName,
			PublishedAt: r.PublishedAt,
		})
		return ctx.Err() == nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ArticleID < hits[j].ArticleID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Delete removes the vectors of the given articles.
func (m *MemoryIndex) Delete(_ context.Context, articleIDs []uint64) error {
	for _, id := range articleIDs {
		m.records.Del(id)
	}
	return nil
}

// Count returns the number of stored vectors.
func (m *MemoryIndex) Count(context.Context) (int64, error) {
	return int64(m.records.Len()), nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
