package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/internal/newslens/store"
)

// StatsCollector reports corpus statistics.
type StatsCollector struct {
	stats   *store.StatsStore
	indexer *Indexer
	now     func() time.Time
}

// NewStatsCollector creates a StatsCollector.
func NewStatsCollector(st *store.Store, indexer *Indexer) *StatsCollector {
	return &StatsCollector{stats: st.Stats, indexer: indexer, now: time.Now}
}

// Collect gathers the statistics. An unreachable vector index leaves
// VectorEntries at -1.
func (s *StatsCollector) Collect(ctx context.Context) (*model.Stats, error) {
	st, err := s.stats.Collect(ctx, s.now().UTC())
	if err != nil {
		return nil, err
	}
	n, err := s.indexer.Count(ctx)
	if err != nil {
		logger.Warnw("count vector records failed", "error", err.Error())
		n = -1
	}
	st.VectorEntries = n
	return st, nil
}
