package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/pkg/errors"
)

// StatsStore runs the aggregate queries behind the stats command.
type StatsStore struct {
	db *gorm.DB
}

func (s *StatsStore) builder() sq.StatementBuilderType {
	if s.db.Dialector.Name() == "postgres" {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (s *StatsStore) count(ctx context.Context, b sq.SelectBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Collect gathers corpus statistics. now anchors the 24 hour window.
func (s *StatsStore) Collect(ctx context.Context, now time.Time) (*model.Stats, error) {
	b := s.builder()
	articles := model.Article{}.TableName()

	st := &model.Stats{BySource: make(map[string]int64)}
	counts := []struct {
		dst *int64
		q   sq.SelectBuilder
	}{
		{&st.TotalArticles, b.Select("COUNT(*)").From(articles)},
		{&st.EmbeddedArticles, b.Select("COUNT(*)").From(articles).Where(sq.Eq{"embedded": true})},
		{&st.Last24Hours, b.Select("COUNT(*)").From(articles).Where(sq.GtOrEq{"ingested_at": now.Add(-24 * time.Hour)})},
		{&st.Sources, b.Select("COUNT(*)").From(model.Source{}.TableName())},
		{&st.ActiveSources, b.Select("COUNT(*)").From(model.Source{}.TableName()).Where(sq.Eq{"is_active": true})},
		{&st.Tags, b.Select("COUNT(*)").From(model.Tag{}.TableName())},
		{&st.Summaries, b.Select("COUNT(*)").From(model.Summary{}.TableName())},
	}
	for _, c := range counts {
		n, err := s.count(ctx, c.q)
		if err != nil {
			return nil, errors.ErrDatabase.WithCause(err)
		}
		*c.dst = n
	}
	st.PendingEmbedding = st.TotalArticles - st.EmbeddedArticles

	query, args, err := b.Select("source_name", "COUNT(*) AS n").
		From(articles).
		GroupBy("source_name").
		OrderBy("n DESC", "source_name ASC").
		ToSql()
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	var rows []struct {
		SourceName string
		N          int64
	}
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	for _, r := range rows {
		st.BySource[r.SourceName] = r.N
	}
	return st, nil
}
