package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kart-io/newslens/internal/model"
	"github.com/kart-io/newslens/pkg/component/database"
	"github.com/kart-io/newslens/pkg/component/mysql"
	"github.com/kart-io/newslens/pkg/component/postgres"
	"github.com/kart-io/newslens/pkg/component/sqlite"
	storeopts "github.com/kart-io/newslens/pkg/options/store"
)

// Store groups the relational stores sharing one connection.
type Store struct {
	db *gorm.DB

	Articles  *ArticleStore
	Sources   *SourceStore
	Tags      *TagStore
	Summaries *SummaryStore
	Stats     *StatsStore
}

// Open connects to the database selected by opts.Driver.
func Open(ctx context.Context, opts *storeopts.Options) (*database.Client, error) {
	switch opts.Driver {
	case storeopts.DriverSQLite:
		return sqlite.NewWithContext(ctx, opts.SQLite)
	case storeopts.DriverPostgres:
		return postgres.NewWithContext(ctx, opts.Postgres)
	case storeopts.DriverMySQL:
		return mysql.NewWithContext(ctx, opts.MySQL)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}
}

// New wires the stores on db and migrates the schema.
func New(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return &Store{
		db:        db,
		Articles:  &ArticleStore{db: db},
		Sources:   &SourceStore{db: db},
		Tags:      &TagStore{db: db},
		Summaries: &SummaryStore{db: db},
		Stats:     &StatsStore{db: db},
	}, nil
}

// Migrate creates or updates the tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&model.Article{},
		&model.Tag{},
		&model.Source{},
		&model.Summary{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}
