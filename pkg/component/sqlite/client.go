// Package sqlite opens embedded SQLite databases through gorm using the
// pure-Go glebarez driver.
package sqlite

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/newslens/pkg/component/database"
	options "github.com/kart-io/newslens/pkg/options/sqlite"
)

// NewWithContext validates opts and opens the database file. A single
// connection is used: SQLite serializes writers anyway and ":memory:"
// databases are per-connection.
func NewWithContext(ctx context.Context, opts *options.Options) (*database.Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("sqlite options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid sqlite options: %w", utilerrors.NewAggregate(errs))
	}

	return database.Open(ctx, "sqlite", sqlite.Open(opts.Path), database.PoolConfig{
		MaxOpenConnections: 1,
	}, opts.LogLevel)
}
