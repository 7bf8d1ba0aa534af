// Package postgres opens PostgreSQL connections through gorm.
package postgres

import (
	"context"
	"fmt"

	postgresdriver "gorm.io/driver/postgres"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/newslens/pkg/component/database"
	options "github.com/kart-io/newslens/pkg/options/postgres"
)

// NewWithContext validates opts and opens a PostgreSQL connection.
func NewWithContext(ctx context.Context, opts *options.Options) (*database.Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("postgres options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid postgres options: %w", utilerrors.NewAggregate(errs))
	}

	return database.Open(ctx, "postgres", postgresdriver.Open(BuildDSN(opts)), database.PoolConfig{
		MaxIdleConnections:    opts.MaxIdleConnections,
		MaxOpenConnections:    opts.MaxOpenConnections,
		MaxConnectionLifeTime: opts.MaxConnectionLifeTime,
	}, opts.LogLevel)
}
