// Package mysql opens MySQL connections through gorm.
package mysql

import (
	"context"
	"fmt"

	mysqldriver "gorm.io/driver/mysql"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/newslens/pkg/component/database"
	options "github.com/kart-io/newslens/pkg/options/mysql"
)

// NewWithContext validates opts and opens a MySQL connection.
func NewWithContext(ctx context.Context, opts *options.Options) (*database.Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mysql options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid mysql options: %w", utilerrors.NewAggregate(errs))
	}

	return database.Open(ctx, "mysql", mysqldriver.Open(opts.DSN()), database.PoolConfig{
		MaxIdleConnections:    opts.MaxIdleConnections,
		MaxOpenConnections:    opts.MaxOpenConnections,
		MaxConnectionLifeTime: opts.MaxConnectionLifeTime,
	}, opts.LogLevel)
}
