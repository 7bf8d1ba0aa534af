// Package database wraps a gorm connection as a storage.Client. The driver
// packages (postgres, mysql, sqlite) only differ in how they build the
// dialector.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/newslens/pkg/component/storage"
)

// PoolConfig configures the underlying sql.DB pool. Zero values keep the
// database/sql defaults.
type PoolConfig struct {
	MaxIdleConnections    int
	MaxOpenConnections    int
	MaxConnectionLifeTime time.Duration
}

// Client wraps gorm.DB and implements storage.Client.
type Client struct {
	db   *gorm.DB
	name string
}

var _ storage.Client = (*Client)(nil)

// GormLogLevel maps the numeric log-level option to a gorm log level:
// 1 silent, 2 error, 3 warn, 4 info.
func GormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

// Open opens the dialector, applies the pool configuration and pings.
func Open(ctx context.Context, name string, dialector gorm.Dialector, pool PoolConfig, logLevel int) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(GormLogLevel(logLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if pool.MaxIdleConnections > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConnections)
	}
	if pool.MaxOpenConnections > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConnections)
	}
	if pool.MaxConnectionLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(pool.MaxConnectionLifeTime)
	}

	client := &Client{db: db, name: name}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", name, err)
	}
	return client, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Name returns the driver name.
func (c *Client) Name() string {
	return c.name
}

// Ping verifies the connection with a 5s cap.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%s ping failed: %w", c.name, err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB for closing: %w", err)
	}
	return sqlDB.Close()
}

// Health returns a HealthChecker function.
func (c *Client) Health() storage.HealthChecker {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return c.Ping(ctx)
	}
}

// Stats returns connection pool statistics.
func (c *Client) Stats() (sql.DBStats, error) {
	sqlDB, err := c.db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}
