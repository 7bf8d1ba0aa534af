package redis

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/newslens/pkg/component/storage"
	options "github.com/kart-io/newslens/pkg/options/redis"
)

// Factory builds cache clients from a fixed set of options.
type Factory struct {
	opts *options.Options
}

var _ storage.Factory = (*Factory)(nil)

func NewFactory(opts *options.Options) *Factory {
	return &Factory{opts: opts}
}

// Create connects and logs the initial pool state.
func (f *Factory) Create(ctx context.Context) (storage.Client, error) {
	c, err := NewWithContext(ctx, f.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	st := c.HealthWithStats(ctx)
	logger.Debugw("redis connected",
		"addr", f.opts.Addr(),
		"db", f.opts.Database,
		"latency", st.Latency.String(),
		"total_conns", st.TotalConns,
		"idle_conns", st.IdleConns,
	)
	return c, nil
}
