// Package storage defines the contract shared by the backing-store clients
// (relational databases, redis, milvus) so they can be health-checked and
// closed uniformly.
package storage

import (
	"context"
	"sort"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// HealthChecker reports nil when the backend is reachable.
type HealthChecker func() error

// HealthStatus is the result of a single health probe.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   error         `json:"-"`
	Message string        `json:"error,omitempty"`
}

// Client is implemented by every backing-store client.
type Client interface {
	// Name returns the storage type identifier, e.g. "postgres".
	Name() string
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
	// Health returns a checker usable without a context.
	Health() HealthChecker
}

// Factory creates clients from preconfigured options.
type Factory interface {
	Create(ctx context.Context) (Client, error)
}

// Probe pings every client and returns their statuses sorted by name.
func Probe(ctx context.Context, clients ...Client) []HealthStatus {
	out := make([]HealthStatus, 0, len(clients))
	for _, c := range clients {
		if c == nil {
			continue
		}
		start := time.Now()
		err := c.Ping(ctx)
		st := HealthStatus{
			Name:    c.Name(),
			Healthy: err == nil,
			Latency: time.Since(start),
			Error:   err,
		}
		if err != nil {
			st.Message = err.Error()
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CloseAll closes every client and aggregates the errors.
func CloseAll(clients ...Client) error {
	var errs []error
	for _, c := range clients {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}
