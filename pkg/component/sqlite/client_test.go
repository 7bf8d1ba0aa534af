package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/newslens/pkg/component/storage"
	options "github.com/kart-io/newslens/pkg/options/sqlite"
)

func TestNewWithContext(t *testing.T) {
	opts := options.NewOptions()
	opts.Path = filepath.Join(t.TempDir(), "test.db")

	client, err := NewWithContext(context.Background(), opts)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "sqlite", client.Name())
	assert.NoError(t, client.Health()())

	var one int
	require.NoError(t, client.DB().Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	stats, err := client.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)

	statuses := storage.Probe(context.Background(), client)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Healthy)
}

func TestNewWithContextInvalid(t *testing.T) {
	_, err := NewWithContext(context.Background(), nil)
	assert.Error(t, err)

	opts := options.NewOptions()
	opts.Path = ""
	_, err = NewWithContext(context.Background(), opts)
	assert.Error(t, err)
}
