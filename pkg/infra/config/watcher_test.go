package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherWithoutFile(t *testing.T) {
	w := NewWatcher(viper.New())
	assert.False(t, w.Start())
}

func TestWatcherNotifyOrder(t *testing.T) {
	v := viper.New()
	v.Set("news.ingest.interval", "15m")
	w := NewWatcher(v)

	var calls []string
	w.Subscribe("b", func(*viper.Viper) error {
		calls = append(calls, "b")
		return nil
	})
	w.Subscribe("a", func(v *viper.Viper) error {
		calls = append(calls, "a:"+v.GetString("news.ingest.interval"))
		return errors.New("rejected")
	})
	w.Subscribe("c", func(*viper.Viper) error {
		calls = append(calls, "c")
		return nil
	})
	w.Unsubscribe("c")

	w.Notify()
	assert.Equal(t, []string{"a:15m", "b"}, calls)
}

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newslens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("news:\n  ingest:\n    interval: 15m\n"), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	got := make(chan string, 4)
	w := NewWatcher(v)
	w.Subscribe("news", func(v *viper.Viper) error {
		got <- v.GetString("news.ingest.interval")
		return nil
	})
	require.True(t, w.Start())
	assert.True(t, w.Start())

	require.NoError(t, os.WriteFile(path, []byte("news:\n  ingest:\n    interval: 5m\n"), 0o600))
	assert.Eventually(t, func() bool {
		select {
		case s := <-got:
			return s == "5m"
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}
