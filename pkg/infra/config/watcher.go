// Package config watches the loaded config file and notifies subscribers
// when it changes.
package config

import (
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"github.com/spf13/viper"
)

// ChangeHandler receives the reloaded viper instance. A returned error is
// logged and does not stop other handlers.
type ChangeHandler func(v *viper.Viper) error

// Watcher fans config file changes out to subscribers.
type Watcher struct {
	v        *viper.Viper
	mu       sync.RWMutex
	handlers map[string]ChangeHandler
	watching bool
}

// NewWatcher creates a Watcher over v. Nothing is watched until Start.
func NewWatcher(v *viper.Viper) *Watcher {
	return &Watcher{v: v, handlers: make(map[string]ChangeHandler)}
}

// Subscribe registers h under id, replacing an earlier handler with the
// same id.
func (w *Watcher) Subscribe(id string, h ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = h
}

func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.handlers, id)
}

// Start watches the config file viper read. It reports false when no file
// was loaded, in which case there is nothing to watch. Calling Start again
// is a no-op.
func (w *Watcher) Start() bool {
	if w.v.ConfigFileUsed() == "" {
		return false
	}
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return true
	}
	w.watching = true
	w.mu.Unlock()

	w.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Infow("config file changed", "file", e.Name, "op", e.Op.String())
		w.Notify()
	})
	w.v.WatchConfig()
	logger.Infow("watching config file", "file", w.v.ConfigFileUsed())
	return true
}

// Notify runs every handler in id order against the current config.
func (w *Watcher) Notify() {
	w.mu.RLock()
	ids := make([]string, 0, len(w.handlers))
	for id := range w.handlers {
		ids = append(ids, id)
	}
	handlers := make(map[string]ChangeHandler, len(w.handlers))
	for id, h := range w.handlers {
		handlers[id] = h
	}
	w.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := handlers[id](w.v); err != nil {
			logger.Errorw("config change rejected", "handler", id, "error", err.Error())
		}
	}
}
