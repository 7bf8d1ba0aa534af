// Package sqlite provides SQLite options.
package sqlite

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/newslens/pkg/options"
)

// Options defines configuration options for the embedded SQLite store.
type Options struct {
	// Path is the database file, ":memory:" for an in-memory database.
	Path     string `json:"path" mapstructure:"path"`
	LogLevel int    `json:"log-level" mapstructure:"log-level"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Path:     "newslens.db",
		LogLevel: 1,
	}
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o.Path == "" {
		return []error{fmt.Errorf("sqlite.path is required")}
	}
	return nil
}

// AddFlags adds flags for SQLite options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "sqlite."
	fs.StringVar(&o.Path, p+"path", o.Path, "SQLite database file (\":memory:\" for in-memory).")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level (1 silent, 2 error, 3 warn, 4 info)")
}
