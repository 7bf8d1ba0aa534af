// Package options holds the contracts shared by every option group.
package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group.
type IOptions interface {
	// Validate validates all the required options.
	Validate() []error

	// AddFlags adds flags related to given flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Completer is implemented by groups that derive defaults after flags and
// config have been read, e.g. api keys taken from the environment.
type Completer interface {
	Complete() error
}

// Join builds a flag prefix, e.g. Join("store", "sqlite") == "store.sqlite.".
func Join(prefixes ...string) string {
	parts := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".") + "."
}

// CompleteAll runs Complete on each named group and stops at the first
// failure. The error carries the group name.
func CompleteAll(groups map[string]Completer, order ...string) error {
	for _, name := range order {
		c, ok := groups[name]
		if !ok || c == nil {
			continue
		}
		if err := c.Complete(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
