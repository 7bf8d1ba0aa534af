// Package store selects and configures the relational record store.
package store

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/newslens/pkg/options"
	mysqlopts "github.com/kart-io/newslens/pkg/options/mysql"
	postgresopts "github.com/kart-io/newslens/pkg/options/postgres"
	sqliteopts "github.com/kart-io/newslens/pkg/options/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var _ options.IOptions = (*Options)(nil)

// Options chooses one driver and carries the options of all of them.
type Options struct {
	Driver   string                `json:"driver" mapstructure:"driver"`
	SQLite   *sqliteopts.Options   `json:"sqlite" mapstructure:"sqlite"`
	Postgres *postgresopts.Options `json:"postgres" mapstructure:"postgres"`
	MySQL    *mysqlopts.Options    `json:"mysql" mapstructure:"mysql"`
}

// NewOptions returns sqlite-backed defaults.
func NewOptions() *Options {
	return &Options{
		Driver:   DriverSQLite,
		SQLite:   sqliteopts.NewOptions(),
		Postgres: postgresopts.NewOptions(),
		MySQL:    mysqlopts.NewOptions(),
	}
}

// AddFlags adds the driver selector and every driver's flags.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Driver, options.Join(prefixes...)+"store.driver", o.Driver, "Record store driver (sqlite|postgres|mysql).")
	o.SQLite.AddFlags(fs, prefixes...)
	o.Postgres.AddFlags(fs, prefixes...)
	o.MySQL.AddFlags(fs, prefixes...)
}

// Validate validates only the selected driver.
func (o *Options) Validate() []error {
	switch o.Driver {
	case DriverSQLite:
		return o.SQLite.Validate()
	case DriverPostgres:
		return o.Postgres.Validate()
	case DriverMySQL:
		return o.MySQL.Validate()
	default:
		return []error{fmt.Errorf("unsupported store.driver %q", o.Driver)}
	}
}
