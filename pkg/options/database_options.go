package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DatabaseOptions)(nil)

// DatabaseOptions select and configure the SQL store holding users, vehicles
// and the audit log.
type DatabaseOptions struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver" mapstructure:"driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`

	// PostgresDSN is the connection string used by the postgres driver.
	PostgresDSN string `json:"postgres-dsn" mapstructure:"postgres-dsn"`

	MaxOpenConns int `json:"max-open-conns" mapstructure:"max-open-conns"`
}

func NewDatabaseOptions() *DatabaseOptions {
	return &DatabaseOptions{
		Driver:       "sqlite",
		SQLitePath:   "seawatch.db",
		MaxOpenConns: 10,
	}
}

func (o *DatabaseOptions) Validate() []error {
	errors := []error{}

	switch o.Driver {
	case "sqlite":
		if o.SQLitePath == "" {
			errors = append(errors, fmt.Errorf("--database.sqlite-path is required for the sqlite driver"))
		}
	case "postgres":
		if o.PostgresDSN == "" {
			errors = append(errors, fmt.Errorf("--database.postgres-dsn is required for the postgres driver"))
		}
	default:
		errors = append(errors, fmt.Errorf("unsupported --database.driver %q", o.Driver))
	}

	return errors
}

func (o *DatabaseOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Driver, "database.driver", o.Driver, "SQL driver: 'sqlite' or 'postgres'.")
	fs.StringVar(&o.SQLitePath, "database.sqlite-path", o.SQLitePath, "SQLite database file.")
	fs.StringVar(&o.PostgresDSN, "database.postgres-dsn", o.PostgresDSN, "PostgreSQL connection string.")
	fs.IntVar(&o.MaxOpenConns, "database.max-open-conns", o.MaxOpenConns, "Maximum open connections (sqlite always uses 1).")
}
