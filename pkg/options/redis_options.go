package options

import (
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RedisOptions)(nil)

// RedisOptions configure the inventory lookup cache. An empty Addr disables it.
type RedisOptions struct {
	Addr     string        `json:"addr" mapstructure:"addr"`
	Password string        `json:"password" mapstructure:"password"`
	DB       int           `json:"db" mapstructure:"db"`
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
}

func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		CacheTTL: 30 * time.Second,
	}
}

// Enabled reports whether a Redis address is configured.
func (o *RedisOptions) Enabled() bool {
	return o != nil && o.Addr != ""
}

func (o *RedisOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}

	errors := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func (o *RedisOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "redis.addr", o.Addr, "Redis address for the inventory cache (empty disables caching).")
	fs.StringVar(&o.Password, "redis.password", o.Password, "Redis password.")
	fs.IntVar(&o.DB, "redis.db", o.DB, "Redis database number.")
	fs.DurationVar(&o.CacheTTL, "redis.cache-ttl", o.CacheTTL, "How long inventory lookups are cached.")
}
