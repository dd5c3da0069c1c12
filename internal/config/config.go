// Package config loads service settings from an optional YAML file, then
// ESCROW_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/escrow/internal/logging"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	UserID  string        `mapstructure:"user_id" yaml:"user_id"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Lock    LockConfig    `mapstructure:"lock" yaml:"lock"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Tracker TrackerConfig `mapstructure:"tracker" yaml:"tracker"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

type StoreConfig struct {
	Driver   string         `mapstructure:"driver" yaml:"driver"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

type PostgresConfig struct {
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
	Migrate bool   `mapstructure:"migrate" yaml:"migrate"`
}

// LockConfig enables cross-replica locking through Redis.
type LockConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TrackerConfig tunes compare-and-set retries on stage advancement.
type TrackerConfig struct {
	RetryInitial time.Duration `mapstructure:"retry_initial" yaml:"retry_initial"`
	MaxRetries   uint64        `mapstructure:"max_retries" yaml:"max_retries"`
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	return &Config{
		UserID:  "user-1",
		HTTP:    HTTPConfig{Addr: ":8080"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
		Store: StoreConfig{
			Driver: DriverMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "escrow:",
			},
			Postgres: PostgresConfig{Migrate: true},
		},
		Lock:    LockConfig{TTL: 30 * time.Second},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracker: TrackerConfig{RetryInitial: 10 * time.Millisecond, MaxRetries: 5},
	}
}

// binding maps a dotted key to the flag that may override it and the field it sets.
type binding struct {
	key   string
	flag  string
	apply func(c *Config, v *viper.Viper)
}

var bindings = []binding{
	{"user_id", "user", func(c *Config, v *viper.Viper) { c.UserID = v.GetString("user_id") }},
	{"http.addr", "addr", func(c *Config, v *viper.Viper) { c.HTTP.Addr = v.GetString("http.addr") }},
	{"metrics.enabled", "metrics", func(c *Config, v *viper.Viper) { c.Metrics.Enabled = v.GetBool("metrics.enabled") }},
	{"metrics.addr", "metrics-addr", func(c *Config, v *viper.Viper) { c.Metrics.Addr = v.GetString("metrics.addr") }},
	{"store.driver", "store", func(c *Config, v *viper.Viper) { c.Store.Driver = v.GetString("store.driver") }},
	{"store.redis.addr", "redis-addr", func(c *Config, v *viper.Viper) { c.Store.Redis.Addr = v.GetString("store.redis.addr") }},
	{"store.redis.password", "", func(c *Config, v *viper.Viper) { c.Store.Redis.Password = v.GetString("store.redis.password") }},
	{"store.redis.db", "", func(c *Config, v *viper.Viper) { c.Store.Redis.DB = v.GetInt("store.redis.db") }},
	{"store.redis.prefix", "", func(c *Config, v *viper.Viper) { c.Store.Redis.Prefix = v.GetString("store.redis.prefix") }},
	{"store.postgres.dsn", "postgres-dsn", func(c *Config, v *viper.Viper) { c.Store.Postgres.DSN = v.GetString("store.postgres.dsn") }},
	{"store.postgres.migrate", "", func(c *Config, v *viper.Viper) { c.Store.Postgres.Migrate = v.GetBool("store.postgres.migrate") }},
	{"lock.enabled", "lock", func(c *Config, v *viper.Viper) { c.Lock.Enabled = v.GetBool("lock.enabled") }},
	{"lock.ttl", "", func(c *Config, v *viper.Viper) { c.Lock.TTL = v.GetDuration("lock.ttl") }},
	{"log.level", "log-level", func(c *Config, v *viper.Viper) { c.Log.Level = v.GetString("log.level") }},
	{"log.format", "log-format", func(c *Config, v *viper.Viper) { c.Log.Format = v.GetString("log.format") }},
	{"tracker.retry_initial", "", func(c *Config, v *viper.Viper) { c.Tracker.RetryInitial = v.GetDuration("tracker.retry_initial") }},
	{"tracker.max_retries", "", func(c *Config, v *viper.Viper) { c.Tracker.MaxRetries = v.GetUint64("tracker.max_retries") }},
}

// Load builds the configuration. path may be empty; flags may be nil.
// Only flags the user actually changed override file and environment values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix("ESCROW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		if err := v.BindEnv(b.key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", b.key, err)
		}
		if flags != nil && b.flag != "" {
			if f := flags.Lookup(b.flag); f != nil {
				if err := v.BindPFlag(b.key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", b.flag, err)
				}
			}
		}
	}
	for _, b := range bindings {
		if v.IsSet(b.key) {
			b.apply(cfg, v)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(doc); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.UserID == "" {
		errs = append(errs, errors.New("user_id must not be empty"))
	}
	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q (valid: memory, redis, postgres)", c.Store.Driver))
	}
	if (c.Store.Driver == DriverRedis || c.Lock.Enabled) && c.Store.Redis.Addr == "" {
		errs = append(errs, errors.New("store.redis.addr is required"))
	}
	if c.Lock.Enabled && c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("lock.ttl must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q (valid: text, json)", c.Log.Format))
	}
	if c.Tracker.RetryInitial < 0 {
		errs = append(errs, errors.New("tracker.retry_initial must not be negative"))
	}

	return errors.Join(errs...)
}
