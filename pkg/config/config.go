// Package config loads and validates the application configuration from a
// yaml file, with STC_ANALYTICS_* environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mrbrightsides/stc-analytics/pkg/schema"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultSQLitePath is the default embedded database location.
	DefaultSQLitePath = "./stc_analytics.db"

	// DefaultKBPath is the default SWC knowledge-base file.
	DefaultKBPath = "./swc_kb.json"

	// DefaultListen is the default HTTP listen address.
	DefaultListen = ":8080"

	// DefaultProject tags cost records whose source omits a project.
	DefaultProject = "STC"

	// DefaultFollowInterval is the default tail-follower poll interval.
	DefaultFollowInterval = "30s"

	// envPrefix namespaces environment variable overrides, e.g.
	// STC_ANALYTICS_GLOBAL_LOG_LEVEL=debug.
	envPrefix = "STC_ANALYTICS"
)

// Config is the root configuration for stc-analytics.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	KB       KBConfig       `yaml:"kb" mapstructure:"kb"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DatabaseConfig selects and configures the persistence driver.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Auth        AuthConfig      `yaml:"auth,omitempty" mapstructure:"auth"`
}

// RateLimitConfig configures per-IP rate limiting on ingestion endpoints.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AuthConfig configures basic auth for the admin endpoints.
type AuthConfig struct {
	Enabled bool       `yaml:"enabled" mapstructure:"enabled"`
	Users   []AuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// AuthUser defines a basic auth user from config. Passwords are bcrypt
// hashes, never plaintext.
type AuthUser struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// IngestConfig contains ingestion pipeline settings.
type IngestConfig struct {
	DefaultProject string       `yaml:"default_project" mapstructure:"default_project"`
	KeepZeroRows   bool         `yaml:"keep_zero_rows" mapstructure:"keep_zero_rows"`
	Follow         FollowConfig `yaml:"follow,omitempty" mapstructure:"follow"`
}

// FollowConfig configures the append-only file follower.
type FollowConfig struct {
	Enabled  bool           `yaml:"enabled" mapstructure:"enabled"`
	Interval string         `yaml:"interval,omitempty" mapstructure:"interval"`
	Sources  []FollowSource `yaml:"sources,omitempty" mapstructure:"sources"`
}

// FollowSource is one growing NDJSON file to poll.
type FollowSource struct {
	Kind string `yaml:"kind" mapstructure:"kind"`
	Path string `yaml:"path" mapstructure:"path"`
}

// KBConfig points at the SWC knowledge-base JSON file.
type KBConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Load reads a configuration file from the given path and applies
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key's default so unset keys resolve and
// env-only overrides bind.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", DefaultSQLitePath)
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.rate_limit.requests_per_minute", 60)
	v.SetDefault("ingest.default_project", DefaultProject)
	v.SetDefault("ingest.follow.interval", DefaultFollowInterval)
	v.SetDefault("kb.path", DefaultKBPath)
}

// Default returns the built-in configuration, used when no config file is
// given and by `config init`.
func Default() *Config {
	return &Config{
		Global: GlobalConfig{LogLevel: DefaultLogLevel},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: DefaultSQLitePath},
			Postgres: PostgresConfig{
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Server: ServerConfig{
			Listen: DefaultListen,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
			},
		},
		Ingest: IngestConfig{
			DefaultProject: DefaultProject,
			Follow:         FollowConfig{Interval: DefaultFollowInterval},
		},
		KB: KBConfig{Path: DefaultKBPath},
	}
}

// Template renders the default configuration as yaml for `config init`.
func Template() ([]byte, error) {
	out, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("rendering config template: %w", err)
	}

	return out, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}

		if c.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_minute must be positive")
	}

	if c.Server.Auth.Enabled && len(c.Server.Auth.Users) == 0 {
		return fmt.Errorf("server.auth.users is required when auth is enabled")
	}

	for i, u := range c.Server.Auth.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("server.auth.users[%d]: username and password are required", i)
		}
	}

	if c.Ingest.Follow.Enabled {
		if _, err := c.FollowInterval(); err != nil {
			return err
		}

		for i, src := range c.Ingest.Follow.Sources {
			if _, ok := schema.ParseKind(src.Kind); !ok {
				return fmt.Errorf("ingest.follow.sources[%d]: unknown kind %q", i, src.Kind)
			}

			if src.Path == "" {
				return fmt.Errorf("ingest.follow.sources[%d]: path is required", i)
			}
		}
	}

	return nil
}

// FollowInterval parses the follower poll interval.
func (c *Config) FollowInterval() (time.Duration, error) {
	interval := c.Ingest.Follow.Interval
	if interval == "" {
		interval = DefaultFollowInterval
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid ingest.follow.interval %q: %w", interval, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("ingest.follow.interval must be positive")
	}

	return d, nil
}
