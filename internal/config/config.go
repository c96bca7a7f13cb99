// Package config loads chidata settings from an optional YAML file,
// CHIDATA_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CHIDATA_PORTAL_APP_TOKEN.
const EnvPrefix = "CHIDATA"

// Config is the complete application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

// PortalConfig configures the open data client.
type PortalConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	AppToken   string        `mapstructure:"app_token"`
	UserAgent  string        `mapstructure:"user_agent" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0,max=10"`
}

// RedisConfig configures the shared cache and throttle state.
// An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// PostgresConfig configures the snapshot store. An empty DSN disables
// the /resource endpoint.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns" validate:"min=0"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	LicenseCount    int           `mapstructure:"license_count" validate:"min=1,max=1000000"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	PageSize        int           `mapstructure:"page_size" validate:"min=1,max=1000"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-pretty":    "log.pretty",
	"base-url":      "portal.base_url",
	"app-token":     "portal.app_token",
	"timeout":       "portal.timeout",
	"max-retries":   "portal.max_retries",
	"redis-addr":    "redis.addr",
	"postgres-dsn":  "postgres.dsn",
	"addr":          "server.addr",
	"license-count": "server.license_count",
	"cache-ttl":     "server.cache_ttl",
	"page-size":     "server.page_size",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("portal.base_url", "https://data.cityofchicago.org/resource/")
	v.SetDefault("portal.app_token", "")
	v.SetDefault("portal.user_agent", "chidata/1.0")
	v.SetDefault("portal.timeout", 30*time.Second)
	v.SetDefault("portal.max_retries", 0)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 4)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.license_count", 1000)
	v.SetDefault("server.cache_ttl", 15*time.Minute)
	v.SetDefault("server.page_size", 10)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
}

// Load reads configuration. path may be empty to skip the config file;
// flags may be nil. Only flags the user actually set override lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and reports all failures at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config validation: %s", strings.Join(msgs, "; "))
}
