// Package config loads gateway settings from defaults, an optional YAML
// file and ALPHA_ prefixed environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend modes.
const (
	ModeMock   = "mock"
	ModeRemote = "remote"
)

// EnvPrefix is prepended to every environment override, e.g. ALPHA_PORT.
const EnvPrefix = "ALPHA"

var (
	ErrInvalidMode     = errors.New("config: mode must be mock or remote")
	ErrInvalidLogLevel = errors.New("config: invalid log level")
	ErrInvalidPort     = errors.New("config: port out of range")
)

// Config holds gateway configuration.
type Config struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	BackendURL      string        `mapstructure:"backend_url"`
	MockLatency     time.Duration `mapstructure:"mock_latency"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	UpstreamRPS     float64       `mapstructure:"upstream_rps"`
	LogLevel        string        `mapstructure:"log_level"`
	DatabaseURL     string        `mapstructure:"database_url"`
	RedisURL        string        `mapstructure:"redis_url"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("mode", ModeMock)
	v.SetDefault("backend_url", "https://alpha-boost-service-tbmfdv7fhq-uc.a.run.app")
	v.SetDefault("mock_latency", 300*time.Millisecond)
	v.SetDefault("upstream_timeout", 10*time.Second)
	v.SetDefault("upstream_rps", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", 30*time.Second)
}

// Load reads configuration. path may be empty, in which case only
// defaults and the environment are used; a named file that cannot be
// read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have a closed set of values.
func (c *Config) Validate() error {
	if c.Mode != ModeMock && c.Mode != ModeRemote {
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return level, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
