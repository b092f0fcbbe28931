// Package config loads the TOML configuration files both binaries take
// as their single positional argument.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures the sensor poller / forwarder.
type ClientConfig struct {
	// Prefix is prepended to every renamed channel id.
	Prefix string `mapstructure:"prefix"`
	// Server is the base URL batches are POSTed to.
	Server string `mapstructure:"server"`
	// Period is the polling cadence in seconds.
	Period float64 `mapstructure:"period"`
	// Providers enables sensor sources: "w1_therm", "dummy".
	Providers []string `mapstructure:"providers"`
	// NameMap renames local sensor names to channel ids.
	NameMap map[string]string `mapstructure:"name_map"`
	// Storage, when present, backs the stash persistently.
	Storage *StorageConfig `mapstructure:"storage"`

	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

func (c *ClientConfig) PeriodDuration() time.Duration {
	return time.Duration(c.Period * float64(time.Second))
}

// ServerConfig configures the ingestion server.
type ServerConfig struct {
	HTTP     HTTPConfig      `mapstructure:"http"`
	DB       *DBConfig       `mapstructure:"db"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Telegram *TelegramConfig `mapstructure:"telegram"`

	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type HTTPConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Prefix string `mapstructure:"prefix"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN renders the postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s", c.User, c.Password, c.Host)
}

type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

type DBConfig struct {
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Sqlite   *SqliteConfig   `mapstructure:"sqlite"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// StorageConfig selects the key/value backend: "mem", "fs", "db" or
// "redis".
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	Path     string `mapstructure:"path"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadClient reads and validates a client config file.
func LoadClient(path string) (*ClientConfig, error) {
	v := newViper(path)
	v.SetDefault("prefix", "")
	v.SetDefault("period", 10.0)
	v.SetDefault("providers", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Server == "" {
		return nil, fmt.Errorf("config %s: server must be set", path)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("config %s: period must be positive", path)
	}
	return &cfg, nil
}

// LoadServer reads and validates a server config file.
func LoadServer(path string) (*ServerConfig, error) {
	v := newViper(path)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.prefix", "")
	v.SetDefault("storage.type", "mem")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	switch cfg.Storage.Type {
	case "mem", "fs", "db", "redis":
	default:
		return nil, fmt.Errorf("config %s: unknown storage.type %q", path, cfg.Storage.Type)
	}
	return &cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	return v
}
