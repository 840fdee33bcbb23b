// Package config loads service settings from an optional YAML file and the
// process environment. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingDatabaseURL is returned by Validate when no connection string is set.
var ErrMissingDatabaseURL = errors.New("config: database url is required")

type Config struct {
	HTTP struct {
		Addr            string        `yaml:"addr"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Database struct {
		URL             string        `yaml:"url"`
		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	} `yaml:"database"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the settings used when neither file nor environment says
// otherwise.
func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.RequestTimeout = 10 * time.Second
	cfg.HTTP.ShutdownTimeout = 15 * time.Second
	cfg.Database.MaxConns = 10
	cfg.Database.ConnectTimeout = 5 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load reads path (skipped when empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
	}
	if v, ok := lookup("HTTP_ADDR"); ok && v != "" {
		c.HTTP.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	if v, ok := lookup("REQUEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: REQUEST_TIMEOUT: %w", err)
		}
		c.HTTP.RequestTimeout = d
	}
	if v, ok := lookup("DATABASE_MAX_CONNS"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config: DATABASE_MAX_CONNS: %w", err)
		}
		c.Database.MaxConns = int32(n)
	}
	return nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.HTTP.RequestTimeout < 0 {
		return fmt.Errorf("config: negative request timeout %s", c.HTTP.RequestTimeout)
	}
	return nil
}
