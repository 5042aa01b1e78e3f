// Package config loads service configuration from an optional YAML
// file layered under ATRIUM_* environment overrides. Environment always
// wins, so deployments can keep secrets out of the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Defaults applied before the file and environment are consulted.
const (
	DefaultAddr            = ":8080"
	DefaultLogLevel        = "info"
	DefaultSessionLifetime = 12 * time.Hour
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 10
	DefaultConnMaxLifetime = 30 * time.Minute
	DefaultRateLimitRPS    = 50
	DefaultRateLimitBurst  = 100
)

// Config is the fully resolved service configuration.
type Config struct {
	Env      string
	Server   Server
	Database Database
	Redis    Redis
	Session  Session
	Logger   Logger
	Rate     RateLimit
}

// Server holds HTTP listener settings.
type Server struct {
	Addr string
}

// Database holds the Postgres connection settings.
type Database struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis holds the key-value store settings. An empty Addr selects the
// in-memory store (single-node dev mode).
type Redis struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Session holds token issuance settings.
type Session struct {
	Secret   string
	Lifetime time.Duration
}

// Logger holds logging settings.
type Logger struct {
	Level string
}

// RateLimit bounds inbound request rate per client.
type RateLimit struct {
	RPS   float64
	Burst int
}

// fileConfig mirrors Config with YAML-friendly field types.
type fileConfig struct {
	Env    string `yaml:"env"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	Session struct {
		Secret   string `yaml:"secret"`
		Lifetime string `yaml:"lifetime"`
	} `yaml:"session"`
	Logger struct {
		Level string `yaml:"level"`
	} `yaml:"logger"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// Load resolves the configuration. path may be empty or point to a
// missing file; only a file that exists and fails to parse is an error.
func Load(path string) (Config, error) {
	cfg := Config{
		Env:    "prod",
		Server: Server{Addr: DefaultAddr},
		Database: Database{
			MaxOpenConns:    DefaultMaxOpenConns,
			MaxIdleConns:    DefaultMaxIdleConns,
			ConnMaxLifetime: DefaultConnMaxLifetime,
		},
		Session: Session{Lifetime: DefaultSessionLifetime},
		Logger:  Logger{Level: DefaultLogLevel},
		Rate:    RateLimit{RPS: DefaultRateLimitRPS, Burst: DefaultRateLimitBurst},
	}

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&cfg.Env, file.Env)
	setString(&cfg.Server.Addr, file.Server.Addr)
	setString(&cfg.Database.DSN, file.Database.DSN)
	setInt(&cfg.Database.MaxOpenConns, file.Database.MaxOpenConns)
	setInt(&cfg.Database.MaxIdleConns, file.Database.MaxIdleConns)
	if err := setDuration(&cfg.Database.ConnMaxLifetime, file.Database.ConnMaxLifetime); err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	setString(&cfg.Redis.Addr, file.Redis.Addr)
	setString(&cfg.Redis.Password, file.Redis.Password)
	setInt(&cfg.Redis.DB, file.Redis.DB)
	setInt(&cfg.Redis.PoolSize, file.Redis.PoolSize)
	setString(&cfg.Session.Secret, file.Session.Secret)
	if err := setDuration(&cfg.Session.Lifetime, file.Session.Lifetime); err != nil {
		return fmt.Errorf("config: session.lifetime: %w", err)
	}
	setString(&cfg.Logger.Level, file.Logger.Level)
	if file.RateLimit.RPS > 0 {
		cfg.Rate.RPS = file.RateLimit.RPS
	}
	setInt(&cfg.Rate.Burst, file.RateLimit.Burst)
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Env, os.Getenv("ATRIUM_ENV"))
	setString(&cfg.Server.Addr, os.Getenv("ATRIUM_HTTP_ADDR"))
	setString(&cfg.Database.DSN, os.Getenv("ATRIUM_PG_DSN"))
	setString(&cfg.Redis.Addr, os.Getenv("ATRIUM_REDIS_ADDR"))
	setString(&cfg.Redis.Password, os.Getenv("ATRIUM_REDIS_PASSWORD"))
	setString(&cfg.Session.Secret, os.Getenv("ATRIUM_SESSION_SECRET"))
	setString(&cfg.Logger.Level, os.Getenv("ATRIUM_LOG_LEVEL"))

	if raw := os.Getenv("ATRIUM_REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: ATRIUM_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	if raw := os.Getenv("ATRIUM_SESSION_LIFETIME"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config: ATRIUM_SESSION_LIFETIME: %w", err)
		}
		cfg.Session.Lifetime = d
	}
	return nil
}

func (c Config) validate() error {
	if c.Session.Secret == "" && c.Env != "dev" {
		return fmt.Errorf("config: session secret is required outside dev")
	}
	if c.Session.Lifetime <= 0 {
		return fmt.Errorf("config: session lifetime must be positive")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
