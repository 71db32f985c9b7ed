package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Sequence backends accepted by SequenceBackend.
const (
	SequenceMemory   = "memory"
	SequencePostgres = "postgres"
	SequenceRedis    = "redis"
)

// Config is the full process configuration.
type Config struct {
	Server   Server         `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Business BusinessConfig `yaml:"business"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	LogLevel        string        `yaml:"log_level"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig configures the Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures registration event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	ClientID   string   `yaml:"client_id"`
	Partitions int32    `yaml:"partitions"`
}

// BusinessConfig holds domain settings.
type BusinessConfig struct {
	SequenceBackend   string        `yaml:"sequence_backend"`
	Timezone          string        `yaml:"timezone"`
	DashboardCacheTTL time.Duration `yaml:"dashboard_cache_ttl"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			LogLevel:        "info",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  5 * time.Second,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:      "business.registered",
			ClientID:   "bizreg",
			Partitions: 3,
		},
		Business: BusinessConfig{
			Timezone:          "UTC",
			DashboardCacheTTL: 30 * time.Second,
		},
	}
}

// Load reads an optional YAML file on top of the defaults and then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.resolveSequenceBackend()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return Load("")
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	switch c.Business.SequenceBackend {
	case SequenceMemory:
		if c.Database.URL != "" {
			return fmt.Errorf("sequence backend memory cannot allocate for durable records; use postgres or redis")
		}
	case SequencePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("sequence backend postgres requires DATABASE_URL")
		}
	case SequenceRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("sequence backend redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown sequence backend %q", c.Business.SequenceBackend)
	}
	if c.Database.URL == "" && c.Business.SequenceBackend != SequenceMemory {
		return fmt.Errorf("in-memory records require the memory sequence backend")
	}
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Business.Timezone, err)
	}
	return nil
}

// Location returns the configured business timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// resolveSequenceBackend picks the counter store matching the record store
// when none was configured.
func (c *Config) resolveSequenceBackend() {
	if c.Business.SequenceBackend != "" {
		return
	}
	if c.Database.URL != "" {
		c.Business.SequenceBackend = SequencePostgres
		return
	}
	c.Business.SequenceBackend = SequenceMemory
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "BIZREG_ADDR")
	setString(&cfg.Server.LogLevel, "LOG_LEVEL")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")
	setString(&cfg.Business.SequenceBackend, "SEQUENCE_BACKEND")
	setString(&cfg.Business.Timezone, "BIZREG_TIMEZONE")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if err := setDuration(&cfg.Business.DashboardCacheTTL, "DASHBOARD_CACHE_TTL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.RequestTimeout, "REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if v := os.Getenv("DATABASE_AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DATABASE_AUTO_MIGRATE: %w", err)
		}
		cfg.Database.AutoMigrate = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
