package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
	BackendFreecache = "freecache"

	DefaultNamespace = "simple_note_prefs"
	DefaultKey       = "notes_json"
)

var ErrUnknownEnv = errors.New("unknown env")

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// storage: the single key-value slot holding the notes JSON
	StorageBackend   string `toml:"storage_backend"`
	StorageNamespace string `toml:"storage_namespace"`
	StorageKey       string `toml:"storage_key"`
	StorageDir       string `toml:"storage_dir"`
	FreecacheSizeMB  int    `toml:"freecache_size_mb"`

	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	RedisDB   int    `toml:"redis_db"`

	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	// backups
	BackupsDir     string `toml:"backups_dir"`
	BackupOnDelete bool   `toml:"backup_on_delete"`

	// telemetry
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	TracingEnabled        bool   `toml:"tracing_enabled"`

	// 0 disables rate limiting, which also needs the redis backend
	WriteRateLimitPerMin int `toml:"write_rate_limit_per_min"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnv, env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.StorageBackend == "" {
		c.StorageBackend = BackendFile
	}
	if c.StorageNamespace == "" {
		c.StorageNamespace = DefaultNamespace
	}
	if c.StorageKey == "" {
		c.StorageKey = DefaultKey
	}
	if c.StorageDir == "" {
		c.StorageDir = "./data"
	}
	if c.FreecacheSizeMB == 0 {
		c.FreecacheSizeMB = 16
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.PostgresHost == "" {
		c.PostgresHost = "localhost"
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresDBName == "" {
		c.PostgresDBName = "notesbox"
	}
	if c.BackupsDir == "" {
		c.BackupsDir = "./backups"
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendFile, BackendRedis, BackendPostgres, BackendFreecache:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}
	if c.WriteRateLimitPerMin < 0 {
		return errors.New("write rate limit cannot be negative")
	}
	return nil
}
