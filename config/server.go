package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the process-level configuration for the docsearch service.
type ServerConfig struct {
	Server  HTTPConfig    `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxRequestBytes int64         `yaml:"maxRequestBytes"`
}

// StorageConfig controls where index snapshots are persisted.
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

// JobsConfig bounds the background rebuild workers.
type JobsConfig struct {
	MaxConcurrent int           `yaml:"maxConcurrent"`
	Retention     time.Duration `yaml:"retention"`
}

// CacheConfig selects the result cache backend. An empty RedisAddr keeps the
// cache in process memory.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
	RedisPoolSize int           `yaml:"redisPoolSize"`
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"maxEntries"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadServerConfig reads a YAML config file (if provided) and applies
// DOCSEARCH_* environment-variable overrides on top of the defaults.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultServerConfig returns the configuration used for local development.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxRequestBytes: 32 << 20,
		},
		Storage: StorageConfig{
			DataDir: "./search_data",
		},
		Jobs: JobsConfig{
			MaxConcurrent: 2,
			Retention:     24 * time.Hour,
		},
		Cache: CacheConfig{
			Enabled:       true,
			RedisPoolSize: 10,
			TTL:           60 * time.Second,
			MaxEntries:    1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func applyEnvOverrides(cfg *ServerConfig) {
	if v := os.Getenv("DOCSEARCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DOCSEARCH_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("DOCSEARCH_MAX_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Jobs.MaxConcurrent = n
		}
	}
	if v := os.Getenv("DOCSEARCH_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("DOCSEARCH_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("DOCSEARCH_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("DOCSEARCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DOCSEARCH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
