// Package config loads and validates coordinator configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Collector CollectorConfig `mapstructure:"collector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Addr renders the listen address for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	// Provider is one of "memory", "postgres", or "sqlite".
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig controls the pgx connection pool.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// SQLiteConfig locates the embedded database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// QueueConfig tunes submission dedup and lease ordering.
type QueueConfig struct {
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	DefaultPriority int           `mapstructure:"default_priority"`
	BatchPriority   int           `mapstructure:"batch_priority"`
}

// WorkerConfig governs the embedded worker pool.
type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Count        int           `mapstructure:"count"`
	IDPrefix     string        `mapstructure:"id_prefix"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// CollectorConfig points at the extraction service embedded workers call.
type CollectorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig points at the embedding refresh endpoint.
type EmbeddingConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// GeocodingConfig tunes the venue geocoding worker. MinInterval spaces
// upstream calls; Nominatim requires at least a second between requests.
type GeocodingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	QueueSize   int           `mapstructure:"queue_size"`
}

// ArchiveConfig selects where terminal reports are archived.
type ArchiveConfig struct {
	// Provider is one of "none", "memory", "local", or "gcs".
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	BaseDir  string `mapstructure:"base_dir"`
}

// PublisherConfig selects the job announcement transport.
type PublisherConfig struct {
	// Provider is one of "none", "memory", or "pubsub".
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// NotifyConfig tunes the notification hub.
type NotifyConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	MaxBatch     int           `mapstructure:"max_batch"`
	MaxBatchWait time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout  time.Duration `mapstructure:"sink_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPEQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.postgres.max_conns", 8)
	v.SetDefault("storage.sqlite.path", "data/scrapeq.db")
	v.SetDefault("queue.dedup_window", "336h")
	v.SetDefault("queue.default_priority", 5)
	v.SetDefault("queue.batch_priority", 7)
	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.id_prefix", "embedded")
	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("collector.timeout", "180s")
	v.SetDefault("embedding.timeout", "10s")
	v.SetDefault("embedding.max_attempts", 3)
	v.SetDefault("embedding.backoff", "60s")
	v.SetDefault("geocoding.enabled", false)
	v.SetDefault("geocoding.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoding.user_agent", "scrape-coordinator/1.0 (+https://github.com/JakeFAU/scrape-coordinator)")
	v.SetDefault("geocoding.min_interval", "1500ms")
	v.SetDefault("geocoding.max_attempts", 3)
	v.SetDefault("geocoding.backoff", "60s")
	v.SetDefault("geocoding.queue_size", 256)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.base_dir", "data/reports")
	v.SetDefault("publisher.provider", "none")
	v.SetDefault("publisher.topic", "scrape-jobs")
	v.SetDefault("notify.buffer_size", 1024)
	v.SetDefault("notify.max_batch", 64)
	v.SetDefault("notify.max_batch_wait", "250ms")
	v.SetDefault("notify.sink_timeout", "30s")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Storage.Provider {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must be set when provider is postgres")
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path must be set when provider is sqlite")
		}
	default:
		return fmt.Errorf("storage.provider must be memory, postgres, or sqlite")
	}
	if c.Worker.Enabled {
		if c.Worker.Count <= 0 {
			return fmt.Errorf("worker.count must be > 0 when workers are enabled")
		}
		if c.Collector.BaseURL == "" {
			return fmt.Errorf("collector.base_url must be set when workers are enabled")
		}
	}
	switch c.Archive.Provider {
	case "", "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when provider is local")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when provider is gcs")
		}
	default:
		return fmt.Errorf("archive.provider must be none, memory, local, or gcs")
	}
	switch c.Publisher.Provider {
	case "", "none", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" {
			return fmt.Errorf("publisher.project_id must be set when provider is pubsub")
		}
		if c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.topic must be set when provider is pubsub")
		}
	default:
		return fmt.Errorf("publisher.provider must be none, memory, or pubsub")
	}
	if c.Geocoding.Enabled && c.Geocoding.UserAgent == "" {
		return fmt.Errorf("geocoding.user_agent must be set when geocoding is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}
