package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultPath = "config.yaml"

type Config struct {
	App        App        `yaml:"app"`
	HTTP       HTTP       `yaml:"http"`
	Log        Log        `yaml:"log"`
	Postgres   Postgres   `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	Processing Processing `yaml:"processing"`
	Outbox     Outbox     `yaml:"outbox"`
	Consumer   Consumer   `yaml:"consumer"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"item-service"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"items_db"`
	MaxConns int32  `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"20"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"30s"`
	PoolSize int           `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"10"`
	Timeout  time.Duration `yaml:"timeout" env:"REDIS_TIMEOUT" env-default:"500ms"`
}

type Kafka struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic       string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"items-events"`
	GroupID     string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"item-cache-invalidator"`
	StartOffset string   `yaml:"start_offset" env:"KAFKA_START_OFFSET" env-default:"earliest"`
}

// Processing configures the batch item processor. Workers is the size of the
// process-wide pool; BatchTimeout of zero means a batch has no deadline.
type Processing struct {
	Workers      int           `yaml:"workers" env:"PROCESS_WORKERS" env-default:"10"`
	BatchTimeout time.Duration `yaml:"batch_timeout" env:"PROCESS_BATCH_TIMEOUT" env-default:"0s"`
}

type Outbox struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"OUTBOX_POLL_INTERVAL" env-default:"2s"`
	BatchSize    int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"10"`
	MetricsPort  string        `yaml:"metrics_port" env:"METRICS_PORT" env-default:"9093"`
}

type Consumer struct {
	MaxRetries  int    `yaml:"max_retries" env:"CONSUMER_MAX_RETRIES" env-default:"5"`
	MetricsPort string `yaml:"metrics_port" env:"CONSUMER_METRICS_PORT" env-default:"9091"`
}

func New() (*Config, error) {
	return Load(defaultPath)
}

// Load reads path when it exists and falls back to the environment otherwise.
// Environment variables always win over values from the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Processing.Workers < 1 {
		return fmt.Errorf("processing workers must be positive, got %d", c.Processing.Workers)
	}
	if c.Processing.BatchTimeout < 0 {
		return fmt.Errorf("processing batch timeout must not be negative")
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("outbox batch size must be positive, got %d", c.Outbox.BatchSize)
	}
	if c.Consumer.MaxRetries < 0 {
		return fmt.Errorf("consumer max retries must not be negative, got %d", c.Consumer.MaxRetries)
	}
	return nil
}

// SlogLevel maps Log.Level to a slog level, defaulting to info.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
