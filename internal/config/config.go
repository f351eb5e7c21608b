package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const prefix = "JOURNAL"

type Config struct {
	// DatabaseURL and APIKey have no defaults; a process without them
	// refuses to start.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	APIKey      string `envconfig:"API_KEY" required:"true"`

	DatabaseMaxConns    int32         `envconfig:"DATABASE_MAX_CONNS" default:"25"`
	DatabaseMinConns    int32         `envconfig:"DATABASE_MIN_CONNS" default:"2"`
	DatabaseMaxConnLife time.Duration `envconfig:"DATABASE_MAX_CONN_LIFE" default:"1h"`

	RedisURL string        `envconfig:"REDIS_URL" default:""`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	StorageDriver     string        `envconfig:"STORAGE_DRIVER" default:"fs"`
	StorageDir        string        `envconfig:"STORAGE_DIR" default:"./data/screenshots"`
	StorageEndpoint   string        `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	StorageAccessKey  string        `envconfig:"STORAGE_ACCESS_KEY" default:""`
	StorageSecretKey  string        `envconfig:"STORAGE_SECRET_KEY" default:""`
	StorageUseSSL     bool          `envconfig:"STORAGE_USE_SSL" default:"false"`
	StorageBucket     string        `envconfig:"STORAGE_BUCKET" default:"trade-screenshots"`
	// StorageSigningKey signs filesystem bucket links; empty means APIKey.
	StorageSigningKey string        `envconfig:"STORAGE_SIGNING_KEY" default:""`
	SignedURLTTL      time.Duration `envconfig:"SIGNED_URL_TTL" default:"1h"`
	MaxUploadBytes    int           `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`

	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	Workers int `envconfig:"WORKERS" default:"4"`

	APIHost         string        `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort         string        `envconfig:"API_PORT" default:"8000"`
	APIPublicURL    string        `envconfig:"API_PUBLIC_URL" default:"http://localhost:8000"`
	APIReadTimeout  time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	APIWriteTimeout time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`

	RateLimit      int  `envconfig:"RATE_LIMIT" default:"100"`
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
	TracingEnabled bool `envconfig:"TRACING_ENABLED" default:"false"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// Load reads an optional .env file and then the JOURNAL_* environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// envconfig accepts a variable that is set but empty.
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("load config: required key %s_DATABASE_URL missing value", prefix)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("load config: required key %s_API_KEY missing value", prefix)
	}
	return &cfg, nil
}

// SigningKey is the secret for filesystem bucket links.
func (c *Config) SigningKey() []byte {
	if c.StorageSigningKey != "" {
		return []byte(c.StorageSigningKey)
	}
	return []byte(c.APIKey)
}

func (c *Config) Development() bool {
	return c.Environment == "development"
}
