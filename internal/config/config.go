package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// DefaultGRPCAddr is used when SL_GRPC_ADDR is not set at all. env
// applies envDefault to empty values too, so it cannot express this.
const DefaultGRPCAddr = ":9090"

// Provider sources.
const (
	ProviderFixture = "fixture"
	ProviderLive    = "live"
)

type Config struct {
	HTTPAddr  string `env:"SL_HTTP_ADDR" envDefault:":8080"`
	// Set but empty disables the gRPC health server; unset means
	// DefaultGRPCAddr.
	GRPCAddr  string `env:"SL_GRPC_ADDR"`
	// Empty disables bearer auth on /v1.
	AuthToken string `env:"SL_AUTH_TOKEN"`

	Store       string `env:"SL_STORE" envDefault:"memory"`
	DatabaseURL string `env:"SL_DATABASE_URL"`
	RedisURL    string `env:"SL_REDIS_URL"`
	// Empty publishes no events.
	NATSURL     string `env:"SL_NATS_URL"`

	Provider            string `env:"SL_PROVIDER" envDefault:"fixture"`
	CountryCode         string `env:"SL_COUNTRY_CODE" envDefault:"254"`
	DefaultOrganization string `env:"SL_DEFAULT_ORGANIZATION"`

	SessionTTL          time.Duration `env:"SL_SESSION_TTL" envDefault:"10m"`
	SessionCacheSize    int           `env:"SL_SESSION_CACHE_SIZE" envDefault:"10000"`
	TurnDeadline        time.Duration `env:"SL_TURN_DEADLINE" envDefault:"5s"`
	CollaboratorTimeout time.Duration `env:"SL_COLLABORATOR_TIMEOUT" envDefault:"3s"`
	SweepInterval       time.Duration `env:"SL_SWEEP_INTERVAL" envDefault:"1m"`

	// Turn-log export. A zero interval disables it; S3 and git are each
	// enabled by setting their bucket or repo path.
	SyncInterval   time.Duration `env:"SL_SYNC_INTERVAL" envDefault:"0s"`
	SyncS3Bucket   string        `env:"SL_SYNC_S3_BUCKET"`
	SyncS3Endpoint string        `env:"SL_SYNC_S3_ENDPOINT"`
	SyncS3Region   string        `env:"SL_SYNC_S3_REGION" envDefault:"us-east-1"`
	SyncS3Key      string        `env:"SL_SYNC_S3_KEY" envDefault:"schoolline/turns.jsonl"`
	SyncGitRepo    string        `env:"SL_SYNC_GIT_REPO"`
	SyncGitFile    string        `env:"SL_SYNC_GIT_FILE" envDefault:"turns.jsonl"`
	SyncGitBranch  string        `env:"SL_SYNC_GIT_BRANCH" envDefault:"main"`

	LogLevel  string `env:"SL_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SL_LOG_FORMAT" envDefault:"text"`
}

func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, ok := os.LookupEnv("SL_GRPC_ADDR"); !ok {
		c.GRPCAddr = DefaultGRPCAddr
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the cross-field requirements env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("SL_DATABASE_URL is required when SL_STORE=postgres"))
		}
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("SL_REDIS_URL is required when SL_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("SL_STORE: unknown backend %q", c.Store))
	}
	switch c.Provider {
	case ProviderFixture:
	case ProviderLive:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("SL_DATABASE_URL is required when SL_PROVIDER=live"))
		}
	default:
		errs = append(errs, fmt.Errorf("SL_PROVIDER: unknown provider %q", c.Provider))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SL_SESSION_TTL must be positive"))
	}
	if c.SessionCacheSize <= 0 {
		errs = append(errs, errors.New("SL_SESSION_CACHE_SIZE must be positive"))
	}
	if c.TurnDeadline <= 0 {
		errs = append(errs, errors.New("SL_TURN_DEADLINE must be positive"))
	}
	if c.CollaboratorTimeout <= 0 {
		errs = append(errs, errors.New("SL_COLLABORATOR_TIMEOUT must be positive"))
	}
	if c.SyncInterval < 0 {
		errs = append(errs, errors.New("SL_SYNC_INTERVAL must not be negative"))
	}
	return errors.Join(errs...)
}

// NeedsDatabase reports whether any component talks to postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Store == StorePostgres || c.Provider == ProviderLive
}
