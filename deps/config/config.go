package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rohitxdev/nftsol-api/util"
)

// DefaultSentryDSN is used when SENTRY_DSN is unset or empty.
const DefaultSentryDSN = "https://730b044922f12abcaf6a5d0c4bab2e4c@o4509775589343232.ingest.us.sentry.io/4510104377753600"

// This is set at build-time.
var (
	BuildInfoBase64 string
)

var (
	ErrBuildInfoNotSet = errors.New("build info is not set")
)

type BuildConfig struct {
	AppName        string    `json:"app_name" validate:"required"`
	AppVersion     string    `json:"app_version" validate:"required"`
	BuildType      string    `json:"build_type" validate:"required"`
	BuildTimestamp time.Time `json:"build_timestamp" validate:"required"`
}

type RuntimeConfig struct {
	AppEnv             Environment   `json:"app_env" validate:"required,oneof=testing development staging production" env:"APP_ENV"`
	HTTPHost           string        `json:"http_host" validate:"required" env:"HTTP_HOST"`
	HTTPPort           string        `json:"http_port" validate:"required" env:"HTTP_PORT"`
	AllowedOrigins     []string      `json:"allowed_origins" validate:"required,dive,min=1" env:"ALLOWED_ORIGINS"`
	ShutdownTimeout    time.Duration `json:"shutdown_timeout" validate:"required" env:"SHUTDOWN_TIMEOUT"`
	SentryFlushTimeout time.Duration `json:"sentry_flush_timeout" validate:"required" env:"SENTRY_FLUSH_TIMEOUT"`
}

type Secrets struct {
	SentryDSN   string `json:"sentry_dsn" validate:"required" env:"SENTRY_DSN"`
	PostgresURL string `json:"postgres_url" validate:"omitempty,url" env:"POSTGRES_URL"`
	RedisURL    string `json:"redis_url" validate:"omitempty,url" env:"REDIS_URL"`
}

type FeatureFlags struct {
	Debug bool `json:"debug" env:"DEBUG"`
}

type Config struct {
	BuildConfig
	RuntimeConfig
	Secrets
	FeatureFlags
}

// Default returns the config values used for any variable missing from the environment.
func Default() Config {
	return Config{
		RuntimeConfig: RuntimeConfig{
			AppEnv:             EnvProduction,
			HTTPHost:           "0.0.0.0",
			HTTPPort:           "8080",
			AllowedOrigins:     []string{"*"},
			ShutdownTimeout:    time.Minute,
			SentryFlushTimeout: 2 * time.Second,
		},
		Secrets: Secrets{
			SentryDSN: DefaultSentryDSN,
		},
	}
}

// Load builds the config from defaults, then the environment, and validates the result.
func Load() (*Config, error) {
	if BuildInfoBase64 == "" {
		return nil, ErrBuildInfoNotSet
	}

	decoded, err := base64.StdEncoding.DecodeString(BuildInfoBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode build info base64 string: %w", err)
	}

	cfg := Default()

	if err := json.Unmarshal(decoded, &cfg.BuildConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal build info: %w", err)
	}

	// Unset or empty variables leave the defaults in place.
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env as config: %w", err)
	}

	if err := util.Validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// TracesSampleRate is the share of requests traced by the error reporter.
func (c *Config) TracesSampleRate() float64 {
	if c.IsProduction() {
		return 0.1
	}
	return 1.0
}

// Release identifies the build in reported events, e.g. "nftsol-api@1.2.0".
func (c *Config) Release() string {
	return c.AppName + "@" + c.AppVersion
}
