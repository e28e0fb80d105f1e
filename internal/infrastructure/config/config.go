package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration for the messaging service,
// populated from environment variables.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// RedisURL is optional; when empty the service falls back to the
	// in-process cache and disables background dispatch.
	RedisURL string `envconfig:"REDIS_URL"`

	SMSProviderURL      string `envconfig:"SMS_PROVIDER_URL" default:"http://localhost:8001"`
	SMSProviderAPIKey   string `envconfig:"SMS_PROVIDER_API_KEY"`
	EmailProviderURL    string `envconfig:"EMAIL_PROVIDER_URL" default:"http://localhost:8002"`
	EmailProviderAPIKey string `envconfig:"EMAIL_PROVIDER_API_KEY"`

	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`

	DefaultSMSFrom   string `envconfig:"DEFAULT_SMS_FROM"`
	DefaultEmailFrom string `envconfig:"DEFAULT_EMAIL_FROM"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"10"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
