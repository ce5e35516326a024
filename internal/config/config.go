// Package config loads gateway configuration from the environment using
// caarlos0/env, mirroring the teacher's preference for a typed settings
// struct over scattered os.Getenv calls.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-derived setting the gateway needs at
// startup. Field tags follow the spec's documented environment variables.
type Config struct {
	Env        string `env:"ENV" envDefault:"development"`
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	KafkaBootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092"`

	AdminAPIKey string `env:"ADMIN_API_KEY,required"`

	CORSOriginsStr string `env:"CORS_ORIGINS" envDefault:"*"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitPeriod   string        `env:"RATE_LIMIT_PERIOD" envDefault:"minute"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:""`
}

// CORSOrigins splits the comma-separated CORS_ORIGINS value.
func (c *Config) CORSOrigins() []string {
	if c.CORSOriginsStr == "" || c.CORSOriginsStr == "*" {
		return []string{"*"}
	}
	parts := strings.Split(c.CORSOriginsStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RateLimitWindow converts RateLimitPeriod ("second"|"minute"|"hour") into
// a time.Duration, defaulting to a minute for unrecognized values.
func (c *Config) RateLimitWindow() time.Duration {
	switch strings.ToLower(c.RateLimitPeriod) {
	case "second":
		return time.Second
	case "hour":
		return time.Hour
	default:
		return time.Minute
	}
}

// Load parses the process environment into a Config and validates the
// fields whose correctness can't be expressed as a struct tag.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("config: JWT_SECRET must be at least 32 bytes")
	}
	return cfg, nil
}
