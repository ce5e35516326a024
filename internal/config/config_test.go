package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresThirtyTwoByteJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "too-short")
	t.Setenv("ADMIN_API_KEY", "admin-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "a-secret-that-is-at-least-32-bytes!")
	t.Setenv("ADMIN_API_KEY", "admin-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "localhost:9092", cfg.KafkaBootstrapServers)
	assert.Equal(t, 100, cfg.RateLimitRequests)
}

func TestCORSOriginsDefaultsToWildcard(t *testing.T) {
	cfg := &Config{CORSOriginsStr: "*"}
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins())

	cfg = &Config{CORSOriginsStr: ""}
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins())
}

func TestCORSOriginsSplitsAndTrims(t *testing.T) {
	cfg := &Config{CORSOriginsStr: "https://a.example.com, https://b.example.com ,"}
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins())
}

func TestRateLimitWindow(t *testing.T) {
	cases := []struct {
		period string
		want   time.Duration
	}{
		{"second", time.Second},
		{"Second", time.Second},
		{"minute", time.Minute},
		{"hour", time.Hour},
		{"", time.Minute},
		{"fortnight", time.Minute},
	}
	for _, c := range cases {
		cfg := &Config{RateLimitPeriod: c.period}
		assert.Equal(t, c.want, cfg.RateLimitWindow(), "period=%q", c.period)
	}
}
