// Command server is the gateway's entrypoint: load config, connect to
// Postgres and the broker, wire every component, and serve HTTP until a
// shutdown signal arrives — the same explicit-construction shape the
// teacher's cmd/server/main.go uses, generalized to this gateway's
// dependency set (broker, quota engine, registry, rate limiter).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gmslzr/kafka-gateway/internal/auth"
	"github.com/gmslzr/kafka-gateway/internal/broker"
	"github.com/gmslzr/kafka-gateway/internal/config"
	"github.com/gmslzr/kafka-gateway/internal/db"
	"github.com/gmslzr/kafka-gateway/internal/httpapi"
	"github.com/gmslzr/kafka-gateway/internal/metrics"
	"github.com/gmslzr/kafka-gateway/internal/quota"
	"github.com/gmslzr/kafka-gateway/internal/ratelimit"
	"github.com/gmslzr/kafka-gateway/internal/registry"
	"github.com/gmslzr/kafka-gateway/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "api").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	brokerClient, err := broker.Dial(cfg.KafkaBootstrapServers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial kafka")
	}
	defer brokerClient.Close()

	var limiter ratelimit.Bucket
	rateLimitCfg := ratelimit.Config{
		MaxRequests: cfg.RateLimitRequests,
		Window:      cfg.RateLimitWindow(),
		Burst:       cfg.RateLimitRequests,
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Info().Str("redis_addr", cfg.RedisAddr).Msg("rate limiter backed by redis")
		limiter = ratelimit.NewRedis(redisClient, rateLimitCfg)
	} else {
		limiter = ratelimit.NewInMemory(rateLimitCfg)
	}

	tenants := store.NewTenantRepo(pool)
	keys := store.NewAPIKeyRepo(pool)

	srv := &httpapi.Server{
		Config: cfg,
		DB:     pool,

		Tenants:  tenants,
		Projects: store.NewProjectRepo(pool),
		Topics:   store.NewTopicRepo(pool),
		Keys:     keys,
		Usage:    store.NewUsageRepo(pool),

		Resolver: auth.NewResolver(cfg.JWTSecret, tenants, keys),
		Registry: registry.New(),
		Quota:    quota.New(pool),
		Broker:   brokerClient,
		Limiter:  limiter,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams are long-lived; the writer task paces its own flushes
		IdleTimeout:  120 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown error")
	}

	log.Info().Msg("server stopped")
}
