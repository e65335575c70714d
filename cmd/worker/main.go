package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lejio/backend-fleet/internal/config"
	"github.com/lejio/backend-fleet/internal/lock"
	"github.com/lejio/backend-fleet/internal/obs"
	"github.com/lejio/backend-fleet/internal/payout"
	"github.com/lejio/backend-fleet/internal/shortfall"
)

// The worker runs the monthly settlement batches on a schedule. The same
// batches are also reachable through the API's cron endpoints; the redis lock
// keeps the two entry points from stepping on each other.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "fleet")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	locker := &lock.Locker{R: redisClient}

	shortfallSvc := &shortfall.Service{
		Store:          &shortfall.PGStore{Pool: pool},
		Log:            logger.With().Str("job", "coverage-shortfalls").Logger(),
		AllowRecompute: cfg.AllowShortfallRecompute,
		Locker:         locker,
		LockTTL:        cfg.BatchLockTTL,
	}
	payoutSvc := &payout.Service{
		Store:   &payout.PGStore{Pool: pool},
		Log:     logger.With().Str("job", "fleet-settlements").Logger(),
		Locker:  locker,
		LockTTL: cfg.BatchLockTTL,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ShortfallSchedule, func() {
		if _, err := shortfallSvc.Run(ctx, time.Now().UTC()); err != nil {
			logger.Error().Err(err).Msg("coverage shortfall batch failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.ShortfallSchedule).Msg("register shortfall schedule")
	}
	if _, err := scheduler.AddFunc(cfg.PayoutSchedule, func() {
		if _, err := payoutSvc.Run(ctx, time.Now().UTC()); err != nil {
			logger.Error().Err(err).Msg("fleet settlement batch failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.PayoutSchedule).Msg("register payout schedule")
	}

	logger.Info().
		Str("shortfall_schedule", cfg.ShortfallSchedule).
		Str("payout_schedule", cfg.PayoutSchedule).
		Msg("worker starting")
	scheduler.Start()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "fleet-worker"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
