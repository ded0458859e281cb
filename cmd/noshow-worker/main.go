package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulseone/appointments-service/internal/booking"
	"github.com/pulseone/appointments-service/internal/config"
	"github.com/pulseone/appointments-service/internal/db"
	"github.com/pulseone/appointments-service/internal/kafka"
	"github.com/pulseone/appointments-service/internal/logging"
	redisclient "github.com/pulseone/appointments-service/internal/redis"
)

// The no-show worker sweeps past-date appointments that were never completed
// and marks them NO_SHOW so queues and analytics stay truthful.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New("noshow-worker", cfg.Env)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.SweepInterval).Msg("no-show worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()

	var notifier booking.Notifier = booking.NopNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer publisher.Close()
		notifier = publisher
	}

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(repo, locker, notifier, log)

	runOnce(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping no-show worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, log)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	swept, err := svc.SweepOverdue(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("no-show sweep failed")
		return
	}
	log.Info().Int("swept", swept).Dur("took", time.Since(start)).Msg("no-show sweep complete")
}
