package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/infopay/backend/internal/config"
	"github.com/infopay/backend/internal/infra/logger"
	"github.com/infopay/backend/internal/jobs/expire"
	pgrepo "github.com/infopay/backend/internal/repo/postgres"
)

func main() {
	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	job := expire.New(pgrepo.NewOrderRepo(pool), cfg.Sweep.PendingTTL, log)

	interval := cfg.Sweep.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log.Info("pending order sweeper started",
		zap.Duration("interval", interval),
		zap.Duration("pending_ttl", cfg.Sweep.PendingTTL),
	)

	if err := job.Run(ctx); err != nil {
		log.Error("expire sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("pending order sweeper stopped")
			return
		case <-ticker.C:
			if err := job.Run(ctx); err != nil {
				log.Error("expire sweep failed", zap.Error(err))
			}
		}
	}
}
