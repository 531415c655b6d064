package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindwell/session-scheduling/internal/config"
	"github.com/mindwell/session-scheduling/internal/db"
	redisclient "github.com/mindwell/session-scheduling/internal/redis"
	"github.com/mindwell/session-scheduling/internal/schedule"
	"github.com/mindwell/session-scheduling/internal/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reconcile-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running reconcile worker in env=%s interval=%s grace=%s", cfg.Env, cfg.WorkerInterval, cfg.CompletionGrace)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	scheduleRepo := schedule.NewPgRepository(pgPool)
	engine := schedule.NewEngine(scheduleRepo, scheduleRepo, cfg)
	sessionRepo := session.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSessionLocker(rdb, cfg.LockTTL)
	coordinator := session.NewCoordinator(sessionRepo, engine, locker, cfg)

	// Run once at startup
	runOnce(rootCtx, coordinator)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, coordinator)
		}
	}
}

func runOnce(ctx context.Context, coordinator *session.Coordinator) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := coordinator.ReconcileSessions(runCtx); err != nil {
		log.Printf("reconcile run error: %v", err)
		return
	}
	log.Printf("reconcile run complete in %s", time.Since(start))
}
