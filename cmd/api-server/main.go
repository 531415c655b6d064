package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindwell/session-scheduling/internal/api"
	"github.com/mindwell/session-scheduling/internal/config"
	"github.com/mindwell/session-scheduling/internal/db"
	redisclient "github.com/mindwell/session-scheduling/internal/redis"
	"github.com/mindwell/session-scheduling/internal/schedule"
	"github.com/mindwell/session-scheduling/internal/session"
)

const version = "0.3.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s tz=%s", cfg.Env, cfg.HTTPPort, cfg.Location)

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

	// Connect Redis
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
	availabilityCache := redisclient.NewAvailabilityCache(rdb, scheduleRepo, cfg.AvailabilityCacheTTL)

	// The read path serves cached availability; the coordinator's freshness
	// check runs against the uncached repository so a stale cache can never
	// approve a booking.
	readEngine := schedule.NewEngine(availabilityCache, scheduleRepo, cfg)
	freshEngine := schedule.NewEngine(scheduleRepo, scheduleRepo, cfg)
	projector := schedule.NewProjector(readEngine)

	sessionRepo := session.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSessionLocker(rdb, cfg.LockTTL)
	coordinator := session.NewCoordinator(sessionRepo, freshEngine, locker, cfg)

	router := api.NewRouter(api.RouterConfig{
		Coordinator: coordinator,
		Engine:      readEngine,
		Projector:   projector,
		Config:      cfg,
		PgPool:      pgPool,
		Redis:       rdb,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	case <-rootCtx.Done():
	}

	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}
