package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/patient-queue-engine/internal/api"
	"github.com/hackgods/patient-queue-engine/internal/config"
	"github.com/hackgods/patient-queue-engine/internal/db"
	"github.com/hackgods/patient-queue-engine/internal/notes"
	"github.com/hackgods/patient-queue-engine/internal/patient"
	"github.com/hackgods/patient-queue-engine/internal/queue"
	redisclient "github.com/hackgods/patient-queue-engine/internal/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s timezone=%s", cfg.Env, cfg.HTTPPort, cfg.Location)

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

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.Fatalf("schema migration error: %v", err)
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	repo := queue.NewPgRepository(pgPool)
	patients := patient.NewPgDirectory(pgPool)
	records := notes.NewPgStore(pgPool)

	svc := queue.NewService(queue.Dependencies{
		Store:     queue.NewStore(queue.WithWriter(repo)),
		Patients:  patients,
		Records:   records,
		Events:    repo,
		Publisher: redisclient.NewPublisher(rdb, cfg.EventsChannel),
	}, cfg)

	entries, err := repo.LoadEntries(rootCtx, svc.RestoreSince())
	if err != nil {
		log.Fatalf("load queue entries: %v", err)
	}
	if err := svc.Restore(entries); err != nil {
		log.Fatalf("restore queue: %v", err)
	}
	log.Printf("restored %d queue entries", len(entries))

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Patients: patients,
		Records:  records,
		Health:   api.NewHealthHandler(pgPool, rdb, cfg.Env, cfg.Version),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
