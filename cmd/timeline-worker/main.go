package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hackgods/patient-queue-engine/internal/config"
	"github.com/hackgods/patient-queue-engine/internal/queue"
	redisclient "github.com/hackgods/patient-queue-engine/internal/redis"
)

const sweepLockName = "timeline-sweep"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("timeline-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running timeline worker in env=%s interval=%s timeout=%s api=%s",
		cfg.Env, cfg.WorkerInterval, cfg.TimelineTimeout, cfg.APIBaseURL)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// The queue lives in the api-server's memory, so the sweep runs there.
	// Replicas of this worker take turns through the lock.
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	client := &http.Client{Timeout: 20 * time.Second}
	endpoint := strings.TrimRight(cfg.APIBaseURL, "/") + "/queue/timeline-sweep"

	runOnce(rootCtx, locker, client, endpoint)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping timeline worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, locker, client, endpoint)
		}
	}
}

func runOnce(ctx context.Context, locker redisclient.Locker, client *http.Client, endpoint string) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	var res queue.SweepResult
	err := locker.WithLock(runCtx, sweepLockName, func(ctx context.Context) error {
		var err error
		res, err = sweep(ctx, client, endpoint)
		return err
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		log.Println("another worker holds the sweep lock, skipping")
		return
	case err != nil:
		log.Printf("timeline sweep error: %v", err)
		return
	}

	log.Printf("timeline sweep complete in %s examined=%d advanced=%d flagged=%d failed=%d",
		time.Since(start), res.Examined, res.Advanced, res.Flagged, res.Failed)
}

func sweep(ctx context.Context, client *http.Client, endpoint string) (queue.SweepResult, error) {
	var res queue.SweepResult

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return res, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return res, fmt.Errorf("call sweep endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("sweep endpoint returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, fmt.Errorf("decode sweep result: %w", err)
	}
	return res, nil
}
