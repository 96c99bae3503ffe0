package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/patient-queue-engine/internal/config"
	"github.com/hackgods/patient-queue-engine/internal/db"
	"github.com/hackgods/patient-queue-engine/internal/queue"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	EnqueueRatio float64
	AdvanceRatio float64
	ReadRatio    float64
	UrgentRatio  float64
	PatientLimit int
	PostgresDSN  string
}

// nextAction maps a status to the endpoint that moves it forward.
var nextAction = map[queue.Status]string{
	queue.StatusWaiting:        "nurse-complete",
	queue.StatusNurseCompleted: "timeline-ready",
	queue.StatusReadyForDoctor: "start",
	queue.StatusInConsultation: "complete",
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pct(50), pct(95)
}

type Metrics struct {
	Enqueue OperationMetrics
	Advance OperationMetrics
	Read    OperationMetrics
}

type Simulator struct {
	config   SimConfig
	patients []string
	client   *http.Client
	metrics  Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d enqueue=%.2f advance=%.2f read=%.2f urgent=%.2f",
		cfg.Duration, cfg.Workers, cfg.EnqueueRatio, cfg.AdvanceRatio, cfg.ReadRatio, cfg.UrgentRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	patients, err := loadPatients(ctx, pgPool, cfg.PatientLimit)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	log.Printf("loaded: %d patients", len(patients))

	sim := &Simulator{
		config:   cfg,
		patients: patients,
		client:   &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", baseCfg.APIBaseURL),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		EnqueueRatio: getFloat("SIM_ENQUEUE_RATIO", 0.3),
		AdvanceRatio: getFloat("SIM_ADVANCE_RATIO", 0.4),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		UrgentRatio:  getFloat("SIM_URGENT_RATIO", 0.15),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 200),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	total := cfg.EnqueueRatio + cfg.AdvanceRatio + cfg.ReadRatio
	if total > 0 {
		cfg.EnqueueRatio /= total
		cfg.AdvanceRatio /= total
		cfg.ReadRatio /= total
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	return out, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.EnqueueRatio:
			s.doEnqueue(ctx, rng)
		case r < s.config.EnqueueRatio+s.config.AdvanceRatio:
			s.doAdvance(ctx, rng)
		default:
			s.doRead(ctx, rng)
		}
	}
}

func (s *Simulator) doEnqueue(ctx context.Context, rng *rand.Rand) {
	priority := queue.PriorityNormal
	if rng.Float64() < s.config.UrgentRatio {
		priority = queue.PriorityUrgent
	}
	body, _ := json.Marshal(map[string]string{
		"patient_id": s.patients[rng.Intn(len(s.patients))],
		"priority":   string(priority),
	})

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/queue", body, nil)
	s.metrics.Enqueue.Record(time.Since(start), status, err)
}

// doAdvance picks a random active entry and pushes it one step. Several
// workers racing on the same entry or on the consultation slot is the point.
func (s *Simulator) doAdvance(ctx context.Context, rng *rand.Rand) {
	var view struct {
		Entries []struct {
			ID     string       `json:"id"`
			Status queue.Status `json:"status"`
		} `json:"entries"`
	}
	if _, err := s.call(ctx, http.MethodGet, "/queue", nil, &view); err != nil {
		return
	}

	var candidates []string
	var actions []string
	for _, e := range view.Entries {
		if action, ok := nextAction[e.Status]; ok {
			candidates = append(candidates, e.ID)
			actions = append(actions, action)
		}
	}
	if len(candidates) == 0 {
		return
	}
	i := rng.Intn(len(candidates))

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/queue/"+candidates[i]+"/"+actions[i], nil, nil)
	s.metrics.Advance.Record(time.Since(start), status, err)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	paths := []string{"/queue", "/queue/waiting", "/queue/current"}

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, paths[rng.Intn(len(paths))], nil, nil)
	s.metrics.Read.Record(time.Since(start), status, err)
}

func (s *Simulator) call(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Enqueue", &s.metrics.Enqueue)
	printOperationReport("Advance", &s.metrics.Advance)
	printOperationReport("Read", &s.metrics.Read)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var final struct {
		Stats queue.Stats `json:"stats"`
	}
	if _, err := s.call(ctx, http.MethodGet, "/queue", nil, &final); err == nil {
		fmt.Printf("Final queue: active=%d in_consultation=%d completed=%d total=%d\n",
			final.Stats.Active.Total, final.Stats.InConsultation.Total,
			final.Stats.Completed.Total, final.Stats.Total)
		if final.Stats.InConsultation.Total > 1 {
			fmt.Println("WARNING: more than one consultation active")
		}
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
