package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindwell/session-scheduling/internal/config"
	"github.com/mindwell/session-scheduling/internal/db"
)

// The simulator hammers the booking API with concurrent workers that all
// fight over the same therapists' slots. A healthy run shows exactly one
// success per contested slot and a pile of slot_conflict/slot_unavailable
// responses, never a double booking.

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	CreateRatio    float64
	ConfirmRatio   float64
	ReadRatio      float64
	TherapistLimit int
	ClientLimit    int
	PostgresDSN    string
}

type DataPool struct {
	Therapists []uuid.UUID
	Clients    []uuid.UUID
	mu         sync.RWMutex
	sessions   []uuid.UUID // Thread-safe list of created session IDs
}

func (dp *DataPool) AddSession(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.sessions = append(dp.sessions, id)
}

func (dp *DataPool) GetRandomSession() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.sessions) == 0 {
		return uuid.Nil, false
	}
	idx := rand.Intn(len(dp.sessions))
	return dp.sessions[idx], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
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

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Create         OperationMetrics
	ConfirmSession OperationMetrics
	ReadSession    OperationMetrics
	ReadStats      OperationMetrics
	ReadSchedule   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d create=%.2f confirm=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.CreateRatio, cfg.ConfirmRatio, cfg.ReadRatio)

	// Load data from Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d therapists, %d clients", len(dataPool.Therapists), len(dataPool.Clients))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
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
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		CreateRatio:    getFloat("SIM_CREATE_RATIO", 0.5),
		ConfirmRatio:   getFloat("SIM_CONFIRM_RATIO", 0.2),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.3),
		TherapistLimit: getInt("SIM_THERAPIST_LIMIT", 20),
		ClientLimit:    getInt("SIM_CLIENT_LIMIT", 1000),
		PostgresDSN:    baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.CreateRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.CreateRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id FROM therapists LIMIT $1
	`, cfg.TherapistLimit)
	if err != nil {
		return nil, fmt.Errorf("load therapists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Therapists = append(dataPool.Therapists, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM clients LIMIT $1
	`, cfg.ClientLimit)
	if err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Clients = append(dataPool.Clients, id)
	}

	if len(dataPool.Therapists) == 0 {
		return nil, fmt.Errorf("no therapists loaded")
	}
	if len(dataPool.Clients) == 0 {
		return nil, fmt.Errorf("no clients loaded")
	}

	return dataPool, nil
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

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.CreateRatio {
				s.doCreate(ctx, rng)
			} else if r < s.config.CreateRatio+s.config.ConfirmRatio {
				s.doConfirmSession(ctx, rng)
			} else {
				switch rng.Intn(3) {
				case 0:
					s.doReadSession(ctx, rng)
				case 1:
					s.doReadStats(ctx, rng)
				case 2:
					s.doReadSchedule(ctx, rng)
				}
			}
		}
	}
}

// doCreate fetches the free slots for a nearby date and races the other
// workers for one of the first few, which keeps slot contention high.
func (s *Simulator) doCreate(ctx context.Context, rng *rand.Rand) {
	therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]
	clientID := s.pool.Clients[rng.Intn(len(s.pool.Clients))]
	date := time.Now().AddDate(0, 0, 1+rng.Intn(5)).Format("2006-01-02")

	slotsURL := fmt.Sprintf("%s/therapists/%s/slots?date=%s&duration=60", s.config.APIBaseURL, therapistID, date)
	req, _ := http.NewRequestWithContext(ctx, "GET", slotsURL, nil)

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.Create.Record(0, false, false)
		return
	}

	var slots []struct {
		Start time.Time `json:"start"`
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &slots) != nil || len(slots) == 0 {
		return
	}

	pick := slots[rng.Intn(minInt(3, len(slots)))]

	reqBody := map[string]any{
		"session_type":     "individual",
		"therapist_id":     therapistID.String(),
		"scheduled_at":     pick.Start.Format(time.RFC3339),
		"duration_minutes": 60,
		"roster": []map[string]string{
			{"user_id": therapistID.String(), "role": "therapist"},
			{"user_id": clientID.String(), "role": "client"},
		},
	}
	payload, _ := json.Marshal(reqBody)

	start := time.Now()

	req, _ = http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/sessions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err = s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				json.Unmarshal(bodyBytes, &created)
				if created.ID != uuid.Nil {
					s.pool.AddSession(created.ID)
				}
			}
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Create.Record(latency, success, conflict)
}

func (s *Simulator) doConfirmSession(ctx context.Context, rng *rand.Rand) {
	sessionID, ok := s.pool.GetRandomSession()
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/sessions/%s/confirm", s.config.APIBaseURL, sessionID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.ConfirmSession.Record(latency, success, conflict)
}

func (s *Simulator) doReadSession(ctx context.Context, rng *rand.Rand) {
	sessionID, ok := s.pool.GetRandomSession()
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/sessions/%s", s.config.APIBaseURL, sessionID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ReadSession.Record(latency, success, false)
}

func (s *Simulator) doReadStats(ctx context.Context, rng *rand.Rand) {
	sessionID, ok := s.pool.GetRandomSession()
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/sessions/%s/stats", s.config.APIBaseURL, sessionID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ReadStats.Record(latency, success, false)
}

func (s *Simulator) doReadSchedule(ctx context.Context, rng *rand.Rand) {
	therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]
	startDate := time.Now().Format("2006-01-02")
	endDate := time.Now().AddDate(0, 0, 7).Format("2006-01-02")

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/therapists/%s/schedule?start=%s&end=%s&duration=60",
			s.config.APIBaseURL, therapistID, startDate, endDate), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ReadSchedule.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Create Session", &s.metrics.Create)
	printOperationReport("Confirm Session", &s.metrics.ConfirmSession)
	printOperationReport("Read Session", &s.metrics.ReadSession)
	printOperationReport("Read Stats", &s.metrics.ReadStats)
	printOperationReport("Read Schedule", &s.metrics.ReadSchedule)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failures := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failures > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failures, float64(failures)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

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

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
