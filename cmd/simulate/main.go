// simulate fires concurrent booking requests at the API to exercise the
// no-double-booking guarantee: for every contested interval at most one
// request may succeed, the rest must come back as conflicts.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clinicboard/clinic-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Workers     int
	Rounds      int
	ClinicTZ    string
	PostgresDSN string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
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

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95idx := len(latencies) * 95 / 100
	if p95idx >= len(latencies) {
		p95idx = len(latencies) - 1
	}
	p95 = latencies[p95idx]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadSimConfig()

	loc, err := time.LoadLocation(cfg.ClinicTZ)
	if err != nil {
		log.Fatalf("load clinic tz: %v", err)
	}

	practitionerID, patientIDs := loadTestData(cfg.PostgresDSN)
	log.Printf("simulating as practitioner %s with %d patients, %d workers, %d rounds",
		practitionerID, len(patientIDs), cfg.Workers, cfg.Rounds)

	client := &http.Client{Timeout: 10 * time.Second}
	metrics := &OperationMetrics{}

	slot := nextMonday(loc).Add(10 * time.Hour) // Mon 10:00 clinic time
	doubleBooked := 0

	for round := 0; round < cfg.Rounds; round++ {
		start := slot.Add(time.Duration(round) * 30 * time.Minute)
		successes := runRound(client, cfg, metrics, practitionerID, patientIDs, start)
		if successes > 1 {
			doubleBooked++
			log.Printf("VIOLATION: interval %s booked %d times", start, successes)
		}
	}

	avg, p50, p95 := metrics.Stats()
	log.Printf("total=%d success=%d conflict=%d error=%d", metrics.Total, metrics.Success, metrics.Conflict, metrics.Error)
	log.Printf("latency avg=%s p50=%s p95=%s", avg, p50, p95)

	if doubleBooked > 0 {
		log.Fatalf("%d contested intervals were double booked", doubleBooked)
	}
	log.Println("no double bookings observed")
}

// runRound races all workers at the same interval and returns how many got
// a 201 back.
func runRound(client *http.Client, cfg SimConfig, metrics *OperationMetrics, practitionerID uuid.UUID, patientIDs []uuid.UUID, start time.Time) int {
	var successes int64
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		patientID := patientIDs[w%len(patientIDs)]
		go func() {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"patient_id": patientID.String(),
				"start":      start.Format(time.RFC3339),
				"title":      "load test visit",
			})

			req, err := http.NewRequest(http.MethodPost, cfg.APIBaseURL+"/bookings", bytes.NewReader(body))
			if err != nil {
				metrics.Record(0, false, false)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Practitioner-ID", practitionerID.String())

			began := time.Now()
			resp, err := client.Do(req)
			latency := time.Since(began)
			if err != nil {
				metrics.Record(latency, false, false)
				return
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)

			switch resp.StatusCode {
			case http.StatusCreated:
				atomic.AddInt64(&successes, 1)
				metrics.Record(latency, true, false)
			case http.StatusConflict:
				metrics.Record(latency, false, true)
			default:
				metrics.Record(latency, false, false)
			}
		}()
	}

	wg.Wait()
	return int(successes)
}

func loadTestData(dsn string) (uuid.UUID, []uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	var practitionerID uuid.UUID
	if err := pool.QueryRow(ctx, `SELECT id FROM practitioners LIMIT 1`).Scan(&practitionerID); err != nil {
		log.Fatalf("load practitioner (run cmd/seed first): %v", err)
	}

	rows, err := pool.Query(ctx, `SELECT id FROM patients WHERE practitioner_id = $1 LIMIT 50`, practitionerID)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	defer rows.Close()

	var patientIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			log.Fatalf("scan patient: %v", err)
		}
		patientIDs = append(patientIDs, id)
	}
	if len(patientIDs) == 0 {
		log.Fatal("no patients found, run cmd/seed first")
	}

	return practitionerID, patientIDs
}

func nextMonday(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	for day.Weekday() != time.Monday || !day.After(now) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  envOr("API_BASE_URL", "http://127.0.0.1:8080"),
		Workers:     envIntOr("SIM_WORKERS", 16),
		Rounds:      envIntOr("SIM_ROUNDS", 8),
		ClinicTZ:    envOr("CLINIC_TZ", "America/Sao_Paulo"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "invalid int for %s=%q, using %d\n", key, v, fallback)
	}
	return fallback
}
