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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulseone/appointments-service/internal/config"
	"github.com/pulseone/appointments-service/internal/db"
)

// The simulator hammers the booking API with concurrent patients and then
// audits the database: per (session, date), queue numbers must be distinct
// and contiguous and the count must not exceed capacity.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ReadRatio    float64
	PatientCount int
	SessionLimit int
	PostgresDSN  string
}

type target struct {
	SessionID int64
	DoctorID  string
	Date      string
	Mode      string
}

type DataPool struct {
	Targets  []target
	Patients []string

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Rejected int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg = sum / time.Duration(len(sorted))
	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[len(sorted)*95/100]
	return avg, p50, p95
}

type Metrics struct {
	Booking  OperationMetrics
	Position OperationMetrics
	History  OperationMetrics
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

	cfg := loadSimConfig()
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		log.Fatal("SIM_WORKERS and SIM_DURATION must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d bookable (session, date) targets, %d synthetic patients",
		len(pool.Targets), len(pool.Patients))

	sim := &Simulator{
		config: cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	sim.Run()
	sim.PrintReport()

	if err := auditQueueNumbers(context.Background(), pgPool); err != nil {
		log.Fatalf("INVARIANT VIOLATION: %v", err)
	}
	log.Println("queue-number audit passed: distinct, contiguous, within capacity")
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.7),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		PatientCount: getInt("SIM_PATIENT_COUNT", 500),
		SessionLimit: getInt("SIM_SESSION_LIMIT", 50),
		PostgresDSN:  baseCfg.PostgresDSN,
	}
}

// loadDataPool picks sessions whose weekday falls within the next week so
// every target is actually bookable.
func loadDataPool(ctx context.Context, pgPool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	pool := &DataPool{}

	rows, err := pgPool.Query(ctx, `
		SELECT id, doctor_id, day_of_week, service_mode
		FROM sessions
		WHERE active
		LIMIT $1
	`, cfg.SessionLimit)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()

	today := time.Now().UTC()
	for rows.Next() {
		var (
			id        int64
			doctorID  string
			dayOfWeek int
			mode      string
		)
		if err := rows.Scan(&id, &doctorID, &dayOfWeek, &mode); err != nil {
			return nil, err
		}

		// Next occurrence of the session's weekday, today included.
		offset := (dayOfWeek - int(today.Weekday()) + 7) % 7
		date := today.AddDate(0, 0, offset).Format("2006-01-02")

		pool.Targets = append(pool.Targets, target{
			SessionID: id,
			DoctorID:  doctorID,
			Date:      date,
			Mode:      mode,
		})
	}
	if len(pool.Targets) == 0 {
		return nil, fmt.Errorf("no active sessions found, run cmd/seed first")
	}

	for i := 0; i < cfg.PatientCount; i++ {
		pool.Patients = append(pool.Patients, fmt.Sprintf("sim-pat-%04d", i))
	}

	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("running for %s with %d workers", s.config.Duration, s.config.Workers)

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
			total := s.config.BookingRatio + s.config.ReadRatio
			r := rng.Float64() * total
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case rng.Intn(2) == 0:
				s.doPosition(ctx, rng)
			default:
				s.doHistory(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	tgt := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	body, _ := json.Marshal(map[string]any{
		"patient_id": patient,
		"doctor_id":  tgt.DoctorID,
		"session_id": tgt.SessionID,
		"date":       tgt.Date,
		"type":       tgt.Mode,
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		if status == http.StatusCreated {
			var conf struct {
				AppointmentID uuid.UUID `json:"appointment_id"`
			}
			if json.NewDecoder(resp.Body).Decode(&conf) == nil && conf.AppointmentID != uuid.Nil {
				s.pool.AddAppointment(conf.AppointmentID)
			}
		}
		resp.Body.Close()
	}

	s.metrics.Booking.Record(latency, status, err)
}

func (s *Simulator) doPosition(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments/%s/position", s.config.APIBaseURL, id), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		resp.Body.Close()
	}
	s.metrics.Position.Record(latency, status, err)
}

func (s *Simulator) doHistory(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments/%s/history", s.config.APIBaseURL, id), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		resp.Body.Close()
	}
	s.metrics.History.Record(latency, status, err)
}

// auditQueueNumbers verifies the core booking guarantee directly against the
// database after the storm.
func auditQueueNumbers(ctx context.Context, pgPool *pgxpool.Pool) error {
	rows, err := pgPool.Query(ctx, `
		SELECT session_id, appointment_date,
		       COUNT(*) AS total,
		       COUNT(DISTINCT queue_number) AS distinct_numbers,
		       MAX(queue_number) AS max_number
		FROM appointments
		WHERE status <> 'CANCELLED'
		GROUP BY session_id, appointment_date
	`)
	if err != nil {
		return fmt.Errorf("audit query: %w", err)
	}
	defer rows.Close()

	audited := 0
	for rows.Next() {
		var (
			sessionID       int64
			date            time.Time
			total           int64
			distinctNumbers int64
			maxNumber       int64
		)
		if err := rows.Scan(&sessionID, &date, &total, &distinctNumbers, &maxNumber); err != nil {
			return err
		}
		if distinctNumbers != total {
			return fmt.Errorf("session %d on %s: %d appointments share %d distinct queue numbers",
				sessionID, date.Format("2006-01-02"), total, distinctNumbers)
		}
		if maxNumber != total {
			return fmt.Errorf("session %d on %s: %d appointments but max queue number %d (gap or overrun)",
				sessionID, date.Format("2006-01-02"), total, maxNumber)
		}
		audited++
	}
	log.Printf("audited %d (session, date) groups", audited)
	return rows.Err()
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("SIMULATION REPORT")
	fmt.Printf("duration=%s workers=%d\n\n", s.config.Duration, s.config.Workers)

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Position", &s.metrics.Position)
	printOperationReport("History", &s.metrics.History)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	rejected := atomic.LoadInt64(&om.Rejected)
	errs := atomic.LoadInt64(&om.Error)
	avg, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  total=%d success=%d (%.1f%%)\n", total, success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  conflicts=%d (capacity/duplicate/contention)\n", conflict)
	}
	if rejected > 0 {
		fmt.Printf("  rejected=%d (validation)\n", rejected)
	}
	if errs > 0 {
		fmt.Printf("  errors=%d\n", errs)
	}
	fmt.Printf("  latency avg=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
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
