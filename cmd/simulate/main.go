package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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
	"github.com/rs/zerolog"

	"github.com/hackgods/clinician-scheduling/internal/auth"
	"github.com/hackgods/clinician-scheduling/internal/config"
	"github.com/hackgods/clinician-scheduling/internal/db"
	"github.com/hackgods/clinician-scheduling/internal/logging"
	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	DecideRatio  float64
	ReadRatio    float64
	Patients     int
	SlotLimit    int
	HotSlots     int
	PostgresDSN  string
	JWTSecret    string
}

type target struct {
	SlotID   uuid.UUID
	DoctorID uuid.UUID
}

type pendingRequest struct {
	RequestID uuid.UUID
	DoctorID  uuid.UUID
}

// DataPool holds the slots under contention and the tokens of the
// simulated callers.
type DataPool struct {
	Slots         []target
	Doctors       []uuid.UUID
	PatientTokens []string
	doctorTokens  map[uuid.UUID]string

	mu           sync.Mutex
	pending      []pendingRequest
	appointments []uuid.UUID
}

func (dp *DataPool) AddPending(p pendingRequest) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.pending = append(dp.pending, p)
}

// TakePending removes and returns a random pending request.
func (dp *DataPool) TakePending(rng *rand.Rand) (pendingRequest, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.pending) == 0 {
		return pendingRequest{}, false
	}
	idx := rng.Intn(len(dp.pending))
	p := dp.pending[idx]
	dp.pending[idx] = dp.pending[len(dp.pending)-1]
	dp.pending = dp.pending[:len(dp.pending)-1]
	return p, true
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
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

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0, 0
	}
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

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pct(50), pct(95), pct(99)
}

type Metrics struct {
	Booking   OperationMetrics
	Decide    OperationMetrics
	Available OperationMetrics
	Mine      OperationMetrics
	ReadAppt  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	cfg, logger := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("decide", cfg.DecideRatio).
		Float64("read", cfg.ReadRatio).
		Int("hot_slots", cfg.HotSlots).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("slots", len(dataPool.Slots)).
		Int("doctors", len(dataPool.Doctors)).
		Int("patients", len(dataPool.PatientTokens)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, zerolog.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		l := logging.New("dev", "info", "simulate")
		l.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel, "simulate")

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		DecideRatio:  getFloat("SIM_DECIDE_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		Patients:     getInt("SIM_PATIENTS", 500),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 2000),
		HotSlots:     getInt("SIM_HOT_SLOTS", 0),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
	}

	total := cfg.BookingRatio + cfg.DecideRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.DecideRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, logger
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
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	return nil
}

// loadDataPool reads upcoming available slots straight from Postgres and
// mints tokens for their clinicians and for a set of random patients.
// SIM_HOT_SLOTS narrows the pool so that many patients race for few slots.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{doctorTokens: make(map[uuid.UUID]string)}

	limit := cfg.SlotLimit
	if cfg.HotSlots > 0 {
		limit = cfg.HotSlots
	}

	rows, err := pool.Query(ctx, `
		SELECT id, doctor_id FROM calendar_slots
		WHERE status = 'available' AND slot_date >= current_date
		ORDER BY slot_date, start_minute
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t target
		if err := rows.Scan(&t.SlotID, &t.DoctorID); err != nil {
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no slots loaded, run the seed first")
	}

	tokens := auth.NewTokens(cfg.JWTSecret, "clinician-scheduling")
	for _, t := range dataPool.Slots {
		if _, ok := dataPool.doctorTokens[t.DoctorID]; ok {
			continue
		}
		tok, err := tokens.Issue(scheduling.Caller{ID: t.DoctorID, Role: scheduling.RoleClinician}, 2*cfg.Duration+time.Hour)
		if err != nil {
			return nil, err
		}
		dataPool.doctorTokens[t.DoctorID] = tok
		dataPool.Doctors = append(dataPool.Doctors, t.DoctorID)
	}

	for i := 0; i < cfg.Patients; i++ {
		tok, err := tokens.Issue(scheduling.Caller{ID: uuid.New(), Role: scheduling.RolePatient}, 2*cfg.Duration+time.Hour)
		if err != nil {
			return nil, err
		}
		dataPool.PatientTokens = append(dataPool.PatientTokens, tok)
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.DecideRatio:
				s.doDecide(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doAvailable(ctx, rng)
				case 1:
					s.doMine(ctx, rng)
				case 2:
					s.doReadAppointment(ctx, rng)
				}
			}
		}
	}
}

// call sends a request and reports status and latency. status is 0 when the
// request never got a response.
func (s *Simulator) call(ctx context.Context, method, path, token string, body any, out any) (int, time.Duration) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, latency
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	token := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]

	var created scheduling.BookingRequest
	status, latency := s.call(ctx, http.MethodPost, "/booking-requests", token, map[string]string{
		"slot_id":         t.SlotID.String(),
		"chief_complaint": "load test",
	}, &created)

	if status == http.StatusCreated {
		s.pool.AddPending(pendingRequest{RequestID: created.ID, DoctorID: created.DoctorID})
	}
	s.metrics.Booking.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
}

// doDecide confirms most pending requests and rejects the rest, which puts
// their slots back into play.
func (s *Simulator) doDecide(ctx context.Context, rng *rand.Rand) {
	p, ok := s.pool.TakePending(rng)
	if !ok {
		return
	}
	token := s.pool.doctorTokens[p.DoctorID]

	var (
		status  int
		latency time.Duration
	)
	if rng.Float64() < 0.7 {
		var decision scheduling.BookingDecision
		status, latency = s.call(ctx, http.MethodPost, fmt.Sprintf("/booking-requests/%s/confirm", p.RequestID), token, nil, &decision)
		if status == http.StatusOK && decision.Appointment != nil {
			s.pool.AddAppointment(decision.Appointment.ID)
		}
	} else {
		status, latency = s.call(ctx, http.MethodPost, fmt.Sprintf("/booking-requests/%s/reject", p.RequestID), token,
			map[string]string{"reason": "simulated rejection"}, nil)
	}

	s.metrics.Decide.Record(latency, status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doAvailable(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	token := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]

	status, latency := s.call(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/slots/available", doctorID), token, nil, nil)
	s.metrics.Available.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) doMine(ctx context.Context, rng *rand.Rand) {
	token := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]

	status, latency := s.call(ctx, http.MethodGet, "/booking-requests/mine", token, nil, nil)
	s.metrics.Mine.Record(latency, status == http.StatusOK, false)
}

// doReadAppointment reads an appointment as its clinician.
func (s *Simulator) doReadAppointment(ctx context.Context, rng *rand.Rand) {
	s.pool.mu.Lock()
	if len(s.pool.appointments) == 0 {
		s.pool.mu.Unlock()
		return
	}
	apptID := s.pool.appointments[rng.Intn(len(s.pool.appointments))]
	s.pool.mu.Unlock()

	// the simulator does not track which clinician owns the appointment,
	// so a 403 from another clinician counts as a completed read
	token := s.pool.doctorTokens[s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]]
	status, latency := s.call(ctx, http.MethodGet, "/appointments/"+apptID.String(), token, nil, nil)
	s.metrics.ReadAppt.Record(latency, status == http.StatusOK || status == http.StatusForbidden, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots under contention: %d\n", len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm/Reject", &s.metrics.Decide)
	printOperationReport("Available slots", &s.metrics.Available)
	printOperationReport("My requests", &s.metrics.Mine)
	printOperationReport("Read appointment", &s.metrics.ReadAppt)

	booked := atomic.LoadInt64(&s.metrics.Booking.Success)
	fmt.Printf("Successful bookings: %d across %d slots\n", booked, len(s.pool.Slots))
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95, p99 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s p99=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond), p99.Round(time.Millisecond))
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
