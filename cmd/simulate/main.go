package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

// simulate drives a running api-server with many workers that race for the
// same provider slots. Every slot should end up with exactly one booking;
// everything else must come back as 409.
type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	Providers  int
	Subjects   int
	Days       int
	ReadRatio  float64

	// CancelRatio above zero disables the double booking check.
	CancelRatio float64
}

type DataPool struct {
	Providers    []uuid.UUID
	Subjects     []uuid.UUID
	Dates        []string
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
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
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[min2(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]
	return avg, min, max, p50, p95
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type Metrics struct {
	Booking   OperationMetrics
	ReadByID  OperationMetrics
	FreeSlots OperationMetrics
	Cancel    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *slog.Logger

	// booked counts successful bookings per provider|date|start.
	booked sync.Map
}

func main() {
	logger := logging.New("simulate", getEnv("LOG_LEVEL", "info"))
	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger.Info("simulator starting", "duration", cfg.Duration, "workers", cfg.Workers,
		"providers", cfg.Providers, "days", cfg.Days)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	pool, err := sim.prepare(ctx)
	cancel()
	if err != nil {
		logger.Error("prepare data", "err", err)
		os.Exit(1)
	}
	sim.pool = pool

	sim.Run()
	sim.PrintReport()

	if doubles := sim.doubleBookings(); doubles > 0 {
		logger.Error("double bookings detected", "slots", doubles)
		os.Exit(2)
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		Providers:   getInt("SIM_PROVIDERS", 3),
		Subjects:    getInt("SIM_SUBJECTS", 50),
		Days:        getInt("SIM_DAYS", 2),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Providers <= 0 || cfg.Subjects <= 0 || cfg.Days <= 0 {
		return fmt.Errorf("SIM_PROVIDERS, SIM_SUBJECTS and SIM_DAYS must be > 0")
	}
	return nil
}

// prepare registers a small, fresh set of providers and subjects so that the
// workers contend on a known number of slots.
func (s *Simulator) prepare(ctx context.Context) (*DataPool, error) {
	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	pool := &DataPool{}

	for i := 0; i < s.config.Providers; i++ {
		var out struct {
			ID uuid.UUID `json:"id"`
		}
		status, err := s.postJSON(ctx, "/providers", map[string]any{
			"name":           "Dr. " + faker.Name(),
			"license_number": "SIM-" + uuid.NewString()[:12],
			"specialty":      "General Practice",
		}, &out)
		if err != nil || status != http.StatusCreated {
			return nil, fmt.Errorf("create provider: status=%d err=%v", status, err)
		}
		pool.Providers = append(pool.Providers, out.ID)
	}

	for i := 0; i < s.config.Subjects; i++ {
		var out struct {
			ID uuid.UUID `json:"id"`
		}
		status, err := s.postJSON(ctx, "/subjects", map[string]any{
			"name":  faker.Name(),
			"email": faker.Email(),
		}, &out)
		if err != nil || status != http.StatusCreated {
			return nil, fmt.Errorf("create subject: status=%d err=%v", status, err)
		}
		pool.Subjects = append(pool.Subjects, out.ID)
	}

	today := domain.DateOf(time.Now())
	for d := 1; d <= s.config.Days; d++ {
		pool.Dates = append(pool.Dates, domain.FormatDate(today.AddDate(0, 0, d)))
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.ReadRatio/2:
			s.doReadByID(ctx, rng)
		case r < s.config.ReadRatio:
			s.doFreeSlots(ctx, rng)
		case r < s.config.ReadRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doBooking(ctx, rng)
		}
	}
}

// doBooking asks for a random half-hour between 09:00 and 17:00. Starts are
// on a 15 minute grid so neighbouring requests overlap.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	subject := s.pool.Subjects[rng.Intn(len(s.pool.Subjects))]
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]
	start := domain.MustClock("09:00").Add(time.Duration(rng.Intn(31)) * 15 * time.Minute)
	end := start.Add(30 * time.Minute)

	began := time.Now()
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	status, err := s.postJSON(ctx, "/appointments", map[string]any{
		"provider_id": provider,
		"subject_id":  subject,
		"date":        date,
		"start":       start.String(),
		"end":         end.String(),
	}, &out)
	latency := time.Since(began)
	if ctx.Err() != nil {
		return
	}

	success := err == nil && status == http.StatusCreated
	if success {
		s.pool.AddAppointment(out.ID)
		key := provider.String() + "|" + date + "|" + start.String()
		n, _ := s.booked.LoadOrStore(key, new(int64))
		atomic.AddInt64(n.(*int64), 1)
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	began := time.Now()
	status, err := s.get(ctx, "/appointments/"+id.String())
	if ctx.Err() != nil {
		return
	}
	s.metrics.ReadByID.Record(time.Since(began), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doFreeSlots(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]
	began := time.Now()
	status, err := s.get(ctx, fmt.Sprintf("/providers/%s/free-slots?date=%s", provider, date))
	if ctx.Err() != nil {
		return
	}
	s.metrics.FreeSlots.Record(time.Since(began), err == nil && status == http.StatusOK, false)
}

// doCancel frees a slot now and then so bookings keep landing.
func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	began := time.Now()
	status, err := s.postJSON(ctx, "/appointments/"+id.String()+"/cancel", nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Cancel.Record(time.Since(began), err == nil && status == http.StatusOK, status == http.StatusConflict)
}

// doubleBookings reports slot starts that accepted more than one booking.
// Cancellations make a second booking legitimate, so this only checks runs
// without cancels.
func (s *Simulator) doubleBookings() int {
	if atomic.LoadInt64(&s.metrics.Cancel.Success) > 0 {
		return 0
	}
	doubles := 0
	s.booked.Range(func(_, v any) bool {
		if atomic.LoadInt64(v.(*int64)) > 1 {
			doubles++
		}
		return true
	})
	return doubles
}

func (s *Simulator) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) get(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Contended slots: %d providers x %d days x 31 starts\n", s.config.Providers, s.config.Days)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Free slots", &s.metrics.FreeSlots)
	printOperationReport("Cancel", &s.metrics.Cancel)
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
