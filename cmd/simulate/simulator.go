package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

type OperationMetrics struct {
	Total     int64
	Success   int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
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
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	ListMine     OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func newSimulator(cfg SimConfig, data *DataPool, logger zerolog.Logger) *Simulator {
	return &Simulator{
		config: cfg,
		pool:   data,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Int("appointments", len(s.pool.Appointments())).Msg("load phase complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if rng.Intn(2) == 0 {
				s.doListMine(ctx, rng)
			} else {
				s.doAvailability(ctx, rng)
			}
		}
	}
}

func (s *Simulator) newRequest(ctx context.Context, method, path, token string, body io.Reader) *http.Request {
	req, _ := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.randomPatient(rng)
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	body, _ := json.Marshal(map[string]string{
		"doctor_id":        doctorID.String(),
		"appointment_time": slot.Format(time.RFC3339),
	})

	start := time.Now()
	resp, err := s.client.Do(s.newRequest(ctx, http.MethodPost, "/appointments", patient.Token, bytes.NewReader(body)))
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusAccepted {
			var appt struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&appt) == nil && appt.ID != uuid.Nil {
				s.pool.AddAppointment(appt.ID)
				success = true
			}
		} else if ctx.Err() == nil {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			s.logger.Debug().Int("status", resp.StatusCode).Bytes("body", msg).Msg("booking refused")
		}
	}

	s.metrics.Booking.Record(latency, success)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.randomPatient(rng)

	start := time.Now()
	resp, err := s.client.Do(s.newRequest(ctx, http.MethodGet, "/appointments", patient.Token, nil))
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.ListMine.Record(latency, success)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.randomPatient(rng)
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()
	resp, err := s.client.Do(s.newRequest(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/appointments", doctorID), patient.Token, nil))
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.Availability.Record(latency, success)
}

type settledRow struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	At       time.Time
	Status   appointment.Status
}

type Outcome struct {
	ByStatus map[appointment.Status]int
	Overlaps [][2]uuid.UUID
	Waited   time.Duration
}

// Settle polls until none of the simulated appointments is PENDING, then
// checks the confirmed ones for overlaps.
func (s *Simulator) Settle(ctx context.Context, pool *pgxpool.Pool) (Outcome, error) {
	ids := s.pool.Appointments()
	start := time.Now()

	for {
		rows, err := loadSimulated(ctx, pool, ids)
		if err != nil {
			return Outcome{}, err
		}

		out := Outcome{ByStatus: map[appointment.Status]int{}, Waited: time.Since(start)}
		for _, r := range rows {
			out.ByStatus[r.Status]++
		}

		if out.ByStatus[appointment.StatusPending] == 0 {
			out.Overlaps = findOverlaps(rows)
			return out, nil
		}

		select {
		case <-ctx.Done():
			out.Overlaps = findOverlaps(rows)
			return out, fmt.Errorf("%d appointments still pending: %w", out.ByStatus[appointment.StatusPending], ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func loadSimulated(ctx context.Context, pool *pgxpool.Pool, ids []uuid.UUID) ([]settledRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT id, doctor_id, appointment_time, status
		FROM appointments
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load simulated appointments: %w", err)
	}
	defer rows.Close()

	var out []settledRow
	for rows.Next() {
		var r settledRow
		var status string
		if err := rows.Scan(&r.ID, &r.DoctorID, &r.At, &status); err != nil {
			return nil, err
		}
		r.Status = appointment.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// findOverlaps returns pairs of CONFIRMED appointments for the same doctor
// that sit less than one slot apart.
func findOverlaps(rows []settledRow) [][2]uuid.UUID {
	byDoctor := map[uuid.UUID][]settledRow{}
	for _, r := range rows {
		if r.Status == appointment.StatusConfirmed {
			byDoctor[r.DoctorID] = append(byDoctor[r.DoctorID], r)
		}
	}

	var overlaps [][2]uuid.UUID
	for _, confirmed := range byDoctor {
		sort.Slice(confirmed, func(i, j int) bool { return confirmed[i].At.Before(confirmed[j].At) })
		for i := 1; i < len(confirmed); i++ {
			if confirmed[i].At.Sub(confirmed[i-1].At) < appointment.SlotDuration {
				overlaps = append(overlaps, [2]uuid.UUID{confirmed[i-1].ID, confirmed[i].ID})
			}
		}
	}
	return overlaps
}

func (s *Simulator) PrintReport(out Outcome) {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Contested slots: %d across %d doctors\n", len(s.pool.Slots), len(s.pool.Doctors))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("List own appointments", &s.metrics.ListMine)
	printOperationReport("Doctor availability", &s.metrics.Availability)

	fmt.Println("Adjudication:")
	fmt.Printf("  Settled in: %s\n", out.Waited.Round(time.Millisecond))
	for _, st := range []appointment.Status{appointment.StatusConfirmed, appointment.StatusRejected, appointment.StatusPending} {
		fmt.Printf("  %s: %d\n", st, out.ByStatus[st])
	}
	if len(out.Overlaps) == 0 {
		fmt.Println("  Overlapping confirmations: none")
		return
	}
	fmt.Printf("  Overlapping confirmations: %d\n", len(out.Overlaps))
	for _, pair := range out.Overlaps {
		fmt.Printf("    %s <-> %s\n", pair[0], pair[1])
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	failed := atomic.LoadInt64(&om.Error)
	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
