package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/identity"
)

type simPatient struct {
	Username string
	Token    string
}

type DataPool struct {
	Patients []simPatient
	Doctors  []uuid.UUID
	Slots    []time.Time

	mu           sync.Mutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) Appointments() []uuid.UUID {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return append([]uuid.UUID(nil), dp.appointments...)
}

func (dp *DataPool) randomPatient(rng *rand.Rand) simPatient {
	return dp.Patients[rng.Intn(len(dp.Patients))]
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	data := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT username FROM users WHERE role = $1 ORDER BY username LIMIT $2
	`, string(identity.RolePatient), cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			rows.Close()
			return nil, err
		}
		token, err := auth.IssueToken([]byte(cfg.App.JWTSecret), cfg.App.JWTIssuer, username, identity.RolePatient, 2*cfg.Duration+cfg.SettleTimeout)
		if err != nil {
			rows.Close()
			return nil, err
		}
		data.Patients = append(data.Patients, simPatient{Username: username, Token: token})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT id FROM doctors ORDER BY last_name, id LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		data.Doctors = append(data.Doctors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(data.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run admin seed first")
	}
	if len(data.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run admin seed first")
	}

	data.Slots = contestedSlots(time.Now(), cfg.App.Location(), cfg.SlotCount)
	return data, nil
}

// contestedSlots returns n consecutive slots starting at the opening hour
// of the day after now, in the clinic zone.
func contestedSlots(now time.Time, loc *time.Location, n int) []time.Time {
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day()+1, appointment.WorkdayStartHour, 0, 0, 0, loc)

	perDay := (appointment.WorkdayEndHour - appointment.WorkdayStartHour) * int(time.Hour/appointment.SlotDuration)
	if n > perDay {
		n = perDay
	}

	slots := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		slots = append(slots, day.Add(time.Duration(i)*appointment.SlotDuration))
	}
	return slots
}
