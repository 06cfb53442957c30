package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// mapUnique turns a unique-constraint failure into ErrAlreadyExists.
func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

var (
	_ Directory = (*PgDirectory)(nil)
	_ Registrar = (*PgDirectory)(nil)
)

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialization, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.NationalID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *PgDirectory) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, specialization, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (d *PgDirectory) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, national_id, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (d *PgDirectory) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	var role string
	err := d.pool.QueryRow(ctx, `
		SELECT id, username, role, doctor_id, patient_id, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &role, &u.DoctorID, &u.PatientID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func (d *PgDirectory) DoctorsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Doctor, error) {
	out := make(map[uuid.UUID]Doctor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, first_name, last_name, specialization, created_at, updated_at
		FROM doctors
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out[doc.ID] = *doc
	}
	return out, rows.Err()
}

func (d *PgDirectory) PatientsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Patient, error) {
	out := make(map[uuid.UUID]Patient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, first_name, last_name, national_id, created_at, updated_at
		FROM patients
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = *p
	}
	return out, rows.Err()
}

func (d *PgDirectory) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, first_name, last_name, specialization, created_at, updated_at
		FROM doctors
		ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		doc, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

// CreateDoctor inserts a doctor and its linked user in one transaction.
func (d *PgDirectory) CreateDoctor(ctx context.Context, doc Doctor, username string) error {
	return d.withUser(ctx, username, RoleDoctor, func(tx pgx.Tx) (doctorID, patientID *uuid.UUID, err error) {
		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, first_name, last_name, specialization, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, doc.ID, doc.FirstName, doc.LastName, doc.Specialization)
		return &doc.ID, nil, err
	})
}

// CreatePatient inserts a patient and its linked user in one transaction.
func (d *PgDirectory) CreatePatient(ctx context.Context, p Patient, username string) error {
	return d.withUser(ctx, username, RolePatient, func(tx pgx.Tx) (doctorID, patientID *uuid.UUID, err error) {
		_, err = tx.Exec(ctx, `
			INSERT INTO patients (id, first_name, last_name, national_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, p.ID, p.FirstName, p.LastName, p.NationalID)
		return nil, &p.ID, err
	})
}

// CreateAdmin inserts a user with no linked profile.
func (d *PgDirectory) CreateAdmin(ctx context.Context, username string) error {
	return d.withUser(ctx, username, RoleAdmin, func(pgx.Tx) (*uuid.UUID, *uuid.UUID, error) {
		return nil, nil, nil
	})
}

func (d *PgDirectory) withUser(ctx context.Context, username string, role Role, profile func(pgx.Tx) (*uuid.UUID, *uuid.UUID, error)) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	doctorID, patientID, err := profile(tx)
	if err != nil {
		return fmt.Errorf("insert %s profile: %w", role, mapUnique(err))
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, username, role, doctor_id, patient_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, uuid.New(), username, string(role), doctorID, patientID)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", username, mapUnique(err))
	}

	return tx.Commit(ctx)
}
