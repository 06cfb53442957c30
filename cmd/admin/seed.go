package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-booking/internal/identity"
)

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func newSeedCmd(a *app) *cobra.Command {
	var doctors, patients int
	var adminName string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create fake doctors, patients and an admin, each with a login",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := identity.NewPgDirectory(a.pool)
			faker := gofakeit.New(0)

			if err := seedDoctors(cmd.Context(), a, dir, faker, doctors); err != nil {
				return fmt.Errorf("seed doctors: %w", err)
			}
			if err := seedPatients(cmd.Context(), a, dir, faker, patients); err != nil {
				return fmt.Errorf("seed patients: %w", err)
			}
			if err := dir.CreateAdmin(cmd.Context(), adminName); err != nil {
				if !errors.Is(err, identity.ErrAlreadyExists) {
					return fmt.Errorf("seed admin: %w", err)
				}
				a.logger.Info().Str("admin", adminName).Msg("admin already exists")
			}

			a.logger.Info().Int("doctors", doctors).Int("patients", patients).Str("admin", adminName).Msg("seed complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&doctors, "doctors", 20, "number of doctors")
	cmd.Flags().IntVar(&patients, "patients", 500, "number of patients")
	cmd.Flags().StringVar(&adminName, "admin", "admin", "admin username")
	return cmd
}

func seedDoctors(ctx context.Context, a *app, dir *identity.PgDirectory, faker *gofakeit.Faker, count int) error {
	for i := 0; i < count; i++ {
		doc := identity.Doctor{
			ID:             uuid.New(),
			FirstName:      faker.FirstName(),
			LastName:       faker.LastName(),
			Specialization: specializations[faker.Number(0, len(specializations)-1)],
		}
		if err := dir.CreateDoctor(ctx, doc, username("dr", doc.LastName, i)); err != nil {
			if errors.Is(err, identity.ErrAlreadyExists) {
				a.logger.Warn().Err(err).Int("index", i).Msg("skipping duplicate doctor")
				continue
			}
			return err
		}
	}
	a.logger.Info().Int("count", count).Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, a *app, dir *identity.PgDirectory, faker *gofakeit.Faker, count int) error {
	const logEvery = 100

	for i := 0; i < count; i++ {
		p := identity.Patient{
			ID:         uuid.New(),
			FirstName:  faker.FirstName(),
			LastName:   faker.LastName(),
			NationalID: faker.Numerify("#############"),
		}
		if err := dir.CreatePatient(ctx, p, username("pt", p.LastName, i)); err != nil {
			// faker national ids and rerun usernames can collide
			if errors.Is(err, identity.ErrAlreadyExists) {
				a.logger.Warn().Err(err).Int("index", i).Msg("skipping duplicate patient")
				continue
			}
			return err
		}
		if (i+1)%logEvery == 0 {
			a.logger.Info().Msgf("patients seeded: %d/%d", i+1, count)
		}
	}
	return nil
}

// username is unique per run because of the index suffix.
func username(prefix, lastName string, i int) string {
	return fmt.Sprintf("%s.%s.%d", prefix, strings.ToLower(strings.ReplaceAll(lastName, " ", "")), i)
}
