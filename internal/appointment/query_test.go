package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/identity"
)

func TestListAppointments_RoleIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherDoctor := f.dir.AddDoctor("James", "Wilson", "Oncology", "wilson")
	otherPatient := f.dir.AddPatient("Allison", "Cameron", "10000000002", "cameron")
	otherPatientU := mustUser(t, f.dir, "cameron")

	mine, _ := f.svc.Submit(ctx, f.patientU, f.doctor.ID, at(9, 0))
	_, _ = f.svc.Submit(ctx, f.patientU, otherDoctor.ID, at(9, 0))
	theirs, _ := f.svc.Submit(ctx, otherPatientU, f.doctor.ID, at(10, 0))
	_, _ = f.svc.Submit(ctx, otherPatientU, otherDoctor.ID, at(11, 0))

	t.Run("doctor", func(t *testing.T) {
		views, err := f.svc.ListAppointments(ctx, f.doctorU, nil)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(views) != 2 {
			t.Fatalf("expected 2, got %d", len(views))
		}
		for _, v := range views {
			if v.DoctorID != f.doctor.ID {
				t.Fatalf("doctor saw another doctor's appointment")
			}
		}
		if views[0].ID != mine.ID || views[1].ID != theirs.ID {
			t.Fatalf("expected time ordering")
		}
	})

	t.Run("patient", func(t *testing.T) {
		views, err := f.svc.ListAppointments(ctx, otherPatientU, nil)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(views) != 2 {
			t.Fatalf("expected 2, got %d", len(views))
		}
		for _, v := range views {
			if v.PatientID != otherPatient.ID {
				t.Fatalf("patient saw another patient's appointment")
			}
		}
	})

	t.Run("admin", func(t *testing.T) {
		admin := identity.User{Username: "root", Role: identity.RoleAdmin}
		views, err := f.svc.ListAppointments(ctx, admin, nil)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(views) != 4 {
			t.Fatalf("expected 4, got %d", len(views))
		}
	})
}

func TestListAppointments_StatusFilterAndJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.confirmed(t, f.doctor.ID, at(9, 0))
	f.pending(t, f.doctor.ID, at(12, 0))

	confirmed := StatusConfirmed
	views, err := f.svc.ListAppointments(ctx, f.patientU, &confirmed)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].ID != c.ID {
		t.Fatalf("expected only the confirmed appointment, got %+v", views)
	}
	if views[0].Doctor.LastName != "House" || views[0].Doctor.Specialization != "Diagnostics" {
		t.Fatalf("doctor not joined: %+v", views[0].Doctor)
	}
	if views[0].Patient.NationalID != f.patient.NationalID {
		t.Fatalf("patient not joined: %+v", views[0].Patient)
	}
}

func TestListAppointments_BatchedJoins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d := f.dir.AddDoctor("Doc", "Number", "General", uuid.NewString())
		f.pending(t, d.ID, at(9+i, 0))
	}

	admin := identity.User{Username: "root", Role: identity.RoleAdmin}
	views, err := f.svc.ListAppointments(ctx, admin, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 5 {
		t.Fatalf("expected 5 views, got %d", len(views))
	}
	if f.dir.DoctorBatchCalls != 1 || f.dir.PatientBatchCalls != 1 {
		t.Fatalf("expected one batch call each, got doctors=%d patients=%d", f.dir.DoctorBatchCalls, f.dir.PatientBatchCalls)
	}
}

func TestListAppointments_RoleErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListAppointments(ctx, identity.User{Username: "x", Role: "NURSE"}, nil)
	if !errors.Is(err, identity.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}

	_, err = f.svc.ListAppointments(ctx, identity.User{Username: "y", Role: identity.RoleDoctor}, nil)
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestDoctorAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.confirmed(t, f.doctor.ID, at(13, 0))
	f.pending(t, f.doctor.ID, at(15, 0))

	slots, err := f.svc.DoctorAvailability(ctx, f.doctor.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(slots) != 1 || !slots[0].AppointmentTime.Equal(at(13, 0)) {
		t.Fatalf("expected only the confirmed slot, got %+v", slots)
	}

	if _, err := f.svc.DoctorAvailability(ctx, uuid.New()); !errors.Is(err, identity.ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}
