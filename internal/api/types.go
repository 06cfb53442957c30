package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
)

type SubmitAppointmentRequest struct {
	DoctorID        string `json:"doctor_id" validate:"required,uuid"`
	AppointmentTime string `json:"appointment_time" validate:"required"`
}

type AddDoctorRequest struct {
	FirstName      string `json:"first_name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"required,max=100"`
	Username       string `json:"username" validate:"required,min=3,max=64"`
	Specialization string `json:"specialization" validate:"required,max=100"`
}

type RegisterPatientRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=64"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	NationalID string `json:"national_id" validate:"required,numeric,len=13"`
}

type RegisterPatientResponse struct {
	Token   string          `json:"token"`
	Patient PatientResponse `json:"patient"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	AppointmentTime time.Time `json:"appointment_time"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Specialization string    `json:"specialization"`
}

type PatientResponse struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	NationalID string    `json:"national_id"`
}

type AppointmentViewResponse struct {
	ID              uuid.UUID       `json:"id"`
	AppointmentTime time.Time       `json:"appointment_time"`
	Status          string          `json:"status"`
	Doctor          DoctorResponse  `json:"doctor"`
	Patient         PatientResponse `json:"patient"`
}

type BookedSlotResponse struct {
	AppointmentTime time.Time `json:"appointment_time"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		AppointmentTime: a.AppointmentTime,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
	}
}

func toDoctorResponse(d identity.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:             d.ID,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Specialization: d.Specialization,
	}
}

func toViewResponse(v appointment.AppointmentView) AppointmentViewResponse {
	return AppointmentViewResponse{
		ID:              v.ID,
		AppointmentTime: v.AppointmentTime,
		Status:          string(v.Status),
		Doctor:          toDoctorResponse(v.Doctor),
		Patient:         toPatientResponse(v.Patient),
	}
}

func toPatientResponse(p identity.Patient) PatientResponse {
	return PatientResponse{
		ID:         p.ID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		NationalID: p.NationalID,
	}
}
