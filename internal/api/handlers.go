package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/identity"
)

// BookingService is what the HTTP layer needs from appointment.Service.
type BookingService interface {
	Submit(ctx context.Context, caller identity.User, doctorID uuid.UUID, at time.Time) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, caller identity.User, status *appointment.Status) ([]appointment.AppointmentView, error)
	DoctorAvailability(ctx context.Context, doctorID uuid.UUID) ([]appointment.BookedSlot, error)
	ListDoctors(ctx context.Context) ([]identity.Doctor, error)
}

var _ BookingService = (*appointment.Service)(nil)

// TokenIssuer signs bearer tokens for newly registered users.
type TokenIssuer interface {
	Issue(username string, role identity.Role, ttl time.Duration) (string, error)
}

var _ TokenIssuer = (*auth.Authenticator)(nil)

type handlers struct {
	svc       BookingService
	registrar identity.Registrar
	issuer    TokenIssuer
	tokenTTL  time.Duration
	loc       *time.Location
	now       func() time.Time
	logger    zerolog.Logger
}

func (h *handlers) submitAppointment(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no caller identity")
		return
	}

	var req SubmitAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeFieldErrors(w, fields)
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeFieldErrors(w, map[string]string{"doctor_id": "must be a valid UUID"})
		return
	}
	at, err := parseAppointmentTime(req.AppointmentTime, h.loc)
	if err != nil {
		writeFieldErrors(w, map[string]string{"appointment_time": err.Error()})
		return
	}
	if !at.After(h.now()) {
		writeFieldErrors(w, map[string]string{"appointment_time": "must be in the future"})
		return
	}

	appt, err := h.svc.Submit(r.Context(), caller, doctorID, at)
	if err != nil {
		h.handleSubmitError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toAppointmentResponse(appt))
}

func (h *handlers) handleSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var ite *appointment.InvalidTimeError
	switch {
	case errors.As(err, &ite):
		writeFieldErrors(w, map[string]string{"appointment_time": ite.Error()})
	case errors.Is(err, identity.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, identity.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrIdentityMismatch):
		writeError(w, http.StatusForbidden, "identity_mismatch", err.Error())
	default:
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("submit appointment")
		writeError(w, http.StatusInternalServerError, "internal_error", "could not submit appointment")
	}
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no caller identity")
		return
	}

	var status *appointment.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, err := appointment.ParseStatus(raw)
		if err != nil {
			writeFieldErrors(w, map[string]string{"status": "must be one of PENDING, CONFIRMED, REJECTED"})
			return
		}
		status = &s
	}

	views, err := h.svc.ListAppointments(r.Context(), caller, status)
	if err != nil {
		h.handleListError(w, r, err)
		return
	}

	resp := make([]AppointmentViewResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toViewResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) handleListError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrIdentityMismatch):
		writeError(w, http.StatusForbidden, "identity_mismatch", err.Error())
	case errors.Is(err, identity.ErrUnknownRole):
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("caller has unknown role")
		writeError(w, http.StatusInternalServerError, "unknown_role", err.Error())
	default:
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("list appointments")
		writeError(w, http.StatusInternalServerError, "internal_error", "could not list appointments")
	}
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.svc.ListDoctors(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list doctors")
		writeError(w, http.StatusInternalServerError, "internal_error", "could not list doctors")
		return
	}

	resp := make([]DoctorResponse, 0, len(doctors))
	for _, d := range doctors {
		resp = append(resp, toDoctorResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) doctorAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId must be a valid UUID")
		return
	}

	slots, err := h.svc.DoctorAvailability(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, identity.ErrDoctorNotFound) {
			writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			return
		}
		h.logger.Error().Err(err).Str("doctor_id", doctorID.String()).Msg("doctor availability")
		writeError(w, http.StatusInternalServerError, "internal_error", "could not load availability")
		return
	}

	resp := make([]BookedSlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, BookedSlotResponse{AppointmentTime: s.AppointmentTime})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) addDoctor(w http.ResponseWriter, r *http.Request) {
	var req AddDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeFieldErrors(w, fields)
		return
	}

	doc := identity.Doctor{
		ID:             uuid.New(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Specialization: req.Specialization,
	}
	if err := h.registrar.CreateDoctor(r.Context(), doc, req.Username); err != nil {
		if errors.Is(err, identity.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "already_exists", "username "+req.Username+" is taken")
			return
		}
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("add doctor")
		writeError(w, http.StatusInternalServerError, "internal_error", "could not add doctor")
		return
	}

	if caller, ok := auth.UserFromContext(r.Context()); ok {
		h.logger.Info().
			Str("doctor_id", doc.ID.String()).
			Str("username", req.Username).
			Str("added_by", caller.Username).
			Msg("doctor added")
	}
	writeJSON(w, http.StatusCreated, toDoctorResponse(doc))
}

func (h *handlers) registerPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if fields := validateStruct(req); fields != nil {
		writeFieldErrors(w, fields)
		return
	}

	p := identity.Patient{
		ID:         uuid.New(),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		NationalID: req.NationalID,
	}
	if err := h.registrar.CreatePatient(r.Context(), p, req.Username); err != nil {
		if errors.Is(err, identity.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "already_exists", "username or national id already registered")
			return
		}
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("register patient")
		writeError(w, http.StatusInternalServerError, "internal_error", "could not register patient")
		return
	}

	token, err := h.issuer.Issue(req.Username, identity.RolePatient, h.tokenTTL)
	if err != nil {
		h.logger.Error().Err(err).Str("username", req.Username).Msg("issue token after registration")
		writeError(w, http.StatusInternalServerError, "internal_error", "registered, but could not issue a token")
		return
	}

	writeJSON(w, http.StatusCreated, RegisterPatientResponse{Token: token, Patient: toPatientResponse(p)})
}
