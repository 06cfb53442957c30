package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/queue"
)

var testSecret = []byte("api-test-secret")

const testIssuer = "clinic-booking-test"

type nopPublisher struct{ sent int }

func (p *nopPublisher) Publish(context.Context, queue.Message) error {
	p.sent++
	return nil
}

type testServer struct {
	handler http.Handler
	repo    *appointment.MemoryRepository
	dir     *identity.MemoryDirectory
	adj     *appointment.Adjudicator
	pub     *nopPublisher
	doctor  identity.Doctor
	patient identity.Patient
}

// now is fixed well before the dates used in requests.
var testNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := appointment.NewMemoryRepository()
	dir := identity.NewMemoryDirectory()
	pub := &nopPublisher{}
	svc := appointment.NewService(repo, dir, pub, time.UTC, m, zerolog.Nop())

	ts := &testServer{
		repo: repo,
		dir:  dir,
		pub:  pub,
		adj:  appointment.NewAdjudicator(repo, appointment.NewLocalLocker(), m, zerolog.Nop()),
	}
	ts.doctor = dir.AddDoctor("Greg", "House", "Diagnostics", "house")
	ts.patient = dir.AddPatient("Lisa", "Cuddy", "10000000001", "cuddy")
	dir.AddPatient("Allison", "Cameron", "10000000002", "cameron")
	dir.AddUser(identity.User{Username: "admin", Role: identity.RoleAdmin})
	dir.AddUser(identity.User{Username: "nurse", Role: identity.Role("NURSE")})

	ts.handler = NewRouter(RouterConfig{
		Service:   svc,
		Auth:      auth.NewAuthenticator(testSecret, testIssuer, dir, zerolog.Nop()),
		Registrar: dir,
		Health:    NewHealthHandler(nil, "test", "v0"),
		Metrics:   m,
		Gatherer:  reg,
		Logger:    zerolog.Nop(),
		Location:  time.UTC,
		Now:       func() time.Time { return testNow },
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, username, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if username != "" {
		token, err := auth.IssueToken(testSecret, testIssuer, username, identity.RolePatient, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) submit(t *testing.T, username, when string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"doctor_id":"` + ts.doctor.ID.String() + `","appointment_time":"` + when + `"}`
	return ts.do(t, http.MethodPost, "/appointments", username, body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSubmitAppointment_Accepted(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.submit(t, "cuddy", "2025-01-01T09:00:00Z")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[AppointmentResponse](t, rec)
	if resp.ID == uuid.Nil || resp.Status != "PENDING" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.PatientID != ts.patient.ID || resp.DoctorID != ts.doctor.ID {
		t.Fatalf("wrong references %+v", resp)
	}
	if ts.pub.sent != 1 {
		t.Fatalf("expected one publish, got %d", ts.pub.sent)
	}
}

func TestSubmitAppointment_ZonelessTimeUsesClinicZone(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.submit(t, "cuddy", "2025-01-01T16:45")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[AppointmentResponse](t, rec)
	if !resp.AppointmentTime.Equal(time.Date(2025, 1, 1, 16, 45, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %s", resp.AppointmentTime)
	}
}

func TestSubmitAppointment_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"before opening", `{"doctor_id":"` + ts.doctor.ID.String() + `","appointment_time":"2025-01-01T08:45:00Z"}`, "appointment_time"},
		{"closing time", `{"doctor_id":"` + ts.doctor.ID.String() + `","appointment_time":"2025-01-01T17:00:00Z"}`, "appointment_time"},
		{"off grid", `{"doctor_id":"` + ts.doctor.ID.String() + `","appointment_time":"2025-01-01T10:10:00Z"}`, "appointment_time"},
		{"seconds", `{"doctor_id":"` + ts.doctor.ID.String() + `","appointment_time":"2025-01-01T10:00:30Z"}`, "appointment_time"},
		{"in the past", `{"doctor_id":"` + ts.doctor.ID.String() + `","appointment_time":"2024-12-31T09:00:00Z"}`, "appointment_time"},
		{"not a time", `{"doctor_id":"` + ts.doctor.ID.String() + `","appointment_time":"tomorrow"}`, "appointment_time"},
		{"missing time", `{"doctor_id":"` + ts.doctor.ID.String() + `"}`, "appointment_time"},
		{"missing doctor", `{"appointment_time":"2025-01-01T09:00:00Z"}`, "doctor_id"},
		{"bad doctor id", `{"doctor_id":"42","appointment_time":"2025-01-01T09:00:00Z"}`, "doctor_id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/appointments", "cuddy", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Fields[tc.field] == "" {
				t.Fatalf("expected message for %s, got %+v", tc.field, resp.Fields)
			}
		})
	}

	if ts.repo.Count() != 0 || ts.pub.sent != 0 {
		t.Fatalf("invalid submissions must not persist or publish")
	}
}

func TestSubmitAppointment_Errors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/appointments", "cuddy", `{"doctor_id":"`+uuid.NewString()+`","appointment_time":"2025-01-01T09:00:00Z"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown doctor: expected 404, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/appointments", "cuddy", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", rec.Code)
	}

	rec = ts.submit(t, "house", "2025-01-01T09:00:00Z")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("doctor submitting: expected 403, got %d", rec.Code)
	}

	rec = ts.submit(t, "", "2025-01-01T09:00:00Z")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}

	ghost := uuid.New()
	ts.dir.AddUser(identity.User{Username: "ghost", Role: identity.RolePatient, PatientID: &ghost})
	rec = ts.submit(t, "ghost", "2025-01-01T09:00:00Z")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("linked patient row missing: expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[ErrorResponse](t, rec); resp.Error != "patient_not_found" {
		t.Fatalf("expected patient_not_found, got %+v", resp)
	}
}

func TestListAppointments(t *testing.T) {
	ts := newTestServer(t)

	first := decode[AppointmentResponse](t, ts.submit(t, "cuddy", "2025-01-01T09:00:00Z"))
	second := decode[AppointmentResponse](t, ts.submit(t, "cuddy", "2025-01-01T09:00:00Z"))
	decode[AppointmentResponse](t, ts.submit(t, "cameron", "2025-01-02T11:00:00Z"))

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		if _, err := ts.adj.Adjudicate(context.Background(), id); err != nil {
			t.Fatalf("adjudicate: %v", err)
		}
	}

	rec := ts.do(t, http.MethodGet, "/appointments", "cuddy", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	views := decode[[]AppointmentViewResponse](t, rec)
	if len(views) != 2 {
		t.Fatalf("patient should see 2, got %d", len(views))
	}
	if views[0].Doctor.LastName != "House" || views[0].Patient.NationalID != "10000000001" {
		t.Fatalf("peers not joined: %+v", views[0])
	}

	rec = ts.do(t, http.MethodGet, "/appointments?status=REJECTED", "cuddy", "")
	views = decode[[]AppointmentViewResponse](t, rec)
	if len(views) != 1 || views[0].ID != second.ID || views[0].Status != "REJECTED" {
		t.Fatalf("expected only the rejected appointment, got %+v", views)
	}

	rec = ts.do(t, http.MethodGet, "/appointments", "admin", "")
	if views = decode[[]AppointmentViewResponse](t, rec); len(views) != 3 {
		t.Fatalf("admin should see 3, got %d", len(views))
	}

	rec = ts.do(t, http.MethodGet, "/appointments?status=confirmed", "admin", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("lowercase status: expected 400, got %d", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Fields["status"] == "" {
		t.Fatalf("expected status field error, got %+v", resp)
	}

	rec = ts.do(t, http.MethodGet, "/appointments", "nurse", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unknown role: expected 500, got %d", rec.Code)
	}
}

func TestDoctorEndpoints(t *testing.T) {
	ts := newTestServer(t)

	confirmed := decode[AppointmentResponse](t, ts.submit(t, "cuddy", "2025-01-03T13:00:00Z"))
	decode[AppointmentResponse](t, ts.submit(t, "cameron", "2025-01-03T15:00:00Z"))
	if _, err := ts.adj.Adjudicate(context.Background(), confirmed.ID); err != nil {
		t.Fatalf("adjudicate: %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/appointments", "cameron", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	slots := decode[[]BookedSlotResponse](t, rec)
	if len(slots) != 1 || !slots[0].AppointmentTime.Equal(confirmed.AppointmentTime) {
		t.Fatalf("expected only the confirmed slot, got %+v", slots)
	}

	rec = ts.do(t, http.MethodGet, "/doctors/"+uuid.NewString()+"/appointments", "cameron", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown doctor: expected 404, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/doctors/nope/appointments", "cameron", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/doctors", "house", "")
	doctors := decode[[]DoctorResponse](t, rec)
	if len(doctors) != 1 || doctors[0].Specialization != "Diagnostics" {
		t.Fatalf("unexpected doctors %+v", doctors)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodGet, "/health/live", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200, got %d", rec.Code)
	}

	ts.submit(t, "cuddy", "2025-01-01T09:00:00Z")
	rec := ts.do(t, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(rec.Body.String(), `clinic_http_requests_total{handler="/appointments",status="202"} 1`) {
		t.Fatalf("metrics missing request counter:\n%s", rec.Body.String())
	}
}

func TestReadiness(t *testing.T) {
	down := func(context.Context) error { return errors.New("down") }
	up := func(context.Context) error { return nil }

	tests := []struct {
		name   string
		checks []Check
		code   int
		status string
	}{
		{"all up", []Check{{"postgres", true, up}, {"redis", false, up}}, http.StatusOK, "ok"},
		{"redis down", []Check{{"postgres", true, up}, {"redis", false, down}}, http.StatusOK, "degraded"},
		{"postgres down", []Check{{"postgres", true, down}, {"redis", false, up}}, http.StatusServiceUnavailable, "error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tc.checks, "test", "").Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if resp := decode[ReadinessResponse](t, rec); resp.Status != tc.status {
				t.Fatalf("expected %s, got %s", tc.status, resp.Status)
			}
		})
	}
}

func TestAddDoctor(t *testing.T) {
	ts := newTestServer(t)
	body := `{"first_name":"James","last_name":"Wilson","username":"wilson","specialization":"Oncology"}`

	rec := ts.do(t, http.MethodPost, "/doctors", "admin", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[DoctorResponse](t, rec)
	if created.ID == uuid.Nil || created.LastName != "Wilson" || created.Specialization != "Oncology" {
		t.Fatalf("unexpected doctor %+v", created)
	}

	u, err := ts.dir.GetUserByUsername(context.Background(), "wilson")
	if err != nil || u.Role != identity.RoleDoctor || u.DoctorID == nil || *u.DoctorID != created.ID {
		t.Fatalf("doctor user not linked: %+v, %v", u, err)
	}

	rec = ts.do(t, http.MethodGet, "/doctors", "cuddy", "")
	if doctors := decode[[]DoctorResponse](t, rec); len(doctors) != 2 {
		t.Fatalf("roster should list the new doctor, got %+v", doctors)
	}

	rec = ts.do(t, http.MethodPost, "/doctors", "admin", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username: expected 409, got %d", rec.Code)
	}

	cases := []struct {
		name     string
		username string
		body     string
		want     int
	}{
		{"patient forbidden", "cuddy", body, http.StatusForbidden},
		{"doctor forbidden", "house", body, http.StatusForbidden},
		{"anonymous", "", body, http.StatusUnauthorized},
		{"missing specialization", "admin", `{"first_name":"A","last_name":"B","username":"abc"}`, http.StatusBadRequest},
		{"malformed", "admin", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/doctors", tc.username, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec = ts.do(t, http.MethodPost, "/doctors", "admin", `{"first_name":"A","last_name":"B","username":"abc"}`)
	if resp := decode[ErrorResponse](t, rec); resp.Fields["specialization"] != "is required" {
		t.Fatalf("expected specialization field error, got %+v", resp)
	}
}

func TestRegisterPatient(t *testing.T) {
	ts := newTestServer(t)
	body := `{"username":"foreman","first_name":"Eric","last_name":"Foreman","national_id":"1234567890123"}`

	rec := ts.do(t, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[RegisterPatientResponse](t, rec)
	if resp.Token == "" || resp.Patient.NationalID != "1234567890123" {
		t.Fatalf("unexpected response %+v", resp)
	}

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(
		`{"doctor_id":"`+ts.doctor.ID.String()+`","appointment_time":"2025-01-01T10:00:00Z"}`))
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	booked := httptest.NewRecorder()
	ts.handler.ServeHTTP(booked, req)
	if booked.Code != http.StatusAccepted {
		t.Fatalf("issued token should book, got %d: %s", booked.Code, booked.Body.String())
	}
	if appt := decode[AppointmentResponse](t, booked); appt.PatientID != resp.Patient.ID {
		t.Fatalf("appointment booked for the wrong patient: %+v", appt)
	}

	rec = ts.do(t, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/auth/register", "", `{"username":"chase","first_name":"Robert","last_name":"Chase","national_id":"12345"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("short national id: expected 400, got %d", rec.Code)
	}
	if fields := decode[ErrorResponse](t, rec).Fields; fields["national_id"] != "must be exactly 13 characters" {
		t.Fatalf("expected national_id field error, got %+v", fields)
	}

	rec = ts.do(t, http.MethodPost, "/auth/register", "", `{"username":"chase","first_name":"Robert","last_name":"Chase","national_id":"12345678901ab"}`)
	if fields := decode[ErrorResponse](t, rec).Fields; fields["national_id"] != "must contain digits only" {
		t.Fatalf("expected digits-only error, got %+v", fields)
	}
}
