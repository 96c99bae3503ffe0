package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/patient-queue-engine/internal/config"
	"github.com/hackgods/patient-queue-engine/internal/notes"
	"github.com/hackgods/patient-queue-engine/internal/patient"
	"github.com/hackgods/patient-queue-engine/internal/queue"
)

type testServer struct {
	handler  http.Handler
	patients *patient.MemoryDirectory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	patients := patient.NewMemoryDirectory()
	records := notes.NewMemoryStore()
	svc := queue.NewService(queue.Dependencies{
		Patients: patients,
		Records:  records,
	}, config.Config{
		RecentCompletedLimit: 10,
		TimelineTimeout:      time.Hour,
		Location:             time.UTC,
	})

	return &testServer{
		handler: NewRouter(RouterConfig{
			Service:  svc,
			Patients: patients,
			Records:  records,
			Health:   NewHealthHandler(nil, nil, "test", "v0.0.0"),
		}),
		patients: patients,
	}
}

func (s *testServer) addPatient(t *testing.T, id string) {
	t.Helper()
	uhid := "UHID-" + id
	require.NoError(t, s.patients.Add(patient.Patient{
		ID:        id,
		UHID:      &uhid,
		Name:      gofakeit.Name(),
		CreatedAt: time.Now(),
	}))
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) enqueue(t *testing.T, patientID, priority string) EntryResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/queue", EnqueueRequest{PatientID: patientID, Priority: priority})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[EntryResponse](t, rec)
}

func TestEnqueueEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.addPatient(t, "PAT_1")
	s.addPatient(t, "PAT_2")

	first := s.enqueue(t, "PAT_1", "")
	assert.Equal(t, queue.StatusWaiting, first.Status)
	assert.Equal(t, queue.PriorityNormal, first.Priority)
	assert.Equal(t, 1, first.TokenNumber)

	rec := s.do(t, http.MethodPost, "/queue", EnqueueRequest{UHID: "UHID-PAT_2", Priority: "urgent"})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[EntryResponse](t, rec)
	assert.Equal(t, "PAT_2", second.PatientID)
	assert.Equal(t, 1, second.Position)
}

func TestEnqueueEndpoint_Errors(t *testing.T) {
	s := newTestServer(t)
	s.addPatient(t, "PAT_1")
	s.enqueue(t, "PAT_1", "normal")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"bad json", "{", http.StatusBadRequest, "invalid_request_body"},
		{"no patient", EnqueueRequest{}, http.StatusBadRequest, "missing_patient"},
		{"bad priority", EnqueueRequest{PatientID: "PAT_1", Priority: "vip"}, http.StatusBadRequest, "invalid_priority"},
		{"unknown patient", EnqueueRequest{PatientID: "PAT_404"}, http.StatusNotFound, "patient_not_found"},
		{"unknown uhid", EnqueueRequest{UHID: "nope"}, http.StatusNotFound, "patient_not_found"},
		{"already queued", EnqueueRequest{PatientID: "PAT_1"}, http.StatusConflict, "duplicate_patient_in_queue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/queue", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.addPatient(t, "PAT_1")
	e := s.enqueue(t, "PAT_1", "normal")

	rec := s.do(t, http.MethodPost, "/queue/"+e.ID+"/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, rec).Error)

	for _, step := range []struct {
		action string
		want   queue.Status
	}{
		{"nurse-complete", queue.StatusNurseCompleted},
		{"timeline-ready", queue.StatusReadyForDoctor},
		{"start", queue.StatusInConsultation},
	} {
		rec := s.do(t, http.MethodPost, "/queue/"+e.ID+"/"+step.action, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, step.want, decode[EntryResponse](t, rec).Status)
	}

	rec = s.do(t, http.MethodGet, "/queue/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cur := decode[CurrentResponse](t, rec)
	require.NotNil(t, cur.Entry)
	require.NotNil(t, cur.Patient)
	assert.Equal(t, e.ID, cur.Entry.ID)
	assert.Equal(t, "PAT_1", cur.Patient.ID)

	rec = s.do(t, http.MethodPost, "/queue/"+e.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/queue/"+e.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[EntryResponse](t, rec)
	assert.Equal(t, queue.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	rec = s.do(t, http.MethodGet, "/queue/current", nil)
	assert.JSONEq(t, `{"entry":null,"patient":null}`, rec.Body.String())
}

func TestSecondConsultationRejected(t *testing.T) {
	s := newTestServer(t)
	s.addPatient(t, "PAT_1")
	s.addPatient(t, "PAT_2")
	a := s.enqueue(t, "PAT_1", "normal")
	b := s.enqueue(t, "PAT_2", "normal")

	for _, id := range []string{a.ID, b.ID} {
		s.do(t, http.MethodPost, "/queue/"+id+"/nurse-complete", nil)
		s.do(t, http.MethodPost, "/queue/"+id+"/timeline-ready", nil)
	}

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/queue/"+a.ID+"/start", nil).Code)
	rec := s.do(t, http.MethodPost, "/queue/"+b.ID+"/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "consultation_already_active", decode[ErrorResponse](t, rec).Error)
}

func TestQueueViews(t *testing.T) {
	s := newTestServer(t)
	s.addPatient(t, "PAT_1")
	s.addPatient(t, "PAT_2")
	s.addPatient(t, "PAT_3")
	s.enqueue(t, "PAT_1", "normal")
	urgent := s.enqueue(t, "PAT_2", "urgent")
	moved := s.enqueue(t, "PAT_3", "normal")
	s.do(t, http.MethodPost, "/queue/"+moved.ID+"/nurse-complete", nil)

	rec := s.do(t, http.MethodGet, "/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[QueueResponse](t, rec)
	require.Len(t, view.Entries, 3)
	assert.Equal(t, urgent.ID, view.Entries[0].ID)
	assert.Equal(t, 3, view.Stats.Active.Total)
	assert.Equal(t, 1, view.Stats.NurseCompleted.Total)

	rec = s.do(t, http.MethodGet, "/queue/waiting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	waiting := decode[WaitingResponse](t, rec)
	require.Len(t, waiting.Entries, 2)
	assert.Equal(t, "PAT_2", waiting.Entries[0].PatientID)
	assert.Equal(t, "PAT_1", waiting.Entries[1].PatientID)

	rec = s.do(t, http.MethodGet, "/queue/"+moved.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[EntryResponse](t, rec).Position)

	rec = s.do(t, http.MethodGet, "/patients/PAT_3/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, moved.ID, decode[EntryResponse](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/queue/Q_MISSING", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmptyWaitingIsArray(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/queue/waiting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())
}

func TestClinicalRecordEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.addPatient(t, "PAT_1")

	rec := s.do(t, http.MethodPost, "/patients/PAT_1/notes", `{"subjective":"headache"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decode[RecordResponse](t, rec)
	assert.True(t, strings.HasPrefix(note.ID, "NOTE_"))
	assert.JSONEq(t, `{"subjective":"headache"}`, string(note.Body))

	rec = s.do(t, http.MethodPost, "/patients/PAT_1/history", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, strings.HasPrefix(decode[RecordResponse](t, rec).ID, "HIST_"))

	rec = s.do(t, http.MethodGet, "/patients/PAT_1/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[RecordsResponse](t, rec).Records, 1)

	rec = s.do(t, http.MethodPost, "/patients/PAT_1/notes", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/patients/PAT_404/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTimelineSweepEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/queue/timeline-sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"examined":0,"advanced":0,"flagged":0,"failed":0}`, rec.Body.String())
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "disabled", ready.Dependencies["postgres"])
}

func TestRequestIDPropagates(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestLoggingMiddlewareRecoversPanics(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
