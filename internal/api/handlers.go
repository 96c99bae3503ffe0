package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/patient-queue-engine/internal/ids"
	"github.com/hackgods/patient-queue-engine/internal/notes"
	"github.com/hackgods/patient-queue-engine/internal/patient"
	"github.com/hackgods/patient-queue-engine/internal/queue"
)

const maxRecordBody = 1 << 20

func enqueueHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		priority, err := queue.ParsePriority(req.Priority)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		var entry *queue.Entry
		switch {
		case req.PatientID != "":
			entry, err = svc.Enqueue(r.Context(), req.PatientID, priority)
		case req.UHID != "":
			entry, err = svc.EnqueueByUHID(r.Context(), req.UHID, priority)
		default:
			err = queue.ErrMissingPatientRef
		}
		if err != nil {
			handleQueueError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toEntryResponse(*entry))
	}
}

func getQueueHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.GetQueue(r.Context())
		if err != nil {
			handleQueueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, QueueResponse{
			Entries: toEntryResponses(view.Entries),
			Stats:   view.Stats,
		})
	}
}

func getWaitingHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.GetWaiting(r.Context())
		if err != nil {
			handleQueueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, WaitingResponse{Entries: toEntryResponses(entries)})
	}
}

func getCurrentHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cur, err := svc.GetCurrent(r.Context())
		if err != nil {
			handleQueueError(w, err)
			return
		}

		var resp CurrentResponse
		if cur.Entry != nil {
			e := toEntryResponse(*cur.Entry)
			resp.Entry = &e
			resp.Patient = toPatientResponse(cur.Patient)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getEntryHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := svc.GetEntry(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleQueueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(*entry))
	}
}

func patientQueueHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := svc.GetActiveForPatient(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleQueueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(*entry))
	}
}

// transitionHandler serves the POST /queue/{id}/<action> endpoints.
func transitionHandler(action func(ctx context.Context, id string) (*queue.Entry, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := action(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleQueueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(*entry))
	}
}

func timelineSweepHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.SweepStaleTimelines(r.Context())
		if err != nil {
			handleQueueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func appendRecordHandler(store notes.Store, patients patient.Directory, kind notes.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID := chi.URLParam(r, "id")
		if !patientExists(w, r, patients, patientID) {
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRecordBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not read body")
			return
		}
		if len(body) > 0 && !json.Valid(body) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rec, err := store.Append(r.Context(), notes.Record{
			PatientID: patientID,
			Kind:      kind,
			Body:      body,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, toRecordResponses([]notes.Record{*rec})[0])
	}
}

func listRecordsHandler(store notes.Store, patients patient.Directory, kind notes.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID := chi.URLParam(r, "id")
		if !patientExists(w, r, patients, patientID) {
			return
		}

		recs, err := store.List(r.Context(), patientID, kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, RecordsResponse{Records: toRecordResponses(recs)})
	}
}

func patientExists(w http.ResponseWriter, r *http.Request, patients patient.Directory, id string) bool {
	ok, err := patients.Exists(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "patient_not_found", "patient not found: "+id)
		return false
	}
	return true
}

func handleQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, http.StatusNotFound, "queue_entry_not_found", err.Error())
	case errors.Is(err, queue.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, queue.ErrInvalidPriority):
		writeError(w, http.StatusBadRequest, "invalid_priority", err.Error())
	case errors.Is(err, queue.ErrMissingPatientRef):
		writeError(w, http.StatusBadRequest, "missing_patient", "patient_id or uhid is required")
	case errors.Is(err, queue.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, queue.ErrDuplicatePatientInQueue):
		writeError(w, http.StatusConflict, "duplicate_patient_in_queue", err.Error())
	case errors.Is(err, queue.ErrConsultationAlreadyActive):
		writeError(w, http.StatusConflict, "consultation_already_active", err.Error())
	case errors.Is(err, queue.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "concurrent_modification", "entry changed, reload and retry")
	case errors.Is(err, ids.ErrExhaustedRetries):
		writeError(w, http.StatusServiceUnavailable, "id_generation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
