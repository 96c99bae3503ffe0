package api

import (
	"encoding/json"
	"time"

	"github.com/hackgods/patient-queue-engine/internal/notes"
	"github.com/hackgods/patient-queue-engine/internal/patient"
	"github.com/hackgods/patient-queue-engine/internal/queue"
)

// EnqueueRequest identifies the patient by id or by UHID.
type EnqueueRequest struct {
	PatientID string `json:"patient_id"`
	UHID      string `json:"uhid"`
	Priority  string `json:"priority"`
}

type AttentionResponse struct {
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
}

type EntryResponse struct {
	ID               string             `json:"id"`
	PatientID        string             `json:"patient_id"`
	PatientName      string             `json:"patient_name,omitempty"`
	Priority         queue.Priority     `json:"priority"`
	Status           queue.Status       `json:"status"`
	TokenNumber      int                `json:"token_number"`
	Position         int                `json:"position"`
	AddedAt          time.Time          `json:"added_at"`
	NurseCompletedAt *time.Time         `json:"nurse_completed_at,omitempty"`
	TimelineReadyAt  *time.Time         `json:"timeline_ready_at,omitempty"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	Attention        *AttentionResponse `json:"attention,omitempty"`
	Version          int64              `json:"version"`
}

type QueueResponse struct {
	Entries []EntryResponse `json:"entries"`
	Stats   queue.Stats     `json:"stats"`
}

type WaitingResponse struct {
	Entries []EntryResponse `json:"entries"`
}

type PatientResponse struct {
	ID         string     `json:"id"`
	UHID       *string    `json:"uhid,omitempty"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone,omitempty"`
	Age        *int       `json:"age,omitempty"`
	Gender     *string    `json:"gender,omitempty"`
	VisitCount int        `json:"visit_count"`
	LastVisit  *time.Time `json:"last_visit,omitempty"`
}

// CurrentResponse has both fields null when nobody is in consultation.
type CurrentResponse struct {
	Entry   *EntryResponse   `json:"entry"`
	Patient *PatientResponse `json:"patient"`
}

type RecordResponse struct {
	ID        string          `json:"id"`
	PatientID string          `json:"patient_id"`
	Kind      notes.Kind      `json:"kind"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

type RecordsResponse struct {
	Records []RecordResponse `json:"records"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toEntryResponse(e queue.Entry) EntryResponse {
	resp := EntryResponse{
		ID:               e.ID,
		PatientID:        e.PatientID,
		PatientName:      e.PatientName,
		Priority:         e.Priority,
		Status:           e.Status,
		TokenNumber:      e.TokenNumber,
		Position:         e.Position,
		AddedAt:          e.AddedAt,
		NurseCompletedAt: e.NurseCompletedAt,
		TimelineReadyAt:  e.TimelineReadyAt,
		StartedAt:        e.StartedAt,
		CompletedAt:      e.CompletedAt,
		CancelledAt:      e.CancelledAt,
		Version:          e.Version,
	}
	if e.Attention != nil {
		resp.Attention = &AttentionResponse{Reason: e.Attention.Reason, FlaggedAt: e.Attention.FlaggedAt}
	}
	return resp
}

func toEntryResponses(entries []queue.Entry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	return out
}

func toPatientResponse(p *patient.Patient) *PatientResponse {
	if p == nil {
		return nil
	}
	return &PatientResponse{
		ID:         p.ID,
		UHID:       p.UHID,
		Name:       p.Name,
		Phone:      p.Phone,
		Age:        p.Age,
		Gender:     p.Gender,
		VisitCount: p.VisitCount,
		LastVisit:  p.LastVisit,
	}
}

func toRecordResponses(recs []notes.Record) []RecordResponse {
	out := make([]RecordResponse, len(recs))
	for i, r := range recs {
		out[i] = RecordResponse{
			ID:        r.ID,
			PatientID: r.PatientID,
			Kind:      r.Kind,
			Body:      r.Body,
			CreatedAt: r.CreatedAt,
		}
	}
	return out
}
