package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hackgods/patient-queue-engine/internal/config"
	"github.com/hackgods/patient-queue-engine/internal/ids"
	"github.com/hackgods/patient-queue-engine/internal/patient"
)

const (
	EventEntryQueued          = "QUEUE_ENTRY_CREATED"
	EventEntryNurseCompleted  = "QUEUE_NURSE_COMPLETED"
	EventEntryTimelineReady   = "QUEUE_TIMELINE_READY"
	EventEntryStarted         = "QUEUE_CONSULTATION_STARTED"
	EventEntryCompleted       = "QUEUE_CONSULTATION_COMPLETED"
	EventEntryCancelled       = "QUEUE_ENTRY_CANCELLED"
	EventEntryFlagged         = "QUEUE_ENTRY_FLAGGED"
	AttentionTimelineTimeout  = "timeline_timeout"
	defaultRecentCompletedCap = 10
	maxApplyAttempts          = 3
)

var eventTypes = map[Event]string{
	EventNurseComplete:        EventEntryNurseCompleted,
	EventTimelineReady:        EventEntryTimelineReady,
	EventStartConsultation:    EventEntryStarted,
	EventCompleteConsultation: EventEntryCompleted,
	EventCancel:               EventEntryCancelled,
}

// Change is what gets published after every committed mutation.
type Change struct {
	Type      string    `json:"type"`
	QueueID   string    `json:"queue_id"`
	PatientID string    `json:"patient_id"`
	Status    Status    `json:"status"`
	Version   int64     `json:"version"`
	At        time.Time `json:"at"`
}

type Dependencies struct {
	Store     *Store
	Patients  patient.Directory
	Records   ClinicalRecords // optional, enables force-advance in the sweep
	Events    EventRecorder   // optional
	Publisher Publisher       // optional
	Clock     func() time.Time
}

type Service struct {
	store     *Store
	patients  patient.Directory
	records   ClinicalRecords
	events    EventRecorder
	publisher Publisher
	now       func() time.Time
	ids       *ids.Generator
	tokens    *TokenCounter
	cfg       config.Config
}

func NewService(deps Dependencies, cfg config.Config) *Service {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	store := deps.Store
	if store == nil {
		store = NewStore()
	}
	if cfg.RecentCompletedLimit <= 0 {
		cfg.RecentCompletedLimit = defaultRecentCompletedCap
	}

	return &Service{
		store:     store,
		patients:  deps.Patients,
		records:   deps.Records,
		events:    deps.Events,
		publisher: deps.Publisher,
		now:       now,
		ids:       ids.NewGenerator(cfg.IDRetryLimit),
		tokens:    NewTokenCounter(cfg.Location),
		cfg:       cfg,
	}
}

// Restore rebuilds the in-memory table from persisted entries and resumes
// today's token sequence.
func (s *Service) Restore(entries []Entry) error {
	if err := s.store.Load(entries); err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}
	now := s.now()
	for _, e := range entries {
		s.tokens.Observe(e.AddedAt, e.TokenNumber, now)
	}
	return nil
}

// RestoreSince is the cutoff for LoadEntries: start of the operating day.
func (s *Service) RestoreSince() time.Time {
	return s.tokens.StartOfDay(s.now())
}

// Enqueue admits a patient into the waiting state.
func (s *Service) Enqueue(ctx context.Context, patientID string, priority Priority) (*Entry, error) {
	if patientID == "" {
		return nil, ErrMissingPatientRef
	}
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	return s.enqueue(ctx, p, priority)
}

// EnqueueByUHID resolves the patient by external health id first.
func (s *Service) EnqueueByUHID(ctx context.Context, uhid string, priority Priority) (*Entry, error) {
	if uhid == "" {
		return nil, ErrMissingPatientRef
	}
	p, err := s.patients.GetByUHID(ctx, uhid)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, fmt.Errorf("%w: uhid %s", ErrPatientNotFound, uhid)
		}
		return nil, fmt.Errorf("load patient by uhid: %w", err)
	}
	return s.enqueue(ctx, p, priority)
}

func (s *Service) enqueue(ctx context.Context, p *patient.Patient, priority Priority) (*Entry, error) {
	if priority != PriorityNormal && priority != PriorityUrgent {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	id, err := s.ids.NewChecked(ids.KindQueue, s.store.Has)
	if err != nil {
		return nil, err
	}

	draft := Entry{
		ID:          id,
		PatientID:   p.ID,
		PatientName: p.Name,
		Priority:    priority,
	}

	created, err := s.store.Insert(ctx, draft, func(e *Entry) {
		e.AddedAt = s.now()
		e.TokenNumber = s.tokens.Next(e.AddedAt)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("queued entry=%s patient=%s token=%d priority=%s position=%d",
		created.ID, created.PatientID, created.TokenNumber, created.Priority, created.Position)
	s.record(ctx, created, EventEntryQueued, map[string]any{
		"patient_id":   created.PatientID,
		"priority":     created.Priority,
		"token_number": created.TokenNumber,
	})

	return &created, nil
}

// MarkNurseComplete: waiting -> nurse_completed.
func (s *Service) MarkNurseComplete(ctx context.Context, id string) (*Entry, error) {
	return s.apply(ctx, id, EventNurseComplete, nil)
}

// MarkTimelineReady: nurse_completed -> ready_for_doctor. Called by the AI
// pipeline whenever it finishes, in any order relative to other mutations.
func (s *Service) MarkTimelineReady(ctx context.Context, id string) (*Entry, error) {
	return s.apply(ctx, id, EventTimelineReady, nil)
}

// StartConsultation: ready_for_doctor -> in_consultation, provided no other
// entry is in consultation.
func (s *Service) StartConsultation(ctx context.Context, id string) (*Entry, error) {
	return s.apply(ctx, id, EventStartConsultation, nil)
}

// CompleteConsultation: in_consultation -> completed.
func (s *Service) CompleteConsultation(ctx context.Context, id string) (*Entry, error) {
	return s.apply(ctx, id, EventCompleteConsultation, nil)
}

// Cancel removes a not-yet-served entry from the queue.
func (s *Service) Cancel(ctx context.Context, id string) (*Entry, error) {
	return s.apply(ctx, id, EventCancel, nil)
}

// apply re-reads and retries when another writer got to the entry first, so
// a losing caller sees the lifecycle outcome (usually an invalid transition)
// rather than a bare version conflict.
func (s *Service) apply(ctx context.Context, id string, ev Event, payload map[string]any) (*Entry, error) {
	var cur, updated Entry
	for attempt := 0; ; attempt++ {
		var err error
		cur, err = s.store.Get(id)
		if err != nil {
			return nil, err
		}

		updated, err = s.store.Update(ctx, id, cur.Version, func(e *Entry) error {
			return transition(e, ev, s.now())
		})
		if errors.Is(err, ErrConcurrentModification) && attempt < maxApplyAttempts-1 {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	log.Printf("transition entry=%s event=%s from=%s to=%s", id, ev, cur.Status, updated.Status)
	if payload == nil {
		payload = map[string]any{}
	}
	payload["from"] = cur.Status
	payload["to"] = updated.Status
	s.record(ctx, updated, eventTypes[ev], payload)

	return &updated, nil
}

func (s *Service) GetEntry(ctx context.Context, id string) (*Entry, error) {
	e, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetActiveForPatient returns the patient's non-terminal entry.
func (s *Service) GetActiveForPatient(ctx context.Context, patientID string) (*Entry, error) {
	e, ok := s.store.ActiveForPatient(patientID)
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// GetQueue returns the full view and its stats from one snapshot.
func (s *Service) GetQueue(ctx context.Context) (*View, error) {
	v := BuildView(s.store.ListAll(), s.cfg.RecentCompletedLimit)
	return &v, nil
}

func (s *Service) GetWaiting(ctx context.Context) ([]Entry, error) {
	return WaitingView(s.store.ListAll()), nil
}

// GetCurrent returns the in-consultation entry with its patient, or an
// empty Current when nobody is with the doctor.
func (s *Service) GetCurrent(ctx context.Context) (*Current, error) {
	e, ok := s.store.ActiveConsultation()
	if !ok {
		return &Current{}, nil
	}

	p, err := s.patients.Get(ctx, e.PatientID)
	if err != nil {
		if !errors.Is(err, patient.ErrNotFound) {
			return nil, fmt.Errorf("load current patient: %w", err)
		}
		log.Printf("current entry %s references missing patient %s", e.ID, e.PatientID)
		p = nil
	}

	return &Current{Entry: &e, Patient: p}, nil
}

type SweepResult struct {
	Examined int `json:"examined"`
	Advanced int `json:"advanced"`
	Flagged  int `json:"flagged"`
	Failed   int `json:"failed"`
}

// SweepStaleTimelines handles entries stuck in nurse_completed for longer
// than TimelineTimeout. If clinical records exist for the visit the entry is
// advanced to ready_for_doctor; otherwise it is flagged for manual
// intervention and left where it is.
func (s *Service) SweepStaleTimelines(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	if s.cfg.TimelineTimeout <= 0 {
		return res, nil
	}

	now := s.now()
	for _, e := range s.store.ListByStatus(StatusNurseCompleted) {
		if e.NurseCompletedAt == nil || now.Sub(*e.NurseCompletedAt) < s.cfg.TimelineTimeout {
			continue
		}
		res.Examined++

		if err := ctx.Err(); err != nil {
			return res, err
		}

		ready := false
		if s.records != nil {
			has, err := s.records.HasSince(ctx, e.PatientID, e.AddedAt)
			if err != nil {
				log.Printf("timeline sweep: check records for %s: %v", e.ID, err)
				res.Failed++
				continue
			}
			ready = has
		}

		if ready {
			_, err := s.apply(ctx, e.ID, EventTimelineReady, map[string]any{"reason": "sweep"})
			if err != nil {
				if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrConcurrentModification) {
					log.Printf("timeline sweep: advance %s: %v", e.ID, err)
					res.Failed++
				}
				continue
			}
			res.Advanced++
			continue
		}

		if e.Attention != nil {
			continue
		}
		flagged, err := s.store.Update(ctx, e.ID, e.Version, func(x *Entry) error {
			if x.Status != StatusNurseCompleted {
				return &TransitionError{QueueID: x.ID, Event: EventTimelineReady, Expected: []Status{StatusNurseCompleted}, Actual: x.Status}
			}
			x.Attention = &Attention{Reason: AttentionTimelineTimeout, FlaggedAt: now}
			return nil
		})
		if err != nil {
			if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrConcurrentModification) {
				log.Printf("timeline sweep: flag %s: %v", e.ID, err)
				res.Failed++
			}
			continue
		}
		res.Flagged++
		log.Printf("flagged entry=%s reason=%s waited=%s", flagged.ID, AttentionTimelineTimeout, now.Sub(*e.NurseCompletedAt))
		s.record(ctx, flagged, EventEntryFlagged, map[string]any{
			"reason": AttentionTimelineTimeout,
		})
	}

	return res, nil
}

// record writes the event log row and publishes the change. Both are best
// effort: the transition has already been committed.
func (s *Service) record(ctx context.Context, e Entry, eventType string, payload map[string]any) {
	at := s.now()

	if s.events != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to marshal event payload for %s: %v", eventType, err)
			data = nil
		}
		ev := EventLog{
			EventType: eventType,
			QueueID:   e.ID,
			Payload:   data,
			CreatedAt: at,
		}
		if err := s.events.InsertEvent(ctx, ev); err != nil {
			log.Printf("failed to insert event log %s for entry %s: %v", eventType, e.ID, err)
		}
	}

	if s.publisher != nil {
		change := Change{
			Type:      eventType,
			QueueID:   e.ID,
			PatientID: e.PatientID,
			Status:    e.Status,
			Version:   e.Version,
			At:        at,
		}
		if err := s.publisher.Publish(ctx, change); err != nil {
			log.Printf("failed to publish %s for entry %s: %v", eventType, e.ID, err)
		}
	}
}
