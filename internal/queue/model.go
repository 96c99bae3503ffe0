package queue

import (
	"fmt"
	"time"

	"github.com/hackgods/patient-queue-engine/internal/patient"
)

type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusNurseCompleted Status = "nurse_completed"
	StatusReadyForDoctor Status = "ready_for_doctor"
	StatusInConsultation Status = "in_consultation"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusWaiting,
	StatusNurseCompleted,
	StatusReadyForDoctor,
	StatusInConsultation,
	StatusCompleted,
	StatusCancelled,
}

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusNurseCompleted, StatusReadyForDoctor,
		StatusInConsultation, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses are never left and free the patient for a new entry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Schedulable statuses are the ones that receive a queue position.
func (s Status) Schedulable() bool {
	return s == StatusWaiting || s == StatusNurseCompleted || s == StatusReadyForDoctor
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority accepts "normal" or "urgent"; empty means normal.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(raw) {
	case "", PriorityNormal:
		return PriorityNormal, nil
	case PriorityUrgent:
		return PriorityUrgent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
}

// Attention marks an entry that needs a human to look at it.
type Attention struct {
	Reason    string
	FlaggedAt time.Time
}

type Entry struct {
	ID               string
	PatientID        string
	PatientName      string
	Priority         Priority
	Status           Status
	TokenNumber      int
	Position         int
	AddedAt          time.Time
	NurseCompletedAt *time.Time
	TimelineReadyAt  *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	Attention        *Attention
	Version          int64
}

func (e Entry) clone() Entry {
	e.NurseCompletedAt = copyTime(e.NurseCompletedAt)
	e.TimelineReadyAt = copyTime(e.TimelineReadyAt)
	e.StartedAt = copyTime(e.StartedAt)
	e.CompletedAt = copyTime(e.CompletedAt)
	e.CancelledAt = copyTime(e.CancelledAt)
	if e.Attention != nil {
		a := *e.Attention
		e.Attention = &a
	}
	return e
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type EventLog struct {
	ID        int64
	EventType string
	QueueID   string
	Payload   []byte
	CreatedAt time.Time
}

// Current is the in-consultation entry joined with its patient.
type Current struct {
	Entry   *Entry
	Patient *patient.Patient
}

type PriorityCounts struct {
	Normal int `json:"normal"`
	Urgent int `json:"urgent"`
	Total  int `json:"total"`
}

func (c *PriorityCounts) add(p Priority) {
	if p == PriorityUrgent {
		c.Urgent++
	} else {
		c.Normal++
	}
	c.Total++
}

type Stats struct {
	Waiting        PriorityCounts `json:"waiting"`
	NurseCompleted PriorityCounts `json:"nurse_completed"`
	ReadyForDoctor PriorityCounts `json:"ready_for_doctor"`
	InConsultation PriorityCounts `json:"in_consultation"`
	Completed      PriorityCounts `json:"completed"`
	Cancelled      PriorityCounts `json:"cancelled"`
	Active         PriorityCounts `json:"active"`
	Total          int            `json:"total"`
}

// View is the full queue projection handed to polling clients.
type View struct {
	Entries []Entry
	Stats   Stats
}
