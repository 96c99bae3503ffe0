package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hackgods/patient-queue-engine/internal/patient"
)

var (
	ErrNotFound                  = errors.New("queue entry not found")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrDuplicatePatientInQueue   = errors.New("patient already has an active queue entry")
	ErrConsultationAlreadyActive = errors.New("another consultation is already active")
	ErrConcurrentModification    = errors.New("queue entry was modified concurrently")
	ErrPatientNotFound           = patient.ErrNotFound
	ErrInvalidPriority           = errors.New("invalid priority")
	ErrMissingPatientRef         = errors.New("patient_id or uhid is required")
)

// TransitionError reports a guard violation. It matches ErrInvalidTransition.
type TransitionError struct {
	QueueID  string
	Event    Event
	Expected []Status
	Actual   Status
}

func (e *TransitionError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = string(s)
	}
	return fmt.Sprintf("cannot %s entry %s: expected %s, actual %s",
		e.Event, e.QueueID, strings.Join(expected, "|"), e.Actual)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
