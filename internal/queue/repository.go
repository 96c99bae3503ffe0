package queue

import (
	"context"
	"time"
)

// Repository is the persistence boundary behind the in-memory store.
type Repository interface {
	EntryWriter

	// LoadEntries returns every non-terminal entry plus entries added since.
	LoadEntries(ctx context.Context, since time.Time) ([]Entry, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// EventRecorder is the event-log half of Repository.
type EventRecorder interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Publisher fans committed changes out to listeners (see redisclient.Publisher).
type Publisher interface {
	Publish(ctx context.Context, msg any) error
}

// ClinicalRecords reports whether the AI pipeline has written anything for
// a patient since a point in time.
type ClinicalRecords interface {
	HasSince(ctx context.Context, patientID string, since time.Time) (bool, error)
}
