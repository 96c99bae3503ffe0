// Package notes holds the append-only clinical records (SOAP notes from
// transcription, structured prescriptions from OCR) written by the AI
// pipeline. Records are never mutated after Append.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hackgods/patient-queue-engine/internal/ids"
)

type Kind string

const (
	KindNote    Kind = "note"
	KindHistory Kind = "history"
)

var ErrInvalidKind = errors.New("invalid record kind")

type Record struct {
	ID        string
	PatientID string
	Kind      Kind
	Body      json.RawMessage
	CreatedAt time.Time
}

type Store interface {
	Append(ctx context.Context, rec Record) (*Record, error)
	List(ctx context.Context, patientID string, kind Kind) ([]Record, error)
	// HasSince reports whether any record for the patient was created at or after since.
	HasSince(ctx context.Context, patientID string, since time.Time) (bool, error)
}

func (k Kind) Valid() bool {
	return k == KindNote || k == KindHistory
}

func (k Kind) idKind() ids.Kind {
	if k == KindHistory {
		return ids.KindHistory
	}
	return ids.KindNote
}

// prepare fills in id and timestamp the way both stores expect.
func prepare(rec Record, now time.Time) (Record, error) {
	if !rec.Kind.Valid() {
		return Record{}, ErrInvalidKind
	}
	if rec.ID == "" {
		rec.ID = ids.New(rec.Kind.idKind())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if len(rec.Body) == 0 {
		rec.Body = json.RawMessage(`{}`)
	}
	return rec, nil
}
