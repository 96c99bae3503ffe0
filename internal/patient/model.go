package patient

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("patient not found")
	ErrDuplicateUHID = errors.New("uhid already registered")
)

type Patient struct {
	ID         string
	UHID       *string
	Name       string
	Phone      string
	Age        *int
	Gender     *string
	VisitCount int
	LastVisit  *time.Time
	CreatedAt  time.Time
}

// Directory is the patient lookup the queue engine consumes. Implementations
// return ErrNotFound for unknown ids or UHIDs.
type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*Patient, error)
	GetByUHID(ctx context.Context, uhid string) (*Patient, error)
}
