package notes

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record // by patient id, append order
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) (*Record, error) {
	rec, err := prepare(rec, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.records[rec.PatientID] = append(s.records[rec.PatientID], rec)
	s.mu.Unlock()

	return &rec, nil
}

// List returns the patient's records of kind, newest first.
func (s *MemoryStore) List(_ context.Context, patientID string, kind Kind) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records[patientID] {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) HasSince(_ context.Context, patientID string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records[patientID] {
		if !r.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}
