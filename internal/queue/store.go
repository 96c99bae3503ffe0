package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EntryWriter persists an entry before the store makes it visible.
type EntryWriter interface {
	SaveEntry(ctx context.Context, e Entry) error
}

// Store is the authoritative table of queue entries. Every mutation runs in
// one write section, which is also where the cross-entry invariants are
// checked: one non-terminal entry per patient and one in_consultation entry
// overall.
type Store struct {
	mu              sync.RWMutex
	entries         map[string]*Entry
	activeByPatient map[string]string
	consulting      string
	writer          EntryWriter
}

type StoreOption func(*Store)

// WithWriter makes the store write-through to w.
func WithWriter(w EntryWriter) StoreOption {
	return func(s *Store) { s.writer = w }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries:         make(map[string]*Entry),
		activeByPatient: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the table with entries, rejecting sets that break the
// store invariants. Nothing is written through.
func (s *Store) Load(entries []Entry) error {
	table := make(map[string]*Entry, len(entries))
	byPatient := make(map[string]string)
	consulting := ""

	for _, e := range entries {
		if !e.Status.Valid() {
			return fmt.Errorf("load entry %s: unknown status %q", e.ID, e.Status)
		}
		if _, dup := table[e.ID]; dup {
			return fmt.Errorf("load entry %s: duplicate id", e.ID)
		}
		if !e.Status.Terminal() {
			if other, ok := byPatient[e.PatientID]; ok {
				return fmt.Errorf("load entry %s: %w (also %s)", e.ID, ErrDuplicatePatientInQueue, other)
			}
			byPatient[e.PatientID] = e.ID
		}
		if e.Status == StatusInConsultation {
			if consulting != "" {
				return fmt.Errorf("load entry %s: %w (also %s)", e.ID, ErrConsultationAlreadyActive, consulting)
			}
			consulting = e.ID
		}
		c := e.clone()
		table[e.ID] = &c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = table
	s.activeByPatient = byPatient
	s.consulting = consulting
	s.reposition()
	return nil
}

// Insert adds a new waiting entry. stamp runs inside the write section after
// the duplicate check, so values it assigns (token, arrival time) are only
// consumed by entries that are actually stored.
func (s *Store) Insert(ctx context.Context, e Entry, stamp func(*Entry)) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.ID]; exists {
		return Entry{}, fmt.Errorf("insert entry %s: id already in use", e.ID)
	}
	if other, ok := s.activeByPatient[e.PatientID]; ok {
		return Entry{}, fmt.Errorf("%w: patient %s holds %s (%s)",
			ErrDuplicatePatientInQueue, e.PatientID, other, s.entries[other].Status)
	}

	next := e.clone()
	next.Status = StatusWaiting
	next.Version = 1
	if stamp != nil {
		stamp(&next)
	}

	if err := s.write(ctx, next); err != nil {
		return Entry{}, err
	}

	s.entries[next.ID] = &next
	s.activeByPatient[next.PatientID] = next.ID
	s.reposition()

	return s.entries[next.ID].clone(), nil
}

func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e.clone(), nil
}

func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Update applies mutate to a copy of entry id and commits it if the entry
// still carries expectedVersion and the result keeps the store invariants.
// Any error leaves the stored entry unchanged.
func (s *Store) Update(ctx context.Context, id string, expectedVersion int64, mutate func(*Entry) error) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if cur.Version != expectedVersion {
		return Entry{}, fmt.Errorf("%w: entry %s at version %d, expected %d",
			ErrConcurrentModification, id, cur.Version, expectedVersion)
	}

	next := cur.clone()
	if err := mutate(&next); err != nil {
		return Entry{}, err
	}

	if next.ID != cur.ID || next.PatientID != cur.PatientID || next.TokenNumber != cur.TokenNumber {
		return Entry{}, fmt.Errorf("update entry %s: identity fields are immutable", id)
	}
	if next.Status == StatusInConsultation && s.consulting != "" && s.consulting != id {
		return Entry{}, fmt.Errorf("%w: %s (%s)",
			ErrConsultationAlreadyActive, s.consulting, s.entries[s.consulting].PatientName)
	}

	next.Version = cur.Version + 1
	if err := s.write(ctx, next); err != nil {
		return Entry{}, err
	}

	s.entries[id] = &next
	if next.Status.Terminal() && s.activeByPatient[next.PatientID] == id {
		delete(s.activeByPatient, next.PatientID)
	}
	switch {
	case next.Status == StatusInConsultation:
		s.consulting = id
	case s.consulting == id:
		s.consulting = ""
	}
	if cur.Status != next.Status {
		s.reposition()
	}

	return s.entries[id].clone(), nil
}

// ListAll returns every entry ordered by arrival.
func (s *Store) ListAll() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) ListByStatus(status Status) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.snapshotLocked() {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// ActiveConsultation returns the in_consultation entry, if any.
func (s *Store) ActiveConsultation() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.consulting == "" {
		return Entry{}, false
	}
	return s.entries[s.consulting].clone(), true
}

// ActiveForPatient returns the patient's non-terminal entry, if any.
func (s *Store) ActiveForPatient(patientID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.activeByPatient[patientID]
	if !ok {
		return Entry{}, false
	}
	return s.entries[id].clone(), true
}

// write persists e on a context detached from the caller's cancellation: a
// client going away mid-write must not leave the row ahead of memory.
func (s *Store) write(ctx context.Context, e Entry) error {
	if s.writer == nil {
		return nil
	}
	if err := s.writer.SaveEntry(context.WithoutCancel(ctx), e); err != nil {
		return fmt.Errorf("persist entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].TokenNumber < out[j].TokenNumber
	})
	return out
}

// reposition recomputes Position for every entry. Caller holds the write lock.
func (s *Store) reposition() {
	all := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, *e)
	}
	pos := Positions(all)
	for id, e := range s.entries {
		e.Position = pos[id]
	}
}
