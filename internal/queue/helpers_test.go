package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/patient-queue-engine/internal/config"
	"github.com/hackgods/patient-queue-engine/internal/patient"
)

// fakeClock advances by step on every reading so arrival times are distinct.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		step: time.Second,
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []EventLog
}

func (r *recordedEvents) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

type recordedChanges struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordedChanges) Publish(_ context.Context, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := msg.(Change)
	if !ok {
		return errors.New("unexpected message type")
	}
	r.changes = append(r.changes, c)
	return nil
}

type stubRecords struct {
	has map[string]bool
	err error
}

func (s stubRecords) HasSince(_ context.Context, patientID string, _ time.Time) (bool, error) {
	return s.has[patientID], s.err
}

type failingWriter struct {
	err error
}

func (w failingWriter) SaveEntry(context.Context, Entry) error { return w.err }

type harness struct {
	svc       *Service
	store     *Store
	patients  *patient.MemoryDirectory
	clock     *fakeClock
	events    *recordedEvents
	published *recordedChanges
}

func newHarness(t *testing.T, opts ...func(*Dependencies, *config.Config)) *harness {
	t.Helper()

	h := &harness{
		store:     NewStore(),
		patients:  patient.NewMemoryDirectory(),
		clock:     newFakeClock(),
		events:    &recordedEvents{},
		published: &recordedChanges{},
	}

	deps := Dependencies{
		Store:     h.store,
		Patients:  h.patients,
		Events:    h.events,
		Publisher: h.published,
		Clock:     h.clock.Now,
	}
	cfg := config.Config{
		RecentCompletedLimit: 5,
		TimelineTimeout:      10 * time.Minute,
		Location:             time.UTC,
	}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	h.svc = NewService(deps, cfg)
	return h
}

func (h *harness) addPatient(t *testing.T, id string) patient.Patient {
	t.Helper()
	uhid := "UHID-" + id
	p := patient.Patient{
		ID:        id,
		UHID:      &uhid,
		Name:      gofakeit.Name(),
		Phone:     gofakeit.Numerify("##########"),
		CreatedAt: h.clock.Now(),
	}
	require.NoError(t, h.patients.Add(p))
	return p
}

// advance pushes an entry forward through the lifecycle up to target,
// starting from whatever status it is in now.
func (h *harness) advance(t *testing.T, id string, target Status) Entry {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		to Status
		fn func(context.Context, string) (*Entry, error)
	}{
		{StatusNurseCompleted, h.svc.MarkNurseComplete},
		{StatusReadyForDoctor, h.svc.MarkTimelineReady},
		{StatusInConsultation, h.svc.StartConsultation},
		{StatusCompleted, h.svc.CompleteConsultation},
	}

	rank := func(s Status) int {
		for i, st := range Statuses {
			if st == s {
				return i
			}
		}
		return -1
	}

	e, err := h.store.Get(id)
	require.NoError(t, err)
	for _, step := range steps {
		if e.Status == target {
			break
		}
		if rank(step.to) <= rank(e.Status) {
			continue
		}
		got, err := step.fn(ctx, id)
		require.NoError(t, err, "advance %s to %s", id, step.to)
		e = *got
	}
	require.Equal(t, target, e.Status)
	return e
}

func patientOrder(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PatientID
	}
	return out
}

func positions(entries []Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Position
	}
	return out
}
