package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(id string, p Priority, s Status, minute, token int) Entry {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return Entry{
		ID:          id,
		PatientID:   "PAT_" + id,
		Priority:    p,
		Status:      s,
		AddedAt:     base.Add(time.Duration(minute) * time.Minute),
		TokenNumber: token,
	}
}

func TestOrder_UrgentFirstThenFIFO(t *testing.T) {
	entries := []Entry{
		entryAt("a", PriorityNormal, StatusWaiting, 1, 1),
		entryAt("b", PriorityUrgent, StatusWaiting, 3, 3),
		entryAt("c", PriorityNormal, StatusReadyForDoctor, 2, 2),
		entryAt("d", PriorityUrgent, StatusNurseCompleted, 4, 4),
		entryAt("e", PriorityNormal, StatusInConsultation, 0, 5),
		entryAt("f", PriorityUrgent, StatusCompleted, 0, 6),
	}

	got := Order(entries)

	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestOrder_TieBrokenByToken(t *testing.T) {
	entries := []Entry{
		entryAt("late-token", PriorityNormal, StatusWaiting, 1, 9),
		entryAt("early-token", PriorityNormal, StatusWaiting, 1, 2),
	}

	got := Order(entries)
	require.Len(t, got, 2)
	assert.Equal(t, "early-token", got[0].ID)
}

func TestPositions_OnlySchedulableRanked(t *testing.T) {
	entries := []Entry{
		entryAt("a", PriorityNormal, StatusWaiting, 1, 1),
		entryAt("b", PriorityNormal, StatusInConsultation, 2, 2),
		entryAt("c", PriorityUrgent, StatusReadyForDoctor, 3, 3),
		entryAt("d", PriorityNormal, StatusCancelled, 0, 4),
	}

	pos := Positions(entries)

	assert.Equal(t, map[string]int{"c": 1, "a": 2}, pos)
}

func TestPositions_Idempotent(t *testing.T) {
	entries := []Entry{
		entryAt("a", PriorityNormal, StatusWaiting, 5, 1),
		entryAt("b", PriorityUrgent, StatusWaiting, 6, 2),
		entryAt("c", PriorityNormal, StatusNurseCompleted, 1, 3),
		entryAt("d", PriorityUrgent, StatusReadyForDoctor, 9, 4),
	}

	first := Positions(entries)
	second := Positions(entries)
	assert.Equal(t, first, second)
}

func TestPositions_NormalInsertKeepsRelativeOrder(t *testing.T) {
	existing := []Entry{
		entryAt("a", PriorityNormal, StatusWaiting, 1, 1),
		entryAt("b", PriorityUrgent, StatusWaiting, 2, 2),
		entryAt("c", PriorityNormal, StatusReadyForDoctor, 3, 3),
	}
	before := Positions(existing)

	withNew := append(append([]Entry{}, existing...), entryAt("n", PriorityNormal, StatusWaiting, 10, 4))
	after := Positions(withNew)

	for id, p := range before {
		assert.Equal(t, p, after[id], "entry %s moved", id)
	}
	assert.Equal(t, 4, after["n"])
}

func TestTokenCounter_IncreasesAndResetsDaily(t *testing.T) {
	c := NewTokenCounter(time.UTC)
	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, c.Next(day1))
	assert.Equal(t, 2, c.Next(day1.Add(time.Hour)))
	assert.Equal(t, 3, c.Next(day1.Add(14*time.Hour)))

	day2 := day1.Add(24 * time.Hour)
	assert.Equal(t, 1, c.Next(day2))
}

func TestTokenCounter_DayFollowsLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	c := NewTokenCounter(loc)

	// 20:00 UTC on the 2nd is already the 3rd in IST.
	evening := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, c.Next(evening))
	assert.Equal(t, 1, c.Next(evening.Add(3*time.Hour)))
}

func TestTokenCounter_Observe(t *testing.T) {
	c := NewTokenCounter(time.UTC)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	c.Observe(now.Add(-time.Hour), 7, now)
	c.Observe(now.Add(-2*time.Hour), 3, now)
	c.Observe(now.Add(-24*time.Hour), 40, now)

	assert.Equal(t, 8, c.Next(now))
}

func TestTokenCounter_StartOfDay(t *testing.T) {
	c := NewTokenCounter(time.UTC)
	now := time.Date(2026, 3, 2, 12, 34, 56, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), c.StartOfDay(now))
}
