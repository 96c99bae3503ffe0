package queue

import (
	"sort"
	"sync"
	"time"
)

// Less is the serving order: urgent first, then arrival, then token.
func Less(a, b *Entry) bool {
	if a.Priority != b.Priority {
		return a.Priority == PriorityUrgent
	}
	if !a.AddedAt.Equal(b.AddedAt) {
		return a.AddedAt.Before(b.AddedAt)
	}
	return a.TokenNumber < b.TokenNumber
}

// Order returns the schedulable entries sorted in serving order.
func Order(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Status.Schedulable() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Less(&out[i], &out[j])
	})
	return out
}

// Positions maps every schedulable entry id to its 1-based rank. Entries
// that are being served or are finished are absent.
func Positions(entries []Entry) map[string]int {
	ordered := Order(entries)
	pos := make(map[string]int, len(ordered))
	for i, e := range ordered {
		pos[e.ID] = i + 1
	}
	return pos
}

// TokenCounter hands out token numbers that increase within one operating
// day and restart at 1 on the next.
type TokenCounter struct {
	mu   sync.Mutex
	loc  *time.Location
	day  string
	last int
}

func NewTokenCounter(loc *time.Location) *TokenCounter {
	if loc == nil {
		loc = time.UTC
	}
	return &TokenCounter{loc: loc}
}

func (c *TokenCounter) dayOf(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

func (c *TokenCounter) Next(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	day := c.dayOf(now)
	if day != c.day {
		c.day = day
		c.last = 0
	}
	c.last++
	return c.last
}

// Observe raises the counter to token if it was issued on now's day.
// Used when rebuilding state from persisted entries.
func (c *TokenCounter) Observe(issuedAt time.Time, token int, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.dayOf(now)
	if c.dayOf(issuedAt) != today {
		return
	}
	if c.day != today {
		c.day = today
		c.last = 0
	}
	if token > c.last {
		c.last = token
	}
}

// StartOfDay returns local midnight of now's operating day.
func (c *TokenCounter) StartOfDay(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}
