package queue

import "time"

type Event string

const (
	EventNurseComplete        Event = "nurse_complete"
	EventTimelineReady        Event = "timeline_ready"
	EventStartConsultation    Event = "start_consultation"
	EventCompleteConsultation Event = "complete_consultation"
	EventCancel               Event = "cancel"
)

type rule struct {
	from  []Status
	to    Status
	stamp func(e *Entry, at time.Time)
}

// transitions is the whole lifecycle. Nothing else writes Entry.Status.
var transitions = map[Event]rule{
	EventNurseComplete: {
		from:  []Status{StatusWaiting},
		to:    StatusNurseCompleted,
		stamp: func(e *Entry, at time.Time) { e.NurseCompletedAt = &at },
	},
	EventTimelineReady: {
		from:  []Status{StatusNurseCompleted},
		to:    StatusReadyForDoctor,
		stamp: func(e *Entry, at time.Time) { e.TimelineReadyAt = &at },
	},
	EventStartConsultation: {
		from:  []Status{StatusReadyForDoctor},
		to:    StatusInConsultation,
		stamp: func(e *Entry, at time.Time) { e.StartedAt = &at },
	},
	EventCompleteConsultation: {
		from:  []Status{StatusInConsultation},
		to:    StatusCompleted,
		stamp: func(e *Entry, at time.Time) { e.CompletedAt = &at },
	},
	EventCancel: {
		from:  []Status{StatusWaiting, StatusNurseCompleted, StatusReadyForDoctor},
		to:    StatusCancelled,
		stamp: func(e *Entry, at time.Time) { e.CancelledAt = &at },
	},
}

// ExpectedFrom returns the statuses ev may be applied to.
func ExpectedFrom(ev Event) []Status {
	r, ok := transitions[ev]
	if !ok {
		return nil
	}
	out := make([]Status, len(r.from))
	copy(out, r.from)
	return out
}

// transition applies ev to e in place. On a guard violation e is untouched.
func transition(e *Entry, ev Event, at time.Time) error {
	r, ok := transitions[ev]
	if !ok || !r.allows(e.Status) {
		return &TransitionError{
			QueueID:  e.ID,
			Event:    ev,
			Expected: ExpectedFrom(ev),
			Actual:   e.Status,
		}
	}

	e.Status = r.to
	r.stamp(e, at)
	e.Attention = nil
	return nil
}

func (r rule) allows(s Status) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}
