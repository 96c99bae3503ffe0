package queue

import (
	"sort"
	"time"
)

// BuildView returns the non-terminal entries in serving order (the one in
// consultation first), followed by up to recentCompleted completed entries,
// most recent first. Stats cover the whole snapshot.
func BuildView(snapshot []Entry, recentCompleted int) View {
	var consulting []Entry
	var completed []Entry
	for _, e := range snapshot {
		switch e.Status {
		case StatusInConsultation:
			consulting = append(consulting, e)
		case StatusCompleted:
			completed = append(completed, e)
		}
	}

	sort.SliceStable(completed, func(i, j int) bool {
		return completedAt(completed[i]).After(completedAt(completed[j]))
	})
	if recentCompleted < 0 {
		recentCompleted = 0
	}
	if len(completed) > recentCompleted {
		completed = completed[:recentCompleted]
	}

	entries := make([]Entry, 0, len(consulting)+len(snapshot))
	entries = append(entries, consulting...)
	entries = append(entries, Order(snapshot)...)
	entries = append(entries, completed...)

	return View{
		Entries: entries,
		Stats:   ComputeStats(snapshot),
	}
}

// WaitingView returns entries still in waiting, in serving order.
func WaitingView(snapshot []Entry) []Entry {
	out := make([]Entry, 0)
	for _, e := range Order(snapshot) {
		if e.Status == StatusWaiting {
			out = append(out, e)
		}
	}
	return out
}

func ComputeStats(snapshot []Entry) Stats {
	var st Stats
	for _, e := range snapshot {
		switch e.Status {
		case StatusWaiting:
			st.Waiting.add(e.Priority)
		case StatusNurseCompleted:
			st.NurseCompleted.add(e.Priority)
		case StatusReadyForDoctor:
			st.ReadyForDoctor.add(e.Priority)
		case StatusInConsultation:
			st.InConsultation.add(e.Priority)
		case StatusCompleted:
			st.Completed.add(e.Priority)
		case StatusCancelled:
			st.Cancelled.add(e.Priority)
		}
		if !e.Status.Terminal() {
			st.Active.add(e.Priority)
		}
		st.Total++
	}
	return st
}

func completedAt(e Entry) time.Time {
	if e.CompletedAt != nil {
		return *e.CompletedAt
	}
	return e.AddedAt
}
