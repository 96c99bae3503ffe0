package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureSnapshot() []Entry {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }
	done := func(min int) *time.Time { t := at(min); return &t }

	return []Entry{
		{ID: "Q_1", PatientID: "P1", Priority: PriorityNormal, Status: StatusCompleted, TokenNumber: 1, AddedAt: at(1), CompletedAt: done(65)},
		{ID: "Q_2", PatientID: "P2", Priority: PriorityUrgent, Status: StatusInConsultation, TokenNumber: 2, AddedAt: at(2)},
		{ID: "Q_3", PatientID: "P3", Priority: PriorityNormal, Status: StatusWaiting, TokenNumber: 3, AddedAt: at(3)},
		{ID: "Q_4", PatientID: "P4", Priority: PriorityUrgent, Status: StatusReadyForDoctor, TokenNumber: 4, AddedAt: at(4)},
		{ID: "Q_5", PatientID: "P5", Priority: PriorityNormal, Status: StatusNurseCompleted, TokenNumber: 5, AddedAt: at(5)},
		{ID: "Q_6", PatientID: "P6", Priority: PriorityNormal, Status: StatusCancelled, TokenNumber: 6, AddedAt: at(6)},
		{ID: "Q_7", PatientID: "P7", Priority: PriorityUrgent, Status: StatusWaiting, TokenNumber: 7, AddedAt: at(7)},
		{ID: "Q_8", PatientID: "P8", Priority: PriorityNormal, Status: StatusCompleted, TokenNumber: 8, AddedAt: at(8), CompletedAt: done(70)},
	}
}

func entryIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestBuildView_Golden(t *testing.T) {
	view := BuildView(fixtureSnapshot(), 5)

	got, err := json.MarshalIndent(struct {
		Entries []string `json:"entries"`
		Stats   Stats    `json:"stats"`
	}{entryIDs(view.Entries), view.Stats}, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "queue_view", append(got, '\n'))
}

func TestBuildView_RecentCompletedLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"none", 0, []string{"Q_2", "Q_4", "Q_7", "Q_3", "Q_5"}},
		{"most recent only", 1, []string{"Q_2", "Q_4", "Q_7", "Q_3", "Q_5", "Q_8"}},
		{"all", 10, []string{"Q_2", "Q_4", "Q_7", "Q_3", "Q_5", "Q_8", "Q_1"}},
		{"negative", -3, []string{"Q_2", "Q_4", "Q_7", "Q_3", "Q_5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := BuildView(fixtureSnapshot(), tt.limit)
			assert.Equal(t, tt.want, entryIDs(view.Entries))
			assert.Equal(t, 8, view.Stats.Total, "stats ignore the completed limit")
		})
	}
}

func TestBuildView_Empty(t *testing.T) {
	view := BuildView(nil, 5)
	assert.Empty(t, view.Entries)
	assert.Equal(t, Stats{}, view.Stats)
}

func TestWaitingView(t *testing.T) {
	got := WaitingView(fixtureSnapshot())
	assert.Equal(t, []string{"Q_7", "Q_3"}, entryIDs(got))

	assert.NotNil(t, WaitingView(nil), "empty view marshals as []")
}

func TestComputeStats_ActiveMatchesNonTerminal(t *testing.T) {
	st := ComputeStats(fixtureSnapshot())

	sum := st.Waiting.Total + st.NurseCompleted.Total + st.ReadyForDoctor.Total + st.InConsultation.Total
	assert.Equal(t, sum, st.Active.Total)
	assert.Equal(t, st.Active.Normal+st.Active.Urgent, st.Active.Total)
	assert.Equal(t, st.Total, st.Active.Total+st.Completed.Total+st.Cancelled.Total)
}
