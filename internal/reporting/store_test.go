package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/watchtower/internal/db"
	"github.com/zulandar/watchtower/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	s, err := NewStore(gdb)
	require.NoError(t, err)
	return s
}

var base = time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)

func TestNewStore_RequiresDB(t *testing.T) {
	_, err := NewStore(nil)
	assert.ErrorContains(t, err, "db is required")
}

func TestStore_RecordIncident(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordIncident(ctx, Incident{
		StateID:     "state-1",
		Phone:       "+15550100",
		ProcedureID: "camera-nvr",
		Issue:       "Camera/NVR Troubleshooting",
		Outcome:     OutcomeEscalated,
		Reason:      "stuck 2 times at this step: Restart the NVR",
		Step:        3,
		TotalSteps:  10,
		Completed:   []string{"Go to the IT room", "Check the power light"},
		Transcript:  []string{"guard: cameras down", "assistant: Step 1"},
		StartedAt:   base,
		EndedAt:     base.Add(5 * time.Minute),
	})
	require.NoError(t, err)

	got, err := s.ListIncidents(ctx, ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	inc := got[0]
	assert.Len(t, inc.ID, 36)
	assert.Equal(t, "escalated", inc.Outcome)
	assert.Equal(t, 3, inc.Step)
	assert.Equal(t, "guard: cameras down\nassistant: Step 1", inc.Transcript)
	assert.Equal(t, []string{"Go to the IT room", "Check the power light"}, CompletedSteps(inc))
	require.NotNil(t, inc.StartedAt)
	assert.True(t, base.Equal(*inc.StartedAt))
}

func TestStore_RecordIncidentDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordIncident(ctx, Incident{Phone: "+1", Issue: "Supervisor requested", Outcome: OutcomeEscalated}))

	got, err := s.ListIncidents(ctx, ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].StartedAt)
	assert.False(t, got[0].EndedAt.IsZero())
	assert.Empty(t, CompletedSteps(got[0]))
}

func TestStore_ListIncidentsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed := []Incident{
		{Phone: "+1", Issue: "a", Outcome: OutcomeResolved, EndedAt: base},
		{Phone: "+2", Issue: "b", Outcome: OutcomeEscalated, EndedAt: base.Add(time.Hour)},
		{Phone: "+1", Issue: "c", Outcome: OutcomeAbandoned, EndedAt: base.Add(2 * time.Hour)},
		{Phone: "+1", Issue: "d", Outcome: OutcomeResolved, EndedAt: base.Add(3 * time.Hour)},
	}
	for _, inc := range seed {
		require.NoError(t, s.RecordIncident(ctx, inc))
	}

	all, err := s.ListIncidents(ctx, ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "d", all[0].Issue, "newest first")

	resolved, err := s.ListIncidents(ctx, ListOpts{Outcome: OutcomeResolved})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a"}, issues(resolved))

	byPhone, err := s.ListIncidents(ctx, ListOpts{Phone: "+2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, issues(byPhone))

	recent, err := s.ListIncidents(ctx, ListOpts{Since: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, issues(recent))

	limited, err := s.ListIncidents(ctx, ListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func issues(incs []models.Incident) []string {
	out := make([]string, len(incs))
	for i, inc := range incs {
		out[i] = inc.Issue
	}
	return out
}

func TestStore_RecordHandoffAndReport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordHandoff(ctx, Handoff{Phone: "+1", Notes: "signing off, all quiet", At: base}))
	require.NoError(t, s.RecordReport(ctx, Report{Phone: "+1", Body: "report: north fence light out", At: base}))

	var h models.ShiftHandoff
	require.NoError(t, s.db.First(&h).Error)
	assert.Equal(t, "signing off, all quiet", h.Notes)

	var r models.GuardReport
	require.NoError(t, s.db.First(&r).Error)
	assert.Equal(t, "report: north fence light out", r.Body)
}

func TestCompletedSteps_BadJSON(t *testing.T) {
	assert.Nil(t, CompletedSteps(models.Incident{CompletedSteps: "{"}))
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	got, err := ParseSince("2026-03-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseSince("36h", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	for _, bad := range []string{"yesterday", "-1h", "0s"} {
		_, err := ParseSince(bad, now)
		assert.Error(t, err, bad)
	}
}
