package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zulandar/watchtower/internal/catalog"
	"github.com/zulandar/watchtower/internal/db"
	"github.com/zulandar/watchtower/internal/intent"
	"github.com/zulandar/watchtower/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func newTestDBStore(t *testing.T) (*DBStore, *catalog.Catalog, *gorm.DB) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	gdb := openTestDB(t)
	s, err := NewDBStore(gdb, cat)
	require.NoError(t, err)
	return s, cat, gdb
}

func sampleState(cat *catalog.Catalog) *State {
	at := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	return &State{
		ID:             "11111111-2222-3333-4444-555555555555",
		Phone:          guard,
		Active:         true,
		Procedure:      cat.Lookup("camera-nvr"),
		Step:           4,
		Completed:      []int{1, 2, 3},
		Retries:        1,
		StartedAt:      at,
		LastActivityAt: at.Add(4 * time.Minute),
		History: []Turn{
			{Speaker: SpeakerGuard, Text: "cameras down", At: at},
			{Speaker: SpeakerAssistant, Text: "Head to the IT room.", At: at},
		},
		Menu: []intent.Intent{intent.Solved, intent.Next},
	}
}

func TestNewDBStore_Validation(t *testing.T) {
	_, err := NewDBStore(nil, nil)
	assert.ErrorContains(t, err, "db is required")
}

func TestDBStore_PutGetRoundTrip(t *testing.T) {
	s, cat, _ := newTestDBStore(t)
	ctx := context.Background()
	want := sampleState(cat)

	require.NoError(t, s.Put(ctx, want))
	got, ok, err := s.Get(ctx, guard)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, want.ID, got.ID)
	assert.Same(t, want.Procedure, got.Procedure)
	assert.Equal(t, want.Step, got.Step)
	assert.Equal(t, want.Completed, got.Completed)
	assert.Equal(t, want.Retries, got.Retries)
	assert.Equal(t, want.Menu, got.Menu)
	require.Len(t, got.History, 2)
	assert.Equal(t, "cameras down", got.History[0].Text)
	assert.True(t, want.LastActivityAt.Equal(got.LastActivityAt))
	assert.True(t, got.Active)
}

func TestDBStore_PutUpserts(t *testing.T) {
	s, cat, gdb := newTestDBStore(t)
	ctx := context.Background()
	st := sampleState(cat)
	require.NoError(t, s.Put(ctx, st))

	st.Step = 5
	st.Completed = append(st.Completed, 4)
	st.Menu = nil
	require.NoError(t, s.Put(ctx, st))

	var count int64
	gdb.Model(&models.ConversationState{}).Count(&count)
	assert.Equal(t, int64(1), count)

	got, _, err := s.Get(ctx, guard)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Step)
	assert.Equal(t, []int{1, 2, 3, 4}, got.Completed)
	assert.Empty(t, got.Menu)
}

func TestDBStore_DeleteAndMissing(t *testing.T) {
	s, cat, _ := newTestDBStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, sampleState(cat)))
	require.NoError(t, s.Delete(ctx, guard))

	_, ok, err := s.Get(ctx, guard)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Delete(ctx, guard), "deleting a missing key is not an error")
}

func TestDBStore_DropsUnknownProcedure(t *testing.T) {
	s, _, gdb := newTestDBStore(t)
	ctx := context.Background()
	require.NoError(t, gdb.Create(&models.ConversationState{
		Phone: guard, StateID: "x", ProcedureID: "retired-procedure", Step: 1,
	}).Error)

	_, ok, err := s.Get(ctx, guard)
	require.NoError(t, err)
	assert.False(t, ok)

	var count int64
	gdb.Model(&models.ConversationState{}).Count(&count)
	assert.Zero(t, count)
}

func TestDBStore_List(t *testing.T) {
	s, cat, _ := newTestDBStore(t)
	ctx := context.Background()
	for _, phone := range []string{"+3", "+1", "+2"} {
		st := sampleState(cat)
		st.Phone = phone
		st.ID = "id" + phone
		require.NoError(t, s.Put(ctx, st))
	}
	states, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Equal(t, "+1", states[0].Phone)
	assert.Equal(t, "+3", states[2].Phone)
}

func TestEngine_WithDBStore(t *testing.T) {
	h := newHarness(t)
	s, err := NewDBStore(openTestDB(t), h.cat)
	require.NoError(t, err)
	h.engine.store = s

	h.say(t, "fire panel")
	h.say(t, "done")

	st, ok, err := s.Get(context.Background(), guard)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, st.Step)
	assert.Equal(t, []int{1}, st.Completed)
}
