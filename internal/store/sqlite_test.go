package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "panelroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	when := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)

	rec, err := s.CreateSession(ctx, NewSession{
		Title:           "Mock GD",
		Topic:           "AI ethics",
		Type:            session.TypeGroupDiscussion,
		ScheduledTime:   when,
		DurationMinutes: 45,
		MaxParticipants: 6,
		AIParticipants:  3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	got, err := s.GetSession(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "AI ethics", got.Topic)
	assert.Equal(t, session.TypeGroupDiscussion, got.Type)
	assert.True(t, when.Equal(got.ScheduledTime))
	assert.Equal(t, "scheduled", got.Status)
	require.Len(t, got.Participants, 3)
	assert.Equal(t, "AI Participant 1", got.Participants[0].Name)
	assert.True(t, got.Participants[2].IsAI)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupAndPersistDisplayNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.CreateSession(ctx, NewSession{
		Title: "Interview", Topic: "leadership", Type: session.TypeInterview, AIParticipants: 2,
	})
	require.NoError(t, err)

	cfg, err := s.LookupSessionConfig(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Config{Topic: "leadership", Type: session.TypeInterview, ActorCount: 2}, cfg)

	err = s.PersistActorDisplayNames(ctx, rec.ID, []session.ActorName{
		{ActorID: "bot-x-0", Name: "Alex"},
		{ActorID: "bot-x-1", Name: "Riley"},
		{ActorID: "bot-x-2", Name: "Sam"},
	})
	require.NoError(t, err)

	got, err := s.GetSession(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "Alex", got.Participants[0].Name)
	assert.Equal(t, "bot-x-0", got.Participants[0].ActorID)
	assert.Equal(t, "Riley", got.Participants[1].Name)

	_, err = s.LookupSessionConfig(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.PersistActorDisplayNames(ctx, "missing", nil), ErrNotFound)
}
