package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	"github.com/zhouzirui/panelroom/backend/internal/store"
)

type memStore struct {
	created []store.NewSession
	records map[string]store.SessionRecord
	failGet bool
}

func (m *memStore) CreateSession(_ context.Context, in store.NewSession) (store.SessionRecord, error) {
	m.created = append(m.created, in)
	rec := store.SessionRecord{
		ID:              "rec-1",
		Title:           in.Title,
		Topic:           in.Topic,
		Type:            in.Type,
		MaxParticipants: in.MaxParticipants,
		AIParticipants:  in.AIParticipants,
		Status:          "scheduled",
	}
	if m.records == nil {
		m.records = map[string]store.SessionRecord{}
	}
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memStore) GetSession(_ context.Context, id string) (store.SessionRecord, error) {
	if m.failGet {
		return store.SessionRecord{}, errors.New("disk on fire")
	}
	rec, ok := m.records[id]
	if !ok {
		return store.SessionRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func serve(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateSessionDefaults(t *testing.T) {
	st := &memStore{}
	h := New(st)

	rec := serve(h, http.MethodPost, "/sessions", `{"topic":"AI ethics","type":"group-discussion"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, st.created, 1)
	in := st.created[0]
	assert.Equal(t, "AI ethics", in.Title)
	assert.Equal(t, 60, in.DurationMinutes)
	assert.Equal(t, 6, in.MaxParticipants)
	assert.Equal(t, 2, in.AIParticipants)
	assert.False(t, in.ScheduledTime.IsZero())

	var got store.SessionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, session.TypeGroupDiscussion, got.Type)
}

func TestCreateSessionValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing topic", `{"type":"interview"}`},
		{"bad type", `{"topic":"x","type":"panel"}`},
		{"too many bots", `{"topic":"x","type":"interview","maxParticipants":3,"aiParticipants":4}`},
		{"negative bots", `{"topic":"x","type":"interview","aiParticipants":-1}`},
		{"malformed", `{"topic":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := &memStore{}
			rec := serve(New(st), http.MethodPost, "/sessions", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, st.created)
		})
	}
}

func TestGetSession(t *testing.T) {
	st := &memStore{records: map[string]store.SessionRecord{
		"abc": {ID: "abc", Topic: "negotiation", Type: session.TypeInterview},
	}}
	h := New(st)

	rec := serve(h, http.MethodGet, "/sessions/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"topic":"negotiation"`)

	rec = serve(h, http.MethodGet, "/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	st.failGet = true
	rec = serve(h, http.MethodGet, "/sessions/abc", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
