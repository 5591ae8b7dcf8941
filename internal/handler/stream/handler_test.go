package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/panelroom/backend/internal/handler/room"
	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	sessionsvc "github.com/zhouzirui/panelroom/backend/internal/service/session"
)

type stubBots struct{ known string }

func (s stubBots) EnsureSession(_ context.Context, id string, _ session.Emitter) ([]session.Actor, error) {
	if id != s.known {
		return nil, sessionsvc.ErrSessionNotFound
	}
	return nil, nil
}

func (stubBots) IngestMessage(string, session.Message) error { return nil }

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func newStreamServer(t *testing.T, heartbeat time.Duration) (*httptest.Server, *room.Hub) {
	t.Helper()
	hub := room.NewHub(4, zap.NewNop())
	h := New(stubBots{known: "s1"}, hub, zap.NewNop())
	h.heartbeat = heartbeat

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func TestStreamRelaysRoomFrames(t *testing.T) {
	srv, hub := newStreamServer(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/rooms/s1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	ev := readEvent(t, reader)
	assert.Equal(t, "status", ev.name)
	var status StreamStatus
	require.NoError(t, json.Unmarshal([]byte(ev.data), &status))
	assert.Equal(t, "s1", status.SessionID)

	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Broadcast("s1", session.BotMessage{SessionID: "s1", ActorName: "Sam", Content: "What if we flip it?", IsBot: true})

	ev = readEvent(t, reader)
	assert.Equal(t, "room", ev.name)
	var env room.Envelope
	require.NoError(t, json.Unmarshal([]byte(ev.data), &env))
	assert.Equal(t, room.TypeBotMessage, env.Type)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHeartbeat(t *testing.T) {
	srv, _ := newStreamServer(t, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/rooms/s1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "status", readEvent(t, reader).name)
	assert.Equal(t, "heartbeat", readEvent(t, reader).name)
}

func TestStreamUnknownSession(t *testing.T) {
	srv, _ := newStreamServer(t, time.Hour)

	resp, err := http.Get(srv.URL + "/rooms/ghost/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
