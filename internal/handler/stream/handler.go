package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/panelroom/backend/internal/handler/room"
	"github.com/zhouzirui/panelroom/backend/pkg/utils"
)

// Handler serves a room feed as Server-Sent Events for clients that cannot hold a websocket.
type Handler struct {
	bots      room.BotService
	hub       *room.Hub
	heartbeat time.Duration
	log       *zap.Logger
}

// New creates a new stream handler
func New(bots room.BotService, hub *room.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bots:      bots,
		hub:       hub,
		heartbeat: 15 * time.Second,
		log:       logger.Named("sse"),
	}
}

// RegisterRoutes 注册SSE路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rooms/{sessionID}/stream", h.handleStream)
}

// StreamStatus is sent once when the stream opens and on every heartbeat.
type StreamStatus struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Time      string `json:"time"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if _, err := h.bots.EnsureSession(r.Context(), sessionID, h.hub); err != nil {
		room.RespondEnsureError(w, err)
		return
	}

	sub := h.hub.Subscribe(sessionID)
	defer h.hub.Unsubscribe(sub)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	h.log.Info("opening room stream", zap.String("session_id", sessionID))

	if err := utils.SendSSEEvent(w, flusher, "status", StreamStatus{
		SessionID: sessionID,
		Message:   "stream established",
		Time:      time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("closing room stream", zap.String("session_id", sessionID))
			return
		case frame, ok := <-sub.C():
			if !ok {
				return
			}
			if err := utils.SendSSERaw(w, flusher, "room", frame); err != nil {
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", StreamStatus{
				SessionID: sessionID,
				Message:   "awaiting room activity",
				Time:      t.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}
