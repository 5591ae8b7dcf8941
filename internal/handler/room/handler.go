package room

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	sessionsvc "github.com/zhouzirui/panelroom/backend/internal/service/session"
	"github.com/zhouzirui/panelroom/backend/internal/store"
	"github.com/zhouzirui/panelroom/backend/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 64 << 10
)

// BotService is the part of the orchestrator a room connection drives.
type BotService interface {
	EnsureSession(ctx context.Context, id string, emitter session.Emitter) ([]session.Actor, error)
	IngestMessage(id string, msg session.Message) error
}

// Handler upgrades room connections to websockets.
type Handler struct {
	bots     BotService
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// New 创建房间处理器
func New(bots BotService, hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bots: bots,
		hub:  hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.Named("room"),
	}
}

// RegisterRoutes 注册房间路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rooms/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// AudioMessage carries the transcript of an audio contribution.
type AudioMessage struct {
	Sender     string `json:"sender"`
	Transcript string `json:"transcript"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionID is required")
		return
	}

	actors, err := h.bots.EnsureSession(r.Context(), sessionID, h.hub)
	if err != nil {
		RespondEnsureError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	sub := h.hub.Subscribe(sessionID)
	log := h.log.With(zap.String("session_id", sessionID))
	log.Info("room client connected", zap.String("remote", r.RemoteAddr))

	go h.writePump(conn, sub)
	h.readPump(conn, sessionID, len(actors) > 0, log)

	h.hub.Unsubscribe(sub)
	log.Info("room client disconnected")
}

// readPump relays human frames to the room. withBots is false for rooms that have no
// bot seats; their messages are only rebroadcast.
func (h *Handler) readPump(conn *websocket.Conn, sessionID string, withBots bool, log *zap.Logger) {
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("room read failed", zap.Error(err))
			}
			return
		}

		msg, ok := decodeInbound(raw, log)
		if !ok {
			continue
		}

		h.hub.Publish(sessionID, TypeHumanMessage, msg)
		if !withBots {
			continue
		}
		if err := h.bots.IngestMessage(sessionID, msg); err != nil {
			if errors.Is(err, sessionsvc.ErrSessionNotFound) {
				log.Info("session ended, closing room connection")
				return
			}
			log.Error("failed to ingest room message", zap.Error(err))
		}
	}
}

func decodeInbound(raw []byte, log *zap.Logger) (session.Message, bool) {
	var in inboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Debug("ignoring malformed room frame", zap.Error(err))
		return session.Message{}, false
	}

	switch in.Type {
	case "text":
		var text TextMessage
		if err := json.Unmarshal(in.Data, &text); err != nil || strings.TrimSpace(text.Text) == "" {
			return session.Message{}, false
		}
		return session.Message{
			Sender:    senderOrDefault(text.Sender),
			Content:   text.Text,
			Origin:    session.OriginHuman,
			Modality:  session.ModalityText,
			Timestamp: time.Now(),
		}, true
	case "audio":
		var audio AudioMessage
		if err := json.Unmarshal(in.Data, &audio); err != nil || strings.TrimSpace(audio.Transcript) == "" {
			return session.Message{}, false
		}
		return session.Message{
			Sender:    senderOrDefault(audio.Sender),
			Content:   audio.Transcript,
			Origin:    session.OriginHuman,
			Modality:  session.ModalityAudio,
			Timestamp: time.Now(),
		}, true
	default:
		log.Debug("ignoring unknown room frame", zap.String("type", in.Type))
		return session.Message{}, false
	}
}

func senderOrDefault(sender string) string {
	if sender = strings.TrimSpace(sender); sender != "" {
		return sender
	}
	return "participant"
}

func (h *Handler) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// RespondEnsureError maps a failed room join to an HTTP status.
func RespondEnsureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, sessionsvc.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, sessionsvc.ErrInvalidActorCount):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "failed to start session bots")
	}
}
