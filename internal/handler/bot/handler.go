package bot

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	"github.com/zhouzirui/panelroom/backend/internal/service/ai"
	botservice "github.com/zhouzirui/panelroom/backend/internal/service/bot"
	sessionsvc "github.com/zhouzirui/panelroom/backend/internal/service/session"
	"github.com/zhouzirui/panelroom/backend/pkg/utils"
)

// Handler exposes the bot orchestrator over REST.
type Handler struct {
	bots    *botservice.Service
	emitter session.Emitter
}

// New 创建机器人处理器。emitter 为初始化后推送机器人消息的目标。
func New(bots *botservice.Service, emitter session.Emitter) *Handler {
	return &Handler{bots: bots, emitter: emitter}
}

// RegisterRoutes 注册机器人相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/ai-bots", func(r chi.Router) {
		r.Post("/initialize/{sessionID}", h.handleInitialize)
		r.Post("/message/{sessionID}", h.handleMessage)
		r.Post("/response/{sessionID}/{botID}", h.handleResponse)
		r.Get("/available/{sessionID}", h.handleAvailable)
		r.Get("/bots/{sessionID}", h.handleBots)
		r.Get("/stats/{sessionID}", h.handleStats)
		r.Get("/sessions", h.handleActiveSessions)
		r.Delete("/session/{sessionID}", h.handleEnd)
	})
}

type initializeRequest struct {
	Topic       string       `json:"topic"`
	SessionType session.Type `json:"sessionType"`
	NumBots     *int         `json:"numBots"`
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload initializeRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.Topic = strings.TrimSpace(payload.Topic)
	if payload.Topic == "" {
		utils.RespondError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if payload.SessionType == "" {
		payload.SessionType = session.TypeGroupDiscussion
	}
	if !payload.SessionType.Valid() {
		utils.RespondError(w, http.StatusBadRequest, "sessionType must be interview or group-discussion")
		return
	}
	count := h.bots.DefaultActorCount()
	if payload.NumBots != nil {
		count = *payload.NumBots
	}

	bots, err := h.bots.InitializeSession(sessionID, payload.Topic, payload.SessionType, count)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if err := h.bots.StartActivity(sessionID, h.emitter); err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"bots":    bots,
	})
}

type messageRequest struct {
	Sender     string `json:"sender"`
	Content    string `json:"content"`
	IsAudio    bool   `json:"isAudio"`
	Transcript string `json:"transcript"`
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload messageRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Sender == "" {
		payload.Sender = "participant"
	}

	var err error
	if payload.IsAudio {
		transcript := strings.TrimSpace(payload.Transcript)
		if transcript == "" {
			transcript = strings.TrimSpace(payload.Content)
		}
		if transcript == "" {
			utils.RespondError(w, http.StatusBadRequest, "transcript is required for audio messages")
			return
		}
		err = h.bots.IngestMessage(sessionID, session.Message{
			Sender:   payload.Sender,
			Content:  transcript,
			Origin:   session.OriginHuman,
			Modality: session.ModalityAudio,
		})
	} else {
		if strings.TrimSpace(payload.Content) == "" {
			utils.RespondError(w, http.StatusBadRequest, "content is required")
			return
		}
		err = h.bots.HandleUserMessage(sessionID, payload.Sender, payload.Content)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type responseRequest struct {
	Trigger    ai.Trigger `json:"trigger"`
	Transcript string     `json:"transcript"`
}

func (h *Handler) handleResponse(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	botID := chi.URLParam(r, "botID")

	var payload responseRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.bots.GenerateResponse(r.Context(), sessionID, botID, botservice.ResponseContext{
		Trigger:    payload.Trigger,
		Transcript: payload.Transcript,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": msg.Content,
		"message":  msg,
	})
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	actor, err := h.bots.GetAvailableActor(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"bot": actor})
}

func (h *Handler) handleBots(w http.ResponseWriter, r *http.Request) {
	bots, err := h.bots.GetSessionBots(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"bots": bots})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bots.GetSessionStats(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

type sessionSummary struct {
	SessionID     string `json:"sessionId"`
	PendingTimers int    `json:"pendingTimers"`
}

func (h *Handler) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	ids := h.bots.ActiveSessions()
	out := make([]sessionSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, sessionSummary{SessionID: id, PendingTimers: h.bots.PendingTimers(id)})
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if !h.bots.EndSession(chi.URLParam(r, "sessionID")) {
		utils.RespondError(w, http.StatusNotFound, sessionsvc.ErrSessionNotFound.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionsvc.ErrSessionNotFound), errors.Is(err, sessionsvc.ErrActorNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sessionsvc.ErrInvalidActorCount):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
