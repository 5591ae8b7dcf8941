package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	"github.com/zhouzirui/panelroom/backend/internal/store"
	"github.com/zhouzirui/panelroom/backend/pkg/utils"
)

// Store is the persistence the session handler needs.
type Store interface {
	CreateSession(ctx context.Context, in store.NewSession) (store.SessionRecord, error)
	GetSession(ctx context.Context, id string) (store.SessionRecord, error)
}

// Handler 会话服务的HTTP处理器
type Handler struct {
	store Store
}

// New 创建会话处理器
func New(s Store) *Handler {
	return &Handler{store: s}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
}

type createSessionRequest struct {
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Topic           string       `json:"topic"`
	Type            session.Type `json:"type"`
	ScheduledTime   *time.Time   `json:"scheduledTime"`
	Duration        int          `json:"duration"`
	MaxParticipants int          `json:"maxParticipants"`
	AIParticipants  *int         `json:"aiParticipants"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload createSessionRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, msg := payload.validate()
	if msg != "" {
		utils.RespondError(w, http.StatusBadRequest, msg)
		return
	}

	rec, err := h.store.CreateSession(r.Context(), in)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, rec)
}

func (p createSessionRequest) validate() (store.NewSession, string) {
	in := store.NewSession{
		Title:           strings.TrimSpace(p.Title),
		Description:     strings.TrimSpace(p.Description),
		Topic:           strings.TrimSpace(p.Topic),
		Type:            p.Type,
		DurationMinutes: p.Duration,
		MaxParticipants: p.MaxParticipants,
		AIParticipants:  2,
	}
	if in.Topic == "" {
		return in, "topic is required"
	}
	if in.Title == "" {
		in.Title = in.Topic
	}
	if !in.Type.Valid() {
		return in, "type must be interview or group-discussion"
	}
	if in.DurationMinutes <= 0 {
		in.DurationMinutes = 60
	}
	if in.MaxParticipants <= 0 {
		in.MaxParticipants = 6
	}
	if p.AIParticipants != nil {
		in.AIParticipants = *p.AIParticipants
	}
	if in.AIParticipants < 0 || in.AIParticipants > in.MaxParticipants {
		return in, "aiParticipants must be between 0 and maxParticipants"
	}
	in.ScheduledTime = time.Now()
	if p.ScheduledTime != nil {
		in.ScheduledTime = *p.ScheduledTime
	}
	return in, ""
}

// handleGetSession 查询会话
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, rec)
}
