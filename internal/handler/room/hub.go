package room

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
)

// Envelope is the frame exchanged with room clients.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	TypeBotMessage   = "bot-message"
	TypeHumanMessage = "message"
)

// Subscriber receives encoded envelopes for one room.
type Subscriber struct {
	sessionID string
	send      chan []byte
}

// C is closed when the subscriber is removed from the hub.
func (s *Subscriber) C() <-chan []byte { return s.send }

// Hub fans room traffic out to websocket and SSE subscribers. It is the bot emitter, so
// Broadcast never blocks: a subscriber whose buffer is full misses the frame.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscriber]struct{}
	buffer int
	log    *zap.Logger
}

// NewHub creates a hub with per-subscriber buffers of the given size.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[*Subscriber]struct{}),
		buffer: buffer,
		log:    logger.Named("room"),
	}
}

// Subscribe registers a new listener for sessionID.
func (h *Hub) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{sessionID: sessionID, send: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[sessionID]
	if !ok {
		members = make(map[*Subscriber]struct{})
		h.rooms[sessionID] = members
	}
	members[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[sub.sessionID]
	if !ok {
		return
	}
	if _, ok := members[sub]; !ok {
		return
	}
	delete(members, sub)
	close(sub.send)
	if len(members) == 0 {
		delete(h.rooms, sub.sessionID)
	}
}

// Subscribers counts the listeners of a room.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Broadcast implements session.Emitter.
func (h *Hub) Broadcast(sessionID string, msg session.BotMessage) {
	h.Publish(sessionID, TypeBotMessage, msg)
}

// Publish encodes payload once and offers it to every subscriber of the room.
func (h *Hub) Publish(sessionID, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to encode room payload", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	frame, err := json.Marshal(Envelope{Type: kind, Data: data})
	if err != nil {
		h.log.Error("failed to encode room frame", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.rooms[sessionID] {
		select {
		case sub.send <- frame:
		default:
			h.log.Warn("room subscriber is slow, dropping frame",
				zap.String("session_id", sessionID),
				zap.String("type", kind))
		}
	}
}
