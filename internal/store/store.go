package store

import (
	"errors"
	"time"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
)

// ErrNotFound is returned when a session record does not exist.
var ErrNotFound = errors.New("session record not found")

// SessionRecord is a scheduled session as stored on disk.
type SessionRecord struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Topic           string        `json:"topic"`
	Type            session.Type  `json:"type"`
	ScheduledTime   time.Time     `json:"scheduledTime"`
	DurationMinutes int           `json:"duration"`
	MaxParticipants int           `json:"maxParticipants"`
	AIParticipants  int           `json:"aiParticipants"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	Participants    []Participant `json:"participants"`
}

// Participant is one seat in a session. AI seats start with a placeholder name that is
// replaced by the persona name once bots are initialized.
type Participant struct {
	Position int    `json:"position"`
	Name     string `json:"userName"`
	IsAI     bool   `json:"isAI"`
	ActorID  string `json:"actorId,omitempty"`
}

// NewSession is the input for CreateSession.
type NewSession struct {
	Title           string
	Description     string
	Topic           string
	Type            session.Type
	ScheduledTime   time.Time
	DurationMinutes int
	MaxParticipants int
	AIParticipants  int
}
