package session

import "time"

// Type selects the behavioural instructions bot actors follow.
type Type string

const (
	TypeInterview       Type = "interview"
	TypeGroupDiscussion Type = "group-discussion"
)

// Actor is the public view of a bot actor.
type Actor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Personality string   `json:"personality"`
	Traits      []string `json:"traits"`
}

// ParticipantStats counts messages for one sender.
type ParticipantStats struct {
	MessageCount int  `json:"messageCount"`
	IsBot        bool `json:"isBot"`
}

// Stats summarizes an in-memory session.
type Stats struct {
	SessionID        string                      `json:"sessionId"`
	Topic            string                      `json:"topic"`
	SessionType      Type                        `json:"sessionType"`
	Duration         time.Duration               `json:"-"`
	DurationMs       int64                       `json:"duration"` // 毫秒
	TotalMessages    int                         `json:"totalMessages"`
	BotMessages      int                         `json:"botMessages"`
	UserMessages     int                         `json:"userMessages"`
	ParticipantStats map[string]ParticipantStats `json:"participantStats"`
	ActiveBots       int                         `json:"activeBots"`
	IsActive         bool                        `json:"isActive"`
}

// Config is what the persistence layer knows about a scheduled session.
type Config struct {
	Topic      string
	Type       Type
	ActorCount int
}

// ActorName maps an actor to the persona name it plays.
type ActorName struct {
	ActorID string
	Name    string
}

// Valid reports whether t is a known session type.
func (t Type) Valid() bool {
	return t == TypeInterview || t == TypeGroupDiscussion
}
