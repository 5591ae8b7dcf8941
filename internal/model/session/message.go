package session

import "time"

// Origin tells whether a message came from a human participant or a bot actor.
type Origin string

const (
	OriginHuman Origin = "human"
	OriginBot   Origin = "bot"
)

// Modality is the channel a message was delivered on.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// Message is one turn in a session transcript.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	ActorID   string    `json:"actorId,omitempty"`
	Content   string    `json:"content"`
	Origin    Origin    `json:"origin"`
	Modality  Modality  `json:"modality"`
	Timestamp time.Time `json:"timestamp"`
}

// IsBot reports whether the message was produced by a bot actor.
func (m Message) IsBot() bool {
	return m.Origin == OriginBot
}

// BotMessage is the payload handed to the transport when an actor speaks.
type BotMessage struct {
	SessionID string    `json:"sessionId"`
	ActorID   string    `json:"actorId"`
	ActorName string    `json:"actorName"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsBot     bool      `json:"isBot"`
}

// Emitter delivers bot messages to everyone connected to a session.
// Implementations must not block: it is called while the session is locked.
type Emitter interface {
	Broadcast(sessionID string, msg BotMessage)
}
