package session

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/panelroom/backend/internal/model/persona"
	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	"github.com/zhouzirui/panelroom/backend/internal/service/schedule"
)

// Lifecycle is the position of a session in Created → Active → Ending → Ended.
type Lifecycle int

const (
	Created Lifecycle = iota
	Active
	Ending
	Ended
)

func (l Lifecycle) String() string {
	switch l {
	case Created:
		return "created"
	case Active:
		return "active"
	case Ending:
		return "ending"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Actor is a persona instantiated inside one session.
type Actor struct {
	ID           string
	Persona      persona.Persona
	SessionID    string
	Topic        string
	SessionType  session.Type
	History      []session.Message
	LastActivity time.Time
}

// View returns the public representation of the actor.
func (a *Actor) View() session.Actor {
	return session.Actor{
		ID:          a.ID,
		Name:        a.Persona.Name,
		Personality: a.Persona.Personality,
		Traits:      append([]string(nil), a.Persona.Traits...),
	}
}

func (a *Actor) snapshot() Actor {
	cp := *a
	cp.History = append([]session.Message(nil), a.History...)
	return cp
}

// Turn is everything needed to build a prompt for one actor, copied out of the session.
type Turn struct {
	Actor       Actor
	Topic       string
	SessionType session.Type
	Recent      []session.Message
}

// State is the in-memory state of one session. Every field behind mu is only
// touched with mu held; the registry never holds mu while waiting on another session.
type State struct {
	id          string
	topic       string
	sessionType session.Type
	startedAt   time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	actors    []*Actor
	history   []session.Message
	lifecycle Lifecycle
	emitter   session.Emitter
}

func newState(id, topic string, sessionType session.Type, actors []*Actor, startedAt time.Time) *State {
	ctx, cancel := context.WithCancel(context.Background())
	return &State{
		id:          id,
		topic:       topic,
		sessionType: sessionType,
		startedAt:   startedAt,
		ctx:         ctx,
		cancel:      cancel,
		actors:      actors,
		history:     make([]session.Message, 0, 32),
		lifecycle:   Created,
	}
}

func (s *State) ID() string { return s.id }
func (s *State) Topic() string { return s.topic }
func (s *State) Type() session.Type { return s.sessionType }
func (s *State) StartedAt() time.Time { return s.startedAt }
func (s *State) Context() context.Context { return s.ctx }

// Lifecycle returns the current lifecycle position.
func (s *State) Lifecycle() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle
}

// IsActive reports whether timers are running and responses may be emitted.
func (s *State) IsActive() bool {
	return s.Lifecycle() == Active
}

func (s *State) endedLocked() bool {
	return s.lifecycle == Ending || s.lifecycle == Ended
}

// Ingest appends msg to the history. When the session is active, onActive runs
// under the session lock so that anything it schedules is covered by End.
func (s *State) Ingest(msg session.Message, onActive func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endedLocked() {
		return ErrSessionNotFound
	}
	s.history = append(s.history, msg)
	if s.lifecycle == Active && onActive != nil {
		onActive()
	}
	return nil
}

// Activate moves a created session to Active, running install under the lock to
// register the recurring timer. On an already active session only the emitter is replaced.
func (s *State) Activate(emitter session.Emitter, install func()) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endedLocked() {
		return false, ErrSessionNotFound
	}
	if emitter != nil {
		s.emitter = emitter
	}
	if s.lifecycle == Active {
		return false, nil
	}
	install()
	s.lifecycle = Active
	return true, nil
}

// SelectActor applies the cooldown selector to the session's actors.
func (s *State) SelectActor(cooldown time.Duration, now time.Time, rng schedule.Rand) (Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor := Select(s.actors, cooldown, now, rng)
	if actor == nil {
		return Actor{}, false
	}
	return actor.snapshot(), true
}

// IdleCandidates returns copies of the actors past the idle cooldown.
func (s *State) IdleCandidates(cooldown time.Duration, now time.Time) []Actor {
	s.mu.Lock()
	defer s.mu.Unlock()

	eligible := Eligible(s.actors, cooldown, now)
	out := make([]Actor, 0, len(eligible))
	for _, actor := range eligible {
		out = append(out, actor.snapshot())
	}
	return out
}

// Turn copies the prompt inputs for actorID, keeping the last window messages.
func (s *State) Turn(actorID string, window int) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor := s.findLocked(actorID)
	if actor == nil {
		return Turn{}, ErrActorNotFound
	}
	start := 0
	if window > 0 && len(s.history) > window {
		start = len(s.history) - window
	}
	return Turn{
		Actor:       actor.snapshot(),
		Topic:       s.topic,
		SessionType: s.sessionType,
		Recent:      append([]session.Message(nil), s.history[start:]...),
	}, nil
}

// Record stores a bot response in the session and actor histories and stamps the
// actor's activity time. Nothing is written once the session is ending.
func (s *State) Record(actorID string, msg session.Message, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endedLocked() {
		return ErrSessionNotFound
	}
	actor := s.findLocked(actorID)
	if actor == nil {
		return ErrActorNotFound
	}
	s.history = append(s.history, msg)
	actor.History = append(actor.History, msg)
	actor.LastActivity = now
	return nil
}

// Emit hands msg to the session emitter if the session is still active.
func (s *State) Emit(msg session.BotMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle != Active || s.emitter == nil {
		return false
	}
	s.emitter.Broadcast(s.id, msg)
	return true
}

// History returns a copy of the session transcript.
func (s *State) History() []session.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]session.Message(nil), s.history...)
}

// Actor returns a copy of one actor.
func (s *State) Actor(actorID string) (Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor := s.findLocked(actorID)
	if actor == nil {
		return Actor{}, ErrActorNotFound
	}
	return actor.snapshot(), nil
}

// Bots returns the public actor views in session order.
func (s *State) Bots() []session.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]session.Actor, 0, len(s.actors))
	for _, actor := range s.actors {
		out = append(out, actor.View())
	}
	return out
}

// Stats aggregates the transcript as of now.
func (s *State) Stats(now time.Time) session.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := now.Sub(s.startedAt)
	stats := session.Stats{
		SessionID:        s.id,
		Topic:            s.topic,
		SessionType:      s.sessionType,
		Duration:         elapsed,
		DurationMs:       elapsed.Milliseconds(),
		TotalMessages:    len(s.history),
		ParticipantStats: make(map[string]session.ParticipantStats),
		ActiveBots:       len(s.actors),
		IsActive:         s.lifecycle == Active,
	}
	for _, msg := range s.history {
		if msg.IsBot() {
			stats.BotMessages++
		}
		entry := stats.ParticipantStats[msg.Sender]
		entry.MessageCount++
		entry.IsBot = entry.IsBot || msg.IsBot()
		stats.ParticipantStats[msg.Sender] = entry
	}
	stats.UserMessages = stats.TotalMessages - stats.BotMessages
	return stats
}

// terminate flips the session to Ending, cancels its context and runs stop
// (which cancels timers) before marking it Ended. Callers delete it afterwards.
func (s *State) terminate(stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lifecycle = Ending
	s.cancel()
	stop()
	s.emitter = nil
	s.lifecycle = Ended
}

func (s *State) findLocked(actorID string) *Actor {
	for _, actor := range s.actors {
		if actor.ID == actorID {
			return actor
		}
	}
	return nil
}
