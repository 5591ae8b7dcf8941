package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/panelroom/backend/internal/model/persona"
	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	"github.com/zhouzirui/panelroom/backend/internal/service/schedule"
)

// Registry owns every live session. The map lock is always taken before a state lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*State

	personas persona.Store
	timers   *schedule.Timers
	clock    schedule.Clock
	rng      schedule.Rand
	log      *zap.Logger
}

// NewRegistry wires a registry to its collaborators.
func NewRegistry(personas persona.Store, timers *schedule.Timers, clock schedule.Clock, rng schedule.Rand, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*State),
		personas: personas,
		timers:   timers,
		clock:    clock,
		rng:      rng,
		log:      logger.Named("registry"),
	}
}

// Initialize creates the session with actorCount distinct personas. Calling it again for an
// existing session returns the existing actors and created=false.
func (r *Registry) Initialize(id, topic string, sessionType session.Type, actorCount int) ([]session.Actor, bool, error) {
	if actorCount <= 0 {
		return nil, false, fmt.Errorf("initialize %s with %d actors: %w", id, actorCount, ErrInvalidActorCount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[id]; ok {
		return existing.Bots(), false, nil
	}

	catalog := r.personas.List()
	if len(catalog) == 0 {
		return nil, false, ErrEmptyCatalog
	}
	if actorCount > len(catalog) {
		r.log.Warn("actor count exceeds persona catalog, capping",
			zap.String("session_id", id),
			zap.Int("requested", actorCount),
			zap.Int("catalog", len(catalog)))
		actorCount = len(catalog)
	}

	order := r.rng.Perm(len(catalog))
	actors := make([]*Actor, 0, actorCount)
	for i := 0; i < actorCount; i++ {
		actors = append(actors, &Actor{
			ID:          fmt.Sprintf("bot-%s-%d", id, i),
			Persona:     catalog[order[i]],
			SessionID:   id,
			Topic:       topic,
			SessionType: sessionType,
		})
	}

	state := newState(id, topic, sessionType, actors, r.clock.Now())
	r.sessions[id] = state

	r.log.Info("session initialized",
		zap.String("session_id", id),
		zap.String("topic", topic),
		zap.String("type", string(sessionType)),
		zap.Int("actors", len(actors)))
	return state.Bots(), true, nil
}

// Get returns the live state for id.
func (r *Registry) Get(id string) (*State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

// End cancels every timer of the session and removes it. It reports whether the session existed.
func (r *Registry) End(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[id]
	if !ok {
		return false
	}

	cancelled := 0
	state.terminate(func() {
		cancelled = r.timers.CancelSession(id)
	})
	delete(r.sessions, id)

	r.log.Info("session ended", zap.String("session_id", id), zap.Int("timers_cancelled", cancelled))
	return true
}

// Bots lists the actors of a session, or nil when it does not exist.
func (r *Registry) Bots(id string) []session.Actor {
	state, err := r.Get(id)
	if err != nil {
		return nil
	}
	return state.Bots()
}

// Stats aggregates the transcript of a session.
func (r *Registry) Stats(id string) (session.Stats, error) {
	state, err := r.Get(id)
	if err != nil {
		return session.Stats{}, err
	}
	return state.Stats(r.clock.Now()), nil
}

// IDs returns the live session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Expired returns the sessions started more than maxAge ago.
func (r *Registry) Expired(maxAge time.Duration) []string {
	now := r.clock.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, state := range r.sessions {
		if now.Sub(state.StartedAt()) > maxAge {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Timers exposes the timer manager so the orchestrator schedules against the same handles.
func (r *Registry) Timers() *schedule.Timers { return r.timers }

// Clock returns the registry clock.
func (r *Registry) Clock() schedule.Clock { return r.clock }

// Rand returns the registry random source.
func (r *Registry) Rand() schedule.Rand { return r.rng }
