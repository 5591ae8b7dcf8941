package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/panelroom/backend/internal/analysis/topic"
	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	"github.com/zhouzirui/panelroom/backend/internal/service/ai"
	"github.com/zhouzirui/panelroom/backend/internal/service/schedule"
	sessionsvc "github.com/zhouzirui/panelroom/backend/internal/service/session"
)

// SessionConfigSource is the persistence collaborator used to lazily start bots for a
// session that was created elsewhere.
type SessionConfigSource interface {
	LookupSessionConfig(ctx context.Context, sessionID string) (session.Config, error)
	PersistActorDisplayNames(ctx context.Context, sessionID string, names []session.ActorName) error
}

// ResponseContext describes why an actor is being asked to speak.
type ResponseContext struct {
	Trigger    ai.Trigger
	Transcript string
}

// Service decides when bots speak, which bot speaks and what it says.
type Service struct {
	cfg       Config
	registry  *sessionsvc.Registry
	timers    *schedule.Timers
	clock     schedule.Clock
	rng       schedule.Rand
	generator ai.TextGenerator
	source    SessionConfigSource
	log       *zap.Logger
}

// NewService wires the orchestrator. source may be nil when sessions are only created through InitializeSession.
func NewService(cfg Config, registry *sessionsvc.Registry, generator ai.TextGenerator, source SessionConfigSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		registry:  registry,
		timers:    registry.Timers(),
		clock:     registry.Clock(),
		rng:       registry.Rand(),
		generator: generator,
		source:    source,
		log:       logger.Named("bot"),
	}
}

// InitializeSession creates the session's actors. A second call returns the existing actors.
func (s *Service) InitializeSession(id, topicText string, sessionType session.Type, actorCount int) ([]session.Actor, error) {
	bots, _, err := s.registry.Initialize(id, topicText, sessionType, actorCount)
	return bots, err
}

// IngestMessage appends a human message and, when the session is active, schedules a
// reactive response using the policy for the message modality.
func (s *Service) IngestMessage(id string, msg session.Message) error {
	state, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	msg = s.normalize(id, msg)
	policy, trigger, transcript := s.cfg.Text, ai.TriggerText, ""
	if msg.Modality == session.ModalityAudio {
		policy, trigger, transcript = s.cfg.Audio, ai.TriggerAudio, msg.Content
	}

	return state.Ingest(msg, func() {
		s.scheduleReactive(state, policy, ResponseContext{Trigger: trigger, Transcript: transcript})
	})
}

// HandleUserMessage records a text message posted through the REST surface and may
// schedule a reply with the user-message policy.
func (s *Service) HandleUserMessage(id, sender, content string) error {
	state, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	msg := s.normalize(id, session.Message{Sender: sender, Content: content, Modality: session.ModalityText})
	return state.Ingest(msg, func() {
		s.scheduleReactive(state, s.cfg.UserMessage, ResponseContext{Trigger: ai.TriggerUserMessage})
	})
}

// GetAvailableActor returns the actor the selector would pick right now. Sessions whose
// activity has not started offer no actor.
func (s *Service) GetAvailableActor(id string) (session.Actor, error) {
	state, err := s.registry.Get(id)
	if err != nil {
		return session.Actor{}, err
	}
	if !state.IsActive() {
		return session.Actor{}, sessionsvc.ErrActorNotFound
	}
	actor, ok := state.SelectActor(s.cfg.ReactiveCooldown, s.clock.Now(), s.rng)
	if !ok {
		return session.Actor{}, sessionsvc.ErrActorNotFound
	}
	return actor.View(), nil
}

// GenerateResponse produces and records one reply from actorID. Generation failures are
// replaced by the actor's canned fallback; only unknown session or actor is an error.
func (s *Service) GenerateResponse(ctx context.Context, id, actorID string, rc ResponseContext) (session.Message, error) {
	state, err := s.registry.Get(id)
	if err != nil {
		return session.Message{}, err
	}
	return s.respond(ctx, state, actorID, rc)
}

// StartActivity marks the session active, installs the idle loop and sets the emitter.
// Calling it again only swaps the emitter.
func (s *Service) StartActivity(id string, emitter session.Emitter) error {
	state, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	started, err := state.Activate(emitter, func() {
		interval := schedule.Jitter(s.rng, s.cfg.IdleMinInterval, s.cfg.IdleMaxInterval)
		s.timers.Every(id, interval, func() { s.idleTick(state) })
		s.log.Info("bot activity started", zap.String("session_id", id), zap.Duration("idle_interval", interval))
	})
	if err != nil {
		return err
	}
	if !started {
		s.log.Debug("bot activity already running", zap.String("session_id", id))
	}
	return nil
}

// EndSession cancels all scheduled work for the session and forgets it.
func (s *Service) EndSession(id string) bool {
	return s.registry.End(id)
}

// GetSessionStats aggregates the session transcript.
func (s *Service) GetSessionStats(id string) (session.Stats, error) {
	return s.registry.Stats(id)
}

// GetSessionBots lists the session's actors.
func (s *Service) GetSessionBots(id string) ([]session.Actor, error) {
	state, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return state.Bots(), nil
}

// EnsureSession makes sure bots exist and are active for a persisted session, creating
// them from the stored configuration on first use. A stored session without AI seats
// yields an empty actor list and no registry entry.
func (s *Service) EnsureSession(ctx context.Context, id string, emitter session.Emitter) ([]session.Actor, error) {
	if _, err := s.registry.Get(id); err == nil {
		if err := s.StartActivity(id, emitter); err != nil {
			return nil, err
		}
		return s.GetSessionBots(id)
	}

	if s.source == nil {
		return nil, sessionsvc.ErrSessionNotFound
	}

	cfg, err := s.source.LookupSessionConfig(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup session %s: %w", id, err)
	}
	if cfg.ActorCount <= 0 {
		// 没有 AI 席位的会话照常开房，只是不启动机器人
		s.log.Debug("stored session has no bot seats", zap.String("session_id", id))
		return []session.Actor{}, nil
	}

	bots, created, err := s.registry.Initialize(id, cfg.Topic, cfg.Type, cfg.ActorCount)
	if err != nil {
		return nil, err
	}
	if err := s.StartActivity(id, emitter); err != nil {
		return nil, err
	}

	if created {
		names := make([]session.ActorName, 0, len(bots))
		for _, bot := range bots {
			names = append(names, session.ActorName{ActorID: bot.ID, Name: bot.Name})
		}
		if err := s.source.PersistActorDisplayNames(ctx, id, names); err != nil {
			s.log.Warn("failed to persist bot display names", zap.String("session_id", id), zap.Error(err))
		}
	}
	return bots, nil
}

// Sweep ends every session older than MaxSessionAge and returns how many were ended.
func (s *Service) Sweep() int {
	ended := 0
	for _, id := range s.registry.Expired(s.cfg.MaxSessionAge) {
		if s.registry.End(id) {
			ended++
			s.log.Info("expired session swept", zap.String("session_id", id))
		}
	}
	return ended
}

// RunSweeper calls Sweep every SweepInterval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// DefaultActorCount is used when a caller does not ask for a specific number of bots.
func (s *Service) DefaultActorCount() int {
	return s.cfg.DefaultActorCount
}

// ActiveSessions lists the ids of sessions held in memory.
func (s *Service) ActiveSessions() []string {
	return s.registry.IDs()
}

// PendingTimers counts scheduled tasks for a session, the idle loop included.
func (s *Service) PendingTimers(id string) int {
	return s.timers.Pending(id)
}

// scheduleReactive runs with the session lock held.
func (s *Service) scheduleReactive(state *sessionsvc.State, policy ReactivePolicy, rc ResponseContext) {
	delay := schedule.Jitter(s.rng, policy.MinDelay, policy.MaxDelay)
	s.timers.After(state.ID(), delay, func() {
		s.reactiveTick(state, policy, rc)
	})
}

func (s *Service) reactiveTick(state *sessionsvc.State, policy ReactivePolicy, rc ResponseContext) {
	defer s.recoverTick(state.ID(), "reactive")

	if !state.IsActive() {
		return
	}
	if s.rng.Float64() >= policy.Probability {
		return
	}

	actor, ok := state.SelectActor(s.cfg.ReactiveCooldown, s.clock.Now(), s.rng)
	if !ok {
		return
	}
	s.speak(state, actor.ID, rc)
}

func (s *Service) idleTick(state *sessionsvc.State) {
	defer s.recoverTick(state.ID(), "idle")

	if !state.IsActive() {
		return
	}
	if len(state.IdleCandidates(s.cfg.IdleCooldown, s.clock.Now())) == 0 {
		return
	}
	if s.rng.Float64() >= s.cfg.IdleProbability {
		return
	}

	actor, ok := state.SelectActor(s.cfg.IdleCooldown, s.clock.Now(), s.rng)
	if !ok {
		return
	}
	s.speak(state, actor.ID, ResponseContext{Trigger: ai.TriggerPeriodic})
}

func (s *Service) speak(state *sessionsvc.State, actorID string, rc ResponseContext) {
	msg, err := s.respond(state.Context(), state, actorID, rc)
	if err != nil {
		if !errors.Is(err, sessionsvc.ErrSessionNotFound) {
			s.log.Error("scheduled response failed",
				zap.String("session_id", state.ID()),
				zap.String("actor_id", actorID),
				zap.Error(err))
		}
		return
	}

	state.Emit(session.BotMessage{
		SessionID: msg.SessionID,
		ActorID:   msg.ActorID,
		ActorName: msg.Sender,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		IsBot:     true,
	})
}

func (s *Service) respond(ctx context.Context, state *sessionsvc.State, actorID string, rc ResponseContext) (session.Message, error) {
	turn, err := state.Turn(actorID, s.cfg.HistoryWindow)
	if err != nil {
		return session.Message{}, err
	}

	prompt := ai.BuildBotPrompt(ai.PromptInput{
		Persona:     turn.Actor.Persona,
		Topic:       turn.Topic,
		SessionType: turn.SessionType,
		Category:    topic.Classify(turn.Topic, turn.Recent),
		Recent:      turn.Recent,
		Transcript:  rc.Transcript,
		Trigger:     rc.Trigger,
	})

	content, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.log.Warn("generation failed, using fallback",
			zap.String("session_id", state.ID()),
			zap.String("actor_id", actorID),
			zap.Error(err))
		content = Fallback(turn.Actor.Persona.Personality, turn.SessionType, turn.Topic)
	}

	now := s.clock.Now()
	msg := session.Message{
		ID:        uuid.NewString(),
		SessionID: state.ID(),
		Sender:    turn.Actor.Persona.Name,
		ActorID:   actorID,
		Content:   content,
		Origin:    session.OriginBot,
		Modality:  session.ModalityText,
		Timestamp: now,
	}
	if err := state.Record(actorID, msg, now); err != nil {
		return session.Message{}, err
	}
	return msg, nil
}

func (s *Service) normalize(id string, msg session.Message) session.Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.clock.Now()
	}
	if msg.Origin == "" {
		msg.Origin = session.OriginHuman
	}
	if msg.Modality == "" {
		msg.Modality = session.ModalityText
	}
	msg.SessionID = id
	msg.Content = strings.TrimSpace(msg.Content)
	return msg
}

func (s *Service) recoverTick(id, kind string) {
	if r := recover(); r != nil {
		s.log.Error("bot tick panicked",
			zap.String("session_id", id),
			zap.String("tick", kind),
			zap.Any("panic", r))
	}
}
