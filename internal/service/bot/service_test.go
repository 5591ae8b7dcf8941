package bot_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zhouzirui/panelroom/backend/internal/model/persona"
	"github.com/zhouzirui/panelroom/backend/internal/model/session"
	"github.com/zhouzirui/panelroom/backend/internal/service/bot"
	"github.com/zhouzirui/panelroom/backend/internal/service/schedule"
	sessionsvc "github.com/zhouzirui/panelroom/backend/internal/service/session"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	text    string
	err     error
	panic   bool

	// when release is set, Generate signals entered and waits for release
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if f.release != nil {
		close(f.entered)
		<-f.release
		f.mu.Lock()
		f.ctxErr = ctx.Err()
		f.mu.Unlock()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("backend exploded")
	}
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeEmitter struct {
	mu       sync.Mutex
	messages []session.BotMessage
}

func (e *fakeEmitter) Broadcast(_ string, msg session.BotMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
}

func (e *fakeEmitter) sent() []session.BotMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]session.BotMessage(nil), e.messages...)
}

type fixture struct {
	svc      *bot.Service
	registry *sessionsvc.Registry
	manual   *schedule.Manual
	gen      *fakeGenerator
	emitter  *fakeEmitter
}

// alwaysConfig makes every reactive trigger fire and keeps the idle loop out of the way.
func alwaysConfig() bot.Config {
	cfg := bot.DefaultConfig()
	cfg.Text.Probability = 1
	cfg.Audio.Probability = 1
	cfg.UserMessage.Probability = 1
	cfg.IdleProbability = 0
	return cfg
}

func newFixture(t *testing.T, cfg bot.Config, source bot.SessionConfigSource) *fixture {
	t.Helper()
	manual := schedule.NewManual(epoch)
	logger := zaptest.NewLogger(t)
	registry := sessionsvc.NewRegistry(
		persona.NewMemoryStore(persona.Seed()),
		schedule.NewTimers(manual),
		manual,
		schedule.NewRand(11),
		logger,
	)
	gen := &fakeGenerator{text: "Transparency has to come first."}
	return &fixture{
		svc:      bot.NewService(cfg, registry, gen, source, logger),
		registry: registry,
		manual:   manual,
		gen:      gen,
		emitter:  &fakeEmitter{},
	}
}

func (f *fixture) start(t *testing.T, id, topic string, sessionType session.Type, n int) []session.Actor {
	t.Helper()
	bots, err := f.svc.InitializeSession(id, topic, sessionType, n)
	require.NoError(t, err)
	require.NoError(t, f.svc.StartActivity(id, f.emitter))
	return bots
}

func TestReactiveResponseScenario(t *testing.T) {
	f := newFixture(t, alwaysConfig(), nil)
	bots := f.start(t, "s1", "AI ethics", session.TypeGroupDiscussion, 3)
	require.Len(t, bots, 3)
	assert.Equal(t, 1, f.svc.PendingTimers("s1"))

	require.NoError(t, f.svc.IngestMessage("s1", session.Message{Sender: "alice", Content: "Should AI explain itself?"}))
	assert.Equal(t, 2, f.svc.PendingTimers("s1"))

	f.manual.Advance(2 * time.Second)

	sent := f.emitter.sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "s1", msg.SessionID)
	assert.True(t, msg.IsBot)
	assert.Equal(t, "Transparency has to come first.", msg.Content)
	assert.Equal(t, 1, f.svc.PendingTimers("s1"))

	prompt := f.gen.lastPrompt()
	assert.Contains(t, prompt, `about "AI ethics"`)
	assert.Contains(t, prompt, "Topic category: technology")
	assert.Contains(t, prompt, "alice: Should AI explain itself?")

	state, err := f.registry.Get("s1")
	require.NoError(t, err)
	actor, err := state.Actor(msg.ActorID)
	require.NoError(t, err)
	assert.Equal(t, msg.Timestamp, actor.LastActivity)
	require.Len(t, actor.History, 1)

	stats, err := f.svc.GetSessionStats("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, 1, stats.BotMessages)
	assert.True(t, stats.IsActive)
}

func TestIngestBeforeStartOnlyAppends(t *testing.T) {
	f := newFixture(t, alwaysConfig(), nil)
	_, err := f.svc.InitializeSession("s1", "AI ethics", session.TypeGroupDiscussion, 3)
	require.NoError(t, err)

	require.NoError(t, f.svc.IngestMessage("s1", session.Message{Sender: "alice", Content: "hello"}))
	assert.Zero(t, f.svc.PendingTimers("s1"))

	stats, err := f.svc.GetSessionStats("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UserMessages)
	assert.False(t, stats.IsActive)

	assert.ErrorIs(t, f.svc.IngestMessage("missing", session.Message{Content: "x"}), sessionsvc.ErrSessionNotFound)
}

func TestAvailableActorPrefersLeastRecentlyActive(t *testing.T) {
	cfg := alwaysConfig()
	cfg.Text.Probability = 0
	f := newFixture(t, cfg, nil)
	bots, err := f.svc.InitializeSession("s1", "team leadership", session.TypeInterview, 2)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.GetAvailableActor("s1")
	assert.ErrorIs(t, err, sessionsvc.ErrActorNotFound, "no actor is offered before activity starts")
	require.NoError(t, f.svc.StartActivity("s1", f.emitter))

	_, err = f.svc.GenerateResponse(ctx, "s1", bots[0].ID, bot.ResponseContext{})
	require.NoError(t, err)
	f.manual.Advance(time.Second)
	_, err = f.svc.GenerateResponse(ctx, "s1", bots[1].ID, bot.ResponseContext{})
	require.NoError(t, err)
	f.manual.Advance(500 * time.Millisecond)

	require.NoError(t, f.svc.IngestMessage("s1", session.Message{Sender: "alice", Content: "next question"}))
	got, err := f.svc.GetAvailableActor("s1")
	require.NoError(t, err)
	assert.Equal(t, bots[0].ID, got.ID)

	f.manual.Advance(time.Second)
	got, err = f.svc.GetAvailableActor("s1")
	require.NoError(t, err)
	assert.Equal(t, bots[0].ID, got.ID, "only the first actor is past the cooldown")
}

func TestGenerationFailureUsesFallback(t *testing.T) {
	f := newFixture(t, alwaysConfig(), nil)
	bots := f.start(t, "s1", "remote work", session.TypeGroupDiscussion, 1)
	f.gen.err = errors.New("generation unavailable")

	msg, err := f.svc.GenerateResponse(context.Background(), "s1", bots[0].ID, bot.ResponseContext{})
	require.NoError(t, err)

	p, ok := findPersona(bots[0].Name)
	require.True(t, ok)
	assert.Equal(t, bot.Fallback(p.Personality, session.TypeGroupDiscussion, "remote work"), msg.Content)
	assert.NotEmpty(t, msg.Content)

	state, err := f.registry.Get("s1")
	require.NoError(t, err)
	actor, err := state.Actor(bots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, f.manual.Now(), actor.LastActivity)
	assert.Len(t, actor.History, 1)
	assert.Len(t, state.History(), 1)

	_, err = f.svc.GenerateResponse(context.Background(), "s1", "bot-s1-7", bot.ResponseContext{})
	assert.ErrorIs(t, err, sessionsvc.ErrActorNotFound)
	_, err = f.svc.GenerateResponse(context.Background(), "nope", bots[0].ID, bot.ResponseContext{})
	assert.ErrorIs(t, err, sessionsvc.ErrSessionNotFound)
}

func TestFallbackGenericLine(t *testing.T) {
	assert.Equal(t,
		"That's an interesting perspective on chess. Can you elaborate further?",
		bot.Fallback("mysterious", session.TypeInterview, "chess"))
}

func TestEndSessionCancelsEverything(t *testing.T) {
	f := newFixture(t, alwaysConfig(), nil)
	f.start(t, "s1", "AI ethics", session.TypeGroupDiscussion, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.IngestMessage("s1", session.Message{Sender: "alice", Content: "point"}))
	}
	require.Equal(t, 4, f.svc.PendingTimers("s1"))

	assert.True(t, f.svc.EndSession("s1"))
	assert.Zero(t, f.svc.PendingTimers("s1"))
	assert.Zero(t, f.manual.Pending())
	assert.Empty(t, f.svc.ActiveSessions())

	f.manual.Advance(5 * time.Minute)
	assert.Empty(t, f.emitter.sent())
	assert.Empty(t, f.gen.prompts)

	assert.ErrorIs(t, f.svc.IngestMessage("s1", session.Message{Content: "late"}), sessionsvc.ErrSessionNotFound)
	assert.False(t, f.svc.EndSession("s1"))
}

func TestEndSessionDuringGenerationDropsReply(t *testing.T) {
	f := newFixture(t, alwaysConfig(), nil)
	f.gen.entered = make(chan struct{})
	f.gen.release = make(chan struct{})
	f.start(t, "s1", "AI ethics", session.TypeGroupDiscussion, 2)

	require.NoError(t, f.svc.IngestMessage("s1", session.Message{Sender: "alice", Content: "what about bias?"}))
	state, err := f.registry.Get("s1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.manual.Advance(2 * time.Second)
	}()

	select {
	case <-f.gen.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reactive response never started generating")
	}

	require.True(t, f.svc.EndSession("s1"))
	close(f.gen.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reactive tick did not finish")
	}

	assert.Empty(t, f.emitter.sent())
	assert.Len(t, state.History(), 1, "only the human message")
	for _, actor := range state.Bots() {
		a, err := state.Actor(actor.ID)
		require.NoError(t, err)
		assert.Empty(t, a.History)
		assert.True(t, a.LastActivity.IsZero())
	}
	f.gen.mu.Lock()
	defer f.gen.mu.Unlock()
	assert.ErrorIs(t, f.gen.ctxErr, context.Canceled, "generation context is cancelled on end")
}

func TestStoredSessionWithoutBotSeats(t *testing.T) {
	source := &fakeSource{cfg: session.Config{Topic: "solo practice", Type: session.TypeInterview, ActorCount: 0}}
	f := newFixture(t, alwaysConfig(), source)

	bots, err := f.svc.EnsureSession(context.Background(), "stored", f.emitter)
	require.NoError(t, err)
	assert.Empty(t, bots)
	assert.Empty(t, source.persisted)
	assert.Empty(t, f.svc.ActiveSessions())
	assert.Zero(t, f.svc.PendingTimers("stored"))
}

func TestProbabilityGateSkipsResponse(t *testing.T) {
	cfg := alwaysConfig()
	cfg.Text.Probability = 0
	f := newFixture(t, cfg, nil)
	f.start(t, "s1", "AI ethics", session.TypeGroupDiscussion, 2)

	require.NoError(t, f.svc.IngestMessage("s1", session.Message{Sender: "alice", Content: "anyone?"}))
	f.manual.Advance(3 * time.Second)

	assert.Empty(t, f.emitter.sent())
	assert.Equal(t, 1, f.svc.PendingTimers("s1"))
}

func TestAudioMessageUsesTranscript(t *testing.T) {
	f := newFixture(t, alwaysConfig(), nil)
	f.start(t, "s1", "product strategy", session.TypeInterview, 2)

	require.NoError(t, f.svc.IngestMessage("s1", session.Message{
		Sender:   "alice",
		Content:  "we should grow revenue",
		Modality: session.ModalityAudio,
	}))
	f.manual.Advance(3 * time.Second)

	require.Len(t, f.emitter.sent(), 1)
	prompt := f.gen.lastPrompt()
	assert.Contains(t, prompt, `Latest audio message: "we should grow revenue"`)
	assert.Contains(t, prompt, "Someone just shared an audio message with the transcript provided.")
	assert.Contains(t, prompt, "Topic category: business")
}

func TestUserMessagePathUsesOwnPolicy(t *testing.T) {
	cfg := alwaysConfig()
	cfg.Text.Probability = 0
	f := newFixture(t, cfg, nil)
	f.start(t, "s1", "AI ethics", session.TypeInterview, 2)

	require.NoError(t, f.svc.HandleUserMessage("s1", "alice", "what do you think?"))
	f.manual.Advance(3 * time.Second)

	require.Len(t, f.emitter.sent(), 1)
	assert.Contains(t, f.gen.lastPrompt(), "You are in an interview setting.")
}

func TestIdleLoopSpeaksDuringLull(t *testing.T) {
	cfg := alwaysConfig()
	cfg.IdleProbability = 1
	cfg.IdleMinInterval = 30 * time.Second
	cfg.IdleMaxInterval = 30 * time.Second
	f := newFixture(t, cfg, nil)
	f.start(t, "s1", "AI ethics", session.TypeGroupDiscussion, 3)

	f.manual.Advance(30 * time.Second)
	require.Len(t, f.emitter.sent(), 1)
	assert.Contains(t, f.gen.lastPrompt(), "The conversation needs a boost.")

	f.manual.Advance(30 * time.Second)
	assert.Len(t, f.emitter.sent(), 2)
	assert.Equal(t, 1, f.svc.PendingTimers("s1"))
}

func TestIdleTickRecoversFromPanic(t *testing.T) {
	cfg := alwaysConfig()
	cfg.IdleProbability = 1
	cfg.IdleMinInterval = 30 * time.Second
	cfg.IdleMaxInterval = 30 * time.Second
	f := newFixture(t, cfg, nil)
	f.start(t, "s1", "AI ethics", session.TypeGroupDiscussion, 2)
	f.gen.panic = true

	assert.NotPanics(t, func() { f.manual.Advance(time.Minute) })
	assert.Empty(t, f.emitter.sent())
	assert.Equal(t, 1, f.svc.PendingTimers("s1"))

	f.gen.mu.Lock()
	f.gen.panic = false
	f.gen.mu.Unlock()
	f.manual.Advance(30 * time.Second)
	assert.Len(t, f.emitter.sent(), 1)
}

func TestSweepEndsOnlyExpiredSessions(t *testing.T) {
	f := newFixture(t, alwaysConfig(), nil)
	f.start(t, "old", "AI ethics", session.TypeGroupDiscussion, 2)
	f.manual.Advance(3 * time.Hour)
	f.start(t, "fresh", "AI ethics", session.TypeGroupDiscussion, 2)
	f.manual.Advance(61 * time.Minute)

	assert.Equal(t, 1, f.svc.Sweep())
	assert.Equal(t, []string{"fresh"}, f.svc.ActiveSessions())
	assert.Zero(t, f.svc.PendingTimers("old"))
	assert.Equal(t, 1, f.svc.PendingTimers("fresh"))
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	cfg := alwaysConfig()
	cfg.SweepInterval = time.Millisecond
	f := newFixture(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.RunSweeper(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type fakeSource struct {
	cfg       session.Config
	persisted [][]session.ActorName
}

func (s *fakeSource) LookupSessionConfig(_ context.Context, id string) (session.Config, error) {
	if id != "stored" {
		return session.Config{}, errors.New("not found")
	}
	return s.cfg, nil
}

func (s *fakeSource) PersistActorDisplayNames(_ context.Context, _ string, names []session.ActorName) error {
	s.persisted = append(s.persisted, names)
	return nil
}

func TestEnsureSessionLoadsPersistedConfig(t *testing.T) {
	source := &fakeSource{cfg: session.Config{Topic: "startup growth", Type: session.TypeInterview, ActorCount: 3}}
	f := newFixture(t, alwaysConfig(), source)

	bots, err := f.svc.EnsureSession(context.Background(), "stored", f.emitter)
	require.NoError(t, err)
	assert.Len(t, bots, 3)
	require.Len(t, source.persisted, 1)
	assert.Equal(t, bots[0].ID, source.persisted[0][0].ActorID)
	assert.Equal(t, bots[0].Name, source.persisted[0][0].Name)
	assert.Equal(t, 1, f.svc.PendingTimers("stored"))

	again, err := f.svc.EnsureSession(context.Background(), "stored", f.emitter)
	require.NoError(t, err)
	assert.Equal(t, bots, again)
	assert.Len(t, source.persisted, 1)
	assert.Equal(t, 1, f.svc.PendingTimers("stored"))

	_, err = f.svc.EnsureSession(context.Background(), "unknown", f.emitter)
	assert.Error(t, err)
}

func findPersona(name string) (persona.Persona, bool) {
	for _, p := range persona.Seed() {
		if p.Name == name {
			return p, true
		}
	}
	return persona.Persona{}, false
}
