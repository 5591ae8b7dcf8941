package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProbePrompt is sent to each candidate model while looking for one that works.
const ProbePrompt = `Say "Hello" in one word.`

// State is the model-selection state of a Generator.
type State int

const (
	NoWorkingModel State = iota
	Probing
	ModelCached
)

func (s State) String() string {
	switch s {
	case NoWorkingModel:
		return "no-working-model"
	case Probing:
		return "probing"
	case ModelCached:
		return "model-cached"
	default:
		return "unknown"
	}
}

// Options tunes model probing and retries.
type Options struct {
	Models       []string
	CallTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultOptions mirrors the production defaults: 25s per call, 3 attempts, 1s linear backoff.
func DefaultOptions(models []string) Options {
	return Options{
		Models:       models,
		CallTimeout:  25 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// Generator picks the first working model from a priority list, caches it, and retries
// failed generations with linear backoff. A failure of the cached model drops the cache
// so the next attempt probes again.
type Generator struct {
	backend Backend
	opts    Options
	log     *zap.Logger
	probes  singleflight.Group

	mu    sync.Mutex
	state State
	model string
}

// NewGenerator wraps backend.
func NewGenerator(backend Backend, opts Options, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 25 * time.Second
	}
	return &Generator{
		backend: backend,
		opts:    opts,
		log:     logger.Named("ai").With(zap.String("backend", backend.Name())),
		state:   NoWorkingModel,
	}
}

// State reports the current selection state.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// WorkingModel returns the cached model id, or "" when none is cached.
func (g *Generator) WorkingModel() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != ModelCached {
		return ""
	}
	return g.model
}

// Generate runs prompt with the configured retry budget.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateWithRetries(ctx, prompt, g.opts.MaxRetries)
}

// GenerateWithRetries runs prompt for at most maxRetries attempts.
func (g *Generator) GenerateWithRetries(ctx context.Context, prompt string, maxRetries int) (string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("generation aborted: %w", err)
		}
		model, err := g.ensureModel(ctx)
		if err != nil {
			return "", err
		}

		text, err := g.call(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		g.invalidate(model)

		g.log.Warn("generation attempt failed",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))

		if ctx.Err() != nil {
			return "", fmt.Errorf("generation aborted: %w", ctx.Err())
		}
		if attempt < maxRetries {
			if err := sleepCtx(ctx, g.opts.RetryBackoff*time.Duration(attempt)); err != nil {
				return "", fmt.Errorf("generation aborted: %w", err)
			}
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrGenerationUnavailable, maxRetries, lastErr)
}

// Probe forces a model search, returning the model that answered.
func (g *Generator) Probe(ctx context.Context) (string, error) {
	g.mu.Lock()
	g.state = Probing
	g.model = ""
	g.mu.Unlock()
	return g.sharedProbe(ctx)
}

func (g *Generator) ensureModel(ctx context.Context) (string, error) {
	g.mu.Lock()
	if g.state == ModelCached {
		model := g.model
		g.mu.Unlock()
		return model, nil
	}
	g.state = Probing
	g.mu.Unlock()

	return g.sharedProbe(ctx)
}

// sharedProbe lets concurrent callers wait on a single probe. The probe is detached from
// the first caller's cancellation so the others are not failed by it.
func (g *Generator) sharedProbe(ctx context.Context) (string, error) {
	ch := g.probes.DoChan("probe", func() (any, error) {
		return g.probe(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for model probe: %w", ctx.Err())
	}
}

func (g *Generator) probe(ctx context.Context) (string, error) {
	for _, model := range g.opts.Models {
		if _, err := g.call(ctx, model, ProbePrompt); err != nil {
			g.log.Debug("model probe failed", zap.String("model", model), zap.Error(err))
			continue
		}

		g.mu.Lock()
		g.state = ModelCached
		g.model = model
		g.mu.Unlock()

		g.log.Info("working model selected", zap.String("model", model))
		return model, nil
	}

	g.mu.Lock()
	g.state = NoWorkingModel
	g.model = ""
	g.mu.Unlock()

	g.log.Error("no working model found", zap.Strings("models", g.opts.Models))
	return "", fmt.Errorf("%w: none of %d models answered the probe", ErrGenerationUnavailable, len(g.opts.Models))
}

// call races one backend request against the call timeout and sanitizes the result.
func (g *Generator) call(ctx context.Context, model, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := g.backend.Generate(callCtx, model, prompt)
		done <- result{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return "", fmt.Errorf("%w: %s", ErrGenerationTimeout, model)
			}
			return "", res.err
		}
		text := Sanitize(res.text)
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w after %s: %s", ErrGenerationTimeout, g.opts.CallTimeout, model)
	}
}

// invalidate drops the cached model if it is still the one that failed.
func (g *Generator) invalidate(model string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == ModelCached && g.model == model {
		g.state = Probing
		g.model = ""
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
