package ai

import (
	"context"
	"errors"
)

var (
	// ErrGenerationUnavailable means no model could produce text within the retry budget.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrGenerationTimeout is returned when a single backend call exceeds the call timeout.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrEmptyResponse is returned when the sanitized text is empty.
	ErrEmptyResponse = errors.New("empty generation response")
)

// Backend is one text-generation provider. model selects an entry of the provider's catalog.
type Backend interface {
	Name() string
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// TextGenerator is what the orchestrator needs from the adapter.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
