package session

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrActorNotFound     = errors.New("bot actor not found")
	ErrInvalidActorCount = errors.New("actor count must be positive")
	ErrEmptyCatalog      = errors.New("persona catalog is empty")
)
