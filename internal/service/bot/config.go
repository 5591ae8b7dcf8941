package bot

import "time"

// ReactivePolicy controls how likely a bot is to answer a human message and after what delay.
type ReactivePolicy struct {
	Probability float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// Config holds the orchestrator's tuning knobs.
type Config struct {
	DefaultActorCount int

	Text        ReactivePolicy
	Audio       ReactivePolicy
	UserMessage ReactivePolicy // explicit REST path, kept separate from Text

	ReactiveCooldown time.Duration

	IdleMinInterval time.Duration
	IdleMaxInterval time.Duration
	IdleProbability float64
	IdleCooldown    time.Duration

	HistoryWindow int

	MaxSessionAge time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		DefaultActorCount: 4,
		Text:              ReactivePolicy{Probability: 0.95, MinDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second},
		Audio:             ReactivePolicy{Probability: 0.95, MinDelay: time.Second, MaxDelay: 3 * time.Second},
		UserMessage:       ReactivePolicy{Probability: 0.7, MinDelay: time.Second, MaxDelay: 3 * time.Second},
		ReactiveCooldown:  2 * time.Second,
		IdleMinInterval:   30 * time.Second,
		IdleMaxInterval:   60 * time.Second,
		IdleProbability:   0.15,
		IdleCooldown:      15 * time.Second,
		HistoryWindow:     10,
		MaxSessionAge:     4 * time.Hour,
		SweepInterval:     time.Hour,
	}
}
