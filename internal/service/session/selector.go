package session

import (
	"time"

	"github.com/zhouzirui/panelroom/backend/internal/service/schedule"
)

// Eligible returns the actors whose last response is older than cooldown.
// Actors that never responded are always eligible.
func Eligible(actors []*Actor, cooldown time.Duration, now time.Time) []*Actor {
	out := make([]*Actor, 0, len(actors))
	for _, actor := range actors {
		if actor.LastActivity.IsZero() || now.Sub(actor.LastActivity) > cooldown {
			out = append(out, actor)
		}
	}
	return out
}

// Select picks uniformly among eligible actors. When every actor is cooling down it
// returns the least recently active one, so it only returns nil for an empty slice.
//
// Two overlapping callers can both land on the same oldest actor before either records
// a response; that back-to-back reply is accepted.
func Select(actors []*Actor, cooldown time.Duration, now time.Time, rng schedule.Rand) *Actor {
	if len(actors) == 0 {
		return nil
	}

	eligible := Eligible(actors, cooldown, now)
	if len(eligible) > 0 {
		return eligible[rng.IntN(len(eligible))]
	}

	oldest := actors[0]
	for _, actor := range actors[1:] {
		if actor.LastActivity.Before(oldest.LastActivity) {
			oldest = actor
		}
	}
	return oldest
}
