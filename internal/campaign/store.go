package campaign

import (
	"context"
	"errors"
)

var ErrUnknownCampaign = errors.New("campaign: unknown campaign id")

// Store is the persistence contract for campaign configuration and run
// state.
//
// GetState and UpdateState perform the civil-day rollover before returning:
// if the stored date differs from today in the dialer time zone, per-day
// counters reset and the new date persists. Implementations must make the
// read-reset-write atomic so the reset happens once per day no matter how
// many reads race.
type Store interface {
	// GetConfig returns the slot's configuration with defaults applied.
	GetConfig(ctx context.Context, id string) (Config, error)

	// UpdateConfig applies fn to the stored configuration and persists
	// the result, returning it with defaults applied.
	UpdateConfig(ctx context.Context, id string, fn func(*Config)) (Config, error)

	// GetState returns the run-state document after rollover.
	GetState(ctx context.Context) (State, error)

	// UpdateState applies fn to the rolled-over state and persists it.
	UpdateState(ctx context.Context, fn func(*State)) (State, error)
}
