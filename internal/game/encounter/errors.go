package encounter

import "errors"

// State-conflict errors surfaced to the command layer. None are retried.
var (
	// ErrAlreadyInCombat is returned when starting combat for a side that
	// already holds a live pairing. The engine enforces single-attacker-per-
	// target: both the attacker and the defender must be free.
	ErrAlreadyInCombat = errors.New("already in combat")
	// ErrNotInCombat is returned when fleeing without a live pairing.
	ErrNotInCombat = errors.New("not in combat")
	// ErrSafeZone is returned when combat may not start in the room.
	ErrSafeZone = errors.New("combat is forbidden here")
)
