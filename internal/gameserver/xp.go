package gameserver

import (
	"math"
	"sync"
)

// ExperienceRates tracks per-player experience multipliers set by the host
// (event bonuses, rested boosts). Players without an entry earn at 1.0.
// All methods are safe for concurrent use.
type ExperienceRates struct {
	mu    sync.RWMutex
	rates map[string]float64
}

// NewExperienceRates returns a table where every player earns at 1.0.
func NewExperienceRates() *ExperienceRates {
	return &ExperienceRates{
		rates: make(map[string]float64),
	}
}

// SetRate sets uid's experience multiplier.
//
// Precondition: factor must be > 0.
func (r *ExperienceRates) SetRate(uid string, factor float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[uid] = factor
}

// ClearRate removes uid's multiplier, restoring the 1.0 default.
func (r *ExperienceRates) ClearRate(uid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rates, uid)
}

// Boost returns base scaled by uid's multiplier, floor-rounded. It satisfies
// the encounter engine's experience hook.
func (r *ExperienceRates) Boost(uid string, base int) int {
	r.mu.RLock()
	factor, ok := r.rates[uid]
	r.mu.RUnlock()
	if !ok {
		return base
	}
	return int(math.Floor(float64(base) * factor))
}
