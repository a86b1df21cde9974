package dice

import "math"

// ApplyVariance scales base by a uniform factor in [1-spread, 1+spread] and
// floor-rounds the result.
//
// Precondition: base >= 0; spread must be in [0, 1); src must be non-nil.
// Postcondition: Returns a value in [floor(base*(1-spread)), floor(base*(1+spread))],
// never negative.
func ApplyVariance(base int, spread float64, src Source) int {
	if base <= 0 {
		return 0
	}
	factor := 1 - spread + src.Float64()*2*spread
	v := int(math.Floor(float64(base) * factor))
	if v < 0 {
		return 0
	}
	return v
}

// Chance returns true with probability p.
//
// Precondition: src must be non-nil. p <= 0 always returns false; p >= 1
// always returns true.
func Chance(p float64, src Source) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return src.Float64() < p
}

// PickIndex returns a uniformly random index in [0, n).
//
// Precondition: n > 0; src must be non-nil.
func PickIndex(n int, src Source) int {
	return src.Intn(n)
}
