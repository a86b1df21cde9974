// Package dice provides the random sources and roll helpers used by the
// simulation core: damage variance, probability checks, and uniform picks.
package dice

import (
	"crypto/rand"
	"math/big"
)

// Source produces uniformly distributed random values. Implementations must
// be safe for concurrent use.
type Source interface {
	// Intn returns a value in [0, n). Panics when n <= 0.
	Intn(n int) int
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
}

// floatResolution is the denominator used to derive Float64 from Intn.
const floatResolution = 1 << 53

// cryptoSource implements Source using crypto/rand.
//
// Invariant: All values produced are cryptographically secure and uniformly
// distributed in [0, n) for any n > 0.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" if n <= 0.
// Panics with "dice: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Float64 returns a cryptographically secure float in [0.0, 1.0).
func (c *cryptoSource) Float64() float64 {
	return float64(c.Intn(floatResolution)) / floatResolution
}
