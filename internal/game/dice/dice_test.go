package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCryptoSource_IntnRange(t *testing.T) {
	src := NewCryptoSource()
	for i := 0; i < 100; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestCryptoSource_IntnPanicsOnZero(t *testing.T) {
	src := NewCryptoSource()
	assert.Panics(t, func() { src.Intn(0) })
}

func TestSeededSource_Deterministic(t *testing.T) {
	a := NewSeededSource(42)
	b := NewSeededSource(42)
	for i := 0; i < 20; i++ {
		require.Equal(t, a.Intn(100), b.Intn(100))
	}
}

func TestApplyVariance_ZeroBase(t *testing.T) {
	assert.Equal(t, 0, ApplyVariance(0, 0.2, NewSeededSource(1)))
}

func TestApplyVariance_ExampleRange(t *testing.T) {
	// A base damage of 6 with ±20% variance must land in [4, 7]:
	// floor(6*0.8) = 4, floor(6*1.2) = 7.
	src := NewSeededSource(7)
	for i := 0; i < 200; i++ {
		v := ApplyVariance(6, 0.2, src)
		assert.GreaterOrEqual(t, v, 4)
		assert.LessOrEqual(t, v, 7)
	}
}

func TestPropertyVarianceBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.IntRange(1, 10000).Draw(t, "base")
		seed := rapid.Int64().Draw(t, "seed")
		v := ApplyVariance(base, 0.2, NewSeededSource(seed))
		lo := int(float64(base) * 0.8)
		hi := int(float64(base) * 1.2)
		if v < lo-1 || v > hi {
			t.Fatalf("variance of %d out of bounds: got %d, want [%d, %d]", base, v, lo-1, hi)
		}
		if v < 0 {
			t.Fatalf("variance produced negative damage: %d", v)
		}
	})
}

func TestChance_Extremes(t *testing.T) {
	src := NewSeededSource(3)
	assert.False(t, Chance(0, src))
	assert.False(t, Chance(-1, src))
	assert.True(t, Chance(1, src))
	assert.True(t, Chance(1.5, src))
}

func TestChance_ProbabilityRoughlyHolds(t *testing.T) {
	src := NewSeededSource(11)
	hits := 0
	for i := 0; i < 10000; i++ {
		if Chance(0.5, src) {
			hits++
		}
	}
	assert.InDelta(t, 5000, hits, 300)
}

func TestPickIndex_Range(t *testing.T) {
	src := NewSeededSource(5)
	for i := 0; i < 50; i++ {
		v := PickIndex(3, src)
		assert.Contains(t, []int{0, 1, 2}, v)
	}
}
