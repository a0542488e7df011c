package numguard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToTick(t *testing.T) {
	assert.InDelta(t, 100.00, RoundToTick(100.004, 0.01), 1e-12)
	assert.InDelta(t, 100.01, RoundToTick(100.006, 0.01), 1e-12)
	assert.InDelta(t, 23400, RoundToTick(23401, 10), 1e-12)
}

func TestRoundToTickPassthrough(t *testing.T) {
	assert.Equal(t, 123.456, RoundToTick(123.456, 0))
	assert.Equal(t, 123.456, RoundToTick(123.456, -1))
	assert.True(t, math.IsNaN(RoundToTick(math.NaN(), 0.01)))
}

func TestRoundDown(t *testing.T) {
	assert.InDelta(t, 25.0, RoundDown(25.0, 0.001), 1e-12)
	assert.InDelta(t, 0.123, RoundDown(0.12399, 0.001), 1e-12)
	assert.InDelta(t, 0, RoundDown(0.0009, 0.001), 1e-12)
}

func TestRoundDownMissingStep(t *testing.T) {
	assert.True(t, math.IsNaN(RoundDown(25.0, 0)))
	assert.True(t, math.IsNaN(RoundDown(25.0, -0.5)))
}

func TestRoundDownIdempotent(t *testing.T) {
	for _, v := range []float64{0.12345, 1.9999, 25.0, 10000.42, 0.0007} {
		for _, step := range []float64{0.001, 0.01, 0.5, 1, 10} {
			once := RoundDown(v, step)
			assert.Equal(t, once, RoundDown(once, step), "v=%v step=%v", v, step)
		}
	}
}

func TestEqualWithin(t *testing.T) {
	assert.True(t, EqualWithin(1.0, 1.0+1e-13, 1e-12))
	assert.False(t, EqualWithin(1.0, 1.0+1e-9, 1e-12))
	assert.False(t, EqualWithin(math.NaN(), math.NaN(), 1))
}
