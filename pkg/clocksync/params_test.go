// ABOUTME: Tests for parameter validation and derived bounds
// ABOUTME: Covers defaults, custom parameters and infeasible combinations
package clocksync

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()

	assert.Equal(t, 50.0, p.TargetPrecision())
	assert.Equal(t, 1.0, p.MinReadingDelay())
	assert.Equal(t, 0.0, p.ClockDrift())
	assert.Equal(t, 51.0, p.UpperBound())
	assert.Equal(t, 1.0, p.MinUpperBound())
	assert.Equal(t, 102.0, p.TimeoutDelay())
}

func TestCustomParamsTimeoutDelay(t *testing.T) {
	p, err := NewParams(15, 5, 0.003)
	require.NoError(t, err)

	assert.InDelta(t, 19.88, p.UpperBound(), 1e-9)
	assert.InDelta(t, 5.015, p.MinUpperBound(), 1e-9)
	assert.Equal(t, 39.76, p.TimeoutDelay())
}

func TestTimeoutDelayIsTwiceUpperBound(t *testing.T) {
	cases := []struct {
		precision, delay, drift float64
	}{
		{50, 1, 0},
		{50, 0.2, 0.0001},
		{0, 0, 0},
		{10, 0, 0.25},
		{1000, 20, 0.01},
	}

	for _, tc := range cases {
		p, err := NewParams(tc.precision, tc.delay, tc.drift)
		require.NoError(t, err, "params %+v", tc)
		assert.GreaterOrEqual(t, p.UpperBound(), p.MinUpperBound())
		assert.Equal(t, 2*p.UpperBound(), p.TimeoutDelay())
	}
}

func TestInfeasibleParams(t *testing.T) {
	cases := []struct {
		name                    string
		precision, delay, drift float64
	}{
		{"drift eats the bound", 0, 1, 0.1},
		{"half drift", 50, 1, 0.5},
		{"drift above one half", 50, 1, 0.75},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParams(tc.precision, tc.delay, tc.drift)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Empty(t, cfgErr.Field)
			assert.Less(t, cfgErr.UpperBound, cfgErr.MinUpperBound)
		})
	}
}

func TestInvalidParamValues(t *testing.T) {
	cases := []struct {
		name                    string
		precision, delay, drift float64
		field                   string
	}{
		{"negative precision", -1, 1, 0, "targetPrecision"},
		{"negative delay", 50, -0.5, 0, "minReadingDelay"},
		{"negative drift", 50, 1, -0.001, "clockDrift"},
		{"NaN precision", math.NaN(), 1, 0, "targetPrecision"},
		{"infinite drift", 50, 1, math.Inf(1), "clockDrift"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParams(tc.precision, tc.delay, tc.drift)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}
