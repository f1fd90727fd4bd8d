// ABOUTME: Tests for offset estimation
// ABOUTME: Half round trip, adjustment, error bound and success verdict
package clocksync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalfRoundTrip(t *testing.T) {
	assert.Equal(t, 5.0, HalfRoundTrip(1000, 1010))
	assert.Equal(t, 0.0, HalfRoundTrip(1000, 1000))
	assert.Equal(t, 0.5, HalfRoundTrip(1000, 1001))
	assert.Equal(t, 1000.0, HalfRoundTrip(1469993341000, 1469993343000))
}

func TestAdjust(t *testing.T) {
	assert.Equal(t, -1990.0, Adjust(10, 1469993341000, 1469993343000))
	assert.Equal(t, 45.0, Adjust(5, 1050, 1010))
	assert.Equal(t, 0.0, Adjust(0, 1000, 1000))
}

func TestReadingSuccessfulBoundary(t *testing.T) {
	p := DefaultParams()

	assert.True(t, p.ReadingSuccessful(0))
	assert.True(t, p.ReadingSuccessful(50))
	assert.True(t, p.ReadingSuccessful(51), "exact equality with the timeout delay is successful")
	assert.False(t, p.ReadingSuccessful(51.5))
}

func TestReadError(t *testing.T) {
	p := DefaultParams()

	e, err := p.ReadError(5)
	require.NoError(t, err)
	assert.Equal(t, 4.0, e)

	drifting, err := NewParams(15, 5, 0.003)
	require.NoError(t, err)

	e, err = drifting.ReadError(10)
	require.NoError(t, err)
	assert.InDelta(t, 5.06, e, 1e-9)
}

func TestReadErrorAssertion(t *testing.T) {
	p := DefaultParams()

	_, err := p.ReadError(0)
	var timingErr *TimingAssertionError
	require.ErrorAs(t, err, &timingErr)
	assert.Equal(t, -1.0, timingErr.Bound)
	assert.Equal(t, 0.0, timingErr.Min)

	// Negative round trip, i.e. the clock stepped backwards
	_, err = p.ReadError(-10)
	require.ErrorAs(t, err, &timingErr)
}

func TestEstimate(t *testing.T) {
	reading, err := Estimate(Sample{Sent: 1000, Received: 1010, Remote: 1050}, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 4.0, reading.Error)
	assert.Equal(t, 45.0, reading.Adjust)
	assert.True(t, reading.Successful)
	assert.Equal(t, 5.0, reading.HalfRoundTrip)
	assert.Equal(t, 45*time.Millisecond, reading.Offset())
}

func TestEstimateSlowRoundTrip(t *testing.T) {
	reading, err := Estimate(Sample{Sent: 1000, Received: 1200, Remote: 1050}, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 99.0, reading.Error)
	assert.Equal(t, -50.0, reading.Adjust)
	assert.False(t, reading.Successful)
}

func TestEstimateAssertionYieldsNoReading(t *testing.T) {
	reading, err := Estimate(Sample{Sent: 1000, Received: 990, Remote: 1050}, DefaultParams())
	require.Error(t, err)
	assert.IsType(t, &TimingAssertionError{}, err)
	assert.Equal(t, Reading{}, reading)
}
