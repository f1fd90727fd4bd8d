// ABOUTME: Synchronization parameters and their derived bounds
// ABOUTME: Rejects precision/delay/drift combinations that can never succeed
package clocksync

import (
	"math"
)

const (
	// DefaultTargetPrecision is the desired precision in milliseconds
	DefaultTargetPrecision = 50.0

	// DefaultMinReadingDelay is the minimum server processing delay in milliseconds
	DefaultMinReadingDelay = 1.0

	// DefaultClockDrift is the fractional drift rate of the local clock
	DefaultClockDrift = 0.0
)

// Params is a validated set of synchronization parameters together with the
// bounds derived from them. All values are in milliseconds except the drift,
// which is a dimensionless rate. The zero value is not valid; use NewParams
type Params struct {
	targetPrecision float64
	minReadingDelay float64
	clockDrift      float64

	upperBound    float64
	minUpperBound float64
	timeoutDelay  float64
}

// DefaultParams returns the parameters used when no option overrides them
func DefaultParams() Params {
	p, _ := NewParams(DefaultTargetPrecision, DefaultMinReadingDelay, DefaultClockDrift)
	return p
}

// NewParams validates the inputs and derives the timeout bounds. It fails
// with a *ConfigurationError when an input is negative or not finite, or when
// the upper bound falls below the minimum upper bound, in which case every
// reading would be reported as unsuccessful
func NewParams(targetPrecision, minReadingDelay, clockDrift float64) (Params, error) {
	if err := checkNonNegative("targetPrecision", targetPrecision); err != nil {
		return Params{}, err
	}
	if err := checkNonNegative("minReadingDelay", minReadingDelay); err != nil {
		return Params{}, err
	}
	if err := checkNonNegative("clockDrift", clockDrift); err != nil {
		return Params{}, err
	}

	upperBound := calcUpperBound(targetPrecision, minReadingDelay, clockDrift)
	minUpperBound := calcMinUpperBound(minReadingDelay, clockDrift)
	if upperBound < minUpperBound {
		return Params{}, &ConfigurationError{
			UpperBound:    upperBound,
			MinUpperBound: minUpperBound,
		}
	}

	return Params{
		targetPrecision: targetPrecision,
		minReadingDelay: minReadingDelay,
		clockDrift:      clockDrift,
		upperBound:      upperBound,
		minUpperBound:   minUpperBound,
		timeoutDelay:    calcTimeoutDelay(upperBound),
	}, nil
}

func checkNonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ConfigurationError{Field: field, Reason: "must be a finite number"}
	}
	if v < 0 {
		return &ConfigurationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func calcUpperBound(targetPrecision, minReadingDelay, clockDrift float64) float64 {
	return (1 - 2*clockDrift) * (targetPrecision + minReadingDelay)
}

func calcMinUpperBound(minReadingDelay, clockDrift float64) float64 {
	return minReadingDelay * (1 + clockDrift)
}

func calcTimeoutDelay(upperBound float64) float64 {
	return 2 * upperBound
}

// TargetPrecision returns the desired precision
func (p Params) TargetPrecision() float64 { return p.targetPrecision }

// MinReadingDelay returns the minimum unavoidable processing delay
func (p Params) MinReadingDelay() float64 { return p.minReadingDelay }

// ClockDrift returns the fractional drift rate
func (p Params) ClockDrift() float64 { return p.clockDrift }

// UpperBound returns (1 - 2·drift)·(targetPrecision + minReadingDelay)
func (p Params) UpperBound() float64 { return p.upperBound }

// MinUpperBound returns minReadingDelay·(1 + drift)
func (p Params) MinUpperBound() float64 { return p.minUpperBound }

// TimeoutDelay returns the longest full round trip a trustworthy reading may take
func (p Params) TimeoutDelay() float64 { return p.timeoutDelay }
