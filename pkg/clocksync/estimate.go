// ABOUTME: Offset estimation from a single round-trip sample
// ABOUTME: Computes the adjustment, its error bound and the success verdict
package clocksync

import (
	"time"
)

// Sample is one completed exchange. Sent and Received are local clock
// readings that bracket the request; Remote is the server's clock reading.
// All three are milliseconds since the Unix epoch
type Sample struct {
	Sent     int64
	Received int64
	Remote   int64
}

// Reading is the result of a synchronization
type Reading struct {
	// Error bounds how far Adjust may be from the true offset
	Error float64

	// Adjust is the signed correction so that local + Adjust ≈ remote
	Adjust float64

	// Successful is false when the round trip exceeded the timeout delay.
	// The numbers are still well formed, only less trustworthy
	Successful bool

	// HalfRoundTrip is half the measured round trip, taken as one-way latency
	HalfRoundTrip float64
}

// Offset returns Adjust as a duration
func (r Reading) Offset() time.Duration {
	return time.Duration(r.Adjust * float64(time.Millisecond))
}

// HalfRoundTrip approximates one-way latency assuming symmetric legs
func HalfRoundTrip(sent, received int64) float64 {
	return float64(received-sent) / 2
}

// Adjust returns the correction to add to the local clock
func Adjust(halfRoundTrip float64, remote, received int64) float64 {
	return (float64(remote) + halfRoundTrip) - float64(received)
}

// ReadError returns the error bound for a reading with the given half round
// trip. A bound below 3·drift·minReadingDelay breaks the timing model and is
// reported as a *TimingAssertionError
func (p Params) ReadError(halfRoundTrip float64) (float64, error) {
	e := halfRoundTrip*(1+2*p.clockDrift) - p.minReadingDelay
	eMin := 3 * p.clockDrift * p.minReadingDelay
	if e < eMin {
		return 0, &TimingAssertionError{HalfRoundTrip: halfRoundTrip, Bound: e, Min: eMin}
	}
	return e, nil
}

// ReadingSuccessful reports whether the full round trip fits in the timeout delay
func (p Params) ReadingSuccessful(halfRoundTrip float64) bool {
	return 2*halfRoundTrip <= p.timeoutDelay
}

// Estimate turns a sample into a reading. It is a pure function of its inputs
func Estimate(sample Sample, params Params) (Reading, error) {
	half := HalfRoundTrip(sample.Sent, sample.Received)

	readErr, err := params.ReadError(half)
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		Error:         readErr,
		Adjust:        Adjust(half, sample.Remote, sample.Received),
		Successful:    params.ReadingSuccessful(half),
		HalfRoundTrip: half,
	}, nil
}
