// ABOUTME: Error types returned by the clock client
// ABOUTME: Configuration, transport, integrity and timing-assertion failures
package clocksync

import (
	"errors"
	"fmt"
	"net"
)

// ConfigurationError reports parameters or a target that can never produce a
// usable client. It is only returned by New, NewParams and ParseEndpoint
type ConfigurationError struct {
	// Field names the offending input, empty for the bound check
	Field  string
	Reason string

	// Set when the derived bounds are infeasible
	UpperBound    float64
	MinUpperBound float64
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("clocksync: clock client is set up incorrectly: upper bound %g is below minimum upper bound %g",
			e.UpperBound, e.MinUpperBound)
	}
	return fmt.Sprintf("clocksync: invalid %s: %s", e.Field, e.Reason)
}

// TransportError reports a failed request: DNS, connection, timeout, I/O or a
// non-200 status. The caller may retry by calling again
type TransportError struct {
	// StatusCode is set when the server answered with something other than 200
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("clocksync: server response isn't 200 (it is %d)", e.StatusCode)
	}
	return fmt.Sprintf("clocksync: exchange failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Unreachable reports whether the server could not be resolved or connected to
func (e *TransportError) Unreachable() bool {
	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(e.Err, &opErr) && opErr.Op == "dial"
}

// IntegrityError reports a reply that does not echo the timestamp that was
// sent, or that cannot be parsed at all. The sample is discarded
type IntegrityError struct {
	Sent int64
	Body string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("clocksync: timestamp verification failed: sent %d, reply %q", e.Sent, e.Body)
}

// TimingAssertionError reports an error bound below its theoretical minimum.
// It means the timing model does not hold for the sample (a clock stepping
// backwards, or a round trip shorter than the minimum reading delay) and is
// not an ordinary network fault
type TimingAssertionError struct {
	HalfRoundTrip float64
	Bound         float64
	Min           float64
}

func (e *TimingAssertionError) Error() string {
	return fmt.Sprintf("clocksync: assertion failed: error bound %g < minimum %g (half round trip %g)",
		e.Bound, e.Min, e.HalfRoundTrip)
}
