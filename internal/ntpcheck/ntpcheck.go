// ABOUTME: Cross-check of a clock reading against an NTP server
// ABOUTME: Reports how far the reading's adjustment is from the NTP offset
package ntpcheck

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"github.com/beevik/ntp"
)

// Measurement is the part of an NTP response the comparison needs
type Measurement struct {
	ClockOffset time.Duration
	RTT         time.Duration
	Stratum     uint8
}

// QueryFunc queries an NTP server
type QueryFunc func(server string, timeout time.Duration) (Measurement, error)

// Result compares a reading with an NTP measurement
type Result struct {
	Server    string
	NTPOffset time.Duration
	NTPRTT    time.Duration
	Stratum   uint8
	Adjust    time.Duration

	// Disagreement is Adjust minus the NTP offset
	Disagreement time.Duration

	// WithinBound reports whether the disagreement fits the reading's error bound
	WithinBound bool
}

// Checker queries an NTP server and compares the result with a reading
type Checker struct {
	timeout time.Duration
	query   QueryFunc
}

// New creates a Checker using beevik/ntp
func New(timeout time.Duration) *Checker {
	return &Checker{timeout: timeout, query: queryNTP}
}

// Compare queries server and compares its clock offset with the reading
func (c *Checker) Compare(server string, reading clocksync.Reading) (Result, error) {
	m, err := c.query(server, c.timeout)
	if err != nil {
		return Result{}, fmt.Errorf("ntp query to %s failed: %w", server, err)
	}

	adjust := reading.Offset()
	disagreement := adjust - m.ClockOffset
	bound := time.Duration(reading.Error * float64(time.Millisecond))

	return Result{
		Server:       server,
		NTPOffset:    m.ClockOffset,
		NTPRTT:       m.RTT,
		Stratum:      m.Stratum,
		Adjust:       adjust,
		Disagreement: disagreement,
		WithinBound:  disagreement.Abs() <= bound,
	}, nil
}

func queryNTP(server string, timeout time.Duration) (Measurement, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return Measurement{}, err
	}
	if err := resp.Validate(); err != nil {
		return Measurement{}, fmt.Errorf("invalid ntp response: %w", err)
	}
	return Measurement{
		ClockOffset: resp.ClockOffset,
		RTT:         resp.RTT,
		Stratum:     resp.Stratum,
	}, nil
}
