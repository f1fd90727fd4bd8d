// ABOUTME: Clock offset estimation package
// ABOUTME: Single round-trip exchange with a statistical error bound
// Package clocksync estimates the offset between the local clock and a remote
// reference clock using one timestamped request/response exchange.
//
// The client sends its own millisecond timestamp, the server echoes it and
// appends its clock reading. Half the measured round trip is taken as the
// one-way latency, which yields the adjustment, an error bound and a verdict
// on whether the round trip was short enough to trust.
//
// Parameters are checked when the client is built, so an infeasible
// precision/delay/drift combination never reaches the network.
//
// Example:
//
//	client, err := clocksync.New("http://timehost:5579",
//	    clocksync.WithMinReadingDelay(0.2),
//	    clocksync.WithClockDrift(0.0001))
//	if err != nil {
//	    return err
//	}
//	reading, err := client.Sync(ctx)
//	if err == nil && reading.Successful {
//	    fmt.Printf("local clock is off by %.1fms (±%.1fms)\n", reading.Adjust, reading.Error)
//	}
//
// A Client holds no mutable state and may be used from many goroutines.
package clocksync
