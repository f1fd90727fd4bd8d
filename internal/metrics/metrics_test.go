// ABOUTME: Tests for client and server Prometheus instruments
// ABOUTME: Uses a private registry per test
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMetricsReading(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	m.ObserveSample(clocksync.Sample{Sent: 1000, Received: 1010, Remote: 1050})
	m.ObserveReading(clocksync.Reading{Error: 4, Adjust: 45, Successful: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues(ResultOK)))
	assert.Equal(t, 45.0, testutil.ToFloat64(m.adjust))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.errorBound))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.successful))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readings.WithLabelValues("true")))

	m.ObserveReading(clocksync.Reading{Error: 99, Adjust: -50, Successful: false})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.successful))
	assert.Equal(t, -50.0, testutil.ToFloat64(m.adjust))

	count, err := testutil.GatherAndCount(reg, "clocksync_client_round_trip_milliseconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClientMetricsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	m.ObserveFailure(&clocksync.TransportError{StatusCode: 400})
	m.ObserveFailure(&clocksync.TransportError{Err: fmt.Errorf("refused")})
	m.ObserveFailure(&clocksync.IntegrityError{Sent: 1, Body: "2,3"})
	m.ObserveFailure(&clocksync.TimingAssertionError{Bound: -1})
	m.ObserveFailure(fmt.Errorf("something else"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.exchanges.WithLabelValues(ResultTransport)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues(ResultIntegrity)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues(ResultOther)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assertions))
	assert.Equal(t, 3, testutil.CollectAndCount(m.exchanges))
}

func TestTimingAssertionCountsOneExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s,1050", r.Header.Get(clocksync.ClientTimestampHeader))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := NewClientMetrics(reg)

	// A zero round trip is shorter than the 1ms minimum reading delay
	client, err := clocksync.New(srv.URL,
		clocksync.WithClock(func() time.Time { return time.UnixMilli(1000) }),
		clocksync.WithObserver(m))
	require.NoError(t, err)

	_, err = client.Sync(context.Background())
	var timingErr *clocksync.TimingAssertionError
	require.ErrorAs(t, err, &timingErr)

	total := 0.0
	for _, result := range []string{ResultOK, ResultTransport, ResultIntegrity, ResultTiming, ResultOther} {
		total += testutil.ToFloat64(m.exchanges.WithLabelValues(result))
	}
	assert.Equal(t, 1.0, total)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assertions))
}

func TestFailureKindWrapped(t *testing.T) {
	err := fmt.Errorf("sync: %w", &clocksync.IntegrityError{})
	assert.Equal(t, ResultIntegrity, FailureKind(err))
	assert.Equal(t, ResultOK, FailureKind(nil))
}

func TestServerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)

	m.ObserveRequest("http", 200)
	m.ObserveRequest("http", 200)
	m.ObserveRequest("http", 400)
	m.ObserveRequest("websocket", 200)
	m.WebSocketOpened()
	m.WebSocketOpened()
	m.WebSocketClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("http", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("http", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("websocket", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsOpen))
}
