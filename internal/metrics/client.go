// ABOUTME: Prometheus instruments for clock client readings
// ABOUTME: Implements clocksync.Observer so a Client can report into a registry
package metrics

import (
	"errors"

	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clocksync"

// Result labels for the exchanges counter. Timing assertions are counted in
// timing_assertions_total instead.
const (
	ResultOK        = "ok"
	ResultTransport = "transport"
	ResultIntegrity = "integrity"
	ResultTiming    = "timing"
	ResultOther     = "other"
)

// ClientMetrics records exchanges and readings of a clock client
type ClientMetrics struct {
	exchanges  *prometheus.CounterVec
	roundTrip  prometheus.Histogram
	adjust     prometheus.Gauge
	errorBound prometheus.Gauge
	successful prometheus.Gauge
	readings   *prometheus.CounterVec
	assertions prometheus.Counter
}

var _ clocksync.Observer = (*ClientMetrics)(nil)

// NewClientMetrics registers the client instruments with reg
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	factory := promauto.With(reg)

	return &ClientMetrics{
		exchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "exchanges_total",
				Help:      "Round trips attempted, by outcome",
			},
			[]string{"result"},
		),
		roundTrip: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "round_trip_milliseconds",
				Help:      "Measured round trip of completed exchanges",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
			},
		),
		adjust: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "adjust_milliseconds",
				Help:      "Latest correction to add to the local clock",
			},
		),
		errorBound: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "error_bound_milliseconds",
				Help:      "Error bound of the latest reading",
			},
		),
		successful: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "reading_successful",
				Help:      "1 if the latest reading was within the timeout delay, otherwise 0",
			},
		),
		readings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "readings_total",
				Help:      "Readings computed, by trustworthiness",
			},
			[]string{"successful"},
		),
		assertions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "timing_assertions_total",
				Help:      "Completed exchanges whose sample broke the timing model",
			},
		),
	}
}

// ObserveSample records a completed exchange
func (m *ClientMetrics) ObserveSample(s clocksync.Sample) {
	m.exchanges.WithLabelValues(ResultOK).Inc()
	m.roundTrip.Observe(float64(s.Received - s.Sent))
}

// ObserveReading records the latest reading
func (m *ClientMetrics) ObserveReading(r clocksync.Reading) {
	m.adjust.Set(r.Adjust)
	m.errorBound.Set(r.Error)
	if r.Successful {
		m.successful.Set(1)
		m.readings.WithLabelValues("true").Inc()
	} else {
		m.successful.Set(0)
		m.readings.WithLabelValues("false").Inc()
	}
}

// ObserveFailure counts a failed exchange by kind. A timing assertion follows
// a completed exchange and is counted on its own.
func (m *ClientMetrics) ObserveFailure(err error) {
	kind := FailureKind(err)
	if kind == ResultTiming {
		m.assertions.Inc()
		return
	}
	m.exchanges.WithLabelValues(kind).Inc()
}

// FailureKind maps a client error onto a result label
func FailureKind(err error) string {
	var (
		transportErr *clocksync.TransportError
		integrityErr *clocksync.IntegrityError
		timingErr    *clocksync.TimingAssertionError
	)
	switch {
	case err == nil:
		return ResultOK
	case errors.As(err, &transportErr):
		return ResultTransport
	case errors.As(err, &integrityErr):
		return ResultIntegrity
	case errors.As(err, &timingErr):
		return ResultTiming
	default:
		return ResultOther
	}
}
