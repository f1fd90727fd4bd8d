// ABOUTME: Clock client tying validation, exchange and estimation together
// ABOUTME: New validates eagerly; Sync and Exchange each do one round trip
package clocksync

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single exchange when no other timeout is set
const DefaultTimeout = 5 * time.Second

// Observer receives the outcome of every exchange and synchronization.
// Implementations must be safe for concurrent use
type Observer interface {
	ObserveSample(Sample)
	ObserveReading(Reading)
	ObserveFailure(error)
}

type nopObserver struct{}

func (nopObserver) ObserveSample(Sample)   {}
func (nopObserver) ObserveReading(Reading) {}
func (nopObserver) ObserveFailure(error)   {}

// Option configures a Client
type Option func(*options)

type options struct {
	targetPrecision float64
	minReadingDelay float64
	clockDrift      float64

	httpClient *http.Client
	dialer     *websocket.Dialer
	timeout    time.Duration
	clock      func() time.Time
	logger     *zap.Logger
	observer   Observer
	requestIDs bool
}

// WithTargetPrecision sets the desired precision in milliseconds
func WithTargetPrecision(ms float64) Option {
	return func(o *options) { o.targetPrecision = ms }
}

// WithMinReadingDelay sets the minimum server processing delay in milliseconds
func WithMinReadingDelay(ms float64) Option {
	return func(o *options) { o.minReadingDelay = ms }
}

// WithClockDrift sets the fractional drift rate, e.g. 0.0001
func WithClockDrift(rate float64) Option {
	return func(o *options) { o.clockDrift = rate }
}

// WithHTTPClient replaces the HTTP client used for http(s) targets
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithDialer replaces the WebSocket dialer used for ws(s) targets
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithTimeout bounds each exchange. Zero disables the per-call timeout and
// leaves deadlines to the caller's context
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithClock replaces the local clock. Only millisecond resolution is used
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithLogger sets the logger. The default discards everything
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver registers an observer for samples, readings and failures
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithRequestIDs controls whether each exchange carries an X-Request-Id header
func WithRequestIDs(enabled bool) Option {
	return func(o *options) { o.requestIDs = enabled }
}

// Client synchronizes against one reference server. It is immutable after New
type Client struct {
	endpoint   Endpoint
	params     Params
	exchanger  exchanger
	timeout    time.Duration
	requestIDs bool
	logger     *zap.Logger
	observer   Observer
}

// New parses the target, validates the parameters and returns a ready client.
// No network activity happens here. Infeasible parameters or an unusable
// target yield a *ConfigurationError and no client
func New(target string, opts ...Option) (*Client, error) {
	o := options{
		targetPrecision: DefaultTargetPrecision,
		minReadingDelay: DefaultMinReadingDelay,
		clockDrift:      DefaultClockDrift,
		timeout:         DefaultTimeout,
		clock:           time.Now,
		requestIDs:      true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}

	endpoint, err := ParseEndpoint(target)
	if err != nil {
		return nil, err
	}

	params, err := NewParams(o.targetPrecision, o.minReadingDelay, o.clockDrift)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With(zap.String("endpoint", endpoint.String()))
	now := func() int64 { return o.clock().UnixMilli() }

	var x exchanger
	if endpoint.WebSocket() {
		dialer := o.dialer
		if dialer == nil {
			dialer = websocket.DefaultDialer
		}
		x = &wsExchanger{url: endpoint.URL(), dialer: dialer, now: now, logger: logger}
	} else {
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		x = &httpExchanger{url: endpoint.URL(), client: httpClient, now: now}
	}

	logger.Info("Clock client configured; adjust settings to bring these as close as possible",
		zap.Float64("timeoutDelay", params.TimeoutDelay()),
		zap.Float64("minUpperBound", params.MinUpperBound()))

	return &Client{
		endpoint:   endpoint,
		params:     params,
		exchanger:  x,
		timeout:    o.timeout,
		requestIDs: o.requestIDs,
		logger:     logger,
		observer:   o.observer,
	}, nil
}

// Endpoint returns the parsed server location
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Params returns the validated parameters
func (c *Client) Params() Params {
	return c.params
}

// Exchange performs one round trip and returns the raw sample. Failures are
// a *TransportError or an *IntegrityError. Nothing is retried
func (c *Client) Exchange(ctx context.Context) (Sample, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var requestID string
	if c.requestIDs {
		requestID = newRequestID()
	}

	sample, err := c.exchanger.exchange(ctx, requestID)
	if err != nil {
		c.logger.Debug("Exchange failed", zap.String("requestID", requestID), zap.Error(err))
		c.observer.ObserveFailure(err)
		return Sample{}, err
	}

	c.logger.Debug("Exchange complete",
		zap.String("requestID", requestID),
		zap.Int64("sent", sample.Sent),
		zap.Int64("received", sample.Received),
		zap.Int64("remote", sample.Remote))
	c.observer.ObserveSample(sample)
	return sample, nil
}

// Sync performs one exchange and estimates the offset from it. The reading
// is always derived from the stamp that was actually sent. A reading with
// Successful false is still returned without error; a *TimingAssertionError
// means the sample violated the timing model
func (c *Client) Sync(ctx context.Context) (Reading, error) {
	sample, err := c.Exchange(ctx)
	if err != nil {
		return Reading{}, err
	}

	reading, err := Estimate(sample, c.params)
	if err != nil {
		c.logger.Warn("Timing assertion failed", zap.Error(err))
		c.observer.ObserveFailure(err)
		return Reading{}, err
	}

	c.logger.Debug("Reading computed",
		zap.Float64("error", reading.Error),
		zap.Float64("adjust", reading.Adjust),
		zap.Bool("successful", reading.Successful))
	c.observer.ObserveReading(reading)
	return reading, nil
}
