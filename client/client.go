// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package client provides a streaming HTTP client.
//
// Request bodies are pulled from chunk streams as the transport
// writes them and response bodies are surfaced as chunk streams which
// are only read from the network as the consumer signals demand.
package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/codec"
	"github.com/z5labs/riverbed/internal/try"
	"github.com/z5labs/riverbed/stream"
	"github.com/z5labs/riverbed/transport"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var errStatusCode = errors.New("status code error")

type retryConfig struct {
	maxAttempts int
	waitMin     time.Duration
	waitMax     time.Duration
}

type breakerConfig struct {
	name        string
	tripCount   uint32
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	statusCodes []int
}

type options struct {
	logger    *zap.Logger
	timeout   time.Duration
	transport http.RoundTripper
	pool      *chunk.Pool

	retry   *retryConfig
	breaker *breakerConfig
}

// Option defines a configuration option for [Client].
type Option func(*options)

// Logger configures the [zap.Logger] used for request and circuit
// state logging.
func Logger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Timeout provides a global timeout for each request, including
// reading the full response body.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Transport overrides the underlying [http.RoundTripper].
func Transport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// ChunkPool configures the [chunk.Pool] which response body chunks
// are allocated from.
func ChunkPool(pool *chunk.Pool) Option {
	return func(o *options) {
		o.pool = pool
	}
}

// RetryRequests enables retrying of failed requests with exponential
// backoff between attempts.
func RetryRequests(maxAttempts int) Option {
	return func(o *options) {
		o.retry = &retryConfig{
			maxAttempts: maxAttempts,
			waitMin:     100 * time.Millisecond,
			waitMax:     5 * time.Second,
		}
	}
}

// RetryWaitBounds overrides the minimum and maximum wait between
// retry attempts. It implies [RetryRequests] has been set.
func RetryWaitBounds(waitMin, waitMax time.Duration) Option {
	return func(o *options) {
		if o.retry == nil {
			return
		}
		o.retry.waitMin = waitMin
		o.retry.waitMax = waitMax
	}
}

// CircuitBreaker enables a circuit breaker around the underlying
// transport. The circuit trips after tripCount consecutive failures,
// where connection errors and the status codes 400, 401, 403 and 500
// count as failures.
func CircuitBreaker(name string, tripCount uint32) Option {
	return func(o *options) {
		o.breaker = &breakerConfig{
			name:        name,
			tripCount:   tripCount,
			maxRequests: 1,
			timeout:     60 * time.Second,
		}
	}
}

// CircuitOpenTimeout overrides the period of the open state, after
// which the circuit becomes half open. It implies [CircuitBreaker]
// has been set.
func CircuitOpenTimeout(d time.Duration) Option {
	return func(o *options) {
		if o.breaker == nil {
			return
		}
		o.breaker.timeout = d
	}
}

// CircuitErrorOnStatusCode registers an HTTP response status code
// which should be counted as a failure by the circuit breaker.
// It implies [CircuitBreaker] has been set.
func CircuitErrorOnStatusCode(n int) Option {
	return func(o *options) {
		if o.breaker == nil {
			return
		}
		o.breaker.statusCodes = append(o.breaker.statusCodes, n)
	}
}

// Response is the streaming counterpart of [http.Response]. The body
// must either be consumed to completion or cancelled, otherwise the
// underlying connection can not be reused.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       stream.Publisher[*chunk.Chunk]
}

// Client issues HTTP requests with streaming bodies in both directions.
type Client struct {
	hc   *http.Client
	pool *chunk.Pool
	log  *zap.Logger
}

// New initializes a [Client].
func New(opts ...Option) *Client {
	o := &options{
		logger:    zap.NewNop(),
		transport: http.DefaultTransport,
		pool:      chunk.NewPool(chunk.DefaultChunkSize),
	}
	for _, opt := range opts {
		opt(o)
	}

	rt := otelhttp.NewTransport(o.transport)
	hc := &http.Client{
		Timeout:   o.timeout,
		Transport: wrapCircuit(rt, o.breaker, o.logger),
	}

	return &Client{
		hc:   wrapRetry(hc, o.retry, o.logger),
		pool: o.pool,
		log:  o.logger,
	}
}

// Do sends a request and returns its response with the body exposed
// as a demand driven chunk stream. A nil body means the request has
// no body. The request body stream is pulled one chunk at a time as
// the transport writes it to the network.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body stream.Publisher[*chunk.Chunk]) (*Response, error) {
	var r io.Reader
	if body != nil {
		br := codec.NewReader(ctx, body)
		defer br.Close()
		r = br
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		req.Header[k] = vs
	}

	c.log.Info("sending request",
		zap.String("method", method),
		zap.String("url", url),
	)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       bodyStream(resp.Body, c.pool),
	}, nil
}

// Get is a convenience wrapper around [Client.Do] for bodyless GET requests.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, nil)
}

// Post is a convenience wrapper around [Client.Do].
func (c *Client) Post(ctx context.Context, url, contentType string, body stream.Publisher[*chunk.Chunk]) (*Response, error) {
	header := make(http.Header)
	header.Set("Content-Type", contentType)
	return c.Do(ctx, http.MethodPost, url, header, body)
}

// bodyStream surfaces rc as a chunk stream and closes it once the
// stream terminates, whether by completion, failure or cancellation.
func bodyStream(rc io.ReadCloser, pool *chunk.Pool) stream.Publisher[*chunk.Chunk] {
	return stream.New(func(ctx context.Context, e *stream.Emitter[*chunk.Chunk]) (err error) {
		defer try.Close(&err, rc)

		for {
			err := e.Reserve(ctx)
			if err != nil {
				return err
			}

			// A (0, nil) read must not consume the reservation,
			// otherwise demand is spent without delivering a chunk.
			for {
				c := pool.Get()
				n, err := rc.Read(c.Writable())

				if e.Cancelled() {
					c.Release()
					return stream.ErrCancelled
				}

				if n > 0 {
					c.SetLen(n)
					e.Emit(c)
				} else {
					c.Release()
				}

				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return transport.ReadError{Cause: err}
				}
				if n > 0 {
					break
				}
			}
		}
	})
}

func wrapCircuit(rt http.RoundTripper, cfg *breakerConfig, logger *zap.Logger) http.RoundTripper {
	if cfg == nil {
		return rt
	}

	if len(cfg.statusCodes) == 0 {
		cfg.statusCodes = append(
			cfg.statusCodes,
			http.StatusBadRequest,          // 400
			http.StatusUnauthorized,        // 401
			http.StatusForbidden,           // 403
			http.StatusInternalServerError, // 500
		)
	}
	codes := map[int]struct{}{}
	for _, code := range cfg.statusCodes {
		codes[code] = struct{}{}
	}

	log := logger.Named(cfg.name)

	return &circuitRoundTripper{
		base: rt,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.name,
			MaxRequests: cfg.maxRequests,
			Interval:    cfg.interval,
			Timeout:     cfg.timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.tripCount
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				switch to {
				case gobreaker.StateOpen:
					log.Error("circuit has been opened")
				case gobreaker.StateHalfOpen:
					log.Warn(
						"circuit is now half open and letting some requests through",
						zap.Uint32("max_requests_allowed_through", cfg.maxRequests),
					)
				case gobreaker.StateClosed:
					log.Info("circuit has been closed")
				}
			},
			IsSuccessful: isSuccessful,
		}),
		onStatusCode: func(n int) error {
			_, ok := codes[n]
			if !ok {
				return nil
			}
			return errStatusCode
		},
	}
}

func isSuccessful(err error) bool {
	if errors.Is(err, errStatusCode) {
		return false
	}
	switch errors.Unwrap(err).(type) {
	case *net.AddrError, *net.DNSError, *net.OpError:
		return false
	}
	return true
}

func wrapRetry(hc *http.Client, cfg *retryConfig, logger *zap.Logger) *http.Client {
	if cfg == nil {
		return hc
	}

	rc := retryablehttp.Client{
		HTTPClient:   hc,
		RetryWaitMin: cfg.waitMin,
		RetryWaitMax: cfg.waitMax,
		RetryMax:     cfg.maxAttempts,
		RequestLogHook: func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			logger.Info("sending http request",
				zap.String("url", req.URL.String()),
				zap.Int("request_attempt_count", attempt),
			)
		},
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return rc.StandardClient()
}

type circuitRoundTripper struct {
	base         http.RoundTripper
	cb           *gobreaker.CircuitBreaker
	onStatusCode func(int) error
}

// RoundTrip implements the [http.RoundTripper] interface.
func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (interface{}, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		err = rt.onStatusCode(resp.StatusCode)
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}
