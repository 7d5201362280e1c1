// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpserver runs a pipeline behind the standard [net/http]
// server.
//
// The server owns connection management, HTTP parsing and response
// framing while the pipeline owns all body streaming. Each response
// chunk is flushed as soon as it is written so incremental formats,
// server-sent events in particular, reach the client promptly.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/dispatch"
	"github.com/z5labs/riverbed/internal/fixedpool"
	"github.com/z5labs/riverbed/pipeline"
	"github.com/z5labs/riverbed/pkg/noop"
	"github.com/z5labs/riverbed/pkg/otelslog"
	"github.com/z5labs/riverbed/transport"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type options struct {
	logHandler        slog.Handler
	pool              *chunk.Pool
	readHeaderTimeout time.Duration
	idleTimeout       time.Duration
	maxHeaderBytes    int
}

// Option defines a configuration option for [Runtime].
type Option func(*options)

// LogHandler configures the underlying [slog.Handler] used for
// server lifecycle logs.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// ChunkPool configures the [chunk.Pool] which request body chunks are
// allocated from.
func ChunkPool(pool *chunk.Pool) Option {
	return func(o *options) {
		o.pool = pool
	}
}

// ReadHeaderTimeout sets the maximum duration for reading request
// headers. The default is 2 seconds.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readHeaderTimeout = d
	}
}

// IdleTimeout sets the maximum duration to wait for the next request
// when keep-alives are enabled. The default is 120 seconds.
func IdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// MaxHeaderBytes sets the maximum number of bytes the server will
// read parsing request headers. The default is 1 MiB.
func MaxHeaderBytes(n int) Option {
	return func(o *options) {
		o.maxHeaderBytes = n
	}
}

// Runtime runs a [pipeline.Pipeline] behind a [http.Server]. It
// implements the riverbed app contract so it can be returned directly
// from an app builder.
type Runtime struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// New initializes a [Runtime] which listens on addr.
func New(addr string, pipe *pipeline.Pipeline, opts ...Option) *Runtime {
	o := &options{
		logHandler:        noop.LogHandler{},
		pool:              chunk.NewPool(chunk.DefaultChunkSize),
		readHeaderTimeout: 2 * time.Second,
		idleTimeout:       120 * time.Second,
		maxHeaderBytes:    1 << 20,
	}
	for _, opt := range opts {
		opt(o)
	}

	h := &handler{
		pipe: pipe,
		pool: o.pool,
	}

	return &Runtime{
		addr: addr,
		srv: &http.Server{
			Handler:           otelhttp.NewHandler(h, "httpserver"),
			ReadHeaderTimeout: o.readHeaderTimeout,
			IdleTimeout:       o.idleTimeout,
			MaxHeaderBytes:    o.maxHeaderBytes,
		},
		log: otelslog.New(o.logHandler),
	}
}

// Run starts the server and blocks until the context is cancelled or
// serving fails. Cancellation triggers a graceful shutdown which
// waits for in flight exchanges to finish.
func (rt *Runtime) Run(ctx context.Context) error {
	ls, err := net.Listen("tcp", rt.addr)
	if err != nil {
		return err
	}

	rt.log.InfoContext(ctx, "serving http", slog.String("addr", ls.Addr().String()))

	err = fixedpool.Wait(
		ctx,
		func(ctx context.Context) error {
			return rt.srv.Serve(ls)
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return rt.srv.Shutdown(context.Background())
		},
	)

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type handler struct {
	pipe *pipeline.Pipeline
	pool *chunk.Pool
}

// ServeHTTP implements the [http.Handler] interface.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &dispatch.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header,
		Body:   transport.ReadFrom(r.Body, h.pool),
	}

	rw := &responseWriter{w: w}

	err := h.pipe.Serve(r.Context(), req, rw)
	if err != nil && rw.wroteHead {
		// The head is on the wire so the failure can only be
		// signalled by aborting the connection mid body.
		panic(http.ErrAbortHandler)
	}
}

type responseWriter struct {
	w         http.ResponseWriter
	wroteHead bool
}

// WriteHead implements the [pipeline.ResponseWriter] interface.
func (rw *responseWriter) WriteHead(statusCode int, header http.Header) error {
	dst := rw.w.Header()
	for k, vs := range header {
		dst[k] = vs
	}
	rw.w.WriteHeader(statusCode)
	rw.wroteHead = true
	return nil
}

// Write implements the [io.Writer] interface. Each write is flushed
// immediately so chunk boundaries translate into prompt delivery.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.w.Write(b)
	if err != nil {
		return n, err
	}
	if f, ok := rw.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, nil
}
