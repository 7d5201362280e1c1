// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package loop runs a pipeline on a fixed pool of connection serving
// workers.
//
// Accepted connections are assigned to workers over bounded queues
// and each worker serves its connections one exchange at a time, so
// the number of concurrently processed exchanges never exceeds the
// worker count. HTTP/1.1 parsing and framing happen at the edge of
// each worker; everything between stays a demand driven chunk stream.
package loop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"sync/atomic"
	"time"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/dispatch"
	"github.com/z5labs/riverbed/pipeline"
	"github.com/z5labs/riverbed/pkg/noop"
	"github.com/z5labs/riverbed/pkg/otelslog"
	"github.com/z5labs/riverbed/pkg/slogfield"
	"github.com/z5labs/riverbed/transport"

	"golang.org/x/sync/errgroup"
)

type options struct {
	logHandler   slog.Handler
	pool         *chunk.Pool
	workers      int
	queueCap     int
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

// Option defines a configuration option for [Runtime].
type Option func(*options)

// LogHandler configures the underlying [slog.Handler] used for
// connection lifecycle logs.
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

// Workers sets the number of connection serving workers. The default
// is 8.
func Workers(n uint) Option {
	return func(o *options) {
		if n == 0 {
			return
		}
		o.workers = int(n)
	}
}

// QueueCapacity bounds the number of accepted connections which can
// wait for each worker. When a worker's queue is full the accept loop
// blocks, pushing backpressure down to the listener. The default is 16.
func QueueCapacity(n uint) Option {
	return func(o *options) {
		if n == 0 {
			return
		}
		o.queueCap = int(n)
	}
}

// IdleTimeout bounds how long a worker waits for the next byte from a
// connection, both between requests and within a request body. The
// default is 2 minutes.
func IdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// WriteTimeout bounds each response write. The default is no timeout.
func WriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// Runtime serves a [pipeline.Pipeline] over raw TCP connections using
// a fixed worker pool. It implements the riverbed app contract.
type Runtime struct {
	addr string
	pipe *pipeline.Pipeline

	log          *slog.Logger
	pool         *chunk.Pool
	workers      int
	queueCap     int
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

// New initializes a [Runtime] which listens on addr.
func New(addr string, pipe *pipeline.Pipeline, opts ...Option) *Runtime {
	o := &options{
		logHandler:  noop.LogHandler{},
		pool:        chunk.NewPool(chunk.DefaultChunkSize),
		workers:     8,
		queueCap:    16,
		idleTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Runtime{
		addr:         addr,
		pipe:         pipe,
		log:          otelslog.New(o.logHandler),
		pool:         o.pool,
		workers:      o.workers,
		queueCap:     o.queueCap,
		idleTimeout:  o.idleTimeout,
		writeTimeout: o.writeTimeout,
	}
}

// Run starts accepting connections and blocks until the context is
// cancelled or serving fails. Cancellation closes the listener, stops
// handing out queued connections and aborts in flight exchanges
// through their context.
func (rt *Runtime) Run(ctx context.Context) error {
	ls, err := net.Listen("tcp", rt.addr)
	if err != nil {
		return err
	}

	rt.log.InfoContext(ctx, "serving connections", slog.String("addr", ls.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan net.Conn, rt.workers)
	for i := range queues {
		queues[i] = make(chan net.Conn, rt.queueCap)
	}

	for i := range queues {
		queue := queues[i]
		g.Go(func() error {
			for conn := range queue {
				rt.serve(gctx, conn)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return ls.Close()
	})

	g.Go(func() error {
		defer func() {
			for _, queue := range queues {
				close(queue)
			}
		}()

		next := 0
		for {
			conn, err := ls.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}

			select {
			case queues[next%len(queues)] <- conn:
			case <-gctx.Done():
				conn.Close()
				return nil
			}
			next++
		}
	})

	err = g.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (rt *Runtime) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	for {
		if ctx.Err() != nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(rt.idleTimeout))
		httpReq, err := http.ReadRequest(br)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				rt.log.DebugContext(ctx, "failed to read request", slogfield.Error(err))
			}
			return
		}

		body := &trackedBody{
			conn:    conn,
			rc:      httpReq.Body,
			timeout: rt.idleTimeout,
		}

		req := &dispatch.Request{
			Method: httpReq.Method,
			Path:   httpReq.URL.Path,
			Header: httpReq.Header,
			Body:   transport.ReadFrom(body, rt.pool),
		}

		rw := &responseWriter{
			conn:    conn,
			timeout: rt.writeTimeout,
		}

		err = rt.pipe.Serve(ctx, req, rw)
		if err != nil {
			// The head may already be on the wire with a success
			// status. Skipping the chunked terminator leaves the
			// body visibly truncated, which is the only failure
			// signal left at this point.
			return
		}
		err = rw.finish()
		if err != nil {
			return
		}

		// Keeping the connection alive is only safe if the handler
		// consumed the entire request body, otherwise unread body
		// bytes would be parsed as the next request. A request with
		// no body counts as consumed.
		if httpReq.Close {
			return
		}
		if httpReq.ContentLength != 0 && !body.sawEOF() {
			return
		}
	}
}

// trackedBody bumps the connection read deadline on every read and
// records whether the body was read through to EOF.
type trackedBody struct {
	conn    net.Conn
	rc      io.ReadCloser
	timeout time.Duration
	eof     atomic.Bool
}

// Read implements the [io.Reader] interface.
func (b *trackedBody) Read(p []byte) (int, error) {
	b.conn.SetReadDeadline(time.Now().Add(b.timeout))

	n, err := b.rc.Read(p)
	if errors.Is(err, io.EOF) {
		b.eof.Store(true)
	}
	return n, err
}

func (b *trackedBody) sawEOF() bool {
	return b.eof.Load()
}

// responseWriter frames a response onto the connection. Bodies are
// written with chunked transfer encoding unless the handler supplied
// an explicit Content-Length, and every chunk is flushed as soon as
// it is written.
type responseWriter struct {
	conn    net.Conn
	timeout time.Duration

	bw        *bufio.Writer
	cw        io.WriteCloser
	wroteHead bool
}

// WriteHead implements the [pipeline.ResponseWriter] interface.
func (rw *responseWriter) WriteHead(statusCode int, header http.Header) error {
	rw.wroteHead = true
	rw.bw = bufio.NewWriter(timeoutWriter{conn: rw.conn, timeout: rw.timeout})

	fmt.Fprintf(rw.bw, "HTTP/1.1 %03d %s\r\n", statusCode, http.StatusText(statusCode))

	if header == nil {
		header = make(http.Header)
	}
	chunked := header.Get("Content-Length") == "" && bodyAllowed(statusCode)
	if chunked {
		fmt.Fprintf(rw.bw, "Transfer-Encoding: chunked\r\n")
	}
	err := header.Write(rw.bw)
	if err != nil {
		return err
	}
	_, err = io.WriteString(rw.bw, "\r\n")
	if err != nil {
		return err
	}

	if chunked {
		rw.cw = httputil.NewChunkedWriter(rw.bw)
	}
	return rw.bw.Flush()
}

// Write implements the [io.Writer] interface.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	var n int
	var err error
	if rw.cw != nil {
		n, err = rw.cw.Write(b)
	} else {
		n, err = rw.bw.Write(b)
	}
	if err != nil {
		return n, err
	}
	return n, rw.bw.Flush()
}

func (rw *responseWriter) finish() error {
	if !rw.wroteHead {
		return nil
	}
	if rw.cw != nil {
		err := rw.cw.Close()
		if err != nil {
			return err
		}

		// ChunkedWriter does not write the trailing CRLF which
		// terminates the chunked body.
		_, err = io.WriteString(rw.bw, "\r\n")
		if err != nil {
			return err
		}
	}
	return rw.bw.Flush()
}

func bodyAllowed(statusCode int) bool {
	if statusCode < 200 {
		return false
	}
	return statusCode != http.StatusNoContent && statusCode != http.StatusNotModified
}

type timeoutWriter struct {
	conn    net.Conn
	timeout time.Duration
}

// Write implements the [io.Writer] interface.
func (w timeoutWriter) Write(b []byte) (int, error) {
	if w.timeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	}
	return w.conn.Write(b)
}
