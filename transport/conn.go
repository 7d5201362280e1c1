// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"context"
	"net"
	"time"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/stream"
)

type connOptions struct {
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

// ConnOption is a functional option for configuring a [Conn].
type ConnOption func(*connOptions)

// IdleTimeout configures how long a read may wait for data before
// the read side stream fails with a [DeadlineError].
//
// Default is 2 minutes.
func IdleTimeout(d time.Duration) ConnOption {
	return func(co *connOptions) {
		co.idleTimeout = d
	}
}

// WriteTimeout configures how long a single chunk write may block
// before the write side fails with a [DeadlineError].
//
// Default is no timeout.
func WriteTimeout(d time.Duration) ConnOption {
	return func(co *connOptions) {
		co.writeTimeout = d
	}
}

// Conn adapts a [net.Conn] to chunk streams on both sides.
type Conn struct {
	conn net.Conn
	pool *chunk.Pool

	idleTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps conn so its read side can be consumed as a chunk
// publisher and its write side can consume a chunk publisher.
func NewConn(conn net.Conn, pool *chunk.Pool, opts ...ConnOption) *Conn {
	co := &connOptions{
		idleTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(co)
	}

	return &Conn{
		conn:         conn,
		pool:         pool,
		idleTimeout:  co.idleTimeout,
		writeTimeout: co.writeTimeout,
	}
}

// Read returns the read side of the connection as a chunk publisher.
// The connection is only read when the consumer has outstanding
// demand and each read is bounded by the configured idle timeout.
func (c *Conn) Read() stream.Publisher[*chunk.Chunk] {
	return ReadFrom(deadlineReader{conn: c.conn, timeout: c.idleTimeout}, c.pool)
}

// Write consumes chunks from p and writes them to the connection,
// applying backpressure to the producer as the connection's write
// buffer fills.
func (c *Conn) Write(ctx context.Context, p stream.Publisher[*chunk.Chunk]) (int64, error) {
	return WriteTo(ctx, deadlineWriter{conn: c.conn, timeout: c.writeTimeout}, p)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r deadlineReader) Read(b []byte) (int, error) {
	if r.timeout > 0 {
		err := r.conn.SetReadDeadline(time.Now().Add(r.timeout))
		if err != nil {
			return 0, err
		}
	}
	return r.conn.Read(b)
}

type deadlineWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w deadlineWriter) Write(b []byte) (int, error) {
	if w.timeout > 0 {
		err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
		if err != nil {
			return 0, err
		}
	}
	return w.conn.Write(b)
}
