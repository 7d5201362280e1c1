// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package transport bridges raw I/O to demand driven chunk streams.
//
// The read side exposes any [io.Reader] as a [stream.Publisher] of
// chunks where the underlying read is deferred until the consumer has
// signalled demand. The write side consumes a chunk stream and only
// requests further chunks as the underlying [io.Writer] accepts
// writes, so a full socket buffer throttles the producer all the way
// back to the source.
package transport

import (
	"errors"
	"fmt"
	"net"
)

// ReadError occurs when the underlying reader of a read side
// adapter fails.
type ReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ReadError) Error() string {
	return fmt.Sprintf("failed to read from transport: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ReadError) Unwrap() error {
	return e.Cause
}

// WriteError occurs when the underlying writer of a write side
// adapter fails.
type WriteError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e WriteError) Error() string {
	return fmt.Sprintf("failed to write to transport: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WriteError) Unwrap() error {
	return e.Cause
}

// DeadlineError occurs when an I/O deadline, such as an idle
// connection timeout, elapses. Timeouts always surface as stream
// failures instead of hanging the stream indefinitely.
type DeadlineError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e DeadlineError) Error() string {
	return fmt.Sprintf("transport deadline exceeded: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DeadlineError) Unwrap() error {
	return e.Cause
}

func classifyReadError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return DeadlineError{Cause: err}
	}
	return ReadError{Cause: err}
}

func classifyWriteError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return DeadlineError{Cause: err}
	}
	return WriteError{Cause: err}
}
