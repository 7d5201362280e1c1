// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package dispatch resolves incoming requests to application handlers.
package dispatch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/stream"
)

// Request describes a single incoming request. The body is a chunk
// stream which is only read from the underlying transport as the
// handler, or the codec in front of it, signals demand.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   stream.Publisher[*chunk.Chunk]

	resolved *http.Request
}

// PathValue returns the value for the named path wildcard matched
// during routing. It returns the empty string before routing or if
// the pattern contains no such wildcard.
func (r *Request) PathValue(name string) string {
	if r.resolved == nil {
		return ""
	}
	return r.resolved.PathValue(name)
}

// Response describes the outcome of handling a [Request]. A nil Body
// means the response has no body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       stream.Publisher[*chunk.Chunk]
}

// Handler represents anything which can process a [Request].
//
// A handler which fails before producing any output should return an
// error and a nil [Response] so callers can still produce a well
// formed error response. Failures after the response body stream has
// begun surface as a failure of that stream instead.
type Handler interface {
	Handle(context.Context, *Request) (*Response, error)
}

// HandlerFunc is a functional implementation of the [Handler] interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Dispatcher resolves a request to a handler and returns the outcome
// of invoking it.
type Dispatcher interface {
	Dispatch(context.Context, *Request) (*Response, error)
}

// NotFoundError occurs when no handler has been registered for a
// request's path. No handler is invoked in this case.
type NotFoundError struct {
	Method string
	Path   string
}

// Error implements the [builtin.error] interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for: %s %s", e.Method, e.Path)
}

// MethodNotAllowedError occurs when a path is known but no handler
// has been registered for the request's method.
type MethodNotAllowedError struct {
	Method string
	Path   string
}

// Error implements the [builtin.error] interface.
func (e MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method not allowed for: %s %s", e.Method, e.Path)
}

// HandlerError occurs when a handler fails, or panics, before
// producing any output.
type HandlerError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e HandlerError) Error() string {
	return fmt.Sprintf("handler failed before producing output: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e HandlerError) Unwrap() error {
	return e.Cause
}
