// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pipeline connects transports, codecs and handlers into a
// single demand driven request processing flow.
//
// A request body is never read faster than the handler consumes it
// and a response body is never produced faster than the transport
// writes it. Backpressure propagates end to end purely through
// subscription demand, no stage blocks any other stage's goroutine.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/z5labs/riverbed/codec"
	"github.com/z5labs/riverbed/dispatch"
	"github.com/z5labs/riverbed/pkg/noop"
	"github.com/z5labs/riverbed/pkg/otelslog"
	"github.com/z5labs/riverbed/transport"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ResponseWriter is implemented by transports to accept the outcome
// of a processed request. WriteHead must be called exactly once,
// before any body bytes are written.
type ResponseWriter interface {
	WriteHead(statusCode int, header http.Header) error

	io.Writer
}

type options struct {
	logHandler slog.Handler
}

// Option defines a configuration option for [Pipeline].
type Option func(*options)

// LogHandler configures the underlying [slog.Handler] used for
// request processing logs.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Pipeline processes requests by dispatching them to handlers and
// streaming the handler's response back to the transport.
type Pipeline struct {
	dispatcher dispatch.Dispatcher

	log    *slog.Logger
	tracer trace.Tracer
}

// New initializes a [Pipeline].
func New(d dispatch.Dispatcher, opts ...Option) *Pipeline {
	o := &options{
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Pipeline{
		dispatcher: d,
		log:        otelslog.New(o.logHandler),
		tracer:     otel.Tracer("pipeline"),
	}
}

// Serve processes a single request and writes the outcome to rw.
//
// Dispatch failures, which by contract occur before any response body
// has been produced, are reported to the client as a well formed
// error response and Serve returns nil. A failure of the response
// body stream can not be reported once the head has been written; the
// body is truncated and the failure is returned so the transport can
// signal it, typically by closing the connection.
func (p *Pipeline) Serve(ctx context.Context, req *dispatch.Request, rw ResponseWriter) error {
	spanCtx, span := p.tracer.Start(ctx, "Pipeline.Serve", trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path),
	))
	defer span.End()

	resp, err := p.dispatcher.Dispatch(spanCtx, req)
	if err != nil {
		span.RecordError(err)
		p.log.ErrorContext(spanCtx, "failed to dispatch request",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		return writeError(rw, err)
	}

	err = rw.WriteHead(resp.StatusCode, resp.Header)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if resp.Body == nil {
		return nil
	}

	_, err = transport.WriteTo(spanCtx, rw, resp.Body)
	if err != nil {
		span.RecordError(err)
		p.log.ErrorContext(spanCtx, "response body failed mid stream",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// HTTPStatuser can be implemented by errors to control the status
// code [StatusOf] maps them to.
type HTTPStatuser interface {
	HTTPStatus() int
}

// StatusOf maps a dispatch failure to the HTTP status code reported
// to the client.
func StatusOf(err error) int {
	var hs HTTPStatuser
	if errors.As(err, &hs) {
		return hs.HTTPStatus()
	}

	var nfe dispatch.NotFoundError
	if errors.As(err, &nfe) {
		return http.StatusNotFound
	}

	var mnae dispatch.MethodNotAllowedError
	if errors.As(err, &mnae) {
		return http.StatusMethodNotAllowed
	}

	var de codec.DecodeError
	if errors.As(err, &de) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(rw ResponseWriter, cause error) error {
	b, err := json.Marshal(errorResponse{Error: http.StatusText(StatusOf(cause))})
	if err != nil {
		return err
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	err = rw.WriteHead(StatusOf(cause), header)
	if err != nil {
		return err
	}
	_, err = rw.Write(b)
	return err
}
