// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package endpoint provides typed adapters between application
// handlers and the untyped [dispatch.Handler] contract.
//
// Codecs are bound at construction time so handlers only ever see
// typed values. Request decoding and response encoding are both
// demand driven, which means a streaming handler's output is only
// produced as fast as the transport can write it.
package endpoint

import (
	"context"
	"net/http"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/codec"
	"github.com/z5labs/riverbed/dispatch"
	"github.com/z5labs/riverbed/stream"
)

// Empty can be used as the request type for endpoints which expect no body.
type Empty struct{}

// Handler is a unary handler which consumes and produces a single value.
type Handler[Req, Resp any] interface {
	Handle(context.Context, Req) (Resp, error)
}

// HandlerFunc is a functional implementation of the [Handler] interface.
type HandlerFunc[Req, Resp any] func(context.Context, Req) (Resp, error)

// Handle implements the [Handler] interface.
func (f HandlerFunc[Req, Resp]) Handle(ctx context.Context, req Req) (Resp, error) {
	return f(ctx, req)
}

// StreamHandler consumes a stream of request values and produces a
// stream of response values. The returned publisher must honor its
// subscriber's demand; publishers built with [stream.New] do.
type StreamHandler[Req, Resp any] interface {
	HandleStream(context.Context, stream.Publisher[Req]) stream.Publisher[Resp]
}

// StreamHandlerFunc is a functional implementation of the [StreamHandler] interface.
type StreamHandlerFunc[Req, Resp any] func(context.Context, stream.Publisher[Req]) stream.Publisher[Resp]

// HandleStream implements the [StreamHandler] interface.
func (f StreamHandlerFunc[Req, Resp]) HandleStream(ctx context.Context, p stream.Publisher[Req]) stream.Publisher[Resp] {
	return f(ctx, p)
}

var defaultStatusCode = http.StatusOK

type options struct {
	statusCode  int
	contentType string
	headers     http.Header
}

// Option defines a configuration option for the adapters in this package.
type Option func(*options)

// StatusCode overrides the status code reported on success.
func StatusCode(statusCode int) Option {
	return func(o *options) {
		o.statusCode = statusCode
	}
}

// ContentType sets the Content-Type header of successful responses.
func ContentType(contentType string) Option {
	return func(o *options) {
		o.contentType = contentType
	}
}

// Header sets a response header on successful responses.
func Header(key, value string) Option {
	return func(o *options) {
		o.headers.Set(key, value)
	}
}

// Unary returns a [dispatch.Handler] which decodes at most one
// request record, invokes h with it and encodes the single response
// record. If the request body holds no record the handler is invoked
// with the zero value of Req. Any remaining request body is cancelled
// once the first record has been decoded.
func Unary[Req, Resp any](dec codec.Decoder[Req], enc codec.Encoder[Resp], h Handler[Req, Resp], opts ...Option) dispatch.Handler {
	o := newOptions(opts...)

	return dispatch.HandlerFunc(func(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
		pl := stream.NewPuller(ctx, dec.Decode(req.Body))

		v, ok, err := pl.Next(ctx)
		pl.Cancel()
		if err != nil {
			return nil, err
		}
		if !ok {
			var zero Req
			v = zero
		}

		resp, err := h.Handle(ctx, v)
		if err != nil {
			return nil, err
		}

		return o.response(enc.Encode(stream.Just(resp))), nil
	})
}

// Stream returns a [dispatch.Handler] which decodes the request body
// into a stream of records, hands the stream to h and encodes the
// stream h returns as the response body. Records flow through one at
// a time, pulled by downstream demand.
func Stream[Req, Resp any](dec codec.Decoder[Req], enc codec.Encoder[Resp], h StreamHandler[Req, Resp], opts ...Option) dispatch.Handler {
	o := newOptions(opts...)

	return dispatch.HandlerFunc(func(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
		resps := h.HandleStream(ctx, dec.Decode(req.Body))

		return o.response(enc.Encode(resps)), nil
	})
}

func newOptions(opts ...Option) *options {
	o := &options{
		statusCode: defaultStatusCode,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) response(body stream.Publisher[*chunk.Chunk]) *dispatch.Response {
	header := make(http.Header)
	for k, vs := range o.headers {
		header[k] = vs
	}
	if o.contentType != "" {
		header.Set("Content-Type", o.contentType)
	}
	return &dispatch.Response{
		StatusCode: o.statusCode,
		Header:     header,
		Body:       body,
	}
}
