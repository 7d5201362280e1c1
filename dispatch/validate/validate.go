// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package validate provides request validation middleware for
// dispatch handlers.
package validate

import (
	"context"
	"fmt"

	"github.com/z5labs/riverbed/dispatch"
)

// Validator represents a request validator.
type Validator interface {
	Validate(*dispatch.Request) error
}

// ValidatorFunc implements Validator for funcs.
type ValidatorFunc func(*dispatch.Request) error

// Validate implements the Validator interface.
func (f ValidatorFunc) Validate(req *dispatch.Request) error {
	return f(req)
}

// InvalidRequestError occurs when a request fails validation before
// being handed to the wrapped handler.
type InvalidRequestError struct {
	Reason string
}

// Error implements the [builtin.error] interface.
func (e InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// HTTPStatus reports the failure as a 400 Bad Request.
func (e InvalidRequestError) HTTPStatus() int {
	return 400
}

// Handler is a [dispatch.Handler] which applies request validators
// before passing the request to a wrapped handler. Validation runs
// before any of the request body has been read.
type Handler struct {
	validators []Validator
	base       dispatch.Handler
}

// Request allows you to wrap a given [dispatch.Handler] with request validators.
func Request(h dispatch.Handler, validators ...Validator) *Handler {
	return &Handler{
		validators: validators,
		base:       h,
	}
}

// Handle implements the [dispatch.Handler] interface.
func (h *Handler) Handle(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
	for _, validator := range h.validators {
		err := validator.Validate(req)
		if err != nil {
			return nil, err
		}
	}
	return h.base.Handle(ctx, req)
}

// RequireHeaders validates that the incoming request carries, at
// minimum, the headers given by names.
func RequireHeaders(names ...string) Validator {
	return ValidatorFunc(func(req *dispatch.Request) error {
		for _, name := range names {
			if req.Header.Get(name) == "" {
				return InvalidRequestError{Reason: fmt.Sprintf("missing header: %s", name)}
			}
		}
		return nil
	})
}

// ContentType validates the request's Content-Type header matches
// one of the given values.
func ContentType(contentTypes ...string) Validator {
	return ValidatorFunc(func(req *dispatch.Request) error {
		ct := req.Header.Get("Content-Type")
		for _, want := range contentTypes {
			if ct == want {
				return nil
			}
		}
		return InvalidRequestError{Reason: fmt.Sprintf("unsupported content type: %s", ct)}
	})
}
