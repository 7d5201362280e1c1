// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package healthcheck exposes health metrics as dispatch handlers.
package healthcheck

import (
	"context"
	"net/http"

	"github.com/z5labs/riverbed/dispatch"
	"github.com/z5labs/riverbed/pkg/health"
)

// NewHandler wraps a health.Metric into a [dispatch.Handler].
//
// If m.Healthy returns true, then HTTP status code 200 is
// returned, else, HTTP status code 503 is returned.
func NewHandler(m health.Metric) dispatch.Handler {
	if h, ok := m.(dispatch.Handler); ok {
		return h
	}
	return dispatch.HandlerFunc(func(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
		if m.Healthy(ctx) {
			return &dispatch.Response{StatusCode: http.StatusOK}, nil
		}
		return &dispatch.Response{StatusCode: http.StatusServiceUnavailable}, nil
	})
}
