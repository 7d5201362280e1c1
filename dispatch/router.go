// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/z5labs/riverbed/internal/try"
)

// Method defines an HTTP method which handlers can be registered for.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPut    Method = http.MethodPut
	MethodPost   Method = http.MethodPost
	MethodDelete Method = http.MethodDelete
)

// RouterOption defines a configuration option for [Router].
type RouterOption func(*Router)

// NotFoundHandler will register the given [Handler] to handle any
// requests that do not match any other method-pattern combinations.
// Without it such requests resolve to a [NotFoundError].
func NotFoundHandler(h Handler) RouterOption {
	return func(rt *Router) {
		rt.notFound = h
	}
}

// MethodNotAllowedHandler will register the given [Handler] to handle
// any requests whose method does not match the methods registered to
// a pattern. Without it such requests resolve to a [MethodNotAllowedError].
func MethodNotAllowedHandler(h Handler) RouterOption {
	return func(rt *Router) {
		rt.methodNotAllowed = h
	}
}

// Router resolves requests to registered [Handler]s by method and
// path pattern. Pattern syntax, including wildcards, follows
// [http.ServeMux]. Resolution never invokes a handler for an
// unmatched request; it reports [NotFoundError] or
// [MethodNotAllowedError] instead.
type Router struct {
	mux *http.ServeMux

	initFallbacksOnce sync.Once
	notFound          Handler
	methodNotAllowed  Handler

	pathMethods map[string][]Method
}

// NewRouter initializes a [Router] backed by the standard [http.ServeMux].
func NewRouter(opts ...RouterOption) *Router {
	rt := &Router{
		mux:         http.NewServeMux(),
		pathMethods: make(map[string][]Method),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handle will register the [Handler] for the given method and pattern.
// The method and pattern are formatted together as "method pattern"
// when calling [http.ServeMux.Handle].
func (rt *Router) Handle(method Method, pattern string, h Handler) {
	rt.pathMethods[pattern] = append(rt.pathMethods[pattern], method)
	rt.mux.Handle(fmt.Sprintf("%s %s", method, pattern), routeHandler{h: h})

	// {$} is a special case where we only want to exact match the path pattern.
	if strings.HasSuffix(pattern, "{$}") {
		return
	}

	if strings.HasSuffix(pattern, "/") {
		withoutTrailingSlash := pattern[:len(pattern)-1]
		if len(withoutTrailingSlash) == 0 {
			return
		}

		rt.pathMethods[withoutTrailingSlash] = append(rt.pathMethods[withoutTrailingSlash], method)
		rt.mux.Handle(fmt.Sprintf("%s %s", method, withoutTrailingSlash), routeHandler{h: h})
		return
	}

	// if the end of the path contains the "..." wildcard segment
	// then we can't add a "/" to it since "..." should not be followed
	// by a "/", per the http.ServeMux docs.
	base := path.Base(pattern)
	if strings.Contains(base, "...") {
		return
	}

	withTrailingSlash := pattern + "/"
	rt.pathMethods[withTrailingSlash] = append(rt.pathMethods[withTrailingSlash], method)
	rt.mux.Handle(fmt.Sprintf("%s %s", method, withTrailingSlash), routeHandler{h: h})
}

// Dispatch implements the [Dispatcher] interface. The request is
// resolved against the registered patterns and, on a match, handed to
// the matched handler. Handler panics are recovered and reported as a
// [HandlerError], as are plain handler failures.
func (rt *Router) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	rt.initFallbacksOnce.Do(rt.registerFallbackHandlers)

	res := &resolution{}
	rt.mux.ServeHTTP(res, &http.Request{
		Method: req.Method,
		URL:    &url.URL{Path: req.Path},
	})
	if res.err != nil {
		return nil, res.err
	}
	if res.handler == nil {
		return nil, NotFoundError{Method: req.Method, Path: req.Path}
	}

	req.resolved = res.request

	resp, err := invoke(ctx, res.handler, req)
	if err != nil {
		return nil, HandlerError{Cause: err}
	}
	if resp == nil {
		resp = &Response{}
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	return resp, nil
}

func invoke(ctx context.Context, h Handler, req *Request) (_ *Response, err error) {
	defer try.Recover(&err)

	return h.Handle(ctx, req)
}

func (rt *Router) registerFallbackHandlers() {
	fs := []func(*http.ServeMux){
		registerNotFoundHandler(rt.notFound),
		registerMethodNotAllowedHandler(rt.methodNotAllowed, rt.pathMethods),
	}
	for _, f := range fs {
		f(rt.mux)
	}
}

func registerNotFoundHandler(h Handler) func(*http.ServeMux) {
	return func(mux *http.ServeMux) {
		fallback := fallbackHandler{h: h}
		if h == nil {
			fallback.errFunc = func(r *http.Request) error {
				return NotFoundError{Method: r.Method, Path: r.URL.Path}
			}
		}
		mux.Handle("/{path...}", fallback)
	}
}

func registerMethodNotAllowedHandler(h Handler, pathMethods map[string][]Method) func(*http.ServeMux) {
	return func(mux *http.ServeMux) {
		if len(pathMethods) == 0 {
			return
		}

		fallback := fallbackHandler{h: h}
		if h == nil {
			fallback.errFunc = func(r *http.Request) error {
				return MethodNotAllowedError{Method: r.Method, Path: r.URL.Path}
			}
		}

		// this list is pulled from the OpenAPI v3 Path Item Object documentation.
		supportedMethods := []Method{
			http.MethodGet,
			http.MethodPut,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead,
			http.MethodPatch,
			http.MethodTrace,
		}

		for path, methods := range pathMethods {
			unsupportedMethods := diffSets(supportedMethods, methods)
			for _, method := range unsupportedMethods {
				mux.Handle(fmt.Sprintf("%s %s", method, path), fallback)
			}
		}
	}
}

func diffSets[T comparable](xs, ys []T) []T {
	zs := make([]T, 0, len(xs))
	for _, x := range xs {
		if slices.Contains(ys, x) {
			continue
		}
		zs = append(zs, x)
	}
	return zs
}

// resolution records the outcome of matching a request against the
// underlying [http.ServeMux] without writing anything anywhere.
type resolution struct {
	handler Handler
	request *http.Request
	err     error

	header http.Header
}

// Header implements the [http.ResponseWriter] interface.
func (res *resolution) Header() http.Header {
	if res.header == nil {
		res.header = make(http.Header)
	}
	return res.header
}

// Write implements the [http.ResponseWriter] interface.
func (res *resolution) Write(b []byte) (int, error) {
	return len(b), nil
}

// WriteHeader implements the [http.ResponseWriter] interface.
func (res *resolution) WriteHeader(statusCode int) {}

type routeHandler struct {
	h Handler
}

// ServeHTTP implements the [http.Handler] interface.
func (rh routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := w.(*resolution)
	res.handler = rh.h
	res.request = r
}

type fallbackHandler struct {
	h       Handler
	errFunc func(*http.Request) error
}

// ServeHTTP implements the [http.Handler] interface.
func (fh fallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := w.(*resolution)
	if fh.h != nil {
		res.handler = fh.h
		res.request = r
		return
	}
	res.err = fh.errFunc(r)
}
