// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/dispatch"
	"github.com/z5labs/riverbed/pipeline"
	"github.com/z5labs/riverbed/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntime_Run(t *testing.T) {
	t.Run("will stop gracefully", func(t *testing.T) {
		t.Run("if the context is cancelled", func(t *testing.T) {
			rt := New("127.0.0.1:0", pipeline.New(dispatch.NewRouter()))

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() {
				errCh <- rt.Run(ctx)
			}()

			cancel()

			select {
			case err := <-errCh:
				if !assert.Nil(t, err) {
					return
				}
			case <-time.After(time.Second):
				assert.Fail(t, "runtime did not stop after cancellation")
			}
		})
	})
}

func newTestServer(t *testing.T, router *dispatch.Router) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(&handler{
		pipe: pipeline.New(router),
		pool: chunk.NewPool(chunk.DefaultChunkSize),
	})
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_ServeHTTP(t *testing.T) {
	t.Run("will stream the response body", func(t *testing.T) {
		t.Run("if the handler succeeds", func(t *testing.T) {
			router := dispatch.NewRouter()
			router.Handle(dispatch.MethodGet, "/greet", dispatch.HandlerFunc(func(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
				return &dispatch.Response{
					StatusCode: http.StatusOK,
					Body: stream.Just(
						chunk.FromBytes([]byte("hello")),
						chunk.FromBytes([]byte(" world")),
					),
				}, nil
			}))

			srv := newTestServer(t, router)

			resp, err := http.Get(srv.URL + "/greet")
			require.Nil(t, err)
			defer resp.Body.Close()

			b, err := io.ReadAll(resp.Body)
			require.Nil(t, err)
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "hello world", string(b)) {
				return
			}
		})

		t.Run("if the handler echoes the request body", func(t *testing.T) {
			router := dispatch.NewRouter()
			router.Handle(dispatch.MethodPost, "/echo", dispatch.HandlerFunc(func(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
				return &dispatch.Response{
					StatusCode: http.StatusOK,
					Body:       req.Body,
				}, nil
			}))

			srv := newTestServer(t, router)

			resp, err := http.Post(srv.URL+"/echo", "text/plain", strings.NewReader("hello"))
			require.Nil(t, err)
			defer resp.Body.Close()

			b, err := io.ReadAll(resp.Body)
			require.Nil(t, err)
			if !assert.Equal(t, "hello", string(b)) {
				return
			}
		})
	})

	t.Run("will write an error response", func(t *testing.T) {
		t.Run("if no handler matches the request", func(t *testing.T) {
			srv := newTestServer(t, dispatch.NewRouter())

			resp, err := http.Get(srv.URL + "/nothing")
			require.Nil(t, err)
			defer resp.Body.Close()

			b, err := io.ReadAll(resp.Body)
			require.Nil(t, err)
			if !assert.Equal(t, http.StatusNotFound, resp.StatusCode) {
				return
			}
			if !assert.JSONEq(t, `{"error":"Not Found"}`, string(b)) {
				return
			}
		})
	})

	t.Run("will abort the connection", func(t *testing.T) {
		t.Run("if the response body fails mid stream", func(t *testing.T) {
			streamErr := errors.New("stream failed")

			router := dispatch.NewRouter()
			router.Handle(dispatch.MethodGet, "/greet", dispatch.HandlerFunc(func(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
				body := stream.New(func(ctx context.Context, e *stream.Emitter[*chunk.Chunk]) error {
					err := e.Next(ctx, chunk.FromBytes([]byte("partial")))
					if err != nil {
						return err
					}
					return streamErr
				})
				return &dispatch.Response{StatusCode: http.StatusOK, Body: body}, nil
			}))

			srv := newTestServer(t, router)

			resp, err := http.Get(srv.URL + "/greet")
			require.Nil(t, err)
			defer resp.Body.Close()

			// The head carries a success status. The failure can only
			// surface as a truncated body.
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			_, err = io.ReadAll(resp.Body)
			if !assert.NotNil(t, err) {
				return
			}
		})
	})

	t.Run("will defer reading the request body", func(t *testing.T) {
		t.Run("if the handler never subscribes to it", func(t *testing.T) {
			router := dispatch.NewRouter()
			router.Handle(dispatch.MethodPost, "/drop", dispatch.HandlerFunc(func(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
				return &dispatch.Response{StatusCode: http.StatusAccepted}, nil
			}))

			srv := newTestServer(t, router)

			resp, err := http.Post(srv.URL+"/drop", "text/plain", strings.NewReader("ignored"))
			require.Nil(t, err)
			defer resp.Body.Close()

			if !assert.Equal(t, http.StatusAccepted, resp.StatusCode) {
				return
			}
		})
	})
}
