// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingReader counts how many read calls have been made against
// the underlying reader.
type countingReader struct {
	r     io.Reader
	reads atomic.Int32
}

func (cr *countingReader) Read(b []byte) (int, error) {
	cr.reads.Add(1)
	return cr.r.Read(b)
}

func TestReadFrom(t *testing.T) {
	t.Run("will defer reading", func(t *testing.T) {
		t.Run("if the consumer has not signalled any demand", func(t *testing.T) {
			cr := &countingReader{r: strings.NewReader("hello")}
			p := ReadFrom(cr, chunk.NewPool(4))

			pl := stream.NewPuller(context.Background(), p)

			// Pull exactly one chunk then stop. With a chunk size of 4
			// the reader holds more data but no further reads may happen.
			c, ok, err := pl.Next(context.Background())
			require.Nil(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("hell"), c.Bytes())
			c.Release()

			pl.Cancel()

			if !assert.LessOrEqual(t, cr.reads.Load(), int32(2)) {
				return
			}
		})
	})

	t.Run("will complete the stream", func(t *testing.T) {
		t.Run("if the reader reaches EOF", func(t *testing.T) {
			p := ReadFrom(strings.NewReader("hello world"), chunk.NewPool(4))

			var buf bytes.Buffer
			err := stream.ForEach(context.Background(), p, func(c *chunk.Chunk) error {
				buf.Write(c.Bytes())
				c.Release()
				return nil
			})

			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "hello world", buf.String()) {
				return
			}
		})

		t.Run("if the reader is empty", func(t *testing.T) {
			p := ReadFrom(strings.NewReader(""), chunk.NewPool(4))

			cs, err := stream.Collect(context.Background(), p)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Empty(t, cs) {
				return
			}
		})
	})

	t.Run("will fail the stream", func(t *testing.T) {
		t.Run("if the reader fails", func(t *testing.T) {
			readErr := errors.New("read failed")
			p := ReadFrom(io.MultiReader(strings.NewReader("hi"), failReader{err: readErr}), chunk.NewPool(4))

			var buf bytes.Buffer
			err := stream.ForEach(context.Background(), p, func(c *chunk.Chunk) error {
				buf.Write(c.Bytes())
				c.Release()
				return nil
			})

			var re ReadError
			if !assert.ErrorAs(t, err, &re) {
				return
			}
			if !assert.ErrorIs(t, err, readErr) {
				return
			}
			if !assert.Equal(t, "hi", buf.String()) {
				return
			}
		})

		t.Run("if the reader times out", func(t *testing.T) {
			p := ReadFrom(failReader{err: timeoutError{}}, chunk.NewPool(4))

			err := stream.ForEach(context.Background(), p, func(c *chunk.Chunk) error {
				c.Release()
				return nil
			})

			var de DeadlineError
			if !assert.ErrorAs(t, err, &de) {
				return
			}
		})
	})
}

type failReader struct {
	err error
}

func (r failReader) Read(b []byte) (int, error) {
	return 0, r.err
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestWriteTo(t *testing.T) {
	t.Run("will write all chunks in order", func(t *testing.T) {
		t.Run("if the publisher completes", func(t *testing.T) {
			p := stream.Just(
				chunk.FromBytes([]byte("hello")),
				chunk.FromBytes([]byte(" ")),
				chunk.FromBytes([]byte("world")),
			)

			var buf bytes.Buffer
			n, err := WriteTo(context.Background(), &buf, p)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, int64(11), n) {
				return
			}
			if !assert.Equal(t, "hello world", buf.String()) {
				return
			}
		})
	})

	t.Run("will release every chunk", func(t *testing.T) {
		t.Run("if the chunks are pooled", func(t *testing.T) {
			pool := chunk.NewPool(8)

			c := pool.Copy([]byte("hello"))

			var buf bytes.Buffer
			_, err := WriteTo(context.Background(), &buf, stream.Just(c))
			require.Nil(t, err)

			// A released chunk reports no remaining valid bytes.
			if !assert.Equal(t, 0, c.Len()) {
				return
			}
		})
	})

	t.Run("will return the write failure", func(t *testing.T) {
		t.Run("if the writer fails", func(t *testing.T) {
			writeErr := errors.New("write failed")

			p := stream.Just(chunk.FromBytes([]byte("hello")))
			_, err := WriteTo(context.Background(), failWriter{err: writeErr}, p)

			var we WriteError
			if !assert.ErrorAs(t, err, &we) {
				return
			}
			if !assert.ErrorIs(t, err, writeErr) {
				return
			}
		})
	})

	t.Run("will return the stream failure", func(t *testing.T) {
		t.Run("if the publisher fails", func(t *testing.T) {
			streamErr := errors.New("stream failed")

			var buf bytes.Buffer
			_, err := WriteTo(context.Background(), &buf, stream.Fail[*chunk.Chunk](streamErr))
			if !assert.ErrorIs(t, err, streamErr) {
				return
			}
		})
	})
}

type failWriter struct {
	err error
}

func (w failWriter) Write(b []byte) (int, error) {
	return 0, w.err
}
