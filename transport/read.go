// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"context"
	"errors"
	"io"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/stream"
)

// ReadFrom exposes r as a publisher of chunks drawn from pool.
//
// Each read waits for consumer demand first so no data is pulled
// from r ahead of what the consumer asked for. An [io.EOF] from r
// completes the stream; any other failure fails it with a
// [ReadError] or, for timeouts, a [DeadlineError].
func ReadFrom(r io.Reader, pool *chunk.Pool) stream.Publisher[*chunk.Chunk] {
	return stream.New(func(ctx context.Context, e *stream.Emitter[*chunk.Chunk]) error {
		for {
			err := e.Reserve(ctx)
			if err != nil {
				return err
			}

			// A (0, nil) read must not consume the reservation,
			// otherwise demand is spent without delivering a chunk.
			for {
				c := pool.Get()
				n, err := r.Read(c.Writable())

				if e.Cancelled() {
					c.Release()
					return stream.ErrCancelled
				}

				if n > 0 {
					c.SetLen(n)
					e.Emit(c)
				} else {
					c.Release()
				}

				if err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return classifyReadError(err)
				}
				if n > 0 {
					break
				}
			}
		}
	})
}
