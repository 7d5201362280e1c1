// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package transport

import (
	"context"
	"io"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/stream"
)

// WriteTo consumes chunks from p and writes them to w.
//
// Demand is signalled one chunk at a time and only after the previous
// write has returned, so a writer which blocks on a full buffer
// applies backpressure to the chunk producer. Every received chunk is
// released once written, including on failure. The number of bytes
// written is returned along with any stream or write failure.
func WriteTo(ctx context.Context, w io.Writer, p stream.Publisher[*chunk.Chunk]) (int64, error) {
	var written int64

	pl := stream.NewPuller(ctx, p, stream.ReleaseDropped(func(c *chunk.Chunk) {
		c.Release()
	}))
	defer pl.Cancel()

	for {
		c, ok, err := pl.Next(ctx)
		if !ok {
			return written, err
		}

		n, err := w.Write(c.Bytes())
		written += int64(n)
		c.Release()

		if err != nil {
			return written, classifyWriteError(err)
		}
	}
}
