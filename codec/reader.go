// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package codec

import (
	"context"
	"io"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/stream"
)

// Reader adapts a chunk publisher into an [io.Reader]. It pulls one
// chunk at a time, on demand, and holds at most one chunk in memory.
// Each chunk is released as soon as it has been fully read.
type Reader struct {
	ctx context.Context
	pl  *stream.Puller[*chunk.Chunk]

	cur *chunk.Chunk
	off int
}

// NewReader subscribes to p and returns a [Reader] for consuming
// the stream's bytes sequentially.
func NewReader(ctx context.Context, p stream.Publisher[*chunk.Chunk]) *Reader {
	return &Reader{
		ctx: ctx,
		pl: stream.NewPuller(ctx, p, stream.ReleaseDropped(func(c *chunk.Chunk) {
			c.Release()
		})),
	}
}

// Read implements the [io.Reader] interface. Stream completion is
// reported as [io.EOF] and stream failure as the failure itself.
func (r *Reader) Read(b []byte) (int, error) {
	for r.cur == nil {
		c, ok, err := r.pl.Next(r.ctx)
		if !ok {
			if err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		if c.Len() == 0 {
			c.Release()
			continue
		}
		r.cur = c
		r.off = 0
	}

	n := copy(b, r.cur.Bytes()[r.off:])
	r.off += n
	if r.off == r.cur.Len() {
		r.cur.Release()
		r.cur = nil
	}
	return n, nil
}

// Close cancels the underlying subscription and releases any
// partially read chunk.
func (r *Reader) Close() error {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	r.pl.Cancel()
	return nil
}
