// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package chunk provides pooled byte buffers for streaming bodies.
//
// A [Chunk] is writable by the stage that produced it and read-only
// for every stage it is handed to afterwards. Once the final consumer
// is done with a chunk it must call [Chunk.Release] to return the
// underlying buffer to its owning [Pool].
package chunk

import (
	"sync"
	"sync/atomic"
)

// Chunk is a contiguous range of bytes flowing through a stream.
type Chunk struct {
	buf      []byte
	length   int
	pool     *Pool
	released atomic.Bool
}

// FromBytes wraps b in an unpooled [Chunk]. Releasing it is a no-op
// but still required by the streaming contract.
func FromBytes(b []byte) *Chunk {
	return &Chunk{
		buf:    b,
		length: len(b),
	}
}

// Bytes returns the valid byte range of the chunk. Consumers must
// treat the returned slice as read-only and must not retain it past
// [Chunk.Release].
func (c *Chunk) Bytes() []byte {
	if c.released.Load() {
		return nil
	}
	return c.buf[:c.length]
}

// Len returns the number of valid bytes in the chunk.
func (c *Chunk) Len() int {
	if c.released.Load() {
		return 0
	}
	return c.length
}

// Writable returns the full capacity of the chunk for the producing
// stage to fill. It must not be called once the chunk has been handed
// to a consumer.
func (c *Chunk) Writable() []byte {
	return c.buf
}

// SetLen marks the first n bytes of the chunk as valid. It is part
// of the producer side API, alongside [Chunk.Writable].
func (c *Chunk) SetLen(n int) {
	if n < 0 || n > len(c.buf) {
		panic("chunk: length out of range")
	}
	c.length = n
}

// Release returns the chunk's buffer to its owning pool. Releasing
// more than once is a no-op so buggy double releases cannot corrupt
// the pool by handing the same buffer to two producers.
func (c *Chunk) Release() {
	if c == nil {
		return
	}
	if !c.released.CompareAndSwap(false, true) {
		return
	}
	if c.pool == nil {
		return
	}
	c.pool.put(c)
}

// Pool hands out fixed capacity chunks and recycles released ones.
// It is safe for concurrent use: chunks may be acquired by one
// goroutine and released by another.
type Pool struct {
	chunkSize int
	pool      sync.Pool
}

// DefaultChunkSize is the chunk capacity used by [NewPool] when
// given a non-positive size.
const DefaultChunkSize = 32 * 1024

// NewPool initializes a [Pool] which hands out chunks with the
// given capacity.
func NewPool(chunkSize int) *Pool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	p := &Pool{
		chunkSize: chunkSize,
	}
	p.pool.New = func() any {
		return &Chunk{
			buf:  make([]byte, chunkSize),
			pool: p,
		}
	}
	return p
}

// ChunkSize returns the capacity of chunks handed out by this pool.
func (p *Pool) ChunkSize() int {
	return p.chunkSize
}

// Get returns a zero length, writable chunk owned by this pool.
func (p *Pool) Get() *Chunk {
	c := p.pool.Get().(*Chunk)
	c.length = 0
	c.released.Store(false)
	return c
}

// Copy returns a chunk containing a copy of b. If b fits within the
// pool's chunk size the returned chunk is pooled, otherwise a one-off
// buffer of exactly len(b) is allocated.
func (p *Pool) Copy(b []byte) *Chunk {
	if len(b) > p.chunkSize {
		c := FromBytes(make([]byte, len(b)))
		copy(c.buf, b)
		return c
	}

	c := p.Get()
	n := copy(c.buf, b)
	c.length = n
	return c
}

func (p *Pool) put(c *Chunk) {
	if cap(c.buf) != p.chunkSize {
		return
	}
	p.pool.Put(c)
}
