// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package codec defines bidirectional transformations between chunk
// streams and typed object streams.
//
// Codecs are boundary aware: a decoder buffers only the minimum bytes
// needed to recognize one complete record before emitting it, which
// bounds memory use independent of total body size. Both directions
// are demand driven so a codec only pulls more raw chunks when it has
// capacity, and demand, to produce more typed objects.
package codec

import (
	"fmt"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/stream"
)

// Encoder transforms a stream of typed objects into a chunk stream.
type Encoder[T any] interface {
	Encode(stream.Publisher[T]) stream.Publisher[*chunk.Chunk]
}

// EncoderFunc is a functional implementation of the [Encoder] interface.
type EncoderFunc[T any] func(stream.Publisher[T]) stream.Publisher[*chunk.Chunk]

// Encode implements the [Encoder] interface.
func (f EncoderFunc[T]) Encode(p stream.Publisher[T]) stream.Publisher[*chunk.Chunk] {
	return f(p)
}

// Decoder transforms a chunk stream into a stream of typed objects.
type Decoder[T any] interface {
	Decode(stream.Publisher[*chunk.Chunk]) stream.Publisher[T]
}

// DecoderFunc is a functional implementation of the [Decoder] interface.
type DecoderFunc[T any] func(stream.Publisher[*chunk.Chunk]) stream.Publisher[T]

// Decode implements the [Decoder] interface.
func (f DecoderFunc[T]) Decode(p stream.Publisher[*chunk.Chunk]) stream.Publisher[T] {
	return f(p)
}

// DecodeError occurs when a chunk stream does not contain a valid
// encoding of the expected record format.
type DecodeError struct {
	// Offset is the byte offset within the stream at which decoding failed.
	Offset int64

	// Record is the zero based index of the record which failed to decode.
	Record int

	Cause error
}

// Error implements the [builtin.error] interface.
func (e DecodeError) Error() string {
	return fmt.Sprintf("failed to decode record %d at offset %d: %s", e.Record, e.Offset, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DecodeError) Unwrap() error {
	return e.Cause
}

// EncodeError occurs when a typed object can not be encoded.
type EncodeError struct {
	// Record is the zero based index of the record which failed to encode.
	Record int

	Cause error
}

// Error implements the [builtin.error] interface.
func (e EncodeError) Error() string {
	return fmt.Sprintf("failed to encode record %d: %s", e.Record, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e EncodeError) Unwrap() error {
	return e.Cause
}
