// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package jsonstream provides streaming JSON codecs.
//
// In the default mode records are the elements of a single top level
// JSON array. Elements are decoded, and encoded, one at a time so a
// body of any size flows through in bounded memory. The delimited
// mode instead treats the stream as a sequence of standalone JSON
// values (e.g. NDJSON).
package jsonstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/codec"
	"github.com/z5labs/riverbed/stream"
)

type options struct {
	delimited bool
}

// Option is a functional option for configuring codecs in this package.
type Option func(*options)

// Delimited configures the codec for standalone, whitespace delimited
// JSON values instead of a single top level array.
func Delimited() Option {
	return func(o *options) {
		o.delimited = true
	}
}

// Decoder decodes a chunk stream of JSON into typed records.
type Decoder[T any] struct {
	delimited bool
}

// NewDecoder initializes a [Decoder].
func NewDecoder[T any](opts ...Option) Decoder[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return Decoder[T]{
		delimited: o.delimited,
	}
}

// Decode implements the [codec.Decoder] interface.
func (d Decoder[T]) Decode(src stream.Publisher[*chunk.Chunk]) stream.Publisher[T] {
	return stream.New(func(ctx context.Context, e *stream.Emitter[T]) (err error) {
		r := codec.NewReader(ctx, src)
		defer func() {
			closeErr := r.Close()
			err = errors.Join(err, closeErr)
		}()

		dec := json.NewDecoder(r)
		if d.delimited {
			return decodeDelimited(ctx, e, dec)
		}
		return decodeArray(ctx, e, dec)
	})
}

func decodeArray[T any](ctx context.Context, e *stream.Emitter[T], dec *json.Decoder) error {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		// An empty body decodes as an empty stream.
		return nil
	}
	if err != nil {
		return codec.DecodeError{Offset: dec.InputOffset(), Cause: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return codec.DecodeError{
			Offset: dec.InputOffset(),
			Cause:  fmt.Errorf("expected JSON array, got token: %v", tok),
		}
	}

	record := 0
	for {
		err := e.Reserve(ctx)
		if err != nil {
			return err
		}

		if !dec.More() {
			break
		}

		var v T
		err = dec.Decode(&v)
		if err != nil {
			return codec.DecodeError{Offset: dec.InputOffset(), Record: record, Cause: err}
		}

		e.Emit(v)
		record++
	}

	_, err = dec.Token()
	if err != nil {
		return codec.DecodeError{Offset: dec.InputOffset(), Record: record, Cause: err}
	}
	return nil
}

func decodeDelimited[T any](ctx context.Context, e *stream.Emitter[T], dec *json.Decoder) error {
	record := 0
	for {
		err := e.Reserve(ctx)
		if err != nil {
			return err
		}

		var v T
		err = dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return codec.DecodeError{Offset: dec.InputOffset(), Record: record, Cause: err}
		}

		e.Emit(v)
		record++
	}
}

// Encoder encodes typed records as a chunk stream of JSON.
type Encoder[T any] struct {
	delimited bool
}

// NewEncoder initializes an [Encoder].
func NewEncoder[T any](opts ...Option) Encoder[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return Encoder[T]{
		delimited: o.delimited,
	}
}

// Encode implements the [codec.Encoder] interface. Records are pulled
// from src one at a time and only when the chunk consumer has demand,
// so upstream production is throttled by the downstream writer.
func (enc Encoder[T]) Encode(src stream.Publisher[T]) stream.Publisher[*chunk.Chunk] {
	return stream.New(func(ctx context.Context, e *stream.Emitter[*chunk.Chunk]) error {
		pl := stream.NewPuller(ctx, src)
		defer pl.Cancel()

		record := 0
		for {
			err := e.Reserve(ctx)
			if err != nil {
				return err
			}

			v, ok, err := pl.Next(ctx)
			if !ok {
				if err != nil {
					return err
				}
				if enc.delimited {
					return nil
				}

				// The reserved demand covers the array frame close.
				if record == 0 {
					e.Emit(chunk.FromBytes([]byte("[]")))
				} else {
					e.Emit(chunk.FromBytes([]byte("]")))
				}
				return nil
			}

			b, err := json.Marshal(v)
			if err != nil {
				return codec.EncodeError{Record: record, Cause: err}
			}

			var buf bytes.Buffer
			buf.Grow(len(b) + 1)
			if enc.delimited {
				buf.Write(b)
				buf.WriteByte('\n')
			} else {
				if record == 0 {
					buf.WriteByte('[')
				} else {
					buf.WriteByte(',')
				}
				buf.Write(b)
			}

			e.Emit(chunk.FromBytes(buf.Bytes()))
			record++
		}
	})
}
