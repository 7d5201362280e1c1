// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sse provides codecs for the server-sent events framing
// described by the WHATWG HTML specification.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/z5labs/riverbed/chunk"
	"github.com/z5labs/riverbed/codec"
	"github.com/z5labs/riverbed/stream"
)

// Event is a single server-sent event.
type Event struct {
	// ID is the optional event id, surfaced to clients as the
	// last event id for reconnection.
	ID string

	// Type is the optional event type. Clients treat an empty
	// type as "message".
	Type string

	// Data is the event payload. Newlines within the payload are
	// preserved across encode/decode by splitting the payload over
	// multiple data fields.
	Data []byte
}

// ContentType is the MIME type for server-sent event streams.
const ContentType = "text/event-stream"

// Encoder encodes events using the text/event-stream framing.
type Encoder struct{}

// NewEncoder initializes an [Encoder].
func NewEncoder() Encoder {
	return Encoder{}
}

// Encode implements the [codec.Encoder] interface.
func (Encoder) Encode(src stream.Publisher[Event]) stream.Publisher[*chunk.Chunk] {
	return stream.New(func(ctx context.Context, e *stream.Emitter[*chunk.Chunk]) error {
		pl := stream.NewPuller(ctx, src)
		defer pl.Cancel()

		record := 0
		for {
			err := e.Reserve(ctx)
			if err != nil {
				return err
			}

			ev, ok, err := pl.Next(ctx)
			if !ok {
				return err
			}

			var buf bytes.Buffer
			if ev.ID != "" {
				buf.WriteString("id: ")
				buf.WriteString(ev.ID)
				buf.WriteByte('\n')
			}
			if ev.Type != "" {
				buf.WriteString("event: ")
				buf.WriteString(ev.Type)
				buf.WriteByte('\n')
			}
			for _, line := range bytes.Split(ev.Data, []byte{'\n'}) {
				buf.WriteString("data: ")
				buf.Write(line)
				buf.WriteByte('\n')
			}
			buf.WriteByte('\n')

			e.Emit(chunk.FromBytes(buf.Bytes()))
			record++
		}
	})
}

// Decoder decodes a text/event-stream chunk stream into events.
type Decoder struct{}

// NewDecoder initializes a [Decoder].
func NewDecoder() Decoder {
	return Decoder{}
}

// Decode implements the [codec.Decoder] interface.
func (Decoder) Decode(src stream.Publisher[*chunk.Chunk]) stream.Publisher[Event] {
	return stream.New(func(ctx context.Context, e *stream.Emitter[Event]) (err error) {
		r := codec.NewReader(ctx, src)
		defer func() {
			closeErr := r.Close()
			err = errors.Join(err, closeErr)
		}()

		sc := bufio.NewScanner(r)

		var offset int64
		record := 0
		for {
			err := e.Reserve(ctx)
			if err != nil {
				return err
			}

			ev, read, ok, err := scanEvent(sc)
			offset += read
			if err != nil {
				return codec.DecodeError{Offset: offset, Record: record, Cause: err}
			}
			if !ok {
				return nil
			}

			e.Emit(ev)
			record++
		}
	})
}

func scanEvent(sc *bufio.Scanner) (Event, int64, bool, error) {
	var ev Event
	var read int64
	var data []string
	seen := false

	for sc.Scan() {
		line := sc.Text()
		read += int64(len(line)) + 1

		if line == "" {
			if !seen {
				// Leading blank lines between events carry nothing.
				continue
			}
			ev.Data = []byte(strings.Join(data, "\n"))
			return ev, read, true, nil
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			ev.ID = value
			seen = true
		case "event":
			ev.Type = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		case "retry":
			// Reconnection hints are a client concern. Validate and drop.
			_, err := strconv.Atoi(value)
			if err != nil {
				return ev, read, false, err
			}
			seen = true
		default:
			// Unknown fields, including comment lines, are ignored
			// per the event stream format.
		}
	}
	if err := sc.Err(); err != nil {
		return ev, read, false, err
	}

	if seen {
		ev.Data = []byte(strings.Join(data, "\n"))
		return ev, read, true, nil
	}
	return ev, read, false, nil
}
