// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"context"
	"iter"
	"slices"
)

// Just returns a [Publisher] which emits the given items in order
// and then completes.
func Just[T any](vs ...T) Publisher[T] {
	return FromSeq(slices.Values(vs))
}

// FromSeq returns a [Publisher] which emits every item of the given
// sequence in order and then completes.
func FromSeq[T any](seq iter.Seq[T]) Publisher[T] {
	return New(func(ctx context.Context, e *Emitter[T]) error {
		for v := range seq {
			err := e.Next(ctx, v)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Empty returns a [Publisher] which completes without emitting any items.
func Empty[T any]() Publisher[T] {
	return New(func(ctx context.Context, e *Emitter[T]) error {
		return nil
	})
}

// Fail returns a [Publisher] which fails with err without emitting
// any items. Terminal signals do not consume demand so the failure
// is delivered even if the subscriber never requests anything.
func Fail[T any](err error) Publisher[T] {
	return New(func(ctx context.Context, e *Emitter[T]) error {
		return err
	})
}
