// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"context"
)

// Collect subscribes to p and accumulates every emitted item until
// the stream terminates. Items received before a failure are returned
// along with the failure itself.
func Collect[T any](ctx context.Context, p Publisher[T]) ([]T, error) {
	var vs []T
	err := ForEach(ctx, p, func(v T) error {
		vs = append(vs, v)
		return nil
	})
	return vs, err
}

// ForEach subscribes to p and invokes f for every emitted item,
// one at a time. If f fails the subscription is cancelled and f's
// error is returned.
func ForEach[T any](ctx context.Context, p Publisher[T], f func(T) error) error {
	pl := NewPuller(ctx, p)
	defer pl.Cancel()

	for {
		v, ok, err := pl.Next(ctx)
		if !ok {
			return err
		}

		err = f(v)
		if err != nil {
			return err
		}
	}
}

// Drain subscribes to p and discards every emitted item until the
// stream terminates.
func Drain[T any](ctx context.Context, p Publisher[T]) error {
	return ForEach(ctx, p, func(T) error {
		return nil
	})
}
