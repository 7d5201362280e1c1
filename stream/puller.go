// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"context"
	"sync"
)

// Puller adapts a [Publisher] to a pull style interface. It signals
// demand one item at a time which makes it the natural bridge between
// demand driven producers and ordinary sequential Go code.
type Puller[T any] struct {
	sub  Subscription
	drop func(T)

	items chan T

	terminalOnce sync.Once
	done         chan struct{}
	err          error
}

// PullerOption defines a configuration option for [Puller].
type PullerOption[T any] func(*Puller[T])

// ReleaseDropped configures f to be called with any item which was
// still in flight when the subscription terminated and so was never
// handed to a caller of [Puller.Next]. Pullers over pooled resources
// use it to return those resources to their pool instead of leaving
// them to the garbage collector.
func ReleaseDropped[T any](f func(T)) PullerOption[T] {
	return func(pl *Puller[T]) {
		pl.drop = f
	}
}

// NewPuller subscribes to p and returns a [Puller] for consuming it.
func NewPuller[T any](ctx context.Context, p Publisher[T], opts ...PullerOption[T]) *Puller[T] {
	pl := &Puller[T]{
		items: make(chan T),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pl)
	}
	p.Subscribe(ctx, pl)
	return pl
}

// OnSubscribe implements the [Subscriber] interface.
func (pl *Puller[T]) OnSubscribe(sub Subscription) {
	pl.sub = sub
}

// OnNext implements the [Subscriber] interface.
func (pl *Puller[T]) OnNext(v T) {
	select {
	case pl.items <- v:
	case <-pl.done:
		if pl.drop != nil {
			pl.drop(v)
		}
	}
}

// OnComplete implements the [Subscriber] interface.
func (pl *Puller[T]) OnComplete() {
	pl.terminalOnce.Do(func() {
		close(pl.done)
	})
}

// OnError implements the [Subscriber] interface.
func (pl *Puller[T]) OnError(err error) {
	pl.terminalOnce.Do(func() {
		pl.err = err
		close(pl.done)
	})
}

// Next requests a single item and blocks until it, or a terminal
// signal, arrives. The second return value is false once the stream
// has terminated; the error is non-nil if it terminated by failing.
func (pl *Puller[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	select {
	case <-pl.done:
		return zero, false, pl.err
	default:
	}

	pl.sub.Request(1)

	select {
	case v := <-pl.items:
		return v, true, nil
	case <-pl.done:
		return zero, false, pl.err
	case <-ctx.Done():
		pl.Cancel()
		return zero, false, context.Cause(ctx)
	}
}

// Cancel cancels the underlying subscription. It is safe to call
// multiple times and after the stream has already terminated.
func (pl *Puller[T]) Cancel() {
	pl.terminalOnce.Do(func() {
		pl.err = ErrCancelled
		close(pl.done)
	})
	pl.sub.Cancel()
}
