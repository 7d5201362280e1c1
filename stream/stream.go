// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package stream provides pull based, demand driven streams.
//
// A [Publisher] emits items to a single [Subscriber] but only ever
// as many items as the subscriber has signalled demand for via its
// [Subscription]. This lets a slow consumer throttle a fast producer
// without any stage buffering an unbounded amount of data.
//
// Streams terminate in exactly one of three ways: completion, failure
// or cancellation. No items are emitted after a terminal state.
package stream

import (
	"context"
	"errors"
)

// ErrCancelled is reported to producers when the consumer has
// cancelled its subscription.
var ErrCancelled = errors.New("stream: subscription cancelled")

// Subscription represents the link between a single [Publisher]
// and a single [Subscriber].
type Subscription interface {
	// Request signals that the consumer is ready to accept up to n
	// more items. Demand is cumulative across calls. Request(0) is
	// a no-op.
	Request(n uint64)

	// Cancel irreversibly stops the producer. Cancellation takes
	// effect before the next item would be emitted and is safe to
	// call multiple times.
	Cancel()
}

// Subscriber consumes items from a [Publisher].
//
// OnSubscribe is invoked exactly once, before any other method.
// OnNext is invoked once per item and never more times than the
// total demand signalled via [Subscription.Request]. OnComplete
// and OnError are terminal and mutually exclusive.
type Subscriber[T any] interface {
	OnSubscribe(Subscription)
	OnNext(T)
	OnComplete()
	OnError(error)
}

// Publisher emits an ordered sequence of items to a [Subscriber].
type Publisher[T any] interface {
	// Subscribe attaches the given [Subscriber] to this publisher.
	// Implementations must invoke [Subscriber.OnSubscribe] before
	// returning. The given [context.Context] bounds the lifetime of
	// the stream: cancelling it fails the stream with the context's
	// cause.
	Subscribe(context.Context, Subscriber[T])
}

// PublisherFunc is a functional implementation of the [Publisher] interface.
type PublisherFunc[T any] func(context.Context, Subscriber[T])

// Subscribe implements the [Publisher] interface.
func (f PublisherFunc[T]) Subscribe(ctx context.Context, sub Subscriber[T]) {
	f(ctx, sub)
}

// Emitter is handed to producer functions by [New]. All methods
// must be called from the producer goroutine.
type Emitter[T any] struct {
	sub    Subscriber[T]
	demand *Demand
}

// Next blocks until one unit of demand is available and then emits v.
// It returns [ErrCancelled] if the subscriber cancelled, or the
// context's cause if ctx was cancelled first.
func (e *Emitter[T]) Next(ctx context.Context, v T) error {
	err := e.Reserve(ctx)
	if err != nil {
		return err
	}
	e.Emit(v)
	return nil
}

// Reserve blocks until one unit of demand is available and consumes
// it. Producers which must perform work (e.g. a socket read) to
// obtain the next item should Reserve first so that no work happens
// ahead of consumer demand, then [Emitter.Emit] the item.
func (e *Emitter[T]) Reserve(ctx context.Context) error {
	return e.demand.Take(ctx)
}

// Emit emits v against demand previously consumed via [Emitter.Reserve].
func (e *Emitter[T]) Emit(v T) {
	e.sub.OnNext(v)
}

// Cancelled reports whether the subscriber has cancelled. Producers
// holding resources (e.g. pooled buffers) should check this between
// expensive steps instead of waiting for the next [Emitter.Next] call.
func (e *Emitter[T]) Cancelled() bool {
	return e.demand.Cancelled()
}

// New returns a [Publisher] whose items are produced by f.
//
// f is ran on its own goroutine, once per subscriber. Returning nil
// completes the stream, returning an error fails it and returning
// [ErrCancelled] (typically propagated from [Emitter.Next]) terminates
// it silently since the subscriber asked for the stream to stop.
func New[T any](f func(context.Context, *Emitter[T]) error) Publisher[T] {
	return PublisherFunc[T](func(ctx context.Context, sub Subscriber[T]) {
		d := NewDemand()
		sub.OnSubscribe(demandSubscription{demand: d})

		e := &Emitter[T]{
			sub:    sub,
			demand: d,
		}

		go func() {
			err := f(ctx, e)
			if errors.Is(err, ErrCancelled) || d.Cancelled() {
				return
			}
			if err != nil {
				sub.OnError(err)
				return
			}
			sub.OnComplete()
		}()
	})
}

type demandSubscription struct {
	demand *Demand
}

func (s demandSubscription) Request(n uint64) {
	s.demand.Add(n)
}

func (s demandSubscription) Cancel() {
	s.demand.Cancel()
}
