// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"context"
	"fmt"
)

// MapError occurs when the mapping function of [Map] fails.
type MapError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e MapError) Error() string {
	return fmt.Sprintf("failed to map stream item: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e MapError) Unwrap() error {
	return e.Cause
}

// Map returns a [Publisher] which transforms every item of p with f.
// Demand passes through unchanged so mapping adds no buffering. If f
// fails the upstream subscription is cancelled and the downstream
// stream fails with a [MapError].
func Map[In, Out any](p Publisher[In], f func(In) (Out, error)) Publisher[Out] {
	return PublisherFunc[Out](func(ctx context.Context, sub Subscriber[Out]) {
		p.Subscribe(ctx, &mapSubscriber[In, Out]{
			sub: sub,
			f:   f,
		})
	})
}

type mapSubscriber[In, Out any] struct {
	sub      Subscriber[Out]
	f        func(In) (Out, error)
	upstream Subscription
	failed   bool
}

func (ms *mapSubscriber[In, Out]) OnSubscribe(sub Subscription) {
	ms.upstream = sub
	ms.sub.OnSubscribe(sub)
}

func (ms *mapSubscriber[In, Out]) OnNext(v In) {
	if ms.failed {
		return
	}

	out, err := ms.f(v)
	if err != nil {
		ms.failed = true
		ms.upstream.Cancel()
		ms.sub.OnError(MapError{Cause: err})
		return
	}
	ms.sub.OnNext(out)
}

func (ms *mapSubscriber[In, Out]) OnComplete() {
	if ms.failed {
		return
	}
	ms.sub.OnComplete()
}

func (ms *mapSubscriber[In, Out]) OnError(err error) {
	if ms.failed {
		return
	}
	ms.sub.OnError(err)
}

// Processor consumes a stream of In items and publishes a stream of
// Out items. It is the composable middle stage of a pipeline: its
// subscriber side attaches to the upstream [Publisher] and its
// publisher side serves the downstream [Subscriber].
type Processor[In, Out any] interface {
	Subscriber[In]
	Publisher[Out]
}

// Pipe routes p through proc. The downstream subscriber is attached
// to the processor before the processor is attached upstream so no
// item can flow before the processor has somewhere to send it.
func Pipe[In, Out any](p Publisher[In], proc Processor[In, Out]) Publisher[Out] {
	return PublisherFunc[Out](func(ctx context.Context, sub Subscriber[Out]) {
		proc.Subscribe(ctx, sub)
		p.Subscribe(ctx, proc)
	})
}

// Buffer returns a [Publisher] which prefetches up to capacity items
// from p ahead of downstream demand. Upstream demand is bounded by
// the buffer capacity so a slow downstream consumer still throttles
// the source once the buffer fills.
func Buffer[T any](p Publisher[T], capacity int) Publisher[T] {
	if capacity < 1 {
		capacity = 1
	}

	return New(func(ctx context.Context, e *Emitter[T]) error {
		pl := NewPuller(ctx, p)
		defer pl.Cancel()

		type item struct {
			v   T
			ok  bool
			err error
		}

		ch := make(chan item, capacity)
		go func() {
			defer close(ch)
			for {
				v, ok, err := pl.Next(ctx)
				if !ok {
					if err != nil {
						ch <- item{err: err}
					}
					return
				}
				ch <- item{v: v, ok: true}
			}
		}()

		for it := range ch {
			if it.err != nil {
				return it.err
			}
			err := e.Next(ctx, it.v)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
