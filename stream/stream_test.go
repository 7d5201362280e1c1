// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSubscriber captures everything a publisher sends it and
// signals a fixed amount of demand on subscribe.
type recordingSubscriber[T any] struct {
	demand uint64

	sub      Subscription
	items    chan T
	done     chan struct{}
	err      error
	complete bool
}

func newRecordingSubscriber[T any](demand uint64) *recordingSubscriber[T] {
	return &recordingSubscriber[T]{
		demand: demand,
		items:  make(chan T, 128),
		done:   make(chan struct{}),
	}
}

func (rs *recordingSubscriber[T]) OnSubscribe(sub Subscription) {
	rs.sub = sub
	sub.Request(rs.demand)
}

func (rs *recordingSubscriber[T]) OnNext(v T) {
	rs.items <- v
}

func (rs *recordingSubscriber[T]) OnComplete() {
	rs.complete = true
	close(rs.done)
}

func (rs *recordingSubscriber[T]) OnError(err error) {
	rs.err = err
	close(rs.done)
}

func TestNew(t *testing.T) {
	t.Run("will never emit more items than demanded", func(t *testing.T) {
		t.Run("if the subscriber demands fewer items than the producer has", func(t *testing.T) {
			p := Just(1, 2, 3, 4, 5)

			rs := newRecordingSubscriber[int](2)
			p.Subscribe(context.Background(), rs)

			var got []int
			for len(got) < 2 {
				select {
				case v := <-rs.items:
					got = append(got, v)
				case <-time.After(time.Second):
					t.Fatal("expected two items to be emitted")
				}
			}
			require.Equal(t, []int{1, 2}, got)

			// The producer must now be blocked waiting on demand.
			select {
			case v := <-rs.items:
				t.Fatalf("expected no further items, got: %v", v)
			case <-time.After(50 * time.Millisecond):
			}
		})
	})

	t.Run("will complete the stream", func(t *testing.T) {
		t.Run("if the producer func returns nil", func(t *testing.T) {
			p := Just(1, 2, 3)

			rs := newRecordingSubscriber[int](10)
			p.Subscribe(context.Background(), rs)

			select {
			case <-rs.done:
			case <-time.After(time.Second):
				t.Fatal("expected stream to terminate")
			}

			if !assert.True(t, rs.complete) {
				return
			}
			if !assert.Nil(t, rs.err) {
				return
			}
		})
	})

	t.Run("will fail the stream", func(t *testing.T) {
		t.Run("if the producer func returns an error", func(t *testing.T) {
			produceErr := errors.New("produce failed")
			p := Fail[int](produceErr)

			rs := newRecordingSubscriber[int](0)
			p.Subscribe(context.Background(), rs)

			select {
			case <-rs.done:
			case <-time.After(time.Second):
				t.Fatal("expected stream to terminate")
			}

			if !assert.ErrorIs(t, rs.err, produceErr) {
				return
			}
		})

		t.Run("if the subscribe context is cancelled while the producer waits for demand", func(t *testing.T) {
			cause := errors.New("request aborted")
			ctx, cancel := context.WithCancelCause(context.Background())

			p := New(func(ctx context.Context, e *Emitter[int]) error {
				for i := 0; ; i++ {
					err := e.Next(ctx, i)
					if err != nil {
						return err
					}
				}
			})

			rs := newRecordingSubscriber[int](1)
			p.Subscribe(ctx, rs)

			select {
			case <-rs.items:
			case <-time.After(time.Second):
				t.Fatal("expected one item to be emitted")
			}

			cancel(cause)

			select {
			case <-rs.done:
			case <-time.After(time.Second):
				t.Fatal("expected stream to terminate")
			}

			if !assert.ErrorIs(t, rs.err, cause) {
				return
			}
		})
	})

	t.Run("will terminate silently", func(t *testing.T) {
		t.Run("if the subscription is cancelled", func(t *testing.T) {
			emitted := make(chan int, 128)
			p := New(func(ctx context.Context, e *Emitter[int]) error {
				for i := 0; ; i++ {
					err := e.Next(ctx, i)
					if err != nil {
						return err
					}
					emitted <- i
				}
			})

			rs := newRecordingSubscriber[int](1)
			p.Subscribe(context.Background(), rs)

			select {
			case <-rs.items:
			case <-time.After(time.Second):
				t.Fatal("expected one item to be emitted")
			}

			rs.sub.Cancel()

			// Cancellation is irreversible, demand signalled after
			// it must not restart the producer.
			rs.sub.Request(10)

			select {
			case v := <-rs.items:
				t.Fatalf("expected no further items, got: %v", v)
			case <-rs.done:
				t.Fatal("expected no terminal signal after cancellation")
			case <-time.After(50 * time.Millisecond):
			}

			if !assert.LessOrEqual(t, len(emitted), 1) {
				return
			}
		})
	})
}
