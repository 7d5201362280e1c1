// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemand_Take(t *testing.T) {
	t.Run("will consume outstanding demand", func(t *testing.T) {
		t.Run("if demand was added before taking", func(t *testing.T) {
			d := NewDemand()
			d.Add(2)

			err := d.Take(context.Background())
			require.Nil(t, err)

			err = d.Take(context.Background())
			require.Nil(t, err)

			if !assert.Equal(t, uint64(0), d.Outstanding()) {
				return
			}
		})

		t.Run("if demand is added while a taker is blocked", func(t *testing.T) {
			d := NewDemand()

			taken := make(chan error, 1)
			go func() {
				taken <- d.Take(context.Background())
			}()

			// Give the taker a chance to block first.
			time.Sleep(10 * time.Millisecond)
			d.Add(1)

			select {
			case err := <-taken:
				if !assert.Nil(t, err) {
					return
				}
			case <-time.After(time.Second):
				t.Fatal("expected blocked taker to be woken by added demand")
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the demand has been cancelled", func(t *testing.T) {
			d := NewDemand()
			d.Add(5)
			d.Cancel()

			err := d.Take(context.Background())
			if !assert.ErrorIs(t, err, ErrCancelled) {
				return
			}
		})

		t.Run("if the demand is cancelled while a taker is blocked", func(t *testing.T) {
			d := NewDemand()

			taken := make(chan error, 1)
			go func() {
				taken <- d.Take(context.Background())
			}()

			time.Sleep(10 * time.Millisecond)
			d.Cancel()

			select {
			case err := <-taken:
				if !assert.ErrorIs(t, err, ErrCancelled) {
					return
				}
			case <-time.After(time.Second):
				t.Fatal("expected blocked taker to be woken by cancellation")
			}
		})

		t.Run("if the context is cancelled while a taker is blocked", func(t *testing.T) {
			d := NewDemand()

			cause := errors.New("request aborted")
			ctx, cancel := context.WithCancelCause(context.Background())
			cancel(cause)

			err := d.Take(ctx)
			if !assert.ErrorIs(t, err, cause) {
				return
			}
		})
	})
}

func TestDemand_Add(t *testing.T) {
	t.Run("will saturate", func(t *testing.T) {
		t.Run("if the total would overflow", func(t *testing.T) {
			d := NewDemand()
			d.Add(math.MaxUint64)
			d.Add(10)

			if !assert.Equal(t, uint64(math.MaxUint64), d.Outstanding()) {
				return
			}
		})
	})

	t.Run("will be a no-op", func(t *testing.T) {
		t.Run("if zero demand is added", func(t *testing.T) {
			d := NewDemand()
			d.Add(0)

			if !assert.Equal(t, uint64(0), d.Outstanding()) {
				return
			}
		})

		t.Run("if the demand has already been cancelled", func(t *testing.T) {
			d := NewDemand()
			d.Cancel()
			d.Add(10)

			if !assert.Equal(t, uint64(0), d.Outstanding()) {
				return
			}
			if !assert.True(t, d.Cancelled()) {
				return
			}
		})
	})
}
