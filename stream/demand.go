// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"context"
	"math"
	"sync"
)

// Demand tracks outstanding consumer demand for a producer.
//
// The cumulative number of items taken from a Demand can never
// exceed the cumulative amount added to it.
type Demand struct {
	mu        sync.Mutex
	n         uint64
	cancelled bool
	notify    chan struct{}
}

// NewDemand initializes a [Demand] with zero outstanding demand.
func NewDemand() *Demand {
	return &Demand{
		notify: make(chan struct{}, 1),
	}
}

// Add increases outstanding demand by n, saturating at the maximum
// uint64 value which is treated as effectively unbounded demand.
func (d *Demand) Add(n uint64) {
	if n == 0 {
		return
	}

	d.mu.Lock()
	if d.cancelled {
		d.mu.Unlock()
		return
	}
	if d.n > math.MaxUint64-n {
		d.n = math.MaxUint64
	} else {
		d.n += n
	}
	d.mu.Unlock()

	d.pulse()
}

// Cancel marks the demand as cancelled. It wakes any blocked
// [Demand.Take] caller and cannot be undone.
func (d *Demand) Cancel() {
	d.mu.Lock()
	d.cancelled = true
	d.mu.Unlock()

	d.pulse()
}

// Cancelled reports whether [Demand.Cancel] has been called.
func (d *Demand) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}

// Outstanding returns the amount of demand currently available.
func (d *Demand) Outstanding() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// Take blocks until one unit of demand can be consumed. It returns
// [ErrCancelled] if the demand is cancelled or the context's cause
// if ctx is cancelled first.
func (d *Demand) Take(ctx context.Context) error {
	for {
		d.mu.Lock()
		if d.cancelled {
			d.mu.Unlock()
			return ErrCancelled
		}
		if d.n > 0 {
			d.n--
			remaining := d.n
			d.mu.Unlock()

			if remaining > 0 {
				d.pulse()
			}
			return nil
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-d.notify:
		}
	}
}

func (d *Demand) pulse() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}
