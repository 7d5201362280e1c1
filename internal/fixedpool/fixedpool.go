// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool runs a fixed set of tasks as a group of goroutines.
package fixedpool

import (
	"context"
	"errors"
	"sync"

	"github.com/z5labs/riverbed/internal/try"
)

// Task
type Task func(context.Context) error

// Wait runs all tasks concurrently and blocks until every task has
// returned. The first task to fail (or panic) cancels the context
// passed to the remaining tasks. All errors are joined together.
func Wait(ctx context.Context, tasks ...Task) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	errCh := make(chan error, len(tasks))

	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()

			var err error
			defer func() {
				if err != nil {
					errCh <- err
					cancel(err)
				}
			}()
			defer try.Recover(&err)

			err = t(ctx)
		}(task)
	}

	wg.Wait()
	close(errCh)

	var jerr error
	for err := range errCh {
		jerr = errors.Join(jerr, err)
	}
	return jerr
}
