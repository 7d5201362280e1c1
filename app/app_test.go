// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/z5labs/riverbed"
	"github.com/z5labs/riverbed/internal/try"
	"github.com/z5labs/riverbed/lifecycle"

	"github.com/stretchr/testify/assert"
)

func TestRecover(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the app panics", func(t *testing.T) {
			app := Recover(riverbed.AppFunc(func(ctx context.Context) error {
				panic("oops")
			}))

			var err error
			assert.NotPanics(t, func() {
				err = app.Run(context.Background())
			})

			var pe try.PanicError
			if !assert.ErrorAs(t, err, &pe) {
				return
			}
			if !assert.Equal(t, "oops", pe.Value) {
				return
			}
		})

		t.Run("if the app fails without panicking", func(t *testing.T) {
			appErr := errors.New("run failed")
			app := Recover(riverbed.AppFunc(func(ctx context.Context) error {
				return appErr
			}))

			err := app.Run(context.Background())
			if !assert.ErrorIs(t, err, appErr) {
				return
			}
		})
	})
}

func TestWithSignalNotifications(t *testing.T) {
	t.Run("will cancel the app context", func(t *testing.T) {
		t.Run("if one of the registered signals is received", func(t *testing.T) {
			cancelled := make(chan struct{})

			app := WithSignalNotifications(riverbed.AppFunc(func(ctx context.Context) error {
				select {
				case <-ctx.Done():
					close(cancelled)
					return nil
				case <-time.After(5 * time.Second):
					return errors.New("never received signal")
				}
			}), syscall.SIGUSR1)

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Run(context.Background())
			}()

			// Give the signal handler a moment to be registered.
			time.Sleep(100 * time.Millisecond)
			syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)

			select {
			case err := <-errCh:
				if !assert.Nil(t, err) {
					return
				}
			case <-time.After(5 * time.Second):
				assert.Fail(t, "app did not stop after signal")
				return
			}

			select {
			case <-cancelled:
			default:
				assert.Fail(t, "app context was never cancelled")
			}
		})
	})
}

func TestWithLifecycleHooks(t *testing.T) {
	t.Run("will not run the app", func(t *testing.T) {
		t.Run("if the pre run hook fails", func(t *testing.T) {
			hookErr := errors.New("pre run failed")

			ran := false
			app := WithLifecycleHooks(
				riverbed.AppFunc(func(ctx context.Context) error {
					ran = true
					return nil
				}),
				Lifecycle{
					PreRun: lifecycle.HookFunc(func(ctx context.Context) error {
						return hookErr
					}),
				},
			)

			err := app.Run(context.Background())
			if !assert.ErrorIs(t, err, hookErr) {
				return
			}
			if !assert.False(t, ran) {
				return
			}
		})
	})

	t.Run("will run the post run hook", func(t *testing.T) {
		t.Run("if the app succeeds", func(t *testing.T) {
			postRan := false
			app := WithLifecycleHooks(
				riverbed.AppFunc(func(ctx context.Context) error {
					return nil
				}),
				Lifecycle{
					PostRun: lifecycle.HookFunc(func(ctx context.Context) error {
						postRan = true
						return nil
					}),
				},
			)

			err := app.Run(context.Background())
			if !assert.Nil(t, err) {
				return
			}
			if !assert.True(t, postRan) {
				return
			}
		})

		t.Run("if the app fails", func(t *testing.T) {
			appErr := errors.New("run failed")

			postRan := false
			app := WithLifecycleHooks(
				riverbed.AppFunc(func(ctx context.Context) error {
					return appErr
				}),
				Lifecycle{
					PostRun: lifecycle.HookFunc(func(ctx context.Context) error {
						postRan = true
						return nil
					}),
				},
			)

			err := app.Run(context.Background())
			if !assert.ErrorIs(t, err, appErr) {
				return
			}
			if !assert.True(t, postRan) {
				return
			}
		})
	})

	t.Run("will join the hook failure with the app failure", func(t *testing.T) {
		t.Run("if both the app and the post run hook fail", func(t *testing.T) {
			appErr := errors.New("run failed")
			hookErr := errors.New("post run failed")

			app := WithLifecycleHooks(
				riverbed.AppFunc(func(ctx context.Context) error {
					return appErr
				}),
				Lifecycle{
					PostRun: lifecycle.HookFunc(func(ctx context.Context) error {
						return hookErr
					}),
				},
			)

			err := app.Run(context.Background())
			if !assert.ErrorIs(t, err, appErr) {
				return
			}
			if !assert.ErrorIs(t, err, hookErr) {
				return
			}
		})
	})
}
