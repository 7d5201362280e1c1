// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides helpers for common riverbed.App implementation patterns.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/riverbed"
	"github.com/z5labs/riverbed/internal/try"
	"github.com/z5labs/riverbed/lifecycle"
)

// Recover will wrap the given [riverbed.App] with panic recovery.
// The recovered panic value is wrapped in a [try.PanicError].
func Recover(app riverbed.App) riverbed.App {
	return riverbed.AppFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications wraps a given [riverbed.App] in an implementation
// that cancels the [context.Context] that's passed to app.Run if an [os.Signal]
// is received by the running process.
func WithSignalNotifications(app riverbed.App, signals ...os.Signal) riverbed.App {
	return riverbed.AppFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// Lifecycle
type Lifecycle struct {
	// PreRun is executed before the underlying [riverbed.App] is ran.
	// If it fails the [riverbed.App] is never ran.
	PreRun lifecycle.Hook

	// PostRun is always executed regardless if the underlying [riverbed.App]
	// returns an error or panics.
	PostRun lifecycle.Hook
}

// WithLifecycleHooks wraps a given [riverbed.App] in an implementation
// that runs [lifecycle.Hook]s around the execution of app.Run.
func WithLifecycleHooks(app riverbed.App, lc Lifecycle) riverbed.App {
	return riverbed.AppFunc(func(ctx context.Context) (err error) {
		// Always run PostRun hook regardless if app returns an error or panics.
		defer runPostRunHook(ctx, lc.PostRun, &err)

		if lc.PreRun != nil {
			err = lc.PreRun.Run(ctx)
			if err != nil {
				return err
			}
		}

		return app.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook lifecycle.Hook, err *error) {
	if hook == nil {
		return
	}

	hookErr := hook.Run(ctx)

	// errors.Join will not return an error if both
	// *err and hookErr are nil.
	*err = errors.Join(*err, hookErr)
}
