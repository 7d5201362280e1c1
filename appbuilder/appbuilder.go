// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides helpers for common riverbed.AppBuilder implementation patterns.
package appbuilder

import (
	"context"

	"github.com/z5labs/riverbed"
	"github.com/z5labs/riverbed/config"
	"github.com/z5labs/riverbed/internal/try"
)

// Recover will wrap the given [riverbed.AppBuilder] with panic recovery.
func Recover[T any](builder riverbed.AppBuilder[T]) riverbed.AppBuilder[T] {
	return riverbed.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ riverbed.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}

// FromConfig returns a [riverbed.AppBuilder] which unmarshals
// the given [riverbed.AppBuilder]s input type, T, from a [config.Source].
func FromConfig[T any](builder riverbed.AppBuilder[T]) riverbed.AppBuilder[config.Source] {
	return riverbed.AppBuilderFunc[config.Source](func(ctx context.Context, src config.Source) (riverbed.App, error) {
		m, err := config.Read(src)
		if err != nil {
			return nil, err
		}

		var cfg T
		err = m.Unmarshal(&cfg)
		if err != nil {
			return nil, err
		}

		return builder.Build(ctx, cfg)
	})
}
