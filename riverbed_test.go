// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package riverbed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/z5labs/riverbed/config"

	"github.com/stretchr/testify/assert"
)

type configSourceFunc func(config.Store) error

func (f configSourceFunc) Apply(store config.Store) error {
	return f(store)
}

func TestRun(t *testing.T) {
	t.Run("will return a ConfigReadError", func(t *testing.T) {
		t.Run("if a config source fails to apply", func(t *testing.T) {
			srcErr := errors.New("source failed")
			src := configSourceFunc(func(store config.Store) error {
				return srcErr
			})

			builder := AppBuilderFunc[struct{}](func(ctx context.Context, cfg struct{}) (App, error) {
				return nil, nil
			})

			err := Run(context.Background(), builder, src)

			var cre ConfigReadError
			if !assert.ErrorAs(t, err, &cre) {
				return
			}
			if !assert.ErrorIs(t, err, srcErr) {
				return
			}
		})
	})

	t.Run("will return a ConfigUnmarshalError", func(t *testing.T) {
		t.Run("if a config value does not match the field type", func(t *testing.T) {
			type appConfig struct {
				Port int `config:"port"`
			}

			builder := AppBuilderFunc[appConfig](func(ctx context.Context, cfg appConfig) (App, error) {
				return nil, nil
			})

			err := Run(context.Background(), builder, config.FromJson(strings.NewReader(`{"port": "not a number"}`)))

			var cue ConfigUnmarshalError
			if !assert.ErrorAs(t, err, &cue) {
				return
			}
		})
	})

	t.Run("will return an AppBuildError", func(t *testing.T) {
		t.Run("if the app builder fails", func(t *testing.T) {
			buildErr := errors.New("build failed")
			builder := AppBuilderFunc[struct{}](func(ctx context.Context, cfg struct{}) (App, error) {
				return nil, buildErr
			})

			err := Run(context.Background(), builder)

			var abe AppBuildError
			if !assert.ErrorAs(t, err, &abe) {
				return
			}
			if !assert.ErrorIs(t, err, buildErr) {
				return
			}
		})
	})

	t.Run("will return an AppRunError", func(t *testing.T) {
		t.Run("if the app fails to run", func(t *testing.T) {
			runErr := errors.New("run failed")
			builder := AppBuilderFunc[struct{}](func(ctx context.Context, cfg struct{}) (App, error) {
				return AppFunc(func(ctx context.Context) error {
					return runErr
				}), nil
			})

			err := Run(context.Background(), builder)

			var are AppRunError
			if !assert.ErrorAs(t, err, &are) {
				return
			}
			if !assert.ErrorIs(t, err, runErr) {
				return
			}
		})
	})

	t.Run("will run the app", func(t *testing.T) {
		t.Run("if the config unmarshals into the builder's config type", func(t *testing.T) {
			type appConfig struct {
				Addr string `config:"addr"`
			}

			var got appConfig
			builder := AppBuilderFunc[appConfig](func(ctx context.Context, cfg appConfig) (App, error) {
				got = cfg
				return AppFunc(func(ctx context.Context) error {
					return nil
				}), nil
			})

			err := Run(context.Background(), builder, config.FromJson(strings.NewReader(`{"addr": "localhost:8080"}`)))
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "localhost:8080", got.Addr) {
				return
			}
		})

		t.Run("if later config sources override earlier ones", func(t *testing.T) {
			type appConfig struct {
				Addr string `config:"addr"`
			}

			var got appConfig
			builder := AppBuilderFunc[appConfig](func(ctx context.Context, cfg appConfig) (App, error) {
				got = cfg
				return AppFunc(func(ctx context.Context) error {
					return nil
				}), nil
			})

			err := Run(
				context.Background(),
				builder,
				config.FromJson(strings.NewReader(`{"addr": "localhost:8080"}`)),
				config.FromJson(strings.NewReader(`{"addr": "localhost:9090"}`)),
			)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "localhost:9090", got.Addr) {
				return
			}
		})
	})
}

func TestMultiApp_Run(t *testing.T) {
	t.Run("will run all apps", func(t *testing.T) {
		t.Run("if every app succeeds", func(t *testing.T) {
			ran := make(chan int, 2)

			app := Multi(
				AppFunc(func(ctx context.Context) error {
					ran <- 1
					return nil
				}),
				AppFunc(func(ctx context.Context) error {
					ran <- 2
					return nil
				}),
			)

			err := app.Run(context.Background())
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Len(t, ran, 2) {
				return
			}
		})
	})

	t.Run("will cancel the remaining apps", func(t *testing.T) {
		t.Run("if one app fails", func(t *testing.T) {
			appErr := errors.New("app failed")

			app := Multi(
				AppFunc(func(ctx context.Context) error {
					return appErr
				}),
				AppFunc(func(ctx context.Context) error {
					<-ctx.Done()
					return nil
				}),
			)

			err := app.Run(context.Background())
			if !assert.ErrorIs(t, err, appErr) {
				return
			}
		})
	})
}
