// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/z5labs/riverbed"
	"github.com/z5labs/riverbed/app"
	"github.com/z5labs/riverbed/appbuilder"
	"github.com/z5labs/riverbed/codec/sse"
	"github.com/z5labs/riverbed/config"
	"github.com/z5labs/riverbed/dispatch"
	"github.com/z5labs/riverbed/lifecycle"
	"github.com/z5labs/riverbed/pipeline"
	"github.com/z5labs/riverbed/pkg/health"
	"github.com/z5labs/riverbed/pkg/otelconfig"
	"github.com/z5labs/riverbed/runtime/httpserver"
	"github.com/z5labs/riverbed/stream"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

type Config struct {
	Addr        string `config:"addr"`
	ServiceName string `config:"service_name"`
}

func buildApp(ctx context.Context, cfg Config) (riverbed.App, error) {
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true})

	tp, err := otelconfig.Local(
		otelconfig.ServiceName(cfg.ServiceName),
	).Init()
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	readiness := &health.Binary{}
	readiness.Toggle()

	router := dispatch.NewRouter()
	router.Handle(dispatch.MethodGet, "/ticks", dispatch.HandlerFunc(ticks))
	router.Handle(dispatch.MethodGet, "/health/readiness", healthHandler(readiness))

	pipe := pipeline.New(
		router,
		pipeline.LogHandler(logHandler),
	)

	rt := httpserver.New(
		cfg.Addr,
		pipe,
		httpserver.LogHandler(logHandler),
	)

	var base riverbed.App = app.Recover(rt)
	base = app.WithLifecycleHooks(base, app.Lifecycle{
		PostRun: lifecycle.HookFunc(func(ctx context.Context) error {
			readiness.Toggle()
			if sd, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
				return sd.Shutdown(ctx)
			}
			return nil
		}),
	})
	return app.WithSignalNotifications(base, os.Interrupt, syscall.SIGTERM), nil
}

// ticks streams one server-sent event per second. The ticker only
// advances when the client has demand, so a stalled client stalls the
// stream instead of growing a buffer.
func ticks(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
	events := stream.New(func(ctx context.Context, e *stream.Emitter[sse.Event]) error {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()

		for i := 0; ; i++ {
			err := e.Reserve(ctx)
			if err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return context.Cause(ctx)
			case t := <-tick.C:
				e.Emit(sse.Event{
					ID:   strconv.Itoa(i),
					Type: "tick",
					Data: []byte(t.Format(time.RFC3339)),
				})
			}
		}
	})

	header := make(http.Header)
	header.Set("Content-Type", sse.ContentType)

	return &dispatch.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       sse.NewEncoder().Encode(events),
	}, nil
}

func healthHandler(metric health.Metric) dispatch.Handler {
	return dispatch.HandlerFunc(func(ctx context.Context, req *dispatch.Request) (*dispatch.Response, error) {
		statusCode := http.StatusOK
		if !metric.Healthy(ctx) {
			statusCode = http.StatusServiceUnavailable
		}
		return &dispatch.Response{StatusCode: statusCode}, nil
	})
}

func main() {
	cmd := &cobra.Command{
		Use:   "sse_ticker",
		Short: "Stream server-sent tick events",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetDefault("addr", ":8080")
			v.SetDefault("service_name", "sse_ticker")
			v.SetEnvPrefix("TICKER")
			v.AutomaticEnv()

			return riverbed.Run(
				cmd.Context(),
				appbuilder.Recover(riverbed.AppBuilderFunc[Config](buildApp)),
				config.FromViper(v),
			)
		},
	}

	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
