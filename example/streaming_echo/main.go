// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/z5labs/riverbed"
	"github.com/z5labs/riverbed/app"
	"github.com/z5labs/riverbed/appbuilder"
	"github.com/z5labs/riverbed/codec/jsonstream"
	"github.com/z5labs/riverbed/config"
	"github.com/z5labs/riverbed/dispatch"
	"github.com/z5labs/riverbed/dispatch/endpoint"
	"github.com/z5labs/riverbed/pipeline"
	"github.com/z5labs/riverbed/runtime/loop"
	"github.com/z5labs/riverbed/stream"

	"github.com/spf13/cobra"
)

var configYaml = `
http:
  addr: ":8080"
workers: 4
`

type Config struct {
	Http struct {
		Addr string `config:"addr"`
	} `config:"http"`

	Workers uint `config:"workers"`
}

type Note struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

func buildApp(ctx context.Context, cfg Config) (riverbed.App, error) {
	logHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true})

	router := dispatch.NewRouter()
	router.Handle(dispatch.MethodPost, "/echo", endpoint.Stream(
		jsonstream.NewDecoder[Note](),
		jsonstream.NewEncoder[Note](),
		endpoint.StreamHandlerFunc[Note, Note](shout),
		endpoint.ContentType("application/json"),
	))

	pipe := pipeline.New(
		router,
		pipeline.LogHandler(logHandler),
	)

	rt := loop.New(
		cfg.Http.Addr,
		pipe,
		loop.LogHandler(logHandler),
		loop.Workers(cfg.Workers),
	)

	return app.WithSignalNotifications(app.Recover(rt), os.Interrupt, syscall.SIGTERM), nil
}

// shout echoes every note back with its text upcased. Each note is
// only pulled from the request body once the client is ready to
// receive its echo, no matter how large the request is.
func shout(ctx context.Context, notes stream.Publisher[Note]) stream.Publisher[Note] {
	return stream.Map(notes, func(n Note) (Note, error) {
		n.Text = strings.ToUpper(n.Text)
		return n, nil
	})
}

func main() {
	cmd := &cobra.Command{
		Use:   "streaming_echo",
		Short: "Echo streamed JSON notes back in upper case",
		RunE: func(cmd *cobra.Command, args []string) error {
			return riverbed.Run(
				cmd.Context(),
				appbuilder.Recover(riverbed.AppBuilderFunc[Config](buildApp)),
				config.FromYaml(bytes.NewReader([]byte(configYaml))),
				config.FromEnv(),
			)
		},
	}

	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
