// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package riverbed provides a backpressure aware streaming framework for
// building request/response style services.
//
// The module is built around a small set of composable layers:
//
//   - stream: pull based publishers and subscribers where the consumer
//     signals demand and the producer never emits more than was requested
//   - chunk: pooled, immutable byte buffers which flow through streams
//   - transport: adapters which bridge raw I/O (sockets, request bodies)
//     to chunk streams on both the read and write sides
//   - codec: boundary aware encoders/decoders between chunk streams and
//     typed object streams
//   - dispatch: request routing to application handlers
//   - pipeline: end to end wiring of adapter, codec and handler with
//     demand propagating from the slowest stage back to the source
//
// The root package ties everything together into a runnable application:
//
//	builder := riverbed.AppBuilderFunc[MyConfig](func(ctx context.Context, cfg MyConfig) (riverbed.App, error) {
//	    return buildMyService(cfg)
//	})
//
//	err := riverbed.Run(
//	    context.Background(),
//	    builder,
//	    config.FromYaml(config.NewFileReader(os.DirFS("."), "config.yaml")),
//	    config.FromEnv(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
package riverbed
