// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides composable config sources and unmarshalling.
//
// Config values are read from one or more [Source]s into a single
// key value [Store]. Later sources override earlier ones which makes
// layering defaults, files and environment variables trivial:
//
//	m, err := config.Read(
//	    config.FromYaml(config.NewFileReader(os.DirFS("."), "config.yaml")),
//	    config.FromEnv(),
//	)
//
// The merged values are then unmarshalled into a user defined struct
// using "config" field tags.
package config
