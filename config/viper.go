// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"github.com/spf13/viper"
)

// Viper represents a Source backed by a [viper.Viper] instance.
// It allows services already configured with viper (flags, remote
// config, watched files) to feed those settings into [Read].
type Viper struct {
	v *viper.Viper
}

// FromViper returns a Source which will apply all settings
// currently known to the given [viper.Viper].
func FromViper(v *viper.Viper) Viper {
	return Viper{v: v}
}

// Apply implements the [Source] interface.
func (src Viper) Apply(store Store) error {
	if src.v == nil {
		return nil
	}
	return Map(src.v.AllSettings()).Apply(store)
}
