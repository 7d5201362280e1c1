// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package key defines how config keys are represented.
package key

// Keyer represents anything which can be expressed as a config key path.
type Keyer interface {
	Key() []string
}

// Name is a single config key segment.
type Name string

// Key implements the [Keyer] interface.
func (n Name) Key() []string {
	return []string{string(n)}
}

// Chain is the concatenation of multiple [Keyer]s into a single key path.
type Chain []Keyer

// Key implements the [Keyer] interface.
func (c Chain) Key() []string {
	keys := make([]string, 0, len(c))
	for _, k := range c {
		keys = append(keys, k.Key()...)
	}
	return keys
}
