// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"

	"github.com/z5labs/riverbed/config/key"
)

// Map is an in-memory [Store] and [Source] implementation
// backed by nested maps.
type Map map[string]any

// EmptyKeyError occurs when a value is set with a zero length key path.
type EmptyKeyError struct{}

// Error implements the [builtin.error] interface.
func (EmptyKeyError) Error() string {
	return "config key must contain at least one segment"
}

// UnexpectedKeyValueTypeError occurs when a key path traverses
// through a value which is not a nested Map.
type UnexpectedKeyValueTypeError struct {
	Key  string
	Type string
}

// Error implements the [builtin.error] interface.
func (e UnexpectedKeyValueTypeError) Error() string {
	return fmt.Sprintf("expected key, %s, to be a map instead of: %s", e.Key, e.Type)
}

// Set implements the [Store] interface.
func (m Map) Set(k key.Keyer, v any) error {
	segments := k.Key()
	if len(segments) == 0 {
		return EmptyKeyError{}
	}

	cur := m
	for i, segment := range segments[:len(segments)-1] {
		sub, ok := cur[segment]
		if !ok {
			next := make(Map)
			cur[segment] = next
			cur = next
			continue
		}

		next, ok := sub.(Map)
		if !ok {
			return UnexpectedKeyValueTypeError{
				Key:  segments[i],
				Type: fmt.Sprintf("%T", sub),
			}
		}
		cur = next
	}

	cur[segments[len(segments)-1]] = v
	return nil
}

// Apply implements the [Source] interface.
func (m Map) Apply(store Store) error {
	return applyMap(store, nil, m)
}

func applyMap(store Store, prefix key.Chain, m map[string]any) error {
	for k, v := range m {
		kc := make(key.Chain, 0, len(prefix)+1)
		kc = append(kc, prefix...)
		kc = append(kc, key.Name(k))

		switch x := v.(type) {
		case Map:
			err := applyMap(store, kc, x)
			if err != nil {
				return err
			}
		case map[string]any:
			err := applyMap(store, kc, x)
			if err != nil {
				return err
			}
		default:
			err := store.Set(kc, v)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
