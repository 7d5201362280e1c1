// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fsFunc func(string) (fs.File, error)

func (f fsFunc) Open(path string) (fs.File, error) {
	return f(path)
}

func TestFileReader_Read(t *testing.T) {
	t.Run("will read the file contents", func(t *testing.T) {
		t.Run("if the file exists", func(t *testing.T) {
			type appConfig struct {
				Addr string `config:"addr"`
			}

			fsys := fstest.MapFS{
				"config.yaml": &fstest.MapFile{
					Data: []byte("addr: localhost:8080"),
				},
			}

			r := NewFileReader(fsys, "config.yaml")
			defer r.Close()

			m, err := Read(FromYaml(r))
			require.Nil(t, err)

			var cfg appConfig
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "localhost:8080", cfg.Addr) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the file can not be opened", func(t *testing.T) {
			openErr := errors.New("failed to open")

			r := NewFileReader(fsFunc(func(string) (fs.File, error) {
				return nil, openErr
			}), "config.yaml")

			_, err := io.ReadAll(r)
			if !assert.ErrorIs(t, err, openErr) {
				return
			}
		})
	})
}

func TestFileReader_Close(t *testing.T) {
	t.Run("will return nil", func(t *testing.T) {
		t.Run("if the file was never opened", func(t *testing.T) {
			r := NewFileReader(fstest.MapFS{}, "config.yaml")

			if !assert.Nil(t, r.Close()) {
				return
			}
		})
	})
}
