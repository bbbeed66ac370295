// Copyright 2022 The avcore Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"avcore/pkg/av"
	"avcore/pkg/log"

	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewConfig(nil)
		require.NoError(t, err)
		require.Equal(t, log.LevelInfo, c.LogLevel())
		require.Equal(t, DefaultProbeSize, c.ProbeSize)
		require.Empty(t, c.LogDB)
		for _, k := range av.StreamKinds {
			require.True(t, c.DecodeKind(k), k)
		}
		require.Empty(t, c.TransformsFor(av.Audio))
	})
	t.Run("full", func(t *testing.T) {
		configYAML := []byte(`
logLevel: debug
logDB: /tmp/logs.db
probeSize: 512
decode:
  subtitle: false
  Data: false
transforms:
  - name: audio_chunk
    kind: audio
    params:
      samples: "1024"
  - name: rebase
    kind: video
    params:
      timebase: 1/1000
  - name: rebase
    kind: audio
`)
		c, err := NewConfig(configYAML)
		require.NoError(t, err)
		require.Equal(t, log.LevelDebug, c.LogLevel())
		require.Equal(t, "/tmp/logs.db", c.LogDB)
		require.Equal(t, 512, c.ProbeSize)
		require.True(t, c.DecodeKind(av.Audio))
		require.True(t, c.DecodeKind(av.Video))
		require.False(t, c.DecodeKind(av.Subtitle))
		require.False(t, c.DecodeKind(av.Data))

		audio := c.TransformsFor(av.Audio)
		require.Len(t, audio, 2)
		require.Equal(t, "audio_chunk", audio[0].Name)
		require.Equal(t, map[string]string{"samples": "1024"}, audio[0].Params)
		require.Equal(t, "rebase", audio[1].Name)

		video := c.TransformsFor(av.Video)
		require.Len(t, video, 1)
		require.Equal(t, "1/1000", video[0].Params["timebase"])
	})
	t.Run("errors", func(t *testing.T) {
		cases := map[string]struct {
			input    string
			expected error
		}{
			"logLevel":      {"logLevel: trace", ErrInvalidLogLevel},
			"probeSize":     {"probeSize: -1", ErrInvalidProbeSize},
			"decodeKind":    {"decode: {sound: true}", av.ErrUnknownStreamKind},
			"transformKind": {"transforms: [{name: x, kind: foo}]", av.ErrUnknownStreamKind},
			"transformName": {"transforms: [{kind: audio}]", ErrMissingName},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := NewConfig([]byte(tc.input))
				require.ErrorIs(t, err, tc.expected)
			})
		}
	})
	t.Run("yamlError", func(t *testing.T) {
		_, err := NewConfig([]byte("logLevel: [1"))
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: error\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, log.LevelError, c.LogLevel())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefault(t *testing.T) {
	require.NotPanics(t, func() { Default() })
}
