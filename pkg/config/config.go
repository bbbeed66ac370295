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

// Package config loads the yaml configuration of pipeline runs.
package config

import (
	"errors"
	"fmt"
	"os"

	"avcore/pkg/av"
	"avcore/pkg/log"

	"gopkg.in/yaml.v2"
)

// DefaultProbeSize bytes read when probing the input format.
const DefaultProbeSize = 4096

// Config pipeline configuration.
//
//	logLevel: debug
//	logDB: /var/lib/avcore/logs.db
//	probeSize: 4096
//	decode:
//	  subtitle: false
//	transforms:
//	  - name: audio_chunk
//	    kind: audio
//	    params:
//	      samples: "1024"
type Config struct {
	LogLevelName string            `yaml:"logLevel"`
	LogDB        string            `yaml:"logDB"`
	ProbeSize    int               `yaml:"probeSize"`
	Decode       map[string]bool   `yaml:"decode"`
	Transforms   []TransformConfig `yaml:"transforms"`

	logLevel log.Level
	decode   map[av.StreamKind]bool
}

// TransformConfig one transform applied to every stream of Kind.
type TransformConfig struct {
	Name   string            `yaml:"name"`
	Kind   string            `yaml:"kind"`
	Params map[string]string `yaml:"params"`

	kind av.StreamKind
}

// Config errors.
var (
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidProbeSize = errors.New("invalid probe size")
	ErrMissingName      = errors.New("missing transform name")
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	c, err := NewConfig(nil)
	if err != nil {
		panic(err)
	}
	return c
}

// NewConfig parses, fills defaults and validates a yaml config.
func NewConfig(configYAML []byte) (*Config, error) {
	var c Config

	if err := yaml.Unmarshal(configYAML, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.LogLevelName == "" {
		c.LogLevelName = log.LevelInfo.String()
	}
	if c.ProbeSize == 0 {
		c.ProbeSize = DefaultProbeSize
	}

	level, ok := log.ParseLevel(c.LogLevelName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevelName)
	}
	c.logLevel = level

	if c.ProbeSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProbeSize, c.ProbeSize)
	}

	c.decode = make(map[av.StreamKind]bool)
	for _, k := range av.StreamKinds {
		c.decode[k] = true
	}
	for name, enable := range c.Decode {
		kind, err := av.ParseStreamKind(name)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		c.decode[kind] = enable
	}

	for i := range c.Transforms {
		t := &c.Transforms[i]
		if t.Name == "" {
			return nil, fmt.Errorf("transform %d: %w", i, ErrMissingName)
		}
		kind, err := av.ParseStreamKind(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("transform %v: %w", t.Name, err)
		}
		t.kind = kind
	}

	return &c, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	configYAML, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return NewConfig(configYAML)
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() log.Level {
	return c.logLevel
}

// DecodeKind reports whether streams of kind should be decoded.
func (c *Config) DecodeKind(kind av.StreamKind) bool {
	return c.decode[kind]
}

// TransformsFor returns the transforms configured for kind, in order.
func (c *Config) TransformsFor(kind av.StreamKind) []TransformConfig {
	var out []TransformConfig
	for _, t := range c.Transforms {
		if t.kind == kind {
			out = append(out, t)
		}
	}
	return out
}
