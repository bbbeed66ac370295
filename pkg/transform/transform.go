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

// Package transform provides frame transforms and the chain that runs them.
package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"avcore/pkg/av"
	"avcore/pkg/registry"
)

// Errors.
var (
	ErrMissingParam = errors.New("missing parameter")
	ErrInvalidParam = errors.New("invalid parameter")
	ErrNotAudio     = errors.New("not an audio frame")
	ErrFormatChange = errors.New("audio format changed")
)

// Chain runs transforms in order. The output of each transform is the
// input of the next. An empty chain passes frames through.
type Chain struct {
	transforms []av.Transform
}

// NewChain returns a chain of transforms.
func NewChain(transforms ...av.Transform) *Chain {
	return &Chain{transforms: transforms}
}

// Name returns the names of the transforms joined by commas.
func (c *Chain) Name() string {
	names := make([]string, len(c.transforms))
	for i, t := range c.transforms {
		names[i] = t.Name()
	}
	return strings.Join(names, ",")
}

// Len returns the number of transforms.
func (c *Chain) Len() int {
	return len(c.transforms)
}

// Apply implements av.Transform.
func (c *Chain) Apply(frame *av.Frame) ([]*av.Frame, error) {
	frames := []*av.Frame{frame}
	for _, t := range c.transforms {
		next, err := apply(t, frames)
		if err != nil {
			return nil, err
		}
		frames = next
	}
	return frames, nil
}

// Flush implements av.Transform. Frames flushed from a transform are
// applied to the following transforms before those are flushed.
func (c *Chain) Flush() ([]*av.Frame, error) {
	var frames []*av.Frame
	for _, t := range c.transforms {
		next, err := apply(t, frames)
		if err != nil {
			return nil, err
		}
		flushed, err := t.Flush()
		if err != nil {
			return nil, fmt.Errorf("flush %v: %w", t.Name(), err)
		}
		frames = append(next, flushed...)
	}
	return frames, nil
}

func apply(t av.Transform, frames []*av.Frame) ([]*av.Frame, error) {
	var out []*av.Frame
	for _, f := range frames {
		res, err := t.Apply(f)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", t.Name(), err)
		}
		out = append(out, res...)
	}
	return out, nil
}

// Rebase rescales frame timestamps to another time base.
type Rebase struct {
	src av.TimeBase
	dst av.TimeBase
}

// NewRebase returns a transform from src to dst.
func NewRebase(src, dst av.TimeBase) *Rebase {
	return &Rebase{src: src, dst: dst}
}

// Name implements av.Transform.
func (*Rebase) Name() string { return "rebase" }

// TimeBase returns the time base of the output frames.
func (r *Rebase) TimeBase() av.TimeBase { return r.dst }

// Apply implements av.Transform.
func (r *Rebase) Apply(frame *av.Frame) ([]*av.Frame, error) {
	if frame.PTS.Valid() {
		frame.PTS = av.Rescale(frame.PTS, r.src, r.dst)
	}
	return []*av.Frame{frame}, nil
}

// Flush implements av.Transform.
func (*Rebase) Flush() ([]*av.Frame, error) { return nil, nil }

func newRebase(stream *av.Stream, params map[string]string) (av.Transform, error) {
	s, exists := params["timebase"]
	if !exists {
		return nil, fmt.Errorf("%w: timebase", ErrMissingParam)
	}
	dst, err := av.ParseTimeBase(s)
	if err != nil {
		return nil, fmt.Errorf("%w: timebase: %v", ErrInvalidParam, err)
	}
	return NewRebase(stream.TimeBase, dst), nil
}

func newAudioChunk(stream *av.Stream, params map[string]string) (av.Transform, error) {
	samples := DefaultChunkSamples
	if s, exists := params["samples"]; exists {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: samples: %q", ErrInvalidParam, s)
		}
		samples = n
	}
	return NewAudioChunk(stream.TimeBase, samples), nil
}

func init() {
	registry.RegisterTransform("rebase", newRebase)
	registry.RegisterTransform("audio_chunk", newAudioChunk)
}
