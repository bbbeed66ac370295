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

package transform

import (
	"fmt"

	"avcore/pkg/av"
)

// DefaultChunkSamples default samples per channel of AudioChunk.
const DefaultChunkSamples = 1024

// AudioChunk regroups audio into frames of a fixed number of samples.
// Input frames are assumed contiguous, the timestamp of the first buffered
// frame is extended by the sample count. Flush emits the shorter remainder.
type AudioChunk struct {
	timeBase av.TimeBase
	samples  int

	template *av.AudioFrame // Layout of the buffered samples.
	planes   [][]byte
	index    int
	basePTS  av.Timestamp
	consumed int64 // Samples emitted since basePTS.
}

// NewAudioChunk returns a transform that emits frames of samples samples.
// timeBase is the time base of the frame timestamps.
func NewAudioChunk(timeBase av.TimeBase, samples int) *AudioChunk {
	return &AudioChunk{timeBase: timeBase, samples: samples}
}

// Name implements av.Transform.
func (*AudioChunk) Name() string { return "audio_chunk" }

// Apply implements av.Transform.
func (c *AudioChunk) Apply(frame *av.Frame) ([]*av.Frame, error) {
	audio, ok := frame.Data.(*av.AudioFrame)
	if !ok {
		return nil, av.WrapError(ErrNotAudio)
	}

	if c.buffered() == 0 {
		c.template = audio
		c.index = frame.StreamIndex
		c.basePTS = frame.PTS
		c.consumed = 0
		c.planes = make([][]byte, len(audio.Planes))
	} else if !sameLayout(c.template, audio) {
		return nil, av.WrapError(fmt.Errorf("%w: %v %d ch %d Hz",
			ErrFormatChange, audio.Format.ID, audio.Channels, audio.SampleRate))
	}

	for i, p := range audio.Planes {
		c.planes[i] = append(c.planes[i], p...)
	}

	var out []*av.Frame
	for c.buffered() >= c.samples {
		out = append(out, c.emit(c.samples))
	}
	return out, nil
}

// Flush implements av.Transform.
func (c *AudioChunk) Flush() ([]*av.Frame, error) {
	n := c.buffered()
	if n == 0 {
		return nil, nil
	}
	return []*av.Frame{c.emit(n)}, nil
}

func sameLayout(a, b *av.AudioFrame) bool {
	return a.Format == b.Format &&
		a.Channels == b.Channels &&
		a.SampleRate == b.SampleRate &&
		len(a.Planes) == len(b.Planes)
}

// bytesPerPlaneSample bytes of one sample in one plane.
func (c *AudioChunk) bytesPerPlaneSample() int {
	n := c.template.Format.BytesPerSample()
	if !c.template.Format.Planar {
		n *= int(c.template.Channels)
	}
	return n
}

// buffered returns the buffered samples per channel.
func (c *AudioChunk) buffered() int {
	if c.template == nil || len(c.planes) == 0 {
		return 0
	}
	size := c.bytesPerPlaneSample()
	if size == 0 {
		return 0
	}
	return len(c.planes[0]) / size
}

func (c *AudioChunk) emit(samples int) *av.Frame {
	size := samples * c.bytesPerPlaneSample()
	planes := make([][]byte, len(c.planes))
	for i, p := range c.planes {
		planes[i] = append([]byte(nil), p[:size]...)
		c.planes[i] = p[size:]
	}

	pts := av.NoTimestamp
	if c.basePTS.Valid() {
		sampleTB, err := av.NewTimeBase(1, c.template.SampleRate)
		if err == nil {
			pts = c.basePTS + av.Rescale(av.Timestamp(c.consumed), sampleTB, c.timeBase)
		}
	}
	c.consumed += int64(samples)

	data := *c.template
	data.Planes = planes
	return &av.Frame{
		StreamIndex: c.index,
		PTS:         pts,
		Data:        &data,
	}
}
