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

package av

// Frame is one decoded unit. PTS is in the time base of the source stream.
type Frame struct {
	StreamIndex int
	PTS         Timestamp
	Data        FrameData
}

// FrameData is one of *VideoFrame, *AudioFrame or *SubtitleFrame.
type FrameData interface {
	Kind() StreamKind
	clone() FrameData
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := *f
	if f.Data != nil {
		c.Data = f.Data.clone()
	}
	return &c
}

// PixelFormat describes the memory layout of a video frame.
type PixelFormat struct {
	ID            string
	Planes        uint8
	BitsPerSample uint8
	Planar        bool

	// ChromaSubsampling log2 horizontal and vertical chroma shift,
	// {1, 1} for 4:2:0. Zero for formats without chroma planes.
	ChromaSubsampling [2]uint8
}

// Pixel formats.
var (
	PixelFormatYUV420P = PixelFormat{ID: "yuv420p", Planes: 3, BitsPerSample: 8, Planar: true, ChromaSubsampling: [2]uint8{1, 1}}
	PixelFormatYUV444P = PixelFormat{ID: "yuv444p", Planes: 3, BitsPerSample: 8, Planar: true}
	PixelFormatRGB24   = PixelFormat{ID: "rgb24", Planes: 1, BitsPerSample: 8}
	PixelFormatGray8   = PixelFormat{ID: "gray", Planes: 1, BitsPerSample: 8}
)

// VideoFrame one picture.
type VideoFrame struct {
	Width    uint32
	Height   uint32
	Format   PixelFormat
	Keyframe bool
	Planes   [][]byte
}

// Kind returns Video.
func (*VideoFrame) Kind() StreamKind { return Video }

func (v *VideoFrame) clone() FrameData {
	c := *v
	c.Planes = clonePlanes(v.Planes)
	return &c
}

// SampleFormat describes the memory layout of audio samples.
type SampleFormat struct {
	ID            string
	BitsPerSample uint8
	Planar        bool
	Float         bool
}

// Sample formats.
var (
	SampleFormatU8   = SampleFormat{ID: "u8", BitsPerSample: 8}
	SampleFormatS16  = SampleFormat{ID: "s16", BitsPerSample: 16}
	SampleFormatS24  = SampleFormat{ID: "s24", BitsPerSample: 24}
	SampleFormatS32  = SampleFormat{ID: "s32", BitsPerSample: 32}
	SampleFormatF32  = SampleFormat{ID: "f32", BitsPerSample: 32, Float: true}
	SampleFormatS16P = SampleFormat{ID: "s16p", BitsPerSample: 16, Planar: true}
	SampleFormatF32P = SampleFormat{ID: "f32p", BitsPerSample: 32, Planar: true, Float: true}
)

// BytesPerSample size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	return (int(f.BitsPerSample) + 7) / 8
}

// AudioFrame a block of samples. Planes holds one buffer per channel
// when the format is planar, otherwise a single interleaved buffer.
type AudioFrame struct {
	SampleRate uint32
	Channels   uint16
	Format     SampleFormat
	Planes     [][]byte
}

// Kind returns Audio.
func (*AudioFrame) Kind() StreamKind { return Audio }

func (a *AudioFrame) clone() FrameData {
	c := *a
	c.Planes = clonePlanes(a.Planes)
	return &c
}

// Samples returns the number of samples per channel.
func (a *AudioFrame) Samples() int {
	bps := a.Format.BytesPerSample()
	if bps == 0 || a.Channels == 0 || len(a.Planes) == 0 {
		return 0
	}
	if a.Format.Planar {
		return len(a.Planes[0]) / bps
	}
	return len(a.Planes[0]) / (bps * int(a.Channels))
}

// SubtitleFrame a subtitle event in its native format, "srt" or "ass".
type SubtitleFrame struct {
	Format string
	Data   []byte
}

// Kind returns Subtitle.
func (*SubtitleFrame) Kind() StreamKind { return Subtitle }

func (s *SubtitleFrame) clone() FrameData {
	c := *s
	c.Data = append([]byte(nil), s.Data...)
	return &c
}

func clonePlanes(planes [][]byte) [][]byte {
	if planes == nil {
		return nil
	}
	out := make([][]byte, len(planes))
	for i, p := range planes {
		out[i] = append([]byte(nil), p...)
	}
	return out
}
