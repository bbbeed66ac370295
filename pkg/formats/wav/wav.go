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

// Package wav reads and writes RIFF/WAVE files holding pcm audio.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
	"avcore/pkg/codecs/pcm"
	"avcore/pkg/registry"
)

// PacketSamples samples per channel in each demuxed packet.
const PacketSamples = 1024

// Format tags.
const (
	tagPCM   = 1
	tagFloat = 3
)

// unknownSize is written when the output cannot be patched.
const unknownSize = 0xffffffff

// Errors.
var (
	ErrInvalidHeader = errors.New("invalid riff header")
	ErrMissingFmt    = errors.New("data chunk before fmt chunk")
	ErrMissingData   = errors.New("missing data chunk")
	ErrFmtSize       = errors.New("fmt chunk too small")
	ErrUnsupported   = errors.New("unsupported wave format")
	ErrBlockAlign    = errors.New("invalid block align")
)

// Fmt the fmt chunk.
type Fmt struct {
	Tag           uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

const fmtSize = 16

// Marshal fmt chunk body.
func (f Fmt) Marshal() []byte {
	out := make([]byte, fmtSize)
	binary.LittleEndian.PutUint16(out[0:2], f.Tag)
	binary.LittleEndian.PutUint16(out[2:4], f.Channels)
	binary.LittleEndian.PutUint32(out[4:8], f.SampleRate)
	binary.LittleEndian.PutUint32(out[8:12], f.ByteRate)
	binary.LittleEndian.PutUint16(out[12:14], f.BlockAlign)
	binary.LittleEndian.PutUint16(out[14:16], f.BitsPerSample)
	return out
}

// Unmarshal fmt chunk body.
func (f *Fmt) Unmarshal(buf []byte) error {
	if len(buf) < fmtSize {
		return fmt.Errorf("%w: %d", ErrFmtSize, len(buf))
	}
	f.Tag = binary.LittleEndian.Uint16(buf[0:2])
	f.Channels = binary.LittleEndian.Uint16(buf[2:4])
	f.SampleRate = binary.LittleEndian.Uint32(buf[4:8])
	f.ByteRate = binary.LittleEndian.Uint32(buf[8:12])
	f.BlockAlign = binary.LittleEndian.Uint16(buf[12:14])
	f.BitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
	return nil
}

// Codec returns the pcm codec of the sample layout.
func (f Fmt) Codec() (av.CodecID, error) {
	switch {
	case f.Tag == tagPCM && f.BitsPerSample == 8:
		return pcm.CodecU8, nil
	case f.Tag == tagPCM && f.BitsPerSample == 16:
		return pcm.CodecS16, nil
	case f.Tag == tagPCM && f.BitsPerSample == 24:
		return pcm.CodecS24, nil
	case f.Tag == tagPCM && f.BitsPerSample == 32:
		return pcm.CodecS32, nil
	case f.Tag == tagFloat && f.BitsPerSample == 32:
		return pcm.CodecF32, nil
	}
	return 0, fmt.Errorf("%w: tag %d, %d bits", ErrUnsupported, f.Tag, f.BitsPerSample)
}

// fmtFor returns the fmt chunk of a pcm codec.
func fmtFor(codec av.CodecID, c pcm.Config) (Fmt, error) {
	format, err := pcm.SampleFormat(codec)
	if err != nil {
		return Fmt{}, err
	}
	tag := uint16(tagPCM)
	if format.Float {
		tag = tagFloat
	}
	blockAlign := uint16(format.BytesPerSample()) * c.Channels
	return Fmt{
		Tag:           tag,
		Channels:      c.Channels,
		SampleRate:    c.SampleRate,
		ByteRate:      c.SampleRate * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: uint16(format.BitsPerSample),
	}, nil
}

// Probe reports whether header is a RIFF/WAVE file.
func Probe(header []byte) bool {
	return len(header) >= 12 &&
		bytes.Equal(header[0:4], []byte("RIFF")) &&
		bytes.Equal(header[8:12], []byte("WAVE"))
}

func init() {
	registry.RegisterFormat(&registry.Format{
		Name:       "wav",
		Extensions: []string{"wav", "wave"},
		Probe:      Probe,
		NewDemuxer: func(in avio.Input) (av.Demuxer, error) {
			return NewDemuxer(in)
		},
		NewMuxer: func(out avio.Output, info *av.ContainerInfo) (av.Muxer, error) {
			return NewMuxer(out, info)
		},
	})
}

// readErr maps truncation to a format error and everything else to io.
func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return av.FormatError(io.ErrUnexpectedEOF)
	}
	return av.IOError(err)
}
