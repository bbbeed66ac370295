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

// Package pcm implements uncompressed little-endian interleaved audio.
// Packets and frames carry the same bytes, so decoding only validates the
// layout and attaches the sample format.
package pcm

import (
	"bytes"
	"errors"
	"fmt"

	"avcore/pkg/av"
	"avcore/pkg/registry"

	"github.com/icza/bitio"
)

// Codec ids.
var (
	CodecU8  = av.MustCodecID("u8  ")
	CodecS16 = av.MustCodecID("s16l")
	CodecS24 = av.MustCodecID("s24l")
	CodecS32 = av.MustCodecID("s32l")
	CodecF32 = av.MustCodecID("f32l")
)

var formats = map[av.CodecID]av.SampleFormat{
	CodecU8:  av.SampleFormatU8,
	CodecS16: av.SampleFormatS16,
	CodecS24: av.SampleFormatS24,
	CodecS32: av.SampleFormatS32,
	CodecF32: av.SampleFormatF32,
}

// ErrUnsupportedFormat sample format has no pcm codec.
var ErrUnsupportedFormat = errors.New("unsupported sample format")

// SampleFormat returns the sample format of a pcm codec.
func SampleFormat(id av.CodecID) (av.SampleFormat, error) {
	f, exists := formats[id]
	if !exists {
		return av.SampleFormat{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, id)
	}
	return f, nil
}

// CodecFor returns the codec of an interleaved sample format.
func CodecFor(f av.SampleFormat) (av.CodecID, error) {
	for id, f2 := range formats {
		if f2 == f {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f.ID)
}

// ConfigSize marshaled config size.
const ConfigSize = 6

// Config stream parameters stored as extradata.
type Config struct {
	SampleRate uint32
	Channels   uint16
}

// Config errors.
var (
	ErrConfigSize     = errors.New("invalid config size")
	ErrZeroChannels   = errors.New("zero channels")
	ErrZeroSampleRate = errors.New("zero sample rate")
)

// Marshal config.
func (c Config) Marshal() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, ConfigSize))
	w := bitio.NewWriter(buf)
	w.TryWriteBits(uint64(c.SampleRate), 32)
	w.TryWriteBits(uint64(c.Channels), 16)
	if w.TryError != nil {
		return nil, w.TryError
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal config.
func (c *Config) Unmarshal(buf []byte) error {
	if len(buf) != ConfigSize {
		return fmt.Errorf("%w: %d", ErrConfigSize, len(buf))
	}
	r := bitio.NewReader(bytes.NewReader(buf))
	c.SampleRate = uint32(r.TryReadBits(32))
	c.Channels = uint16(r.TryReadBits(16))
	return r.TryError
}

// Validate config.
func (c Config) Validate() error {
	if c.SampleRate == 0 {
		return ErrZeroSampleRate
	}
	if c.Channels == 0 {
		return ErrZeroChannels
	}
	return nil
}

func streamParams(stream *av.Stream) (av.SampleFormat, Config, error) {
	format, err := SampleFormat(stream.Codec)
	if err != nil {
		return av.SampleFormat{}, Config{}, av.CodecError(err)
	}
	var c Config
	if err := c.Unmarshal(stream.Extradata); err != nil {
		return av.SampleFormat{}, Config{}, av.CodecError(fmt.Errorf("extradata: %w", err))
	}
	if err := c.Validate(); err != nil {
		return av.SampleFormat{}, Config{}, av.CodecError(err)
	}
	return format, c, nil
}

func init() {
	names := map[av.CodecID]string{
		CodecU8:  "pcm_u8",
		CodecS16: "pcm_s16le",
		CodecS24: "pcm_s24le",
		CodecS32: "pcm_s32le",
		CodecF32: "pcm_f32le",
	}
	for id, name := range names {
		registry.RegisterCodec(&registry.Codec{
			ID:   id,
			Name: name,
			Kind: av.Audio,
			NewDecoder: func(stream *av.Stream) (av.Decoder, error) {
				return NewDecoder(stream)
			},
			NewEncoder: func(stream *av.Stream) (av.Encoder, error) {
				return NewEncoder(stream)
			},
		})
	}
}
