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

package pcm

import (
	"errors"
	"fmt"

	"avcore/pkg/av"
)

// Codec errors.
var (
	ErrPartialSample = errors.New("data is not a whole number of samples")
	ErrFrameType     = errors.New("not an audio frame")
	ErrFrameLayout   = errors.New("frame layout does not match stream")
)

// Decoder pcm decoder.
type Decoder struct {
	format av.SampleFormat
	config Config

	ready    []*av.Frame
	flushing bool
}

// NewDecoder creates a decoder for a pcm stream.
func NewDecoder(stream *av.Stream) (*Decoder, error) {
	format, config, err := streamParams(stream)
	if err != nil {
		return nil, err
	}
	return &Decoder{format: format, config: config}, nil
}

// SendPacket implements av.Decoder.
func (d *Decoder) SendPacket(pkt *av.Packet) error {
	if d.flushing {
		return av.DecodeError(av.ErrFlushed)
	}
	blockAlign := d.format.BytesPerSample() * int(d.config.Channels)
	if len(pkt.Data)%blockAlign != 0 {
		return av.DecodeError(fmt.Errorf("%w: %d bytes, block %d",
			ErrPartialSample, len(pkt.Data), blockAlign))
	}
	if pkt.Discard || len(pkt.Data) == 0 {
		return nil
	}
	d.ready = append(d.ready, &av.Frame{
		StreamIndex: pkt.StreamIndex,
		PTS:         pkt.PTS,
		Data: &av.AudioFrame{
			SampleRate: d.config.SampleRate,
			Channels:   d.config.Channels,
			Format:     d.format,
			Planes:     [][]byte{pkt.Data},
		},
	})
	return nil
}

// ReceiveFrame implements av.Decoder.
func (d *Decoder) ReceiveFrame() (*av.Frame, error) {
	if len(d.ready) == 0 {
		return nil, nil
	}
	frame := d.ready[0]
	d.ready[0] = nil
	d.ready = d.ready[1:]
	return frame, nil
}

// Flush implements av.Decoder.
func (d *Decoder) Flush() error {
	d.flushing = true
	return nil
}

// Reset implements av.Decoder.
func (d *Decoder) Reset() {
	d.flushing = false
	d.ready = nil
}

// Encoder pcm encoder.
type Encoder struct {
	format   av.SampleFormat
	config   Config
	timeBase av.TimeBase

	ready    []*av.Packet
	flushing bool
}

// NewEncoder creates an encoder for a pcm stream.
func NewEncoder(stream *av.Stream) (*Encoder, error) {
	format, config, err := streamParams(stream)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		format:   format,
		config:   config,
		timeBase: stream.TimeBase,
	}, nil
}

// SendFrame implements av.Encoder.
func (e *Encoder) SendFrame(frame *av.Frame) error {
	if e.flushing {
		return av.EncodeError(av.ErrFlushed)
	}
	audio, ok := frame.Data.(*av.AudioFrame)
	if !ok {
		return av.EncodeError(ErrFrameType)
	}
	if audio.Format != e.format ||
		audio.Channels != e.config.Channels ||
		len(audio.Planes) != 1 {
		return av.EncodeError(fmt.Errorf("%w: %v %d channels",
			ErrFrameLayout, audio.Format.ID, audio.Channels))
	}
	blockAlign := e.format.BytesPerSample() * int(e.config.Channels)
	if len(audio.Planes[0])%blockAlign != 0 {
		return av.EncodeError(ErrPartialSample)
	}

	pkt := av.NewPacket(frame.StreamIndex, audio.Planes[0])
	pkt.PTS = frame.PTS
	pkt.DTS = frame.PTS
	pkt.Keyframe = true
	sampleTB, err := av.NewTimeBase(1, e.config.SampleRate)
	if err == nil && e.timeBase.Valid() {
		pkt.Duration = av.Rescale(av.Timestamp(audio.Samples()), sampleTB, e.timeBase)
	}
	e.ready = append(e.ready, pkt)
	return nil
}

// ReceivePacket implements av.Encoder.
func (e *Encoder) ReceivePacket() (*av.Packet, error) {
	if len(e.ready) == 0 {
		return nil, nil
	}
	pkt := e.ready[0]
	e.ready[0] = nil
	e.ready = e.ready[1:]
	return pkt, nil
}

// Flush implements av.Encoder.
func (e *Encoder) Flush() error {
	e.flushing = true
	return nil
}

// Reset implements av.Encoder.
func (e *Encoder) Reset() {
	e.flushing = false
	e.ready = nil
}
