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

// Package avmock provides scriptable components for tests.
package avmock

import (
	"io"
	"sort"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
)

// Demuxer returns a fixed list of packets, then Err or io.EOF.
type Demuxer struct {
	Info    av.ContainerInfo
	Packets []*av.Packet
	Err     error

	// Reads counts ReadPacket calls.
	Reads int
}

// NewDemuxer creates a demuxer that returns packets in order.
func NewDemuxer(info av.ContainerInfo, packets ...*av.Packet) *Demuxer {
	return &Demuxer{Info: info, Packets: packets}
}

// ContainerInfo implements av.Demuxer.
func (d *Demuxer) ContainerInfo() *av.ContainerInfo {
	return &d.Info
}

// ReadPacket implements av.Demuxer. The input is not read.
func (d *Demuxer) ReadPacket(avio.Input) (*av.Packet, error) {
	d.Reads++
	if len(d.Packets) != 0 {
		pkt := d.Packets[0]
		d.Packets = d.Packets[1:]
		return pkt, nil
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return nil, io.EOF
}

// DecoderConfig Decoder config.
type DecoderConfig struct {
	// Kind selects the frame data produced.
	Kind av.StreamKind

	// Delay is the number of frames held back. Held frames are released in
	// PTS order, like a decoder reordering B-frames.
	Delay int

	// SendErr is returned, wrapped as a decode error, by every SendPacket.
	SendErr error
}

// Decoder turns every packet into one frame carrying the packet payload.
type Decoder struct {
	c DecoderConfig

	pending  []*av.Frame
	ready    []*av.Frame
	flushing bool

	// Received packets in the order they were sent.
	Received []*av.Packet
	Flushes  int
}

// NewDecoder creates a decoder from config.
func NewDecoder(c DecoderConfig) *Decoder {
	return &Decoder{c: c}
}

// SendPacket implements av.Decoder.
func (d *Decoder) SendPacket(pkt *av.Packet) error {
	if d.flushing {
		return av.DecodeError(av.ErrFlushed)
	}
	if d.c.SendErr != nil {
		return av.DecodeError(d.c.SendErr)
	}
	d.Received = append(d.Received, pkt)
	if pkt.Discard {
		return nil
	}

	d.pending = append(d.pending, &av.Frame{
		StreamIndex: pkt.StreamIndex,
		PTS:         pkt.PTS,
		Data:        frameData(d.c.Kind, pkt),
	})
	sort.SliceStable(d.pending, func(i, j int) bool {
		return d.pending[i].PTS < d.pending[j].PTS
	})
	for len(d.pending) > d.c.Delay {
		d.ready = append(d.ready, d.pending[0])
		d.pending = d.pending[1:]
	}
	return nil
}

// ReceiveFrame implements av.Decoder.
func (d *Decoder) ReceiveFrame() (*av.Frame, error) {
	if len(d.ready) == 0 {
		return nil, nil
	}
	frame := d.ready[0]
	d.ready = d.ready[1:]
	return frame, nil
}

// Flush implements av.Decoder.
func (d *Decoder) Flush() error {
	d.flushing = true
	d.Flushes++
	d.ready = append(d.ready, d.pending...)
	d.pending = nil
	return nil
}

// Reset implements av.Decoder.
func (d *Decoder) Reset() {
	d.flushing = false
	d.pending = nil
	d.ready = nil
}

func frameData(kind av.StreamKind, pkt *av.Packet) av.FrameData {
	switch kind {
	case av.Audio:
		return &av.AudioFrame{
			SampleRate: 48000,
			Channels:   1,
			Format:     av.SampleFormatU8,
			Planes:     [][]byte{pkt.Data},
		}
	case av.Video:
		return &av.VideoFrame{
			Width:    uint32(len(pkt.Data)),
			Height:   1,
			Format:   av.PixelFormatGray8,
			Keyframe: pkt.Keyframe,
			Planes:   [][]byte{pkt.Data},
		}
	}
	return &av.SubtitleFrame{Format: "text", Data: pkt.Data}
}

// Encoder turns every frame into one packet. It holds back Delay packets.
type Encoder struct {
	Delay int

	pending  []*av.Packet
	flushing bool
}

// SendFrame implements av.Encoder.
func (e *Encoder) SendFrame(frame *av.Frame) error {
	if e.flushing {
		return av.EncodeError(av.ErrFlushed)
	}
	var data []byte
	switch v := frame.Data.(type) {
	case *av.AudioFrame:
		if len(v.Planes) > 0 {
			data = v.Planes[0]
		}
	case *av.VideoFrame:
		if len(v.Planes) > 0 {
			data = v.Planes[0]
		}
	case *av.SubtitleFrame:
		data = v.Data
	}
	pkt := av.NewPacket(frame.StreamIndex, data)
	pkt.PTS = frame.PTS
	pkt.DTS = frame.PTS
	pkt.Keyframe = true
	e.pending = append(e.pending, pkt)
	return nil
}

// ReceivePacket implements av.Encoder.
func (e *Encoder) ReceivePacket() (*av.Packet, error) {
	if len(e.pending) == 0 || (!e.flushing && len(e.pending) <= e.Delay) {
		return nil, nil
	}
	pkt := e.pending[0]
	e.pending = e.pending[1:]
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
	e.pending = nil
}

// Transform holds up to Buffer frames and records every applied frame.
type Transform struct {
	ID     string
	Buffer int

	held    []*av.Frame
	Applied []*av.Frame
}

// Name implements av.Transform.
func (t *Transform) Name() string { return t.ID }

// Apply implements av.Transform.
func (t *Transform) Apply(frame *av.Frame) ([]*av.Frame, error) {
	t.Applied = append(t.Applied, frame)
	t.held = append(t.held, frame)
	if len(t.held) <= t.Buffer {
		return nil, nil
	}
	out := t.held[:len(t.held)-t.Buffer]
	t.held = append([]*av.Frame(nil), t.held[len(t.held)-t.Buffer:]...)
	return out, nil
}

// Flush implements av.Transform.
func (t *Transform) Flush() ([]*av.Frame, error) {
	out := t.held
	t.held = nil
	return out, nil
}
