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

// Package av defines the media data model and the component contracts
// every container format and codec implements.
//
// Components are synchronous: every call blocks on the calling goroutine and
// no component starts background work. Only the avio backends block on I/O.
package av

import "avcore/pkg/av/avio"

// Demuxer splits a container into per-stream packets.
type Demuxer interface {
	// ContainerInfo is computed once when the demuxer is created.
	ContainerInfo() *ContainerInfo

	// ReadPacket returns the next packet or io.EOF at a clean end of stream.
	// The packet's StreamIndex is always a valid index in ContainerInfo.Streams.
	ReadPacket(in avio.Input) (*Packet, error)
}

// Muxer combines packets into a container.
type Muxer interface {
	WritePacket(out avio.Output, pkt *Packet) error

	// Finalize writes container level structures such as indices and
	// trailers. It must be called exactly once after the last packet.
	Finalize(out avio.Output) error
}

// Decoder is a two-phase pull state machine.
//
// SendPacket feeds one packet. ReceiveFrame returns (nil, nil) when no frame
// is ready, which is not end of stream. After Flush, ReceiveFrame must be
// called until it returns (nil, nil) to collect buffered frames, and
// SendPacket fails with ErrFlushed until Reset is called.
type Decoder interface {
	SendPacket(pkt *Packet) error
	ReceiveFrame() (*Frame, error)
	Flush() error
	Reset()
}

// Encoder is the mirror of Decoder.
type Encoder interface {
	SendFrame(frame *Frame) error
	ReceivePacket() (*Packet, error)
	Flush() error
	Reset()
}

// Transform maps one frame to zero or more frames.
type Transform interface {
	// Name is stable and used for configuration and diagnostics.
	Name() string

	Apply(frame *Frame) ([]*Frame, error)

	// Flush returns frames buffered inside the transform.
	Flush() ([]*Frame, error)
}
