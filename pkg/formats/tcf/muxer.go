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

package tcf

import (
	"fmt"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
)

// Muxer writes a tcf file.
type Muxer struct {
	info *av.ContainerInfo

	pos       uint64 // Bytes written.
	index     []IndexEntry
	finalized bool
}

// NewMuxer writes the header to out.
func NewMuxer(out avio.Output, info *av.ContainerInfo) (*Muxer, error) {
	if err := info.Validate(); err != nil {
		return nil, av.FormatError(err)
	}
	header := Header{
		Streams:     info.Streams,
		Attachments: info.Attachments,
	}
	buf, err := header.Marshal()
	if err != nil {
		return nil, av.FormatError(fmt.Errorf("marshal header: %w", err))
	}

	m := &Muxer{info: info}
	if err := m.write(out, buf); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return m, nil
}

func (m *Muxer) write(out avio.Output, buf []byte) error {
	n, err := out.Write(buf)
	m.pos += uint64(n)
	if err != nil {
		return av.IOError(err)
	}
	return nil
}

// WritePacket implements av.Muxer.
func (m *Muxer) WritePacket(out avio.Output, pkt *av.Packet) error {
	if m.finalized {
		return av.WrapError(av.ErrFinalized)
	}
	if _, err := m.info.Stream(pkt.StreamIndex); err != nil {
		return av.FormatError(err)
	}
	buf, err := marshalPacket(pkt)
	if err != nil {
		return av.FormatError(err)
	}

	if pkt.Keyframe {
		m.index = append(m.index, IndexEntry{
			StreamIndex: pkt.StreamIndex,
			PTS:         pkt.PTS,
			Offset:      m.pos,
		})
	}
	return m.write(out, buf)
}

// Finalize implements av.Muxer, it writes the keyframe index.
func (m *Muxer) Finalize(out avio.Output) error {
	if m.finalized {
		return av.WrapError(av.ErrFinalized)
	}
	m.finalized = true

	if err := m.write(out, marshalTrailer(m.index)); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	if err := out.Flush(); err != nil {
		return av.IOError(err)
	}
	return nil
}
