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
	"bytes"
	"errors"
	"fmt"
	"io"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
	"avcore/pkg/registry"
)

// ErrUnknownRecord unknown record type.
var ErrUnknownRecord = errors.New("unknown record type")

// Demuxer reads a tcf file.
type Demuxer struct {
	info  *av.ContainerInfo
	index []IndexEntry

	done bool
}

// NewDemuxer reads the header from in.
func NewDemuxer(in avio.Input) (*Demuxer, error) {
	var header Header
	if _, err := header.Unmarshal(in); err != nil {
		return nil, classify(fmt.Errorf("unmarshal header: %w", err))
	}
	info := header.ContainerInfo()
	if err := info.Validate(); err != nil {
		return nil, av.FormatError(err)
	}
	return &Demuxer{info: info}, nil
}

// ContainerInfo implements av.Demuxer.
func (d *Demuxer) ContainerInfo() *av.ContainerInfo {
	return d.info
}

// ReadPacket implements av.Demuxer.
func (d *Demuxer) ReadPacket(in avio.Input) (*av.Packet, error) {
	if d.done {
		return nil, io.EOF
	}

	var typ [1]byte
	if _, err := io.ReadFull(in, typ[:]); err != nil {
		if errors.Is(err, io.EOF) {
			// Unfinalized file.
			d.done = true
			return nil, io.EOF
		}
		return nil, av.IOError(err)
	}

	switch typ[0] {
	case recordPacket:
		pkt, err := unmarshalPacket(in)
		if err != nil {
			return nil, classify(fmt.Errorf("packet: %w", err))
		}
		if _, err := d.info.Stream(pkt.StreamIndex); err != nil {
			return nil, av.FormatError(err)
		}
		return pkt, nil

	case recordTrailer:
		index, err := unmarshalTrailer(in)
		if err != nil {
			return nil, classify(fmt.Errorf("trailer: %w", err))
		}
		d.index = index
		d.done = true
		return nil, io.EOF
	}
	return nil, av.FormatError(fmt.Errorf("%w: 0x%02x", ErrUnknownRecord, typ[0]))
}

// Index returns the keyframe index. It is nil until the trailer has been read.
func (d *Demuxer) Index() []IndexEntry {
	return d.index
}

// classify maps truncation to a format error and everything else to io.
func classify(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, ErrInvalidMagic) ||
		errors.Is(err, ErrUnsupportedVersion) ||
		errors.Is(err, av.ErrInvalidTimeBase) ||
		errors.Is(err, av.ErrUnknownStreamKind) {
		return av.FormatError(err)
	}
	return av.IOError(err)
}

// Probe reports whether header starts with the tcf magic.
func Probe(header []byte) bool {
	return bytes.HasPrefix(header, Magic)
}

func init() {
	registry.RegisterFormat(&registry.Format{
		Name:       "tcf",
		Extensions: []string{"tcf"},
		Probe:      Probe,
		NewDemuxer: func(in avio.Input) (av.Demuxer, error) {
			return NewDemuxer(in)
		},
		NewMuxer: func(out avio.Output, info *av.ContainerInfo) (av.Muxer, error) {
			return NewMuxer(out, info)
		},
	})
}
