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

package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
	"avcore/pkg/codecs/pcm"
)

// Muxer errors.
var (
	ErrStreamCount = errors.New("wave holds exactly one audio stream")
	ErrTooLarge    = errors.New("data chunk too large")
)

const headerSize = 12 + 8 + fmtSize + 8

// Offsets of the size fields patched by Finalize.
const (
	riffSizeOffset = 4
	dataSizeOffset = headerSize - 4
)

// Muxer writes a wave file. Sizes are patched on Finalize when the output
// is seekable, otherwise they are left as 0xffffffff.
type Muxer struct {
	blockAlign int
	dataSize   uint64
	finalized  bool
}

// NewMuxer writes the header to out.
func NewMuxer(out avio.Output, info *av.ContainerInfo) (*Muxer, error) {
	if len(info.Streams) != 1 || info.Streams[0].Kind != av.Audio {
		return nil, av.FormatError(ErrStreamCount)
	}
	stream := info.Streams[0]

	var config pcm.Config
	if err := config.Unmarshal(stream.Extradata); err != nil {
		return nil, av.CodecError(fmt.Errorf("extradata: %w", err))
	}
	f, err := fmtFor(stream.Codec, config)
	if err != nil {
		return nil, av.CodecError(err)
	}

	if _, err := out.Write(marshalHeader(f, unknownSize, unknownSize)); err != nil {
		return nil, av.IOError(fmt.Errorf("write header: %w", err))
	}
	return &Muxer{blockAlign: int(f.BlockAlign)}, nil
}

func marshalHeader(f Fmt, riffSize, dataSize uint32) []byte {
	out := make([]byte, 0, headerSize)
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, riffSize)
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, fmtSize)
	out = append(out, f.Marshal()...)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, dataSize)
	return out
}

// WritePacket implements av.Muxer. Timestamps are ignored.
func (m *Muxer) WritePacket(out avio.Output, pkt *av.Packet) error {
	if m.finalized {
		return av.WrapError(av.ErrFinalized)
	}
	if pkt.StreamIndex != 0 {
		return av.FormatError(fmt.Errorf("%w: %d", av.ErrStreamIndex, pkt.StreamIndex))
	}
	if len(pkt.Data)%m.blockAlign != 0 {
		return av.FormatError(pcm.ErrPartialSample)
	}
	if m.dataSize+uint64(len(pkt.Data)) >= unknownSize {
		return av.FormatError(ErrTooLarge)
	}

	n, err := out.Write(pkt.Data)
	m.dataSize += uint64(n)
	if err != nil {
		return av.IOError(err)
	}
	return nil
}

// Finalize implements av.Muxer.
func (m *Muxer) Finalize(out avio.Output) error {
	if m.finalized {
		return av.WrapError(av.ErrFinalized)
	}
	m.finalized = true

	pad := m.dataSize & 1
	if pad == 1 {
		if _, err := out.Write([]byte{0}); err != nil {
			return av.IOError(err)
		}
	}

	if out.IsSeekable() {
		riffSize := uint64(headerSize-8) + m.dataSize + pad
		if riffSize > math.MaxUint32 {
			riffSize = unknownSize
		}
		if err := patchUint32(out, riffSizeOffset, uint32(riffSize)); err != nil {
			return av.IOError(fmt.Errorf("patch riff size: %w", err))
		}
		if err := patchUint32(out, dataSizeOffset, uint32(m.dataSize)); err != nil {
			return av.IOError(fmt.Errorf("patch data size: %w", err))
		}
		if _, err := out.Seek(0, io.SeekEnd); err != nil {
			return av.IOError(err)
		}
	}

	if err := out.Flush(); err != nil {
		return av.IOError(err)
	}
	return nil
}

func patchUint32(out avio.Output, offset int64, v uint32) error {
	if _, err := out.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := out.Write(binary.LittleEndian.AppendUint32(nil, v))
	return err
}
