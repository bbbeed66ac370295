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

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
	"avcore/pkg/codecs/pcm"
)

// Demuxer reads the data chunk of a wave file.
type Demuxer struct {
	info       *av.ContainerInfo
	blockAlign int

	// Remaining bytes in the data chunk, -1 if unknown.
	remaining int64
	samples   int64
	done      bool
}

// NewDemuxer walks the chunks until the data chunk.
// Unknown chunks are skipped, so in does not need to be seekable.
func NewDemuxer(in avio.Input) (*Demuxer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(in, riff[:]); err != nil {
		return nil, readErr(err)
	}
	if !Probe(riff[:]) {
		return nil, av.FormatError(ErrInvalidHeader)
	}

	var format *Fmt
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(in, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, av.FormatError(ErrMissingData)
			}
			return nil, readErr(err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < fmtSize {
				return nil, av.FormatError(fmt.Errorf("%w: %d", ErrFmtSize, size))
			}
			buf := make([]byte, fmtSize)
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, readErr(err)
			}
			format = &Fmt{}
			if err := format.Unmarshal(buf); err != nil {
				return nil, av.FormatError(err)
			}
			if err := avio.Skip(in, int64(size-fmtSize)+int64(size&1)); err != nil {
				return nil, readErr(err)
			}

		case "data":
			if format == nil {
				return nil, av.FormatError(ErrMissingFmt)
			}
			return newDemuxer(*format, size)

		default:
			if err := avio.Skip(in, int64(size)+int64(size&1)); err != nil {
				return nil, readErr(err)
			}
		}
	}
}

func newDemuxer(f Fmt, dataSize uint32) (*Demuxer, error) {
	codec, err := f.Codec()
	if err != nil {
		return nil, av.CodecError(err)
	}
	config := pcm.Config{SampleRate: f.SampleRate, Channels: f.Channels}
	if err := config.Validate(); err != nil {
		return nil, av.FormatError(err)
	}
	bytesPerSample := (int(f.BitsPerSample) + 7) / 8
	if int(f.BlockAlign) != bytesPerSample*int(f.Channels) {
		return nil, av.FormatError(fmt.Errorf("%w: %d", ErrBlockAlign, f.BlockAlign))
	}
	extradata, err := config.Marshal()
	if err != nil {
		return nil, av.CodecError(err)
	}
	tb, err := av.NewTimeBase(1, f.SampleRate)
	if err != nil {
		return nil, av.FormatError(err)
	}

	remaining := int64(dataSize)
	if dataSize == unknownSize {
		remaining = -1
	}
	return &Demuxer{
		info: &av.ContainerInfo{
			Streams: []av.Stream{{
				Index:     0,
				TimeBase:  tb,
				Kind:      av.Audio,
				Codec:     codec,
				Extradata: extradata,
			}},
		},
		blockAlign: int(f.BlockAlign),
		remaining:  remaining,
	}, nil
}

// ContainerInfo implements av.Demuxer.
func (d *Demuxer) ContainerInfo() *av.ContainerInfo {
	return d.info
}

// ReadPacket implements av.Demuxer. A data chunk that ends early is treated
// as the end of stream, trailing partial samples are dropped.
func (d *Demuxer) ReadPacket(in avio.Input) (*av.Packet, error) {
	if d.done || d.remaining == 0 {
		return nil, io.EOF
	}

	size := int64(PacketSamples * d.blockAlign)
	if d.remaining > 0 && d.remaining < size {
		size = d.remaining
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(in, buf)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, av.IOError(err)
		}
		d.done = true
	}
	n -= n % d.blockAlign
	if n == 0 {
		d.done = true
		return nil, io.EOF
	}
	if d.remaining > 0 {
		d.remaining -= int64(n)
	}

	samples := int64(n / d.blockAlign)
	pkt := av.NewPacket(0, buf[:n])
	pkt.PTS = av.Timestamp(d.samples)
	pkt.DTS = pkt.PTS
	pkt.Duration = av.Timestamp(samples)
	pkt.Keyframe = true
	d.samples += samples
	return pkt, nil
}
