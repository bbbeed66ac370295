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
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"avcore/pkg/av"

	"github.com/icza/bitio"
)

// Record types.
const (
	recordPacket  = 'P'
	recordTrailer = 'X'
)

type packetFlags struct {
	keyframe    bool
	discard     bool
	hasPTS      bool
	hasDTS      bool
	hasDuration bool
}

func (f packetFlags) marshal() (byte, error) {
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)
	w.TryWriteBool(f.keyframe)
	w.TryWriteBool(f.discard)
	w.TryWriteBool(f.hasPTS)
	w.TryWriteBool(f.hasDTS)
	w.TryWriteBool(f.hasDuration)
	w.TryWriteBits(0, 3) // Reserved.
	if w.TryError != nil {
		return 0, w.TryError
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return buf.Bytes()[0], nil
}

func (f *packetFlags) unmarshal(b byte) error {
	r := bitio.NewReader(bytes.NewReader([]byte{b}))
	f.keyframe = r.TryReadBool()
	f.discard = r.TryReadBool()
	f.hasPTS = r.TryReadBool()
	f.hasDTS = r.TryReadBool()
	f.hasDuration = r.TryReadBool()
	return r.TryError
}

// marshalPacket returns the packet record including the type byte.
func marshalPacket(pkt *av.Packet) ([]byte, error) {
	if pkt.StreamIndex < 0 || pkt.StreamIndex > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", av.ErrStreamIndex, pkt.StreamIndex)
	}
	if uint64(len(pkt.Data)) > math.MaxUint32 {
		return nil, fmt.Errorf("packet data: %w", ErrFieldTooLarge)
	}

	flags := packetFlags{
		keyframe:    pkt.Keyframe,
		discard:     pkt.Discard,
		hasPTS:      pkt.PTS.Valid(),
		hasDTS:      pkt.DTS.Valid(),
		hasDuration: pkt.Duration.Valid(),
	}
	flagByte, err := flags.marshal()
	if err != nil {
		return nil, err
	}

	size := 1 + 1 + 2 + 4 + len(pkt.Data)
	for _, has := range []bool{flags.hasPTS, flags.hasDTS, flags.hasDuration} {
		if has {
			size += 8
		}
	}
	out := make([]byte, size)
	pos := 0

	out[pos] = recordPacket
	pos++
	out[pos] = flagByte
	pos++
	binary.BigEndian.PutUint16(out[pos:pos+2], uint16(pkt.StreamIndex))
	pos += 2

	putTimestamp := func(has bool, ts av.Timestamp) {
		if has {
			binary.BigEndian.PutUint64(out[pos:pos+8], uint64(ts))
			pos += 8
		}
	}
	putTimestamp(flags.hasPTS, pkt.PTS)
	putTimestamp(flags.hasDTS, pkt.DTS)
	putTimestamp(flags.hasDuration, pkt.Duration)

	binary.BigEndian.PutUint32(out[pos:pos+4], uint32(len(pkt.Data)))
	pos += 4
	copy(out[pos:], pkt.Data)

	return out, nil
}

// unmarshalPacket reads a packet record after its type byte.
func unmarshalPacket(r io.Reader) (*av.Packet, error) {
	var head [3]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	var flags packetFlags
	if err := flags.unmarshal(head[0]); err != nil {
		return nil, err
	}

	pkt := av.NewPacket(int(binary.BigEndian.Uint16(head[1:3])), nil)
	pkt.Keyframe = flags.keyframe
	pkt.Discard = flags.discard

	readTimestamp := func(has bool, ts *av.Timestamp) error {
		if !has {
			return nil
		}
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*ts = av.Timestamp(binary.BigEndian.Uint64(buf[:]))
		return nil
	}
	if err := readTimestamp(flags.hasPTS, &pkt.PTS); err != nil {
		return nil, err
	}
	if err := readTimestamp(flags.hasDTS, &pkt.DTS); err != nil {
		return nil, err
	}
	if err := readTimestamp(flags.hasDuration, &pkt.Duration); err != nil {
		return nil, err
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, err
	}
	data, err := readN(r, int(binary.BigEndian.Uint32(sizeBuf[:])))
	if err != nil {
		return nil, err
	}
	pkt.Data = data

	return pkt, nil
}

// IndexEntry keyframe position.
type IndexEntry struct {
	StreamIndex int
	PTS         av.Timestamp

	// Offset of the packet record from the start of the file.
	Offset uint64
}

const indexEntrySize = 2 + 8 + 8

func marshalTrailer(index []IndexEntry) []byte {
	out := make([]byte, 1+4+len(index)*indexEntrySize)
	pos := 0

	out[pos] = recordTrailer
	pos++
	binary.BigEndian.PutUint32(out[pos:pos+4], uint32(len(index)))
	pos += 4

	for _, e := range index {
		binary.BigEndian.PutUint16(out[pos:pos+2], uint16(e.StreamIndex))
		binary.BigEndian.PutUint64(out[pos+2:pos+10], uint64(e.PTS))
		binary.BigEndian.PutUint64(out[pos+10:pos+18], e.Offset)
		pos += indexEntrySize
	}
	return out
}

// unmarshalTrailer reads a trailer record after its type byte.
func unmarshalTrailer(r io.Reader) ([]IndexEntry, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := int(binary.BigEndian.Uint32(countBuf[:]))

	buf, err := readN(r, count*indexEntrySize)
	if err != nil {
		return nil, err
	}

	index := make([]IndexEntry, count)
	for i := range index {
		e := buf[i*indexEntrySize:]
		index[i] = IndexEntry{
			StreamIndex: int(binary.BigEndian.Uint16(e[0:2])),
			PTS:         av.Timestamp(binary.BigEndian.Uint64(e[2:10])),
			Offset:      binary.BigEndian.Uint64(e[10:18]),
		}
	}
	return index, nil
}
