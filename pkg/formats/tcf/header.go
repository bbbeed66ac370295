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
	"errors"
	"fmt"
	"io"
	"math"

	"avcore/pkg/av"
)

// Magic file signature.
var Magic = []byte("TCF0")

const version = 0

// Header errors.
var (
	ErrInvalidMagic       = errors.New("invalid magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrFieldTooLarge      = errors.New("field too large")
)

// Header file header.
type Header struct {
	Streams     []av.Stream
	Attachments []av.Attachment
}

// Size marshaled size.
func (h Header) Size() int {
	n := 4 + 1 + 2 + 2
	for _, s := range h.Streams {
		n += 4 + 1 + 4 + 4 + 4 + 2 + len(s.Extradata)
	}
	for _, a := range h.Attachments {
		n += 4 + 2 + len(a.Name) + 2 + len(a.MimeType) + 4 + len(a.Data)
	}
	return n
}

// Marshal header.
func (h Header) Marshal() ([]byte, error) {
	if len(h.Streams) > math.MaxUint16 || len(h.Attachments) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: count", ErrFieldTooLarge)
	}

	out := make([]byte, h.Size())
	pos := 0

	copy(out, Magic)
	pos += 4

	out[pos] = version
	pos++

	binary.BigEndian.PutUint16(out[pos:pos+2], uint16(len(h.Streams)))
	pos += 2

	for _, s := range h.Streams {
		binary.BigEndian.PutUint32(out[pos:pos+4], s.ID)
		pos += 4
		out[pos] = uint8(s.Kind)
		pos++
		binary.BigEndian.PutUint32(out[pos:pos+4], uint32(s.Codec))
		pos += 4
		binary.BigEndian.PutUint32(out[pos:pos+4], s.TimeBase.Num())
		pos += 4
		binary.BigEndian.PutUint32(out[pos:pos+4], s.TimeBase.Den())
		pos += 4
		if err := marshalArray16(out, &pos, s.Extradata); err != nil {
			return nil, fmt.Errorf("stream %d extradata: %w", s.Index, err)
		}
	}

	binary.BigEndian.PutUint16(out[pos:pos+2], uint16(len(h.Attachments)))
	pos += 2

	for _, a := range h.Attachments {
		binary.BigEndian.PutUint32(out[pos:pos+4], a.ID)
		pos += 4
		if err := marshalArray16(out, &pos, []byte(a.Name)); err != nil {
			return nil, fmt.Errorf("attachment name: %w", err)
		}
		if err := marshalArray16(out, &pos, []byte(a.MimeType)); err != nil {
			return nil, fmt.Errorf("attachment mime type: %w", err)
		}
		if uint64(len(a.Data)) > math.MaxUint32 {
			return nil, fmt.Errorf("attachment data: %w", ErrFieldTooLarge)
		}
		binary.BigEndian.PutUint32(out[pos:pos+4], uint32(len(a.Data)))
		pos += 4
		copy(out[pos:], a.Data)
		pos += len(a.Data)
	}

	return out, nil
}

func marshalArray16(out []byte, pos *int, value []byte) error {
	size := len(value)
	if size > math.MaxUint16 {
		return fmt.Errorf("%w: %d", ErrFieldTooLarge, size)
	}
	binary.BigEndian.PutUint16(out[*pos:*pos+2], uint16(size))
	*pos += 2

	copy(out[*pos:*pos+size], value)
	*pos += size
	return nil
}

// Unmarshal header from reader. Returns the number of bytes read.
func (h *Header) Unmarshal(r io.Reader) (int, error) {
	hr := &headerReader{r: r}

	magic := hr.read(4)
	if hr.err == nil && !bytes.Equal(magic, Magic) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMagic, magic)
	}
	v := hr.uint8()
	if hr.err == nil && v != version {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	streamCount := int(hr.uint16())
	h.Streams = nil
	for i := 0; i < streamCount && hr.err == nil; i++ {
		s := av.Stream{
			ID:    hr.uint32(),
			Index: i,
			Kind:  av.StreamKind(hr.uint8()),
			Codec: av.CodecID(hr.uint32()),
		}
		num, den := hr.uint32(), hr.uint32()
		s.Extradata = hr.read(int(hr.uint16()))
		if hr.err != nil {
			break
		}

		if s.Kind > av.Data {
			return 0, fmt.Errorf("stream %d: %w: %d", i, av.ErrUnknownStreamKind, s.Kind)
		}
		tb, err := av.NewTimeBase(num, den)
		if err != nil {
			return 0, fmt.Errorf("stream %d: %w", i, err)
		}
		s.TimeBase = tb
		h.Streams = append(h.Streams, s)
	}

	attachmentCount := int(hr.uint16())
	h.Attachments = nil
	for i := 0; i < attachmentCount && hr.err == nil; i++ {
		a := av.Attachment{
			ID:       hr.uint32(),
			Name:     string(hr.read(int(hr.uint16()))),
			MimeType: string(hr.read(int(hr.uint16()))),
		}
		a.Data = hr.read(int(hr.uint32()))
		h.Attachments = append(h.Attachments, a)
	}

	if hr.err != nil {
		return 0, hr.err
	}
	return hr.n, nil
}

// headerReader keeps the first error and the number of bytes read.
type headerReader struct {
	r   io.Reader
	n   int
	err error
}

func (r *headerReader) read(size int) []byte {
	if r.err != nil || size == 0 {
		return nil
	}
	buf, err := readN(r.r, size)
	r.n += len(buf)
	if err != nil {
		r.err = err
		return nil
	}
	return buf
}

// readN reads exactly n bytes. Large sizes are read incrementally so a
// corrupt size field cannot allocate more than the input holds.
func readN(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n <= maxPrealloc {
		buf := make([]byte, n)
		read, err := io.ReadFull(r, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return buf[:read], err
		}
		return buf, nil
	}
	buf, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return buf, err
	}
	if len(buf) != n {
		return buf, io.ErrUnexpectedEOF
	}
	return buf, nil
}

const maxPrealloc = 1 << 20

func (r *headerReader) uint8() uint8 {
	buf := r.read(1)
	if buf == nil {
		return 0
	}
	return buf[0]
}

func (r *headerReader) uint16() uint16 {
	buf := r.read(2)
	if buf == nil {
		return 0
	}
	return binary.BigEndian.Uint16(buf)
}

func (r *headerReader) uint32() uint32 {
	buf := r.read(4)
	if buf == nil {
		return 0
	}
	return binary.BigEndian.Uint32(buf)
}

// ContainerInfo converts header to container info.
func (h Header) ContainerInfo() *av.ContainerInfo {
	return &av.ContainerInfo{
		Streams:     h.Streams,
		Attachments: h.Attachments,
	}
}
