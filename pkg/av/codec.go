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

package av

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Codec id errors.
var (
	ErrCodecIDLength       = errors.New("codec id must be exactly 4 bytes")
	ErrCodecIDNotPrintable = errors.New("codec id must contain printable ASCII characters")
)

// CodecID is a four-character code stored big-endian in a uint32.
type CodecID uint32

// CodecIDFromBytes returns the codec id for b.
// Every byte must be printable ASCII.
func CodecIDFromBytes(b [4]byte) (CodecID, error) {
	for _, c := range b {
		if !isPrintable(c) {
			return 0, fmt.Errorf("%w: % x", ErrCodecIDNotPrintable, b[:])
		}
	}
	return CodecID(binary.BigEndian.Uint32(b[:])), nil
}

// ParseCodecID parses a four character string.
func ParseCodecID(s string) (CodecID, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrCodecIDLength, s)
	}
	var b [4]byte
	copy(b[:], s)
	return CodecIDFromBytes(b)
}

// MustCodecID is like ParseCodecID but panics on error.
func MustCodecID(s string) CodecID {
	id, err := ParseCodecID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Bytes returns the four bytes of the code.
func (id CodecID) Bytes() [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return b
}

// String returns the ASCII form, or 0xAABBCCDD if any byte is not printable.
func (id CodecID) String() string {
	b := id.Bytes()
	for _, c := range b {
		if !isPrintable(c) {
			return fmt.Sprintf("0x%02X%02X%02X%02X", b[0], b[1], b[2], b[3])
		}
	}
	return string(b[:])
}

func isPrintable(c byte) bool {
	return c >= 0x20 && c < 0x7f
}
