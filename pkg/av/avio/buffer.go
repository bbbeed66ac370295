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

package avio

import (
	"bytes"
	"errors"
	"io"
)

// Buffer is an in-memory seekable Output.
// Writing past the end fills the gap with zero bytes.
type Buffer struct {
	buf bytes.Buffer
	pos int
}

// Write writes at the current position, overwriting existing bytes.
func (b *Buffer) Write(p []byte) (n int, err error) {
	if extra := b.pos - b.buf.Len(); extra > 0 {
		if _, err := b.buf.Write(make([]byte, extra)); err != nil {
			return n, err
		}
	}

	if b.pos < b.buf.Len() {
		n = copy(b.buf.Bytes()[b.pos:], p)
		p = p[n:]
	}

	if len(p) > 0 {
		var bn int
		bn, err = b.buf.Write(p)
		n += bn
	}

	b.pos += n
	return n, err
}

// ErrNegativePosition seek before start.
var ErrNegativePosition = errors.New("negative position")

// Seek sets the write position.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case io.SeekStart:
		newPos = int(offset)
	case io.SeekCurrent:
		newPos = b.pos + int(offset)
	case io.SeekEnd:
		newPos = b.buf.Len() + int(offset)
	}
	if newPos < 0 {
		return 0, ErrNegativePosition
	}
	b.pos = newPos
	return int64(newPos), nil
}

// IsSeekable returns true.
func (b *Buffer) IsSeekable() bool { return true }

// Flush is a no-op.
func (b *Buffer) Flush() error { return nil }

// Bytes returns the written bytes.
func (b *Buffer) Bytes() []byte {
	return b.buf.Bytes()
}

// Input returns a seekable Input over the written bytes.
func (b *Buffer) Input() Input {
	return NewBytesInput(b.buf.Bytes())
}
