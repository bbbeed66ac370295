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

// Package avio decouples container implementations from byte sources and sinks.
//
// Demuxers and muxers depend only on Input and Output. Seek and Size are
// optional capabilities: non-seekable backends return ErrUnsupported and
// report an unknown size.
package avio

import (
	"errors"
	"io"
)

// ErrUnsupported operation is not supported by the backend.
var ErrUnsupported = errors.New("unsupported")

// Input is a byte source.
type Input interface {
	io.Reader

	// Seek returns ErrUnsupported if IsSeekable is false.
	Seek(offset int64, whence int) (int64, error)

	// Size returns the total size, false if unknown.
	Size() (int64, bool)

	IsSeekable() bool
}

// Output is a byte sink.
type Output interface {
	io.Writer

	// Seek returns ErrUnsupported if IsSeekable is false.
	Seek(offset int64, whence int) (int64, error)

	IsSeekable() bool

	// Flush pushes buffered bytes to the backend.
	Flush() error
}

// ReadFull reads exactly len(buf) bytes from in.
func ReadFull(in Input, buf []byte) (int, error) {
	return io.ReadFull(in, buf)
}

// Tell returns the current position of a seekable input or output.
func Tell(s io.Seeker) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

// Skip discards n bytes, seeking when possible.
func Skip(in Input, n int64) error {
	if n <= 0 {
		return nil
	}
	if in.IsSeekable() {
		_, err := in.Seek(n, io.SeekCurrent)
		return err
	}
	copied, err := io.CopyN(io.Discard, in, n)
	if err != nil {
		if errors.Is(err, io.EOF) && copied < n {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}
