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
	"io"
	"os"
)

type nonSeekable struct{}

func (nonSeekable) Seek(int64, int) (int64, error) { return 0, ErrUnsupported }
func (nonSeekable) IsSeekable() bool               { return false }

// reader adapts a plain io.Reader.
type reader struct {
	nonSeekable
	r io.Reader
}

// NewInput returns a non-seekable Input of unknown size.
func NewInput(r io.Reader) Input {
	return &reader{r: r}
}

func (r *reader) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *reader) Size() (int64, bool)        { return 0, false }

// readSeeker adapts an io.ReadSeeker.
type readSeeker struct {
	r io.ReadSeeker
}

// NewSeekableInput returns a seekable Input.
//
// Size probes the end of r and restores the position. The probe is not
// atomic and must not run while another call on r is in flight.
func NewSeekableInput(r io.ReadSeeker) Input {
	return &readSeeker{r: r}
}

func (r *readSeeker) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *readSeeker) IsSeekable() bool           { return true }

func (r *readSeeker) Seek(offset int64, whence int) (int64, error) {
	return r.r.Seek(offset, whence)
}

func (r *readSeeker) Size() (int64, bool) {
	cur, err := r.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false
	}
	end, err := r.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, false
	}
	if _, err := r.r.Seek(cur, io.SeekStart); err != nil {
		return 0, false
	}
	return end, true
}

// fileInput size is read from Stat instead of probing.
type fileInput struct {
	*os.File
}

// NewFileInput returns a seekable Input backed by f.
func NewFileInput(f *os.File) Input {
	return fileInput{File: f}
}

func (f fileInput) IsSeekable() bool { return true }

func (f fileInput) Size() (int64, bool) {
	info, err := f.Stat()
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// NewBytesInput returns a seekable in-memory Input.
func NewBytesInput(b []byte) Input {
	return NewSeekableInput(bytes.NewReader(b))
}

// Stdin returns a non-seekable Input reading standard input.
func Stdin() Input {
	return NewInput(os.Stdin)
}

// writer adapts a plain io.Writer.
type writer struct {
	nonSeekable
	w io.Writer
}

// NewOutput returns a non-seekable Output.
func NewOutput(w io.Writer) Output {
	return &writer{w: w}
}

func (w *writer) Write(p []byte) (int, error) { return w.w.Write(p) }
func (w *writer) Flush() error                { return flush(w.w) }

// writeSeeker adapts an io.WriteSeeker.
type writeSeeker struct {
	w io.WriteSeeker
}

// NewSeekableOutput returns a seekable Output.
func NewSeekableOutput(w io.WriteSeeker) Output {
	return &writeSeeker{w: w}
}

func (w *writeSeeker) Write(p []byte) (int, error) { return w.w.Write(p) }
func (w *writeSeeker) IsSeekable() bool            { return true }
func (w *writeSeeker) Flush() error                { return flush(w.w) }

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	return w.w.Seek(offset, whence)
}

// NewFileOutput returns a seekable Output backed by f. Flush syncs the file.
func NewFileOutput(f *os.File) Output {
	return NewSeekableOutput(f)
}

// Stdout returns a non-seekable Output writing standard output.
func Stdout() Output {
	return NewOutput(struct{ io.Writer }{os.Stdout})
}

func flush(w interface{}) error {
	switch v := w.(type) {
	case interface{ Flush() error }:
		return v.Flush()
	case interface{ Sync() error }:
		return v.Sync()
	}
	return nil
}
