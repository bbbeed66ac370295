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

// Package tcf reads and writes the tiny container format.
package tcf

// Single file interleaved container. Big endian.
// Requirements.
//   1. Must be writable to a non-seekable output.
//   2. Packets should be readable as soon as they are written.
//   3. Must keep every packet field, including absent timestamps.
//
//
// header
//   magic           [4]byte "TCF0"
//   version         uint8
//   streamCount     uint16
//   streams         []stream
//   attachmentCount uint16
//   attachments     []attachment
//
// stream
//   id            uint32
//   kind          uint8
//   codec         uint32
//   timeBaseNum   uint32
//   timeBaseDen   uint32
//   extradataSize uint16
//   extradata     []byte
//
// attachment
//   id       uint32
//   nameSize uint16
//   name     []byte
//   mimeSize uint16
//   mime     []byte
//   dataSize uint32
//   data     []byte
//
// records until end of file, each starting with a type byte.
//
// packet 'P'
//   flags       uint8 { keyframe, discard, hasPTS, hasDTS, hasDuration, 3 reserved }
//   streamIndex uint16
//   pts         int64 if hasPTS
//   dts         int64 if hasDTS
//   duration    int64 if hasDuration
//   size        uint32
//   data        []byte
//
// trailer 'X', last record, written by Finalize.
//   indexCount uint32
//   index      []{ streamIndex uint16, pts int64, offset uint64 }
//
// The index lists every keyframe with the file offset of its record.
