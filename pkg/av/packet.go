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

// Packet is one compressed access unit of a single stream.
// Timestamps are in the time base of that stream.
type Packet struct {
	StreamIndex int

	PTS      Timestamp
	DTS      Timestamp
	Duration Timestamp

	Keyframe bool

	// Discard packet must be decoded for decoder state but its output dropped.
	Discard bool

	// Data is owned by the receiver once the packet is handed over.
	Data []byte
}

// NewPacket returns a packet for stream idx without timestamps.
func NewPacket(idx int, data []byte) *Packet {
	return &Packet{
		StreamIndex: idx,
		PTS:         NoTimestamp,
		DTS:         NoTimestamp,
		Duration:    NoTimestamp,
		Data:        data,
	}
}

// Clone returns a deep copy.
func (p *Packet) Clone() *Packet {
	c := *p
	if p.Data != nil {
		c.Data = append([]byte(nil), p.Data...)
	}
	return &c
}
