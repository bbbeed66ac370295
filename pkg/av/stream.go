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
	"errors"
	"fmt"
	"strings"
)

// StreamKind is the media type of a stream.
type StreamKind uint8

// Stream kinds.
const (
	Audio StreamKind = iota
	Video
	Subtitle
	Data
)

// StreamKinds all stream kinds in declaration order.
var StreamKinds = []StreamKind{Audio, Video, Subtitle, Data}

func (k StreamKind) String() string {
	switch k {
	case Audio:
		return "audio"
	case Video:
		return "video"
	case Subtitle:
		return "subtitle"
	case Data:
		return "data"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ErrUnknownStreamKind unknown stream kind.
var ErrUnknownStreamKind = errors.New("unknown stream kind")

// ParseStreamKind parses the String form of a kind.
func ParseStreamKind(s string) (StreamKind, error) {
	for _, k := range StreamKinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStreamKind, s)
}

// Stream is one elementary stream inside a container.
type Stream struct {
	// ID is assigned by the container and may be sparse.
	ID uint32

	// Index is the position in ContainerInfo.Streams.
	// Packets and decoders are addressed by Index.
	Index int

	TimeBase  TimeBase
	Kind      StreamKind
	Codec     CodecID
	Extradata []byte // Out-of-band codec configuration, nil if absent.
}

// Attachment is a file embedded in the container, a font or cover art.
type Attachment struct {
	ID       uint32
	Name     string
	MimeType string
	Data     []byte
}

// ContainerInfo is the static view of a container, produced once on open.
type ContainerInfo struct {
	Streams     []Stream
	Attachments []Attachment
}

// ErrStreamIndex stream index out of range.
var ErrStreamIndex = errors.New("stream index out of range")

// Stream returns the stream at index idx.
func (c *ContainerInfo) Stream(idx int) (*Stream, error) {
	if idx < 0 || idx >= len(c.Streams) {
		return nil, fmt.Errorf("%w: %d of %d", ErrStreamIndex, idx, len(c.Streams))
	}
	return &c.Streams[idx], nil
}

// Validate checks that stream indices are dense and time bases valid.
func (c *ContainerInfo) Validate() error {
	for i, s := range c.Streams {
		if s.Index != i {
			return fmt.Errorf("stream %d: %w: index %d", i, ErrStreamIndex, s.Index)
		}
		if !s.TimeBase.Valid() {
			return fmt.Errorf("stream %d: %w", i, ErrInvalidTimeBase)
		}
	}
	return nil
}
