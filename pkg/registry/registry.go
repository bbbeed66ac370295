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

// Package registry maps format names, file extensions and codec ids to
// component constructors.
//
// Plugins register themselves into Default from their init function and are
// enabled with a blank import.
package registry

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
)

// DefaultProbeSize number of bytes handed to Format.Probe.
const DefaultProbeSize = 4096

// Format container format.
type Format struct {
	Name string

	// Extensions without the leading dot.
	Extensions []string

	// Probe reports whether header, the first bytes of the input,
	// belongs to this format. header may be shorter than the probe size.
	Probe func(header []byte) bool

	// NewDemuxer is called with the input positioned at the start.
	NewDemuxer func(in avio.Input) (av.Demuxer, error)

	// NewMuxer writes the container header. Nil if muxing is unsupported.
	NewMuxer func(out avio.Output, info *av.ContainerInfo) (av.Muxer, error)
}

// Codec codec implementation.
type Codec struct {
	ID   av.CodecID
	Name string
	Kind av.StreamKind

	// Either constructor may be nil.
	NewDecoder func(stream *av.Stream) (av.Decoder, error)
	NewEncoder func(stream *av.Stream) (av.Encoder, error)
}

// TransformFactory creates a transform for a stream.
type TransformFactory func(stream *av.Stream, params map[string]string) (av.Transform, error)

// Errors.
var (
	ErrUnknownFormat    = errors.New("format not recognized")
	ErrUnknownCodec     = errors.New("unknown codec")
	ErrUnknownTransform = errors.New("unknown transform")
	ErrNotSeekable      = errors.New("input is not seekable")
	ErrNoMuxer          = errors.New("format cannot mux")
	ErrNoDecoder        = errors.New("codec cannot decode")
	ErrNoEncoder        = errors.New("codec cannot encode")
	ErrDuplicate        = errors.New("already registered")
)

// Registry of formats, codecs and transforms. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	formats    []*Format
	codecs     map[av.CodecID]*Codec
	transforms map[string]TransformFactory

	// ProbeSize number of bytes read by OpenDemuxer.
	ProbeSize int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		codecs:     make(map[av.CodecID]*Codec),
		transforms: make(map[string]TransformFactory),
		ProbeSize:  DefaultProbeSize,
	}
}

// RegisterFormat adds a format. Formats are probed in registration order.
func (r *Registry) RegisterFormat(f *Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f2 := range r.formats {
		if f2.Name == f.Name {
			return fmt.Errorf("format %q: %w", f.Name, ErrDuplicate)
		}
	}
	r.formats = append(r.formats, f)
	return nil
}

// RegisterCodec adds a codec.
func (r *Registry) RegisterCodec(c *Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codecs[c.ID]; exists {
		return fmt.Errorf("codec %v: %w", c.ID, ErrDuplicate)
	}
	r.codecs[c.ID] = c
	return nil
}

// RegisterTransform adds a transform factory.
func (r *Registry) RegisterTransform(name string, factory TransformFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transforms[name]; exists {
		return fmt.Errorf("transform %q: %w", name, ErrDuplicate)
	}
	r.transforms[name] = factory
	return nil
}

// OpenDemuxer probes in against every format and returns the demuxer of the
// first match. The input is rewound before each probe and before the demuxer
// is created.
func (r *Registry) OpenDemuxer(in avio.Input) (av.Demuxer, error) {
	if !in.IsSeekable() {
		return nil, av.IOError(ErrNotSeekable)
	}

	r.mu.RLock()
	probeSize := r.ProbeSize
	formats := append([]*Format(nil), r.formats...)
	r.mu.RUnlock()

	if probeSize <= 0 {
		probeSize = DefaultProbeSize
	}

	start, err := avio.Tell(in)
	if err != nil {
		return nil, av.IOError(err)
	}

	header := make([]byte, probeSize)
	for _, f := range formats {
		if f.Probe == nil || f.NewDemuxer == nil {
			continue
		}
		if _, err := in.Seek(start, io.SeekStart); err != nil {
			return nil, av.IOError(err)
		}
		n, err := avio.ReadFull(in, header)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, av.IOError(err)
		}
		if !f.Probe(header[:n]) {
			continue
		}

		if _, err := in.Seek(start, io.SeekStart); err != nil {
			return nil, av.IOError(err)
		}
		d, err := f.NewDemuxer(in)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", f.Name, err)
		}
		return d, nil
	}
	return nil, av.FormatError(ErrUnknownFormat)
}

// FormatByName returns the format called name.
func (r *Registry) FormatByName(name string) (*Format, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.formats {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, av.FormatError(fmt.Errorf("%w: %q", ErrUnknownFormat, name))
}

// FormatByExtension returns the format for the extension of path.
func (r *Registry) FormatByExtension(path string) (*Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.formats {
		for _, e := range f.Extensions {
			if e == ext {
				return f, nil
			}
		}
	}
	return nil, av.FormatError(fmt.Errorf("%w: extension %q", ErrUnknownFormat, ext))
}

// NewMuxer creates a muxer of the named format.
func (r *Registry) NewMuxer(name string, out avio.Output, info *av.ContainerInfo) (av.Muxer, error) {
	f, err := r.FormatByName(name)
	if err != nil {
		return nil, err
	}
	if f.NewMuxer == nil {
		return nil, av.FormatError(fmt.Errorf("%w: %q", ErrNoMuxer, name))
	}
	return f.NewMuxer(out, info)
}

func (r *Registry) codec(id av.CodecID) (*Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, exists := r.codecs[id]
	if !exists {
		return nil, av.CodecError(fmt.Errorf("%w: %v", ErrUnknownCodec, id))
	}
	return c, nil
}

// NewDecoder creates a decoder for stream.
func (r *Registry) NewDecoder(stream *av.Stream) (av.Decoder, error) {
	c, err := r.codec(stream.Codec)
	if err != nil {
		return nil, err
	}
	if c.NewDecoder == nil {
		return nil, av.CodecError(fmt.Errorf("%w: %v", ErrNoDecoder, c.Name))
	}
	return c.NewDecoder(stream)
}

// NewEncoder creates an encoder for stream.
func (r *Registry) NewEncoder(stream *av.Stream) (av.Encoder, error) {
	c, err := r.codec(stream.Codec)
	if err != nil {
		return nil, err
	}
	if c.NewEncoder == nil {
		return nil, av.CodecError(fmt.Errorf("%w: %v", ErrNoEncoder, c.Name))
	}
	return c.NewEncoder(stream)
}

// NewTransform creates the named transform for stream.
func (r *Registry) NewTransform(
	name string,
	stream *av.Stream,
	params map[string]string,
) (av.Transform, error) {
	r.mu.RLock()
	factory, exists := r.transforms[name]
	r.mu.RUnlock()
	if !exists {
		return nil, av.WrapError(fmt.Errorf("%w: %q", ErrUnknownTransform, name))
	}
	t, err := factory(stream, params)
	if err != nil {
		return nil, fmt.Errorf("transform %v: %w", name, err)
	}
	return t, nil
}

// Formats returns the registered format names in registration order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.formats))
	for _, f := range r.formats {
		names = append(names, f.Name)
	}
	return names
}

// Codecs returns the registered codecs sorted by id.
func (r *Registry) Codecs() []*Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codecs := make([]*Codec, 0, len(r.codecs))
	for _, c := range r.codecs {
		codecs = append(codecs, c)
	}
	sort.Slice(codecs, func(i, j int) bool {
		return codecs[i].ID < codecs[j].ID
	})
	return codecs
}

// Default registry used by plugin init functions.
var Default = New()

// RegisterFormat adds a format to Default, it panics on duplicates.
func RegisterFormat(f *Format) {
	if err := Default.RegisterFormat(f); err != nil {
		panic(err)
	}
}

// RegisterCodec adds a codec to Default, it panics on duplicates.
func RegisterCodec(c *Codec) {
	if err := Default.RegisterCodec(c); err != nil {
		panic(err)
	}
}

// RegisterTransform adds a transform to Default, it panics on duplicates.
func RegisterTransform(name string, factory TransformFactory) {
	if err := Default.RegisterTransform(name, factory); err != nil {
		panic(err)
	}
}
