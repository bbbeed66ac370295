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

// Package pipeline wires a demuxer to per-stream decoders and transforms.
//
// A Pipeline is a synchronous pull loop. Every Step reads one packet, routes
// it to the decoder of its stream and drains the frames that decoder has
// ready through the stream's transform chain into the sink. At end of stream
// every decoder is flushed, then every transform chain.
package pipeline

import (
	"errors"
	"fmt"
	"io"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
	"avcore/pkg/config"
	"avcore/pkg/log"
	"avcore/pkg/registry"
	"avcore/pkg/transform"
)

// State of a pipeline.
type State uint8

// States.
const (
	StateOpening State = iota
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Sink receives the frames in emission order and owns them afterwards.
type Sink interface {
	WriteFrame(frame *av.Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(frame *av.Frame) error

// WriteFrame calls f.
func (f SinkFunc) WriteFrame(frame *av.Frame) error {
	return f(frame)
}

// StreamStats per stream counters.
type StreamStats struct {
	Packets int // Packets read.
	Dropped int // Packets without decoder.
	Decoded int // Frames received from the decoder.
	Frames  int // Frames written to the sink.
}

// ErrClosed pipeline is closed.
var ErrClosed = errors.New("pipeline closed")

// Option pipeline option.
type Option func(*Pipeline)

// WithLogger sets the logger, the default discards everything.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithConfig sets the config, the default is config.Default.
func WithConfig(c *config.Config) Option {
	return func(p *Pipeline) { p.config = c }
}

// WithName sets the input name used in logs.
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

type logFunc func(log.Level, string, ...interface{})

// Pipeline demuxes and decodes one input.
type Pipeline struct {
	in      avio.Input
	demuxer av.Demuxer
	info    *av.ContainerInfo
	sink    Sink

	// Indexed by stream index, nil entries are not decoded.
	decoders []av.Decoder
	chains   []*transform.Chain

	state    State
	stats    []StreamStats
	unrouted int // Packets with a stream index outside the container.

	logger *log.Logger
	config *config.Config
	name   string
	logf   logFunc
}

func newPipeline(in avio.Input, sink Sink, opts []Option) *Pipeline {
	p := &Pipeline{
		in:    in,
		sink:  sink,
		state: StateOpening,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.NewMockLogger()
	}
	if p.config == nil {
		p.config = config.Default()
	}
	p.logf = func(level log.Level, format string, a ...interface{}) {
		p.logger.Level(level).Src("pipeline").Input(p.name).Msgf(format, a...)
	}
	return p
}

// New probes in through the registry and creates one decoder per stream.
// in must be seekable.
func New(in avio.Input, reg *registry.Registry, sink Sink, opts ...Option) (*Pipeline, error) {
	p := newPipeline(in, sink, opts)
	demuxer, err := reg.OpenDemuxer(in)
	if err != nil {
		p.state = StateClosed
		return nil, fmt.Errorf("open demuxer: %w", err)
	}
	if err := p.open(demuxer, reg); err != nil {
		return nil, err
	}
	return p, nil
}

// NewWithDemuxer creates a pipeline for a demuxer that already read its header from in.
func NewWithDemuxer(
	demuxer av.Demuxer,
	in avio.Input,
	reg *registry.Registry,
	sink Sink,
	opts ...Option,
) (*Pipeline, error) {
	p := newPipeline(in, sink, opts)
	if err := p.open(demuxer, reg); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) open(demuxer av.Demuxer, reg *registry.Registry) error {
	info := demuxer.ContainerInfo()
	if err := info.Validate(); err != nil {
		p.state = StateClosed
		return av.FormatError(fmt.Errorf("container info: %w", err))
	}

	p.demuxer = demuxer
	p.info = info
	p.decoders = make([]av.Decoder, len(info.Streams))
	p.chains = make([]*transform.Chain, len(info.Streams))
	p.stats = make([]StreamStats, len(info.Streams))

	for i := range info.Streams {
		stream := &info.Streams[i]
		if !p.config.DecodeKind(stream.Kind) {
			p.logf(log.LevelWarning, "stream %d: %v decoding disabled", i, stream.Kind)
			continue
		}

		decoder, err := reg.NewDecoder(stream)
		if errors.Is(err, av.ErrInvalidCodec) {
			p.logf(log.LevelWarning, "stream %d: not decoded: %v", i, err)
			continue
		}
		if err != nil {
			p.state = StateClosed
			return fmt.Errorf("stream %d: new decoder: %w", i, err)
		}

		chain, err := p.newChain(reg, stream)
		if err != nil {
			p.state = StateClosed
			return fmt.Errorf("stream %d: %w", i, err)
		}

		p.decoders[i] = decoder
		p.chains[i] = chain
		p.logf(log.LevelDebug, "stream %d: %v %v %v", i, stream.Kind, stream.Codec, stream.TimeBase)
	}

	p.state = StateRunning
	return nil
}

// timeBaser is implemented by transforms that change the frame time base.
type timeBaser interface {
	TimeBase() av.TimeBase
}

// newChain builds the configured transforms of stream. Each factory sees
// the time base of the frames it receives, which differs from the stream
// time base after a transform that rescales timestamps.
func (p *Pipeline) newChain(reg *registry.Registry, stream *av.Stream) (*transform.Chain, error) {
	var transforms []av.Transform
	current := *stream
	for _, tc := range p.config.TransformsFor(stream.Kind) {
		t, err := reg.NewTransform(tc.Name, &current, tc.Params)
		if err != nil {
			return nil, err
		}
		if tb, ok := t.(timeBaser); ok {
			current.TimeBase = tb.TimeBase()
		}
		transforms = append(transforms, t)
	}
	return transform.NewChain(transforms...), nil
}

// Step processes one packet. End of stream moves the pipeline to Draining,
// the following Step flushes every decoder and transform chain, closes the
// pipeline and returns false. Any error closes the pipeline.
func (p *Pipeline) Step() (bool, error) {
	switch p.state {
	case StateOpening, StateClosed:
		return false, ErrClosed
	case StateDraining:
		if err := p.drain(); err != nil {
			return false, p.fail(err)
		}
		p.state = StateClosed
		p.logf(log.LevelDebug, "closed: %v", p.summary())
		return false, nil
	}

	pkt, err := p.demuxer.ReadPacket(p.in)
	if errors.Is(err, io.EOF) {
		p.state = StateDraining
		return true, nil
	}
	if err != nil {
		return false, p.fail(fmt.Errorf("read packet: %w", err))
	}

	idx := pkt.StreamIndex
	if idx < 0 || idx >= len(p.decoders) {
		if p.unrouted == 0 {
			p.logf(log.LevelWarning, "dropping packets: %v: %d", av.ErrStreamIndex, idx)
		}
		p.unrouted++
		return true, nil
	}
	p.stats[idx].Packets++

	decoder := p.decoders[idx]
	if decoder == nil {
		if p.stats[idx].Dropped == 0 {
			p.logf(log.LevelDebug, "stream %d: dropping packets", idx)
		}
		p.stats[idx].Dropped++
		return true, nil
	}

	if err := decoder.SendPacket(pkt); err != nil {
		return false, p.fail(fmt.Errorf("stream %d: send packet: %w", idx, err))
	}
	if err := p.receive(idx); err != nil {
		return false, p.fail(err)
	}
	return true, nil
}

// Run steps until the pipeline is closed.
func (p *Pipeline) Run() error {
	if p.state == StateClosed {
		return ErrClosed
	}
	for {
		more, err := p.Step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (p *Pipeline) fail(err error) error {
	p.state = StateClosed
	p.logf(log.LevelError, "%v", err)
	return err
}

// receive drains every frame the decoder of stream idx has ready.
func (p *Pipeline) receive(idx int) error {
	decoder := p.decoders[idx]
	for {
		frame, err := decoder.ReceiveFrame()
		if err != nil {
			return fmt.Errorf("stream %d: receive frame: %w", idx, err)
		}
		if frame == nil {
			return nil
		}
		p.stats[idx].Decoded++

		frames, err := p.chains[idx].Apply(frame)
		if err != nil {
			return fmt.Errorf("stream %d: transform: %w", idx, err)
		}
		if err := p.write(idx, frames); err != nil {
			return err
		}
	}
}

func (p *Pipeline) write(idx int, frames []*av.Frame) error {
	for _, frame := range frames {
		if err := p.sink.WriteFrame(frame); err != nil {
			return fmt.Errorf("stream %d: write frame: %w", idx, err)
		}
		p.stats[idx].Frames++
	}
	return nil
}

// drain flushes every decoder and then every transform chain.
func (p *Pipeline) drain() error {
	for idx, decoder := range p.decoders {
		if decoder == nil {
			continue
		}
		if err := decoder.Flush(); err != nil {
			return fmt.Errorf("stream %d: flush decoder: %w", idx, err)
		}
		if err := p.receive(idx); err != nil {
			return err
		}
	}
	for idx, chain := range p.chains {
		if chain == nil {
			continue
		}
		frames, err := chain.Flush()
		if err != nil {
			return fmt.Errorf("stream %d: flush transforms: %w", idx, err)
		}
		if err := p.write(idx, frames); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) summary() string {
	var s string
	for i, st := range p.stats {
		if i != 0 {
			s += ", "
		}
		s += fmt.Sprintf("stream %d: %d packets, %d dropped, %d frames",
			i, st.Packets, st.Dropped, st.Frames)
	}
	if p.unrouted != 0 {
		s += fmt.Sprintf(", %d packets without stream", p.unrouted)
	}
	return s
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

// ContainerInfo returns the info of the demuxer.
func (p *Pipeline) ContainerInfo() *av.ContainerInfo {
	return p.info
}

// Unrouted returns the number of dropped packets whose stream index is
// outside the container.
func (p *Pipeline) Unrouted() int {
	return p.unrouted
}

// Stats returns a copy of the per stream counters.
func (p *Pipeline) Stats() []StreamStats {
	return append([]StreamStats(nil), p.stats...)
}
