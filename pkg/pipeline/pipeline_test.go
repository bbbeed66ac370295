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

package pipeline

import (
	"errors"
	"testing"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
	"avcore/pkg/av/avmock"
	"avcore/pkg/codecs/pcm"
	"avcore/pkg/config"
	"avcore/pkg/formats/tcf"
	"avcore/pkg/registry"

	"github.com/stretchr/testify/require"
)

var (
	audioCodec = av.MustCodecID("maud")
	videoCodec = av.MustCodecID("mvid")
	subCodec   = av.MustCodecID("msub")
)

// mockRegistry registers avmock decoders for the mock codecs.
// Created decoders are kept in decoders by stream index.
type mockRegistry struct {
	*registry.Registry
	decoders map[int]*avmock.Decoder
}

func newMockRegistry(t *testing.T, configs map[av.CodecID]avmock.DecoderConfig) *mockRegistry {
	t.Helper()
	r := &mockRegistry{
		Registry: registry.New(),
		decoders: make(map[int]*avmock.Decoder),
	}
	for id, c := range configs {
		c := c
		err := r.RegisterCodec(&registry.Codec{
			ID:   id,
			Name: id.String(),
			Kind: c.Kind,
			NewDecoder: func(stream *av.Stream) (av.Decoder, error) {
				d := avmock.NewDecoder(c)
				r.decoders[stream.Index] = d
				return d, nil
			},
		})
		require.NoError(t, err)
	}
	return r
}

func stream(idx int, kind av.StreamKind, codec av.CodecID) av.Stream {
	return av.Stream{
		ID:       uint32(idx + 1),
		Index:    idx,
		TimeBase: av.TimeBaseMillisecond,
		Kind:     kind,
		Codec:    codec,
	}
}

func packet(idx int, pts av.Timestamp) *av.Packet {
	pkt := av.NewPacket(idx, []byte{byte(idx), byte(pts)})
	pkt.PTS = pts
	pkt.DTS = pts
	pkt.Keyframe = true
	return pkt
}

type frameID struct {
	Index int
	PTS   av.Timestamp
}

// recorder collects the index and pts of every written frame.
type recorder struct {
	frames []frameID
	err    error
}

func (r *recorder) WriteFrame(frame *av.Frame) error {
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, frameID{frame.StreamIndex, frame.PTS})
	return nil
}

func TestPipelineRouting(t *testing.T) {
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		audioCodec: {Kind: av.Audio},
		videoCodec: {Kind: av.Video},
	})
	info := av.ContainerInfo{Streams: []av.Stream{
		stream(0, av.Audio, audioCodec),
		stream(1, av.Video, videoCodec),
	}}
	demuxer := avmock.NewDemuxer(info,
		packet(1, 0), packet(0, 0), packet(1, 1), packet(0, 20),
	)

	sink := &recorder{}
	p, err := NewWithDemuxer(demuxer, nil, reg.Registry, sink)
	require.NoError(t, err)
	require.Equal(t, StateRunning, p.State())
	require.Equal(t, &demuxer.Info, p.ContainerInfo())

	require.NoError(t, p.Run())
	require.Equal(t, StateClosed, p.State())

	expected := []frameID{{1, 0}, {0, 0}, {1, 1}, {0, 20}}
	require.Equal(t, expected, sink.frames)

	require.Len(t, reg.decoders[0].Received, 2)
	require.Len(t, reg.decoders[1].Received, 2)
	require.Equal(t, 1, reg.decoders[0].Flushes)
	require.Equal(t, 1, reg.decoders[1].Flushes)

	require.Equal(t, []StreamStats{
		{Packets: 2, Decoded: 2, Frames: 2},
		{Packets: 2, Decoded: 2, Frames: 2},
	}, p.Stats())
	require.Equal(t, 5, demuxer.Reads)
}

func TestPipelineDropsUndecodable(t *testing.T) {
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		audioCodec: {Kind: av.Audio},
		subCodec:   {Kind: av.Subtitle},
	})
	info := av.ContainerInfo{Streams: []av.Stream{
		stream(0, av.Audio, audioCodec),
		stream(1, av.Video, av.MustCodecID("none")), // Not registered.
		stream(2, av.Subtitle, subCodec),            // Disabled by config.
	}}
	demuxer := avmock.NewDemuxer(info,
		packet(1, 0), packet(0, 0), packet(2, 0), packet(1, 1), packet(0, 1),
	)

	c, err := config.NewConfig([]byte("decode:\n  subtitle: false\n"))
	require.NoError(t, err)

	sink := &recorder{}
	p, err := NewWithDemuxer(demuxer, nil, reg.Registry, sink, WithConfig(c))
	require.NoError(t, err)
	require.NoError(t, p.Run())

	require.Equal(t, []frameID{{0, 0}, {0, 1}}, sink.frames)
	require.Equal(t, []StreamStats{
		{Packets: 2, Decoded: 2, Frames: 2},
		{Packets: 2, Dropped: 2},
		{Packets: 1, Dropped: 1},
	}, p.Stats())
	require.NotContains(t, reg.decoders, 2)
}

func TestPipelineUnknownStreamIndex(t *testing.T) {
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		audioCodec: {Kind: av.Audio},
	})
	info := av.ContainerInfo{Streams: []av.Stream{stream(0, av.Audio, audioCodec)}}
	demuxer := avmock.NewDemuxer(info,
		packet(0, 0), packet(5, 0), packet(0, 1), packet(-1, 0), packet(0, 2),
	)

	sink := &recorder{}
	p, err := NewWithDemuxer(demuxer, nil, reg.Registry, sink)
	require.NoError(t, err)
	require.NoError(t, p.Run())

	require.Equal(t, []frameID{{0, 0}, {0, 1}, {0, 2}}, sink.frames)
	require.Equal(t, 2, p.Unrouted())
	require.Equal(t, []StreamStats{{Packets: 3, Decoded: 3, Frames: 3}}, p.Stats())
	require.Equal(t, StateClosed, p.State())
}

func TestPipelineReorder(t *testing.T) {
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		videoCodec: {Kind: av.Video, Delay: 2},
	})
	info := av.ContainerInfo{Streams: []av.Stream{stream(0, av.Video, videoCodec)}}
	demuxer := avmock.NewDemuxer(info,
		packet(0, 0), packet(0, 3), packet(0, 1), packet(0, 2),
	)

	sink := &recorder{}
	p, err := NewWithDemuxer(demuxer, nil, reg.Registry, sink)
	require.NoError(t, err)

	// Nothing is ready while the decoder fills its delay.
	for i := 0; i < 2; i++ {
		more, err := p.Step()
		require.NoError(t, err)
		require.True(t, more)
	}
	require.Empty(t, sink.frames)

	require.NoError(t, p.Run())
	expected := []frameID{{0, 0}, {0, 1}, {0, 2}, {0, 3}}
	require.Equal(t, expected, sink.frames)
}

func TestPipelineTransforms(t *testing.T) {
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		audioCodec: {Kind: av.Audio, Delay: 1},
		videoCodec: {Kind: av.Video},
	})

	var transforms []*avmock.Transform
	err := reg.RegisterTransform("hold", func(_ *av.Stream, params map[string]string) (av.Transform, error) {
		tr := &avmock.Transform{ID: params["id"], Buffer: 1}
		transforms = append(transforms, tr)
		return tr, nil
	})
	require.NoError(t, err)

	c, err := config.NewConfig([]byte(`
transforms:
  - name: hold
    kind: audio
    params:
      id: a
`))
	require.NoError(t, err)

	info := av.ContainerInfo{Streams: []av.Stream{
		stream(0, av.Audio, audioCodec),
		stream(1, av.Video, videoCodec),
	}}
	demuxer := avmock.NewDemuxer(info, packet(0, 0), packet(0, 1), packet(1, 0), packet(0, 2))

	sink := &recorder{}
	p, err := NewWithDemuxer(demuxer, nil, reg.Registry, sink, WithConfig(c))
	require.NoError(t, err)
	require.NoError(t, p.Run())

	require.Len(t, transforms, 1)
	require.Equal(t, "a", transforms[0].Name())

	// Frame 2 is released by the decoder flush and passes through the
	// transform before the transform itself is flushed.
	require.Len(t, transforms[0].Applied, 3)
	expected := []frameID{{1, 0}, {0, 0}, {0, 1}, {0, 2}}
	require.Equal(t, expected, sink.frames)
	require.Equal(t, StreamStats{Packets: 3, Decoded: 3, Frames: 3}, p.Stats()[0])
}

func TestPipelineErrors(t *testing.T) {
	errMock := errors.New("mock")
	info := av.ContainerInfo{Streams: []av.Stream{stream(0, av.Audio, audioCodec)}}

	t.Run("decode", func(t *testing.T) {
		reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
			audioCodec: {Kind: av.Audio, SendErr: errMock},
		})
		demuxer := avmock.NewDemuxer(info, packet(0, 0), packet(0, 1))
		p, err := NewWithDemuxer(demuxer, nil, reg.Registry, &recorder{})
		require.NoError(t, err)

		err = p.Run()
		require.ErrorIs(t, err, av.ErrDecode)
		require.ErrorIs(t, err, errMock)
		require.Equal(t, StateClosed, p.State())
		require.Equal(t, 1, demuxer.Reads)

		require.ErrorIs(t, p.Run(), ErrClosed)
		_, err = p.Step()
		require.ErrorIs(t, err, ErrClosed)
	})
	t.Run("demux", func(t *testing.T) {
		reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
			audioCodec: {Kind: av.Audio},
		})
		demuxer := avmock.NewDemuxer(info, packet(0, 0))
		demuxer.Err = av.IOError(errMock)

		sink := &recorder{}
		p, err := NewWithDemuxer(demuxer, nil, reg.Registry, sink)
		require.NoError(t, err)
		err = p.Run()
		require.ErrorIs(t, err, av.ErrIO)
		require.Equal(t, StateClosed, p.State())
		require.Equal(t, []frameID{{0, 0}}, sink.frames)
	})
	t.Run("sink", func(t *testing.T) {
		reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
			audioCodec: {Kind: av.Audio},
		})
		demuxer := avmock.NewDemuxer(info, packet(0, 0))
		p, err := NewWithDemuxer(demuxer, nil, reg.Registry, &recorder{err: errMock})
		require.NoError(t, err)
		require.ErrorIs(t, p.Run(), errMock)
		require.Equal(t, StateClosed, p.State())
	})
	t.Run("invalidInfo", func(t *testing.T) {
		bad := av.ContainerInfo{Streams: []av.Stream{stream(1, av.Audio, audioCodec)}}
		_, err := NewWithDemuxer(avmock.NewDemuxer(bad), nil, registry.New(), &recorder{})
		require.ErrorIs(t, err, av.ErrInvalidFormat)
	})
	t.Run("decoderConfig", func(t *testing.T) {
		reg := registry.New()
		err := reg.RegisterCodec(&registry.Codec{
			ID:   audioCodec,
			Kind: av.Audio,
			NewDecoder: func(*av.Stream) (av.Decoder, error) {
				return nil, av.WrapError(errMock)
			},
		})
		require.NoError(t, err)
		_, err = NewWithDemuxer(avmock.NewDemuxer(info), nil, reg, &recorder{})
		require.ErrorIs(t, err, errMock)
	})
	t.Run("unknownTransform", func(t *testing.T) {
		reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
			audioCodec: {Kind: av.Audio},
		})
		c, err := config.NewConfig([]byte("transforms:\n  - {name: missing, kind: audio}\n"))
		require.NoError(t, err)
		_, err = NewWithDemuxer(avmock.NewDemuxer(info), nil, reg.Registry, &recorder{}, WithConfig(c))
		require.ErrorIs(t, err, registry.ErrUnknownTransform)
	})
	t.Run("unknownFormat", func(t *testing.T) {
		_, err := New(avio.NewBytesInput([]byte("abcd")), registry.New(), &recorder{})
		require.ErrorIs(t, err, registry.ErrUnknownFormat)
	})
}

func TestPipelineEmpty(t *testing.T) {
	info := av.ContainerInfo{Streams: []av.Stream{stream(0, av.Audio, audioCodec)}}
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		audioCodec: {Kind: av.Audio},
	})
	p, err := NewWithDemuxer(avmock.NewDemuxer(info), nil, reg.Registry, &recorder{})
	require.NoError(t, err)

	more, err := p.Step()
	require.NoError(t, err)
	require.True(t, more)
	require.Equal(t, StateDraining, p.State())
	require.Equal(t, "draining", p.State().String())

	more, err = p.Step()
	require.NoError(t, err)
	require.False(t, more)
	require.Equal(t, StateClosed, p.State())
	require.Equal(t, "closed", p.State().String())
}

func TestPipelineDraining(t *testing.T) {
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		videoCodec: {Kind: av.Video, Delay: 1},
	})
	info := av.ContainerInfo{Streams: []av.Stream{stream(0, av.Video, videoCodec)}}
	demuxer := avmock.NewDemuxer(info, packet(0, 1), packet(0, 0))

	sink := &recorder{}
	p, err := NewWithDemuxer(demuxer, nil, reg.Registry, sink)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		more, err := p.Step()
		require.NoError(t, err)
		require.True(t, more)
	}
	// End of stream was read, the held frame is not flushed yet.
	require.Equal(t, StateDraining, p.State())
	require.Equal(t, []frameID{{0, 0}}, sink.frames)
	require.Zero(t, reg.decoders[0].Flushes)

	more, err := p.Step()
	require.NoError(t, err)
	require.False(t, more)
	require.Equal(t, StateClosed, p.State())
	require.Equal(t, []frameID{{0, 0}, {0, 1}}, sink.frames)
	require.Equal(t, 1, reg.decoders[0].Flushes)
}

// Each transform is created with the time base of the frames it receives.
func TestPipelineChainTimeBase(t *testing.T) {
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		audioCodec: {Kind: av.Audio},
	})
	for _, name := range []string{"rebase", "audio_chunk"} {
		name := name
		err := reg.RegisterTransform(name, func(s *av.Stream, params map[string]string) (av.Transform, error) {
			return registry.Default.NewTransform(name, s, params)
		})
		require.NoError(t, err)
	}

	c, err := config.NewConfig([]byte(`
transforms:
  - name: rebase
    kind: audio
    params:
      timebase: 1/1000
  - name: audio_chunk
    kind: audio
    params:
      samples: "480"
`))
	require.NoError(t, err)

	s := stream(0, av.Audio, audioCodec)
	s.TimeBase = av.MustTimeBase(1, 48000)
	info := av.ContainerInfo{Streams: []av.Stream{s}}

	// 960 u8 samples at 48kHz, one second in.
	pkt := av.NewPacket(0, make([]byte, 960))
	pkt.PTS = 48000
	demuxer := avmock.NewDemuxer(info, pkt)

	sink := &recorder{}
	p, err := NewWithDemuxer(demuxer, nil, reg.Registry, sink, WithConfig(c))
	require.NoError(t, err)
	require.NoError(t, p.Run())

	require.Equal(t, []frameID{{0, 1000}, {0, 1010}}, sink.frames)
	require.Equal(t, av.MustTimeBase(1, 48000), p.ContainerInfo().Streams[0].TimeBase)
}

// Two interleaved streams muxed into a tcf file, probed through the
// registry and decoded by pcm and a reordering video decoder.
func TestPipelineEndToEnd(t *testing.T) {
	reg := newMockRegistry(t, map[av.CodecID]avmock.DecoderConfig{
		videoCodec: {Kind: av.Video, Delay: 1},
	})
	require.NoError(t, reg.RegisterFormat(&registry.Format{
		Name:  "tcf",
		Probe: tcf.Probe,
		NewDemuxer: func(in avio.Input) (av.Demuxer, error) {
			return tcf.NewDemuxer(in)
		},
	}))
	require.NoError(t, reg.RegisterCodec(&registry.Codec{
		ID:   pcm.CodecS16,
		Kind: av.Audio,
		NewDecoder: func(stream *av.Stream) (av.Decoder, error) {
			return pcm.NewDecoder(stream)
		},
	}))

	extradata, err := pcm.Config{SampleRate: 48000, Channels: 1}.Marshal()
	require.NoError(t, err)
	info := &av.ContainerInfo{Streams: []av.Stream{
		{
			ID:        1,
			Index:     0,
			TimeBase:  av.MustTimeBase(1, 48000),
			Kind:      av.Audio,
			Codec:     pcm.CodecS16,
			Extradata: extradata,
		},
		{
			ID:       2,
			Index:    1,
			TimeBase: av.MustTimeBase(1, 30),
			Kind:     av.Video,
			Codec:    videoCodec,
		},
	}}

	audio := func(pts av.Timestamp) *av.Packet {
		pkt := av.NewPacket(0, make([]byte, 2048))
		pkt.PTS, pkt.DTS, pkt.Keyframe = pts, pts, true
		return pkt
	}
	video := func(pts, dts av.Timestamp) *av.Packet {
		pkt := av.NewPacket(1, []byte{byte(pts)})
		pkt.PTS, pkt.DTS = pts, dts
		pkt.Keyframe = pts == 0
		return pkt
	}
	packets := []*av.Packet{
		audio(0), video(0, 0),
		audio(1024), video(2, 1),
		audio(2048), video(1, 2),
	}

	out := &avio.Buffer{}
	m, err := tcf.NewMuxer(out, info)
	require.NoError(t, err)
	for _, pkt := range packets {
		require.NoError(t, m.WritePacket(out, pkt))
	}
	require.NoError(t, m.Finalize(out))

	var frames []*av.Frame
	sink := SinkFunc(func(frame *av.Frame) error {
		frames = append(frames, frame)
		return nil
	})
	p, err := New(out.Input(), reg.Registry, sink, WithName("test"))
	require.NoError(t, err)
	require.Equal(t, info, p.ContainerInfo())
	require.NoError(t, p.Run())
	require.Equal(t, StateClosed, p.State())

	var got []frameID
	for _, f := range frames {
		got = append(got, frameID{f.StreamIndex, f.PTS})
	}
	expected := []frameID{
		{0, 0}, {0, 1024}, {1, 0}, {0, 2048}, {1, 1},
		{1, 2}, // Released by flush.
	}
	require.Equal(t, expected, got)

	a := frames[0].Data.(*av.AudioFrame)
	require.Equal(t, 1024, a.Samples())
	require.Equal(t, uint32(48000), a.SampleRate)

	require.Equal(t, []StreamStats{
		{Packets: 3, Decoded: 3, Frames: 3},
		{Packets: 3, Decoded: 3, Frames: 3},
	}, p.Stats())
}
