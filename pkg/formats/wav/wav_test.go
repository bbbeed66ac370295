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

package wav

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
	"avcore/pkg/codecs/pcm"
	"avcore/pkg/registry"

	"github.com/stretchr/testify/require"
)

// newFile returns a 16 bit stereo 8kHz wave file with a LIST chunk
// before the fmt chunk.
func newFile(data []byte, dataSize uint32) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	b.Write([]byte{0, 0, 0, 0}) // Unused by the demuxer.
	b.WriteString("WAVE")

	b.WriteString("LIST")
	b.Write([]byte{3, 0, 0, 0})
	b.WriteString("abc")
	b.WriteByte(0) // Pad.

	b.WriteString("fmt ")
	b.Write([]byte{18, 0, 0, 0}) // Extended fmt chunk.
	b.Write([]byte{
		1, 0, // Tag.
		2, 0, // Channels.
		0x40, 0x1f, 0, 0, // Sample rate.
		0, 0x7d, 0, 0, // Byte rate.
		4, 0, // Block align.
		16, 0, // Bits per sample.
		0, 0, // Extension size.
	})

	b.WriteString("data")
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, dataSize)
	b.Write(sizeBuf)
	b.Write(data)
	return b.Bytes()
}

func readAll(t *testing.T, d av.Demuxer, in avio.Input) []*av.Packet {
	t.Helper()
	var packets []*av.Packet
	for {
		pkt, err := d.ReadPacket(in)
		if err == io.EOF {
			return packets
		}
		require.NoError(t, err)
		packets = append(packets, pkt)
	}
}

func TestDemuxer(t *testing.T) {
	data := make([]byte, (PacketSamples+2)*4)
	for i := range data {
		data[i] = byte(i)
	}
	file := newFile(data, uint32(len(data)))

	in := avio.NewBytesInput(file)
	d, err := NewDemuxer(in)
	require.NoError(t, err)

	extradata, err := pcm.Config{SampleRate: 8000, Channels: 2}.Marshal()
	require.NoError(t, err)
	expectedInfo := &av.ContainerInfo{
		Streams: []av.Stream{{
			Index:     0,
			TimeBase:  av.MustTimeBase(1, 8000),
			Kind:      av.Audio,
			Codec:     pcm.CodecS16,
			Extradata: extradata,
		}},
	}
	require.Equal(t, expectedInfo, d.ContainerInfo())

	packets := readAll(t, d, in)
	require.Len(t, packets, 2)

	require.Equal(t, av.Timestamp(0), packets[0].PTS)
	require.Equal(t, av.Timestamp(PacketSamples), packets[0].Duration)
	require.Equal(t, data[:PacketSamples*4], packets[0].Data)
	require.True(t, packets[0].Keyframe)

	require.Equal(t, av.Timestamp(PacketSamples), packets[1].PTS)
	require.Equal(t, av.Timestamp(PacketSamples), packets[1].DTS)
	require.Equal(t, av.Timestamp(2), packets[1].Duration)
	require.Equal(t, data[PacketSamples*4:], packets[1].Data)
}

func TestDemuxerNonSeekable(t *testing.T) {
	data := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	in := avio.NewInput(bytes.NewReader(newFile(data, uint32(len(data)))))
	d, err := NewDemuxer(in)
	require.NoError(t, err)

	packets := readAll(t, d, in)
	require.Len(t, packets, 1)
	require.Equal(t, data, packets[0].Data)
}

func TestDemuxerShortData(t *testing.T) {
	t.Run("partialSample", func(t *testing.T) {
		data := []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0}
		in := avio.NewBytesInput(newFile(data, uint32(len(data))))
		d, err := NewDemuxer(in)
		require.NoError(t, err)

		packets := readAll(t, d, in)
		require.Len(t, packets, 1)
		require.Equal(t, data[:8], packets[0].Data)
	})
	t.Run("truncated", func(t *testing.T) {
		data := []byte{1, 0, 2, 0}
		in := avio.NewBytesInput(newFile(data, 400))
		d, err := NewDemuxer(in)
		require.NoError(t, err)

		packets := readAll(t, d, in)
		require.Len(t, packets, 1)
		require.Equal(t, data, packets[0].Data)
	})
	t.Run("unknownSize", func(t *testing.T) {
		data := make([]byte, 4*PacketSamples+4)
		in := avio.NewBytesInput(newFile(data, unknownSize))
		d, err := NewDemuxer(in)
		require.NoError(t, err)
		require.Len(t, readAll(t, d, in), 2)
	})
	t.Run("empty", func(t *testing.T) {
		in := avio.NewBytesInput(newFile(nil, 0))
		d, err := NewDemuxer(in)
		require.NoError(t, err)
		require.Empty(t, readAll(t, d, in))
	})
}

func TestDemuxerErrors(t *testing.T) {
	valid := newFile([]byte{0, 0, 0, 0}, 4)

	fmtOffset := 12 + 8 + 4 + 8 // After RIFF header and LIST chunk.
	withFmt := func(f Fmt) []byte {
		file := append([]byte(nil), valid...)
		copy(file[fmtOffset:], f.Marshal())
		return file
	}

	cases := map[string]struct {
		input    []byte
		kind     error
		expected error
	}{
		"notRiff": {
			[]byte("RIFX\x00\x00\x00\x00WAVE"), av.ErrInvalidFormat, ErrInvalidHeader,
		},
		"truncatedHeader": {
			[]byte("RIFF"), av.ErrInvalidFormat, io.ErrUnexpectedEOF,
		},
		"noData": {
			valid[:fmtOffset+18], av.ErrInvalidFormat, ErrMissingData,
		},
		"dataBeforeFmt": {
			[]byte("RIFF\x00\x00\x00\x00WAVEdata\x00\x00\x00\x00"), av.ErrInvalidFormat, ErrMissingFmt,
		},
		"adpcm": {
			withFmt(Fmt{Tag: 2, Channels: 1, SampleRate: 8000, BlockAlign: 1, BitsPerSample: 4}),
			av.ErrInvalidCodec, ErrUnsupported,
		},
		"blockAlign": {
			withFmt(Fmt{Tag: 1, Channels: 2, SampleRate: 8000, BlockAlign: 3, BitsPerSample: 16}),
			av.ErrInvalidFormat, ErrBlockAlign,
		},
		"zeroChannels": {
			withFmt(Fmt{Tag: 1, SampleRate: 8000, BitsPerSample: 16}),
			av.ErrInvalidFormat, pcm.ErrZeroChannels,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewDemuxer(avio.NewBytesInput(tc.input))
			require.ErrorIs(t, err, tc.kind)
			require.ErrorIs(t, err, tc.expected)
		})
	}
}

func testInfo(t *testing.T) *av.ContainerInfo {
	extradata, err := pcm.Config{SampleRate: 8000, Channels: 1}.Marshal()
	require.NoError(t, err)
	return &av.ContainerInfo{
		Streams: []av.Stream{{
			TimeBase:  av.MustTimeBase(1, 8000),
			Kind:      av.Audio,
			Codec:     pcm.CodecU8,
			Extradata: extradata,
		}},
	}
}

func TestMuxer(t *testing.T) {
	header := func(riffSize, dataSize byte) []byte {
		return []byte{
			'R', 'I', 'F', 'F',
			riffSize, 0, 0, 0,
			'W', 'A', 'V', 'E',
			'f', 'm', 't', ' ',
			16, 0, 0, 0,
			1, 0, // Tag.
			1, 0, // Channels.
			0x40, 0x1f, 0, 0, // Sample rate.
			0x40, 0x1f, 0, 0, // Byte rate.
			1, 0, // Block align.
			8, 0, // Bits per sample.
			'd', 'a', 't', 'a',
			dataSize, 0, 0, 0,
		}
	}

	t.Run("seekable", func(t *testing.T) {
		out := &avio.Buffer{}
		m, err := NewMuxer(out, testInfo(t))
		require.NoError(t, err)

		require.NoError(t, m.WritePacket(out, av.NewPacket(0, []byte{1, 2, 3})))
		require.NoError(t, m.WritePacket(out, av.NewPacket(0, []byte{4, 5})))
		require.NoError(t, m.Finalize(out))

		expected := header(36+5+1, 5)
		expected = append(expected, 1, 2, 3, 4, 5, 0)
		require.Equal(t, expected, out.Bytes())

		require.ErrorIs(t, m.Finalize(out), av.ErrFinalized)
		require.ErrorIs(t, m.WritePacket(out, av.NewPacket(0, []byte{1})), av.ErrFinalized)
	})
	t.Run("nonSeekable", func(t *testing.T) {
		var buf bytes.Buffer
		out := avio.NewOutput(&buf)
		m, err := NewMuxer(out, testInfo(t))
		require.NoError(t, err)
		require.NoError(t, m.WritePacket(out, av.NewPacket(0, []byte{1, 2})))
		require.NoError(t, m.Finalize(out))

		expected := header(0xff, 0xff)
		copy(expected[4:8], []byte{0xff, 0xff, 0xff, 0xff})
		copy(expected[40:44], []byte{0xff, 0xff, 0xff, 0xff})
		expected = append(expected, 1, 2)
		require.Equal(t, expected, buf.Bytes())
	})
	t.Run("errors", func(t *testing.T) {
		info := testInfo(t)
		info.Streams = append(info.Streams, info.Streams[0])
		_, err := NewMuxer(&avio.Buffer{}, info)
		require.ErrorIs(t, err, ErrStreamCount)

		info = testInfo(t)
		info.Streams[0].Extradata = nil
		_, err = NewMuxer(&avio.Buffer{}, info)
		require.ErrorIs(t, err, av.ErrInvalidCodec)

		info = testInfo(t)
		info.Streams[0].Codec = av.MustCodecID("h264")
		_, err = NewMuxer(&avio.Buffer{}, info)
		require.ErrorIs(t, err, av.ErrInvalidCodec)

		out := &avio.Buffer{}
		m, err := NewMuxer(out, testInfo(t))
		require.NoError(t, err)
		err = m.WritePacket(out, av.NewPacket(1, []byte{1}))
		require.ErrorIs(t, err, av.ErrStreamIndex)
	})
}

func TestRoundTrip(t *testing.T) {
	reg := registry.Default
	extradata, err := pcm.Config{SampleRate: 44100, Channels: 2}.Marshal()
	require.NoError(t, err)
	info := &av.ContainerInfo{
		Streams: []av.Stream{{
			TimeBase:  av.MustTimeBase(1, 44100),
			Kind:      av.Audio,
			Codec:     pcm.CodecF32,
			Extradata: extradata,
		}},
	}

	data := make([]byte, 8*(PacketSamples+10))
	for i := range data {
		data[i] = byte(i * 7)
	}

	out := &avio.Buffer{}
	m, err := reg.NewMuxer("wav", out, info)
	require.NoError(t, err)
	require.NoError(t, m.WritePacket(out, av.NewPacket(0, data)))
	require.NoError(t, m.Finalize(out))

	in := out.Input()
	d, err := reg.OpenDemuxer(in)
	require.NoError(t, err)
	require.Equal(t, info, d.ContainerInfo())

	var got []byte
	for _, pkt := range readAll(t, d, in) {
		got = append(got, pkt.Data...)
	}
	require.Equal(t, data, got)

	f, err := reg.FormatByExtension("song.WAV")
	require.NoError(t, err)
	require.Equal(t, "wav", f.Name)
}
