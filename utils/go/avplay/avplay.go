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

// Package avplay is a CLI utility that decodes media files and logs the frames.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"avcore/pkg/av"
	"avcore/pkg/av/avio"
	_ "avcore/pkg/codecs/pcm"
	"avcore/pkg/config"
	_ "avcore/pkg/formats/tcf"
	_ "avcore/pkg/formats/wav"
	"avcore/pkg/log"
	"avcore/pkg/pipeline"
	"avcore/pkg/registry"
	_ "avcore/pkg/transform"

	"golang.org/x/sync/errgroup"
)

const usage = `decode media files and log every frame
example: avplay -config ./avplay.yaml song.wav clip.tcf
use - to read from stdin`

func main() {
	if err := run(); err != nil {
		stdlog.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "configuration file")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		return nil
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}
	registry.Default.ProbeSize = cfg.ProbeSize

	wg := &sync.WaitGroup{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.NewLogger(wg)
	logger.SetLevel(cfg.LogLevel())
	logger.Start(ctx)
	go logger.LogToStdout(ctx)

	if cfg.LogDB != "" {
		logDB := log.NewDB(cfg.LogDB, wg)
		if err := logDB.Init(ctx); err != nil {
			// Continue without log database.
			time.Sleep(10 * time.Millisecond)
			logger.Error().Src("app").Msgf("could not initialize log database: %v", err)
		} else {
			go logDB.SaveLogs(ctx, logger)
		}
	}
	time.Sleep(10 * time.Millisecond)

	g, ctx2 := errgroup.WithContext(ctx)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			return playFile(ctx2, logger, cfg, path)
		})
	}
	err := g.Wait()

	// Let the last logs reach the subscribers.
	time.Sleep(10 * time.Millisecond)
	cancel()
	wg.Wait()
	return err
}

func playFile(ctx context.Context, logger *log.Logger, cfg *config.Config, path string) error {
	name := filepath.Base(path)
	if path == "-" {
		// Probing needs a seekable input.
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		name = "stdin"
		_, err = play(ctx, logger, cfg, registry.Default, name, avio.NewBytesInput(buf))
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	_, err = play(ctx, logger, cfg, registry.Default, name, avio.NewFileInput(file))
	return err
}

// play decodes in until the end of stream or until ctx is canceled.
func play(
	ctx context.Context,
	logger *log.Logger,
	cfg *config.Config,
	reg *registry.Registry,
	name string,
	in avio.Input,
) ([]pipeline.StreamStats, error) {
	logf := func(level log.Level, format string, a ...interface{}) {
		logger.Level(level).Src("avplay").Input(name).Msgf(format, a...)
	}

	var info *av.ContainerInfo
	sink := pipeline.SinkFunc(func(frame *av.Frame) error {
		stream, err := info.Stream(frame.StreamIndex)
		if err != nil {
			return err
		}
		logf(log.LevelDebug, "stream %d: %v %v",
			frame.StreamIndex, frame.PTS.Duration(stream.TimeBase), describe(frame))
		return nil
	})

	p, err := pipeline.New(in, reg, sink,
		pipeline.WithLogger(logger),
		pipeline.WithConfig(cfg),
		pipeline.WithName(name),
	)
	if err != nil {
		logf(log.LevelError, "%v", err)
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	info = p.ContainerInfo()

	for i, s := range info.Streams {
		logf(log.LevelInfo, "stream %d: %v %v %v", i, s.Kind, s.Codec, s.TimeBase)
	}

	for {
		if err := ctx.Err(); err != nil {
			return p.Stats(), err
		}
		more, err := p.Step()
		if err != nil {
			return p.Stats(), fmt.Errorf("%v: %w", name, err)
		}
		if !more {
			break
		}
	}

	stats := p.Stats()
	for i, s := range stats {
		logf(log.LevelInfo, "stream %d: %d packets, %d dropped, %d frames",
			i, s.Packets, s.Dropped, s.Frames)
	}
	return stats, nil
}

func describe(frame *av.Frame) string {
	switch d := frame.Data.(type) {
	case *av.AudioFrame:
		return fmt.Sprintf("%d samples %v %d ch %d Hz",
			d.Samples(), d.Format.ID, d.Channels, d.SampleRate)
	case *av.VideoFrame:
		return fmt.Sprintf("%dx%d %v keyframe=%v", d.Width, d.Height, d.Format.ID, d.Keyframe)
	case *av.SubtitleFrame:
		return fmt.Sprintf("%v %q", d.Format, d.Data)
	}
	return "unknown"
}
