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

// Package remux is a CLI utility that copies the packets of a media file
// into another container without decoding them.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"avcore/pkg/av/avio"
	_ "avcore/pkg/formats/tcf"
	_ "avcore/pkg/formats/wav"
	"avcore/pkg/registry"
)

const usage = `copy packets into another container
example: remux -format tcf song.wav song.tcf
the format defaults to the extension of the output file`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	format := flag.String("format", "", "output format")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		return nil
	}
	inPath, outPath := args[0], args[1]

	if *format == "" {
		f, err := registry.Default.FormatByExtension(outPath)
		if err != nil {
			return err
		}
		*format = f.Name
	}

	inFile, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inFile.Close()

	outFile, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer outFile.Close()

	n, err := remux(registry.Default, avio.NewFileInput(inFile), avio.NewFileOutput(outFile), *format)
	if err != nil {
		return err
	}
	fmt.Printf("[OK] %v: %d packets\n", outPath, n)
	return nil
}

// remux copies every packet of in to out and returns the packet count.
func remux(reg *registry.Registry, in avio.Input, out avio.Output, format string) (int, error) {
	demuxer, err := reg.OpenDemuxer(in)
	if err != nil {
		return 0, fmt.Errorf("open demuxer: %w", err)
	}

	muxer, err := reg.NewMuxer(format, out, demuxer.ContainerInfo())
	if err != nil {
		return 0, fmt.Errorf("create muxer: %w", err)
	}

	var n int
	for {
		pkt, err := demuxer.ReadPacket(in)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read packet: %w", err)
		}
		if err := muxer.WritePacket(out, pkt); err != nil {
			return n, fmt.Errorf("write packet: %w", err)
		}
		n++
	}

	if err := muxer.Finalize(out); err != nil {
		return n, fmt.Errorf("finalize: %w", err)
	}
	return n, nil
}
