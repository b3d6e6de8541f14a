// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Command bzcat decompresses bzip2 files to standard output.
//
// With no file arguments, or with "-", it reads standard input. Decompressed
// data may optionally be recompressed into another format on the fly.
//
// Example usage:
//	$ bzcat -v -small archive.tar.bz2 > archive.tar
//	$ bzcat -format zstd -o archive.tar.zst archive.tar.bz2
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	strconv "github.com/dsnet/golib/unitconv"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/dsnet/bzstream/bzip2"
)

var (
	outPath = flag.String("o", "", "Write output to this file instead of standard output")
	small   = flag.Bool("small", false, "Use the slower decoder that needs less memory")
	format  = flag.String("format", "raw", "Recompress output as one of: raw, gzip, zstd, xz")
	verbose = flag.Bool("v", false, "Print statistics of every stream to standard error")
	bufSize = flag.String("bufsize", "64Ki", "Size of the input buffer")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [file ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	nb, err := strconv.ParsePrefix(*bufSize, strconv.AutoParse)
	if err != nil || nb < 1 {
		fatalf("invalid buffer size: %q", *bufSize)
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)
	sink, err := newSink(bw, *format)
	if err != nil {
		fatalf("%v", err)
	}

	files := flag.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	zr, err := bzip2.NewReader(nil, &bzip2.ReaderConfig{SmallMode: *small, BufferSize: int(nb)})
	if err != nil {
		fatalf("%v", err)
	}
	var failed bool
	for _, name := range files {
		if err := decompress(sink, zr, name); err != nil {
			fmt.Fprintf(os.Stderr, "bzcat: %s: %v\n", name, err)
			failed = true
		}
	}

	if err := sink.Close(); err != nil {
		fatalf("%v", err)
	}
	if err := bw.Flush(); err != nil {
		fatalf("%v", err)
	}
	if failed {
		os.Exit(1)
	}
}

// decompress copies the decoded contents of the named file to w.
func decompress(w io.Writer, zr *bzip2.Reader, name string) error {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	zr.Reset(r)
	_, err := io.Copy(w, zr)
	if *verbose {
		printStats(name, zr)
	}
	if cerr := zr.Close(); err == nil {
		err = cerr
	}
	return err
}

func printStats(name string, zr *bzip2.Reader) {
	fmt.Fprintf(os.Stderr, "%s: %sB in, %sB out\n", name,
		formatSize(zr.InputOffset), formatSize(zr.OutputOffset))
	for i, s := range zr.Streams() {
		fmt.Fprintf(os.Stderr, "\tstream %d: level %d, %d blocks, %d randomized, crc 0x%08x\n",
			i, s.Level, s.Blocks, s.Randomized, s.StreamCRC)
	}
}

func formatSize(n int64) string {
	s := strconv.FormatPrefix(float64(n), strconv.Base1024, 2)
	return strings.Replace(s, ".00", "", -1)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// newSink wraps w with an encoder for the named output format.
func newSink(w io.Writer, format string) (io.WriteCloser, error) {
	switch format {
	case "raw":
		return nopCloser{w}, nil
	case "gzip":
		return gzip.NewWriter(w), nil
	case "zstd":
		return zstd.NewWriter(w)
	case "xz":
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("unknown output format: %q", format)
	}
}

func fatalf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "bzcat: "+f+"\n", args...)
	os.Exit(1)
}
