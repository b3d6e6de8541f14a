// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Benchmark tool to compare performance between multiple bzip2
// implementations. Individual implementations are referred to as codecs.
//
// Example usage:
//	$ go build -o bzbench ./cmd/bzbench
//	$ ./bzbench \
//		-tests  decRate             \
//		-codecs std,ds,bz,bz-small  \
//		-files  text.txt            \
//		-levels 1,6,9               \
//		-sizes  1e4,1e5,1e6
//
//	BENCHMARK: decRate
//		benchmark          std MB/s  delta      ds MB/s  delta      bz MB/s  delta      bz-small MB/s  delta
//		text.txt:1:1e4        ...
//
//	RUNTIME: 1m12.3s
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dsnet/bzstream/internal/tool/bench"
	strconv "github.com/dsnet/golib/unitconv"
)

const (
	defaultPaths  = "testdata"
	defaultLevels = "1,6,9"
	defaultSizes  = "1e4,1e5,1e6"
)

// The decompression speed benchmark works by decompressing some pre-compressed
// data. In order for the benchmarks to be consistent, the same encoder should
// be used to generate the pre-compressed data for all the trials.
//
// encRefs defines the priority order for which encoders to choose first as the
// reference compressor. If no compressor is found for any of the listed codecs,
// then a random encoder will be chosen.
var encRefs = []string{"std", "ds"}

var (
	testToEnum = map[string]int{
		"encRate": bench.TestEncodeRate,
		"decRate": bench.TestDecodeRate,
		"ratio":   bench.TestCompressRatio,
	}
	enumToTest = map[int]string{
		bench.TestEncodeRate:    "encRate",
		bench.TestDecodeRate:    "decRate",
		bench.TestCompressRatio: "ratio",
	}
)

func defaultTests() string {
	var d []int
	for k := range enumToTest {
		d = append(d, k)
	}
	sort.Ints(d)
	var s []string
	for _, v := range d {
		s = append(s, enumToTest[v])
	}
	return strings.Join(s, ",")
}

func defaultFiles() string {
	p := strings.Split(defaultPaths, ",")[0]
	fis, err := ioutil.ReadDir(p)
	if err != nil {
		return ""
	}
	var s []string
	for _, fi := range fis {
		if !fi.IsDir() && !strings.HasSuffix(fi.Name(), ".go") {
			s = append(s, fi.Name())
		}
	}
	return strings.Join(s, ",")
}

func main() {
	// Setup flag arguments.
	f1 := flag.String("tests", defaultTests(), "List of different benchmark tests")
	f2 := flag.String("codecs", strings.Join(bench.Codecs(), ","), "List of codecs to benchmark")
	f3 := flag.String("paths", defaultPaths, "List of paths to search for test files")
	f4 := flag.String("files", defaultFiles(), "List of input files to benchmark")
	f5 := flag.String("levels", defaultLevels, "List of compression levels to benchmark")
	f6 := flag.String("sizes", defaultSizes, "List of input sizes to benchmark")
	flag.Parse()

	// Parse the flag arguments.
	var sep = regexp.MustCompile("[,:]")
	var codecs, paths, files []string
	var tests, levels, sizes []int
	codecs = sep.Split(*f2, -1)
	paths = sep.Split(*f3, -1)
	files = sep.Split(*f4, -1)
	for _, s := range sep.Split(*f1, -1) {
		if _, ok := testToEnum[s]; !ok {
			fatalf("invalid test: %q", s)
		}
		tests = append(tests, testToEnum[s])
	}
	for _, s := range sep.Split(*f5, -1) {
		lvl, err := strconv.ParsePrefix(s, strconv.AutoParse)
		if err != nil || lvl < 1 || lvl > 9 {
			fatalf("invalid level: %q", s)
		}
		levels = append(levels, int(lvl))
	}
	for _, s := range sep.Split(*f6, -1) {
		nf, err := strconv.ParsePrefix(s, strconv.AutoParse)
		if err != nil {
			fatalf("invalid size: %q", s)
		}
		sizes = append(sizes, int(nf))
	}

	ts := time.Now()
	bench.Paths = paths
	runBenchmarks(files, codecs, tests, levels, sizes)
	te := time.Now()
	fmt.Printf("RUNTIME: %v\n", te.Sub(ts))
}

func fatalf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "bzbench: "+f+"\n", args...)
	os.Exit(2)
}

func runBenchmarks(files, codecs []string, tests, levels, sizes []int) {
	// Get lists of encoders and decoders that exist.
	var encs, decs []string
	for _, c := range codecs {
		if _, ok := bench.Encoders[c]; ok {
			encs = append(encs, c)
		}
	}
	for _, c := range codecs {
		if _, ok := bench.Decoders[c]; ok {
			decs = append(decs, c)
		}
	}

	for _, t := range tests {
		var results [][]bench.Result
		var names, codecs []string
		var title, suffix string

		// Check that we can actually do this bench.
		fmt.Printf("BENCHMARK: %s\n", enumToTest[t])
		if len(encs) == 0 {
			fmt.Print("\tSKIP: There are no encoders available.\n\n")
			continue
		}
		if len(decs) == 0 && t == bench.TestDecodeRate {
			fmt.Print("\tSKIP: There are no decoders available.\n\n")
			continue
		}

		// Progress ticker.
		var cnt int
		tick := func() {
			total := len(codecs) * len(files) * len(levels) * len(sizes)
			pct := 100.0 * float64(cnt) / float64(total)
			fmt.Printf("\t[%6.2f%%] %d of %d\r", pct, cnt, total)
			cnt++
		}

		// Perform the bench. This may take some time.
		switch t {
		case bench.TestEncodeRate:
			codecs, title, suffix = encs, "MB/s", ""
			results, names = bench.BenchmarkEncoderSuite(encs, files, levels, sizes, tick)
		case bench.TestDecodeRate:
			ref := getReferenceEncoder()
			codecs, title, suffix = decs, "MB/s", ""
			results, names = bench.BenchmarkDecoderSuite(decs, files, levels, sizes, ref, tick)
		case bench.TestCompressRatio:
			codecs, title, suffix = encs, "ratio", "x"
			results, names = bench.BenchmarkRatioSuite(encs, files, levels, sizes, tick)
		default:
			panic("unknown test")
		}

		// Print all of the results.
		printResults(results, names, codecs, title, suffix)
		fmt.Println()
	}
}

func getReferenceEncoder() bench.Encoder {
	for _, c := range encRefs {
		if enc, ok := bench.Encoders[c]; ok {
			return enc // Choose by priority
		}
	}
	for _, enc := range bench.Encoders {
		return enc // Choose any random encoder
	}
	return nil // There are no encoders
}

func printResults(results [][]bench.Result, names, codecs []string, title, suffix string) {
	// Allocate result table.
	cells := make([][]string, 1+len(names))
	for i := range cells {
		cells[i] = make([]string, 1+2*len(codecs))
	}

	// Label the first row.
	cells[0][0] = "benchmark"
	for i, c := range codecs {
		cells[0][1+2*i] = c + " " + title
		cells[0][2+2*i] = "delta"
	}

	// Insert all rows.
	for j, row := range results {
		cells[1+j][0] = names[j]
		for i, r := range row {
			if r.R != 0 && !math.IsNaN(r.R) && !math.IsInf(r.R, 0) {
				cells[1+j][1+2*i] = fmt.Sprintf("%.2f", r.R) + suffix
			}
			if r.D != 0 && !math.IsNaN(r.D) && !math.IsInf(r.D, 0) {
				cells[1+j][2+2*i] = fmt.Sprintf("%.2f", r.D) + "x"
			}
		}
	}

	// Compute the maximum lengths.
	maxLens := make([]int, 1+2*len(codecs))
	for _, row := range cells {
		for i, s := range row {
			if maxLens[i] < len(s) {
				maxLens[i] = len(s)
			}
		}
	}

	// Print padded versions of all cells.
	for _, row := range cells {
		fmt.Print("\t")
		for i, s := range row {
			switch {
			case i == 0: // Column 0
				row[i] = s + strings.Repeat(" ", maxLens[i]-len(s))
			case i%2 == 1: // Column 1, 3, 5, 7, ...
				row[i] = strings.Repeat(" ", 6+maxLens[i]-len(s)) + s
			case i%2 == 0: // Column 2, 4, 6, 8, ...
				row[i] = strings.Repeat(" ", 2+maxLens[i]-len(s)) + s
			}
			fmt.Print(row[i])
		}
		fmt.Println()
	}
}
