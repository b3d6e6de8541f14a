// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/dsnet/bzstream/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

// decodeAll drives d over src, passing at most inSize input bytes and
// outSize output bytes per call. It returns once the stream ends, fails, or
// needs input beyond src.
func decodeAll(d *Decoder, src []byte, inSize, outSize int) ([]byte, int, error) {
	var out []byte
	var nIn int
	buf := make([]byte, outSize)
	for {
		in := src
		if len(in) > inSize {
			in = in[:inSize]
		}
		nDst, nSrc, err := d.Decode(buf, in)
		out = append(out, buf[:nDst]...)
		src, nIn = src[nSrc:], nIn+nSrc
		switch err {
		case nil, ErrOutputFull:
		case ErrNeedInput:
			if len(src) == 0 {
				return out, nIn, err
			}
		default:
			return out, nIn, err
		}
	}
}

func TestDecoder(t *testing.T) {
	// Stream of 300 'a' bytes at level 1, as produced by bzip2.
	const aaaHex = "425a6831314159265359a74ae11b0000029100802020000008200020" +
		"aa6d4198c5478bb9229c284853a5708d80"

	var vectors = []struct {
		desc   string
		input  []byte
		output []byte
		err    error
	}{{
		desc:   "empty stream",
		input:  testutil.MustDecodeHex("425a683917724538509000000000"),
		output: []byte{},
		err:    io.EOF,
	}, {
		desc:   "300 repeated bytes",
		input:  testutil.MustDecodeHex(aaaHex),
		output: bytes.Repeat([]byte("a"), 300),
		err:    io.EOF,
	}, {
		desc:  "truncated stream header",
		input: testutil.MustDecodeHex("425a68"),
		err:   ErrNeedInput,
	}, {
		desc:  "invalid stream magic",
		input: testutil.MustDecodeHex("425a5839"),
		err:   ErrCorrupt,
	}, {
		desc:  "level 0",
		input: testutil.MustDecodeHex("425a6830"),
		err:   ErrCorrupt,
	}, {
		desc:  "level past 9",
		input: []byte("BZh:"),
		err:   ErrCorrupt,
	}, {
		desc: "invalid block magic",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6839 > H48:314159265358
		`),
		err: ErrCorrupt,
	}, {
		desc: "stream CRC mismatch",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6839 > H48:177245385090 H32:00000001
		`),
		err: ErrChecksum,
	}, {
		desc: "empty symbol map",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:0000
		`),
		err: ErrCorrupt,
	}, {
		desc: "used group without used bytes",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:0001 H16:0000
		`),
		err: ErrCorrupt,
	}, {
		desc: "origin pointer past block capacity",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:100011
		`),
		err: ErrCorrupt,
	}, {
		desc: "seven trees",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831                 # Stream header "BZh1"
			> H48:314159265359         # Block magic
			> H32:00000000             # Stored block CRC
			> 0 D24:0                  # Not randomized, origin pointer
			> H16:8000 H16:8000        # Only byte value 0x00 is used
			> D3:7                     # Invalid number of Huffman groups
		`),
		err: ErrCorrupt,
	}, {
		desc: "one tree",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:8000 H16:8000 D3:1
		`),
		err: ErrCorrupt,
	}, {
		desc: "no selectors",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:8000 H16:8000 D3:2 D15:0
		`),
		err: ErrCorrupt,
	}, {
		desc: "selector out of range",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:8000 H16:8000 D3:2 D15:1 11
		`),
		err: ErrCorrupt,
	}, {
		desc: "zero code length",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:8000 H16:8000 D3:2 D15:1 0 D5:0
		`),
		err: ErrCorrupt,
	}, {
		desc: "code length past 20",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:8000 H16:8000 D3:2 D15:1 0 D5:20 10 0
		`),
		err: ErrCorrupt,
	}, {
		desc: "more groups than selectors",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:8000 H16:c000 D3:2 D15:1 0
			> D5:2 0*4 D5:2 0*4        # Two trees of 2-bit codes
			> 10*50                    # Fifty MTF rank 1 symbols
			> 10                       # A symbol of a second group
		`),
		err: ErrCorrupt,
	}, {
		desc: "run weight overflow",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:8000 H16:8000 D3:2 D15:1 0
			> D5:2 0 0 0 D5:2 0 0 0
			> 00*22                    # RUNA repeated up to a weight of 2^21
		`),
		err: ErrCorrupt,
	}, {
		desc: "run past block capacity",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:00000000
			> 0 D24:0 H16:8000 H16:8000 D3:2 D15:1 0
			> D5:2 0 0 0 D5:2 0 0 0
			> 00*17 10                 # RUNA repeated, then EOB
		`),
		err: ErrCorrupt,
	}, {
		desc: "origin pointer past block length",
		input: testutil.MustDecodeHex("425a6831314159265359a74ae11b000005110080202000000820" +
			"0020aa6d4198c5478bb9229c284853a5708d80"),
		err: ErrCorrupt,
	}, {
		desc: "block CRC mismatch",
		input: testutil.MustDecodeHex("425a6831314159265359a74ae11c000002910080202000000820" +
			"0020aa6d4198c5478bb9229c284853a5708d80"),
		output: bytes.Repeat([]byte("a"), 300),
		err:    ErrChecksum,
	}, {
		desc: "minimal block",
		input: testutil.MustDecodeBitGen(`>>>
			X:425a6831 > H48:314159265359 H32:c1683b31
			> 0 D24:0 H16:4000 H16:0002   # Only byte value 0x1e is used
			> D3:2 D15:1 0
			> D5:2 0 0 0 D5:2 0 0 0
			> 00 10                       # RUNA, EOB
			> H48:177245385090 H32:c1683b31
		`),
		output: []byte{0x1e},
		err:    io.EOF,
	}}

	for i, v := range vectors {
		for _, small := range []bool{false, true} {
			d := NewDecoder(&DecoderConfig{SmallMode: small})
			output, _, err := decodeAll(d, v.input, len(v.input), 1<<16)

			if err != v.err {
				t.Errorf("test %d (%s), small %v, mismatching error: got %v, want %v", i, v.desc, small, err, v.err)
			}
			if v.output != nil && !bytes.Equal(output, v.output) {
				t.Errorf("test %d (%s), small %v, mismatching output:\ngot  %q\nwant %q", i, v.desc, small, output, v.output)
			}
		}
	}
}

func TestDecoderChunked(t *testing.T) {
	input := testutil.MustLoadFile("testdata/runs.bin.bz2", -1)
	want := testutil.MustLoadFile("../testdata/runs.bin", -1)
	big := testutil.MustLoadFile("testdata/text.txt.bz2", -1)
	bigWant := testutil.MustLoadFile("../testdata/text.txt", -1)

	var vectors = []struct {
		input, output   []byte
		inSize, outSize int
	}{
		{input, want, 1, 1},
		{input, want, 1, 1 << 16},
		{input, want, 2, 3},
		{input, want, 3, 7},
		{input, want, 7, 255},
		{input, want, 1 << 16, 1},
		{input, want, 1 << 16, 4},
		{big, bigWant, 1, 1 << 16},
		{big, bigWant, 13, 1000},
		{big, bigWant, 4096, 1},
		{big, bigWant, 1 << 20, 1 << 20},
	}

	for i, v := range vectors {
		for _, small := range []bool{false, true} {
			d := NewDecoder(&DecoderConfig{SmallMode: small})
			output, nIn, err := decodeAll(d, v.input, v.inSize, v.outSize)
			if err != io.EOF {
				t.Errorf("test %d, small %v, unexpected error: got %v, want %v", i, small, err, io.EOF)
			}
			if nIn != len(v.input) || d.InputOffset() != int64(len(v.input)) {
				t.Errorf("test %d, small %v, input count mismatch: got (%d, %d), want %d", i, small, nIn, d.InputOffset(), len(v.input))
			}
			if d.OutputOffset() != int64(len(v.output)) {
				t.Errorf("test %d, small %v, output count mismatch: got %d, want %d", i, small, d.OutputOffset(), len(v.output))
			}
			if !bytes.Equal(output, v.output) {
				t.Errorf("test %d, small %v, output data mismatch", i, small)
			}
		}
	}
}

// TestDecoderLengthDeltas feeds an endless chain of code length deltas that
// never leaves the valid range. Each step must be committed, so the decoder
// holds no input across calls however long the chain grows.
func TestDecoderLengthDeltas(t *testing.T) {
	header := testutil.MustDecodeBitGen(`>>>
		X:425a6831 > H48:314159265359 H32:00000000
		> 0 D24:0 H16:8000 H16:c000 D3:2 D15:1 0 D5:5
	`)
	chunk := bytes.Repeat([]byte{0xbb}, 1<<16) // Pairs of +1 and -1 deltas

	for _, small := range []bool{false, true} {
		d := NewDecoder(&DecoderConfig{SmallMode: small})
		if _, nSrc, err := d.Decode(nil, header); err != ErrNeedInput || nSrc != len(header) {
			t.Fatalf("small %v, Decode(header) = (_, %d, %v), want (_, %d, %v)", small, nSrc, err, len(header), ErrNeedInput)
		}
		for i := 0; i < 64; i++ {
			_, nSrc, err := d.Decode(nil, chunk)
			if err != ErrNeedInput || nSrc != len(chunk) {
				t.Fatalf("small %v, chunk %d, Decode() = (_, %d, %v), want (_, %d, %v)", small, i, nSrc, err, len(chunk), ErrNeedInput)
			}
			if n := d.br.Held(); n > 1 {
				t.Fatalf("small %v, chunk %d, Held() = %d, want at most 1", small, i, n)
			}
		}
		if d.state != stateCodeLengths {
			t.Errorf("small %v, decoder left the code lengths: state %d", small, d.state)
		}
		if want := int64(len(header) + 64*len(chunk)); d.InputOffset() != want {
			t.Errorf("small %v, InputOffset() = %d, want %d", small, d.InputOffset(), want)
		}
	}
}

func TestDecoderTrailingData(t *testing.T) {
	input := testutil.MustLoadFile("testdata/digits.txt.bz2", -1)
	want := testutil.MustLoadFile("../testdata/digits.txt", -1)
	src := append(append([]byte(nil), input...), "trailing garbage"...)

	for _, inSize := range []int{1, 100, len(src)} {
		d := NewDecoder(nil)
		output, nIn, err := decodeAll(d, src, inSize, 1<<12)
		if err != io.EOF {
			t.Errorf("input size %d, unexpected error: got %v, want %v", inSize, err, io.EOF)
		}
		if nIn != len(input) {
			t.Errorf("input size %d, input count mismatch: got %d, want %d", inSize, nIn, len(input))
		}
		if !bytes.Equal(output, want) {
			t.Errorf("input size %d, output data mismatch", inSize)
		}
	}
}

func TestDecoderStatus(t *testing.T) {
	input := testutil.MustDecodeHex("425a6831314159265359a74ae11b0000029100802020000008200020" +
		"aa6d4198c5478bb9229c284853a5708d80")
	d := NewDecoder(nil)

	// Without output space, the whole block is decoded and held.
	nDst, nSrc, err := d.Decode(nil, input)
	if nDst != 0 || err != ErrOutputFull || StatusOf(err) != StatusOutputFull {
		t.Fatalf("Decode() = (%d, %d, %v), want (0, _, %v)", nDst, nSrc, err, ErrOutputFull)
	}
	input = input[nSrc:]

	// Filling the output exactly at the end of the block is not a stop.
	buf := make([]byte, 300)
	nDst, nSrc, err = d.Decode(buf, input)
	if nDst != 300 || nSrc != 0 || err != nil || StatusOf(err) != StatusOK {
		t.Fatalf("Decode() = (%d, %d, %v), want (300, 0, <nil>)", nDst, nSrc, err)
	}

	nDst, nSrc, err = d.Decode(buf, input)
	if nDst != 0 || nSrc != len(input) || err != io.EOF || StatusOf(err) != StatusStreamEnd {
		t.Fatalf("Decode() = (%d, %d, %v), want (0, %d, %v)", nDst, nSrc, err, len(input), io.EOF)
	}

	// Decoding past the end is misuse until Reset.
	if _, _, err := d.Decode(buf, input); err != ErrSequence || StatusOf(err) != StatusSequence {
		t.Errorf("Decode() after end: got %v, want %v", err, ErrSequence)
	}
	d.Reset()
	if _, _, err := d.Decode(buf, []byte("BZh0")); err != ErrCorrupt || StatusOf(err) != StatusCorrupt {
		t.Errorf("Decode() after Reset: got %v, want %v", err, ErrCorrupt)
	}
	if _, _, err := d.Decode(buf, []byte("BZh9")); err != ErrCorrupt {
		t.Errorf("Decode() after corruption: got %v, want %v", err, ErrCorrupt)
	}
	d.Reset()
	if _, _, err := d.Decode(buf, []byte("BZh9")); err != ErrNeedInput || StatusOf(err) != StatusNeedInput {
		t.Errorf("Decode() after Reset: got %v, want %v", err, ErrNeedInput)
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
	d.Reset()
	if _, _, err := d.Decode(buf, input); err != ErrSequence {
		t.Errorf("Decode() after Close: got %v, want %v", err, ErrSequence)
	}
}

func TestDecoderStats(t *testing.T) {
	d := NewDecoder(nil)
	input := testutil.MustLoadFile("testdata/text.txt.bz2", -1)
	if _, _, err := decodeAll(d, input, len(input), 1<<20); err != io.EOF {
		t.Fatalf("unexpected error: got %v, want %v", err, io.EOF)
	}

	got := d.Stats()
	want := Stats{
		Level:        1,
		BlockSize:    100000,
		Blocks:       4,
		BlockOffsets: []int64{32, 187216, 373566, 560095},
		BlockCRCs:    []uint32{0xb57a8b37, 0xbe7b4524, 0x4dca792f, 0x29a25121},
		EndOffset:    570411,
		StreamCRC:    0xe00fee50,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

// TestDecoderSplice joins the blocks of two streams under a single header.
func TestDecoderSplice(t *testing.T) {
	files := []string{"digits.txt", "runs.bin", "zeros.bin"}

	bw := new(bitWriter)
	writeStreamHeader(bw, maxLevel)
	var want []byte
	var streamCRC uint32
	for _, f := range files {
		input := testutil.MustLoadFile("testdata/"+f+".bz2", -1)
		d := NewDecoder(nil)
		output, _, err := decodeAll(d, input, len(input), 1<<20)
		if err != io.EOF {
			t.Fatalf("%s, unexpected error: got %v, want %v", f, err, io.EOF)
		}
		s := d.Stats()
		bw.CopyBits(input, s.BlockOffsets[0], s.EndOffset)
		for _, crc := range s.BlockCRCs {
			streamCRC = combineStreamCRC(streamCRC, crc)
		}
		want = append(want, output...)
	}
	writeStreamTrailer(bw, streamCRC)

	for _, small := range []bool{false, true} {
		d := NewDecoder(&DecoderConfig{SmallMode: small})
		output, _, err := decodeAll(d, bw.Bytes(), 1000, 1000)
		if err != io.EOF {
			t.Errorf("small %v, unexpected error: got %v, want %v", small, err, io.EOF)
		}
		if !bytes.Equal(output, want) {
			t.Errorf("small %v, output data mismatch", small)
		}
		if got := d.Stats().Blocks; got != len(files) {
			t.Errorf("small %v, block count mismatch: got %d, want %d", small, got, len(files))
		}
	}
}

func TestDecoderRandomized(t *testing.T) {
	var vectors = []struct {
		input []byte
		conf  encodeConfig
	}{
		{[]byte("Hello, world!"), encodeConfig{level: 1}},
		{testutil.MustLoadFile("../testdata/runs.bin", -1), encodeConfig{level: 1, blockLen: 3000}},
		{testutil.MustLoadFile("../testdata/digits.txt", 20000), encodeConfig{level: 2, blockLen: 7000}},
		{[]byte(strings.Repeat("abcd", 1000) + "e"), encodeConfig{level: 9}},
	}

	for i, v := range vectors {
		v.conf.randomized = true
		input := encodeStream(v.input, v.conf)
		for _, small := range []bool{false, true} {
			d := NewDecoder(&DecoderConfig{SmallMode: small})
			output, _, err := decodeAll(d, input, 17, 100)
			if err != io.EOF {
				t.Errorf("test %d, small %v, unexpected error: got %v, want %v", i, small, err, io.EOF)
			}
			if !bytes.Equal(output, v.input) {
				t.Errorf("test %d, small %v, output data mismatch", i, small)
			}
			if s := d.Stats(); s.Randomized != s.Blocks || s.Blocks == 0 {
				t.Errorf("test %d, small %v, randomized count mismatch: got %d of %d", i, small, s.Randomized, s.Blocks)
			}
		}
	}
}

// TestDecoderBitFlip flips every bit of the block payload and expects the
// damage to be reported, unless the flip did not change the output.
func TestDecoderBitFlip(t *testing.T) {
	input := testutil.MustLoadFile("testdata/runs.bin.bz2", -1)
	want := testutil.MustLoadFile("../testdata/runs.bin", -1)
	d := NewDecoder(nil)
	if _, _, err := decodeAll(d, input, len(input), 1<<16); err != io.EOF {
		t.Fatalf("unexpected error: got %v, want %v", err, io.EOF)
	}
	s := d.Stats()

	var total, detected int
	buf := make([]byte, len(input))
	for pos := s.BlockOffsets[0] + magicBits + 32; pos < s.EndOffset; pos++ {
		copy(buf, input)
		buf[pos/8] ^= 0x80 >> uint(pos%8)

		d.Reset()
		output, _, err := decodeAll(d, buf, len(buf), 1<<16)
		total++
		switch StatusOf(err) {
		case StatusCorrupt, StatusNeedInput:
			detected++
		case StatusStreamEnd:
			if !bytes.Equal(output, want) {
				t.Errorf("bit %d, undetected corruption", pos)
			}
		default:
			t.Errorf("bit %d, unexpected error: %v", pos, err)
		}
	}
	if detected < total*9/10 {
		t.Errorf("detected %d of %d bit flips", detected, total)
	}
}
