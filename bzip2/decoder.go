// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import "io"

// DecoderConfig configures a Decoder. The zero value selects fast mode.
type DecoderConfig struct {
	// SmallMode selects the packed block storage, which needs 2.5 bytes per
	// block byte instead of 4 at the cost of slower inversion.
	SmallMode bool

	_ struct{} // Blank field to prevent unkeyed struct literals
}

type decState int

const (
	stateStreamHeader decState = iota // Expecting "BZh" and the level digit
	stateBlockMagic                   // Expecting a block or end-of-stream magic
	stateSymbolMap                    // Reading the used byte bitmaps
	stateTreeCounts                   // Reading the tree and selector counts
	stateSelectors                    // Reading the MTF coded selectors
	stateCodeLengths                  // Reading code length deltas of each tree
	stateSymbols                      // Decoding the MTF/RLE2 symbol stream
	stateInvert                       // Building the inverse BWT permutation
	stateExpand                       // Emitting RLE1 expanded output
	stateStreamEnd                    // The stream CRC has been verified
)

// Stats describes the layout of a stream decoded so far.
type Stats struct {
	Level        int      // Block size multiplier from the stream header
	BlockSize    int      // Maximum block length in bytes
	Blocks       int      // Number of blocks fully decoded
	BlockOffsets []int64  // Bit offset of the magic of each block
	BlockCRCs    []uint32 // Stored CRC of each block
	EndOffset    int64    // Bit offset of the end-of-stream magic, or -1
	StreamCRC    uint32   // Combined CRC of all decoded blocks
	Randomized   int      // Number of blocks with the randomized flag set
}

// A Decoder is a resumable bzip2 decompression engine.
//
// The caller drives it by repeatedly calling Decode with the next unconsumed
// input and free output space. A Decoder never blocks and never reads past
// the end of the stream it is decoding. It is not safe for concurrent use.
type Decoder struct {
	br     bitReader
	state  decState
	err    error // Persistent error
	closed bool
	small  bool

	inOffset  int64
	outOffset int64

	level    int
	blockCap int
	storage  blockStorage

	// Block header.
	storedCRC  uint32
	randomized bool
	origPtr    int
	usedGroups uint16
	mapIdx     int // Next group of the symbol map to read
	seqToUnseq [256]uint8
	numInUse   int
	numTrees   int
	numSels    int // Number of selectors kept
	selsTotal  int // Number of selectors in the stream
	selIdx     int
	selectors  []uint8
	selMTF     moveToFront
	treeIdx    int
	symIdx     int
	curLen     int
	lenStarted bool
	codeLens   [maxNumTrees][maxNumSyms]uint8
	trees      [maxNumTrees]prefixDecoder

	// Symbol stream.
	mtf      mtfAlphabet
	unzftab  [256]int32
	groupNo  int
	groupPos int
	runES    int
	runN     int // Weight of the next RUNA/RUNB digit; zero outside of a run
	nblock   int

	// Output.
	rle      runExpander
	blockCRC uint32

	stats Stats
}

// NewDecoder creates a new Decoder. A nil conf selects the defaults.
func NewDecoder(conf *DecoderConfig) *Decoder {
	d := new(Decoder)
	if conf != nil {
		d.small = conf.SmallMode
	}
	d.Reset()
	return d
}

// Reset discards all progress, including any terminal error, so that the
// Decoder can decode a new stream. Block buffers are kept for reuse.
func (d *Decoder) Reset() {
	if d.closed {
		return
	}
	*d = Decoder{
		br:        d.br,
		small:     d.small,
		storage:   d.storage,
		selectors: d.selectors,
		stats: Stats{
			BlockOffsets: d.stats.BlockOffsets[:0],
			BlockCRCs:    d.stats.BlockCRCs[:0],
			EndOffset:    -1,
		},
	}
	d.br.Init()
}

// Close releases the block buffers. Any later call to Decode reports
// ErrSequence and Reset has no effect.
func (d *Decoder) Close() error {
	d.closed = true
	d.storage = nil
	d.selectors = nil
	d.br.Init()
	return nil
}

// InputOffset reports the number of input bytes taken by Decode so far.
func (d *Decoder) InputOffset() int64 { return d.inOffset }

// OutputOffset reports the number of bytes produced by Decode so far.
func (d *Decoder) OutputOffset() int64 { return d.outOffset }

// Stats reports information about the stream decoded so far.
func (d *Decoder) Stats() Stats {
	s := d.stats
	s.BlockOffsets = append([]int64(nil), s.BlockOffsets...)
	s.BlockCRCs = append([]uint32(nil), s.BlockCRCs...)
	return s
}

// Decode decompresses src into dst. It reports the number of bytes written to
// dst and the number of bytes taken from src, which the caller must not pass
// again. The error classifies why Decode returned:
//
//	nil            dst was filled exactly at the end of a block
//	ErrNeedInput   all of src was taken and more input is needed
//	ErrOutputFull  dst is full and more output is pending
//	io.EOF         the stream ended; nSrc stops right after its last byte
//	ErrCorrupt     the stream is invalid
//	ErrChecksum    a block or stream CRC did not match
//	ErrSequence    Decode was called after io.EOF or after Close
//
// ErrNeedInput and ErrOutputFull are flow control, not failures. Any other
// error is persistent until Reset. Bytes written to dst before a failure are
// reported in nDst and are not retracted.
func (d *Decoder) Decode(dst, src []byte) (nDst, nSrc int, err error) {
	switch {
	case d.closed:
		return 0, 0, ErrSequence
	case d.err != nil:
		return 0, 0, d.err
	}

	d.br.Feed(src)
	nDst, err = d.decode(dst)
	switch err {
	case errShortInput:
		nSrc, err = d.br.Suspend(), ErrNeedInput
	case nil, ErrOutputFull:
		nSrc = d.br.Consumed()
	case io.EOF:
		nSrc = d.br.Consumed()
		d.err = ErrSequence
	default:
		nSrc = d.br.Consumed()
		d.err = err
	}
	d.inOffset += int64(nSrc)
	d.outOffset += int64(nDst)
	return nDst, nSrc, err
}

// decode runs the state machine until it has to return to the caller.
// Every state that reads input commits the bitReader once the effects of a
// unit of work are applied, so a panic with errShortInput may occur at any
// read and is undone by rewinding to the last commit point.
func (d *Decoder) decode(dst []byte) (n int, err error) {
	defer errRecover(&err)

	for {
		switch d.state {
		case stateStreamHeader:
			d.readStreamHeader()
		case stateBlockMagic:
			d.readBlockMagic()
		case stateSymbolMap:
			d.readSymbolMap()
		case stateTreeCounts:
			d.readTreeCounts()
		case stateSelectors:
			d.readSelectors()
		case stateCodeLengths:
			d.readCodeLengths()
		case stateSymbols:
			d.decodeSymbols()
		case stateInvert:
			d.invertBlock()
		case stateExpand:
			cnt := d.rle.Expand(dst[n:])
			d.blockCRC = updateCRC(d.blockCRC, dst[n:n+cnt])
			n += cnt
			if !d.rle.Done() {
				return n, ErrOutputFull
			}
			d.finishBlock()
			if n == len(dst) {
				return n, nil
			}
		case stateStreamEnd:
			return n, io.EOF
		default:
			panic("bzip2: invalid decoder state")
		}
	}
}

// finishBlock verifies the CRC of a fully expanded block and folds it into
// the stream CRC.
func (d *Decoder) finishBlock() {
	if d.blockCRC != d.storedCRC {
		panic(ErrChecksum)
	}
	d.stats.StreamCRC = combineStreamCRC(d.stats.StreamCRC, d.blockCRC)
	d.stats.Blocks++
	d.state = stateBlockMagic
}
