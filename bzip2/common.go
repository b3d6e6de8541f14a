// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package bzip2 implements a streaming, resumable decoder for the BZip2
// compressed data format.
//
// The core of the package is the Decoder, which is driven by the caller with
// arbitrary slices of input and output. It never blocks; when it runs out of
// input or output space it reports so and picks up at the exact same bit
// position on the next call. The Reader type wraps a Decoder around an
// io.Reader for the common case.
package bzip2

import (
	"hash/crc32"
	"io"
	"runtime"

	"github.com/dsnet/bzstream/internal"
)

const (
	hdrMagic = "BZh"
	blkMagic = 0x314159265359
	endMagic = 0x177245385090

	magicBits = 48

	blockSizeUnit = 100000 // Block capacity per level digit
	minLevel      = 1
	maxLevel      = 9

	maxNumTrees   = 6
	minNumTrees   = 2
	maxNumSyms    = 258 // Alphabet size when all 256 byte values are used
	maxSelectors  = 18002
	maxPrefixBits = 20 // Historical decode ceiling; encoders cap at 17
	groupSize     = 50

	symRunA = 0
	symRunB = 1

	maxRunWeight = 2 * 1024 * 1024
)

// Error is the wrapper type for errors specific to this library.
type Error string

func (e Error) Error() string { return "bzip2: " + string(e) }

var (
	// ErrCorrupt reports that a structural invariant of the stream is broken.
	ErrCorrupt error = Error("stream is corrupted")

	// ErrChecksum reports that a block or stream CRC did not match.
	ErrChecksum error = Error("checksum mismatch")

	// ErrSequence reports misuse of a Decoder, such as decoding past the end
	// of a stream or after Close.
	ErrSequence error = Error("decoder used out of sequence")

	// ErrNeedInput is returned by Decode when all input has been taken and
	// more is needed to make progress. It is not a failure.
	ErrNeedInput error = Error("need more input")

	// ErrOutputFull is returned by Decode when the output buffer is full.
	// It is not a failure.
	ErrOutputFull error = Error("output buffer full")
)

// errShortInput is the internal panic value raised by the bitReader when the
// input runs dry. It never escapes Decode.
var errShortInput error = Error("short input")

func errRecover(err *error) {
	switch ex := recover().(type) {
	case nil:
		// Do nothing.
	case runtime.Error:
		panic(ex)
	case error:
		*err = ex
	default:
		panic(ex)
	}
}

// Status is the outcome of a single call to Decode.
type Status int

const (
	StatusOK Status = iota
	StatusNeedInput
	StatusOutputFull
	StatusStreamEnd
	StatusCorrupt
	StatusSequence
)

var statusNames = [...]string{
	StatusOK:         "Ok",
	StatusNeedInput:  "NeedMoreInput",
	StatusOutputFull: "OutputFull",
	StatusStreamEnd:  "StreamEnd",
	StatusCorrupt:    "CorruptData",
	StatusSequence:   "SequenceError",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Status(?)"
}

// StatusOf classifies an error returned by Decode.
func StatusOf(err error) Status {
	switch err {
	case nil:
		return StatusOK
	case ErrNeedInput:
		return StatusNeedInput
	case ErrOutputFull:
		return StatusOutputFull
	case io.EOF:
		return StatusStreamEnd
	case ErrSequence:
		return StatusSequence
	default:
		return StatusCorrupt
	}
}

// updateCRC returns the result of adding the bytes in buf to the crc.
func updateCRC(crc uint32, buf []byte) uint32 {
	// The CRC-32 computation in bzip2 treats bytes as having bits in big-endian
	// order. That is, the MSB is read before the LSB. Thus, we can use the
	// standard library version of CRC-32 IEEE with some minor adjustments.
	crc = internal.ReverseUint32(crc)
	var arr [4096]byte
	for len(buf) > 0 {
		cnt := copy(arr[:], buf)
		buf = buf[cnt:]
		for i, b := range arr[:cnt] {
			arr[i] = internal.ReverseLUT[b]
		}
		crc = crc32.Update(crc, crc32.IEEETable, arr[:cnt])
	}
	return internal.ReverseUint32(crc)
}

// combineStreamCRC folds a block CRC into the running stream CRC.
// The fold is order dependent, so blocks must be folded in stream order.
func combineStreamCRC(streamCRC, blockCRC uint32) uint32 {
	return (streamCRC<<1 | streamCRC>>31) ^ blockCRC
}
