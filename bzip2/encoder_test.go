// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import (
	"bytes"
	"sort"
)

// This file holds a simple bzip2 encoder used to produce streams that no
// modern encoder emits, such as randomized blocks or spliced streams. It
// favors clarity over compression: every block uses two identical trees of
// nearly fixed length codes.

// bitWriter writes bits in MSB order.
type bitWriter struct {
	buf   []byte
	bits  uint8
	nbits uint
}

func (bw *bitWriter) WriteBit(b bool) {
	bw.bits <<= 1
	if b {
		bw.bits |= 1
	}
	if bw.nbits++; bw.nbits == 8 {
		bw.buf = append(bw.buf, bw.bits)
		bw.bits, bw.nbits = 0, 0
	}
}

func (bw *bitWriter) WriteBits(v uint64, n uint) {
	for ; n > 0; n-- {
		bw.WriteBit((v>>(n-1))&1 == 1)
	}
}

// CopyBits copies the bits [from, to) of src, counted in MSB order.
func (bw *bitWriter) CopyBits(src []byte, from, to int64) {
	for p := from; p < to; p++ {
		bw.WriteBit((src[p/8]>>(7-uint(p%8)))&1 == 1)
	}
}

// Bytes returns the stream padded with zero bits to a byte boundary.
func (bw *bitWriter) Bytes() []byte {
	buf := append([]byte(nil), bw.buf...)
	if bw.nbits > 0 {
		buf = append(buf, bw.bits<<(8-bw.nbits))
	}
	return buf
}

type encodeConfig struct {
	level      int  // Block size multiplier, defaults to 9
	blockLen   int  // Input bytes per block, defaults to the largest safe size
	randomized bool // Set the randomized flag on every block
}

// encodeStream compresses data as a single bzip2 stream.
func encodeStream(data []byte, conf encodeConfig) []byte {
	if conf.level == 0 {
		conf.level = maxLevel
	}
	if conf.blockLen == 0 {
		conf.blockLen = (conf.level*blockSizeUnit - 19) * 4 / 5
	}

	bw := new(bitWriter)
	writeStreamHeader(bw, conf.level)
	var streamCRC uint32
	for len(data) > 0 {
		n := conf.blockLen
		if n > len(data) {
			n = len(data)
		}
		streamCRC = combineStreamCRC(streamCRC, encodeBlock(bw, data[:n], conf.randomized))
		data = data[n:]
	}
	writeStreamTrailer(bw, streamCRC)
	return bw.Bytes()
}

func writeStreamHeader(bw *bitWriter, level int) {
	for _, c := range []byte(hdrMagic) {
		bw.WriteBits(uint64(c), 8)
	}
	bw.WriteBits(uint64('0'+level), 8)
}

func writeStreamTrailer(bw *bitWriter, streamCRC uint32) {
	bw.WriteBits(endMagic, magicBits)
	bw.WriteBits(uint64(streamCRC), 32)
}

// encodeBlock writes one block holding chunk and returns its CRC.
func encodeBlock(bw *bitWriter, chunk []byte, randomized bool) uint32 {
	crc := updateCRC(0, chunk)
	buf := encodeRLE1(chunk)
	if randomized {
		randomizeBlock(buf)
	}
	ptr := encodeBWT(buf)

	bw.WriteBits(blkMagic, magicBits)
	bw.WriteBits(uint64(crc), 32)
	bw.WriteBit(randomized)
	bw.WriteBits(uint64(ptr), 24)

	// Symbol map.
	var used [256]bool
	for _, c := range buf {
		used[c] = true
	}
	var dict []uint8
	var groups uint16
	for c, ok := range used {
		if ok {
			dict = append(dict, uint8(c))
			groups |= 0x8000 >> uint(c/16)
		}
	}
	bw.WriteBits(uint64(groups), 16)
	for g := 0; g < 16; g++ {
		if groups&(0x8000>>uint(g)) == 0 {
			continue
		}
		var bits uint16
		for j := 0; j < 16; j++ {
			if used[g*16+j] {
				bits |= 0x8000 >> uint(j)
			}
		}
		bw.WriteBits(uint64(bits), 16)
	}

	// MTF and RLE2 stages.
	var mtf moveToFront
	mtf.Init(dict)
	idxs, runs := mtf.Encode(buf)
	var syms []uint16
	for _, idx := range idxs {
		if idx > 0 {
			syms = append(syms, uint16(idx)+1)
			continue
		}
		code := runCode(runs[0]).Encode()
		runs = runs[1:]
		digits := code >> 5
		for i := uint32(0); i < code&0x1f; i++ {
			syms = append(syms, uint16(digits&1))
			digits >>= 1
		}
	}
	alphaSize := len(dict) + 2
	syms = append(syms, uint16(alphaSize-1))

	// Two identical trees, all selecting the first one. The lengths are as
	// even as a complete prefix code allows.
	nb := uint8(1)
	for 1<<nb < alphaSize {
		nb++
	}
	lens := make([]uint8, alphaSize)
	for i := range lens {
		lens[i] = nb
		if i < 1<<nb-alphaSize {
			lens[i] = nb - 1
		}
	}
	codes := canonicalCodes(lens)
	numSels := (len(syms) + groupSize - 1) / groupSize
	bw.WriteBits(minNumTrees, 3)
	bw.WriteBits(uint64(numSels), 15)
	for i := 0; i < numSels; i++ {
		bw.WriteBit(false)
	}
	for t := 0; t < minNumTrees; t++ {
		cur := lens[0]
		bw.WriteBits(uint64(cur), 5)
		for _, l := range lens {
			for ; cur < l; cur++ {
				bw.WriteBits(2, 2) // Increment
			}
			for ; cur > l; cur-- {
				bw.WriteBits(3, 2) // Decrement
			}
			bw.WriteBit(false)
		}
	}
	for _, s := range syms {
		bw.WriteBits(uint64(codes[s]), uint(lens[s]))
	}
	return crc
}

// encodeRLE1 replaces runs of 4 to 255 identical bytes with 4 copies and a
// count of the remaining ones.
func encodeRLE1(buf []byte) (out []byte) {
	for i := 0; i < len(buf); {
		c, j := buf[i], i
		for j < len(buf) && buf[j] == c && j-i < 255 {
			j++
		}
		if n := j - i; n >= 4 {
			out = append(out, c, c, c, c, byte(n-4))
		} else {
			out = append(out, buf[i:j]...)
		}
		i = j
	}
	return out
}

// randomizeBlock applies the randomization mask, which is its own inverse.
func randomizeBlock(buf []byte) {
	var rNToGo, rTPos int
	for i := range buf {
		if rNToGo == 0 {
			rNToGo = int(randTable[rTPos])
			rTPos = (rTPos + 1) % len(randTable)
		}
		rNToGo--
		if rNToGo == 1 {
			buf[i] ^= 1
		}
	}
}

// encodeBWT replaces buf with the last column of its sorted rotations and
// returns the row of the unrotated string.
func encodeBWT(buf []byte) (ptr int) {
	if len(buf) == 0 {
		return -1
	}
	n := len(buf)
	t := append(append([]byte(nil), buf...), buf...)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return bytes.Compare(t[rows[i]:rows[i]+n], t[rows[j]:rows[j]+n]) < 0
	})
	for j, r := range rows {
		if r == 0 {
			ptr = j
		}
		buf[j] = t[r+n-1]
	}
	return ptr
}

// Encode applies the move-to-front transform to vals and then collapses every
// run of zero indexes into a single zero, whose run length is added to runs.
//
// For example, if the plain MTF output was:
//	idxs: []uint8{0, 0, 1, 6, 3, 0, 0, 0, 2, 1, 0, 4}
//
// Then the output will be:
//	idxs: []uint8{0, 1, 6, 3, 0, 2, 1, 0, 4}
//	runs: []uint32{2, 3, 1}
func (m *moveToFront) Encode(vals []byte) (idxs []uint8, runs []uint32) {
	dict := m.dictBuf[:m.dictLen]

	var lastCnt *uint32
	for _, val := range vals {
		// Normal move-to-front transform.
		var idx uint8 // Reverse lookup idx in dict
		for di, dv := range dict {
			if dv == val {
				idx = uint8(di)
				break
			}
		}
		copy(dict[1:], dict[:idx])
		dict[0] = val

		// Run-length encoding augmentation.
		if idx == 0 {
			if lastCnt == nil {
				idxs = append(idxs, 0)
				runs = append(runs, 0)
				lastCnt = &runs[len(runs)-1]
			}
			(*lastCnt)++
		} else {
			idxs = append(idxs, idx)
			lastCnt = nil
		}
	}
	return idxs, runs
}

// Decode inverts Encode.
func (m *moveToFront) Decode(idxs []uint8, runs []uint32) (vals []byte) {
	for _, idx := range idxs {
		val := m.Next(int(idx))
		if idx > 0 {
			vals = append(vals, val)
			continue
		}
		for j := uint32(0); j < runs[0]; j++ {
			vals = append(vals, val)
		}
		runs = runs[1:]
	}
	return vals
}

// For the RLE encoding that is applied after MTF, a bijective base-2 numeration
// is used. This is a variable length code, so the length of the input effects
// the value of the output.
//
// To save space, the RLE encoding is stored in a single uint32, where the lower
// 5-bits are used for the bit-length, the upper 27-bits are for the RLE code
// itself. RUNA is represented by a 0; RUNB is represented by a 1. The bits
// are packed in LE order; that is, the least significant bit is in the LSB
// position of the integer. This encoding has a maximum size of ~256MiB.
type runCode uint32

func (v runCode) Encode() (x uint32) {
	var n int
	if v > 0 {
		for rep := v - 1; ; rep = (rep - 2) / 2 {
			if x >>= 1; rep&1 > 0 {
				x |= 0x80000000
			}
			n++
			if rep < 2 {
				break
			}
		}
		if n > 27 {
			return ^uint32(0) // Invalid value to cause problems later
		}
	}
	return (x >> uint(27-n)) | uint32(n)
}

func (v runCode) Decode() (x uint32) {
	repPwr := uint32(1)
	n := int(v & 0x1f)
	v >>= 5
	for i := 0; i < n; i++ {
		x += repPwr << (v & 1)
		repPwr <<= 1
		v >>= 1
	}
	if n > 27 {
		return ^uint32(0) // Invalid value to cause problems later
	}
	return x
}
