// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

// The inverse Burrows-Wheeler Transform is computed from the last column L of
// the sorted rotation matrix alone. Let cftab[c] be the number of bytes in L
// smaller than c. Then the i-th occurrence of c in L and the row starting at
// cftab[c]+i hold the same position of the original string, which links every
// row to its successor. Walking those links from the origin pointer yields
// the original string in O(n).
//
// References:
//	https://www.quora.com/How-can-I-optimize-burrows-wheeler-transform-and-inverse-transform-to-work-in-O-n-time-O-n-space

// blockStorage holds the BWT output of one block while symbols are decoded,
// and then the links of the inverse permutation while the block is walked.
type blockStorage interface {
	// Alloc ensures capacity for blocks of up to n bytes.
	Alloc(n int)

	// Set stores b as byte i of the last column.
	Set(i int, b byte)

	// Invert turns the first n bytes into a linked permutation and positions
	// the walk at the row of origPtr. The cftab must hold the starting row of
	// every byte value, with cftab[256] == n.
	Invert(cftab *[257]int32, origPtr, n int)

	// Next returns the next byte of the original string.
	Next() byte
}

// fastWords stores each row in a single word, the byte in the low 8 bits and
// the link to the next row in the upper 24 bits.
type fastWords struct {
	tt   []uint32
	n    uint32
	tPos uint32
}

func (s *fastWords) Alloc(n int) {
	if cap(s.tt) < n {
		s.tt = make([]uint32, n)
	}
	s.tt = s.tt[:n]
}

func (s *fastWords) Set(i int, b byte) { s.tt[i] = uint32(b) }

func (s *fastWords) Invert(cftab *[257]int32, origPtr, n int) {
	tt := s.tt[:n]
	for i := range tt {
		c := uint8(tt[i])
		tt[cftab[c]] |= uint32(i) << 8
		cftab[c]++
	}
	s.n = uint32(n)
	s.tPos = tt[origPtr] >> 8
}

func (s *fastWords) Next() byte {
	if s.tPos >= s.n {
		panic(ErrCorrupt)
	}
	s.tPos = s.tt[s.tPos]
	b := byte(s.tPos)
	s.tPos >>= 8
	return b
}

// packedHalfwords stores the 20-bit links split into a low 16-bit half and a
// high nibble, two nibbles per byte. The bytes of the last column are not
// stored after inversion, since each is recovered from its row number by a
// binary search in cftab.
//
// While symbols are decoded, the byte of each row lives in ll16.
type packedHalfwords struct {
	ll16  []uint16
	ll4   []uint8
	cftab [257]int32
	n     uint32
	tPos  uint32
}

func (s *packedHalfwords) Alloc(n int) {
	if cap(s.ll16) < n {
		s.ll16 = make([]uint16, n)
		s.ll4 = make([]uint8, (n+1)/2)
	}
	s.ll16 = s.ll16[:n]
	s.ll4 = s.ll4[:(n+1)/2]
}

func (s *packedHalfwords) Set(i int, b byte) { s.ll16[i] = uint16(b) }

func (s *packedHalfwords) get(i uint32) uint32 {
	return uint32(s.ll16[i]) | uint32(s.ll4[i>>1]>>((i&1)<<2)&0xf)<<16
}

func (s *packedHalfwords) set(i, v uint32) {
	s.ll16[i] = uint16(v)
	sh := (i & 1) << 2
	s.ll4[i>>1] = s.ll4[i>>1]&^(0xf<<sh) | uint8(v>>16)<<sh
}

func (s *packedHalfwords) Invert(cftab *[257]int32, origPtr, n int) {
	s.cftab = *cftab
	for i := 0; i < n; i++ {
		c := uint8(s.ll16[i])
		s.set(uint32(i), uint32(cftab[c]))
		cftab[c]++
	}

	// The links above point from a row to its predecessor in the original
	// string. Reverse the cycle through origPtr so that they point forward.
	i := uint32(origPtr)
	j := s.get(i)
	for {
		tmp := s.get(j)
		s.set(j, i)
		i, j = j, tmp
		if i == uint32(origPtr) {
			break
		}
	}
	s.n = uint32(n)
	s.tPos = uint32(origPtr)
}

func (s *packedHalfwords) Next() byte {
	if s.tPos >= s.n {
		panic(ErrCorrupt)
	}
	b := indexIntoF(int32(s.tPos), &s.cftab)
	s.tPos = s.get(s.tPos)
	return b
}

// indexIntoF returns the byte value whose rows in the first column contain
// the row idx.
func indexIntoF(idx int32, cftab *[257]int32) byte {
	lo, hi := 0, 256
	for hi-lo > 1 {
		mid := (lo + hi) >> 1
		if idx >= cftab[mid] {
			lo = mid
		} else {
			hi = mid
		}
	}
	return byte(lo)
}

// invertBlock validates the byte histogram of the block just decoded and
// prepares its storage for the output walk.
func (d *Decoder) invertBlock() {
	var cftab [257]int32
	for i, cnt := range d.unzftab {
		cftab[i+1] = cftab[i] + cnt
	}
	for i := 1; i < len(cftab); i++ {
		if cftab[i] < cftab[i-1] || cftab[i] > int32(d.nblock) {
			panic(ErrCorrupt)
		}
	}

	d.storage.Invert(&cftab, d.origPtr, d.nblock)
	d.rle.Init(d.storage, d.nblock, d.randomized)
	d.blockCRC = 0
	d.state = stateExpand
}
