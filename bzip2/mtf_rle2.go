// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

// moveToFront is a plain move-to-front list over a small alphabet. The
// decoder uses it for the selector list, whose alphabet is at most
// maxNumTrees long. Symbol ranks use the two-level mtfAlphabet.
type moveToFront struct {
	dictBuf [256]uint8
	dictLen int
}

// Init initializes the moveToFront codec. The dict must contain all of the
// symbols in the alphabet used in future operations. A copy of the input dict
// will be made so that it will not be mutated.
func (m *moveToFront) Init(dict []uint8) {
	if len(dict) > len(m.dictBuf) {
		panic("alphabet too large")
	}
	copy(m.dictBuf[:], dict)
	m.dictLen = len(dict)
}

// Next decodes a single index, moving the value to the front.
func (m *moveToFront) Next(idx int) uint8 {
	dict := m.dictBuf[:m.dictLen]
	val := dict[idx]
	copy(dict[1:], dict[:idx])
	dict[0] = val
	return val
}

const (
	mtfaSize = 4096 // Arena holding all buckets plus room to slide down
	mtflSize = 16   // Entries per bucket
)

// mtfAlphabet is the move-to-front list of the used byte values of a block.
//
// A plain list needs up to 255 moves to promote a deep rank. Instead, the
// list is split into 16 buckets of 16 entries living in a larger arena.
// Promoting a rank shifts entries within its own bucket, then moves the
// boundary entry of every earlier bucket down one slot, so only O(16+16)
// entries move. When the front bucket reaches the start of the arena, all
// buckets are packed back up against its end.
type mtfAlphabet struct {
	arena [mtfaSize]uint8
	base  [256 / mtflSize]int32 // Arena offset of the first entry of each bucket
}

// Init resets the list to the identity order 0, 1, ..., 255.
func (m *mtfAlphabet) Init() {
	kk := int32(mtfaSize - 1)
	for ii := 256/mtflSize - 1; ii >= 0; ii-- {
		for jj := mtflSize - 1; jj >= 0; jj-- {
			m.arena[kk] = uint8(ii*mtflSize + jj)
			kk--
		}
		m.base[ii] = kk + 1
	}
}

// Front returns the value at rank 0.
func (m *mtfAlphabet) Front() uint8 {
	return m.arena[m.base[0]]
}

// Promote returns the value at rank nn and moves it to the front.
func (m *mtfAlphabet) Promote(nn int) uint8 {
	if nn < mtflSize {
		pp := m.base[0]
		uc := m.arena[pp+int32(nn)]
		copy(m.arena[pp+1:pp+1+int32(nn)], m.arena[pp:pp+int32(nn)])
		m.arena[pp] = uc
		return uc
	}

	lno := nn / mtflSize
	pp := m.base[lno] + int32(nn%mtflSize)
	uc := m.arena[pp]
	copy(m.arena[m.base[lno]+1:pp+1], m.arena[m.base[lno]:pp])
	m.base[lno]++
	for ; lno > 0; lno-- {
		m.base[lno]--
		m.arena[m.base[lno]] = m.arena[m.base[lno-1]+mtflSize-1]
	}
	m.base[0]--
	m.arena[m.base[0]] = uc

	if m.base[0] == 0 {
		kk := int32(mtfaSize - 1)
		for ii := 256/mtflSize - 1; ii >= 0; ii-- {
			for jj := int32(mtflSize - 1); jj >= 0; jj-- {
				m.arena[kk] = m.arena[m.base[ii]+jj]
				kk--
			}
			m.base[ii] = kk + 1
		}
	}
	return uc
}
