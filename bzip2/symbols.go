// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

// Symbols of the MTF/RLE2 stream:
//
//	RUNA, RUNB   digits of a bijective base-2 run length of the front value
//	1..numInUse  MTF rank plus one of a single value
//	numInUse+1   end of block
//
// A run of digits d0, d1, ..., dk (least significant first, RUNA = 1 and
// RUNB = 2) repeats the front value sum(di * 2^i) times.

func (d *Decoder) beginSymbols() {
	d.mtf.Init()
	d.unzftab = [256]int32{}
	d.groupNo, d.groupPos = -1, 0
	d.runES, d.runN = 0, 0
	d.nblock = 0
	d.state = stateSymbols
}

func (d *Decoder) decodeSymbols() {
	br := &d.br
	eob := uint16(d.numInUse + 1)
	for {
		groupNo, groupPos := d.groupNo, d.groupPos
		if groupPos == 0 {
			groupNo++
			if groupNo >= d.numSels {
				panic(ErrCorrupt)
			}
			groupPos = groupSize
		}
		groupPos--
		sym := d.trees[d.selectors[groupNo]].ReadSymbol(br)
		d.groupNo, d.groupPos = groupNo, groupPos

		if sym <= symRunB {
			if d.runN == 0 {
				d.runES, d.runN = -1, 1
			}
			if d.runN >= maxRunWeight {
				panic(ErrCorrupt)
			}
			d.runES += int(sym+1) * d.runN
			d.runN <<= 1
			br.Commit()
			continue
		}

		if d.runN > 0 {
			d.flushRun()
		}
		if sym == eob {
			br.Commit()
			break
		}

		if d.nblock >= d.blockCap {
			panic(ErrCorrupt)
		}
		c := d.seqToUnseq[d.mtf.Promote(int(sym)-1)]
		d.unzftab[c]++
		d.storage.Set(d.nblock, c)
		d.nblock++
		br.Commit()
	}

	if d.origPtr >= d.nblock {
		panic(ErrCorrupt)
	}
	d.state = stateInvert
}

// flushRun appends the pending run of the front value to the block.
func (d *Decoder) flushRun() {
	cnt := d.runES + 1
	d.runES, d.runN = 0, 0
	if cnt > d.blockCap-d.nblock {
		panic(ErrCorrupt)
	}
	c := d.seqToUnseq[d.mtf.Front()]
	d.unzftab[c] += int32(cnt)
	for end := d.nblock + cnt; d.nblock < end; d.nblock++ {
		d.storage.Set(d.nblock, c)
	}
}
