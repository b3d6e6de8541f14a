// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

// The block header is read in small units so that a suspension in the middle
// of a long header never repeats more than one unit of work:
//
//	stateStreamHeader: "BZh" and the level digit
//	stateBlockMagic:   magic, block CRC, randomized flag, origin pointer
//	stateSymbolMap:    the 16-bit group bitmap, then one unit per used group
//	stateTreeCounts:   3-bit tree count and 15-bit selector count
//	stateSelectors:    one unit per selector
//	stateCodeLengths:  one unit per tree start and per symbol length

func (d *Decoder) readStreamHeader() {
	br := &d.br
	magic := br.ReadBits(24)
	if magic != uint32(hdrMagic[0])<<16|uint32(hdrMagic[1])<<8|uint32(hdrMagic[2]) {
		panic(ErrCorrupt)
	}
	lvl := int(br.ReadBits(8)) - '0'
	if lvl < minLevel || lvl > maxLevel {
		panic(ErrCorrupt)
	}

	d.level = lvl
	d.blockCap = lvl * blockSizeUnit
	d.stats.Level = lvl
	d.stats.BlockSize = d.blockCap
	if d.storage == nil {
		if d.small {
			d.storage = new(packedHalfwords)
		} else {
			d.storage = new(fastWords)
		}
	}
	d.storage.Alloc(d.blockCap)
	if cap(d.selectors) < maxSelectors {
		d.selectors = make([]uint8, maxSelectors)
	}
	d.state = stateBlockMagic
	br.Commit()
}

func (d *Decoder) readBlockMagic() {
	br := &d.br
	pos := br.BitOffset()
	switch br.ReadBits64(magicBits) {
	case blkMagic:
		storedCRC := br.ReadBits(32)
		randomized := br.ReadBit()
		origPtr := int(br.ReadBits(24))
		if origPtr > 10+d.blockCap {
			panic(ErrCorrupt)
		}

		d.storedCRC = storedCRC
		d.randomized = randomized
		d.origPtr = origPtr
		d.usedGroups, d.mapIdx = 0, -1
		d.stats.BlockOffsets = append(d.stats.BlockOffsets, pos)
		d.stats.BlockCRCs = append(d.stats.BlockCRCs, storedCRC)
		if randomized {
			d.stats.Randomized++
		}
		d.state = stateSymbolMap
	case endMagic:
		streamCRC := br.ReadBits(32)
		if streamCRC != d.stats.StreamCRC {
			panic(ErrChecksum)
		}
		d.stats.EndOffset = pos
		d.state = stateStreamEnd
	default:
		panic(ErrCorrupt)
	}
	br.Commit()
}

func (d *Decoder) readSymbolMap() {
	br := &d.br
	if d.mapIdx < 0 {
		d.usedGroups = uint16(br.ReadBits(16))
		d.mapIdx, d.numInUse = 0, 0
		br.Commit()
	}
	for ; d.mapIdx < 16; d.mapIdx++ {
		if d.usedGroups&(0x8000>>uint(d.mapIdx)) == 0 {
			continue
		}
		bits := br.ReadBits(16)
		for j := 0; j < 16; j++ {
			if bits&(0x8000>>uint(j)) != 0 {
				d.seqToUnseq[d.numInUse] = uint8(d.mapIdx*16 + j)
				d.numInUse++
			}
		}
		br.Commit()
	}
	if d.numInUse == 0 {
		panic(ErrCorrupt)
	}
	d.state = stateTreeCounts
}

func (d *Decoder) readTreeCounts() {
	br := &d.br
	numTrees := int(br.ReadBits(3))
	if numTrees < minNumTrees || numTrees > maxNumTrees {
		panic(ErrCorrupt)
	}
	numSels := int(br.ReadBits(15))
	if numSels < 1 {
		panic(ErrCorrupt)
	}

	d.numTrees = numTrees
	d.selsTotal = numSels
	d.numSels = numSels
	if d.numSels > maxSelectors {
		d.numSels = maxSelectors
	}
	d.selIdx = 0
	d.selMTF.Init([]uint8{0, 1, 2, 3, 4, 5}[:numTrees])
	d.state = stateSelectors
	br.Commit()
}

func (d *Decoder) readSelectors() {
	br := &d.br
	for d.selIdx < d.selsTotal {
		var j int
		for br.ReadBit() {
			j++
			if j >= d.numTrees {
				panic(ErrCorrupt)
			}
		}
		if d.selIdx < d.numSels {
			d.selectors[d.selIdx] = d.selMTF.Next(j)
		}
		d.selIdx++
		br.Commit()
	}
	d.treeIdx, d.symIdx, d.lenStarted = 0, 0, false
	d.state = stateCodeLengths
}

func (d *Decoder) readCodeLengths() {
	br := &d.br
	alphaSize := d.numInUse + 2
	for d.treeIdx < d.numTrees {
		if !d.lenStarted {
			d.curLen = int(br.ReadBits(5))
			d.symIdx, d.lenStarted = 0, true
			br.Commit()
		}
		lens := d.codeLens[d.treeIdx][:alphaSize]
		// Each delta step is its own unit, since a symbol may carry any
		// number of them.
		for d.symIdx < alphaSize {
			if d.curLen < 1 || d.curLen > maxPrefixBits {
				panic(ErrCorrupt)
			}
			if !br.ReadBit() {
				lens[d.symIdx] = uint8(d.curLen)
				d.symIdx++
				br.Commit()
				continue
			}
			if br.ReadBit() {
				d.curLen--
			} else {
				d.curLen++
			}
			br.Commit()
		}
		d.trees[d.treeIdx].Init(lens)
		d.treeIdx++
		d.lenStarted = false
	}
	d.beginSymbols()
}
