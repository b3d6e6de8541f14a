// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

// The bitReader reads bits in MSB order from caller provided slices that may
// run dry at any point, even in the middle of a symbol.
//
// It is transactional. The decoder calls Commit after every unit of work whose
// effects have been applied. If a read later runs out of input, it panics with
// errShortInput and the decoder calls Suspend, which rewinds the bit buffer to
// the last commit point and holds on to every byte taken since then. The next
// call replays the held bytes before touching the new input, so a retry
// observes exactly the same bits.
//
// Bytes are pulled into the bit buffer one at a time and only when needed.
// Thus, at the end of a stream at most 7 padding bits remain buffered and no
// byte past the stream is ever taken.

type bitMark struct {
	holdPos int
	srcPos  int
	bufBits uint64
	numBits uint
	offset  int64
}

type bitReader struct {
	hold    []byte // Bytes carried over from earlier calls
	holdPos int    // Read position within hold
	src     []byte // Input for the current call
	srcPos  int    // Read position within src
	bufBits uint64 // Buffer to hold some bits
	numBits uint   // Number of valid bits in bufBits
	offset  int64  // Number of bytes pulled into bufBits

	mark bitMark // Last commit point
}

// Init discards all state, including held bytes.
func (br *bitReader) Init() {
	*br = bitReader{hold: br.hold[:0]}
}

// Feed sets the input for a new call. The reader must be at a commit point.
func (br *bitReader) Feed(src []byte) {
	br.src, br.srcPos = src, 0
	br.Commit()
}

// Consumed reports how many bytes of the current input have been taken.
func (br *bitReader) Consumed() int { return br.srcPos }

// BitOffset reports the stream position of the next unread bit.
func (br *bitReader) BitOffset() int64 { return 8*br.offset - int64(br.numBits) }

// Commit marks the current position as the one to rewind to.
func (br *bitReader) Commit() {
	if br.holdPos > 0 && br.holdPos == len(br.hold) {
		br.hold, br.holdPos = br.hold[:0], 0
	}
	br.mark = bitMark{
		holdPos: br.holdPos,
		srcPos:  br.srcPos,
		bufBits: br.bufBits,
		numBits: br.numBits,
		offset:  br.offset,
	}
}

// Suspend rewinds to the last commit point and takes ownership of the rest of
// the current input. It returns the number of bytes taken from the input,
// which is always all of it.
func (br *bitReader) Suspend() int {
	m := br.mark
	br.holdPos, br.srcPos = m.holdPos, m.srcPos
	br.bufBits, br.numBits, br.offset = m.bufBits, m.numBits, m.offset

	n := copy(br.hold, br.hold[br.holdPos:])
	br.hold = append(br.hold[:n], br.src[br.srcPos:]...)
	br.holdPos, br.srcPos = 0, len(br.src)
	br.Commit()
	return len(br.src)
}

// Held reports the number of bytes taken from earlier inputs but not yet
// committed.
func (br *bitReader) Held() int { return len(br.hold) - br.holdPos }

func (br *bitReader) feedByte() {
	var c byte
	switch {
	case br.holdPos < len(br.hold):
		c = br.hold[br.holdPos]
		br.holdPos++
	case br.srcPos < len(br.src):
		c = br.src[br.srcPos]
		br.srcPos++
	default:
		panic(errShortInput)
	}
	br.bufBits = br.bufBits<<8 | uint64(c)
	br.numBits += 8
	br.offset++
}

// ReadBits reads nb bits in MSB order, where nb must be no more than 32.
// If the input runs dry, then it panics with errShortInput.
func (br *bitReader) ReadBits(nb uint) uint32 {
	for br.numBits < nb {
		br.feedByte()
	}
	br.numBits -= nb
	return uint32(br.bufBits>>br.numBits) & (1<<nb - 1)
}

// ReadBits64 reads nb bits in MSB order, where nb must be no more than 64.
func (br *bitReader) ReadBits64(nb uint) uint64 {
	if nb <= 32 {
		return uint64(br.ReadBits(nb))
	}
	hi := uint64(br.ReadBits(nb - 32))
	lo := uint64(br.ReadBits(32))
	return hi<<32 | lo
}

// ReadBit reads a single bit.
func (br *bitReader) ReadBit() bool {
	if br.numBits == 0 {
		br.feedByte()
	}
	br.numBits--
	return (br.bufBits>>br.numBits)&1 == 1
}

// ReadPads discards the 0-7 bits needed to reach byte alignment.
func (br *bitReader) ReadPads() uint32 {
	return br.ReadBits(br.numBits % 8)
}
