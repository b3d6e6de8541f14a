// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

// runExpander undoes the initial run-length encoding of bzip2, where every
// run of 4 identical bytes is followed by a byte counting the additional
// copies. Encoders emit counts of 0..251, but any count is accepted.
//
// Bytes are pulled from the inverse BWT walk only as output space allows, so
// expansion can stop and resume at any output byte.
type runExpander struct {
	src   blockStorage
	avail int // Bytes not yet pulled from src

	last   byte
	runLen int // Length of the current run of last, up to 4
	reps   int // Copies of last still to be emitted

	randomized bool
	rNToGo     int
	rTPos      int
}

func (e *runExpander) Init(src blockStorage, n int, randomized bool) {
	*e = runExpander{src: src, avail: n, randomized: randomized}
}

// Done reports whether the whole block has been emitted.
func (e *runExpander) Done() bool { return e.avail == 0 && e.reps == 0 }

// Expand writes as much of the block as fits in buf.
func (e *runExpander) Expand(buf []byte) (n int) {
	for n < len(buf) {
		if e.reps > 0 {
			cnt := e.reps
			if cnt > len(buf)-n {
				cnt = len(buf) - n
			}
			for i := range buf[n : n+cnt] {
				buf[n+i] = e.last
			}
			n += cnt
			e.reps -= cnt
			continue
		}
		if e.avail == 0 {
			break
		}

		b := e.next()
		if e.runLen == 4 {
			e.reps, e.runLen = int(b), 0
			continue
		}
		if e.runLen > 0 && b == e.last {
			e.runLen++
		} else {
			e.last, e.runLen = b, 1
		}
		buf[n] = b
		n++
	}
	return n
}

// next pulls one byte from the walk, removing the randomization mask.
func (e *runExpander) next() byte {
	b := e.src.Next()
	e.avail--
	if e.randomized {
		if e.rNToGo == 0 {
			e.rNToGo = int(randTable[e.rTPos])
			e.rTPos = (e.rTPos + 1) % len(randTable)
		}
		e.rNToGo--
		if e.rNToGo == 1 {
			b ^= 1
		}
	}
	return b
}
