// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

// prefixDecoder decodes canonical prefix codes using the limit/base/perm
// tables of the reference bzip2 implementation. Decoding a symbol costs
// O(code length) bit reads and no table larger than the alphabet is built.
//
// Codes are assigned in (length, symbol) order. For a code of length n with
// value v, the symbol is perm[v-base[n]], and v is a valid length-n code if
// and only if v <= limit[n].
type prefixDecoder struct {
	limit   [maxPrefixBits + 2]int32 // Largest code value of each length
	base    [maxPrefixBits + 2]int32 // Offset from code value to perm index
	perm    [maxNumSyms]uint16       // Symbols sorted by (length, symbol)
	numSyms uint16                   // Size of the alphabet
	minBits uint8                    // Shortest code length in use
	maxBits uint8                    // Longest code length in use
}

// Init builds the decoding tables from the code lengths of every symbol in
// the alphabet. Each length must be within 1..maxPrefixBits.
func (pd *prefixDecoder) Init(lens []uint8) {
	if len(lens) < 1 || len(lens) > maxNumSyms {
		panic(ErrCorrupt)
	}
	minBits, maxBits := uint8(maxPrefixBits), uint8(0)
	for _, n := range lens {
		if n < 1 || n > maxPrefixBits {
			panic(ErrCorrupt)
		}
		if minBits > n {
			minBits = n
		}
		if maxBits < n {
			maxBits = n
		}
	}
	pd.numSyms = uint16(len(lens))
	pd.minBits, pd.maxBits = minBits, maxBits

	// Sort symbols by (length, symbol).
	var pp int
	for n := minBits; n <= maxBits; n++ {
		for sym, l := range lens {
			if l == n {
				pd.perm[pp] = uint16(sym)
				pp++
			}
		}
	}

	// Count the codes of each length, then accumulate into base so that
	// base[n] holds the number of codes shorter than n.
	var base [maxPrefixBits + 2]int32
	for _, n := range lens {
		base[n+1]++
	}
	for i := 1; i < len(base); i++ {
		base[i] += base[i-1]
	}

	// Compute limit, the last code value of each length, doubling the running
	// code value at each new length as per canonical assignment.
	var limit [maxPrefixBits + 2]int32
	var vec int32
	for n := minBits; n <= maxBits; n++ {
		vec += base[n+1] - base[n]
		limit[n] = vec - 1
		vec <<= 1
	}
	for n := minBits + 1; n <= maxBits; n++ {
		base[n] = (limit[n-1]+1)<<1 - base[n]
	}
	pd.limit, pd.base = limit, base
}

// ReadSymbol decodes the next symbol from br. It panics with ErrCorrupt if
// the bits do not form a valid code of at most maxPrefixBits bits.
func (pd *prefixDecoder) ReadSymbol(br *bitReader) uint16 {
	n := uint(pd.minBits)
	vec := int32(br.ReadBits(n))
	for {
		if n > maxPrefixBits {
			panic(ErrCorrupt)
		}
		if vec <= pd.limit[n] {
			break
		}
		n++
		vec <<= 1
		if br.ReadBit() {
			vec |= 1
		}
	}
	idx := vec - pd.base[n]
	if idx < 0 || idx >= int32(pd.numSyms) {
		panic(ErrCorrupt)
	}
	return pd.perm[idx]
}
