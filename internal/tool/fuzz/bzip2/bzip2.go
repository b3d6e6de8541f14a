// Copyright 2016, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

//go:build gofuzz
// +build gofuzz

// Package bzip2 is a go-fuzz harness for the bzip2 decoder. It checks the
// fast and small decoders against each other and against compress/bzip2.
package bzip2

import (
	"bytes"
	stdbzip2 "compress/bzip2"
	"io/ioutil"

	dsbzip2 "github.com/dsnet/compress/bzip2"

	"github.com/dsnet/bzstream/bzip2"
)

func Fuzz(data []byte) int {
	data, ok := testDecoders(data)
	for _, level := range []int{1, 9} {
		testEncoder(data, level)
	}
	if ok {
		return 1 // Favor valid inputs
	}
	return 0
}

// testDecoders tests that the input is handled alike by all decoders.
// This test does not panic if every decoder runs into an error, since it
// means that they all agree that the input is bad.
func testDecoders(data []byte) ([]byte, bool) {
	fb, ferr := decode(data, false)
	sb, serr := decode(data, true)
	cb, cerr := ioutil.ReadAll(stdbzip2.NewReader(bytes.NewReader(data)))

	if (ferr == nil) != (serr == nil) || (ferr == nil && !bytes.Equal(fb, sb)) {
		panic("fast and small decoders disagree")
	}
	switch {
	case ferr == nil && cerr == nil:
		if !bytes.Equal(fb, cb) {
			panic("mismatching bytes")
		}
		return fb, true
	case ferr != nil && cerr == nil:
		panic(ferr)
	case ferr == nil && cerr != nil:
		// Randomized blocks are rejected by compress/bzip2.
		return fb, true
	default:
		return nil, false
	}
}

func decode(data []byte, small bool) ([]byte, error) {
	zr, err := bzip2.NewReader(bytes.NewReader(data), &bzip2.ReaderConfig{SmallMode: small})
	if err != nil {
		panic(err)
	}
	b, err := ioutil.ReadAll(zr)
	if cerr := zr.Close(); err == nil {
		err = cerr
	}
	return b, err
}

// testEncoder encodes the input data with a reference encoder and then checks
// that all decoders can properly decompress the output.
func testEncoder(data []byte, level int) {
	bb := new(bytes.Buffer)
	zw, err := dsbzip2.NewWriter(bb, &dsbzip2.WriterConfig{Level: level})
	if err != nil {
		panic(err)
	}
	n, err := zw.Write(data)
	if n != len(data) || err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}

	b, ok := testDecoders(bb.Bytes())
	if !ok {
		panic("decoder error")
	}
	if !bytes.Equal(b, data) {
		panic("mismatching bytes")
	}
}
