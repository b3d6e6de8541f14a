// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bench

import (
	stdbzip2 "compress/bzip2"
	"io"
	"io/ioutil"

	dsbzip2 "github.com/dsnet/compress/bzip2"

	"github.com/dsnet/bzstream/bzip2"
)

func init() {
	RegisterDecoder("std",
		func(r io.Reader) io.ReadCloser {
			return ioutil.NopCloser(stdbzip2.NewReader(r))
		})
	RegisterEncoder("ds",
		func(w io.Writer, lvl int) io.WriteCloser {
			zw, err := dsbzip2.NewWriter(w, &dsbzip2.WriterConfig{Level: lvl})
			if err != nil {
				panic(err)
			}
			return zw
		})
	RegisterDecoder("ds",
		func(r io.Reader) io.ReadCloser {
			zr, err := dsbzip2.NewReader(r, nil)
			if err != nil {
				panic(err)
			}
			return zr
		})
	RegisterDecoder("bz", newReader(false))
	RegisterDecoder("bz-small", newReader(true))
}

func newReader(small bool) Decoder {
	return func(r io.Reader) io.ReadCloser {
		zr, err := bzip2.NewReader(r, &bzip2.ReaderConfig{SmallMode: small})
		if err != nil {
			panic(err)
		}
		return zr
	}
}
