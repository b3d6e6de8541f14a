// Copyright 2015, Joe Tsai. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package bzip2

import "io"

const defaultBufferSize = 64 << 10

// ReaderConfig configures a Reader. The zero value is valid.
type ReaderConfig struct {
	// SmallMode selects the memory-constrained block storage.
	SmallMode bool

	// BufferSize is the size of the input buffer. Zero selects 64KiB.
	BufferSize int

	_ struct{} // Blank field to prevent unkeyed struct literals
}

// Reader is an io.ReadCloser that decompresses bzip2 data read from an
// underlying io.Reader. Concatenated streams are decoded one after another,
// as by the bzip2 program.
type Reader struct {
	InputOffset  int64 // Total number of bytes consumed from the underlying io.Reader
	OutputOffset int64 // Total number of bytes emitted from Read

	rd      io.Reader
	dec     *Decoder
	buf     []byte
	lo, hi  int     // Window of buf not yet passed to dec
	streams []Stats // Stats of every completed stream
	err     error   // Persistent error
}

// NewReader creates a new Reader reading from r. A nil conf selects the
// defaults.
func NewReader(r io.Reader, conf *ReaderConfig) (*Reader, error) {
	var c ReaderConfig
	if conf != nil {
		c = *conf
	}
	if c.BufferSize < 0 {
		return nil, Error("invalid buffer size")
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}

	zr := &Reader{
		dec: NewDecoder(&DecoderConfig{SmallMode: c.SmallMode}),
		buf: make([]byte, c.BufferSize),
	}
	zr.Reset(r)
	return zr, nil
}

// Reset discards the Reader state and makes it read from r. The decoder
// buffers are kept unless the Reader was closed.
func (zr *Reader) Reset(r io.Reader) error {
	dec := zr.dec
	if dec.closed {
		dec = NewDecoder(&DecoderConfig{SmallMode: dec.small})
	}
	dec.Reset()
	*zr = Reader{rd: r, dec: dec, buf: zr.buf}
	return nil
}

func (zr *Reader) Read(buf []byte) (int, error) {
	if zr.err != nil {
		return 0, zr.err
	}
	if len(buf) == 0 {
		return 0, nil
	}

	for {
		nDst, nSrc, err := zr.dec.Decode(buf, zr.buf[zr.lo:zr.hi])
		zr.lo += nSrc
		zr.InputOffset += int64(nSrc)
		zr.OutputOffset += int64(nDst)

		switch err {
		case nil, ErrOutputFull:
			return nDst, nil
		case ErrNeedInput:
			if ferr := zr.fill(); ferr != nil {
				if ferr == io.EOF {
					ferr = io.ErrUnexpectedEOF
				}
				zr.err = ferr
				if nDst > 0 {
					return nDst, nil
				}
				return 0, zr.err
			}
			if nDst > 0 {
				return nDst, nil
			}
		case io.EOF:
			zr.streams = append(zr.streams, zr.dec.Stats())
			more, merr := zr.moreInput()
			if !more {
				zr.err = merr
				if nDst > 0 {
					return nDst, nil
				}
				return 0, zr.err
			}
			zr.dec.Reset()
			if nDst > 0 {
				return nDst, nil
			}
		default:
			zr.err = err
			return nDst, err
		}
	}
}

// moreInput reports whether any input follows the stream just decoded.
// A following stream is validated by the decoder like the first one.
// If there is none, the error is io.EOF or the failure of the underlying
// io.Reader.
func (zr *Reader) moreInput() (bool, error) {
	if zr.lo < zr.hi {
		return true, nil
	}
	if err := zr.fill(); err != nil {
		return false, err
	}
	return true, nil
}

// fill reads more input into the buffer, which the decoder has fully taken.
func (zr *Reader) fill() error {
	zr.lo, zr.hi = 0, 0
	for i := 0; i < 100; i++ {
		n, err := zr.rd.Read(zr.buf)
		zr.hi = n
		if n > 0 {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return io.ErrNoProgress
}

// Streams returns the Stats of every stream decoded to completion so far.
func (zr *Reader) Streams() []Stats {
	return append([]Stats(nil), zr.streams...)
}

// Close releases the decoder. Later calls to Read fail with io.ErrClosedPipe.
// If decoding failed, Close returns that error.
func (zr *Reader) Close() error {
	if zr.err == nil || zr.err == io.EOF || zr.err == io.ErrClosedPipe {
		zr.dec.Close()
		zr.err = io.ErrClosedPipe
		return nil
	}
	err := zr.err
	zr.dec.Close()
	zr.err = io.ErrClosedPipe
	return err
}
