package link

import (
	"io"
	"time"
)

// Seq numbers the frames sent in one direction. Values from 0xf0 are
// reserved for sync control bytes.
type Seq byte

const seqLimit = 0xf0

// RandomSeq picks a start sequence.
func RandomSeq() Seq {
	return Seq(byte(time.Now().UnixNano())).Next()
}

// Next returns the sequence following s, skipping reserved values.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if n == 0 || n >= seqLimit {
		n = 1
	}
	return Seq(n)
}

// Valid reports whether s can number a frame.
func (s Seq) Valid() bool {
	return s > 0 && s < seqLimit
}

// Code bits.
const (
	CodeEvent byte = 0x80
	CodeError byte = 0x01

	codeMask byte = 0x8f
	lenMask  byte = 0x70
	lenExt        = 7
)

// MaxData is the largest payload of a frame.
const MaxData = 0x7f

// Frame is a decoded unit of transfer.
type Frame struct {
	Seq  Seq
	Code byte
	Data []byte
}

// IsEvent reports whether f was sent unsolicited.
func (f *Frame) IsEvent() bool {
	return f.Code&CodeEvent != 0
}

// Bytes encodes f.
func (f *Frame) Bytes() []byte {
	n := len(f.Data)
	b := make([]byte, 0, n+3)
	b = append(b, byte(f.Seq))
	if n < lenExt {
		b = append(b, f.Code&codeMask|byte(n)<<4)
	} else {
		b = append(b, f.Code&codeMask|lenMask, byte(n))
	}
	return append(b, f.Data...)
}

// WriteTo writes the encoded frame in a single Write.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}
