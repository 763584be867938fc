// Package codec converts scalar values and bounded strings to and from the
// little-endian byte runs stored in non-volatile memory.
package codec

import (
	"encoding/binary"
	"errors"
	"math"
)

// MaxBytes is the largest byte run a single raw access may move.
const MaxBytes = 64

var (
	// ErrShortBuffer indicates the byte run is shorter than the value.
	ErrShortBuffer = errors.New("short buffer")
	// ErrCount indicates a raw byte count outside [-MaxBytes, MaxBytes] or zero.
	ErrCount = errors.New("invalid byte count")
)

// ScanLen interprets the raw count convention used by byte reads.
// A positive count reads exactly count bytes. A negative count scans for
// a NUL terminator, reading at most -count bytes.
func ScanLen(count int) (n int, scan bool, err error) {
	switch {
	case count == 0, count > MaxBytes, count < -MaxBytes:
		return 0, false, ErrCount
	case count < 0:
		return -count, true, nil
	}
	return count, false, nil
}

// EncodeUint8 encodes v.
func EncodeUint8(v uint8) []byte { return []byte{v} }

// EncodeInt8 encodes v.
func EncodeInt8(v int8) []byte { return []byte{byte(v)} }

// EncodeUint16 encodes v.
func EncodeUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// EncodeInt16 encodes v.
func EncodeInt16(v int16) []byte { return EncodeUint16(uint16(v)) }

// EncodeUint32 encodes v.
func EncodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// EncodeInt32 encodes v.
func EncodeInt32(v int32) []byte { return EncodeUint32(uint32(v)) }

// EncodeFloat32 encodes v as IEEE-754 single precision.
func EncodeFloat32(v float32) []byte { return EncodeUint32(math.Float32bits(v)) }

// EncodeFloat64 encodes v as IEEE-754 double precision.
func EncodeFloat64(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

// DecodeUint8 decodes the first byte of b.
func DecodeUint8(b []byte) (uint8, error) {
	if len(b) < 1 {
		return 0, ErrShortBuffer
	}
	return b[0], nil
}

// DecodeInt8 decodes the first byte of b.
func DecodeInt8(b []byte) (int8, error) {
	v, err := DecodeUint8(b)
	return int8(v), err
}

// DecodeUint16 decodes the first 2 bytes of b.
func DecodeUint16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint16(b), nil
}

// DecodeInt16 decodes the first 2 bytes of b.
func DecodeInt16(b []byte) (int16, error) {
	v, err := DecodeUint16(b)
	return int16(v), err
}

// DecodeUint32 decodes the first 4 bytes of b.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(b), nil
}

// DecodeInt32 decodes the first 4 bytes of b.
func DecodeInt32(b []byte) (int32, error) {
	v, err := DecodeUint32(b)
	return int32(v), err
}

// DecodeFloat32 decodes the first 4 bytes of b.
func DecodeFloat32(b []byte) (float32, error) {
	v, err := DecodeUint32(b)
	return math.Float32frombits(v), err
}

// DecodeFloat64 decodes the first 8 bytes of b.
func DecodeFloat64(b []byte) (float64, error) {
	if len(b) < 8 {
		return 0, ErrShortBuffer
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ClampLen limits a string field length to [1, MaxBytes].
func ClampLen(maxLen int) int {
	if maxLen > MaxBytes {
		return MaxBytes
	}
	if maxLen < 1 {
		return 1
	}
	return maxLen
}

// EncodeString encodes s into at most maxLen bytes (clamped by ClampLen).
// The payload is truncated to maxLen-1 bytes and is always followed by NUL.
func EncodeString(s string, maxLen int) []byte {
	maxLen = ClampLen(maxLen)
	if len(s) > maxLen-1 {
		s = s[:maxLen-1]
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// DecodeString decodes a NUL terminated string. The terminator is optional,
// the whole run is used when none is present.
func DecodeString(b []byte) string {
	for n, c := range b {
		if c == 0 {
			return string(b[:n])
		}
	}
	return string(b)
}
