package codec

import (
	"fmt"
	"strconv"
)

// Kind identifies a stored value type.
type Kind int

// Kinds
const (
	KindUint8 Kind = iota
	KindInt8
	KindUint16
	KindInt16
	KindUint32
	KindInt32
	KindFloat32
	KindFloat64
	KindString
)

var kindNames = [...]string{"u8", "i8", "u16", "i16", "u32", "i32", "f32", "f64", "str"}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind parses the short name of a kind.
func ParseKind(name string) (Kind, error) {
	for n, s := range kindNames {
		if s == name {
			return Kind(n), nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", name)
}

// Size returns the encoded size. Strings report MaxBytes.
func (k Kind) Size() int {
	switch k {
	case KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32, KindFloat32:
		return 4
	case KindFloat64:
		return 8
	}
	return MaxBytes
}

// Parse converts text into the encoded byte run of the kind.
func (k Kind) Parse(text string) ([]byte, error) {
	switch k {
	case KindUint8, KindUint16, KindUint32:
		v, err := strconv.ParseUint(text, 0, k.Size()*8)
		if err != nil {
			return nil, err
		}
		switch k {
		case KindUint8:
			return EncodeUint8(uint8(v)), nil
		case KindUint16:
			return EncodeUint16(uint16(v)), nil
		}
		return EncodeUint32(uint32(v)), nil
	case KindInt8, KindInt16, KindInt32:
		v, err := strconv.ParseInt(text, 0, k.Size()*8)
		if err != nil {
			return nil, err
		}
		switch k {
		case KindInt8:
			return EncodeInt8(int8(v)), nil
		case KindInt16:
			return EncodeInt16(int16(v)), nil
		}
		return EncodeInt32(int32(v)), nil
	case KindFloat32:
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, err
		}
		return EncodeFloat32(float32(v)), nil
	case KindFloat64:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		return EncodeFloat64(v), nil
	case KindString:
		return EncodeString(text, MaxBytes), nil
	}
	return nil, fmt.Errorf("unknown kind %d", int(k))
}

// Format renders a byte run of the kind as text.
func (k Kind) Format(b []byte) (string, error) {
	switch k {
	case KindUint8:
		v, err := DecodeUint8(b)
		return strconv.FormatUint(uint64(v), 10), err
	case KindInt8:
		v, err := DecodeInt8(b)
		return strconv.FormatInt(int64(v), 10), err
	case KindUint16:
		v, err := DecodeUint16(b)
		return strconv.FormatUint(uint64(v), 10), err
	case KindInt16:
		v, err := DecodeInt16(b)
		return strconv.FormatInt(int64(v), 10), err
	case KindUint32:
		v, err := DecodeUint32(b)
		return strconv.FormatUint(uint64(v), 10), err
	case KindInt32:
		v, err := DecodeInt32(b)
		return strconv.FormatInt(int64(v), 10), err
	case KindFloat32:
		v, err := DecodeFloat32(b)
		return strconv.FormatFloat(float64(v), 'g', -1, 32), err
	case KindFloat64:
		v, err := DecodeFloat64(b)
		return strconv.FormatFloat(v, 'g', -1, 64), err
	case KindString:
		return strconv.Quote(DecodeString(b)), nil
	}
	return "", fmt.Errorf("unknown kind %d", int(k))
}
