package nv

import "github.com/robotalks/nv.go/pkg/nv/codec"

func (s *Store) readN(i, n int) ([]byte, error) {
	var buf [8]byte
	if _, err := s.ReadBytes(i, buf[:n], n); err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// ReadUint8 reads an unsigned byte at i.
func (s *Store) ReadUint8(i int) (uint8, error) {
	b, err := s.readN(i, 1)
	if err != nil {
		return 0, err
	}
	return codec.DecodeUint8(b)
}

// ReadInt8 reads a signed byte at i.
func (s *Store) ReadInt8(i int) (int8, error) {
	b, err := s.readN(i, 1)
	if err != nil {
		return 0, err
	}
	return codec.DecodeInt8(b)
}

// ReadUint16 reads an unsigned 16-bit integer starting at i.
func (s *Store) ReadUint16(i int) (uint16, error) {
	b, err := s.readN(i, 2)
	if err != nil {
		return 0, err
	}
	return codec.DecodeUint16(b)
}

// ReadInt16 reads a signed 16-bit integer starting at i.
func (s *Store) ReadInt16(i int) (int16, error) {
	b, err := s.readN(i, 2)
	if err != nil {
		return 0, err
	}
	return codec.DecodeInt16(b)
}

// ReadUint32 reads an unsigned 32-bit integer starting at i.
func (s *Store) ReadUint32(i int) (uint32, error) {
	b, err := s.readN(i, 4)
	if err != nil {
		return 0, err
	}
	return codec.DecodeUint32(b)
}

// ReadInt32 reads a signed 32-bit integer starting at i.
func (s *Store) ReadInt32(i int) (int32, error) {
	b, err := s.readN(i, 4)
	if err != nil {
		return 0, err
	}
	return codec.DecodeInt32(b)
}

// ReadFloat32 reads a float starting at i.
func (s *Store) ReadFloat32(i int) (float32, error) {
	b, err := s.readN(i, 4)
	if err != nil {
		return 0, err
	}
	return codec.DecodeFloat32(b)
}

// ReadFloat64 reads a double starting at i.
func (s *Store) ReadFloat64(i int) (float64, error) {
	b, err := s.readN(i, 8)
	if err != nil {
		return 0, err
	}
	return codec.DecodeFloat64(b)
}

// ReadString reads a NUL terminated string of at most maxLen bytes
// (clamped to codec.MaxBytes) starting at i. A missing terminator is
// tolerated.
func (s *Store) ReadString(i int, maxLen int) (string, error) {
	maxLen = codec.ClampLen(maxLen)
	buf := make([]byte, maxLen)
	n, err := s.ReadBytes(i, buf, -maxLen)
	if err != nil {
		return "", err
	}
	return codec.DecodeString(buf[:n]), nil
}

// WriteUint8 writes v at i.
func (s *Store) WriteUint8(i int, v uint8) error { return s.WriteBytes(i, codec.EncodeUint8(v)) }

// WriteInt8 writes v at i.
func (s *Store) WriteInt8(i int, v int8) error { return s.WriteBytes(i, codec.EncodeInt8(v)) }

// WriteUint16 writes v starting at i.
func (s *Store) WriteUint16(i int, v uint16) error { return s.WriteBytes(i, codec.EncodeUint16(v)) }

// WriteInt16 writes v starting at i.
func (s *Store) WriteInt16(i int, v int16) error { return s.WriteBytes(i, codec.EncodeInt16(v)) }

// WriteUint32 writes v starting at i.
func (s *Store) WriteUint32(i int, v uint32) error { return s.WriteBytes(i, codec.EncodeUint32(v)) }

// WriteInt32 writes v starting at i.
func (s *Store) WriteInt32(i int, v int32) error { return s.WriteBytes(i, codec.EncodeInt32(v)) }

// WriteFloat32 writes v starting at i.
func (s *Store) WriteFloat32(i int, v float32) error { return s.WriteBytes(i, codec.EncodeFloat32(v)) }

// WriteFloat64 writes v starting at i.
func (s *Store) WriteFloat64(i int, v float64) error { return s.WriteBytes(i, codec.EncodeFloat64(v)) }

// WriteString writes v truncated to maxLen-1 bytes plus NUL starting at i.
func (s *Store) WriteString(i int, v string, maxLen int) error {
	return s.WriteBytes(i, codec.EncodeString(v, maxLen))
}

// UpdateUint8 writes v at i if it differs from the stored value.
func (s *Store) UpdateUint8(i int, v uint8) error { return s.UpdateBytes(i, codec.EncodeUint8(v)) }

// UpdateInt8 writes v at i if it differs from the stored value.
func (s *Store) UpdateInt8(i int, v int8) error { return s.UpdateBytes(i, codec.EncodeInt8(v)) }

// UpdateUint16 writes the bytes of v which differ from the stored ones.
func (s *Store) UpdateUint16(i int, v uint16) error { return s.UpdateBytes(i, codec.EncodeUint16(v)) }

// UpdateInt16 writes the bytes of v which differ from the stored ones.
func (s *Store) UpdateInt16(i int, v int16) error { return s.UpdateBytes(i, codec.EncodeInt16(v)) }

// UpdateUint32 writes the bytes of v which differ from the stored ones.
func (s *Store) UpdateUint32(i int, v uint32) error { return s.UpdateBytes(i, codec.EncodeUint32(v)) }

// UpdateInt32 writes the bytes of v which differ from the stored ones.
func (s *Store) UpdateInt32(i int, v int32) error { return s.UpdateBytes(i, codec.EncodeInt32(v)) }

// UpdateFloat32 writes the bytes of v which differ from the stored ones.
func (s *Store) UpdateFloat32(i int, v float32) error {
	return s.UpdateBytes(i, codec.EncodeFloat32(v))
}

// UpdateFloat64 writes the bytes of v which differ from the stored ones.
func (s *Store) UpdateFloat64(i int, v float64) error {
	return s.UpdateBytes(i, codec.EncodeFloat64(v))
}

// UpdateString is the update form of WriteString.
func (s *Store) UpdateString(i int, v string, maxLen int) error {
	return s.UpdateBytes(i, codec.EncodeString(v, maxLen))
}
