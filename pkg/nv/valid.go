package nv

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/glog"

	"github.com/robotalks/nv.go/pkg/nv/codec"
)

// Validity marker layout, stored right after the client address space.
const (
	markerMagic = "NVS1"
	// MarkerSize is the number of backend bytes reserved for the marker.
	MarkerSize = len(markerMagic) + 8
)

// Valid reports whether the persisted image can be trusted: the marker
// must carry the magic and the checksum of the image as stored by the
// backend, and the backend's own check (if any) must pass.
// It reads the backend only and leaves the cache untouched. While the
// backend is busy the previous verdict is returned.
func (s *Store) Valid() bool {
	if !s.initialized {
		return false
	}
	if s.backend.Busy() {
		return s.lastValid
	}
	s.lastValid = s.verify()
	return s.lastValid
}

func (s *Store) verify() bool {
	if v, ok := s.backend.(Validator); ok && !v.Valid() {
		glog.V(2).Info("nv: backend reports invalid media")
		return false
	}
	var marker [MarkerSize]byte
	if err := s.readBackend(s.size, marker[:]); err != nil {
		glog.Warningf("nv: read marker: %v", err)
		return false
	}
	if string(marker[:len(markerMagic)]) != markerMagic {
		return false
	}
	h := xxhash.New()
	buf := make([]byte, s.chunkSize())
	for i := 0; i < s.size; i += len(buf) {
		run := buf
		if left := s.size - i; len(run) > left {
			run = run[:left]
		}
		if err := s.readBackend(i, run); err != nil {
			glog.Warningf("nv: read image: %v", err)
			return false
		}
		h.Write(run)
	}
	return binary.LittleEndian.Uint64(marker[len(markerMagic):]) == h.Sum64()
}

// chunkSize is the run length used to walk the image.
func (s *Store) chunkSize() int {
	if rr, ok := s.backend.(RangeReader); ok && rr.MaxRange() > 0 {
		return rr.MaxRange()
	}
	return codec.MaxBytes
}

// readBackend fills buf with the persisted bytes starting at i, in one
// access per run when the backend is a RangeReader.
func (s *Store) readBackend(i int, buf []byte) error {
	rr, ok := s.backend.(RangeReader)
	if !ok || rr.MaxRange() <= 0 {
		for k := range buf {
			b, err := s.backend.ReadFromStorage(i + k)
			if err != nil {
				return err
			}
			buf[k] = b
		}
		return nil
	}
	for k := 0; k < len(buf); {
		n := len(buf) - k
		if n > rr.MaxRange() {
			n = rr.MaxRange()
		}
		data, err := rr.ReadRange(i+k, n)
		if err != nil {
			return err
		}
		if len(data) != n {
			return ErrShortRead
		}
		copy(buf[k:], data)
		k += n
	}
	return nil
}

// needsBackend reports whether a client view of [i, i+n) needs backend
// bytes: uncached bytes which are not pending, or cached bytes not loaded.
func (s *Store) needsBackend(i, n int) bool {
	for k := 0; k < n; k++ {
		if idx, ok := s.cached(i + k); ok {
			if !s.readBits.test(idx) {
				return true
			}
		} else if _, ok := s.overflow[i+k]; !ok {
			return true
		}
	}
	return false
}

// view fills buf with the client view of [i, i+len(buf)). Missing bytes are
// read in one range access when the backend supports it, and loaded into
// the cache window.
func (s *Store) view(i int, buf []byte) error {
	if _, ok := s.backend.(RangeReader); !ok || !s.needsBackend(i, len(buf)) {
		for k := range buf {
			b, err := s.readByte(i + k)
			if err != nil {
				return err
			}
			buf[k] = b
		}
		return nil
	}
	raw := make([]byte, len(buf))
	if err := s.readBackend(i, raw); err != nil {
		return err
	}
	s.stats.BackendReads += uint64(len(raw))
	for k := range buf {
		addr := i + k
		if idx, ok := s.cached(addr); ok {
			if !s.readBits.test(idx) {
				s.cache[idx] = raw[k]
				s.readBits.set(idx)
			}
			buf[k] = s.cache[idx]
		} else if b, ok := s.overflow[addr]; ok {
			buf[k] = b
		} else {
			buf[k] = raw[k]
		}
	}
	return nil
}

// seal computes the marker over the client image once every data byte is
// acknowledged, issues the data barrier and queues the marker bytes.
func (s *Store) seal() error {
	h := xxhash.New()
	buf := make([]byte, s.chunkSize())
	for i := 0; i < s.size; i += len(buf) {
		run := buf
		if left := s.size - i; len(run) > left {
			run = run[:left]
		}
		if err := s.view(i, run); err != nil {
			return err
		}
		h.Write(run)
	}
	if ok, err := s.sync(); !ok {
		return err
	}
	copy(s.marker[:], markerMagic)
	binary.LittleEndian.PutUint64(s.marker[len(markerMagic):], h.Sum64())
	s.markerBits.setAll(MarkerSize)
	s.markerStale = false
	s.needSync = true
	s.stats.Seals++
	return nil
}
