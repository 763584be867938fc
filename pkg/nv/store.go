package nv

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/nv.go/pkg/framework"
	"github.com/robotalks/nv.go/pkg/nv/codec"
)

// Store is the cached non-volatile storage.
type Store struct {
	backend Backend
	config  Config

	size        int
	initialized bool

	// cache window [window, window+len(cache))
	window    int
	cache     []byte
	readBits  bitmap
	writeBits bitmap

	// pending bytes outside the cache window, addresses kept sorted
	overflow      map[int]byte
	overflowAddrs []int

	marker      [MarkerSize]byte
	markerBits  bitmap
	markerStale bool
	needSync    bool
	lastValid   bool

	inflight     *pendingWrite
	syncing      bool
	cursor       int
	failures     map[int]int
	syncFailures int
	busyPolls    int

	stats Stats
}

type pendingWrite struct {
	addr  int
	value byte
}

// New creates a Store over a backend. Init must be called before use.
func New(backend Backend, config Config) *Store {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.SpinDelay <= 0 {
		config.SpinDelay = DefaultSpinDelay
	}
	if config.WriteThroughTimeout <= 0 {
		config.WriteThroughTimeout = DefaultWriteThroughTimeout
	}
	if config.WriteThroughByteTime <= 0 {
		config.WriteThroughByteTime = DefaultWriteThroughByteTime
	}
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = DefaultCloseTimeout
	}
	return &Store{backend: backend, config: config}
}

// Init establishes an address space of size bytes. The backend is
// initialized with size+MarkerSize bytes to hold the validity marker.
func (s *Store) Init(size int) error {
	if size <= 0 {
		return &RangeError{Addr: 0, Len: size, Size: size}
	}
	window, cacheSize := s.config.CacheIndex, s.config.CacheSize
	if window == NoCache {
		window, cacheSize = 0, 0
	} else {
		if window < 0 || cacheSize < 0 {
			return ErrBadWindow
		}
		if cacheSize == 0 {
			cacheSize = size - window
		}
		if cacheSize <= 0 || window+cacheSize > size {
			return ErrBadWindow
		}
	}
	if err := s.backend.Init(size + MarkerSize); err != nil {
		return err
	}

	s.size = size
	s.window = window
	s.cache = make([]byte, cacheSize)
	s.readBits = newBitmap(cacheSize)
	s.writeBits = newBitmap(cacheSize)
	s.markerBits = newBitmap(MarkerSize)
	s.overflow = make(map[int]byte)
	s.overflowAddrs = nil
	s.failures = make(map[int]int)
	s.inflight, s.syncing = nil, false
	s.initialized = false
	glog.V(2).Infof("nv: init size=%d window=[%d,%d)", size, window, window+cacheSize)

	if s.config.Preload {
		if err := s.preload(); err != nil {
			return err
		}
	}
	s.initialized = true
	s.lastValid = s.Valid()
	return nil
}

// Size is the number of client addressable bytes.
func (s *Store) Size() int { return s.size }

// Backend returns the backend the store drains into.
func (s *Store) Backend() Backend { return s.backend }

// WriteThrough toggles synchronous commit of every write/update.
func (s *Store) WriteThrough(on bool) { s.config.WriteThrough = on }

// IsWriteThrough reports the write-through mode.
func (s *Store) IsWriteThrough() bool { return s.config.WriteThrough }

// Stats returns a snapshot of the counters.
func (s *Store) Stats() Stats {
	st := s.stats
	st.Pending = s.pendingCount()
	return st
}

// Committed reports whether every written byte has reached the backend,
// including the validity marker.
func (s *Store) Committed() bool {
	return s.initialized && !s.hasWork()
}

func (s *Store) hasWork() bool {
	return s.inflight != nil || s.syncing || s.writeBits.any() || len(s.overflow) > 0 ||
		s.markerStale || s.markerBits.any() || s.needSync
}

func (s *Store) pendingCount() int {
	if !s.initialized {
		return 0
	}
	return s.writeBits.count() + len(s.overflow) + s.markerBits.count()
}

func (s *Store) check(i, n int) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if i < 0 || n < 0 || i+n > s.size {
		return &RangeError{Addr: i, Len: n, Size: s.size}
	}
	return nil
}

func (s *Store) cached(i int) (int, bool) {
	idx := i - s.window
	return idx, idx >= 0 && idx < len(s.cache)
}

// ReadFromCache returns the raw cached byte at address i without loading it.
func (s *Store) ReadFromCache(i int) (byte, error) {
	if err := s.check(i, 1); err != nil {
		return 0, err
	}
	idx, ok := s.cached(i)
	if !ok {
		return 0, &RangeError{Addr: i, Len: 1, Size: s.size}
	}
	return s.cache[idx], nil
}

// WriteToCache records a raw byte in the cache without touching the
// read/write state.
func (s *Store) WriteToCache(i int, b byte) error {
	if err := s.check(i, 1); err != nil {
		return err
	}
	idx, ok := s.cached(i)
	if !ok {
		return &RangeError{Addr: i, Len: 1, Size: s.size}
	}
	s.cache[idx] = b
	return nil
}

func (s *Store) load(idx int) (byte, error) {
	if s.readBits.test(idx) {
		s.stats.CacheHits++
		return s.cache[idx], nil
	}
	b, err := s.backend.ReadFromStorage(s.window + idx)
	if err != nil {
		return 0, err
	}
	s.stats.BackendReads++
	s.cache[idx] = b
	s.readBits.set(idx)
	return b, nil
}

// readByte returns the current value of address i as seen by clients.
func (s *Store) readByte(i int) (byte, error) {
	if idx, ok := s.cached(i); ok {
		return s.load(idx)
	}
	if b, ok := s.overflow[i]; ok {
		return b, nil
	}
	b, err := s.backend.ReadFromStorage(i)
	if err == nil {
		s.stats.BackendReads++
	}
	return b, err
}

// ReadBytes reads into buf following the count convention of codec.ScanLen:
// a positive count reads exactly count bytes, a negative count stops after
// a NUL, -count bytes or the end of the address space. It returns the
// number of bytes stored in buf.
func (s *Store) ReadBytes(i int, buf []byte, count int) (int, error) {
	n, scan, err := codec.ScanLen(count)
	if err != nil {
		return 0, err
	}
	if len(buf) < n {
		return 0, codec.ErrShortBuffer
	}
	if scan {
		if err := s.check(i, 1); err != nil {
			return 0, err
		}
		if left := s.size - i; n > left {
			n = left
		}
	} else if err := s.check(i, n); err != nil {
		return 0, err
	}
	s.stats.Reads++
	for k := 0; k < n; k++ {
		b, err := s.readByte(i + k)
		if err != nil {
			return k, err
		}
		buf[k] = b
		if scan && b == 0 {
			return k + 1, nil
		}
	}
	return n, nil
}

// WriteBytes marks every byte of buf pending at address i, changed or not.
func (s *Store) WriteBytes(i int, buf []byte) error {
	return s.store(i, buf, true)
}

// UpdateBytes marks only the bytes of buf which differ from the stored ones.
func (s *Store) UpdateBytes(i int, buf []byte) error {
	return s.store(i, buf, false)
}

func (s *Store) store(i int, buf []byte, force bool) error {
	if len(buf) == 0 || len(buf) > codec.MaxBytes {
		return codec.ErrCount
	}
	if err := s.check(i, len(buf)); err != nil {
		return err
	}
	s.stats.Writes++
	changed := false
	for k, b := range buf {
		marked, err := s.mark(i+k, b, force)
		if err != nil {
			return err
		}
		changed = changed || marked
	}
	if changed && s.config.WriteThrough {
		return s.commitNow()
	}
	return nil
}

func (s *Store) mark(i int, b byte, force bool) (bool, error) {
	if !force {
		cur, err := s.readByte(i)
		if err != nil {
			return false, err
		}
		if cur == b {
			s.stats.Suppressed++
			return false, nil
		}
	}
	if idx, ok := s.cached(i); ok {
		s.cache[idx] = b
		s.readBits.set(idx)
		s.writeBits.set(idx)
	} else {
		s.addOverflow(i, b)
	}
	s.markerStale = true
	return true, nil
}

func (s *Store) addOverflow(i int, b byte) {
	if _, ok := s.overflow[i]; !ok {
		n := len(s.overflowAddrs)
		if n == 0 || s.overflowAddrs[n-1] < i {
			s.overflowAddrs = append(s.overflowAddrs, i)
		} else {
			at := sort.SearchInts(s.overflowAddrs, i)
			s.overflowAddrs = append(s.overflowAddrs, 0)
			copy(s.overflowAddrs[at+1:], s.overflowAddrs[at:])
			s.overflowAddrs[at] = i
		}
	}
	s.overflow[i] = b
}

func (s *Store) dropOverflow(i int) {
	delete(s.overflow, i)
	at := sort.SearchInts(s.overflowAddrs, i)
	if at >= len(s.overflowAddrs) || s.overflowAddrs[at] != i {
		return
	}
	if at == 0 {
		s.overflowAddrs = s.overflowAddrs[1:]
		return
	}
	s.overflowAddrs = append(s.overflowAddrs[:at], s.overflowAddrs[at+1:]...)
}

func (s *Store) preload() error {
	for idx := range s.cache {
		if _, err := s.load(idx); err != nil {
			return err
		}
	}
	return nil
}

// writeThroughTimeout grants WriteThroughTimeout plus WriteThroughByteTime
// for every pending byte and the marker.
func (s *Store) writeThroughTimeout() time.Duration {
	return s.config.WriteThroughTimeout +
		time.Duration(s.pendingCount()+MarkerSize)*s.config.WriteThroughByteTime
}

func (s *Store) commitNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeThroughTimeout())
	defer cancel()
	if err := s.Drain(ctx); err != nil {
		return &writeThroughError{err: err}
	}
	return nil
}

type writeThroughError struct {
	err error
}

func (e *writeThroughError) Error() string   { return ErrWriteThrough.Error() + ": " + e.err.Error() }
func (e *writeThroughError) Is(t error) bool { return t == ErrWriteThrough }
func (e *writeThroughError) Unwrap() error   { return e.err }

// Format fills the whole address space with fill. The bytes are flushed
// by later polls and sealed with a fresh validity marker.
func (s *Store) Format(fill byte) error {
	if err := s.check(0, s.size); err != nil {
		return err
	}
	wt := s.config.WriteThrough
	s.config.WriteThrough = false
	defer func() { s.config.WriteThrough = wt }()
	chunk := make([]byte, codec.MaxBytes)
	for n := range chunk {
		chunk[n] = fill
	}
	for i := 0; i < s.size; i += len(chunk) {
		n := len(chunk)
		if i+n > s.size {
			n = s.size - i
		}
		if err := s.WriteBytes(i, chunk[:n]); err != nil {
			return err
		}
	}
	if wt {
		return s.commitNow()
	}
	return nil
}

// Close drains pending writes within CloseTimeout and closes the backend
// if it implements io.Closer.
func (s *Store) Close() error {
	var errs fx.AggregatedError
	if s.initialized {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.CloseTimeout)
		errs.Add(s.Drain(ctx))
		cancel()
		if pending := s.pendingCount(); pending > 0 {
			glog.Warningf("nv: closing with %d bytes not committed", pending)
		}
		s.initialized = false
	}
	if closer, ok := s.backend.(io.Closer); ok {
		errs.Add(closer.Close())
	}
	return errs.Aggregate()
}

// PendingAddrs lists the addresses waiting for flush, markers excluded.
func (s *Store) PendingAddrs() []int {
	var addrs []int
	for idx := range s.cache {
		if s.writeBits.test(idx) {
			addrs = append(addrs, s.window+idx)
		}
	}
	addrs = append(addrs, s.overflowAddrs...)
	sort.Ints(addrs)
	return addrs
}
