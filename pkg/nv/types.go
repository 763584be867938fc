// Package nv implements the non-volatile storage engine: a byte addressable
// store mirrored by an in-memory cache with per-byte dirty tracking, typed
// accessors, a poll driven flush scheduler and an image validity check.
//
// A Store is not safe for concurrent use. All entry points are expected to
// run on the single goroutine driving the control loop, or to be wrapped by
// Locked.
package nv

import "time"

// Backend is the physical media driver the cache drains into.
type Backend interface {
	// Init prepares the device for size bytes.
	Init(size int) error
	// Busy reports whether a previous operation is still in flight.
	// It must not block.
	Busy() bool
	// ReadFromStorage returns the byte stored at i.
	ReadFromStorage(i int) (byte, error)
	// WriteToStorage requests persistence of b at i. It may complete
	// asynchronously, see Completer.
	WriteToStorage(i int, b byte) error
}

// Completer is implemented by backends whose writes complete asynchronously.
// Completed is consulted once Busy turns false after a write and reports
// the outcome of that write.
type Completer interface {
	Completed() error
}

// Throttler is implemented by backends which accept more than one write
// per poll.
type Throttler interface {
	BatchSize() int
}

// Validator is implemented by backends with their own integrity checks.
type Validator interface {
	Valid() bool
}

// Syncer is implemented by backends buffering writes. Sync makes every
// acknowledged write durable. It may leave the backend busy.
type Syncer interface {
	Sync() error
}

// SyncCompleter is implemented by Syncers whose Sync completes
// asynchronously. SyncCompleted is consulted once Busy turns false after a
// Sync and reports the outcome of that barrier.
type SyncCompleter interface {
	SyncCompleted() error
}

// RangeReader is implemented by backends reading a run of bytes in one
// access. ReadRange accepts counts up to MaxRange.
type RangeReader interface {
	MaxRange() int
	ReadRange(i, count int) ([]byte, error)
}

// NoCache as Config.CacheIndex disables the cache window.
const NoCache = -1

// Config tunes a Store.
type Config struct {
	// CacheIndex is the first cached address, NoCache disables caching.
	CacheIndex int
	// CacheSize is the number of cached bytes, 0 caches up to the end of
	// the address space.
	CacheSize int
	// WriteThrough commits every write/update before returning.
	WriteThrough bool
	// Preload reads the whole cache window during Init.
	Preload bool
	// MaxRetries is the number of consecutive write failures of one byte
	// after which Poll reports a StallError.
	MaxRetries int
	// BusyLimit is the number of consecutive busy polls with pending work
	// after which Poll reports a StallError. 0 means unlimited.
	BusyLimit int
	// SpinDelay is the wait between polls while draining.
	SpinDelay time.Duration
	// WriteThroughTimeout is the base wait of a write-through access.
	WriteThroughTimeout time.Duration
	// WriteThroughByteTime extends the wait for every pending byte,
	// including the validity marker.
	WriteThroughByteTime time.Duration
	// CloseTimeout bounds the drain performed by Close.
	CloseTimeout time.Duration
}

// Default values of Config.
const (
	DefaultMaxRetries           = 8
	DefaultSpinDelay            = 100 * time.Microsecond
	DefaultWriteThroughTimeout  = 100 * time.Millisecond
	DefaultWriteThroughByteTime = 10 * time.Millisecond
	DefaultCloseTimeout         = 2 * time.Second
)

// DefaultConfig caches the whole address space.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           DefaultMaxRetries,
		SpinDelay:            DefaultSpinDelay,
		WriteThroughTimeout:  DefaultWriteThroughTimeout,
		WriteThroughByteTime: DefaultWriteThroughByteTime,
		CloseTimeout:         DefaultCloseTimeout,
	}
}

// Stats are counters maintained by a Store.
type Stats struct {
	Reads         uint64 // client read accesses
	CacheHits     uint64 // bytes served from cache
	BackendReads  uint64 // bytes read from the backend
	Writes        uint64 // client write/update accesses
	Suppressed    uint64 // bytes not marked because unchanged
	Flushed       uint64 // bytes acknowledged by the backend
	BusyPolls     uint64 // polls deferred by a busy backend
	WriteFailures uint64 // writes the backend rejected
	Seals         uint64 // validity markers written
	Pending       int    // bytes currently waiting for flush
}
