package nv

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/nv.go/pkg/framework"
	"github.com/robotalks/nv.go/pkg/nv/codec"
)

func newTestStore(t *testing.T, b Backend, size int, config Config) *Store {
	s := New(b, config)
	require.NoError(t, s.Init(size))
	return s
}

func pollUntilCommitted(t *testing.T, s *Store) int {
	for n := 1; n <= 1000; n++ {
		require.NoError(t, s.Poll())
		if s.Committed() {
			return n
		}
	}
	t.Fatal("not committed after 1000 polls")
	return 0
}

func TestStoreTypedRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		write func(s *Store, i int) error
		check func(t *testing.T, s *Store, i int)
	}{
		{
			"u8",
			func(s *Store, i int) error { return s.WriteUint8(i, 0xfe) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadUint8(i)
				require.NoError(t, err)
				require.Equal(t, uint8(0xfe), v)
			},
		},
		{
			"i8",
			func(s *Store, i int) error { return s.WriteInt8(i, -128) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadInt8(i)
				require.NoError(t, err)
				require.Equal(t, int8(-128), v)
			},
		},
		{
			"u16",
			func(s *Store, i int) error { return s.WriteUint16(i, 0xbeef) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadUint16(i)
				require.NoError(t, err)
				require.Equal(t, uint16(0xbeef), v)
			},
		},
		{
			"i16",
			func(s *Store, i int) error { return s.WriteInt16(i, -12345) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadInt16(i)
				require.NoError(t, err)
				require.Equal(t, int16(-12345), v)
			},
		},
		{
			"u32",
			func(s *Store, i int) error { return s.WriteUint32(i, 0xdeadbeef) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadUint32(i)
				require.NoError(t, err)
				require.Equal(t, uint32(0xdeadbeef), v)
			},
		},
		{
			"i32",
			func(s *Store, i int) error { return s.WriteInt32(i, -2000000000) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadInt32(i)
				require.NoError(t, err)
				require.Equal(t, int32(-2000000000), v)
			},
		},
		{
			"f32",
			func(s *Store, i int) error { return s.WriteFloat32(i, 3.25) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadFloat32(i)
				require.NoError(t, err)
				require.Equal(t, float32(3.25), v)
			},
		},
		{
			"f64",
			func(s *Store, i int) error { return s.WriteFloat64(i, -1.0e-300) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadFloat64(i)
				require.NoError(t, err)
				require.Equal(t, -1.0e-300, v)
			},
		},
		{
			"string",
			func(s *Store, i int) error { return s.WriteString(i, "M31", 16) },
			func(t *testing.T, s *Store, i int) {
				v, err := s.ReadString(i, 16)
				require.NoError(t, err)
				require.Equal(t, "M31", v)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBackend{}
			s := newTestStore(t, b, 64, DefaultConfig())
			require.NoError(t, tc.write(s, 5))
			tc.check(t, s, 5)
			pollUntilCommitted(t, s)

			reopened := newTestStore(t, b, 64, DefaultConfig())
			require.True(t, reopened.Valid())
			tc.check(t, reopened, 5)
		})
	}
}

func TestStoreUpdateSuppressesNoop(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 32, DefaultConfig())
	require.NoError(t, s.WriteUint32(4, 0x01020304))
	require.Equal(t, []int{4, 5, 6, 7}, s.PendingAddrs())
	pollUntilCommitted(t, s)
	writes := b.writes()

	require.NoError(t, s.UpdateUint32(4, 0x01020304))
	require.Empty(t, s.PendingAddrs())
	require.True(t, s.Committed())
	require.Equal(t, uint64(4), s.Stats().Suppressed)
	require.NoError(t, s.Poll())
	require.Equal(t, writes, b.writes())

	// only the changed byte is marked
	require.NoError(t, s.UpdateUint32(4, 0x01020399))
	require.Equal(t, []int{4}, s.PendingAddrs())

	// write marks unconditionally
	require.NoError(t, s.WriteUint16(8, 0))
	require.Equal(t, []int{4, 8, 9}, s.PendingAddrs())
}

func TestStoreCommittedAfterPolls(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 16, DefaultConfig())
	require.False(t, s.Valid())
	require.True(t, s.Committed())

	require.NoError(t, s.WriteUint16(2, 0x1234))
	require.False(t, s.Committed())
	require.NoError(t, s.Poll())
	require.False(t, s.Committed())

	// two data bytes, the marker and the final barrier
	polls := pollUntilCommitted(t, s)
	require.Equal(t, 2+MarkerSize, polls)
	require.Equal(t, []byte{0x34, 0x12}, b.data[2:4])
	require.True(t, s.Valid())
	require.Zero(t, s.Stats().Pending)

	// the persisted image stays consistent until the next flush
	require.NoError(t, s.UpdateUint8(2, 0x35))
	require.False(t, s.Committed())
	require.True(t, s.Valid())
}

func TestStoreBounds(t *testing.T) {
	testCases := []struct {
		name string
		do   func(s *Store) error
	}{
		{"u32 past end", func(s *Store) error { return s.WriteUint32(13, 7) }},
		{"u16 at last byte", func(s *Store) error { return s.UpdateUint16(15, 7) }},
		{"negative", func(s *Store) error { return s.WriteUint8(-1, 7) }},
		{"read f64 past end", func(s *Store) error { _, err := s.ReadFloat64(9); return err }},
		{"read at size", func(s *Store) error { _, err := s.ReadUint8(16); return err }},
		{"string at size", func(s *Store) error { _, err := s.ReadString(16, 8); return err }},
		{"raw cache outside", func(s *Store) error { return s.WriteToCache(16, 1) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t, &fakeBackend{}, 16, DefaultConfig())
			for i := 0; i < 16; i++ {
				require.NoError(t, s.WriteUint8(i, byte(0xa0+i)))
			}
			pollUntilCommitted(t, s)

			err := tc.do(s)
			require.True(t, errors.Is(err, ErrOutOfRange), "got %v", err)
			var re *RangeError
			require.True(t, errors.As(err, &re))
			require.Equal(t, 16, re.Size)

			require.True(t, s.Committed())
			buf := make([]byte, 16)
			n, err := s.ReadBytes(0, buf, 16)
			require.NoError(t, err)
			require.Equal(t, 16, n)
			for i, b := range buf {
				require.Equal(t, byte(0xa0+i), b)
			}
		})
	}
}

func TestStoreRawCounts(t *testing.T) {
	s := newTestStore(t, &fakeBackend{}, 128, DefaultConfig())
	require.Equal(t, codec.ErrCount, s.WriteBytes(0, nil))
	require.Equal(t, codec.ErrCount, s.WriteBytes(0, make([]byte, codec.MaxBytes+1)))
	_, err := s.ReadBytes(0, make([]byte, 100), 65)
	require.Equal(t, codec.ErrCount, err)
	_, err = s.ReadBytes(0, make([]byte, 2), 4)
	require.Equal(t, codec.ErrShortBuffer, err)

	require.NoError(t, s.WriteBytes(0, []byte("ab\x00cd")))
	buf := make([]byte, 8)
	n, err := s.ReadBytes(0, buf, -8)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte("ab\x00"), buf[:n])
}

func TestStoreStringAtEnd(t *testing.T) {
	testCases := []struct {
		name   string
		addr   int
		value  string
		maxLen int
		expect string
	}{
		{"fits before end", 12, "ab", 16, "ab"},
		{"terminator on last byte", 13, "xy", 16, "xy"},
		{"truncated by write", 10, "Andromeda", 6, "Andro"},
		{"last byte", 15, "", 8, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t, &fakeBackend{}, 16, DefaultConfig())
			require.NoError(t, s.WriteString(tc.addr, tc.value, tc.maxLen))
			v, err := s.ReadString(tc.addr, tc.maxLen)
			require.NoError(t, err)
			require.Equal(t, tc.expect, v)

			pollUntilCommitted(t, s)
			reopened := newTestStore(t, s.Backend(), 16, DefaultConfig())
			v, err = reopened.ReadString(tc.addr, codec.MaxBytes)
			require.NoError(t, err)
			require.Equal(t, tc.expect, v)
		})
	}

	// without a terminator the scan stops at the end of the address space
	s := newTestStore(t, &fakeBackend{}, 16, DefaultConfig())
	require.NoError(t, s.WriteBytes(13, []byte("xyz")))
	buf := make([]byte, 8)
	n, err := s.ReadBytes(13, buf, -8)
	require.NoError(t, err)
	require.Equal(t, []byte("xyz"), buf[:n])
}

func TestStoreNotInitialized(t *testing.T) {
	s := New(&fakeBackend{}, Config{})
	require.Equal(t, ErrNotInitialized, s.Poll())
	require.Equal(t, ErrNotInitialized, s.WriteUint8(0, 1))
	require.False(t, s.Valid())
	require.False(t, s.Committed())
}

func TestStoreStringTruncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	s := newTestStore(t, &fakeBackend{}, 128, DefaultConfig())
	require.NoError(t, s.WriteString(0, long, 200))
	v, err := s.ReadString(0, codec.MaxBytes)
	require.NoError(t, err)
	require.Equal(t, long[:codec.MaxBytes-1], v)

	b, err := s.ReadUint8(codec.MaxBytes - 1)
	require.NoError(t, err)
	require.Zero(t, b)
	require.Equal(t, codec.MaxBytes, len(s.PendingAddrs()))

	require.NoError(t, s.WriteString(64, "Andromeda", 5))
	v, err = s.ReadString(64, 5)
	require.NoError(t, err)
	require.Equal(t, "Andr", v)
}

func TestStoreCacheWindow(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 32, Config{CacheIndex: 8, CacheSize: 8})

	require.NoError(t, s.WriteUint32(6, 0xaabbccdd))
	require.Equal(t, []int{6, 7, 8, 9}, s.PendingAddrs())
	v, err := s.ReadUint32(6)
	require.NoError(t, err)
	require.Equal(t, uint32(0xaabbccdd), v)

	_, err = s.ReadFromCache(0)
	require.True(t, errors.Is(err, ErrOutOfRange))
	c, err := s.ReadFromCache(8)
	require.NoError(t, err)
	require.Equal(t, byte(0xbb), c)

	pollUntilCommitted(t, s)
	require.Equal(t, []byte{0xdd, 0xcc, 0xbb, 0xaa}, b.data[6:10])
	require.True(t, s.Valid())

	// reads outside the window always go to the backend
	before := s.Stats().BackendReads
	_, err = s.ReadUint8(20)
	require.NoError(t, err)
	_, err = s.ReadUint8(20)
	require.NoError(t, err)
	require.Equal(t, before+2, s.Stats().BackendReads)

	// inside the window the second read hits the cache
	before = s.Stats().CacheHits
	_, err = s.ReadUint8(12)
	require.NoError(t, err)
	_, err = s.ReadUint8(12)
	require.NoError(t, err)
	require.Equal(t, before+1, s.Stats().CacheHits)
}

func TestStoreBadWindow(t *testing.T) {
	testCases := []struct {
		name   string
		config Config
	}{
		{"past end", Config{CacheIndex: 8, CacheSize: 16}},
		{"negative index", Config{CacheIndex: -2}},
		{"negative size", Config{CacheSize: -1}},
		{"index at end", Config{CacheIndex: 16}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, ErrBadWindow, New(&fakeBackend{}, tc.config).Init(16))
		})
	}
}

func TestStoreNoCache(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 16, Config{CacheIndex: NoCache})
	require.NoError(t, s.WriteUint16(0, 0x0102))
	require.NoError(t, s.UpdateUint16(0, 0x0102))
	require.Equal(t, []int{0, 1}, s.PendingAddrs())
	v, err := s.ReadUint16(0)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), v)
	pollUntilCommitted(t, s)
	require.Equal(t, []byte{2, 1}, b.data[:2])
	require.True(t, s.Valid())
}

func TestStorePreload(t *testing.T) {
	b := &fakeBackend{data: make([]byte, 16+MarkerSize)}
	b.data[3] = 9
	s := newTestStore(t, b, 16, Config{Preload: true})
	require.Equal(t, uint64(16), s.Stats().BackendReads)
	v, err := s.ReadFromCache(3)
	require.NoError(t, err)
	require.Equal(t, byte(9), v)
}

func TestStoreBusyBackend(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 16, Config{BusyLimit: 3})
	require.NoError(t, s.WriteUint8(1, 1))
	b.busy = true
	require.NoError(t, s.Poll())
	require.NoError(t, s.Poll())
	err := s.Poll()
	var se *StallError
	require.True(t, errors.As(err, &se))
	require.Equal(t, -1, se.Addr)
	require.True(t, errors.Is(err, ErrBackendBusy))
	require.Zero(t, b.writes())
	require.Equal(t, uint64(3), s.Stats().BusyPolls)

	b.busy = false
	pollUntilCommitted(t, s)
	require.Equal(t, byte(1), b.data[1])
}

func TestStoreWriteFailures(t *testing.T) {
	b := &fakeBackend{fail: errFakeWrite}
	s := newTestStore(t, b, 16, Config{MaxRetries: 3})
	require.NoError(t, s.WriteUint8(2, 5))
	require.NoError(t, s.Poll())
	require.NoError(t, s.Poll())
	err := s.Poll()
	var se *StallError
	require.True(t, errors.As(err, &se))
	require.Equal(t, 2, se.Addr)
	require.Equal(t, 3, se.Attempts)
	require.True(t, errors.Is(err, errFakeWrite))
	require.Equal(t, []int{2}, s.PendingAddrs())
	require.Equal(t, uint64(3), s.Stats().WriteFailures)

	b.fail = nil
	pollUntilCommitted(t, s)
	require.Equal(t, byte(5), b.data[2])
}

func TestStoreAsyncBackend(t *testing.T) {
	b := &asyncBackend{}
	s := newTestStore(t, b, 16, DefaultConfig())
	require.NoError(t, s.WriteUint16(0, 0x0201))

	require.NoError(t, s.Poll())
	require.Equal(t, []string{"w0"}, b.ops)
	// nothing is issued while the write is in flight
	require.NoError(t, s.Poll())
	require.Equal(t, []string{"w0"}, b.ops)

	// a newer value written during the cycle keeps the byte pending
	require.NoError(t, s.WriteUint8(0, 0x09))
	b.complete(nil)
	require.NoError(t, s.Poll())
	require.Equal(t, []int{0, 1}, s.PendingAddrs())

	b.complete(nil)
	require.NoError(t, s.Poll())
	require.Equal(t, []int{0}, s.PendingAddrs())

	// a failed completion is retried
	b.complete(errFakeWrite)
	require.NoError(t, s.Poll())
	require.Equal(t, []int{0}, s.PendingAddrs())
	require.Equal(t, uint64(1), s.Stats().WriteFailures)

	for i := 0; i < 100 && !s.Committed(); i++ {
		if b.busy {
			b.complete(nil)
		}
		require.NoError(t, s.Poll())
	}
	require.True(t, s.Committed())
	require.Equal(t, []byte{0x09, 0x02}, b.data[:2])
	require.True(t, s.Valid())
}

func TestStoreSealOrder(t *testing.T) {
	b := &bufferedBackend{batch: 64}
	s := newTestStore(t, b, 4, DefaultConfig())
	require.NoError(t, s.WriteUint16(1, 0xffff))
	pollUntilCommitted(t, s)

	expect := []string{"w1", "w2", "sync"}
	for n := 0; n < MarkerSize; n++ {
		expect = append(expect, "w"+strconv.Itoa(4+n))
	}
	expect = append(expect, "sync")
	require.Equal(t, expect, b.ops)
	require.Equal(t, uint64(1), s.Stats().Seals)
}

func TestStoreThrottledBatch(t *testing.T) {
	b := &bufferedBackend{batch: 4}
	s := newTestStore(t, b, 16, DefaultConfig())
	require.NoError(t, s.WriteBytes(0, []byte{1, 2, 3, 4, 5, 6}))
	require.NoError(t, s.Poll())
	require.Equal(t, 4, b.writes())
	require.Equal(t, 2, len(s.PendingAddrs()))
}

func TestStoreWriteThrough(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 16, Config{WriteThrough: true, WriteThroughTimeout: 5 * time.Millisecond})
	require.True(t, s.IsWriteThrough())
	require.NoError(t, s.WriteUint16(0, 0x0506))
	require.True(t, s.Committed())
	require.Equal(t, []byte{6, 5}, b.data[:2])

	// an update with no change does not touch the backend
	writes := b.writes()
	require.NoError(t, s.UpdateUint16(0, 0x0506))
	require.Equal(t, writes, b.writes())

	b.busy = true
	err := s.WriteUint8(3, 1)
	require.True(t, errors.Is(err, ErrWriteThrough), "got %v", err)
	require.Equal(t, []int{3}, s.PendingAddrs())

	b.busy = false
	s.WriteThrough(false)
	require.NoError(t, s.WriteUint8(4, 1))
	require.False(t, s.Committed())
}

func TestStoreValidity(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 16, DefaultConfig())
	require.False(t, s.Valid())
	require.NoError(t, s.Format(0x5a))
	pollUntilCommitted(t, s)
	require.True(t, s.Valid())
	for i := 0; i < 16; i++ {
		require.Equal(t, byte(0x5a), b.data[i])
	}

	testCases := []struct {
		name string
		addr int
	}{
		{"magic", 16},
		{"checksum", 16 + MarkerSize - 1},
		{"image", 7},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b.data[tc.addr] ^= 0xff
			require.False(t, s.Valid())
			b.data[tc.addr] ^= 0xff
			require.True(t, s.Valid())
		})
	}

	// the previous verdict stands while the backend is busy
	b.busy = true
	b.data[16] = 0
	require.True(t, s.Valid())
	b.busy = false
	require.False(t, s.Valid())
}

func TestStoreBackendValidator(t *testing.T) {
	b := &validatingBackend{ok: true}
	s := newTestStore(t, b, 8, DefaultConfig())
	require.NoError(t, s.WriteUint8(0, 1))
	pollUntilCommitted(t, s)
	require.True(t, s.Valid())
	b.ok = false
	require.False(t, s.Valid())
}

func TestStoreFormatWriteThrough(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 100, Config{WriteThrough: true})
	require.NoError(t, s.Format(0xff))
	require.True(t, s.Committed())
	require.True(t, s.IsWriteThrough())
	require.True(t, s.Valid())
}

func TestStoreRawCache(t *testing.T) {
	s := newTestStore(t, &fakeBackend{}, 8, DefaultConfig())
	require.NoError(t, s.WriteToCache(3, 0x77))
	v, err := s.ReadFromCache(3)
	require.NoError(t, err)
	require.Equal(t, byte(0x77), v)
	require.True(t, s.Committed())
}

func TestStoreDrainTimeout(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 8, DefaultConfig())
	require.NoError(t, s.WriteUint8(0, 1))
	b.busy = true
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, s.Drain(ctx))
}

func TestStoreClose(t *testing.T) {
	b := &bufferedBackend{batch: 8}
	s := newTestStore(t, b, 8, DefaultConfig())
	require.NoError(t, s.WriteUint32(0, 42))
	require.NoError(t, s.Close())
	require.True(t, b.closed)
	require.Equal(t, []byte{42, 0, 0, 0}, b.data[:4])
	require.Equal(t, ErrNotInitialized, s.Poll())
}

func TestStoreControlLoop(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 8, DefaultConfig())
	l := fx.NewLoop()
	l.Add(s)
	require.NoError(t, s.WriteUint32(0, 7))
	for i := 0; i < 50 && !s.Committed(); i++ {
		l.RunOnce(context.Background())
	}
	require.True(t, s.Committed())
	require.True(t, s.Valid())
}

func TestLockedStore(t *testing.T) {
	b := &fakeBackend{}
	l := NewLocked(newTestStore(t, b, 64, DefaultConfig()))
	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				assert.NoError(t, l.Do(func(s *Store) error {
					return s.UpdateUint8(n*8+k%8, byte(k))
				}))
				assert.NoError(t, l.Control(nil))
			}
		}(n)
	}
	wg.Wait()
	require.NoError(t, l.Do(func(s *Store) error {
		pollUntilCommitted(t, s)
		return nil
	}))
	for n := 0; n < 8; n++ {
		for k := 0; k < 8; k++ {
			last := k + 16
			if last >= 20 {
				last = k + 8
			}
			require.Equal(t, byte(last), b.data[n*8+k])
		}
	}
}

func TestStorePreloadFailure(t *testing.T) {
	b := &fakeBackend{failRead: errFakeRead}
	s := New(b, Config{Preload: true})
	require.Equal(t, errFakeRead, s.Init(16))
	require.False(t, s.Committed())
	_, err := s.ReadUint8(0)
	require.Equal(t, ErrNotInitialized, err)
	require.Equal(t, ErrNotInitialized, s.WriteUint8(0, 1))

	b.failRead = nil
	require.NoError(t, s.Init(16))
	require.NoError(t, s.WriteUint8(0, 1))
}

func TestStoreWriteThroughBudget(t *testing.T) {
	s := newTestStore(t, &fakeBackend{}, 128, Config{
		WriteThroughTimeout:  time.Millisecond,
		WriteThroughByteTime: 2 * time.Millisecond,
	})
	require.NoError(t, s.WriteBytes(0, make([]byte, 40)))
	require.Equal(t, time.Millisecond+time.Duration(40+MarkerSize)*2*time.Millisecond,
		s.writeThroughTimeout())
}

func TestStoreOverflowOrder(t *testing.T) {
	b := &fakeBackend{}
	s := newTestStore(t, b, 32, Config{CacheIndex: NoCache})
	for _, addr := range []int{9, 3, 20, 7, 3, 0} {
		require.NoError(t, s.WriteUint8(addr, byte(addr+1)))
	}
	require.Equal(t, []int{0, 3, 7, 9, 20}, s.PendingAddrs())
	pollUntilCommitted(t, s)
	require.Equal(t, []string{"w0", "w3", "w7", "w9", "w20"}, b.ops[:5])
	require.Empty(t, s.PendingAddrs())

	require.NoError(t, s.Format(0))
	require.Len(t, s.PendingAddrs(), 32)
	pollUntilCommitted(t, s)
	require.True(t, s.Valid())
}

func TestStoreRangeReads(t *testing.T) {
	b := &rangeBackend{}
	s := newTestStore(t, b, 20, DefaultConfig())
	require.NoError(t, s.WriteUint32(4, 0xdeadbeef))
	pollUntilCommitted(t, s)
	require.Zero(t, b.singles)

	b.singles, b.ranges = 0, 0
	require.True(t, s.Valid())
	require.Zero(t, b.singles)
	// marker in 2 runs, image in 3
	require.Equal(t, 5, b.ranges)

	v, err := s.ReadUint32(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdeadbeef), v)
	require.Zero(t, b.singles)
}

func TestStoreAsyncSync(t *testing.T) {
	b := &asyncSyncBackend{}
	s := newTestStore(t, b, 8, DefaultConfig())
	require.NoError(t, s.WriteUint8(1, 7))
	for n := 0; n < 10 && !b.busy; n++ {
		require.NoError(t, s.Poll())
	}
	// the data barrier holds back the marker
	require.True(t, b.busy)
	require.Equal(t, 1, b.syncs)
	require.Equal(t, 1, b.writes())
	require.False(t, s.Committed())

	b.busy = false
	for n := 0; n < 100 && !b.busy; n++ {
		require.NoError(t, s.Poll())
	}
	require.Equal(t, 2, b.syncs)
	require.Equal(t, 1+MarkerSize, b.writes())
	require.False(t, s.Committed())

	// the final barrier fails: the image is sealed again
	b.syncErr, b.busy = errFakeSync, false
	require.NoError(t, s.Poll())
	require.False(t, s.Committed())
	for n := 0; n < 100 && !s.Committed(); n++ {
		b.busy = false
		require.NoError(t, s.Poll())
	}
	require.True(t, s.Committed())
	require.Equal(t, 4, b.syncs)
	st := s.Stats()
	require.Equal(t, uint64(2), st.Seals)
	require.Equal(t, uint64(1), st.WriteFailures)
	require.True(t, s.Valid())
}

func TestStoreAsyncSyncStall(t *testing.T) {
	b := &asyncSyncBackend{}
	s := newTestStore(t, b, 8, Config{MaxRetries: 2})
	require.NoError(t, s.WriteUint8(0, 1))
	var err error
	for n := 0; n < 100 && err == nil; n++ {
		if b.busy {
			b.syncErr, b.busy = errFakeSync, false
		}
		err = s.Poll()
	}
	var stall *StallError
	require.True(t, errors.As(err, &stall), "got %v", err)
	require.Equal(t, -1, stall.Addr)
	require.Equal(t, 2, stall.Attempts)
	require.Equal(t, errFakeSync, stall.Err)
	require.False(t, s.Committed())
}

func TestStoreSyncFailuresCountedApart(t *testing.T) {
	b := &flakyBackend{syncFails: 1, failAddr: 16, writeFails: 1}
	s := newTestStore(t, b, 16, Config{MaxRetries: 2})
	require.NoError(t, s.WriteUint8(2, 5))
	pollUntilCommitted(t, s)
	require.Equal(t, uint64(2), s.Stats().WriteFailures)
	require.True(t, s.Valid())
}
