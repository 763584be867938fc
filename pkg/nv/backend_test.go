package nv

import (
	"errors"
	"fmt"
)

var (
	errFakeWrite = errors.New("fake write failure")
	errFakeSync  = errors.New("fake sync failure")
	errFakeRead  = errors.New("fake read failure")
)

type fakeBackend struct {
	data     []byte
	busy     bool
	fail     error
	failRead error
	ops      []string
}

func (b *fakeBackend) Init(size int) error {
	if len(b.data) != size {
		b.data = make([]byte, size)
	}
	return nil
}

func (b *fakeBackend) Busy() bool { return b.busy }

func (b *fakeBackend) ReadFromStorage(i int) (byte, error) {
	if b.failRead != nil {
		return 0, b.failRead
	}
	if i < 0 || i >= len(b.data) {
		return 0, fmt.Errorf("fake read of %d", i)
	}
	return b.data[i], nil
}

func (b *fakeBackend) WriteToStorage(i int, v byte) error {
	if b.fail != nil {
		return b.fail
	}
	b.data[i] = v
	b.ops = append(b.ops, fmt.Sprintf("w%d", i))
	return nil
}

func (b *fakeBackend) writes() int {
	n := 0
	for _, op := range b.ops {
		if op[0] == 'w' {
			n++
		}
	}
	return n
}

// bufferedBackend accepts batches and needs Sync for durability.
type bufferedBackend struct {
	fakeBackend
	batch  int
	closed bool
}

func (b *bufferedBackend) BatchSize() int { return b.batch }

func (b *bufferedBackend) Sync() error {
	b.ops = append(b.ops, "sync")
	return nil
}

func (b *bufferedBackend) Close() error {
	b.closed = true
	return nil
}

// asyncBackend completes writes when the test calls complete.
type asyncBackend struct {
	fakeBackend
	addr   int
	value  byte
	result error
}

func (b *asyncBackend) WriteToStorage(i int, v byte) error {
	b.addr, b.value = i, v
	b.busy = true
	b.ops = append(b.ops, fmt.Sprintf("w%d", i))
	return nil
}

func (b *asyncBackend) complete(err error) {
	if err == nil {
		b.data[b.addr] = b.value
	}
	b.result = err
	b.busy = false
}

func (b *asyncBackend) Completed() error { return b.result }

type validatingBackend struct {
	fakeBackend
	ok bool
}

func (b *validatingBackend) Valid() bool { return b.ok }

// rangeBackend reads runs of up to 8 bytes and counts both kinds of reads.
type rangeBackend struct {
	fakeBackend
	singles int
	ranges  int
}

func (b *rangeBackend) MaxRange() int { return 8 }

func (b *rangeBackend) ReadRange(i, count int) ([]byte, error) {
	if i < 0 || count > 8 || i+count > len(b.data) {
		return nil, fmt.Errorf("fake range read of [%d, %d)", i, i+count)
	}
	b.ranges++
	return append([]byte(nil), b.data[i:i+count]...), nil
}

func (b *rangeBackend) ReadFromStorage(i int) (byte, error) {
	b.singles++
	return b.fakeBackend.ReadFromStorage(i)
}

// asyncSyncBackend stays busy after Sync until the test clears busy, then
// reports syncErr once.
type asyncSyncBackend struct {
	fakeBackend
	syncs   int
	syncErr error
}

func (b *asyncSyncBackend) Sync() error {
	b.syncs++
	b.busy = true
	b.ops = append(b.ops, "sync")
	return nil
}

func (b *asyncSyncBackend) SyncCompleted() error {
	err := b.syncErr
	b.syncErr = nil
	return err
}

// flakyBackend rejects the first syncFails syncs and the first writeFails
// writes of failAddr.
type flakyBackend struct {
	fakeBackend
	syncFails  int
	failAddr   int
	writeFails int
}

func (b *flakyBackend) Sync() error {
	if b.syncFails > 0 {
		b.syncFails--
		return errFakeSync
	}
	b.ops = append(b.ops, "sync")
	return nil
}

func (b *flakyBackend) WriteToStorage(i int, v byte) error {
	if i == b.failAddr && b.writeFails > 0 {
		b.writeFails--
		return errFakeWrite
	}
	return b.fakeBackend.WriteToStorage(i, v)
}
