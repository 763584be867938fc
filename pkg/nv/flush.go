package nv

import (
	"context"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/nv.go/pkg/framework"
)

// Poll advances the flush scheduler by one step. It never blocks: a busy
// backend defers the work to the next poll. Write failures keep the byte
// pending; a StallError is returned once they exceed MaxRetries.
func (s *Store) Poll() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.hasWork() {
		s.busyPolls = 0
		return nil
	}
	if s.backend.Busy() {
		return s.deferBusy()
	}
	s.busyPolls = 0
	if err := s.settle(); err != nil {
		return err
	}
	for n := s.batchSize(); n > 0; n-- {
		if s.inflight != nil || s.syncing || s.backend.Busy() {
			return nil
		}
		addr, value, ok, err := s.next()
		if err != nil {
			return err
		}
		if !ok {
			if s.markerBits.any() {
				return nil
			}
			return s.finish()
		}
		if err := s.issue(addr, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) deferBusy() error {
	s.stats.BusyPolls++
	s.busyPolls++
	if s.config.BusyLimit > 0 && s.busyPolls >= s.config.BusyLimit {
		return &StallError{Addr: -1, Attempts: s.busyPolls, Err: ErrBackendBusy}
	}
	return nil
}

func (s *Store) batchSize() int {
	if t, ok := s.backend.(Throttler); ok {
		if n := t.BatchSize(); n > 0 {
			return n
		}
	}
	return 1
}

// next selects the next byte to write: cached bytes from a rotating
// cursor, then bytes outside the window, then the validity marker.
func (s *Store) next() (int, byte, bool, error) {
	if idx, ok := s.writeBits.nextSet(s.cursor, len(s.cache)); ok {
		s.cursor = idx + 1
		return s.window + idx, s.cache[idx], true, nil
	}
	if len(s.overflowAddrs) > 0 {
		addr := s.overflowAddrs[0]
		return addr, s.overflow[addr], true, nil
	}
	if s.markerStale {
		if err := s.seal(); err != nil {
			return 0, 0, false, err
		}
		if s.markerStale || s.syncing || s.backend.Busy() {
			return 0, 0, false, nil
		}
	}
	if idx, ok := s.markerBits.nextSet(0, MarkerSize); ok {
		return s.size + idx, s.marker[idx], true, nil
	}
	return 0, 0, false, nil
}

func (s *Store) issue(addr int, value byte) error {
	glog.V(3).Infof("nv: write [%d]=%#02x", addr, value)
	if err := s.backend.WriteToStorage(addr, value); err != nil {
		return s.failed(addr, err)
	}
	w := &pendingWrite{addr: addr, value: value}
	if _, async := s.backend.(Completer); async {
		s.inflight = w
		return nil
	}
	s.acknowledge(w)
	return nil
}

// settle resolves an asynchronous write or barrier once the backend is idle.
func (s *Store) settle() error {
	if err := s.settleSync(); err != nil {
		return err
	}
	w := s.inflight
	if w == nil {
		return nil
	}
	c, _ := s.backend.(Completer)
	if c == nil {
		s.inflight = nil
		s.acknowledge(w)
		return nil
	}
	if s.backend.Busy() {
		return nil
	}
	s.inflight = nil
	if err := c.Completed(); err != nil {
		return s.failed(w.addr, err)
	}
	s.acknowledge(w)
	return nil
}

// acknowledge clears the pending state of a written byte unless a newer
// value was stored after the write was issued.
func (s *Store) acknowledge(w *pendingWrite) {
	s.stats.Flushed++
	delete(s.failures, w.addr)
	if w.addr >= s.size {
		idx := w.addr - s.size
		if s.marker[idx] == w.value {
			s.markerBits.clear(idx)
		}
		return
	}
	if idx, ok := s.cached(w.addr); ok {
		if s.cache[idx] == w.value {
			s.writeBits.clear(idx)
		}
		return
	}
	if v, ok := s.overflow[w.addr]; ok && v == w.value {
		s.dropOverflow(w.addr)
	}
}

func (s *Store) failed(addr int, err error) error {
	s.stats.WriteFailures++
	s.failures[addr]++
	attempts := s.failures[addr]
	glog.Warningf("nv: write of address %d failed (attempt %d): %v", addr, attempts, err)
	if attempts >= s.config.MaxRetries {
		return &StallError{Addr: addr, Attempts: attempts, Err: err}
	}
	return nil
}

// sync issues the durability barrier. It reports false when the barrier
// was rejected. An asynchronous barrier is resolved by settleSync.
func (s *Store) sync() (bool, error) {
	sy, ok := s.backend.(Syncer)
	if !ok {
		return true, nil
	}
	if err := sy.Sync(); err != nil {
		return false, s.syncFailed(err)
	}
	if _, async := s.backend.(SyncCompleter); async {
		s.syncing = true
		return true, nil
	}
	s.syncFailures = 0
	return true, nil
}

// settleSync resolves an asynchronous barrier. A failed barrier forces a
// new seal: the image is hashed, synced and marked again.
func (s *Store) settleSync() error {
	if !s.syncing || s.backend.Busy() {
		return nil
	}
	s.syncing = false
	if err := s.backend.(SyncCompleter).SyncCompleted(); err != nil {
		s.markerStale = true
		return s.syncFailed(err)
	}
	s.syncFailures = 0
	return nil
}

func (s *Store) syncFailed(err error) error {
	s.stats.WriteFailures++
	s.syncFailures++
	glog.Warningf("nv: sync failed (attempt %d): %v", s.syncFailures, err)
	if s.syncFailures >= s.config.MaxRetries {
		return &StallError{Addr: -1, Attempts: s.syncFailures, Err: err}
	}
	return nil
}

// finish runs the final durability barrier once the marker is written.
func (s *Store) finish() error {
	if !s.needSync || s.syncing {
		return nil
	}
	ok, err := s.sync()
	if !ok {
		return err
	}
	s.needSync = false
	if !s.syncing {
		glog.V(2).Info("nv: committed")
	}
	return nil
}

// Drain polls until everything is committed, ctx is done or a StallError
// is reported.
func (s *Store) Drain(ctx context.Context) error {
	for {
		if err := s.Poll(); err != nil {
			return err
		}
		if s.Committed() {
			return nil
		}
		if s.inflight != nil || s.syncing || s.backend.Busy() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.SpinDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Control implements framework.Controller.
func (s *Store) Control(cc fx.ControlContext) error {
	return s.Poll()
}

// AddToLoop implements framework.LoopAdder.
func (s *Store) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvStorage, s)
}
