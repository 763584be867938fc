package nv

import (
	"sync"

	fx "github.com/robotalks/nv.go/pkg/framework"
)

// Locked serializes every access to a Store behind one mutex, for
// embeddings where more than one goroutine touches the storage.
type Locked struct {
	store *Store
	lock  sync.Mutex
}

// NewLocked wraps s.
func NewLocked(s *Store) *Locked {
	return &Locked{store: s}
}

// Do runs fn with exclusive access to the store.
func (l *Locked) Do(fn func(*Store) error) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return fn(l.store)
}

// Control implements framework.Controller.
func (l *Locked) Control(cc fx.ControlContext) error {
	return l.Do(func(s *Store) error { return s.Poll() })
}

// AddToLoop implements framework.LoopAdder.
func (l *Locked) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvStorage, l)
}
