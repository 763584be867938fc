package link

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Handler receives the frames decoded by a Link.
type Handler interface {
	HandleFrame(context.Context, *Frame)
}

// HandlerFunc is the func form of Handler.
type HandlerFunc func(context.Context, *Frame)

// HandleFrame implements Handler.
func (f HandlerFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// DefaultSyncTimeout bounds a sync handshake or a partially received frame.
const DefaultSyncTimeout = 100 * time.Millisecond

// Link exchanges frames over a byte stream.
type Link struct {
	Conn        io.ReadWriter
	Handler     Handler
	SyncTimeout time.Duration
	// OnState is called from Run whenever the sync state changes.
	OnState func(context.Context, State)

	seq   Seq
	state State
	lock  sync.Mutex

	dec   Decoder
	timer <-chan time.Time
}

// New creates a Link over conn.
func New(conn io.ReadWriter) *Link {
	return &Link{
		Conn:        conn,
		SyncTimeout: DefaultSyncTimeout,
		seq:         RandomSeq(),
	}
}

// State returns the current sync state.
func (l *Link) State() State {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.state
}

// Send numbers and writes f.
func (l *Link) Send(f *Frame) error {
	if len(f.Data) > MaxData {
		return ErrFrameTooLarge
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.state.Ready() {
		return ErrNotReady
	}
	f.Seq = l.seq
	if _, err := f.WriteTo(l.Conn); err != nil {
		return err
	}
	l.seq = l.seq.Next()
	return nil
}

// Run reads and dispatches frames until ctx is done or the stream fails.
func (l *Link) Run(ctx context.Context) error {
	if err := l.apply(ctx, l.dec.Restart()); err != nil {
		return err
	}
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	byteCh, errCh := make(chan byte), make(chan error, 1)
	go l.read(readCtx, byteCh, errCh)
	for {
		var err error
		select {
		case b := <-byteCh:
			err = l.apply(ctx, l.dec.Feed(b))
		case <-l.timer:
			err = l.apply(ctx, l.dec.Expire())
		case err = <-errCh:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			return err
		}
	}
}

func (l *Link) read(ctx context.Context, byteCh chan<- byte, errCh chan<- error) {
	buf := make([]byte, 1)
	for {
		n, err := l.Conn.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		select {
		case byteCh <- buf[0]:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Link) apply(ctx context.Context, s Step) (err error) {
	l.lock.Lock()
	changed := l.state != s.State
	l.state = s.State
	if s.Control != 0 {
		_, err = l.Conn.Write([]byte{s.Control, byte(l.seq)})
	}
	l.lock.Unlock()
	if err != nil {
		return err
	}

	switch s.timer() {
	case timerArm:
		l.timer = time.After(l.SyncTimeout)
	case timerDisarm:
		l.timer = nil
	}
	if changed {
		glog.V(4).Infof("link: %s", s.State)
		if l.OnState != nil {
			l.OnState(ctx, s.State)
		}
	}
	if s.Frame != nil && l.Handler != nil {
		l.Handler.HandleFrame(ctx, s.Frame)
	}
	return nil
}
