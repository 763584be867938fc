package remote

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/nv.go/pkg/link"
	"github.com/robotalks/nv.go/pkg/nv/media"
)

// DefaultTimeout bounds the blocking requests: Init, reads and Valid.
const DefaultTimeout = 500 * time.Millisecond

// Backend implements nv.Backend by forwarding to a Server. Writes and
// syncs are asynchronous: the backend stays busy until the peer replies.
type Backend struct {
	Timeout time.Duration

	conn   io.ReadWriter
	client *link.Client
	cancel context.CancelFunc
	done   chan error

	call    *link.Call
	syncing bool
	result  error
	syncErr error
}

// New starts a Backend over conn.
func New(conn io.ReadWriter) *Backend {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		Timeout: DefaultTimeout,
		conn:    conn,
		client:  link.NewClient(link.New(conn)),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() {
		err := b.client.Run(ctx)
		if err != nil && err != context.Canceled {
			glog.Errorf("remote: link stopped: %v", err)
		}
		b.done <- err
	}()
	return b
}

// Dial connects to a Server over a stream network such as tcp or unix.
func Dial(network, addr string) (*Backend, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

func (b *Backend) do(op byte, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.Timeout)
	defer cancel()
	if err := b.client.WaitReady(ctx); err != nil {
		return nil, err
	}
	reply, err := b.client.Do(ctx, op, data)
	if err != nil {
		return nil, errorOf(err)
	}
	return reply, nil
}

// Init implements nv.Backend.
func (b *Backend) Init(size int) error {
	var data [4]byte
	binary.LittleEndian.PutUint32(data[:], uint32(size))
	_, err := b.do(OpInit, data[:])
	return err
}

// Busy implements nv.Backend.
func (b *Backend) Busy() bool {
	if b.call == nil {
		return false
	}
	select {
	case r := <-b.call.Done():
		b.settle(r)
		return false
	default:
		return true
	}
}

func (b *Backend) settle(r link.Reply) {
	err := errorOf(r.Err)
	if b.syncing {
		if err != nil {
			glog.Warningf("remote: sync failed: %v", err)
			b.syncErr = err
		}
	} else {
		b.result = err
	}
	b.call, b.syncing = nil, false
}

// Completed implements nv.Completer.
func (b *Backend) Completed() error { return b.result }

// ReadFromStorage implements nv.Backend.
func (b *Backend) ReadFromStorage(i int) (byte, error) {
	data, err := b.do(OpRead, encodeAddr(i, 1))
	if err != nil {
		return 0, err
	}
	if len(data) != 1 {
		return 0, ErrRequest
	}
	return data[0], nil
}

// MaxRange implements nv.RangeReader.
func (b *Backend) MaxRange() int { return MaxRead }

// ReadRange implements nv.RangeReader: count bytes starting at i are read
// in one request.
func (b *Backend) ReadRange(i, count int) ([]byte, error) {
	if count <= 0 || count > MaxRead {
		return nil, ErrRequest
	}
	return b.do(OpRead, encodeAddr(i, byte(count)))
}

// WriteToStorage implements nv.Backend.
func (b *Backend) WriteToStorage(i int, v byte) error {
	if b.Busy() {
		return media.ErrBusy
	}
	b.call = b.client.Go(OpWrite, encodeAddr(i, v))
	return nil
}

// SyncCompleted implements nv.SyncCompleter. It reports and clears the
// outcome of the last sync.
func (b *Backend) SyncCompleted() error {
	err := b.syncErr
	b.syncErr = nil
	return err
}

// Sync implements nv.Syncer. A failed sync not collected by SyncCompleted
// is reported by the next call.
func (b *Backend) Sync() error {
	if b.Busy() {
		return media.ErrBusy
	}
	if err := b.syncErr; err != nil {
		b.syncErr = nil
		return err
	}
	b.call, b.syncing = b.client.Go(OpSync, nil), true
	return nil
}

// Valid implements nv.Validator.
func (b *Backend) Valid() bool {
	data, err := b.do(OpValid, nil)
	if err != nil {
		glog.Warningf("remote: valid: %v", err)
		return false
	}
	return len(data) == 1 && data[0] != 0
}

// Close stops the link and closes the connection if it can be closed.
func (b *Backend) Close() error {
	b.cancel()
	var err error
	if c, ok := b.conn.(io.Closer); ok {
		err = c.Close()
	}
	<-b.done
	return err
}
