package remote

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/nv.go/pkg/link"
	"github.com/robotalks/nv.go/pkg/nv"
)

// DefaultPollInterval is how often a Server checks a busy medium.
const DefaultPollInterval = time.Millisecond

// Server exposes a local medium to remote Backends. Requests from all
// connections are serialized.
type Server struct {
	PollInterval time.Duration

	media nv.Backend
	lock  sync.Mutex
}

// NewServer creates a Server for m.
func NewServer(m nv.Backend) *Server {
	return &Server{PollInterval: DefaultPollInterval, media: m}
}

// Serve answers requests on conn until ctx is done or conn fails.
func (s *Server) Serve(ctx context.Context, conn io.ReadWriter) error {
	return link.NewResponder(link.New(conn), s.Handle).Run(ctx)
}

// ListenAndServe accepts connections from ln until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		glog.Infof("remote: client %s connected", conn.RemoteAddr())
		go func() {
			defer conn.Close()
			connCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				<-connCtx.Done()
				conn.Close()
			}()
			err := s.Serve(connCtx, conn)
			glog.Infof("remote: client %s disconnected: %v", conn.RemoteAddr(), err)
		}()
	}
}

// Handle implements link.ServeFunc.
func (s *Server) Handle(ctx context.Context, op byte, data []byte) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch op {
	case OpInit:
		if len(data) != 4 {
			return nil, &link.CommandError{Code: CodeRequest}
		}
		return nil, s.check(s.media.Init(int(binary.LittleEndian.Uint32(data))))
	case OpRead:
		return s.read(ctx, data)
	case OpWrite:
		return nil, s.write(ctx, data)
	case OpSync:
		return nil, s.sync(ctx)
	case OpValid:
		if v, ok := s.media.(nv.Validator); ok && !v.Valid() {
			return []byte{0}, nil
		}
		return []byte{1}, nil
	}
	return nil, &link.CommandError{Code: CodeRequest}
}

func (s *Server) check(err error) error {
	if err == nil {
		return nil
	}
	return &link.CommandError{Code: codeOf(err)}
}

func (s *Server) idle(ctx context.Context) error {
	for s.media.Busy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.PollInterval):
		}
	}
	return nil
}

func (s *Server) read(ctx context.Context, data []byte) ([]byte, error) {
	addr, rest, err := decodeAddr(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 1 || rest[0] == 0 || int(rest[0]) > MaxRead {
		return nil, &link.CommandError{Code: CodeRequest}
	}
	if err := s.idle(ctx); err != nil {
		return nil, err
	}
	out := make([]byte, rest[0])
	for n := range out {
		if out[n], err = s.media.ReadFromStorage(addr + n); err != nil {
			return nil, s.check(err)
		}
	}
	return out, nil
}

func (s *Server) write(ctx context.Context, data []byte) error {
	addr, rest, err := decodeAddr(data)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return &link.CommandError{Code: CodeRequest}
	}
	for n, b := range rest {
		if err := s.idle(ctx); err != nil {
			return err
		}
		if err := s.media.WriteToStorage(addr+n, b); err != nil {
			return s.check(err)
		}
		if c, ok := s.media.(nv.Completer); ok {
			if err := s.idle(ctx); err != nil {
				return err
			}
			if err := c.Completed(); err != nil {
				return s.check(err)
			}
		}
	}
	return nil
}

func (s *Server) sync(ctx context.Context) error {
	sy, ok := s.media.(nv.Syncer)
	if !ok {
		return nil
	}
	if err := s.idle(ctx); err != nil {
		return err
	}
	if err := sy.Sync(); err != nil {
		return s.check(err)
	}
	return s.idle(ctx)
}
