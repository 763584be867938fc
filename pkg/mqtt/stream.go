package mqtt

import (
	"io"
	"sync"
)

// StreamBacklog is the number of received messages a Stream buffers.
const StreamBacklog = 64

// Stream is a byte stream over a pair of topics: writes are published to
// PubTopic and messages of SubTopic are read back in order.
type Stream struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	sub     *Subscription
	chunks  chan []byte
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

// NewStream subscribes sub and returns the Stream.
func NewStream(q *Queue, sub, pub string) *Stream {
	s := newStream(q, sub, pub)
	s.sub = q.Sub(sub, s.receive)
	return s
}

func newStream(q *Queue, sub, pub string) *Stream {
	return &Stream{
		Queue:    q,
		SubTopic: sub,
		PubTopic: pub,
		chunks:   make(chan []byte, StreamBacklog),
		closed:   make(chan struct{}),
	}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		select {
		case chunk := <-s.chunks:
			s.pending = chunk
		case <-s.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write implements io.Writer. It returns once the broker accepted p.
func (s *Stream) Write(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	token := s.Queue.PubWith(s.PubTopic, append([]byte(nil), p...), 1, false)
	if token.Wait() && token.Error() != nil {
		return 0, token.Error()
	}
	return len(p), nil
}

// Close implements io.Closer.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		if s.sub != nil {
			err = s.sub.Close()
		}
	})
	return err
}

func (s *Stream) receive(_ string, payload []byte) {
	select {
	case s.chunks <- append([]byte(nil), payload...):
	case <-s.closed:
	}
}
