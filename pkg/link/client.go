package link

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Reply is the outcome of a Call.
type Reply struct {
	Err  error
	Code byte
	Data []byte
}

// Call is a request waiting for its reply.
type Call struct {
	seq  Seq
	done chan Reply
	next *Call
}

// Seq is the sequence of the request frame.
func (c *Call) Seq() Seq { return c.seq }

// Done delivers the reply exactly once.
func (c *Call) Done() <-chan Reply { return c.done }

// Wait blocks for the reply or ctx.
func (c *Call) Wait(ctx context.Context) Reply {
	select {
	case r := <-c.done:
		return r
	case <-ctx.Done():
		return Reply{Err: ctx.Err()}
	}
}

// Client issues requests over a Link and matches the replies.
type Client struct {
	link   *Link
	events chan *Frame

	lock       sync.Mutex
	head, tail *Call
	ready      chan struct{}
}

// EventBacklog is the number of unread events kept by a Client.
const EventBacklog = 16

// NewClient takes over the Handler and OnState of l.
func NewClient(l *Link) *Client {
	c := &Client{
		link:   l,
		events: make(chan *Frame, EventBacklog),
		ready:  make(chan struct{}),
	}
	l.Handler = c
	l.OnState = c.stateChanged
	return c
}

// Link returns the underlying link.
func (c *Client) Link() *Link { return c.link }

// Events delivers unsolicited frames from the peer.
func (c *Client) Events() <-chan *Frame { return c.events }

// Run implements framework.Runnable.
func (c *Client) Run(ctx context.Context) error { return c.link.Run(ctx) }

// WaitReady blocks until the link is synced.
func (c *Client) WaitReady(ctx context.Context) error {
	c.lock.Lock()
	ready := c.ready
	c.lock.Unlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) stateChanged(ctx context.Context, state State) {
	c.lock.Lock()
	defer c.lock.Unlock()
	select {
	case <-c.ready:
		if !state.Ready() {
			c.ready = make(chan struct{})
			c.failAll(ErrReset)
		}
	default:
		if state.Ready() {
			close(c.ready)
		}
	}
}

func (c *Client) failAll(err error) {
	for call := c.head; call != nil; call = call.next {
		call.done <- Reply{Err: err}
	}
	c.head, c.tail = nil, nil
}

// Go sends a request and returns without waiting for the reply.
func (c *Client) Go(code byte, data []byte) *Call {
	call := &Call{done: make(chan Reply, 1)}
	f := &Frame{Code: code &^ CodeEvent, Data: data}

	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.link.Send(f); err != nil {
		call.done <- Reply{Err: err}
		return call
	}
	call.seq = f.Seq
	if c.tail == nil {
		c.head = call
	} else {
		c.tail.next = call
	}
	c.tail = call
	return call
}

// Do sends a request and waits for the reply data.
func (c *Client) Do(ctx context.Context, code byte, data []byte) ([]byte, error) {
	r := c.Go(code, data).Wait(ctx)
	return r.Data, r.Err
}

// HandleFrame implements Handler.
func (c *Client) HandleFrame(ctx context.Context, f *Frame) {
	if f.IsEvent() {
		select {
		case c.events <- f:
		default:
			glog.Warningf("link: event %#02x dropped", f.Code)
		}
		return
	}
	if len(f.Data) == 0 || !Seq(f.Data[0]).Valid() {
		glog.V(2).Infof("link: malformed reply %#02x", f.Code)
		return
	}
	seq := Seq(f.Data[0])

	c.lock.Lock()
	var call *Call
	for call = c.head; call != nil && call.seq != seq; call = call.next {
	}
	if call == nil {
		c.lock.Unlock()
		glog.V(2).Infof("link: reply to unknown request %d", seq)
		return
	}
	// requests sent before the answered one will never be answered
	for c.head != call {
		c.head.done <- Reply{Err: ErrNoReply}
		c.head = c.head.next
	}
	if c.head = call.next; c.head == nil {
		c.tail = nil
	}
	c.lock.Unlock()

	if f.Code&CodeError != 0 {
		call.done <- Reply{Err: &CommandError{Code: f.Code &^ CodeError}}
		return
	}
	call.done <- Reply{Code: f.Code, Data: f.Data[1:]}
}
