package link

import (
	"context"
	"errors"

	"github.com/golang/glog"
)

// ServeFunc handles one request and returns the reply data. Returning a
// *CommandError replies with its code, any other error with CodeInternal.
type ServeFunc func(ctx context.Context, code byte, data []byte) ([]byte, error)

// CodeInternal is replied for errors which are not a *CommandError.
const CodeInternal byte = 0x0e

// Responder answers the requests received on a Link.
type Responder struct {
	link  *Link
	serve ServeFunc
}

// NewResponder takes over the Handler of l.
func NewResponder(l *Link, serve ServeFunc) *Responder {
	r := &Responder{link: l, serve: serve}
	l.Handler = r
	return r
}

// Run implements framework.Runnable.
func (r *Responder) Run(ctx context.Context) error { return r.link.Run(ctx) }

// Notify sends an event to the peer.
func (r *Responder) Notify(code byte, data []byte) error {
	return r.link.Send(&Frame{Code: code | CodeEvent, Data: data})
}

// HandleFrame implements Handler.
func (r *Responder) HandleFrame(ctx context.Context, f *Frame) {
	if f.IsEvent() {
		return
	}
	code := f.Code
	data, err := r.serve(ctx, f.Code, f.Data)
	if err != nil {
		var ce *CommandError
		if errors.As(err, &ce) {
			code = ce.Code | CodeError
		} else {
			code = CodeInternal | CodeError
		}
		glog.V(2).Infof("link: request %#02x failed: %v", f.Code, err)
		data = nil
	}
	reply := &Frame{Code: code, Data: append([]byte{byte(f.Seq)}, data...)}
	if err := r.link.Send(reply); err != nil {
		glog.Warningf("link: reply to %d: %v", f.Seq, err)
	}
}
