package remote

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// wsStream turns the binary messages of a websocket into a byte stream.
type wsStream struct {
	conn *websocket.Conn
	buf  []byte
}

func (w *wsStream) Read(p []byte) (int, error) {
	for len(w.buf) == 0 {
		if err := websocket.Message.Receive(w.conn, &w.buf); err != nil {
			return 0, err
		}
	}
	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

func (w *wsStream) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(w.conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsStream) Close() error {
	return w.conn.Close()
}

// DialWebsocket connects to a Server published with WebsocketHandler.
func DialWebsocket(url, origin string) (*Backend, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(&wsStream{conn: conn}), nil
}

// WebsocketHandler serves s to websocket clients.
func (s *Server) WebsocketHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		ctx, cancel := context.WithCancel(conn.Request().Context())
		defer cancel()
		glog.Infof("remote: websocket client %s connected", conn.Request().RemoteAddr)
		err := s.Serve(ctx, &wsStream{conn: conn})
		glog.Infof("remote: websocket client %s disconnected: %v", conn.Request().RemoteAddr, err)
	})
}
