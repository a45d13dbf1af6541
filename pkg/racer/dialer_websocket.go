package racer

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer dials through an RTSP-over-WebSocket tunnel (the
// ONVIF "rtsp.onvif.org" subprotocol), for deployments that only
// expose RTSP behind an HTTP(S) reverse proxy. It satisfies Dialer, so
// a Racer can race it exactly like a plain TCP dialer.
type WebSocketDialer struct {
	// TLSConfig selects wss:// over ws:// when non-nil.
	TLSConfig *tls.Config

	// Inner dials the underlying TCP connection the WebSocket
	// handshake runs over; nil uses net.Dialer's default behavior.
	Inner func(ctx context.Context, network, address string) (net.Conn, error)
}

// DialContext implements Dialer. network is ignored; RTSP-over-WebSocket
// tunnels always run over TCP.
func (d *WebSocketDialer) DialContext(ctx context.Context, _ string, addr string) (net.Conn, error) {
	scheme := "ws"
	if d.TLSConfig != nil {
		scheme = "wss"
	}
	url := scheme + "://" + addr + "/"

	wconn, _, err := (&websocket.Dialer{
		NetDialContext:  d.Inner,
		TLSClientConfig: d.TLSConfig,
		Subprotocols:    []string{"rtsp.onvif.org"},
	}).DialContext(ctx, url, nil) //nolint:bodyclose // closed via wsTunnelConn.Close
	if err != nil {
		return nil, err
	}

	return &wsTunnelConn{
		wconn: wconn,
		r:     &wsReader{wc: wconn},
		w:     &wsWriter{wc: wconn},
	}, nil
}

// wsTunnelConn adapts a websocket.Conn carrying binary RTSP frames to
// net.Conn, so it can flow through the same conn/transport layers as a
// raw TCP socket.
type wsTunnelConn struct {
	wconn *websocket.Conn
	r     io.Reader
	w     io.Writer
}

func (c *wsTunnelConn) Read(b []byte) (int, error)  { return c.r.Read(b) }
func (c *wsTunnelConn) Write(b []byte) (int, error) { return c.w.Write(b) }
func (c *wsTunnelConn) Close() error                { return c.wconn.Close() }
func (c *wsTunnelConn) LocalAddr() net.Addr         { return c.wconn.LocalAddr() }
func (c *wsTunnelConn) RemoteAddr() net.Addr        { return c.wconn.RemoteAddr() }

// SetDeadline is a no-op: gorilla/websocket exposes read and write
// deadlines separately, not a combined one.
func (c *wsTunnelConn) SetDeadline(_ time.Time) error { return nil }

func (c *wsTunnelConn) SetReadDeadline(t time.Time) error  { return c.wconn.SetReadDeadline(t) }
func (c *wsTunnelConn) SetWriteDeadline(t time.Time) error { return c.wconn.SetWriteDeadline(t) }

// wsReader flattens a websocket.Conn's message framing into a plain
// byte stream, buffering the tail of a message that didn't fully fit
// the caller's read.
type wsReader struct {
	wc  *websocket.Conn
	buf []byte
}

func (r *wsReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		msgType, buf, err := r.wc.ReadMessage()
		if err != nil {
			return 0, err
		}
		if msgType != websocket.BinaryMessage {
			return 0, fmt.Errorf("unexpected websocket message type %v", msgType)
		}
		r.buf = buf
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// wsWriter sends each Write as one binary WebSocket message, guarding
// against concurrent writers since gorilla/websocket forbids them.
type wsWriter struct {
	wc    *websocket.Conn
	mutex sync.Mutex
}

func (w *wsWriter) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.wc.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
