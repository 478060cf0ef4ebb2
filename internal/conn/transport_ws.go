package conn

import (
	"context"
	"net"
	"net/http"

	"github.com/coder/websocket"
)

// WSTransport wraps a coder/websocket connection as a Transport. Each
// ReadChunk call returns bytes from one WebSocket message; a message
// longer than p is kept in pending and returned over the following
// calls. Writes go out as binary frames, one frame per WriteChunk.
// TLS WebSocket is the identical type: the upgrade happened over an
// *http.Server already serving TLS, so there is nothing transport-level
// left to distinguish once the handshake is done.
type WSTransport struct {
	conn       *websocket.Conn
	ctx        context.Context
	remoteAddr net.Addr
	pending    []byte
}

// wsAddr adapts a bare remote-address string (as carried on
// *http.Request.RemoteAddr) to net.Addr.
type wsAddr string

func (a wsAddr) Network() string { return "ws" }
func (a wsAddr) String() string  { return string(a) }

// AcceptWS upgrades an HTTP request to a WebSocket connection. ctx
// governs the lifetime of every subsequent read/write; callers
// typically pass r.Context() here.
func AcceptWS(w http.ResponseWriter, r *http.Request, opts *websocket.AcceptOptions) (*WSTransport, error) {
	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, err
	}
	return &WSTransport{
		conn:       c,
		ctx:        r.Context(),
		remoteAddr: wsAddr(r.RemoteAddr),
	}, nil
}

func (t *WSTransport) ReadChunk(p []byte) (int, error) {
	if len(t.pending) > 0 {
		n := copy(p, t.pending)
		t.pending = t.pending[n:]
		return n, nil
	}
	_, data, err := t.conn.Read(t.ctx)
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n < len(data) {
		t.pending = append([]byte(nil), data[n:]...)
	}
	return n, nil
}

func (t *WSTransport) WriteChunk(p []byte) error {
	return t.conn.Write(t.ctx, websocket.MessageBinary, p)
}

func (t *WSTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "connection closed")
}

func (t *WSTransport) RemoteAddr() net.Addr {
	return t.remoteAddr
}
