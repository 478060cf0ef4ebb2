package conn

import (
	"crypto/tls"
	"net"
)

// TCPTransport wraps a plain net.Conn (TCP or any stream socket) as a
// byte-stream Transport. TLS TCP uses the identical type wrapping a
// *tls.Conn, since *tls.Conn satisfies net.Conn.
type TCPTransport struct {
	conn net.Conn
}

// NewTCPTransport wraps an already-accepted plain TCP connection.
func NewTCPTransport(c net.Conn) *TCPTransport {
	return &TCPTransport{conn: c}
}

// NewTLSTCPTransport wraps an already-accepted connection in a server-side
// TLS handshake using cfg, then returns the transport once the handshake
// completes. The handshake is performed eagerly so a transport error
// during negotiation surfaces before the read loop starts.
func NewTLSTCPTransport(c net.Conn, cfg *tls.Config) (*TCPTransport, error) {
	tlsConn := tls.Server(c, cfg)
	if err := tlsConn.Handshake(); err != nil {
		_ = tlsConn.Close()
		return nil, err
	}
	return &TCPTransport{conn: tlsConn}, nil
}

func (t *TCPTransport) ReadChunk(p []byte) (int, error) {
	return t.conn.Read(p)
}

func (t *TCPTransport) WriteChunk(p []byte) error {
	_, err := t.conn.Write(p)
	return err
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func (t *TCPTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
