// Package conn implements the transport-agnostic Connection shell:
// a per-connection owner of the inbound/outbound byte buffers, the
// telnet engine, and the inbound/outbound event deques, backed by one of
// four transport kinds (plain TCP, TLS TCP, plain WebSocket, TLS
// WebSocket).
package conn

import (
	"net"
	"sync"
	"time"

	"github.com/volundmush/mudlink/internal/capabilities"
	"github.com/volundmush/mudlink/internal/event"
	"github.com/volundmush/mudlink/internal/gwlog"
	"github.com/volundmush/mudlink/internal/telnet"
)

// Transport is the uniform surface conn.Connection drives regardless of
// which of the four backends (plain-stream, TLS-stream, plain-message-
// framed, TLS-message-framed) is underneath. For stream transports one
// ReadChunk call fills up to len(p) bytes from the socket; for message-
// framed transports one ReadChunk call returns bytes from at most one
// message, and a message longer than p is returned over successive calls.
type Transport interface {
	ReadChunk(p []byte) (int, error)
	WriteChunk(p []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// Registry is the subset of queue.Queue a Connection needs: something
// that purges it from the registry on teardown.
type Registry interface {
	Forget(id uint32)
}

const readChunkSize = 1024 // 1 KiB, per spec.md §4.4

// Connection owns the per-connection state: id, peer address, inbound
// and outbound byte buffers, the inbound/outbound event deques, the
// Capabilities snapshot, the active flag, and the protocol engine.
type Connection struct {
	ID       uint32
	Protocol capabilities.Protocol

	transport Transport
	engine    *telnet.Engine
	registry  Registry

	inboundBuf []byte

	mu          sync.Mutex // guards the deque ends and outboundBuf/isWriting
	outboundBuf []byte
	isWriting   bool
	inboundEvts []event.Inbound
	outboundQ   []event.Outbound

	closeOnce sync.Once
	closed    bool
}

// New constructs a Connection around an already-accepted transport. The
// caller still must call Start to kick off negotiation.
func New(id uint32, transport Transport, protocol capabilities.Protocol, deadline time.Duration, registry Registry) *Connection {
	c := &Connection{
		ID:        id,
		Protocol:  protocol,
		transport: transport,
		registry:  registry,
	}
	c.engine = telnet.NewEngine(c, protocol, deadline)
	return c
}

// Start arms the telnet engine and begins the read loop. It returns
// immediately; reads happen on a dedicated goroutine, the Go idiom for
// the single-threaded cooperative I/O reactor spec.md §5 describes (see
// DESIGN.md for the mapping between the two).
func (c *Connection) Start() {
	c.engine.Start()
	go c.readLoop()
}

func (c *Connection) readLoop() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.transport.ReadChunk(buf)
		if n > 0 {
			c.onReceive(buf[:n])
		}
		if err != nil {
			c.onTransportError(err)
			return
		}
	}
}

// onReceive appends freshly read bytes to the inbound buffer and drains
// the telnet engine over it.
func (c *Connection) onReceive(data []byte) {
	c.inboundBuf = append(c.inboundBuf, data...)
	c.engine.Process(&c.inboundBuf)
}

func (c *Connection) onTransportError(err error) {
	gwlog.Debug("conn %d: transport read ended: %v", c.ID, err)
	c.pushInbound(event.Inbound{Kind: event.Disconnect})
	c.teardown()
}

// --- telnet.Sink ---

// WriteOut appends wire bytes to the outbound buffer and flushes if no
// write is already in flight. The single-writer guard (isWriting)
// mirrors the teacher's TelnetConn.writeMu/is_writing pattern so
// overlapping writes never race on the transport.
func (c *Connection) WriteOut(p []byte) {
	c.mu.Lock()
	c.outboundBuf = append(c.outboundBuf, p...)
	if c.isWriting {
		c.mu.Unlock()
		return
	}
	c.isWriting = true
	out := c.outboundBuf
	c.outboundBuf = nil
	c.mu.Unlock()

	c.flush(out)
}

func (c *Connection) flush(p []byte) {
	for {
		if len(p) > 0 {
			if err := c.transport.WriteChunk(p); err != nil {
				gwlog.Debug("conn %d: write failed: %v", c.ID, err)
				c.mu.Lock()
				c.isWriting = false
				c.mu.Unlock()
				c.teardown()
				return
			}
		}

		c.mu.Lock()
		if len(c.outboundBuf) == 0 {
			c.isWriting = false
			c.mu.Unlock()
			return
		}
		p = c.outboundBuf
		c.outboundBuf = nil
		c.mu.Unlock()
	}
}

// EmitInbound pushes a game-facing event onto the inbound deque.
func (c *Connection) EmitInbound(ev event.Inbound) {
	c.pushInbound(ev)
}

func (c *Connection) pushInbound(ev event.Inbound) {
	c.mu.Lock()
	c.inboundEvts = append(c.inboundEvts, ev)
	c.mu.Unlock()
}

// Disconnect closes the transport. Called by the engine when it
// dispatches a game-originated Disconnected outbound event.
func (c *Connection) Disconnect() {
	c.teardown()
}

func (c *Connection) teardown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		_ = c.transport.Close()
		if c.registry != nil {
			c.registry.Forget(c.ID)
		}
	})
}

// --- game-facing surface ---

// Submit hands a game-originated outbound event to the engine. Called by
// queue.Queue.ProcessOutEvents as it drains a connection's outbound
// deque.
func (c *Connection) Submit(ev event.Outbound) {
	c.engine.Submit(ev)
}

// Send appends ev to this connection's outbound deque. Safe to call from
// the game thread at any time, active or not — per spec.md §3 these
// events are queued, never dropped or reordered, until the connection is
// ready to act on them.
func (c *Connection) Send(ev event.Outbound) {
	c.mu.Lock()
	c.outboundQ = append(c.outboundQ, ev)
	c.mu.Unlock()
}

// HasOutboundWork reports whether there are queued outbound events
// waiting to be processed.
func (c *Connection) HasOutboundWork() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outboundQ) > 0
}

// DrainOutbound pops every currently queued outbound event and submits
// each to the engine, preserving order. The engine itself gates on
// whether the connection is Ready: events submitted before Ready are
// parked by the engine and replayed in order at Ready (spec.md §3's
// pending-list invariant; see DESIGN.md for why one deque, gated by the
// engine's active flag, implements this without a second structure).
func (c *Connection) DrainOutbound() {
	c.mu.Lock()
	q := c.outboundQ
	c.outboundQ = nil
	c.mu.Unlock()

	for _, ev := range q {
		c.Submit(ev)
	}
}

// DrainInbound pops every currently queued inbound event, preserving
// order. Called by the game thread only.
func (c *Connection) DrainInbound() []event.Inbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.inboundEvts
	c.inboundEvts = nil
	return out
}

// Capabilities returns a read-only snapshot, valid only after Ready.
func (c *Connection) Capabilities() capabilities.Capabilities {
	return c.engine.Capabilities()
}

// Active reports whether the connection has reached Ready.
func (c *Connection) Active() bool {
	return c.engine.Active()
}

// RemoteAddr returns the peer's network address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.transport.RemoteAddr()
}

// Closed reports whether the transport has been torn down.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
