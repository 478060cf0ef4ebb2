// Package queue implements the Connection Queue: the thread-safe registry
// that owns every live connection, allocates monotonic connection ids,
// and gives the host game a single place to drain inbound events and
// push outbound ones.
package queue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/volundmush/mudlink/internal/capabilities"
	"github.com/volundmush/mudlink/internal/conn"
	"github.com/volundmush/mudlink/internal/event"
)

// Queue is a registry of live connections keyed by a monotonic 32-bit
// id, grounded on the lowest-free-slot-then-counter-fallback allocator
// the teacher used for SSH node ids. A gateway has no fixed node-slot
// ceiling, so Queue always uses the monotonic counter; the slot-reuse
// half of the teacher's allocator doesn't apply here and is dropped (see
// DESIGN.md).
type Queue struct {
	mu      sync.RWMutex
	conns   map[uint32]*conn.Connection
	counter uint32
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{conns: make(map[uint32]*conn.Connection)}
}

// nextID returns the next unused monotonic id. Ids are never reused
// within a process lifetime.
func (q *Queue) nextID() uint32 {
	return atomic.AddUint32(&q.counter, 1)
}

// Register allocates a new id, builds a Connection around transport, and
// starts it. The Queue itself is passed as the Connection's Registry so
// the connection removes itself on teardown.
func (q *Queue) Register(transport conn.Transport, protocol capabilities.Protocol, deadline time.Duration) *conn.Connection {
	id := q.nextID()
	c := conn.New(id, transport, protocol, deadline, q)

	q.mu.Lock()
	q.conns[id] = c
	q.mu.Unlock()

	c.Start()
	return c
}

// Forget removes a connection from the registry. Connection.teardown
// calls this exactly once per connection; it satisfies conn.Registry.
func (q *Queue) Forget(id uint32) {
	q.mu.Lock()
	delete(q.conns, id)
	q.mu.Unlock()
}

// Get looks up a connection by id.
func (q *Queue) Get(id uint32) (*conn.Connection, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	c, ok := q.conns[id]
	return c, ok
}

// Len reports the number of currently registered connections.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.conns)
}

// Each calls fn once for every connection registered at the time of the
// call. It iterates over a snapshot and calls fn without holding the
// registry lock, so fn may register or forget connections.
func (q *Queue) Each(fn func(id uint32, c *conn.Connection)) {
	q.mu.RLock()
	snapshot := make([]*conn.Connection, 0, len(q.conns))
	for _, c := range q.conns {
		snapshot = append(snapshot, c)
	}
	q.mu.RUnlock()

	for _, c := range snapshot {
		fn(c.ID, c)
	}
}

// Send appends an outbound event to connection id's queue. Returns false
// if no such connection is registered (already disconnected, or never
// existed — both are silently ignored by the game per spec.md §4.5).
func (q *Queue) Send(id uint32, ev event.Outbound) bool {
	c, ok := q.Get(id)
	if !ok {
		return false
	}
	c.Send(ev)
	return true
}

// ProcessOutEvents drains every connection's outbound deque into its
// engine; the order across connections is unspecified (map iteration
// order), while each connection's own events stay in order. The host
// game calls this once per tick after queuing whatever outbound events
// it produced during
// that tick; it is the Go analogue of the teacher's single dispatch pass
// over pending writes per server loop iteration.
func (q *Queue) ProcessOutEvents() {
	q.Each(func(_ uint32, c *conn.Connection) {
		if c.HasOutboundWork() {
			c.DrainOutbound()
		}
	})
}

// DrainInbound collects every queued inbound event from every
// connection, tagged with the originating connection id, preserving
// per-connection order (but not imposing any order across connections).
func (q *Queue) DrainInbound() map[uint32][]event.Inbound {
	out := make(map[uint32][]event.Inbound)
	q.Each(func(id uint32, c *conn.Connection) {
		if evs := c.DrainInbound(); len(evs) > 0 {
			out[id] = evs
		}
	})
	return out
}
