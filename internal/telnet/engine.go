package telnet

import (
	"sync"
	"time"

	"github.com/volundmush/mudlink/internal/capabilities"
	"github.com/volundmush/mudlink/internal/event"
	"github.com/volundmush/mudlink/internal/gwlog"
)

// DefaultDeadline is the handshake safety net from spec.md §4.3. It can
// be overridden per Engine (and, in practice, per Listener).
const DefaultDeadline = 500 * time.Millisecond

// Sink is the engine's view of its owning Connection: a place to push
// wire bytes and game-facing events, and a way to ask the connection to
// tear itself down. Connection implements this; tests use a fake.
type Sink interface {
	WriteOut(p []byte)
	EmitInbound(ev event.Inbound)
	Disconnect()
}

// Engine is the per-connection TELNET orchestrator: it owns the parser
// (stateless, called directly), the option state table, the handshake
// tracker, the line buffer, and the deadline timer. It is the data-driven
// design spec.md's design notes call for — one state table keyed by
// option code, plus a small set of enable/disable hooks — rather than a
// class-per-option hierarchy.
type Engine struct {
	mu sync.Mutex

	sink     Sink
	deadline time.Duration
	timer    *time.Timer

	caps       capabilities.Capabilities
	states     map[byte]*OptionState
	handshakes *HandshakeTracker

	lineBuf []byte
	pending []event.Outbound

	active  bool
	changed bool
	started bool
}

// NewEngine constructs an Engine for a freshly-accepted connection of the
// given protocol. deadline <= 0 uses DefaultDeadline.
func NewEngine(sink Sink, protocol capabilities.Protocol, deadline time.Duration) *Engine {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Engine{
		sink:       sink,
		deadline:   deadline,
		caps:       capabilities.New(protocol),
		states:     make(map[byte]*OptionState),
		handshakes: NewHandshakeTracker(),
	}
}

// Capabilities returns a snapshot of the current capabilities.
func (e *Engine) Capabilities() capabilities.Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caps
}

// Active reports whether the connection has reached Ready.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Start initializes state-table entries for every supported option,
// proactively negotiates start_local/start_remote, and arms the
// handshake deadline.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	for _, c := range SupportedOptions() {
		e.states[c] = &OptionState{}
	}

	for _, c := range StartLocalOptions() {
		st := e.states[c]
		st.Local.Negotiating = true
		e.handshakes.RegisterLocal(c)
		e.sink.WriteOut([]byte{IAC, WILL, c})
	}

	for _, c := range StartRemoteOptions() {
		st := e.states[c]
		st.Remote.Negotiating = true
		e.handshakes.RegisterRemote(c)
		e.sink.WriteOut([]byte{IAC, DO, c})
	}

	e.timer = time.AfterFunc(e.deadline, e.onDeadline)
}

func (e *Engine) onDeadline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishReadyLocked()
}

// Process drains the parser over *buf until it returns no message,
// dispatching each framed message and re-slicing *buf to the unconsumed
// suffix as it goes.
func (e *Engine) Process(buf *[]byte) {
	for {
		msg, n, ok := Parse(*buf)
		if !ok {
			return
		}
		*buf = (*buf)[n:]

		e.mu.Lock()
		e.handleMessage(msg)
		e.mu.Unlock()
	}
}

// handleMessage is called with e.mu held.
func (e *Engine) handleMessage(msg Message) {
	switch msg.Kind {
	case KindData:
		e.handleDataLocked(msg.Data)
	case KindNegotiation:
		e.handleNegotiationLocked(msg.Option, msg.Extra)
	case KindSubNegotiation:
		e.handleSubNegotiationLocked(msg.Option, msg.Data)
	case KindCommand:
		// NOP/GA and friends: consumed silently, no hook in spec.md.
	}

	if e.active {
		if e.changed {
			e.changed = false
			e.sink.EmitInbound(event.Inbound{Kind: event.CapabilitiesUpdate, Capabilities: e.caps})
		}
	} else if e.handshakes.Empty() {
		e.finishReadyLocked()
	}
}

func (e *Engine) handleDataLocked(data []byte) {
	e.lineBuf = append(e.lineBuf, data...)
	for {
		idx := indexByte(e.lineBuf, '\n')
		if idx < 0 {
			return
		}
		line := trimASCIISpace(e.lineBuf[:idx+1])
		e.lineBuf = e.lineBuf[idx+1:]
		if len(line) > 0 {
			e.sink.EmitInbound(event.Inbound{Kind: event.Line, Line: string(line)})
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func trimASCIISpace(b []byte) []byte {
	start := 0
	for start < len(b) && isASCIISpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isASCIISpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	}
	return false
}

// handleNegotiationLocked implements the per-option negotiation handler
// of spec.md §4.3.
func (e *Engine) handleNegotiationLocked(verb, opt byte) {
	if !Supported(opt) {
		switch verb {
		case WILL:
			e.sink.WriteOut([]byte{IAC, DONT, opt})
		case DO:
			e.sink.WriteOut([]byte{IAC, WONT, opt})
		}
		return
	}

	st := e.states[opt]
	if st == nil {
		st = &OptionState{}
		e.states[opt] = st
	}

	switch verb {
	case WILL:
		if !SupportsRemote(opt) {
			e.sink.WriteOut([]byte{IAC, DONT, opt})
			return
		}
		if st.Remote.Negotiating {
			st.Remote.Negotiating = false
			if !st.Remote.Enabled {
				st.Remote.Enabled = true
				e.enableRemote(opt)
			}
			e.markAnsweredRemote(opt, st)
		} else {
			st.Remote.Enabled = true
			e.sink.WriteOut([]byte{IAC, DO, opt})
			e.enableRemote(opt)
			e.markAnsweredRemote(opt, st)
		}

	case DO:
		if !SupportsLocal(opt) {
			e.sink.WriteOut([]byte{IAC, WONT, opt})
			return
		}
		if st.Local.Negotiating {
			st.Local.Negotiating = false
			if !st.Local.Enabled {
				st.Local.Enabled = true
				e.enableLocal(opt)
			}
			e.markAnsweredLocal(opt, st)
		} else {
			st.Local.Enabled = true
			e.sink.WriteOut([]byte{IAC, WILL, opt})
			e.enableLocal(opt)
			e.markAnsweredLocal(opt, st)
		}

	case WONT:
		if st.Remote.Enabled {
			st.Remote.Enabled = false
			e.disableRemote(opt)
		}
		if st.Remote.Negotiating {
			st.Remote.Negotiating = false
			e.markAnsweredRemote(opt, st)
		}

	case DONT:
		if st.Local.Enabled {
			st.Local.Enabled = false
			e.disableLocal(opt)
		}
		if st.Local.Negotiating {
			st.Local.Negotiating = false
			e.markAnsweredLocal(opt, st)
		}
	}
}

func (e *Engine) markAnsweredRemote(opt byte, st *OptionState) {
	if st.Remote.Answered {
		return
	}
	st.Remote.Answered = true
	e.handshakes.CompleteRemote(opt)
}

func (e *Engine) markAnsweredLocal(opt byte, st *OptionState) {
	if st.Local.Answered {
		return
	}
	st.Local.Answered = true
	e.handshakes.CompleteLocal(opt)
}

func (e *Engine) handleSubNegotiationLocked(opt byte, payload []byte) {
	if !Supported(opt) {
		return
	}
	switch opt {
	case OptNAWS:
		e.handleNAWSLocked(payload)
	case OptMTTS:
		e.handleMTTSLocked(payload)
	case OptGMCP:
		if e.caps.GMCP {
			e.emitOobLocked("GMCP", payload)
		}
	case OptMSDP:
		if e.caps.MSDP {
			e.emitOobLocked("MSDP", payload)
		}
	case OptMSSP:
		e.handleMSSPLocked(payload)
	}
}

func (e *Engine) emitOobLocked(name string, payload []byte) {
	e.sink.EmitInbound(event.Inbound{
		Kind:       event.OobData,
		OobName:    name,
		OobPayload: UnescapeIAC(payload),
	})
}

// handleNAWSLocked validates a window-size sub-negotiation. Window
// dimensions are not part of Capabilities (spec.md §3 does not list
// them), so beyond validating the payload shape this is a no-op; it
// exists as the hook a future size-aware renderer would extend.
func (e *Engine) handleNAWSLocked(payload []byte) {
	if len(payload) < 4 {
		return
	}
}

// handleMTTSLocked records the client's terminal-type string from a
// TTYPE IS sub-negotiation. MTTS cycle semantics beyond the first
// identifying string are explicitly out of scope (spec.md §1).
func (e *Engine) handleMTTSLocked(payload []byte) {
	if len(payload) < 1 || payload[0] != TTypeIS {
		return
	}
	name := string(trimASCIISpace(payload[1:]))
	if name == "" {
		return
	}
	e.caps.ClientName = lower(name)
	if e.caps.Color == capabilities.ColorNone {
		e.caps.Color = capabilities.ColorAnsi
	}
	e.changed = true
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// handleMSSPLocked is defensive only: MSSP is ordinarily server-
// initiated, so an inbound MSSP sub-negotiation from the peer is
// unusual. Payload encoding is out of scope (spec.md §1); this records
// only that one arrived.
func (e *Engine) handleMSSPLocked(payload []byte) {
	e.sink.EmitInbound(event.Inbound{Kind: event.MSSP, MSSPData: map[string]string{}})
}

func (e *Engine) enableRemote(opt byte) {
	e.setCapForOption(opt, true)
}

func (e *Engine) disableRemote(opt byte) {
	e.setCapForOption(opt, false)
}

func (e *Engine) enableLocal(opt byte) {
	e.setCapForOption(opt, true)
}

func (e *Engine) disableLocal(opt byte) {
	e.setCapForOption(opt, false)
}

func (e *Engine) setCapForOption(opt byte, on bool) {
	switch opt {
	case OptSGA:
		e.caps.SGA = on
	case OptNAWS:
		e.caps.NAWS = on
	case OptMTTS:
		e.caps.MTTS = on
	case OptLinemode:
		e.caps.Linemode = on
	case OptMSSP:
		e.caps.MSSP = on
	case OptGMCP:
		e.caps.GMCP = on
		e.recomputeOOB()
	case OptMSDP:
		e.caps.MSDP = on
		e.recomputeOOB()
	case OptMXP:
		e.caps.MXP = on
	}
	e.changed = true
}

func (e *Engine) recomputeOOB() {
	e.caps.OOB = e.caps.GMCP || e.caps.MSDP
}

// finishReadyLocked is the Ready transition of spec.md §4.3: idempotent,
// drains any outbound events parked before Ready in order, then emits a
// Ready inbound event.
func (e *Engine) finishReadyLocked() {
	if e.active {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.active = true

	pending := e.pending
	e.pending = nil
	for _, ev := range pending {
		e.dispatchLocked(ev)
	}

	e.sink.EmitInbound(event.Inbound{Kind: event.Ready, Capabilities: e.caps})
}

// Submit handles one game-originated outbound event. Before Ready these
// are parked (in order); after Ready they take the fast path straight to
// dispatch.
func (e *Engine) Submit(ev event.Outbound) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		e.pending = append(e.pending, ev)
		return
	}
	e.dispatchLocked(ev)
}

func (e *Engine) dispatchLocked(ev event.Outbound) {
	switch ev.Kind {
	case event.Command:
		out := append([]byte(nil), EscapeIAC([]byte(ev.Command))...)
		out = append(out, '\r', '\n')
		e.sink.WriteOut(out)

	case event.OOB:
		var opt byte
		switch {
		case e.caps.GMCP:
			opt = OptGMCP
		case e.caps.MSDP:
			opt = OptMSDP
		default:
			gwlog.Debug("telnet: OOB outbound dropped, no OOB channel negotiated")
			return
		}
		e.sink.WriteOut(Serialize(Message{Kind: KindSubNegotiation, Option: opt, Data: EscapeIAC(ev.OobPayload)}))

	case event.StatusReq:
		if e.caps.MSSP {
			e.sink.WriteOut(Serialize(Message{Kind: KindSubNegotiation, Option: OptMSSP}))
		}

	case event.Update:
		// Per spec.md's open question, the game may submit its own
		// capabilities echo; the engine does not act on it, since the
		// authoritative echo is the CapabilitiesUpdate inbound event
		// the engine itself emits when changed is set.

	case event.Disconnected:
		e.sink.Disconnect()
	}
}
