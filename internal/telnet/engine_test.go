package telnet

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/volundmush/mudlink/internal/capabilities"
	"github.com/volundmush/mudlink/internal/event"
)

// fakeSink is a Sink recording everything the engine does, for tests.
type fakeSink struct {
	mu           sync.Mutex
	out          bytes.Buffer
	inbound      []event.Inbound
	disconnected bool
}

func (f *fakeSink) WriteOut(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out.Write(p)
}

func (f *fakeSink) EmitInbound(ev event.Inbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, ev)
}

func (f *fakeSink) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeSink) events() []event.Inbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Inbound(nil), f.inbound...)
}

func (f *fakeSink) wire() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.out.Bytes()...)
}

func TestEngineStartSendsStartLocalNegotiations(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, capabilities.Telnet, time.Hour)
	e.Start()

	wire := sink.wire()
	for _, c := range StartLocalOptions() {
		want := []byte{IAC, WILL, c}
		if !bytes.Contains(wire, want) {
			t.Errorf("expected IAC WILL %d in outbound bytes", c)
		}
		if !e.handshakes.HasLocal(c) {
			t.Errorf("expected %d to be registered in handshakes.local", c)
		}
	}
}

func TestUnsupportedOptionRefused(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, capabilities.Telnet, time.Hour)
	e.Start()
	sink.out.Reset()

	buf := []byte{IAC, WILL, 77}
	e.Process(&buf)

	if len(buf) != 0 {
		t.Fatalf("expected all bytes consumed, got %d left", len(buf))
	}
	if !bytes.Equal(sink.wire(), []byte{IAC, DONT, 77}) {
		t.Fatalf("expected IAC DONT 77, got %v", sink.wire())
	}
	if _, ok := e.states[77]; ok {
		t.Fatal("unsupported option must not get a state table entry")
	}
}

func TestSGAHandshakeCompletes(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, capabilities.Telnet, time.Hour)
	e.Start()

	buf := []byte{IAC, DO, OptSGA}
	e.Process(&buf)

	st := e.states[OptSGA]
	if !st.Local.Enabled {
		t.Fatal("expected SGA local.enabled true")
	}
	if e.handshakes.HasLocal(OptSGA) {
		t.Fatal("expected SGA removed from handshakes.local")
	}
}

func TestUnsolicitedWillRepliesOnce(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, capabilities.Telnet, time.Hour)
	e.Start()
	sink.out.Reset()

	buf := []byte{IAC, WILL, OptMXP}
	e.Process(&buf)
	// MXP is in `supported` but not in supportRemote, so it must be refused.
	if !bytes.Equal(sink.wire(), []byte{IAC, DONT, OptMXP}) {
		t.Fatalf("expected MXP to be refused via DONT, got %v", sink.wire())
	}
}

func TestReadyExactlyOnceAndOrderPreserved(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, capabilities.Telnet, time.Hour)
	e.Start()

	e.Submit(event.Outbound{Kind: event.Command, Command: "one"})
	e.Submit(event.Outbound{Kind: event.Command, Command: "two"})

	if e.Active() {
		t.Fatal("engine should not be active before handshake completes")
	}

	sink.out.Reset()
	// Answer everything outstanding.
	for _, c := range StartLocalOptions() {
		buf := []byte{IAC, DO, c}
		e.Process(&buf)
	}
	for _, c := range StartRemoteOptions() {
		buf := []byte{IAC, WILL, c}
		e.Process(&buf)
	}

	if !e.Active() {
		t.Fatal("expected engine to be active once handshake is empty")
	}

	readyCount := 0
	for _, ev := range sink.events() {
		if ev.Kind == event.Ready {
			readyCount++
		}
	}
	if readyCount != 1 {
		t.Fatalf("expected exactly one Ready event, got %d", readyCount)
	}

	wire := sink.wire()
	if !bytes.Contains(wire, []byte("one\r\n")) || !bytes.Contains(wire, []byte("two\r\n")) {
		t.Fatalf("expected both pending commands flushed to wire in order, got %q", wire)
	}
	if bytes.Index(wire, []byte("one\r\n")) > bytes.Index(wire, []byte("two\r\n")) {
		t.Fatal("pending outbound events were reordered")
	}

	// A second deadline firing must be a no-op.
	e.onDeadline()
	readyCount = 0
	for _, ev := range sink.events() {
		if ev.Kind == event.Ready {
			readyCount++
		}
	}
	if readyCount != 1 {
		t.Fatalf("expected Ready still emitted exactly once after a second finishReady, got %d", readyCount)
	}
}

func TestDeadlineFallback(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, capabilities.Telnet, 10*time.Millisecond)
	e.Start()

	deadline := time.Now().Add(time.Second)
	for !e.Active() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !e.Active() {
		t.Fatal("expected deadline to force ready")
	}
}

func TestEscapedIACInDataProducesLine(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, capabilities.Telnet, time.Hour)
	e.Start()

	buf := []byte{'A', IAC, IAC, 'B', '\n'}
	e.Process(&buf)

	var lines []string
	for _, ev := range sink.events() {
		if ev.Kind == event.Line {
			lines = append(lines, ev.Line)
		}
	}
	if len(lines) != 1 || lines[0] != "A\xffB" {
		t.Fatalf("expected one line \"A\\xffB\", got %v", lines)
	}
}

func TestGMCPSubNegotiationDropsWhenNotEnabled(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink, capabilities.Telnet, time.Hour)
	e.Start()

	// Text split around a GMCP sub-negotiation, GMCP never enabled.
	buf := []byte{'X'}
	buf = append(buf, Serialize(Message{Kind: KindSubNegotiation, Option: OptGMCP, Data: []byte(`{"a":1}`)})...)
	buf = append(buf, 'Y', '\n')
	e.Process(&buf)

	var lines []string
	var oobs int
	for _, ev := range sink.events() {
		if ev.Kind == event.Line {
			lines = append(lines, ev.Line)
		}
		if ev.Kind == event.OobData {
			oobs++
		}
	}
	if len(lines) != 1 || lines[0] != "XY" {
		t.Fatalf("expected concatenated line \"XY\", got %v", lines)
	}
	if oobs != 0 {
		t.Fatalf("expected no OobData event when GMCP isn't enabled, got %d", oobs)
	}
}
