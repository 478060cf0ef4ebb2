package telnet

import (
	"bytes"
	"testing"
)

func TestParseIncremental(t *testing.T) {
	xs := []byte{65, 66, IAC, WILL, OptSGA, 67, IAC, IAC, 68}

	whole := drain(t, append([]byte(nil), xs...))

	// Feed one byte at a time through a growing buffer and compare.
	var acc []byte
	var piecewise []Message
	for _, b := range xs {
		acc = append(acc, b)
		for {
			msg, n, ok := Parse(acc)
			if !ok {
				break
			}
			piecewise = append(piecewise, msg)
			acc = acc[n:]
		}
	}

	// Parse emits buffered data bytes as soon as it sees them, so feeding
	// byte by byte splits a data run that arrives whole; compare the two
	// streams with adjacent Data messages merged.
	whole = coalesceData(whole)
	piecewise = coalesceData(piecewise)

	if len(whole) != len(piecewise) {
		t.Fatalf("message count differs: whole=%d piecewise=%d", len(whole), len(piecewise))
	}
	for i := range whole {
		if whole[i].Kind != piecewise[i].Kind || !bytes.Equal(whole[i].Data, piecewise[i].Data) ||
			whole[i].Option != piecewise[i].Option || whole[i].Extra != piecewise[i].Extra {
			t.Fatalf("message %d differs: whole=%+v piecewise=%+v", i, whole[i], piecewise[i])
		}
	}
}

// coalesceData merges each run of adjacent KindData messages into one.
func coalesceData(msgs []Message) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Kind == KindData && len(out) > 0 && out[len(out)-1].Kind == KindData {
			last := &out[len(out)-1]
			last.Data = append(append([]byte(nil), last.Data...), m.Data...)
			continue
		}
		out = append(out, m)
	}
	return out
}

func drain(t *testing.T, buf []byte) []Message {
	t.Helper()
	var out []Message
	for {
		msg, n, ok := Parse(buf)
		if !ok {
			break
		}
		out = append(out, msg)
		buf = buf[n:]
	}
	return out
}

func TestParseRoundTrip(t *testing.T) {
	cases := []Message{
		{Kind: KindData, Data: []byte("hello")},
		{Kind: KindCommand, Option: NOP},
		{Kind: KindNegotiation, Option: WILL, Extra: OptSGA},
		{Kind: KindSubNegotiation, Option: OptGMCP, Data: []byte("Core.Hello {}")},
	}
	for _, m := range cases {
		wire := Serialize(m)
		got, n, ok := Parse(wire)
		if !ok {
			t.Fatalf("parse of serialized %+v returned None", m)
		}
		if n != len(wire) {
			t.Fatalf("expected to consume all %d bytes, consumed %d", len(wire), n)
		}
		if got.Kind != m.Kind || got.Option != m.Option || got.Extra != m.Extra || !bytes.Equal(got.Data, m.Data) {
			t.Fatalf("round trip mismatch: want %+v got %+v", m, got)
		}
	}
}

func TestParseIACEscape(t *testing.T) {
	msg, n, ok := Parse([]byte{IAC, IAC})
	if !ok || n != 2 || msg.Kind != KindData || !bytes.Equal(msg.Data, []byte{IAC}) {
		t.Fatalf("IAC IAC should parse as Data([IAC]); got %+v n=%d ok=%v", msg, n, ok)
	}

	buf := []byte{IAC, SB, 70, IAC, IAC, IAC, SE}
	msg, n, ok = Parse(buf)
	if !ok {
		t.Fatal("expected sub-negotiation with embedded escaped IAC to parse")
	}
	if n != len(buf) {
		t.Fatalf("expected to consume all 7 bytes, consumed %d", n)
	}
	if msg.Kind != KindSubNegotiation || msg.Option != 70 || !bytes.Equal(msg.Data, []byte{IAC, IAC}) {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseTruncation(t *testing.T) {
	cases := [][]byte{
		{IAC},
		{IAC, WILL},
		{IAC, SB, 1, 0x41, 0x42},
	}
	for _, buf := range cases {
		_, n, ok := Parse(buf)
		if ok || n != 0 {
			t.Fatalf("expected None/0 for truncated input %v, got n=%d ok=%v", buf, n, ok)
		}
	}
}

func TestParseDataUpToIAC(t *testing.T) {
	buf := []byte("hi" + string([]byte{IAC, WILL, OptSGA}))
	msg, n, ok := Parse(buf)
	if !ok || n != 2 || msg.Kind != KindData || string(msg.Data) != "hi" {
		t.Fatalf("unexpected: %+v n=%d ok=%v", msg, n, ok)
	}
}
