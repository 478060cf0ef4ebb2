package telnet

import "bytes"

// Kind tags the four shapes a parsed telnet message can take.
type Kind int

const (
	// KindData carries an application payload, with any IAC IAC already
	// decoded to a single IAC byte.
	KindData Kind = iota
	// KindCommand carries a bare IAC <cmd> for cmd not in
	// {WILL,WONT,DO,DONT,SB}.
	KindCommand
	// KindNegotiation carries IAC <WILL|WONT|DO|DONT> <opt>.
	KindNegotiation
	// KindSubNegotiation carries IAC SB <opt> ... IAC SE.
	KindSubNegotiation
)

// Message is the parser's tagged-variant output. Field meaning depends on
// Kind:
//
//	KindData:           Data is the payload.
//	KindCommand:        Option is the command byte.
//	KindNegotiation:     Option is the verb (WILL/WONT/DO/DONT), Extra is the option code.
//	KindSubNegotiation:  Option is the sub-negotiated option code, Data is the payload.
type Message struct {
	Kind   Kind
	Option byte
	Extra  byte
	Data   []byte
}

// Parse attempts to frame one message off the head of buf. It returns the
// message and the number of bytes comprising it when successful (ok ==
// true); otherwise it returns ok == false and the caller must wait for
// more bytes. Parse never mutates or consumes buf itself — the caller
// re-slices using the returned count. Parse is pure and re-entrant: it
// holds no state across calls.
func Parse(buf []byte) (msg Message, n int, ok bool) {
	if len(buf) == 0 {
		return Message{}, 0, false
	}

	if buf[0] != IAC {
		idx := bytes.IndexByte(buf, IAC)
		if idx < 0 {
			idx = len(buf)
		}
		return Message{Kind: KindData, Data: buf[:idx]}, idx, true
	}

	if len(buf) < 2 {
		return Message{}, 0, false
	}

	b1 := buf[1]
	if b1 == IAC {
		return Message{Kind: KindData, Data: buf[1:2]}, 2, true
	}

	if isVerb(b1) {
		if len(buf) < 3 {
			return Message{}, 0, false
		}
		return Message{Kind: KindNegotiation, Option: b1, Extra: buf[2]}, 3, true
	}

	if b1 == SB {
		if len(buf) < 5 {
			return Message{}, 0, false
		}
		opt := buf[2]
		// Scan for an unescaped IAC SE starting at the first payload byte.
		for i := 3; i+1 < len(buf); i++ {
			if buf[i] != IAC {
				continue
			}
			if buf[i+1] == SE {
				payload := buf[3:i]
				return Message{Kind: KindSubNegotiation, Option: opt, Data: payload}, i + 2, true
			}
			if buf[i+1] == IAC {
				i++ // escaped IAC IAC inside the payload, not a terminator
				continue
			}
			// Any other byte following an embedded IAC inside a
			// sub-negotiation is not something this parser expects to
			// see (the original stream only escapes IAC via IAC IAC
			// inside SB payloads); treat it like an ordinary payload
			// byte and keep scanning.
		}
		return Message{}, 0, false
	}

	// Any other bare IAC <cmd>.
	return Message{Kind: KindCommand, Option: b1}, 2, true
}

// Serialize renders a Message back to its wire form. Used both to
// generate outbound negotiations/sub-negotiations and in parser
// round-trip tests.
func Serialize(m Message) []byte {
	switch m.Kind {
	case KindData:
		out := make([]byte, 0, len(m.Data))
		for _, b := range m.Data {
			out = append(out, b)
			if b == IAC {
				out = append(out, IAC)
			}
		}
		return out
	case KindCommand:
		return []byte{IAC, m.Option}
	case KindNegotiation:
		return []byte{IAC, m.Option, m.Extra}
	case KindSubNegotiation:
		out := make([]byte, 0, len(m.Data)+5)
		out = append(out, IAC, SB, m.Option)
		out = append(out, m.Data...)
		out = append(out, IAC, SE)
		return out
	}
	return nil
}

// EscapeIAC doubles every IAC byte in p, for writing raw data payloads to
// the wire.
func EscapeIAC(p []byte) []byte {
	if bytes.IndexByte(p, IAC) < 0 {
		return p
	}
	out := make([]byte, 0, len(p))
	for _, b := range p {
		out = append(out, b)
		if b == IAC {
			out = append(out, IAC)
		}
	}
	return out
}

// UnescapeIAC collapses IAC IAC pairs to a single IAC. Sub-negotiation
// payloads arrive from Parse with escapes preserved (per the wire
// spec); option handlers that interpret payload content call this first.
func UnescapeIAC(p []byte) []byte {
	if bytes.IndexByte(p, IAC) < 0 {
		return p
	}
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		out = append(out, p[i])
		if p[i] == IAC && i+1 < len(p) && p[i+1] == IAC {
			i++
		}
	}
	return out
}
