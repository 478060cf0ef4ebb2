// Package event defines the two event queues that connect a connection
// to the host game: inbound events flow from a connection toward the
// game, outbound events flow from the game toward a connection.
package event

import "github.com/volundmush/mudlink/internal/capabilities"

// InboundKind tags the shape of an Inbound event.
type InboundKind int

const (
	Line InboundKind = iota
	Text
	Prompt
	OobData
	MSSP
	Disconnect

	// Ready and CapabilitiesUpdate are carried on the inbound path even
	// though the original enum they were distilled from (ToMudEvent)
	// lists them alongside outbound-looking tags; see DESIGN.md for why
	// this spec resolves the ambiguity this way.
	Ready
	CapabilitiesUpdate
)

// Inbound is one event flowing from a connection to the game.
type Inbound struct {
	Kind InboundKind

	// Line, Text, Prompt: the line content.
	Line string

	// OobData: the out-of-band channel name ("GMCP" or "MSDP") and its
	// raw, unescaped payload. Content parsing is out of scope (spec.md
	// §1) — the game interprets Payload itself.
	OobName    string
	OobPayload []byte

	// MSSP: key/value pairs. Payload encoding is out of scope (spec.md
	// §1); this is always empty in the current implementation and
	// exists so a future MSSP content decoder has somewhere to put
	// results without changing the event shape.
	MSSPData map[string]string

	// Ready, CapabilitiesUpdate: the capabilities snapshot at the time
	// of the event.
	Capabilities capabilities.Capabilities
}

// OutboundKind tags the shape of an Outbound event.
type OutboundKind int

const (
	Command OutboundKind = iota
	OOB
	StatusReq
	Update
	Disconnected
)

// Outbound is one event flowing from the game to a connection.
type Outbound struct {
	Kind OutboundKind

	// Command: the line to send, without terminator.
	Command string

	// OOB: the payload to send over the negotiated OOB channel (GMCP
	// preferred, else MSDP). OobName is advisory only — the wire
	// channel is chosen by what the peer actually negotiated.
	OobName    string
	OobPayload []byte

	// Update: a capabilities delta the game wants echoed back to
	// itself. Per spec.md this may be left a no-op; this implementation
	// treats it as exactly that (see DESIGN.md).
	Capabilities capabilities.Capabilities
}
