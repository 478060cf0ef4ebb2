// Package capabilities holds the per-connection Capabilities snapshot: a
// summary of what a connected peer has negotiated, populated by the
// telnet engine as sub-negotiations complete. It is read-only to the
// game and valid only after a Ready event.
package capabilities

// Protocol identifies the transport a connection arrived over.
type Protocol int

const (
	Telnet Protocol = iota
	WebSocket
)

func (p Protocol) String() string {
	if p == WebSocket {
		return "WebSocket"
	}
	return "Telnet"
}

// Color is the negotiated color depth.
type Color int

const (
	ColorNone Color = iota
	ColorAnsi
	ColorXterm
	ColorTrueColor
)

func (c Color) String() string {
	switch c {
	case ColorAnsi:
		return "Ansi"
	case ColorXterm:
		return "Xterm"
	case ColorTrueColor:
		return "TrueColor"
	default:
		return "None"
	}
}

// Capabilities is the summary record attached to each connection.
// Mutable only by the telnet engine.
type Capabilities struct {
	Protocol Protocol
	Color    Color

	UTF8            bool
	MXP             bool
	OOB             bool // any of GMCP/MSDP present
	MSDP            bool
	GMCP            bool
	MSSP            bool
	MTTS            bool
	NAWS            bool
	MCCP2           bool
	SGA             bool // default true
	Linemode        bool // default true
	ScreenReader    bool
	VT100           bool
	MouseTracking   bool
	OSCColorPalette bool
	MNES            bool
	Proxy           bool

	ClientName    string
	ClientVersion string
}

// New returns a Capabilities snapshot with the defaults spec.md requires:
// sga and linemode default true, everything else zero-valued.
func New(protocol Protocol) Capabilities {
	return Capabilities{
		Protocol: protocol,
		SGA:      true,
		Linemode: true,
	}
}
