package telnet

// Perspective is one side's view of an option: whether the peer has
// agreed to it, whether we have an outstanding request the peer hasn't
// answered, and whether handshake completion has already been recorded
// for it (so the tracker is notified exactly once).
type Perspective struct {
	Enabled     bool
	Negotiating bool
	Answered    bool
}

// OptionState pairs the local perspective (this end runs the option: we
// WILL, peer DOes) with the remote perspective (peer runs the option: we
// DO, peer WILLs).
type OptionState struct {
	Local  Perspective
	Remote Perspective
}

// HandshakeTracker bookkeeps which option negotiations are still open —
// i.e. awaiting a peer reply. The tracker is Empty iff all three sets are
// empty; Empty driving the engine's ready transition.
type HandshakeTracker struct {
	local   map[byte]struct{}
	remote  map[byte]struct{}
	special map[byte]struct{}
}

// NewHandshakeTracker returns an empty tracker.
func NewHandshakeTracker() *HandshakeTracker {
	return &HandshakeTracker{
		local:   make(map[byte]struct{}),
		remote:  make(map[byte]struct{}),
		special: make(map[byte]struct{}),
	}
}

// RegisterLocal records that we expect a DO/DONT reply for c.
func (h *HandshakeTracker) RegisterLocal(c byte) { h.local[c] = struct{}{} }

// RegisterRemote records that we expect a WILL/WONT reply for c.
func (h *HandshakeTracker) RegisterRemote(c byte) { h.remote[c] = struct{}{} }

// RegisterSpecial records an option awaiting an additional post-
// negotiation round trip (e.g. TTYPE cycling).
func (h *HandshakeTracker) RegisterSpecial(c byte) { h.special[c] = struct{}{} }

// CompleteLocal removes c from the local set. It reports whether c was
// present, so callers can enforce "removed exactly once".
func (h *HandshakeTracker) CompleteLocal(c byte) bool { return remove(h.local, c) }

// CompleteRemote removes c from the remote set.
func (h *HandshakeTracker) CompleteRemote(c byte) bool { return remove(h.remote, c) }

// CompleteSpecial removes c from the special set.
func (h *HandshakeTracker) CompleteSpecial(c byte) bool { return remove(h.special, c) }

// Empty reports whether all three sets are empty.
func (h *HandshakeTracker) Empty() bool {
	return len(h.local) == 0 && len(h.remote) == 0 && len(h.special) == 0
}

// HasLocal reports whether c is an outstanding local expectation (used by
// tests and diagnostics).
func (h *HandshakeTracker) HasLocal(c byte) bool { _, ok := h.local[c]; return ok }

// HasRemote reports whether c is an outstanding remote expectation.
func (h *HandshakeTracker) HasRemote(c byte) bool { _, ok := h.remote[c]; return ok }

func remove(set map[byte]struct{}, c byte) bool {
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	return true
}

// Option sets from the specification's data model. These are package-level
// since they describe the protocol, not any one connection's state.
var (
	supported = optionSet(OptSGA, OptNAWS, OptMTTS, OptMXP, OptMSSP, OptMCCP2, OptMCCP3, OptGMCP, OptMSDP, OptLinemode, OptEOR)

	startLocal = optionSet(OptSGA, OptMSSP, OptGMCP, OptMSDP, OptEOR)

	startRemote = optionSet(OptNAWS, OptMTTS, OptLinemode)

	// supportLocal mirrors startLocal in this protocol: the set of
	// options we are willing to run locally is exactly the set we
	// proactively offer.
	supportLocal = startLocal

	supportRemote = optionSet(OptSGA, OptNAWS, OptMTTS, OptMSSP, OptGMCP, OptMSDP, OptLinemode, OptEOR)
)

func optionSet(codes ...byte) map[byte]bool {
	m := make(map[byte]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m
}

// Supported reports whether c is in the supported option set.
func Supported(c byte) bool { return supported[c] }

// SupportsLocal reports whether we are willing to run option c locally.
func SupportsLocal(c byte) bool { return supportLocal[c] }

// SupportsRemote reports whether we accept the peer running option c.
func SupportsRemote(c byte) bool { return supportRemote[c] }

// StartLocalOptions returns the options we proactively WILL at start.
func StartLocalOptions() []byte { return sortedKeys(startLocal) }

// StartRemoteOptions returns the options we proactively DO at start.
func StartRemoteOptions() []byte { return sortedKeys(startRemote) }

// SupportedOptions returns every option code the state table initializes
// entries for at start.
func SupportedOptions() []byte { return sortedKeys(supported) }

func sortedKeys(m map[byte]bool) []byte {
	out := make([]byte, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// Small, fixed-size sets; simple insertion sort keeps this
	// allocation-free and deterministic for tests without pulling in
	// sort for eleven elements.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
