package phy

import "strings"

// Caps is the radio capability bit-set. It is queried once during radio
// initialization and treated as immutable for the process lifetime; the
// upper stack adapts its behavior to the reported flags.
type Caps uint32

const (
	// CapNone reports no optional capabilities.
	CapNone Caps = 0

	// CapAckTimeout is set when the transceiver enforces the ACK wait
	// duration in hardware. Without it the upper stack must run its own
	// ACK timeout.
	CapAckTimeout Caps = 1 << 0
)

// HasAckTimeout reports whether hardware ACK-timeout is supported.
func (c Caps) HasAckTimeout() bool {
	return c&CapAckTimeout != 0
}

// Has reports whether all flags in mask are set.
func (c Caps) Has(mask Caps) bool {
	return c&mask == mask
}

func (c Caps) String() string {
	if c == CapNone {
		return "none"
	}
	var names []string
	if c.HasAckTimeout() {
		names = append(names, "ack-timeout")
	}
	if rest := c &^ CapAckTimeout; rest != 0 {
		names = append(names, "unknown")
	}
	return strings.Join(names, "|")
}
