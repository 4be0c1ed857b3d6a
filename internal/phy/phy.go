package phy

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// PHY parameters for the 2.4 GHz O-QPSK PHY (IEEE 802.15.4-2006).
const (
	// MaxPHYPacketSize is aMaxPHYPacketSize: the largest PSDU in octets.
	MaxPHYPacketSize = 127

	// MinChannel and MaxChannel bound the 2.4 GHz channel page.
	MinChannel Channel = 11
	MaxChannel Channel = 26

	SymbolsPerOctet = 2
	BitRateKbps     = 250000
	BitsPerOctet    = 8

	// MicrosPerSymbol is the symbol period in microseconds.
	MicrosPerSymbol = ((BitsPerOctet / SymbolsPerOctet) * 1000000) / BitRateKbps

	// NoLQI is reported when the transceiver does not measure link quality.
	NoLQI uint8 = 0

	// InvalidRSSI is the sentinel for an invalid noise-floor measurement.
	// It lies outside the valid RSSI range [-127, 126] and upper layers
	// test for it exactly.
	InvalidRSSI int8 = 127
)

// Channel is a 2.4 GHz IEEE 802.15.4 channel number.
type Channel uint8

// Valid reports whether the channel is within the 2.4 GHz channel page.
func (c Channel) Valid() bool {
	return c >= MinChannel && c <= MaxChannel
}

// PanID is an IEEE 802.15.4 Personal Area Network identifier.
type PanID uint16

// ShortAddress is an IEEE 802.15.4 16-bit short address.
type ShortAddress uint16

// ExtAddress is an IEEE 802.15.4 64-bit extended address.
type ExtAddress [8]byte

// String renders the extended address as 16 lowercase hex digits.
func (a ExtAddress) String() string {
	return hex.EncodeToString(a[:])
}

// ParseExtAddress parses a 16-hex-digit extended address, with or
// without separating colons.
func ParseExtAddress(s string) (ExtAddress, error) {
	var addr ExtAddress
	cleaned := strings.ReplaceAll(s, ":", "")
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return addr, fmt.Errorf("invalid extended address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid extended address %q: need %d bytes, got %d", s, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}
