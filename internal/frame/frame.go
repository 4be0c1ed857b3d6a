package frame

import (
	"fmt"

	"github.com/radio-control/rhal/internal/phy"
)

// Frame is one over-the-air IEEE 802.15.4 packet. The PSDU is backed by a
// fixed array so copying a Frame by value copies the payload with it.
type Frame struct {
	psdu [phy.MaxPHYPacketSize]byte

	// Length is the PSDU length in octets (0..127).
	Length uint8

	// Channel used to transmit or receive the frame.
	Channel phy.Channel

	// Power is the transmit/receive power in dBm.
	Power int8

	// LQI is the link quality indicator for received frames;
	// phy.NoLQI when the transceiver does not measure it.
	LQI uint8

	// SecurityValid is true only if the Security Enabled flag was set on
	// the frame and security validation passed.
	SecurityValid bool
}

// PSDU returns the populated portion of the payload buffer.
func (f *Frame) PSDU() []byte {
	return f.psdu[:f.Length]
}

// Buffer returns the full payload buffer regardless of Length.
func (f *Frame) Buffer() []byte {
	return f.psdu[:]
}

// SetPSDU copies b into the payload buffer and updates Length.
func (f *Frame) SetPSDU(b []byte) error {
	if len(b) > phy.MaxPHYPacketSize {
		return fmt.Errorf("psdu length %d exceeds max PHY packet size %d", len(b), phy.MaxPHYPacketSize)
	}
	copy(f.psdu[:], b)
	f.Length = uint8(len(b))
	return nil
}

// ValidateForTransmit checks the frame parameters against the PHY ranges
// and the transceiver's reported power limits.
func (f *Frame) ValidateForTransmit(minPowerDbm, maxPowerDbm int8) error {
	if !f.Channel.Valid() {
		return fmt.Errorf("channel %d outside [%d, %d]", f.Channel, phy.MinChannel, phy.MaxChannel)
	}
	if f.Length == 0 || f.Length > phy.MaxPHYPacketSize {
		return fmt.Errorf("psdu length %d outside [1, %d]", f.Length, phy.MaxPHYPacketSize)
	}
	if f.Power < minPowerDbm || f.Power > maxPowerDbm {
		return fmt.Errorf("power %d dBm outside [%d, %d]", f.Power, minPowerDbm, maxPowerDbm)
	}
	return nil
}

// Reset clears the frame metadata. The payload bytes are left in place;
// Length gates what is visible through PSDU.
func (f *Frame) Reset() {
	f.Length = 0
	f.LQI = phy.NoLQI
	f.SecurityValid = false
}
