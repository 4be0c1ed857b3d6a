package uart

import (
	"bufio"
	"fmt"
	"io"
)

// Framing: SOF, length of (type + payload), type, payload, FCS.
// FCS is the XOR of the type byte and every payload byte.
const sof = 0x7E

// Command opcodes (host to NCP).
const (
	cmdInit       = 0x01
	cmdPowerOn    = 0x02
	cmdPowerOff   = 0x03
	cmdSleep      = 0x04
	cmdIdle       = 0x05
	cmdReceive    = 0x06 // payload: channel
	cmdTransmit   = 0x07 // payload: channel, power, psdu
	cmdSetPanID   = 0x08 // payload: pan id, little endian
	cmdSetShort   = 0x09 // payload: short address, little endian
	cmdSetExt     = 0x0A // payload: 8-byte extended address
	cmdNoiseFloor = 0x0B
)

// Response opcodes (NCP to host, one per command).
const (
	respOK    = 0x80
	respErr   = 0x81 // payload: status code
	respCaps  = 0x82 // payload: flags le32, min power, max power
	respNoise = 0x83 // payload: rssi as int8
)

// Notification opcodes (NCP to host, unsolicited).
const (
	ntfRxDone = 0x90 // payload: status, lqi, security flag, psdu
	ntfTxDone = 0x91 // payload: status, frame-pending flag
)

// NCP status codes carried by respErr and completion notifications.
const (
	statusOK            = 0x00
	statusHardwareFault = 0x01
	statusInvalidChan   = 0x02
	statusInvalidPower  = 0x03
	statusFrameTooLong  = 0x04
	statusNotReady      = 0x05
	statusNoAck         = 0x06
	statusChannelAccess = 0x07
	statusAbort         = 0x08
)

// statusError maps an NCP status code to a vendor error whose token the
// "ncp" normalization table understands.
func statusError(code byte) error {
	switch code {
	case statusOK:
		return nil
	case statusHardwareFault:
		return fmt.Errorf("HARDWARE_FAULT: ncp status 0x%02x", code)
	case statusInvalidChan:
		return fmt.Errorf("CHANNEL_OUT_OF_RANGE: ncp status 0x%02x", code)
	case statusInvalidPower:
		return fmt.Errorf("INVALID_POWER_LEVEL: ncp status 0x%02x", code)
	case statusFrameTooLong:
		return fmt.Errorf("FRAME_TOO_LONG: ncp status 0x%02x", code)
	case statusNotReady:
		return fmt.Errorf("NOT_READY: ncp status 0x%02x", code)
	default:
		return fmt.Errorf("HARDWARE_FAULT: unknown ncp status 0x%02x", code)
	}
}

// wireFrame is one decoded link frame.
type wireFrame struct {
	Type    byte
	Payload []byte
}

// isNotification reports whether the frame is unsolicited.
func (f wireFrame) isNotification() bool {
	return f.Type == ntfRxDone || f.Type == ntfTxDone
}

// fcs computes the frame check over type and payload.
func fcs(typ byte, payload []byte) byte {
	sum := typ
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// encodeFrame serializes a link frame.
func encodeFrame(typ byte, payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+4)
	buf = append(buf, sof, byte(1+len(payload)), typ)
	buf = append(buf, payload...)
	buf = append(buf, fcs(typ, payload))
	return buf
}

// decodeFrame reads the next well-formed link frame, skipping noise
// between frames.
func decodeFrame(br *bufio.Reader) (wireFrame, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return wireFrame{}, err
		}
		if b != sof {
			continue
		}

		length, err := br.ReadByte()
		if err != nil {
			return wireFrame{}, err
		}
		if length == 0 {
			continue
		}

		body := make([]byte, int(length)+1) // type + payload + fcs
		if _, err := io.ReadFull(br, body); err != nil {
			return wireFrame{}, err
		}

		typ := body[0]
		payload := body[1 : length]
		if fcs(typ, payload) != body[length] {
			// Corrupt frame; resynchronize on the next SOF.
			continue
		}

		return wireFrame{Type: typ, Payload: payload}, nil
	}
}
