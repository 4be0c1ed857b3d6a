package adapter

import (
	"context"

	"github.com/radio-control/rhal/internal/frame"
	"github.com/radio-control/rhal/internal/phy"
)

// Capabilities describes what the underlying transceiver can do. Flags is
// queried once at Init and never changes afterwards; the power limits bound
// the Power field of transmit frames.
type Capabilities struct {
	Flags       phy.Caps `json:"flags"`
	MinPowerDbm int8     `json:"minPowerDbm"`
	MaxPowerDbm int8     `json:"maxPowerDbm"`
}

// RxStatus is the outcome of a receive sequence.
type RxStatus int

const (
	// RxSuccess means a complete frame was captured.
	RxSuccess RxStatus = iota

	// RxAbort means reception failed before a full frame was captured;
	// the frame contents are undefined and must not be consumed.
	RxAbort
)

func (s RxStatus) String() string {
	switch s {
	case RxSuccess:
		return "SUCCESS"
	case RxAbort:
		return "ABORT"
	default:
		return "INVALID"
	}
}

// TxStatus is the outcome of a transmit sequence. The four values are
// mutually exclusive and exhaustive; drivers must not invent a fifth
// silent failure mode.
type TxStatus int

const (
	// TxSuccess means the frame was transmitted (and acknowledged, if an
	// ACK was requested).
	TxSuccess TxStatus = iota

	// TxNoAck means the frame was transmitted but no ACK was received.
	TxNoAck

	// TxChannelAccessFailure means the medium was busy and the
	// transmission never occurred.
	TxChannelAccessFailure

	// TxAbort means the transmission was aborted for any other reason.
	TxAbort
)

func (s TxStatus) String() string {
	switch s {
	case TxSuccess:
		return "SUCCESS"
	case TxNoAck:
		return "NO_ACK"
	case TxChannelAccessFailure:
		return "CHANNEL_ACCESS_FAILURE"
	case TxAbort:
		return "ABORT"
	default:
		return "INVALID"
	}
}

// EventHandler receives asynchronous completions from the driver. Calls
// may race with application calls into the radio; the handler is expected
// to serialize internally.
type EventHandler interface {
	// ReceiveDone delivers a received frame. The frame is only valid for
	// the duration of the call; implementations that queue it must copy.
	// On RxAbort the frame contents are undefined.
	ReceiveDone(f *frame.Frame, status RxStatus)

	// TransmitDone reports the end of a transmit sequence. framePending
	// is true if an ACK with the frame-pending bit set was received.
	TransmitDone(framePending bool, status TxStatus)
}

// ITransceiver is the hardware-facing driver capability consumed by the
// radio core.
type ITransceiver interface {
	// Init performs one-time hardware bring-up. It must be called before
	// any other method; failure is fatal, there is no recovery path.
	Init(ctx context.Context) error

	// Capabilities returns the capability set. Valid after Init;
	// immutable afterwards.
	Capabilities() Capabilities

	// Vendor names the error normalization table for this driver's
	// error messages. See VendorErrorMappings.
	Vendor() string

	// Attach registers the completion handler. Must be called before the
	// first ArmReceive or Transmit.
	Attach(h EventHandler)

	// PowerOn brings the transceiver out of the disabled state so it can
	// idle. PowerOff and Sleep enter the corresponding power states;
	// Idle returns from sleep.
	PowerOn(ctx context.Context) error
	PowerOff(ctx context.Context) error
	Sleep(ctx context.Context) error
	Idle(ctx context.Context) error

	// ArmReceive arms reception on the given channel. Completion is
	// reported via EventHandler.ReceiveDone.
	ArmReceive(ctx context.Context, ch phy.Channel) error

	// Transmit starts sending psdu on the given channel at the given
	// power. Completion is reported via EventHandler.TransmitDone.
	Transmit(ctx context.Context, psdu []byte, ch phy.Channel, power int8) error

	// NoiseFloor returns the most recent RSSI measurement in dBm, or
	// phy.InvalidRSSI when no valid measurement exists.
	NoiseFloor() int8

	// Address filter configuration. Each setter is atomic-or-nothing:
	// on failure the previous filter value remains in effect.
	SetPanID(ctx context.Context, id phy.PanID) error
	SetShortAddress(ctx context.Context, addr phy.ShortAddress) error
	SetExtendedAddress(ctx context.Context, addr phy.ExtAddress) error

	// Close releases driver resources.
	Close() error
}
