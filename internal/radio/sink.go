package radio

import (
	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/frame"
)

// ReceiveResult is delivered exactly once per successful Receive request.
// The Frame is a value copy and stays valid after delivery; on RxAbort its
// contents are undefined and must not be consumed.
type ReceiveResult struct {
	Frame  frame.Frame
	Status adapter.RxStatus
}

// TransmitResult is delivered exactly once per successful Transmit
// request. FramePending is true if an ACK with the frame-pending bit set
// was received.
type TransmitResult struct {
	FramePending bool
	Status       adapter.TxStatus
}

// CompletionSink receives asynchronous completions from the radio.
// Delivery order matches request order; a completion always follows the
// request that triggered it.
type CompletionSink interface {
	ReceiveDone(res ReceiveResult)
	TransmitDone(res TransmitResult)
}

// ChannelSink is a CompletionSink backed by buffered channels. Consumers
// must drain both channels; delivery blocks when a buffer is full so that
// no completion is ever dropped.
type ChannelSink struct {
	rx chan ReceiveResult
	tx chan TransmitResult
}

// NewChannelSink creates a ChannelSink buffering up to depth completions
// per direction.
func NewChannelSink(depth int) *ChannelSink {
	if depth < 1 {
		depth = 1
	}
	return &ChannelSink{
		rx: make(chan ReceiveResult, depth),
		tx: make(chan TransmitResult, depth),
	}
}

// ReceiveDone implements CompletionSink.
func (s *ChannelSink) ReceiveDone(res ReceiveResult) {
	s.rx <- res
}

// TransmitDone implements CompletionSink.
func (s *ChannelSink) TransmitDone(res TransmitResult) {
	s.tx <- res
}

// Rx returns the receive-completion channel.
func (s *ChannelSink) Rx() <-chan ReceiveResult {
	return s.rx
}

// Tx returns the transmit-completion channel.
func (s *ChannelSink) Tx() <-chan TransmitResult {
	return s.tx
}

// Close closes both completion channels. Call only after the radio is
// disabled and no further completions can arrive.
func (s *ChannelSink) Close() {
	close(s.rx)
	close(s.tx)
}

var _ CompletionSink = (*ChannelSink)(nil)
