package radio

import (
	"context"
	"fmt"
	"sync"

	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/frame"
	"github.com/radio-control/rhal/internal/phy"
)

// AuditLogger records state machine actions and their outcomes.
type AuditLogger interface {
	LogAction(action, from, to, outcome string)
}

// Observer is notified of committed state transitions, including the
// autonomous Receive/Transmit to Idle edges. Observers run under the
// radio lock and must not call back into the Radio.
type Observer interface {
	StateChanged(from, to State, cause string)
}

// Radio is the state machine for one transceiver. All application calls
// and driver completions are serialized on an internal mutex, so a
// completion moving the radio back to Idle never races with an
// application goroutine reading or writing the state.
type Radio struct {
	mu     sync.Mutex
	trx    adapter.ITransceiver
	vendor string

	sink     CompletionSink
	audit    AuditLogger
	observer Observer

	state       State
	initialized bool
	caps        adapter.Capabilities

	// The single driver-owned transmit buffer, reused across calls.
	txFrame frame.Frame

	// Shadow copy of the applied address filter, so atomic-or-nothing
	// semantics are observable.
	panID     phy.PanID
	shortAddr phy.ShortAddress
	extAddr   phy.ExtAddress
}

// New creates a radio bound to a transceiver. Completions are forwarded
// to sink; a nil sink discards them.
func New(trx adapter.ITransceiver, sink CompletionSink) *Radio {
	return &Radio{
		trx:    trx,
		vendor: trx.Vendor(),
		sink:   sink,
		state:  StateDisabled,
	}
}

// normalize maps a driver error through the transceiver's vendor table.
func (r *Radio) normalize(err error) error {
	return adapter.NormalizeVendorErrorWithVendor(err, r.vendor)
}

// SetAuditLogger attaches an audit logger. Call before Init.
func (r *Radio) SetAuditLogger(l AuditLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = l
}

// SetObserver attaches a transition observer. Call before Init.
func (r *Radio) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Init performs one-time setup: it attaches the radio as the driver's
// completion handler, brings up the hardware, and caches the capability
// set. Init failure is fatal; there is no recovery path.
func (r *Radio) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return fmt.Errorf("radio already initialized: %w", ErrInvalidState)
	}

	r.trx.Attach(r)
	if err := r.trx.Init(ctx); err != nil {
		return fmt.Errorf("transceiver init: %w", r.normalize(err))
	}

	r.caps = r.trx.Capabilities()
	r.state = StateDisabled
	r.initialized = true
	r.logAction("init", StateDisabled, StateDisabled, nil)
	return nil
}

// Enable transitions Disabled to Idle. On failure the state remains
// Disabled.
func (r *Radio) Enable(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReady("enable"); err != nil {
		return err
	}
	if r.state != StateDisabled {
		return r.invalidState("enable")
	}

	if err := r.trx.PowerOn(ctx); err != nil {
		norm := r.normalize(err)
		r.logAction("enable", r.state, r.state, norm)
		return fmt.Errorf("enable: %w", norm)
	}

	r.transition(StateIdle, "enable")
	return nil
}

// Disable transitions any state to Disabled. A pending receive or
// transmit is abandoned; its completion, if the driver still reports one,
// is dropped.
func (r *Radio) Disable(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReady("disable"); err != nil {
		return err
	}

	if err := r.trx.PowerOff(ctx); err != nil {
		norm := r.normalize(err)
		r.logAction("disable", r.state, r.state, norm)
		return fmt.Errorf("disable: %w", norm)
	}

	r.transition(StateDisabled, "disable")
	return nil
}

// Sleep transitions Idle to Sleep. Sleeping while already in Sleep is an
// idempotent success.
func (r *Radio) Sleep(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReady("sleep"); err != nil {
		return err
	}
	if r.state == StateSleep {
		return nil
	}
	if r.state != StateIdle {
		return r.invalidState("sleep")
	}

	if err := r.trx.Sleep(ctx); err != nil {
		norm := r.normalize(err)
		r.logAction("sleep", r.state, r.state, norm)
		return fmt.Errorf("sleep: %w", norm)
	}

	r.transition(StateSleep, "sleep")
	return nil
}

// Idle transitions Sleep to Idle. Idling while already in Idle is an
// idempotent success.
func (r *Radio) Idle(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReady("idle"); err != nil {
		return err
	}
	if r.state == StateIdle {
		return nil
	}
	if r.state != StateSleep {
		return r.invalidState("idle")
	}

	if err := r.trx.Idle(ctx); err != nil {
		norm := r.normalize(err)
		r.logAction("idle", r.state, r.state, norm)
		return fmt.Errorf("idle: %w", norm)
	}

	r.transition(StateIdle, "idle")
	return nil
}

// Receive transitions Idle to Receive, arming the hardware to listen on
// the given channel. The radio remains in Receive until a frame arrives
// or reception is aborted, then autonomously returns to Idle; the
// Receive-to-Idle edge is never requested by the caller.
func (r *Radio) Receive(ctx context.Context, ch phy.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReady("receive"); err != nil {
		return err
	}
	if r.state != StateIdle {
		return r.invalidState("receive")
	}
	if !ch.Valid() {
		err := fmt.Errorf("receive: channel %d outside [%d, %d]: %w",
			ch, phy.MinChannel, phy.MaxChannel, adapter.ErrInvalidArgs)
		r.logAction("receive", r.state, r.state, err)
		return err
	}

	if err := r.trx.ArmReceive(ctx, ch); err != nil {
		norm := r.normalize(err)
		r.logAction("receive", r.state, r.state, norm)
		return fmt.Errorf("receive: %w", norm)
	}

	r.transition(StateReceive, "receive")
	return nil
}

// Transmit transitions Idle to Transmit, sending the frame previously
// populated in the transmit buffer. On completion the radio autonomously
// returns to Idle regardless of outcome.
func (r *Radio) Transmit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkReady("transmit"); err != nil {
		return err
	}
	if r.state != StateIdle {
		return r.invalidState("transmit")
	}
	if err := r.txFrame.ValidateForTransmit(r.caps.MinPowerDbm, r.caps.MaxPowerDbm); err != nil {
		wrapped := fmt.Errorf("transmit: %v: %w", err, adapter.ErrInvalidArgs)
		r.logAction("transmit", r.state, r.state, wrapped)
		return wrapped
	}

	if err := r.trx.Transmit(ctx, r.txFrame.PSDU(), r.txFrame.Channel, r.txFrame.Power); err != nil {
		norm := r.normalize(err)
		r.logAction("transmit", r.state, r.state, norm)
		return fmt.Errorf("transmit: %w", norm)
	}

	r.transition(StateTransmit, "transmit")
	return nil
}

// TransmitBuffer returns the single driver-owned transmit frame. The
// caller populates PSDU, channel and power before calling Transmit, and
// must not retain the reference across calls.
func (r *Radio) TransmitBuffer() *frame.Frame {
	return &r.txFrame
}

// State returns the current operational state.
func (r *Radio) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Capabilities returns the capability set cached at Init.
func (r *Radio) Capabilities() adapter.Capabilities {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caps
}

// NoiseFloor returns the most recent RSSI measurement in dBm, or
// phy.InvalidRSSI for an invalid measurement. The reported value is
// always within [-127, 126] or the sentinel.
func (r *Radio) NoiseFloor() int8 {
	v := r.trx.NoiseFloor()
	if v == -128 {
		return phy.InvalidRSSI
	}
	return v
}

// SetPanID configures the PAN ID for address filtering. Rejected while a
// transmission is in flight.
func (r *Radio) SetPanID(ctx context.Context, id phy.PanID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.filterMutable("setPanId"); err != nil {
		return err
	}
	if err := r.trx.SetPanID(ctx, id); err != nil {
		norm := r.normalize(err)
		r.logAction("setPanId", r.state, r.state, norm)
		return fmt.Errorf("setPanId: %w", norm)
	}

	r.panID = id
	r.logAction("setPanId", r.state, r.state, nil)
	return nil
}

// SetShortAddress configures the short address for address filtering.
func (r *Radio) SetShortAddress(ctx context.Context, addr phy.ShortAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.filterMutable("setShortAddress"); err != nil {
		return err
	}
	if err := r.trx.SetShortAddress(ctx, addr); err != nil {
		norm := r.normalize(err)
		r.logAction("setShortAddress", r.state, r.state, norm)
		return fmt.Errorf("setShortAddress: %w", norm)
	}

	r.shortAddr = addr
	r.logAction("setShortAddress", r.state, r.state, nil)
	return nil
}

// SetExtendedAddress configures the extended address for address
// filtering.
func (r *Radio) SetExtendedAddress(ctx context.Context, addr phy.ExtAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.filterMutable("setExtendedAddress"); err != nil {
		return err
	}
	if err := r.trx.SetExtendedAddress(ctx, addr); err != nil {
		norm := r.normalize(err)
		r.logAction("setExtendedAddress", r.state, r.state, norm)
		return fmt.Errorf("setExtendedAddress: %w", norm)
	}

	r.extAddr = addr
	r.logAction("setExtendedAddress", r.state, r.state, nil)
	return nil
}

// PanID returns the applied PAN ID filter value.
func (r *Radio) PanID() phy.PanID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.panID
}

// ShortAddress returns the applied short address filter value.
func (r *Radio) ShortAddress() phy.ShortAddress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shortAddr
}

// ExtendedAddress returns the applied extended address filter value.
func (r *Radio) ExtendedAddress() phy.ExtAddress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.extAddr
}

// ReceiveDone implements adapter.EventHandler. It runs on the driver's
// completion goroutine: the Receive-to-Idle edge is committed under the
// lock, then the result is forwarded exactly once to the sink. A
// completion arriving in any other state (e.g. after Disable) is dropped.
func (r *Radio) ReceiveDone(f *frame.Frame, status adapter.RxStatus) {
	r.mu.Lock()
	if r.state != StateReceive {
		r.logAction("receiveDone", r.state, r.state, fmt.Errorf("dropped in state %s", r.state))
		r.mu.Unlock()
		return
	}

	res := ReceiveResult{Status: status}
	if status == adapter.RxSuccess && f != nil {
		res.Frame = *f
	}

	r.transition(StateIdle, "receiveDone")
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		sink.ReceiveDone(res)
	}
}

// TransmitDone implements adapter.EventHandler; see ReceiveDone.
func (r *Radio) TransmitDone(framePending bool, status adapter.TxStatus) {
	r.mu.Lock()
	if r.state != StateTransmit {
		r.logAction("transmitDone", r.state, r.state, fmt.Errorf("dropped in state %s", r.state))
		r.mu.Unlock()
		return
	}

	res := TransmitResult{FramePending: framePending, Status: status}

	r.transition(StateIdle, "transmitDone")
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		sink.TransmitDone(res)
	}
}

// transition commits a state change. Caller holds the lock.
func (r *Radio) transition(to State, cause string) {
	from := r.state
	r.state = to
	r.logAction(cause, from, to, nil)
	if r.observer != nil {
		r.observer.StateChanged(from, to, cause)
	}
}

// checkReady rejects operations before Init. Caller holds the lock.
func (r *Radio) checkReady(action string) error {
	if !r.initialized {
		err := fmt.Errorf("%s: radio not initialized: %w", action, ErrInvalidState)
		return err
	}
	return nil
}

// filterMutable rejects filter changes while a transmission is in
// flight. Caller holds the lock.
func (r *Radio) filterMutable(action string) error {
	if err := r.checkReady(action); err != nil {
		return err
	}
	if r.state == StateTransmit {
		return r.invalidState(action)
	}
	return nil
}

// invalidState rejects an illegal transition with no side effects.
// Caller holds the lock.
func (r *Radio) invalidState(action string) error {
	err := fmt.Errorf("%s: illegal from state %s: %w", action, r.state, ErrInvalidState)
	r.logAction(action, r.state, r.state, err)
	return err
}

// logAction records an action outcome if an audit logger is attached.
// Caller holds the lock.
func (r *Radio) logAction(action string, from, to State, err error) {
	if r.audit == nil {
		return
	}
	outcome := "SUCCESS"
	if err != nil {
		outcome = err.Error()
	}
	r.audit.LogAction(action, from.String(), to.String(), outcome)
}

var _ adapter.EventHandler = (*Radio)(nil)
