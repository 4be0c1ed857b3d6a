// Package simulated provides an in-memory transceiver implementation.
//
// It backs unit tests, the adapter conformance suite, and the daemon's
// default backend. Inbound frames can be queued or injected, transmit
// outcomes scripted, and individual operations forced to fail.
package simulated

import (
	"context"
	"fmt"
	"sync"

	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/frame"
	"github.com/radio-control/rhal/internal/phy"
)

// powerState tracks the simulated hardware power mode.
type powerState int

const (
	powerOff powerState = iota
	powerIdle
	powerSleep
)

// txOutcome scripts one transmit completion.
type txOutcome struct {
	framePending bool
	status       adapter.TxStatus
}

// Transceiver implements adapter.ITransceiver in memory.
//
// In automatic mode (the default) completions are delivered in order by a
// dedicated goroutine. In manual mode nothing completes until the test
// calls CompleteReceive or CompleteTransmit, which deliver inline on the
// caller's goroutine for deterministic sequencing.
type Transceiver struct {
	mu      sync.Mutex
	handler adapter.EventHandler

	caps        adapter.Capabilities
	initialized bool
	power       powerState
	listening   bool
	channel     phy.Channel
	noiseFloor  int8

	panID     phy.PanID
	shortAddr phy.ShortAddress
	extAddr   phy.ExtAddress

	manual     bool
	rxQueue    []frame.Frame
	txOutcomes []txOutcome
	txLog      [][]byte
	forced     map[string]error

	events    chan func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewTransceiver creates a simulated transceiver with typical 2.4 GHz
// power limits and no optional capabilities.
func NewTransceiver() *Transceiver {
	t := &Transceiver{
		caps: adapter.Capabilities{
			Flags:       phy.CapNone,
			MinPowerDbm: -20,
			MaxPowerDbm: 10,
		},
		noiseFloor: -95,
		forced:     make(map[string]error),
		events:     make(chan func(), 64),
		done:       make(chan struct{}),
	}

	t.wg.Add(1)
	go t.deliveryWorker()

	return t
}

// deliveryWorker delivers completions in submission order.
func (t *Transceiver) deliveryWorker() {
	defer t.wg.Done()
	for {
		select {
		case fn := <-t.events:
			fn()
		case <-t.done:
			return
		}
	}
}

// Init performs the one-time bring-up.
func (t *Transceiver) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.forced["init"]; err != nil {
		return err
	}

	t.initialized = true
	t.power = powerOff
	return nil
}

// Capabilities returns the fixed capability set.
func (t *Transceiver) Capabilities() adapter.Capabilities {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caps
}

// Vendor names the error table. The simulator speaks the NCP status
// vocabulary so error-path tests exercise the same mapping as hardware.
func (t *Transceiver) Vendor() string {
	return "ncp"
}

// Attach registers the completion handler.
func (t *Transceiver) Attach(h adapter.EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// PowerOn brings the transceiver to its idle-capable state.
func (t *Transceiver) PowerOn(ctx context.Context) error {
	return t.setPower(ctx, "powerOn", powerIdle)
}

// PowerOff disables the transceiver from any state.
func (t *Transceiver) PowerOff(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.forced["powerOff"]; err != nil {
		return err
	}

	t.power = powerOff
	t.listening = false
	return nil
}

// Sleep enters the low-power state.
func (t *Transceiver) Sleep(ctx context.Context) error {
	return t.setPower(ctx, "sleep", powerSleep)
}

// Idle returns to the idle state.
func (t *Transceiver) Idle(ctx context.Context) error {
	return t.setPower(ctx, "idle", powerIdle)
}

func (t *Transceiver) setPower(ctx context.Context, op string, target powerState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return fmt.Errorf("NOT_READY: %s before init", op)
	}
	if err := t.forced[op]; err != nil {
		return err
	}

	t.power = target
	t.listening = false
	return nil
}

// ArmReceive arms reception on the given channel. In automatic mode a
// queued frame (if any) completes the sequence immediately.
func (t *Transceiver) ArmReceive(ctx context.Context, ch phy.Channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return fmt.Errorf("NOT_READY: receive before init")
	}
	if err := t.forced["armReceive"]; err != nil {
		return err
	}
	if !ch.Valid() {
		return fmt.Errorf("CHANNEL_OUT_OF_RANGE: channel %d", ch)
	}

	t.listening = true
	t.channel = ch

	if !t.manual && len(t.rxQueue) > 0 {
		f := t.rxQueue[0]
		t.rxQueue = t.rxQueue[1:]
		f.Channel = ch
		t.listening = false
		t.dispatchLocked(func(h adapter.EventHandler) {
			h.ReceiveDone(&f, adapter.RxSuccess)
		})
	}

	return nil
}

// Transmit records the frame and completes with the next scripted outcome
// (success if none is scripted) in automatic mode.
func (t *Transceiver) Transmit(ctx context.Context, psdu []byte, ch phy.Channel, power int8) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return fmt.Errorf("NOT_READY: transmit before init")
	}
	if err := t.forced["transmit"]; err != nil {
		return err
	}
	if !ch.Valid() {
		return fmt.Errorf("CHANNEL_OUT_OF_RANGE: channel %d", ch)
	}
	if len(psdu) == 0 || len(psdu) > phy.MaxPHYPacketSize {
		return fmt.Errorf("FRAME_TOO_LONG: psdu length %d", len(psdu))
	}

	cp := make([]byte, len(psdu))
	copy(cp, psdu)
	t.txLog = append(t.txLog, cp)

	if t.manual {
		return nil
	}

	outcome := txOutcome{status: adapter.TxSuccess}
	if len(t.txOutcomes) > 0 {
		outcome = t.txOutcomes[0]
		t.txOutcomes = t.txOutcomes[1:]
	}
	t.dispatchLocked(func(h adapter.EventHandler) {
		h.TransmitDone(outcome.framePending, outcome.status)
	})

	return nil
}

// NoiseFloor returns the simulated noise floor.
func (t *Transceiver) NoiseFloor() int8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.noiseFloor
}

// SetPanID configures the PAN ID filter.
func (t *Transceiver) SetPanID(ctx context.Context, id phy.PanID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.forced["setPanID"]; err != nil {
		return err
	}
	t.panID = id
	return nil
}

// SetShortAddress configures the short address filter.
func (t *Transceiver) SetShortAddress(ctx context.Context, addr phy.ShortAddress) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.forced["setShortAddress"]; err != nil {
		return err
	}
	t.shortAddr = addr
	return nil
}

// SetExtendedAddress configures the extended address filter.
func (t *Transceiver) SetExtendedAddress(ctx context.Context, addr phy.ExtAddress) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.forced["setExtendedAddress"]; err != nil {
		return err
	}
	t.extAddr = addr
	return nil
}

// Close stops the delivery worker. Safe to call more than once.
func (t *Transceiver) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
	})
	return nil
}

// dispatchLocked queues a completion for ordered delivery. Caller holds mu.
func (t *Transceiver) dispatchLocked(fn func(adapter.EventHandler)) {
	h := t.handler
	if h == nil {
		return
	}
	select {
	case t.events <- func() { fn(h) }:
	case <-t.done:
	}
}

// Test hooks

// SetManualCompletion switches between automatic completion delivery and
// explicit CompleteReceive / CompleteTransmit calls.
func (t *Transceiver) SetManualCompletion(manual bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.manual = manual
}

// ForceError makes the named operation fail with err until cleared with a
// nil err. Operation names: init, powerOn, powerOff, sleep, idle,
// armReceive, transmit, setPanID, setShortAddress, setExtendedAddress.
func (t *Transceiver) ForceError(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.forced, op)
		return
	}
	t.forced[op] = err
}

// SetCapabilities overrides the reported capability set. Only meaningful
// before Init, matching the immutability contract.
func (t *Transceiver) SetCapabilities(caps adapter.Capabilities) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.caps = caps
}

// SetNoiseFloor overrides the reported noise floor.
func (t *Transceiver) SetNoiseFloor(dbm int8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.noiseFloor = dbm
}

// QueueFrame queues an inbound frame delivered on the next ArmReceive in
// automatic mode.
func (t *Transceiver) QueueFrame(psdu []byte, lqi uint8, securityValid bool) error {
	var f frame.Frame
	if err := f.SetPSDU(psdu); err != nil {
		return err
	}
	f.LQI = lqi
	f.SecurityValid = securityValid

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rxQueue = append(t.rxQueue, f)
	return nil
}

// InjectFrame delivers an inbound frame now. The transceiver must be
// listening; reception disarms as the hardware would.
func (t *Transceiver) InjectFrame(psdu []byte, lqi uint8, securityValid bool) error {
	var f frame.Frame
	if err := f.SetPSDU(psdu); err != nil {
		return err
	}
	f.LQI = lqi
	f.SecurityValid = securityValid

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.listening {
		return fmt.Errorf("NOT_READY: receiver not armed")
	}
	f.Channel = t.channel
	t.listening = false
	t.dispatchLocked(func(h adapter.EventHandler) {
		h.ReceiveDone(&f, adapter.RxSuccess)
	})
	return nil
}

// ScriptTransmit appends a scripted transmit outcome consumed in FIFO
// order by subsequent Transmit calls.
func (t *Transceiver) ScriptTransmit(framePending bool, status adapter.TxStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.txOutcomes = append(t.txOutcomes, txOutcome{framePending: framePending, status: status})
}

// CompleteReceive finishes an armed receive in manual mode, delivering the
// completion inline on the caller's goroutine.
func (t *Transceiver) CompleteReceive(f *frame.Frame, status adapter.RxStatus) {
	t.mu.Lock()
	t.listening = false
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h.ReceiveDone(f, status)
	}
}

// CompleteTransmit finishes a transmit in manual mode, delivering the
// completion inline on the caller's goroutine.
func (t *Transceiver) CompleteTransmit(framePending bool, status adapter.TxStatus) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h.TransmitDone(framePending, status)
	}
}

// TxLog returns copies of all transmitted PSDUs.
func (t *Transceiver) TxLog() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]byte, len(t.txLog))
	for i, p := range t.txLog {
		cp := make([]byte, len(p))
		copy(cp, p)
		out[i] = cp
	}
	return out
}

// Listening reports whether reception is currently armed (for tests).
func (t *Transceiver) Listening() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listening
}

var _ adapter.ITransceiver = (*Transceiver)(nil)
