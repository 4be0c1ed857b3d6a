package uart

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/frame"
	"github.com/radio-control/rhal/internal/phy"
)

// defaultCommandTimeout bounds the wait for a command response when the
// caller's context carries no deadline.
const defaultCommandTimeout = 2 * time.Second

// Transceiver drives a radio co-processor over a serial link.
type Transceiver struct {
	port io.ReadWriteCloser

	writeMu sync.Mutex // serializes whole frames on the wire
	cmdMu   sync.Mutex // at most one outstanding command

	mu        sync.Mutex
	handler   adapter.EventHandler
	caps      adapter.Capabilities
	rxChannel phy.Channel
	closed    bool

	resp chan wireFrame
	done chan struct{}
	wg   sync.WaitGroup
}

// Open dials the NCP on a serial device.
func Open(device string, baud int) (*Transceiver, error) {
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return New(port), nil
}

// New wraps an already-open link. Used directly by tests with an
// in-memory pipe.
func New(port io.ReadWriteCloser) *Transceiver {
	t := &Transceiver{
		port: port,
		resp: make(chan wireFrame, 1),
		done: make(chan struct{}),
	}

	t.wg.Add(1)
	go t.readLoop()

	return t
}

// readLoop decodes link frames, routing responses to the pending command
// and notifications to the attached handler.
func (t *Transceiver) readLoop() {
	defer t.wg.Done()

	br := bufio.NewReader(t.port)
	for {
		wf, err := decodeFrame(br)
		if err != nil {
			// Link gone; pending commands time out on their own.
			return
		}

		if wf.isNotification() {
			t.handleNotification(wf)
			continue
		}

		select {
		case t.resp <- wf:
		case <-t.done:
			return
		default:
			// Stale response with no waiter; drop it.
		}
	}
}

// handleNotification decodes RX/TX completions and forwards them.
func (t *Transceiver) handleNotification(wf wireFrame) {
	t.mu.Lock()
	h := t.handler
	ch := t.rxChannel
	t.mu.Unlock()

	if h == nil {
		return
	}

	switch wf.Type {
	case ntfRxDone:
		if len(wf.Payload) < 3 {
			return
		}
		status := wf.Payload[0]
		if status != statusOK {
			h.ReceiveDone(nil, adapter.RxAbort)
			return
		}

		var f frame.Frame
		if err := f.SetPSDU(wf.Payload[3:]); err != nil {
			h.ReceiveDone(nil, adapter.RxAbort)
			return
		}
		f.Channel = ch
		f.LQI = wf.Payload[1]
		f.SecurityValid = wf.Payload[2] != 0
		h.ReceiveDone(&f, adapter.RxSuccess)

	case ntfTxDone:
		if len(wf.Payload) < 2 {
			return
		}
		framePending := wf.Payload[1] != 0
		switch wf.Payload[0] {
		case statusOK:
			h.TransmitDone(framePending, adapter.TxSuccess)
		case statusNoAck:
			h.TransmitDone(false, adapter.TxNoAck)
		case statusChannelAccess:
			h.TransmitDone(false, adapter.TxChannelAccessFailure)
		default:
			h.TransmitDone(false, adapter.TxAbort)
		}
	}
}

// command writes one frame and waits for its response.
func (t *Transceiver) command(ctx context.Context, typ byte, payload []byte) (wireFrame, error) {
	t.cmdMu.Lock()
	defer t.cmdMu.Unlock()

	// Drain a stale response left by a timed-out predecessor.
	select {
	case <-t.resp:
	default:
	}

	if err := t.writeFrame(typ, payload); err != nil {
		return wireFrame{}, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCommandTimeout)
		defer cancel()
	}

	select {
	case wf := <-t.resp:
		if wf.Type == respErr {
			code := byte(statusHardwareFault)
			if len(wf.Payload) > 0 {
				code = wf.Payload[0]
			}
			return wireFrame{}, statusError(code)
		}
		return wf, nil
	case <-ctx.Done():
		return wireFrame{}, fmt.Errorf("TIMEOUT: no response to command 0x%02x: %w", typ, ctx.Err())
	case <-t.done:
		return wireFrame{}, fmt.Errorf("NOT_READY: link closed")
	}
}

func (t *Transceiver) writeFrame(typ byte, payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.port.Write(encodeFrame(typ, payload)); err != nil {
		return fmt.Errorf("HARDWARE_FAULT: serial write: %w", err)
	}
	return nil
}

// Init queries the NCP capability set.
func (t *Transceiver) Init(ctx context.Context) error {
	wf, err := t.command(ctx, cmdInit, nil)
	if err != nil {
		return err
	}
	if wf.Type != respCaps || len(wf.Payload) < 6 {
		return fmt.Errorf("HARDWARE_FAULT: malformed init response 0x%02x", wf.Type)
	}

	t.mu.Lock()
	t.caps = adapter.Capabilities{
		Flags:       phy.Caps(binary.LittleEndian.Uint32(wf.Payload[:4])),
		MinPowerDbm: int8(wf.Payload[4]),
		MaxPowerDbm: int8(wf.Payload[5]),
	}
	t.mu.Unlock()
	return nil
}

// Capabilities returns the capability set reported at Init.
func (t *Transceiver) Capabilities() adapter.Capabilities {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.caps
}

// Vendor names the error table for NCP status tokens.
func (t *Transceiver) Vendor() string {
	return "ncp"
}

// Attach registers the completion handler.
func (t *Transceiver) Attach(h adapter.EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *Transceiver) simpleCommand(ctx context.Context, typ byte) error {
	wf, err := t.command(ctx, typ, nil)
	if err != nil {
		return err
	}
	if wf.Type != respOK {
		return fmt.Errorf("HARDWARE_FAULT: unexpected response 0x%02x", wf.Type)
	}
	return nil
}

// PowerOn brings the NCP radio out of the disabled state.
func (t *Transceiver) PowerOn(ctx context.Context) error {
	return t.simpleCommand(ctx, cmdPowerOn)
}

// PowerOff disables the NCP radio.
func (t *Transceiver) PowerOff(ctx context.Context) error {
	return t.simpleCommand(ctx, cmdPowerOff)
}

// Sleep enters the low-power state.
func (t *Transceiver) Sleep(ctx context.Context) error {
	return t.simpleCommand(ctx, cmdSleep)
}

// Idle returns to the idle state.
func (t *Transceiver) Idle(ctx context.Context) error {
	return t.simpleCommand(ctx, cmdIdle)
}

// ArmReceive arms reception on the given channel.
func (t *Transceiver) ArmReceive(ctx context.Context, ch phy.Channel) error {
	wf, err := t.command(ctx, cmdReceive, []byte{byte(ch)})
	if err != nil {
		return err
	}
	if wf.Type != respOK {
		return fmt.Errorf("HARDWARE_FAULT: unexpected response 0x%02x", wf.Type)
	}

	t.mu.Lock()
	t.rxChannel = ch
	t.mu.Unlock()
	return nil
}

// Transmit hands the PSDU to the NCP for transmission.
func (t *Transceiver) Transmit(ctx context.Context, psdu []byte, ch phy.Channel, power int8) error {
	if len(psdu) > phy.MaxPHYPacketSize {
		return fmt.Errorf("FRAME_TOO_LONG: psdu length %d", len(psdu))
	}

	payload := make([]byte, 0, len(psdu)+2)
	payload = append(payload, byte(ch), byte(power))
	payload = append(payload, psdu...)

	wf, err := t.command(ctx, cmdTransmit, payload)
	if err != nil {
		return err
	}
	if wf.Type != respOK {
		return fmt.Errorf("HARDWARE_FAULT: unexpected response 0x%02x", wf.Type)
	}
	return nil
}

// NoiseFloor queries the most recent RSSI measurement. Link errors are
// indistinguishable from a missing measurement and report the invalid
// sentinel.
func (t *Transceiver) NoiseFloor() int8 {
	wf, err := t.command(context.Background(), cmdNoiseFloor, nil)
	if err != nil || wf.Type != respNoise || len(wf.Payload) < 1 {
		return phy.InvalidRSSI
	}
	return int8(wf.Payload[0])
}

// SetPanID configures the PAN ID filter on the NCP.
func (t *Transceiver) SetPanID(ctx context.Context, id phy.PanID) error {
	var payload [2]byte
	binary.LittleEndian.PutUint16(payload[:], uint16(id))
	wf, err := t.command(ctx, cmdSetPanID, payload[:])
	if err != nil {
		return err
	}
	if wf.Type != respOK {
		return fmt.Errorf("HARDWARE_FAULT: unexpected response 0x%02x", wf.Type)
	}
	return nil
}

// SetShortAddress configures the short address filter on the NCP.
func (t *Transceiver) SetShortAddress(ctx context.Context, addr phy.ShortAddress) error {
	var payload [2]byte
	binary.LittleEndian.PutUint16(payload[:], uint16(addr))
	wf, err := t.command(ctx, cmdSetShort, payload[:])
	if err != nil {
		return err
	}
	if wf.Type != respOK {
		return fmt.Errorf("HARDWARE_FAULT: unexpected response 0x%02x", wf.Type)
	}
	return nil
}

// SetExtendedAddress configures the extended address filter on the NCP.
func (t *Transceiver) SetExtendedAddress(ctx context.Context, addr phy.ExtAddress) error {
	wf, err := t.command(ctx, cmdSetExt, addr[:])
	if err != nil {
		return err
	}
	if wf.Type != respOK {
		return fmt.Errorf("HARDWARE_FAULT: unexpected response 0x%02x", wf.Type)
	}
	return nil
}

// Close shuts down the reader and the serial port.
func (t *Transceiver) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
	err := t.port.Close()
	t.wg.Wait()
	return err
}

var _ adapter.ITransceiver = (*Transceiver)(nil)
