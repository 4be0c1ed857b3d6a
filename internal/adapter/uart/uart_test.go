package uart

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/frame"
	"github.com/radio-control/rhal/internal/phy"
)

// fakeNCP scripts the co-processor side of the link.
type fakeNCP struct {
	conn net.Conn
	br   *bufio.Reader

	// respond maps a command opcode to the frame to send back. Commands
	// without an entry get a plain respOK.
	respond map[byte]wireFrame
}

func newFakeNCP(t *testing.T) (*fakeNCP, *Transceiver) {
	t.Helper()

	hostSide, ncpSide := net.Pipe()
	ncp := &fakeNCP{
		conn:    ncpSide,
		br:      bufio.NewReader(ncpSide),
		respond: make(map[byte]wireFrame),
	}

	trx := New(hostSide)
	t.Cleanup(func() {
		trx.Close()
		ncpSide.Close()
	})

	go ncp.serve()
	return ncp, trx
}

// serve answers commands until the pipe closes.
func (n *fakeNCP) serve() {
	for {
		wf, err := decodeFrame(n.br)
		if err != nil {
			return
		}
		resp, ok := n.respond[wf.Type]
		if !ok {
			resp = wireFrame{Type: respOK}
		}
		if _, err := n.conn.Write(encodeFrame(resp.Type, resp.Payload)); err != nil {
			return
		}
	}
}

// notify pushes an unsolicited notification to the host.
func (n *fakeNCP) notify(typ byte, payload []byte) error {
	_, err := n.conn.Write(encodeFrame(typ, payload))
	return err
}

func capsPayload(flags phy.Caps, min, max int8) []byte {
	p := make([]byte, 6)
	binary.LittleEndian.PutUint32(p[:4], uint32(flags))
	p[4] = byte(min)
	p[5] = byte(max)
	return p
}

func TestInitParsesCapabilities(t *testing.T) {
	ncp, trx := newFakeNCP(t)
	ncp.respond[cmdInit] = wireFrame{Type: respCaps, Payload: capsPayload(phy.CapAckTimeout, -20, 10)}

	if err := trx.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	caps := trx.Capabilities()
	if !caps.Flags.HasAckTimeout() {
		t.Error("ack-timeout flag not parsed")
	}
	if caps.MinPowerDbm != -20 || caps.MaxPowerDbm != 10 {
		t.Errorf("power range = [%d, %d], want [-20, 10]", caps.MinPowerDbm, caps.MaxPowerDbm)
	}
}

func TestCommandErrorResponse(t *testing.T) {
	ncp, trx := newFakeNCP(t)
	ncp.respond[cmdReceive] = wireFrame{Type: respErr, Payload: []byte{statusInvalidChan}}

	err := trx.ArmReceive(context.Background(), 27)
	if err == nil {
		t.Fatal("ArmReceive succeeded, want error")
	}
	if !errors.Is(adapter.NormalizeVendorErrorWithVendor(err, "ncp"), adapter.ErrInvalidArgs) {
		t.Errorf("error %v does not normalize to INVALID_ARGS", err)
	}
}

func TestCommandTimeout(t *testing.T) {
	// An NCP that never answers: the command respects the context
	// deadline instead of hanging.
	hostSide, ncpSide := net.Pipe()
	trx := New(hostSide)
	t.Cleanup(func() {
		trx.Close()
		ncpSide.Close()
	})
	go func() {
		br := bufio.NewReader(ncpSide)
		for {
			if _, err := decodeFrame(br); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := trx.PowerOn(ctx)
	if err == nil {
		t.Fatal("PowerOn succeeded with a mute NCP")
	}
	if !errors.Is(adapter.NormalizeVendorErrorWithVendor(err, "ncp"), adapter.ErrFailed) {
		t.Errorf("timeout error %v does not normalize to FAIL", err)
	}
}

type captureHandler struct {
	rx chan *frame.Frame
	tx chan adapter.TxStatus
}

func (h *captureHandler) ReceiveDone(f *frame.Frame, status adapter.RxStatus) {
	if status != adapter.RxSuccess {
		h.rx <- nil
		return
	}
	cp := *f
	h.rx <- &cp
}

func (h *captureHandler) TransmitDone(framePending bool, status adapter.TxStatus) {
	h.tx <- status
}

func TestReceiveNotification(t *testing.T) {
	ncp, trx := newFakeNCP(t)
	h := &captureHandler{rx: make(chan *frame.Frame, 1), tx: make(chan adapter.TxStatus, 1)}
	trx.Attach(h)

	if err := trx.ArmReceive(context.Background(), 15); err != nil {
		t.Fatalf("ArmReceive failed: %v", err)
	}

	psdu := []byte{0x41, 0x88, 0x03}
	payload := append([]byte{statusOK, 77, 1}, psdu...)
	if err := ncp.notify(ntfRxDone, payload); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-h.rx:
		if f == nil {
			t.Fatal("receive aborted, want success")
		}
		if !bytes.Equal(f.PSDU(), psdu) {
			t.Errorf("psdu = %x, want %x", f.PSDU(), psdu)
		}
		if f.Channel != 15 {
			t.Errorf("channel = %d, want armed channel 15", f.Channel)
		}
		if f.LQI != 77 {
			t.Errorf("lqi = %d, want 77", f.LQI)
		}
		if !f.SecurityValid {
			t.Error("security flag not parsed")
		}
	case <-time.After(time.Second):
		t.Fatal("rx notification not delivered")
	}
}

func TestReceiveAbortNotification(t *testing.T) {
	ncp, trx := newFakeNCP(t)
	h := &captureHandler{rx: make(chan *frame.Frame, 1), tx: make(chan adapter.TxStatus, 1)}
	trx.Attach(h)

	if err := ncp.notify(ntfRxDone, []byte{statusHardwareFault, 0, 0}); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-h.rx:
		if f != nil {
			t.Error("aborted receive delivered a frame")
		}
	case <-time.After(time.Second):
		t.Fatal("abort notification not delivered")
	}
}

func TestTransmitNotificationMapping(t *testing.T) {
	tests := []struct {
		code byte
		want adapter.TxStatus
	}{
		{statusOK, adapter.TxSuccess},
		{statusNoAck, adapter.TxNoAck},
		{statusChannelAccess, adapter.TxChannelAccessFailure},
		{statusAbort, adapter.TxAbort},
		{0xEE, adapter.TxAbort},
	}

	ncp, trx := newFakeNCP(t)
	h := &captureHandler{rx: make(chan *frame.Frame, 1), tx: make(chan adapter.TxStatus, 8)}
	trx.Attach(h)

	for _, tt := range tests {
		if err := trx.Transmit(context.Background(), []byte{1, 2}, 11, 0); err != nil {
			t.Fatalf("Transmit failed: %v", err)
		}
		if err := ncp.notify(ntfTxDone, []byte{tt.code, 0}); err != nil {
			t.Fatal(err)
		}
		select {
		case got := <-h.tx:
			if got != tt.want {
				t.Errorf("status 0x%02x mapped to %s, want %s", tt.code, got, tt.want)
			}
		case <-time.After(time.Second):
			t.Fatalf("tx notification for 0x%02x not delivered", tt.code)
		}
	}
}

func TestTransmitOversizeRejectedLocally(t *testing.T) {
	_, trx := newFakeNCP(t)

	err := trx.Transmit(context.Background(), make([]byte, phy.MaxPHYPacketSize+1), 11, 0)
	if err == nil {
		t.Fatal("oversize transmit succeeded")
	}
	if !errors.Is(adapter.NormalizeVendorErrorWithVendor(err, "ncp"), adapter.ErrInvalidArgs) {
		t.Errorf("error %v does not normalize to INVALID_ARGS", err)
	}
}

func TestNoiseFloorQueries(t *testing.T) {
	ncp, trx := newFakeNCP(t)
	nf := int8(-95)
	ncp.respond[cmdNoiseFloor] = wireFrame{Type: respNoise, Payload: []byte{byte(nf)}}

	if got := trx.NoiseFloor(); got != -95 {
		t.Errorf("NoiseFloor = %d, want -95", got)
	}
}

func TestNoiseFloorLinkError(t *testing.T) {
	ncp, trx := newFakeNCP(t)
	ncp.respond[cmdNoiseFloor] = wireFrame{Type: respErr, Payload: []byte{statusNotReady}}

	if got := trx.NoiseFloor(); got != phy.InvalidRSSI {
		t.Errorf("NoiseFloor on link error = %d, want sentinel %d", got, phy.InvalidRSSI)
	}
}

func TestCloseIdempotent(t *testing.T) {
	_, trx := newFakeNCP(t)

	if err := trx.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := trx.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
