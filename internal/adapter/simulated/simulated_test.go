package simulated

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/adaptertest"
	"github.com/radio-control/rhal/internal/frame"
)

// recordingHandler captures completions on channels.
type recordingHandler struct {
	rx chan *frame.Frame
	tx chan adapter.TxStatus
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		rx: make(chan *frame.Frame, 8),
		tx: make(chan adapter.TxStatus, 8),
	}
}

func (h *recordingHandler) ReceiveDone(f *frame.Frame, status adapter.RxStatus) {
	cp := *f
	h.rx <- &cp
}

func (h *recordingHandler) TransmitDone(framePending bool, status adapter.TxStatus) {
	h.tx <- status
}

func bringUp(t *testing.T) (*Transceiver, *recordingHandler) {
	t.Helper()

	trx := NewTransceiver()
	t.Cleanup(func() { trx.Close() })

	h := newRecordingHandler()
	trx.Attach(h)
	if err := trx.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := trx.PowerOn(context.Background()); err != nil {
		t.Fatalf("PowerOn failed: %v", err)
	}
	return trx, h
}

func TestConformance(t *testing.T) {
	adaptertest.RunConformance(t, "simulated", func() adapter.ITransceiver {
		return NewTransceiver()
	}, adaptertest.Expectations{
		MinPowerDbm: -20,
		MaxPowerDbm: 10,
		Loopback:    true,
	})
}

func TestQueuedFrameDeliveredOnArm(t *testing.T) {
	trx, h := bringUp(t)

	psdu := []byte{0x41, 0x88, 0x01}
	if err := trx.QueueFrame(psdu, 42, false); err != nil {
		t.Fatal(err)
	}
	if err := trx.ArmReceive(context.Background(), 15); err != nil {
		t.Fatalf("ArmReceive failed: %v", err)
	}

	select {
	case f := <-h.rx:
		if !bytes.Equal(f.PSDU(), psdu) {
			t.Errorf("received %x, want %x", f.PSDU(), psdu)
		}
		if f.Channel != 15 {
			t.Errorf("frame channel = %d, want 15", f.Channel)
		}
		if f.LQI != 42 {
			t.Errorf("frame LQI = %d, want 42", f.LQI)
		}
	case <-time.After(time.Second):
		t.Fatal("queued frame not delivered")
	}

	if trx.Listening() {
		t.Error("still listening after delivery")
	}
}

func TestInjectRequiresArmed(t *testing.T) {
	trx, h := bringUp(t)

	if err := trx.InjectFrame([]byte{1}, 0, false); err == nil {
		t.Error("InjectFrame succeeded without an armed receiver")
	}

	if err := trx.ArmReceive(context.Background(), 11); err != nil {
		t.Fatal(err)
	}
	if err := trx.InjectFrame([]byte{1, 2}, 0, false); err != nil {
		t.Fatalf("InjectFrame failed: %v", err)
	}

	select {
	case <-h.rx:
	case <-time.After(time.Second):
		t.Fatal("injected frame not delivered")
	}
}

func TestScriptedTransmitOutcomes(t *testing.T) {
	trx, h := bringUp(t)

	trx.ScriptTransmit(false, adapter.TxNoAck)
	trx.ScriptTransmit(false, adapter.TxChannelAccessFailure)

	psdu := []byte{0xAA}
	want := []adapter.TxStatus{adapter.TxNoAck, adapter.TxChannelAccessFailure, adapter.TxSuccess}
	for i, w := range want {
		if err := trx.Transmit(context.Background(), psdu, 11, 0); err != nil {
			t.Fatalf("Transmit %d failed: %v", i, err)
		}
		select {
		case got := <-h.tx:
			if got != w {
				t.Errorf("transmit %d status = %s, want %s", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("transmit %d completion not delivered", i)
		}
	}

	if got := len(trx.TxLog()); got != 3 {
		t.Errorf("TxLog has %d entries, want 3", got)
	}
}

func TestForcedErrors(t *testing.T) {
	trx, _ := bringUp(t)

	boom := errors.New("HARDWARE_FAULT: forced")
	trx.ForceError("transmit", boom)

	if err := trx.Transmit(context.Background(), []byte{1}, 11, 0); !errors.Is(err, boom) {
		t.Errorf("Transmit error = %v, want forced error", err)
	}

	trx.ForceError("transmit", nil)
	if err := trx.Transmit(context.Background(), []byte{1}, 11, 0); err != nil {
		t.Errorf("Transmit after clearing forced error failed: %v", err)
	}
}

func TestManualCompletion(t *testing.T) {
	trx, h := bringUp(t)
	trx.SetManualCompletion(true)

	if err := trx.Transmit(context.Background(), []byte{1}, 11, 0); err != nil {
		t.Fatal(err)
	}

	select {
	case <-h.tx:
		t.Fatal("completion delivered before CompleteTransmit")
	case <-time.After(50 * time.Millisecond):
	}

	trx.CompleteTransmit(true, adapter.TxSuccess)
	select {
	case got := <-h.tx:
		if got != adapter.TxSuccess {
			t.Errorf("status = %s, want SUCCESS", got)
		}
	default:
		t.Fatal("CompleteTransmit did not deliver inline")
	}
}

func TestContextCancellation(t *testing.T) {
	trx, _ := bringUp(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := trx.ArmReceive(ctx, 11); !errors.Is(err, context.Canceled) {
		t.Errorf("ArmReceive with canceled context = %v", err)
	}
	if err := trx.Transmit(ctx, []byte{1}, 11, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Transmit with canceled context = %v", err)
	}
}
