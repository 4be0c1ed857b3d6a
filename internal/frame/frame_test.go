package frame

import (
	"bytes"
	"testing"

	"github.com/radio-control/rhal/internal/phy"
)

func TestSetPSDU(t *testing.T) {
	var f Frame

	psdu := []byte{0x41, 0x88, 0x01, 0x34, 0x12}
	if err := f.SetPSDU(psdu); err != nil {
		t.Fatalf("SetPSDU failed: %v", err)
	}
	if f.Length != 5 {
		t.Errorf("Length = %d, want 5", f.Length)
	}
	if !bytes.Equal(f.PSDU(), psdu) {
		t.Errorf("PSDU() = %x, want %x", f.PSDU(), psdu)
	}

	// Maximum size fits exactly.
	if err := f.SetPSDU(make([]byte, phy.MaxPHYPacketSize)); err != nil {
		t.Errorf("SetPSDU(127 bytes) failed: %v", err)
	}

	// One over is rejected and the frame keeps its previous content.
	if err := f.SetPSDU(make([]byte, phy.MaxPHYPacketSize+1)); err == nil {
		t.Error("SetPSDU(128 bytes) succeeded, want error")
	}
	if f.Length != phy.MaxPHYPacketSize {
		t.Errorf("Length after rejected SetPSDU = %d, want %d", f.Length, phy.MaxPHYPacketSize)
	}
}

func TestFrameValueCopy(t *testing.T) {
	var a Frame
	if err := a.SetPSDU([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	b := a
	a.Buffer()[0] = 0xFF

	if b.PSDU()[0] != 1 {
		t.Error("copying a Frame shares the payload buffer")
	}
}

func TestValidateForTransmit(t *testing.T) {
	const minPower, maxPower = -20, 10

	build := func(length int, ch phy.Channel, power int8) *Frame {
		var f Frame
		if err := f.SetPSDU(make([]byte, length)); err != nil {
			t.Fatal(err)
		}
		f.Channel = ch
		f.Power = power
		return &f
	}

	tests := []struct {
		name    string
		frame   *Frame
		wantErr bool
	}{
		{"valid", build(10, 15, 0), false},
		{"min length", build(1, 11, minPower), false},
		{"max length", build(phy.MaxPHYPacketSize, 26, maxPower), false},
		{"empty psdu", build(0, 15, 0), true},
		{"channel low", build(10, 10, 0), true},
		{"channel high", build(10, 27, 0), true},
		{"power below min", build(10, 15, minPower - 1), true},
		{"power above max", build(10, 15, maxPower + 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.ValidateForTransmit(minPower, maxPower)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateForTransmit() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReset(t *testing.T) {
	var f Frame
	if err := f.SetPSDU([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	f.LQI = 200
	f.SecurityValid = true

	f.Reset()

	if f.Length != 0 {
		t.Errorf("Length after Reset = %d, want 0", f.Length)
	}
	if f.LQI != phy.NoLQI {
		t.Errorf("LQI after Reset = %d, want %d", f.LQI, phy.NoLQI)
	}
	if f.SecurityValid {
		t.Error("SecurityValid after Reset = true")
	}
	if len(f.PSDU()) != 0 {
		t.Errorf("PSDU() after Reset has %d bytes", len(f.PSDU()))
	}
}
