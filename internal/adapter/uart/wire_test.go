package uart

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/radio-control/rhal/internal/adapter"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		typ     byte
		payload []byte
	}{
		{"no payload", cmdInit, nil},
		{"one byte", cmdReceive, []byte{11}},
		{"transmit", cmdTransmit, []byte{20, 0, 0x41, 0x88, 0x01}},
		{"max psdu", ntfRxDone, append([]byte{0, 255, 1}, make([]byte, 127)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := encodeFrame(tt.typ, tt.payload)
			wf, err := decodeFrame(bufio.NewReader(bytes.NewReader(encoded)))
			if err != nil {
				t.Fatalf("decodeFrame failed: %v", err)
			}
			if wf.Type != tt.typ {
				t.Errorf("type = 0x%02x, want 0x%02x", wf.Type, tt.typ)
			}
			if !bytes.Equal(wf.Payload, tt.payload) {
				t.Errorf("payload = %x, want %x", wf.Payload, tt.payload)
			}
		})
	}
}

func TestDecodeSkipsNoise(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0xFF, 0x42}) // line noise before the frame
	buf.Write(encodeFrame(respOK, nil))

	wf, err := decodeFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if wf.Type != respOK {
		t.Errorf("type = 0x%02x, want respOK", wf.Type)
	}
}

func TestDecodeResyncAfterCorruptFCS(t *testing.T) {
	good := encodeFrame(respNoise, []byte{0xA5})

	corrupt := encodeFrame(respOK, []byte{1, 2, 3})
	corrupt[len(corrupt)-1] ^= 0xFF // break the checksum

	var buf bytes.Buffer
	buf.Write(corrupt)
	buf.Write(good)

	wf, err := decodeFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if wf.Type != respNoise {
		t.Errorf("type = 0x%02x, want respNoise after resync", wf.Type)
	}
	if !bytes.Equal(wf.Payload, []byte{0xA5}) {
		t.Errorf("payload = %x, want a5", wf.Payload)
	}
}

func TestDecodeEOF(t *testing.T) {
	_, err := decodeFrame(bufio.NewReader(bytes.NewReader(nil)))
	if !errors.Is(err, io.EOF) {
		t.Errorf("decodeFrame on empty input = %v, want EOF", err)
	}

	// A truncated frame also surfaces an error instead of blocking.
	partial := encodeFrame(respOK, []byte{1, 2, 3})[:3]
	_, err = decodeFrame(bufio.NewReader(bytes.NewReader(partial)))
	if err == nil {
		t.Error("decodeFrame on truncated input succeeded")
	}
}

func TestStatusErrorTokens(t *testing.T) {
	tests := []struct {
		code  byte
		token string
		norm  error
	}{
		{statusHardwareFault, "HARDWARE_FAULT", adapter.ErrFailed},
		{statusInvalidChan, "CHANNEL_OUT_OF_RANGE", adapter.ErrInvalidArgs},
		{statusInvalidPower, "INVALID_POWER_LEVEL", adapter.ErrInvalidArgs},
		{statusFrameTooLong, "FRAME_TOO_LONG", adapter.ErrInvalidArgs},
		{statusNotReady, "NOT_READY", adapter.ErrFailed},
		{0xEE, "HARDWARE_FAULT", adapter.ErrFailed},
	}

	for _, tt := range tests {
		err := statusError(tt.code)
		if err == nil {
			t.Fatalf("statusError(0x%02x) = nil", tt.code)
		}
		if !strings.Contains(err.Error(), tt.token) {
			t.Errorf("statusError(0x%02x) = %q, want token %s", tt.code, err, tt.token)
		}
		if !errors.Is(adapter.NormalizeVendorErrorWithVendor(err, "ncp"), tt.norm) {
			t.Errorf("statusError(0x%02x) normalizes wrong: %v", tt.code, err)
		}
	}

	if err := statusError(statusOK); err != nil {
		t.Errorf("statusError(statusOK) = %v, want nil", err)
	}
}
