package adapter

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeVendorError(t *testing.T) {
	tests := []struct {
		name   string
		vendor string
		input  string
		want   error
	}{
		{"ncp channel range", "ncp", "CHANNEL_OUT_OF_RANGE: channel 27", ErrInvalidArgs},
		{"ncp invalid channel", "ncp", "INVALID_CHANNEL", ErrInvalidArgs},
		{"ncp power range", "ncp", "TX_POWER_OUT_OF_RANGE: 30 dBm", ErrInvalidArgs},
		{"ncp frame too long", "ncp", "FRAME_TOO_LONG: psdu length 200", ErrInvalidArgs},
		{"ncp hardware fault", "ncp", "HARDWARE_FAULT: xtal", ErrFailed},
		{"ncp pll", "ncp", "PLL_LOCK_FAILED", ErrFailed},
		{"ncp not ready", "ncp", "NOT_READY: transmit before init", ErrFailed},
		{"ncp unknown token", "ncp", "SOMETHING_NOVEL", ErrFailed},
		{"generic out of range", "generic", "value OUT_OF_RANGE", ErrInvalidArgs},
		{"generic fault", "generic", "bus FAULT detected", ErrFailed},
		{"generic unknown", "generic", "mystery condition", ErrFailed},
		{"case insensitive", "generic", "out_of_range lower case", ErrInvalidArgs},
		{"unknown vendor falls back", "no-such-vendor", "OUT_OF_RANGE", ErrInvalidArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVendorErrorWithVendor(errors.New(tt.input), tt.vendor)
			if !errors.Is(got, tt.want) {
				t.Errorf("normalize(%q, %q) = %v, want code %v", tt.input, tt.vendor, got, tt.want)
			}
		})
	}
}

func TestNormalizeNil(t *testing.T) {
	if got := NormalizeVendorError(nil); got != nil {
		t.Errorf("NormalizeVendorError(nil) = %v, want nil", got)
	}
}

func TestNormalizePassThrough(t *testing.T) {
	// Errors already carrying a normalized code are not wrapped again.
	wrapped := fmt.Errorf("transmit: %w", ErrInvalidArgs)
	got := NormalizeVendorError(wrapped)
	if got != wrapped {
		t.Errorf("normalized an already-normalized error: %v", got)
	}
}

func TestVendorErrorPreservesOriginal(t *testing.T) {
	original := errors.New("HARDWARE_FAULT: pll out of lock")
	got := NormalizeVendorErrorWithVendor(original, "ncp")

	var vendorErr *VendorError
	if !errors.As(got, &vendorErr) {
		t.Fatalf("expected *VendorError, got %T", got)
	}
	if vendorErr.Original != original {
		t.Error("original vendor error not preserved")
	}
	if !errors.Is(got, ErrFailed) {
		t.Error("wrapped error does not unwrap to FAIL")
	}
}

func TestStatusStrings(t *testing.T) {
	if TxSuccess.String() != "SUCCESS" {
		t.Errorf("TxSuccess = %q", TxSuccess.String())
	}
	if TxNoAck.String() != "NO_ACK" {
		t.Errorf("TxNoAck = %q", TxNoAck.String())
	}
	if TxChannelAccessFailure.String() != "CHANNEL_ACCESS_FAILURE" {
		t.Errorf("TxChannelAccessFailure = %q", TxChannelAccessFailure.String())
	}
	if TxAbort.String() != "ABORT" {
		t.Errorf("TxAbort = %q", TxAbort.String())
	}
	if RxSuccess.String() != "SUCCESS" {
		t.Errorf("RxSuccess = %q", RxSuccess.String())
	}
	if RxAbort.String() != "ABORT" {
		t.Errorf("RxAbort = %q", RxAbort.String())
	}
}
