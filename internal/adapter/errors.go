// Table-driven normalization of vendor driver errors to the radio error
// taxonomy, so the core never has to parse vendor-specific messages.
package adapter

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized driver error codes.
var (
	// ErrFailed is a generic hardware-level failure to reach a requested
	// state.
	ErrFailed = errors.New("FAIL")

	// ErrInvalidArgs means a caller-supplied parameter was outside the
	// protocol range.
	ErrInvalidArgs = errors.New("INVALID_ARGS")
)

// VendorMap defines the error token mapping for a specific vendor driver.
type VendorMap struct {
	InvalidArgs []string // Tokens that map to INVALID_ARGS
	Failed      []string // Tokens that map to FAIL
}

// VendorErrorMappings holds the deterministic mapping tables per vendor.
// Unknown tokens map to FAIL; unknown vendors fall back to "generic".
var VendorErrorMappings = map[string]VendorMap{
	"ncp": {
		InvalidArgs: []string{
			"CHANNEL_OUT_OF_RANGE",
			"INVALID_CHANNEL",
			"INVALID_POWER_LEVEL",
			"TX_POWER_OUT_OF_RANGE",
			"FRAME_TOO_LONG",
			"INVALID_PARAMETER",
		},
		Failed: []string{
			"HARDWARE_FAULT",
			"PLL_LOCK_FAILED",
			"NOT_READY",
			"TIMEOUT",
		},
	},
	"generic": {
		InvalidArgs: []string{
			"OUT_OF_RANGE",
			"INVALID_PARAMETER",
			"INVALID_ARGS",
			"BAD_VALUE",
			"RANGE_ERROR",
		},
		Failed: []string{
			"FAIL",
			"FAULT",
			"NOT_READY",
			"TIMEOUT",
		},
	},
}

// VendorError wraps a vendor error with its normalized code, preserving the
// original for diagnostics.
type VendorError struct {
	Code     error // Normalized code
	Original error // Vendor error
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%v (vendor: %v)", e.Code, e.Original)
}

func (e *VendorError) Unwrap() error {
	return e.Code
}

// NormalizeVendorError maps a vendor error using the generic table.
func NormalizeVendorError(vendorErr error) error {
	return NormalizeVendorErrorWithVendor(vendorErr, "generic")
}

// NormalizeVendorErrorWithVendor maps a vendor error using a specific
// vendor's table. Errors already carrying a normalized code pass through.
func NormalizeVendorErrorWithVendor(vendorErr error, vendorID string) error {
	if vendorErr == nil {
		return nil
	}
	if errors.Is(vendorErr, ErrFailed) || errors.Is(vendorErr, ErrInvalidArgs) {
		return vendorErr
	}

	return &VendorError{
		Code:     mapVendorErrorToCode(vendorErr.Error(), vendorID),
		Original: vendorErr,
	}
}

// mapVendorErrorToCode maps a vendor error message to a normalized code
// using exact token matching.
func mapVendorErrorToCode(msg string, vendorID string) error {
	vendorMap, exists := VendorErrorMappings[vendorID]
	if !exists {
		vendorMap = VendorErrorMappings["generic"]
	}

	upperMsg := strings.ToUpper(msg)

	for _, token := range vendorMap.InvalidArgs {
		if strings.Contains(upperMsg, token) {
			return ErrInvalidArgs
		}
	}

	for _, token := range vendorMap.Failed {
		if strings.Contains(upperMsg, token) {
			return ErrFailed
		}
	}

	return ErrFailed
}
