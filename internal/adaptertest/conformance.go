// Package adaptertest provides a vendor-agnostic conformance suite for
// transceiver backends.
//
// A backend passes when its lifecycle operations, argument validation,
// error normalization, and completion delivery all behave the way the
// state machine expects. New backends run the suite from one test:
//
//	adaptertest.RunConformance(t, "mybackend", newTransceiver, expectations)
package adaptertest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/frame"
	"github.com/radio-control/rhal/internal/phy"
)

// Expectations describe what the suite may assume about a backend.
type Expectations struct {
	// MinPowerDbm and MaxPowerDbm bound the power range the backend
	// must accept for transmit.
	MinPowerDbm int8
	MaxPowerDbm int8

	// CompletionTimeout bounds how long the suite waits for a
	// ReceiveDone or TransmitDone after arming. Zero means 2s.
	CompletionTimeout time.Duration

	// Loopback is true when the backend delivers a transmit completion
	// without external stimulus (simulators). Hardware-backed adapters
	// without a test harness leave it false to skip completion tests.
	Loopback bool
}

// Result is the outcome of one conformance check.
type Result struct {
	Name     string
	Passed   bool
	Error    string
	Duration time.Duration
}

// Report collects results for the whole run.
type Report struct {
	Backend string
	Results []Result
	Passed  int
	Failed  int
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	if res.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

// collector captures completions for the suite.
type collector struct {
	rx chan rxEvent
	tx chan txEvent
}

type rxEvent struct {
	frame  frame.Frame
	status adapter.RxStatus
}

type txEvent struct {
	framePending bool
	status       adapter.TxStatus
}

func newCollector() *collector {
	return &collector{
		rx: make(chan rxEvent, 8),
		tx: make(chan txEvent, 8),
	}
}

func (c *collector) ReceiveDone(f *frame.Frame, status adapter.RxStatus) {
	ev := rxEvent{status: status}
	if f != nil {
		ev.frame = *f
	}
	c.rx <- ev
}

func (c *collector) TransmitDone(framePending bool, status adapter.TxStatus) {
	c.tx <- txEvent{framePending: framePending, status: status}
}

// RunConformance runs the complete suite against a fresh backend per
// check. newTransceiver must return an unopened, uninitialized backend.
func RunConformance(t *testing.T, backend string, newTransceiver func() adapter.ITransceiver, exp Expectations) {
	t.Helper()

	if exp.CompletionTimeout == 0 {
		exp.CompletionTimeout = 2 * time.Second
	}

	report := &Report{Backend: backend}

	runLifecycleChecks(t, newTransceiver, report)
	runCapabilityChecks(t, newTransceiver, exp, report)
	runArgumentChecks(t, newTransceiver, report)
	runFilterChecks(t, newTransceiver, report)
	if exp.Loopback {
		runCompletionChecks(t, newTransceiver, exp, report)
	}

	printReport(t, report)

	if report.Failed > 0 {
		t.Fatalf("%s conformance failed: %d/%d checks passed",
			backend, report.Passed, report.Passed+report.Failed)
	}
}

// check runs one named conformance step and records its outcome.
func check(report *Report, name string, fn func() error) {
	start := time.Now()
	err := fn()
	res := Result{Name: name, Duration: time.Since(start), Passed: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	report.add(res)
}

// bringUp opens and initializes a backend with the collector attached.
func bringUp(trx adapter.ITransceiver, c *collector) error {
	trx.Attach(c)
	if err := trx.Init(context.Background()); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return nil
}

func runLifecycleChecks(t *testing.T, newTransceiver func() adapter.ITransceiver, report *Report) {
	t.Helper()
	ctx := context.Background()

	check(report, "Lifecycle_InitOnce", func() error {
		trx := newTransceiver()
		defer trx.Close()
		return bringUp(trx, newCollector())
	})

	check(report, "Lifecycle_PowerCycle", func() error {
		trx := newTransceiver()
		defer trx.Close()
		if err := bringUp(trx, newCollector()); err != nil {
			return err
		}
		if err := trx.PowerOn(ctx); err != nil {
			return fmt.Errorf("power on: %w", err)
		}
		if err := trx.Sleep(ctx); err != nil {
			return fmt.Errorf("sleep: %w", err)
		}
		if err := trx.Idle(ctx); err != nil {
			return fmt.Errorf("idle: %w", err)
		}
		return trx.PowerOff(ctx)
	})

	check(report, "Lifecycle_OpsBeforeInit", func() error {
		trx := newTransceiver()
		defer trx.Close()
		if err := trx.PowerOn(ctx); err == nil {
			return fmt.Errorf("power on before init succeeded")
		}
		return nil
	})

	check(report, "Lifecycle_CloseIdempotent", func() error {
		trx := newTransceiver()
		if err := bringUp(trx, newCollector()); err != nil {
			return err
		}
		trx.Close()
		trx.Close()
		return nil
	})
}

func runCapabilityChecks(t *testing.T, newTransceiver func() adapter.ITransceiver, exp Expectations, report *Report) {
	t.Helper()

	check(report, "Capabilities_PowerRange", func() error {
		trx := newTransceiver()
		defer trx.Close()
		if err := bringUp(trx, newCollector()); err != nil {
			return err
		}
		caps := trx.Capabilities()
		if caps.MinPowerDbm > caps.MaxPowerDbm {
			return fmt.Errorf("min power %d above max %d", caps.MinPowerDbm, caps.MaxPowerDbm)
		}
		if caps.MinPowerDbm > exp.MinPowerDbm || caps.MaxPowerDbm < exp.MaxPowerDbm {
			return fmt.Errorf("reported range [%d, %d] does not cover expected [%d, %d]",
				caps.MinPowerDbm, caps.MaxPowerDbm, exp.MinPowerDbm, exp.MaxPowerDbm)
		}
		return nil
	})

	check(report, "Capabilities_NoiseFloor", func() error {
		trx := newTransceiver()
		defer trx.Close()
		if err := bringUp(trx, newCollector()); err != nil {
			return err
		}
		if err := trx.PowerOn(context.Background()); err != nil {
			return err
		}
		v := trx.NoiseFloor()
		if v == -128 {
			return fmt.Errorf("noise floor returned raw -128 instead of the invalid sentinel")
		}
		return nil
	})
}

func runArgumentChecks(t *testing.T, newTransceiver func() adapter.ITransceiver, report *Report) {
	t.Helper()
	ctx := context.Background()

	check(report, "Arguments_ReceiveBadChannel", func() error {
		trx := newTransceiver()
		defer trx.Close()
		if err := bringUp(trx, newCollector()); err != nil {
			return err
		}
		if err := trx.PowerOn(ctx); err != nil {
			return err
		}
		for _, ch := range []phy.Channel{0, 10, 27, 255} {
			err := trx.ArmReceive(ctx, ch)
			if err == nil {
				return fmt.Errorf("arm receive on channel %d succeeded", ch)
			}
			if !errors.Is(adapter.NormalizeVendorErrorWithVendor(err, trx.Vendor()), adapter.ErrInvalidArgs) {
				return fmt.Errorf("channel %d: expected INVALID_ARGS, got %v", ch, err)
			}
		}
		return nil
	})

	check(report, "Arguments_TransmitBadFrame", func() error {
		trx := newTransceiver()
		defer trx.Close()
		if err := bringUp(trx, newCollector()); err != nil {
			return err
		}
		if err := trx.PowerOn(ctx); err != nil {
			return err
		}
		long := make([]byte, phy.MaxPHYPacketSize+1)
		err := trx.Transmit(ctx, long, 11, 0)
		if err == nil {
			return fmt.Errorf("oversize transmit succeeded")
		}
		if !errors.Is(adapter.NormalizeVendorErrorWithVendor(err, trx.Vendor()), adapter.ErrInvalidArgs) {
			return fmt.Errorf("expected INVALID_ARGS, got %v", err)
		}
		return nil
	})
}

func runFilterChecks(t *testing.T, newTransceiver func() adapter.ITransceiver, report *Report) {
	t.Helper()
	ctx := context.Background()

	check(report, "Filter_Setters", func() error {
		trx := newTransceiver()
		defer trx.Close()
		if err := bringUp(trx, newCollector()); err != nil {
			return err
		}
		if err := trx.SetPanID(ctx, 0x1234); err != nil {
			return fmt.Errorf("set pan id: %w", err)
		}
		if err := trx.SetShortAddress(ctx, 0xABCD); err != nil {
			return fmt.Errorf("set short address: %w", err)
		}
		ext, _ := phy.ParseExtAddress("1122334455667788")
		if err := trx.SetExtendedAddress(ctx, ext); err != nil {
			return fmt.Errorf("set extended address: %w", err)
		}
		return nil
	})
}

func runCompletionChecks(t *testing.T, newTransceiver func() adapter.ITransceiver, exp Expectations, report *Report) {
	t.Helper()
	ctx := context.Background()

	check(report, "Completion_TransmitDelivered", func() error {
		trx := newTransceiver()
		defer trx.Close()
		c := newCollector()
		if err := bringUp(trx, c); err != nil {
			return err
		}
		if err := trx.PowerOn(ctx); err != nil {
			return err
		}
		psdu := []byte{0x41, 0x88, 0x01, 0x34, 0x12}
		if err := trx.Transmit(ctx, psdu, 11, 0); err != nil {
			return fmt.Errorf("transmit: %w", err)
		}
		select {
		case <-c.tx:
			return nil
		case <-time.After(exp.CompletionTimeout):
			return fmt.Errorf("no transmit completion within %s", exp.CompletionTimeout)
		}
	})
}

func printReport(t *testing.T, report *Report) {
	t.Helper()
	t.Logf("conformance report for %s: %d passed, %d failed",
		report.Backend, report.Passed, report.Failed)
	for _, res := range report.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		t.Logf("  %-32s %s (%s) %s", res.Name, status, res.Duration.Truncate(time.Microsecond), res.Error)
	}
}
