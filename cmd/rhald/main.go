// Package main implements the radio HAL daemon entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/radio-control/rhal/internal/adapter"
	"github.com/radio-control/rhal/internal/adapter/simulated"
	"github.com/radio-control/rhal/internal/adapter/uart"
	"github.com/radio-control/rhal/internal/api"
	"github.com/radio-control/rhal/internal/audit"
	"github.com/radio-control/rhal/internal/auth"
	"github.com/radio-control/rhal/internal/config"
	"github.com/radio-control/rhal/internal/phy"
	"github.com/radio-control/rhal/internal/radio"
	"github.com/radio-control/rhal/internal/telemetry"
)

const Version = "1.0.0"

// stateObserver publishes committed state transitions to the hub.
type stateObserver struct {
	hub *telemetry.Hub
}

func (o *stateObserver) StateChanged(from, to radio.State, cause string) {
	o.hub.Publish("state", map[string]interface{}{
		"from":  from.String(),
		"to":    to.String(),
		"cause": cause,
	})
}

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "", "path to YAML configuration file")
		addr        = pflag.String("addr", "", "HTTP listen address (overrides config)")
		backend     = pflag.String("backend", "", "radio backend: simulated or uart (overrides config)")
		showVersion = pflag.BoolP("version", "V", false, "print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Printf("rhald v%s\n", Version)
		return
	}

	log.Printf("Starting radio HAL daemon v%s", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}
	if *backend != "" {
		cfg.Radio.Backend = *backend
		if err := config.Validate(cfg); err != nil {
			log.Fatalf("Configuration validation failed: %v", err)
		}
	}

	auditLogger, err := audit.NewLogger(cfg.Log.Dir, audit.Options{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	log.Printf("Audit log: %s", cfg.Log.Dir)

	hub := telemetry.NewHub(cfg.Telemetry.BufferSize, cfg.Telemetry.HeartbeatInterval)

	trx, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", cfg.Radio.Backend, err)
	}
	log.Printf("Radio backend: %s", cfg.Radio.Backend)

	sink := radio.NewChannelSink(cfg.Telemetry.SinkDepth)
	r := radio.New(trx, sink)
	r.SetAuditLogger(auditLogger)
	r.SetObserver(&stateObserver{hub: hub})

	pumpDone := make(chan struct{})
	go completionPump(r, sink, hub, pumpDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bringUp(ctx, r, cfg); err != nil {
		cancel()
		log.Fatalf("Radio bring-up failed: %v", err)
	}
	cancel()
	log.Printf("Radio is %s on channel %d", r.State(), cfg.Radio.Channel)

	var verifier *auth.Verifier
	if cfg.API.AuthSecret != "" {
		verifier, err = auth.NewVerifier(cfg.API.AuthSecret)
		if err != nil {
			log.Fatalf("Failed to create token verifier: %v", err)
		}
	} else {
		log.Printf("WARNING: API authentication disabled")
	}

	server := api.NewServer(r, hub, auth.NewMiddleware(verifier))
	serverErr := make(chan error, 1)
	if cfg.API.Enabled {
		go func() {
			serverErr <- server.Start(cfg.API.Addr)
		}()
		log.Printf("API listening on %s", cfg.API.Addr)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, shutting down", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := server.Stop(stopCtx); err != nil {
		log.Printf("Error stopping API server: %v", err)
	}
	if err := r.Disable(stopCtx); err != nil {
		log.Printf("Error disabling radio: %v", err)
	}
	if err := trx.Close(); err != nil {
		log.Printf("Error closing backend: %v", err)
	}
	sink.Close()
	<-pumpDone
	hub.Stop()
	if err := auditLogger.Close(); err != nil {
		log.Printf("Error closing audit logger: %v", err)
	}

	log.Printf("Shutdown complete")
}

// openBackend builds the configured transceiver.
func openBackend(cfg *config.Config) (adapter.ITransceiver, error) {
	switch cfg.Radio.Backend {
	case config.BackendSimulated:
		return simulated.NewTransceiver(), nil
	case config.BackendUART:
		return uart.Open(cfg.UART.Device, cfg.UART.Baud)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Radio.Backend)
	}
}

// bringUp initializes and enables the radio, applies the configured
// address filter, and seeds the transmit buffer defaults.
func bringUp(ctx context.Context, r *radio.Radio, cfg *config.Config) error {
	if err := r.Init(ctx); err != nil {
		return err
	}
	if err := r.Enable(ctx); err != nil {
		return err
	}

	if err := r.SetPanID(ctx, phy.PanID(cfg.Radio.PanID)); err != nil {
		return err
	}
	if cfg.Radio.ShortAddress != 0 {
		if err := r.SetShortAddress(ctx, phy.ShortAddress(cfg.Radio.ShortAddress)); err != nil {
			return err
		}
	}
	if cfg.Radio.ExtAddress != "" {
		ext, err := phy.ParseExtAddress(cfg.Radio.ExtAddress)
		if err != nil {
			return err
		}
		if err := r.SetExtendedAddress(ctx, ext); err != nil {
			return err
		}
	}

	buf := r.TransmitBuffer()
	buf.Channel = phy.Channel(cfg.Radio.Channel)
	buf.Power = cfg.Radio.PowerDbm
	return nil
}

// completionPump forwards receive and transmit completions to the hub.
func completionPump(r *radio.Radio, sink *radio.ChannelSink, hub *telemetry.Hub, done chan<- struct{}) {
	defer close(done)

	rx, tx := sink.Rx(), sink.Tx()
	for rx != nil || tx != nil {
		select {
		case res, ok := <-rx:
			if !ok {
				rx = nil
				continue
			}
			hub.Publish("receiveDone", map[string]interface{}{
				"status":  res.Status.String(),
				"length":  res.Frame.Length,
				"channel": uint8(res.Frame.Channel),
				"lqi":     res.Frame.LQI,
			})
		case res, ok := <-tx:
			if !ok {
				tx = nil
				continue
			}
			hub.Publish("transmitDone", map[string]interface{}{
				"status":       res.Status.String(),
				"framePending": res.FramePending,
			})
		}
	}
}
