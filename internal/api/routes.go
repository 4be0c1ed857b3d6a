package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/radio-control/rhal/internal/auth"
	"github.com/radio-control/rhal/internal/phy"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Read routes, no auth.
	mux.HandleFunc(apiV1+"/health", s.handleHealth)
	mux.HandleFunc(apiV1+"/state", s.handleState)
	mux.HandleFunc(apiV1+"/capabilities", s.handleCapabilities)
	mux.HandleFunc(apiV1+"/noise-floor", s.handleNoiseFloor)
	mux.HandleFunc(apiV1+"/telemetry", s.handleTelemetry)

	// Control routes move the state machine and require the control
	// scope when a verifier is configured.
	control := func(h http.HandlerFunc) http.HandlerFunc {
		return s.authMW.RequireScope(auth.ScopeControl, h)
	}
	mux.HandleFunc(apiV1+"/enable", control(s.handleEnable))
	mux.HandleFunc(apiV1+"/disable", control(s.handleDisable))
	mux.HandleFunc(apiV1+"/sleep", control(s.handleSleep))
	mux.HandleFunc(apiV1+"/idle", control(s.handleIdle))
	mux.HandleFunc(apiV1+"/receive", control(s.handleReceive))
	mux.HandleFunc(apiV1+"/transmit", control(s.handleTransmit))
	mux.HandleFunc(apiV1+"/filter", s.handleFilter(control))
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed", r.Method))
		return false
	}
	return true
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

// handleState handles GET /state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"state": s.radio.State().String(),
	})
}

// handleCapabilities handles GET /capabilities
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	caps := s.radio.Capabilities()
	WriteSuccess(w, map[string]interface{}{
		"flags":       caps.Flags.String(),
		"ackTimeout":  caps.Flags.HasAckTimeout(),
		"minPowerDbm": caps.MinPowerDbm,
		"maxPowerDbm": caps.MaxPowerDbm,
	})
}

// handleNoiseFloor handles GET /noise-floor
func (s *Server) handleNoiseFloor(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	rssi := s.radio.NoiseFloor()
	WriteSuccess(w, map[string]interface{}{
		"rssiDbm": rssi,
		"valid":   rssi != phy.InvalidRSSI,
	})
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "enable", s.radio.Enable)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "disable", s.radio.Disable)
}

func (s *Server) handleSleep(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "sleep", s.radio.Sleep)
}

func (s *Server) handleIdle(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "idle", s.radio.Idle)
}

// handleTransition handles the argument-free POST transitions.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, name string, op func(ctx context.Context) error) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := op(r.Context()); err != nil {
		WriteRadioError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"action": name,
		"state":  s.radio.State().String(),
	})
}

// handleReceive handles POST /receive {"channel": n}
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Channel uint8 `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}

	if err := s.radio.Receive(r.Context(), phy.Channel(req.Channel)); err != nil {
		WriteRadioError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"state":   s.radio.State().String(),
		"channel": req.Channel,
	})
}

// handleTransmit handles POST /transmit {"psdu": hex, "channel": n, "powerDbm": p}
func (s *Server) handleTransmit(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		PSDU     string `json:"psdu"`
		Channel  uint8  `json:"channel"`
		PowerDbm int8   `json:"powerDbm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}

	psdu, err := hex.DecodeString(req.PSDU)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "psdu must be a hex string")
		return
	}

	buf := s.radio.TransmitBuffer()
	if err := buf.SetPSDU(psdu); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_ARGS", err.Error())
		return
	}
	buf.Channel = phy.Channel(req.Channel)
	buf.Power = req.PowerDbm

	if err := s.radio.Transmit(r.Context()); err != nil {
		WriteRadioError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"state": s.radio.State().String(),
	})
}

// handleFilter handles GET and POST /filter. Reads are open, writes go
// through the control middleware.
func (s *Server) handleFilter(control func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	post := control(s.handleFilterUpdate)
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			WriteSuccess(w, map[string]interface{}{
				"panId":        fmt.Sprintf("0x%04X", uint16(s.radio.PanID())),
				"shortAddress": fmt.Sprintf("0x%04X", uint16(s.radio.ShortAddress())),
				"extAddress":   s.radio.ExtendedAddress().String(),
			})
		case http.MethodPost:
			post(w, r)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
				fmt.Sprintf("Method %s not allowed", r.Method))
		}
	}
}

// handleFilterUpdate applies the address filter fields present in the
// body. Each field is applied independently with the state machine's
// all-or-nothing semantics per field.
func (s *Server) handleFilterUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PanID        *uint16 `json:"panId"`
		ShortAddress *uint16 `json:"shortAddress"`
		ExtAddress   *string `json:"extAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
		return
	}

	ctx := r.Context()
	if req.PanID != nil {
		if err := s.radio.SetPanID(ctx, phy.PanID(*req.PanID)); err != nil {
			WriteRadioError(w, err)
			return
		}
	}
	if req.ShortAddress != nil {
		if err := s.radio.SetShortAddress(ctx, phy.ShortAddress(*req.ShortAddress)); err != nil {
			WriteRadioError(w, err)
			return
		}
	}
	if req.ExtAddress != nil {
		addr, err := phy.ParseExtAddress(*req.ExtAddress)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "INVALID_ARGS", err.Error())
			return
		}
		if err := s.radio.SetExtendedAddress(ctx, addr); err != nil {
			WriteRadioError(w, err)
			return
		}
	}

	WriteSuccess(w, map[string]interface{}{
		"panId":        fmt.Sprintf("0x%04X", uint16(s.radio.PanID())),
		"shortAddress": fmt.Sprintf("0x%04X", uint16(s.radio.ShortAddress())),
		"extAddress":   s.radio.ExtendedAddress().String(),
	})
}

// handleTelemetry handles GET /telemetry as a Server-Sent Events stream.
// Clients resume from Last-Event-ID or the since query parameter.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Streaming unsupported")
		return
	}

	var sinceID int64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		sinceID, _ = strconv.ParseInt(v, 10, 64)
	} else if v := r.URL.Query().Get("since"); v != "" {
		sinceID, _ = strconv.ParseInt(v, 10, 64)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.hub.Subscribe(sinceID)
	defer sub.Close()

	for {
		select {
		case ev := <-sub.Events:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
			flusher.Flush()
		case <-sub.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}
