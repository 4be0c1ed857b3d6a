// Package api exposes the radio over a small HTTP control surface.
//
// All endpoints live under /api/v1 and answer with a unified JSON
// envelope. Read routes are open; routes that move the state machine
// require a bearer token with the control scope when authentication is
// configured. Telemetry is streamed as Server-Sent Events with resume
// via Last-Event-ID.
package api
