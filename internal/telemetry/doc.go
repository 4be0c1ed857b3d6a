// Package telemetry implements the event hub for the radio daemon.
//
// The hub fans radio events (state transitions, completions, heartbeats)
// out to subscribers and keeps a ring buffer of recent events so a
// reconnecting subscriber can resume from the last event ID it saw.
package telemetry
