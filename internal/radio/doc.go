// Package radio implements the radio state machine and frame exchange
// protocol for a single IEEE 802.15.4 transceiver.
//
// The Radio owns the current operational state, validates transition
// legality, and issues hardware effects through an adapter.ITransceiver.
// Requests are non-blocking: receive and transmit return as soon as the
// hardware is armed, and the outcome is reported later through the
// injected CompletionSink, at which point the radio autonomously returns
// to Idle.
package radio
