// Package frame represents IEEE 802.15.4 radio frames exchanged with the
// transceiver.
//
// The transmit frame is a single instance owned by the radio for its whole
// lifetime; callers borrow it, fill it, and request transmission. Received
// frames are transient and only valid for the duration of the completion
// delivery.
package frame
