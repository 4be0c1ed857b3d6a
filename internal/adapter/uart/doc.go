// Package uart implements the transceiver contract for a radio
// co-processor attached over a serial link.
//
// The wire protocol is a minimal framed command/response exchange with
// unsolicited notifications for receive and transmit completions. At most
// one command is outstanding at a time; notifications may arrive at any
// point and are decoded by a dedicated reader goroutine.
package uart
