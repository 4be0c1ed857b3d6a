// Package adapter defines the ITransceiver interface: the stable southbound
// contract between the radio core and a hardware transceiver driver.
//
// Primitives are synchronous-to-request but asynchronous-to-complete for
// receive and transmit; completions arrive later on the attached
// EventHandler from a driver-controlled goroutine.
package adapter
