// Package audit writes the driver action log.
//
// Every state machine action (requests, completions, filter changes) is
// appended as one JSON line to a size-rotated log file, so a field trace
// of a misbehaving radio can be pulled off the device after the fact.
package audit
