// Package phy defines IEEE 802.15.4 PHY constants and value types.
//
// All units and ranges are fixed by the 2.4 GHz O-QPSK PHY
// (IEEE 802.15.4-2006): channels 11-26, packets up to 127 octets,
// power in dBm, addresses as 16-bit short / 64-bit extended values.
package phy
