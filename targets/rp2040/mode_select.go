//go:build rp2040 || rp2350

package main

import "tinyrf/core"

// Role is what the board does with its radio module
type Role uint8

const (
	// RoleReceiver decodes frames on the MCU and prints them over USB
	RoleReceiver Role = iota
	// RoleTransmitter sends every line received over USB as one message
	RoleTransmitter
	// RoleSniffer streams raw pulse periods to the host for decoding there
	RoleSniffer
)

// role can be overridden at link time:
//
//	tinygo flash -target pico -ldflags="-X main.role=sniffer" ./targets/rp2040
var role = "receiver"

// txDriver picks the transmit writer: "pio" or "gpio" for bit-banging.
//
//	tinygo flash -target pico -ldflags="-X main.role=transmitter -X main.txDriver=gpio" ./targets/rp2040
var txDriver = "pio"

// Pin assignment for a Pico with the modules on GP2 (TX) and GP3 (RX)
const (
	txPin core.GPIOPin = 2
	rxPin core.GPIOPin = 3
)

// ModeConfig determines which mode to run
type ModeConfig struct {
	Role Role

	// UsePIO times transmissions with a PIO state machine instead of
	// bit-banging with busy-waits
	UsePIO bool

	Radio core.Config
}

// GetMode returns the current mode configuration
func GetMode() ModeConfig {
	mode := ModeConfig{
		Role:   RoleReceiver,
		UsePIO: txDriver != "gpio",
		Radio:  core.DefaultConfig(),
	}
	switch role {
	case "transmitter":
		mode.Role = RoleTransmitter
		mode.Radio.Pin = txPin
	case "sniffer":
		mode.Role = RoleSniffer
		mode.Radio.Pin = rxPin
	default:
		mode.Radio.Pin = rxPin
	}
	return mode
}
