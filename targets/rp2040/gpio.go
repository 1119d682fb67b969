//go:build rp2040 || rp2350

package main

import (
	"machine"

	"tinyrf/core"
)

// RPGPIODriver implements core.EdgeDriver for the RP2040
type RPGPIODriver struct {
	// Track configured pins to prevent conflicts
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	// Check if already configured
	if _, exists := d.configuredPins[pin]; exists {
		// Already configured, this is OK
		return nil
	}

	machinePin := d.pinNumberToMachinePin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configuredPins[pin] = machinePin
	return nil
}

// ConfigureInput configures a pin as a floating input. The receiver module
// drives the line itself.
func (d *RPGPIODriver) ConfigureInput(pin core.GPIOPin) error {
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}

	machinePin := d.pinNumberToMachinePin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinInput})
	d.configuredPins[pin] = machinePin
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		// Pin isn't configured - configure it first
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}

	machinePin.Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		// Pin not configured
		return false, nil
	}

	return machinePin.Get(), nil
}

// AttachFallingEdge runs handler from the GPIO interrupt on every falling
// edge of pin
func (d *RPGPIODriver) AttachFallingEdge(pin core.GPIOPin, handler func()) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureInput(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}
	return machinePin.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		handler()
	})
}

// DetachInterrupt removes the edge handler of pin
func (d *RPGPIODriver) DetachInterrupt(pin core.GPIOPin) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return nil
	}
	return machinePin.SetInterrupt(machine.PinFalling, nil)
}

// pinNumberToMachinePin converts a pin to a machine.Pin
// For RP2040, pins map directly to GPIO numbers
func (d *RPGPIODriver) pinNumberToMachinePin(pin core.GPIOPin) machine.Pin {
	return machine.Pin(pin)
}
