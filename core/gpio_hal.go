package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid or already in use
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInput configures a pin as a floating digital input; RF
	// receiver modules drive their data line push-pull
	ConfigureInput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// EdgeDriver is implemented by GPIO drivers that can deliver falling-edge
// interrupts. The handler runs in interrupt context.
type EdgeDriver interface {
	GPIODriver

	// AttachFallingEdge calls handler on every falling edge of pin
	AttachFallingEdge(pin GPIOPin, handler func()) error

	// DetachInterrupt stops edge delivery for pin
	DetachInterrupt(pin GPIOPin) error
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

// MustEdgeGPIO returns the configured driver as an EdgeDriver or panics if
// it cannot deliver edges.
func MustEdgeGPIO() EdgeDriver {
	d, ok := MustGPIO().(EdgeDriver)
	if !ok {
		panic("GPIO driver has no edge interrupts")
	}
	return d
}
