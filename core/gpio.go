// Activity indicator for boards with a status LED
package core

// Indicator flags
const (
	IF_ON       = 1 << 0 // Current pin state
	IF_INVERTED = 1 << 1 // Pin is active low
)

// Indicator drives an activity LED. Flash turns it on and a scheduler timer
// turns it off again, so the foreground loop never waits on the LED.
type Indicator struct {
	Pin   GPIOPin
	Flags uint8

	gpio  GPIODriver
	sched *Scheduler
	timer Timer

	// Flashes counts Flash calls
	Flashes uint32
}

// NewIndicator configures pin as an output, initially off
func NewIndicator(gpio GPIODriver, pin GPIOPin, sched *Scheduler, activeLow bool) (*Indicator, error) {
	ind := &Indicator{Pin: pin, gpio: gpio, sched: sched}
	if activeLow {
		ind.Flags |= IF_INVERTED
	}
	ind.timer.Handler = ind.expire
	if err := gpio.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	ind.set(false)
	return ind, nil
}

func (i *Indicator) set(on bool) {
	level := on
	if i.Flags&IF_INVERTED != 0 {
		level = !level
	}
	// Pin errors cannot happen on a configured output
	_ = i.gpio.SetPin(i.Pin, level)
	if on {
		i.Flags |= IF_ON
	} else {
		i.Flags &^= IF_ON
	}
}

func (i *Indicator) expire(t *Timer) uint8 {
	i.set(false)
	return SF_DONE
}

// Flash lights the indicator for durationUS. A flash while lit extends it.
func (i *Indicator) Flash(durationUS uint32) {
	i.Flashes++
	i.sched.Cancel(&i.timer)
	if i.Flags&IF_ON == 0 {
		i.set(true)
	}
	i.timer.WakeTime = i.sched.clock.Micros() + durationUS
	i.sched.Schedule(&i.timer)
}

// On reports whether the indicator is lit
func (i *Indicator) On() bool {
	return i.Flags&IF_ON != 0
}
