// Package gpio drives radio modules wired to the GPIO header of a Linux
// single board computer through periph.io.
package gpio

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"tinyrf/core"
)

// EdgePoll bounds how long a watcher blocks in WaitForEdge before checking
// whether it was detached
const EdgePoll = 100 * time.Millisecond

// Driver implements core.EdgeDriver on top of the periph GPIO registry.
// Edge handlers run on a watcher goroutine under core.Interrupt, so they
// are serialized with receiver consumers the same way an MCU interrupt is.
type Driver struct {
	mu       sync.Mutex
	pins     map[core.GPIOPin]gpio.PinIO
	watchers map[core.GPIOPin]*watcher

	// Lookup resolves a pin number; the default asks gpioreg for "GPIO<n>"
	// and then for the bare number
	Lookup func(pin core.GPIOPin) gpio.PinIO
}

type watcher struct {
	stop chan struct{}
	done chan struct{}
}

// Open initializes the periph host drivers and returns a Driver
func Open() (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	return New(), nil
}

// New returns a Driver using whatever pins are already registered
func New() *Driver {
	return &Driver{
		pins:     make(map[core.GPIOPin]gpio.PinIO),
		watchers: make(map[core.GPIOPin]*watcher),
		Lookup:   lookup,
	}
}

func lookup(pin core.GPIOPin) gpio.PinIO {
	if p := gpioreg.ByName("GPIO" + strconv.Itoa(int(pin))); p != nil {
		return p
	}
	return gpioreg.ByName(strconv.Itoa(int(pin)))
}

func (d *Driver) pin(pin core.GPIOPin) (gpio.PinIO, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pins[pin]; ok {
		return p, nil
	}
	p := d.Lookup(pin)
	if p == nil {
		return nil, fmt.Errorf("gpio %d: no such pin", pin)
	}
	d.pins[pin] = p
	return p, nil
}

func (d *Driver) ConfigureOutput(pin core.GPIOPin) error {
	p, err := d.pin(pin)
	if err != nil {
		return err
	}
	if err := p.Out(gpio.Low); err != nil {
		return fmt.Errorf("gpio %d: %w", pin, err)
	}
	return nil
}

func (d *Driver) ConfigureInput(pin core.GPIOPin) error {
	p, err := d.pin(pin)
	if err != nil {
		return err
	}
	if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("gpio %d: %w", pin, err)
	}
	return nil
}

func (d *Driver) SetPin(pin core.GPIOPin, value bool) error {
	p, err := d.pin(pin)
	if err != nil {
		return err
	}
	return p.Out(gpio.Level(value))
}

func (d *Driver) GetPin(pin core.GPIOPin) (bool, error) {
	p, err := d.pin(pin)
	if err != nil {
		return false, err
	}
	return bool(p.Read()), nil
}

// AttachFallingEdge starts a watcher goroutine calling handler for every
// falling edge the kernel reports
func (d *Driver) AttachFallingEdge(pin core.GPIOPin, handler func()) error {
	p, err := d.pin(pin)
	if err != nil {
		return err
	}
	if err := d.DetachInterrupt(pin); err != nil {
		return err
	}
	if err := p.In(gpio.PullNoChange, gpio.FallingEdge); err != nil {
		return fmt.Errorf("gpio %d: %w", pin, err)
	}

	w := &watcher{stop: make(chan struct{}), done: make(chan struct{})}
	d.mu.Lock()
	d.watchers[pin] = w
	d.mu.Unlock()

	go func() {
		defer close(w.done)
		for {
			select {
			case <-w.stop:
				return
			default:
			}
			if p.WaitForEdge(EdgePoll) {
				core.Interrupt(handler)
			}
		}
	}()
	return nil
}

// DetachInterrupt stops the watcher for pin and waits for it to exit
func (d *Driver) DetachInterrupt(pin core.GPIOPin) error {
	d.mu.Lock()
	w, ok := d.watchers[pin]
	delete(d.watchers, pin)
	p := d.pins[pin]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	close(w.stop)
	<-w.done
	return p.In(gpio.PullNoChange, gpio.NoEdge)
}

// Close detaches every watcher
func (d *Driver) Close() error {
	d.mu.Lock()
	pins := make([]core.GPIOPin, 0, len(d.watchers))
	for pin := range d.watchers {
		pins = append(pins, pin)
	}
	d.mu.Unlock()

	var first error
	for _, pin := range pins {
		if err := d.DetachInterrupt(pin); err != nil && first == nil {
			first = err
		}
	}
	return first
}
