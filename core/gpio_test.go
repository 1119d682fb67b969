package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyrf/protocol"
)

// wireGPIO is a GPIODriver whose output pin is wired to its input pin:
// falling edges on the output run the handler attached to the input
type wireGPIO struct {
	tx, rx   GPIOPin
	levels   map[GPIOPin]bool
	outputs  map[GPIOPin]bool
	handler  func()
	attached GPIOPin
}

func newWireGPIO(tx, rx GPIOPin) *wireGPIO {
	return &wireGPIO{
		tx:      tx,
		rx:      rx,
		levels:  make(map[GPIOPin]bool),
		outputs: make(map[GPIOPin]bool),
	}
}

func (w *wireGPIO) ConfigureOutput(pin GPIOPin) error {
	w.outputs[pin] = true
	return nil
}

func (w *wireGPIO) ConfigureInput(pin GPIOPin) error {
	if w.outputs[pin] {
		return errors.New("pin is an output")
	}
	return nil
}

func (w *wireGPIO) SetPin(pin GPIOPin, value bool) error {
	if !w.outputs[pin] {
		return errors.New("pin not configured")
	}
	prev := w.levels[pin]
	w.levels[pin] = value
	if pin == w.tx && prev && !value && w.handler != nil && w.attached == w.rx {
		Interrupt(w.handler)
	}
	return nil
}

func (w *wireGPIO) GetPin(pin GPIOPin) (bool, error) {
	return w.levels[pin], nil
}

func (w *wireGPIO) AttachFallingEdge(pin GPIOPin, handler func()) error {
	w.attached = pin
	w.handler = handler
	return nil
}

func (w *wireGPIO) DetachInterrupt(pin GPIOPin) error {
	w.handler = nil
	return nil
}

func TestGPIOPulseWriterOverWire(t *testing.T) {
	clock := &ManualClock{}
	gpio := newWireGPIO(2, 3)

	rxCfg := DefaultConfig()
	rxCfg.Pin = 3
	rx, err := NewReceiver(rxCfg, clock)
	require.NoError(t, err)
	require.NoError(t, rx.Attach(gpio))

	w, err := NewGPIOPulseWriter(gpio, 2, clock)
	require.NoError(t, err)
	txCfg := DefaultConfig()
	txCfg.Pin = 2
	tx, err := NewTransmitter(txCfg, w)
	require.NoError(t, err)

	require.NoError(t, tx.Send([]byte("over the wire")))
	on, _ := gpio.GetPin(2)
	assert.False(t, on, "line left LOW")

	buf := make([]byte, 32)
	res := rx.GetReceivedData(buf)
	require.Equal(t, protocol.StatusSuccess, res.Status)
	assert.Equal(t, "over the wire", string(buf[:res.N]))

	require.NoError(t, rx.Detach(gpio))
	require.NoError(t, tx.Send([]byte("lost")))
	assert.Equal(t, protocol.StatusNoData, rx.GetReceivedData(buf).Status)
}

// maskedDelay records waits and whether interrupts were masked during them
type maskedDelay struct {
	waits    []uint32
	unmasked int
}

func (d *maskedDelay) DelayMicros(us uint32) {
	if irqLock.TryLock() {
		irqLock.Unlock()
		d.unmasked++
	}
	d.waits = append(d.waits, us)
}

func TestGPIOPulseWriterSlowPresetMasked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timing = protocol.Bitrate240
	cfg.Pin = 2
	cfg.SuppressInterrupts = true

	d := &maskedDelay{}
	w, err := NewGPIOPulseWriter(newWireGPIO(2, 3), 2, d)
	require.NoError(t, err)
	tx, err := NewTransmitter(cfg, w)
	require.NoError(t, err)
	require.NoError(t, tx.Send([]byte{0xA5}))

	// Every segment, the 6ms START LOW included, is waited out masked
	assert.Zero(t, d.unmasked)
	assert.Contains(t, d.waits, cfg.Codec().StartLowDuration())
	assert.Equal(t, uint32(6000), cfg.Codec().StartLowDuration())
}

func TestMustGPIO(t *testing.T) {
	SetGPIODriver(nil)
	assert.Panics(t, func() { MustGPIO() })

	gpio := newWireGPIO(0, 1)
	SetGPIODriver(gpio)
	defer SetGPIODriver(nil)
	assert.Equal(t, gpio, MustEdgeGPIO())
}

func TestIndicatorFlash(t *testing.T) {
	clock := &ManualClock{}
	sched := NewScheduler(clock)
	pins := newWireGPIO(25, 26)
	ind, err := NewIndicator(pins, 25, sched, false)
	require.NoError(t, err)
	assert.False(t, ind.On())
	assert.False(t, pins.levels[25])

	ind.Flash(1000)
	assert.True(t, ind.On())
	assert.True(t, pins.levels[25])

	clock.Advance(600)
	assert.Zero(t, sched.Dispatch())
	ind.Flash(1000)
	assert.Equal(t, 1, sched.Pending(), "second flash reuses the timer")

	clock.Advance(600)
	assert.Zero(t, sched.Dispatch())
	assert.True(t, ind.On())

	clock.Advance(400)
	assert.Equal(t, 1, sched.Dispatch())
	assert.False(t, ind.On())
	assert.False(t, pins.levels[25])
	assert.Equal(t, uint32(2), ind.Flashes)
}

func TestIndicatorActiveLow(t *testing.T) {
	clock := &ManualClock{}
	sched := NewScheduler(clock)
	pins := newWireGPIO(25, 26)
	ind, err := NewIndicator(pins, 25, sched, true)
	require.NoError(t, err)
	assert.True(t, pins.levels[25], "off drives the pin high")

	ind.Flash(10)
	assert.False(t, pins.levels[25])
	clock.Advance(10)
	sched.Dispatch()
	assert.True(t, pins.levels[25])
}
