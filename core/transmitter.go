package core

import "tinyrf/protocol"

// PulseWriter drives the transmit line. Every pulse is a LOW segment
// followed by a HIGH segment; the receiver measures falling edge to falling
// edge.
type PulseWriter interface {
	// Pulse holds the line LOW for lowUS then HIGH for highUS
	Pulse(lowUS, highUS uint32)

	// Idle drives the line LOW and holds it for holdUS. The falling edge
	// closes the last pulse of a transmission.
	Idle(holdUS uint32)
}

// Transmitter serializes payloads into pulse trains. Send blocks for the
// whole transmission.
type Transmitter struct {
	cfg    Config
	codec  *protocol.Codec
	layout protocol.FrameLayout
	w      PulseWriter
	seq    byte
	frame  [protocol.MaxStoredFrame]byte
}

// NewTransmitter creates a transmitter writing to w
func NewTransmitter(cfg Config, w PulseWriter) (*Transmitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transmitter{
		cfg:    cfg,
		codec:  cfg.Codec(),
		layout: cfg.Layout(),
		w:      w,
	}, nil
}

// Config returns the transmitter configuration
func (t *Transmitter) Config() Config {
	return t.cfg
}

// MaxPayload returns the largest payload Send accepts
func (t *Transmitter) MaxPayload() int {
	return t.layout.MaxPayload()
}

// Sequence returns the sequence number the next Send will use
func (t *Transmitter) Sequence() byte {
	return t.seq
}

// Send transmits payload with the current sequence number, then advances it
func (t *Transmitter) Send(payload []byte) error {
	if err := t.SendSeq(payload, t.seq); err != nil {
		return err
	}
	if t.layout.Sequence {
		t.seq++
	}
	return nil
}

// SendMulti transmits payload times times under one sequence number so the
// receiver can drop the repeats, waiting gapUS of idle line between them
func (t *Transmitter) SendMulti(payload []byte, times int, gapUS uint32) error {
	for i := 0; i < times; i++ {
		if err := t.SendSeq(payload, t.seq); err != nil {
			return err
		}
		t.w.Idle(gapUS)
	}
	if t.layout.Sequence {
		t.seq++
	}
	return nil
}

// SendSeq transmits payload with an explicit sequence number and leaves the
// transmitter's own counter alone
func (t *Transmitter) SendSeq(payload []byte, seq byte) error {
	// Build the frame, check byte included, before the first pulse so no
	// computation stretches the timing
	frame, err := t.layout.AppendFrame(t.frame[:0], payload, seq)
	if err != nil {
		return err
	}

	if t.cfg.SuppressInterrupts {
		g := MaskInterrupts()
		defer g.Restore()
	}

	timing := t.codec.Timing()
	for i := uint8(0); i < timing.Preamble; i++ {
		t.writeByte(0x00)
	}
	t.w.Pulse(t.codec.StartLowDuration(), timing.High)
	for _, b := range frame {
		t.writeByte(b)
	}
	t.w.Idle(0)

	if t.cfg.EOT&EOTInTX != 0 {
		half := timing.High / 2
		for i := 0; i < protocol.EOTBurstPulses; i++ {
			t.w.Pulse(half, half)
		}
		t.w.Idle(0)
	}
	return nil
}

// writeByte sends one byte LSB first
func (t *Transmitter) writeByte(b byte) {
	high := t.codec.Timing().High
	for i := 0; i < protocol.BitsPerByte; i++ {
		t.w.Pulse(t.codec.LowDuration(b&1 != 0), high)
		b >>= 1
	}
}

// GPIOPulseWriter bit-bangs pulses on a GPIO pin using a busy-wait delay
type GPIOPulseWriter struct {
	gpio  GPIODriver
	pin   GPIOPin
	delay Delayer
}

// NewGPIOPulseWriter configures pin as an output, driven LOW
func NewGPIOPulseWriter(gpio GPIODriver, pin GPIOPin, delay Delayer) (*GPIOPulseWriter, error) {
	if err := gpio.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	if err := gpio.SetPin(pin, false); err != nil {
		return nil, err
	}
	return &GPIOPulseWriter{gpio: gpio, pin: pin, delay: delay}, nil
}

func (w *GPIOPulseWriter) Pulse(lowUS, highUS uint32) {
	// Pin errors cannot happen on a configured output
	_ = w.gpio.SetPin(w.pin, false)
	w.delay.DelayMicros(lowUS)
	_ = w.gpio.SetPin(w.pin, true)
	w.delay.DelayMicros(highUS)
}

func (w *GPIOPulseWriter) Idle(holdUS uint32) {
	_ = w.gpio.SetPin(w.pin, false)
	if holdUS > 0 {
		w.delay.DelayMicros(holdUS)
	}
}

// LineFramer cuts a byte stream into payloads: one per line, and a line
// longer than max is split into max-byte pieces. Carriage returns are
// dropped.
type LineFramer struct {
	buf []byte
	max int
}

// NewLineFramer creates a framer for payloads of at most max bytes
func NewLineFramer(max int) *LineFramer {
	return &LineFramer{buf: make([]byte, 0, max), max: max}
}

// Feed adds one byte and returns a completed payload, or nil. The payload
// is only valid until the next call.
func (f *LineFramer) Feed(b byte) []byte {
	switch b {
	case '\r':
		return nil
	case '\n':
		if len(f.buf) == 0 {
			return nil
		}
		line := f.buf
		f.buf = f.buf[:0]
		return line
	}
	f.buf = append(f.buf, b)
	if len(f.buf) < f.max {
		return nil
	}
	line := f.buf
	f.buf = f.buf[:0]
	return line
}

// Reset drops a partial line
func (f *LineFramer) Reset() {
	f.buf = f.buf[:0]
}
