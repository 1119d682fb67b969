package protocol

import "fmt"

// Pulse is the classification of one falling-edge-to-falling-edge period
type Pulse uint8

const (
	PulseNoise Pulse = iota
	PulseStart
	PulseOne
	PulseZero
)

func (p Pulse) String() string {
	switch p {
	case PulseStart:
		return "START"
	case PulseOne:
		return "ONE"
	case PulseZero:
		return "ZERO"
	default:
		return "NOISE"
	}
}

// Default tolerance parameters. Uncalibrated internal oscillators drift up
// to 10%; delayMicroseconds style busy-waits add roughly 30us.
const (
	DefaultCalibrationErrorPct = 10
	DefaultTimingOverheadUS    = 30
)

// Band is an inclusive period range
type Band struct {
	Min uint32
	Max uint32
}

// Contains reports whether period lies inside the band, bounds included
func (b Band) Contains(period uint32) bool {
	return period >= b.Min && period <= b.Max
}

func (b Band) String() string {
	return fmt.Sprintf("%d..%dus", b.Min, b.Max)
}

// Codec maps bits to pulse periods and periods back to pulses.
// It is immutable after NewCodec so the interrupt handler can share it.
type Codec struct {
	timing Timing

	start Band
	one   Band
	zero  Band
}

// NewCodec computes the classification bands for a preset. Each band is
// period ± (period*calibrationErrorPct/100 + overheadUS); the START upper
// bound uses StartMaxError instead.
func NewCodec(t Timing, calibrationErrorPct, overheadUS uint32) *Codec {
	c := &Codec{timing: t}
	c.start = Band{
		Min: sub(t.Start, tolerance(t.Start, calibrationErrorPct, overheadUS)),
		Max: t.Start + t.StartMaxError,
	}
	c.one = symmetric(t.One, tolerance(t.One, calibrationErrorPct, overheadUS))
	c.zero = symmetric(t.Zero, tolerance(t.Zero, calibrationErrorPct, overheadUS))
	return c
}

func tolerance(period, pct, overhead uint32) uint32 {
	return period*pct/100 + overhead
}

func symmetric(period, tol uint32) Band {
	return Band{Min: sub(period, tol), Max: period + tol}
}

// sub is a saturating subtraction
func sub(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

// Timing returns the preset the codec was built from
func (c *Codec) Timing() Timing {
	return c.timing
}

// StartBand returns the START classification band
func (c *Codec) StartBand() Band { return c.start }

// OneBand returns the ONE classification band
func (c *Codec) OneBand() Band { return c.one }

// ZeroBand returns the ZERO classification band
func (c *Codec) ZeroBand() Band { return c.zero }

// Classify assigns a period to exactly one pulse kind. START is tested
// first, then ONE, then ZERO; everything else is noise.
func (c *Codec) Classify(period uint32) Pulse {
	switch {
	case c.start.Contains(period):
		return PulseStart
	case c.one.Contains(period):
		return PulseOne
	case c.zero.Contains(period):
		return PulseZero
	default:
		return PulseNoise
	}
}

// EncodeBit returns the full period used to send bit
func (c *Codec) EncodeBit(bit bool) uint32 {
	if bit {
		return c.timing.One
	}
	return c.timing.Zero
}

// LowDuration returns how long the line is held LOW to send bit.
// The HIGH segment that follows is always Timing.High.
func (c *Codec) LowDuration(bit bool) uint32 {
	return c.EncodeBit(bit) - c.timing.High
}

// StartLowDuration returns the LOW segment of the START pulse
func (c *Codec) StartLowDuration() uint32 {
	return c.timing.Start - c.timing.High
}

// Validate checks that the preset is self-consistent and that the bands
// are disjoint in START > ONE > ZERO order
func (c *Codec) Validate() error {
	t := c.timing
	if t.High == 0 || t.Zero <= t.High || t.One <= t.Zero || t.Start <= t.One {
		return fmt.Errorf("%w: preset %q needs start > one > zero > high > 0", ErrInvalidTiming, t.Name)
	}
	if c.zero.Min == 0 {
		return fmt.Errorf("%w: preset %q zero band reaches 0us", ErrInvalidTiming, t.Name)
	}
	if c.zero.Max >= c.one.Min {
		return fmt.Errorf("%w: preset %q zero %d..%d vs one %d..%d",
			ErrOverlappingBands, t.Name, c.zero.Min, c.zero.Max, c.one.Min, c.one.Max)
	}
	if c.one.Max >= c.start.Min {
		return fmt.Errorf("%w: preset %q one %d..%d vs start %d..%d",
			ErrOverlappingBands, t.Name, c.one.Min, c.one.Max, c.start.Min, c.start.Max)
	}
	return nil
}
