package core

import (
	"fmt"

	"tinyrf/protocol"
)

// EOTMode selects which side helps the receiver detect end of transmission.
// The modes are flags and may be combined.
type EOTMode uint8

const (
	// EOTNone relies on the declared frame length and on noise alone
	EOTNone EOTMode = 0
	// EOTInTX makes the transmitter append a short burst of noise pulses
	EOTInTX EOTMode = 1 << 0
	// EOTInRX makes the receiver's consumer force EOT after a silence
	// longer than the START band
	EOTInRX EOTMode = 1 << 1
)

func (m EOTMode) String() string {
	switch m {
	case EOTNone:
		return "none"
	case EOTInTX:
		return "tx"
	case EOTInRX:
		return "rx"
	case EOTInTX | EOTInRX:
		return "both"
	default:
		return "unknown"
	}
}

// ParseEOTMode maps "none", "tx", "rx" or "both" to an EOTMode
func ParseEOTMode(name string) (EOTMode, error) {
	switch name {
	case "none":
		return EOTNone, nil
	case "tx":
		return EOTInTX, nil
	case "rx", "":
		return EOTInRX, nil
	case "both":
		return EOTInTX | EOTInRX, nil
	}
	return EOTNone, fmt.Errorf("unknown EOT mode %q", name)
}

// Config holds everything both ends of a link must agree on plus the local
// resources of one end. It is resolved once at construction.
type Config struct {
	// Timing is the data-rate preset; never mix fields across presets
	Timing protocol.Timing

	// CalibrationErrorPct widens every band by this share of its period
	CalibrationErrorPct uint32

	// TimingOverheadUS widens every band for delay and ISR latency
	TimingOverheadUS uint32

	ErrorCheck protocol.ErrorCheck
	Sequence   bool

	// RingCapacity is the receive ring size in bytes
	RingCapacity int

	EOT EOTMode

	// SuppressInterrupts masks interrupts for a whole transmission
	SuppressInterrupts bool

	// Pin is the TX or RX data pin
	Pin GPIOPin
}

// DefaultConfig returns CRC-8 with sequencing at 1100 bit/s and
// receiver-side EOT
func DefaultConfig() Config {
	return Config{
		Timing:              protocol.DefaultTiming,
		CalibrationErrorPct: protocol.DefaultCalibrationErrorPct,
		TimingOverheadUS:    protocol.DefaultTimingOverheadUS,
		ErrorCheck:          protocol.ErrorCheckCRC8,
		Sequence:            true,
		RingCapacity:        protocol.DefaultRingCapacity,
		EOT:                 EOTInRX,
	}
}

// Layout returns the frame layout implied by the config
func (c Config) Layout() protocol.FrameLayout {
	return protocol.FrameLayout{Check: c.ErrorCheck, Sequence: c.Sequence}
}

// Codec builds the pulse codec for the configured preset and tolerances
func (c Config) Codec() *protocol.Codec {
	return protocol.NewCodec(c.Timing, c.CalibrationErrorPct, c.TimingOverheadUS)
}

// Validate checks the config for consistency
func (c Config) Validate() error {
	if c.CalibrationErrorPct >= 50 {
		return fmt.Errorf("%w: calibration error %d%% too large", protocol.ErrInvalidTiming, c.CalibrationErrorPct)
	}
	if err := c.Codec().Validate(); err != nil {
		return err
	}
	if c.ErrorCheck > protocol.ErrorCheckCRC8 {
		return protocol.ErrUnknownErrorCheck
	}
	if c.RingCapacity < protocol.MinRingCapacity {
		return fmt.Errorf("%w: %d < %d", protocol.ErrRingTooSmall, c.RingCapacity, protocol.MinRingCapacity)
	}
	if c.EOT > EOTInTX|EOTInRX {
		return fmt.Errorf("invalid EOT mode %d", c.EOT)
	}
	return nil
}
