package protocol

// Timing is one data-rate preset. All values are microseconds except
// Preamble which counts ZERO-coded bytes. The fields only make sense as a
// set, so presets are handed around whole.
type Timing struct {
	Name string

	Start uint32 // START pulse period
	One   uint32 // ONE bit period
	Zero  uint32 // ZERO bit period
	High  uint32 // HIGH segment common to every pulse

	// StartMaxError widens the upper START bound so a long run of ONEs
	// stretched by clock drift is never taken for a START
	StartMaxError uint32

	Preamble uint8
}

// Data-rate presets. Bitrate is 1e6 / ((One+Zero)/2).
var (
	Bitrate240 = Timing{
		Name:          "240",
		Start:         8000,
		One:           5000,
		Zero:          3300,
		High:          2000,
		StartMaxError: 1600,
		Preamble:      2,
	}

	Bitrate500 = Timing{
		Name:          "500",
		Start:         4000,
		One:           2400,
		Zero:          1600,
		High:          800,
		StartMaxError: 800,
		Preamble:      3,
	}

	Bitrate1100 = Timing{
		Name:          "1100",
		Start:         1800,
		One:           1100,
		Zero:          700,
		High:          400,
		StartMaxError: 400,
		Preamble:      6,
	}

	Bitrate2500 = Timing{
		Name:          "2500",
		Start:         1000,
		One:           480,
		Zero:          320,
		High:          200,
		StartMaxError: 200,
		Preamble:      12,
	}
)

// DefaultTiming is the preset that worked best with an uncalibrated
// ATtiny13 transmitter
var DefaultTiming = Bitrate1100

var presets = []Timing{Bitrate240, Bitrate500, Bitrate1100, Bitrate2500}

// Presets returns all built-in presets, slowest first
func Presets() []Timing {
	out := make([]Timing, len(presets))
	copy(out, presets)
	return out
}

// PresetByName looks up a preset by its Name ("240", "500", "1100", "2500")
func PresetByName(name string) (Timing, error) {
	for _, t := range presets {
		if t.Name == name {
			return t, nil
		}
	}
	return Timing{}, ErrUnknownPreset
}

// BitsPerSecond returns the average payload bitrate of the preset
func (t Timing) BitsPerSecond() uint32 {
	avg := (t.One + t.Zero) / 2
	if avg == 0 {
		return 0
	}
	return 1000000 / avg
}
