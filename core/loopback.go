package core

// EdgeSink receives timestamped falling edges; Receiver implements it
type EdgeSink interface {
	HandleEdgeAt(now uint32)
}

// Loopback is a PulseWriter that simulates the air gap. Time comes from a
// ManualClock that the pulses advance, and every falling edge is delivered
// to the sink synchronously. The periods between edges can be recorded so
// tests can replay or tamper with a transmission.
type Loopback struct {
	clock *ManualClock
	sink  EdgeSink
	high  bool

	lastEdge uint32
	edges    int
	pulses   int
	periods  []uint32
	record   bool

	glitchAt     int
	glitchPeriod uint32
}

// NewLoopback connects a simulated transmitter to sink. sink may be nil
// when only the recorded periods are wanted.
func NewLoopback(clock *ManualClock, sink EdgeSink) *Loopback {
	return &Loopback{clock: clock, sink: sink, lastEdge: clock.Micros()}
}

// Record turns period recording on or off
func (l *Loopback) Record(on bool) {
	l.record = on
}

// Periods returns the recorded edge-to-edge periods
func (l *Loopback) Periods() []uint32 {
	return l.periods
}

// Edges returns the number of falling edges delivered
func (l *Loopback) Edges() int {
	return l.edges
}

// Reset forgets recorded periods, counters and any pending glitch
func (l *Loopback) Reset() {
	l.periods = l.periods[:0]
	l.edges = 0
	l.pulses = 0
	l.glitchAt = 0
}

// GlitchAfter arranges for Glitch(periodUS) to fire right after the n-th
// pulse written from now on
func (l *Loopback) GlitchAfter(n int, periodUS uint32) {
	l.pulses = 0
	l.glitchAt = n
	l.glitchPeriod = periodUS
}

func (l *Loopback) fall() {
	if !l.high {
		return
	}
	l.high = false
	now := l.clock.Micros()
	period := now - l.lastEdge
	l.lastEdge = now
	l.edges++
	if l.record {
		l.periods = append(l.periods, period)
	}
	if l.sink != nil {
		l.sink.HandleEdgeAt(now)
	}
}

func (l *Loopback) Pulse(lowUS, highUS uint32) {
	l.fall()
	l.clock.Advance(lowUS)
	l.high = true
	l.clock.Advance(highUS)

	l.pulses++
	if l.glitchAt > 0 && l.pulses == l.glitchAt {
		l.glitchAt = 0
		l.Glitch(l.glitchPeriod)
	}
}

func (l *Loopback) Idle(holdUS uint32) {
	l.fall()
	l.clock.Advance(holdUS)
}

// Glitch closes the current pulse and then injects one spurious pulse of
// periodUS, as a burst of interference would. The line is left LOW.
func (l *Loopback) Glitch(periodUS uint32) {
	l.fall()
	l.high = true
	l.clock.Advance(periodUS)
	l.fall()
}
