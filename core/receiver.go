package core

import (
	"sync/atomic"

	"tinyrf/protocol"
)

// Result is the outcome of one GetReceivedData call
type Result struct {
	Status protocol.Status

	// N is the number of payload bytes written to the caller's buffer. On
	// StatusBufferOverflow it is the buffer size the frame needs instead.
	N int

	// Lost is the number of messages missed before this one, from the
	// sequence gap. Only meaningful on StatusSuccess with sequencing on.
	Lost uint8

	// Seq is the frame's sequence number when sequencing is on
	Seq byte
}

// Err returns the sentinel error for the result status
func (r Result) Err() error {
	return r.Status.Err()
}

// Receiver decodes frames from falling-edge timestamps. There is one
// Receiver per pin and it lives as long as the program.
//
// HandleEdge/HandleEdgeAt/HandlePulse run in interrupt context and own the
// frame assembly state. GetReceivedData, CheckTimeout, Skip and Stats run in
// the foreground.
type Receiver struct {
	cfg    Config
	codec  *protocol.Codec
	layout protocol.FrameLayout
	clock  Clock
	ring   *protocol.FrameRing

	// silence after which the consumer forces EOT
	timeout uint32

	// Shared with the foreground
	lastEdge atomic.Uint32
	inFrame  atomic.Bool
	overruns atomic.Uint32
	noise    atomic.Uint32
	timeouts atomic.Uint32

	// Interrupt-owned
	pulses     uint8 // bits collected in acc
	acc        byte
	haveLength bool
	expected   uint8 // declared frame length

	// Foreground-owned
	seq     protocol.SequenceTracker
	lost    uint32
	scratch [protocol.MaxFrameLength]byte
	timer   Timer
}

// NewReceiver creates a receiver. Edges are timestamped with clock.
func NewReceiver(cfg Config, clock Clock) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ring, err := protocol.NewFrameRing(cfg.RingCapacity)
	if err != nil {
		return nil, err
	}
	codec := cfg.Codec()
	return &Receiver{
		cfg:     cfg,
		codec:   codec,
		layout:  cfg.Layout(),
		clock:   clock,
		ring:    ring,
		timeout: codec.StartBand().Max,
	}, nil
}

// Config returns the receiver configuration
func (r *Receiver) Config() Config {
	return r.cfg
}

// Attach configures cfg.Pin as an input and routes its falling edges to
// HandleEdge
func (r *Receiver) Attach(d EdgeDriver) error {
	if err := d.ConfigureInput(r.cfg.Pin); err != nil {
		return err
	}
	r.lastEdge.Store(r.clock.Micros())
	return d.AttachFallingEdge(r.cfg.Pin, r.HandleEdge)
}

// Detach stops edge delivery
func (r *Receiver) Detach(d EdgeDriver) error {
	return d.DetachInterrupt(r.cfg.Pin)
}

// HandleEdge is the falling-edge interrupt handler
func (r *Receiver) HandleEdge() {
	r.HandleEdgeAt(r.clock.Micros())
}

// HandleEdgeAt processes a falling edge that happened at now
func (r *Receiver) HandleEdgeAt(now uint32) {
	period := now - r.lastEdge.Load()
	r.lastEdge.Store(now)
	r.handle(period, now)
}

// HandlePulse processes one already measured pulse period
func (r *Receiver) HandlePulse(period uint32) {
	r.handle(period, r.lastEdge.Load())
}

func (r *Receiver) handle(period, now uint32) {
	switch r.codec.Classify(period) {
	case protocol.PulseStart:
		// A START always closes whatever was in progress
		r.endOfTransmission(now)
		r.pulses = 0
		r.acc = 0
		r.haveLength = false
		r.expected = 0
		if r.ring.Begin() {
			r.inFrame.Store(true)
			RecordTrace(EvtStart, now, period)
		} else {
			r.overruns.Add(1)
			RecordTrace(EvtOverrun, now, 0)
		}
	case protocol.PulseOne:
		r.addBit(1, now)
	case protocol.PulseZero:
		r.addBit(0, now)
	default:
		if r.inFrame.Load() {
			r.noise.Add(1)
			RecordTrace(EvtNoise, now, period)
			r.endOfTransmission(now)
		}
	}
}

// addBit shifts one bit into the byte accumulator, LSB first
func (r *Receiver) addBit(bit byte, now uint32) {
	if !r.inFrame.Load() {
		return
	}
	r.acc |= bit << r.pulses
	r.pulses++
	if r.pulses < protocol.BitsPerByte {
		return
	}
	b := r.acc
	r.pulses = 0
	r.acc = 0
	r.processByte(b, now)
}

func (r *Receiver) processByte(b byte, now uint32) {
	RecordTrace(EvtByte, now, uint32(b))
	if !r.haveLength {
		// The length byte only predicts the end of the frame
		r.haveLength = true
		r.expected = b
		if b == 0 {
			r.endOfTransmission(now)
		}
		return
	}
	if !r.ring.Put(b) {
		r.overruns.Add(1)
		RecordTrace(EvtOverrun, now, uint32(b))
		r.endOfTransmission(now)
		return
	}
	if r.ring.OpenLen() >= int(r.expected) {
		r.endOfTransmission(now)
	}
}

// endOfTransmission commits the frame in progress. Only the caller that
// clears inFrame commits, so the interrupt and the timeout path can race
// safely. Any partial byte is discarded.
func (r *Receiver) endOfTransmission(now uint32) bool {
	if !r.inFrame.CompareAndSwap(true, false) {
		return false
	}
	r.pulses = 0
	r.acc = 0
	if n := r.ring.Commit(); n > 0 {
		RecordTrace(EvtEOT, now, uint32(n))
	} else {
		RecordTrace(EvtAbandon, now, 0)
	}
	return true
}

// InFrame reports whether a frame is being received
func (r *Receiver) InFrame() bool {
	return r.inFrame.Load()
}

// CheckTimeout forces EOT when a frame is open and no edge has arrived for
// longer than the START band. It reports whether it committed a frame.
// It is a no-op unless EOTInRX is configured.
func (r *Receiver) CheckTimeout() bool {
	if r.cfg.EOT&EOTInRX == 0 || !r.inFrame.Load() {
		return false
	}
	if r.clock.Micros()-r.lastEdge.Load() <= r.timeout {
		return false
	}

	g := MaskInterrupts()
	defer g.Restore()

	// An edge may have arrived before the mask took effect
	now := r.clock.Micros()
	if now-r.lastEdge.Load() <= r.timeout {
		return false
	}
	RecordTrace(EvtTimeout, now, now-r.lastEdge.Load())
	if !r.endOfTransmission(now) {
		return false
	}
	r.timeouts.Add(1)
	return true
}

// ScheduleTimeout registers a timer on s that runs CheckTimeout every
// intervalUS, so timeout EOT does not depend on the caller polling
func (r *Receiver) ScheduleTimeout(s *Scheduler, intervalUS uint32) *Timer {
	if intervalUS == 0 {
		intervalUS = r.timeout
	}
	r.timer.Handler = func(t *Timer) uint8 {
		r.CheckTimeout()
		t.WakeTime += intervalUS
		return SF_RESCHEDULE
	}
	r.timer.WakeTime = r.clock.Micros() + intervalUS
	s.Schedule(&r.timer)
	return &r.timer
}

// GetReceivedData dequeues at most one frame into buf. Duplicates are
// skipped, so the status is never StatusDuplicate. On StatusBufferOverflow
// the frame stays queued; call again with a larger buffer or Skip it.
func (r *Receiver) GetReceivedData(buf []byte) Result {
	r.CheckTimeout()
	for {
		res := r.next(buf)
		if res.Status != protocol.StatusDuplicate {
			return res
		}
	}
}

func (r *Receiver) next(buf []byte) Result {
	if hostedInterrupts {
		g := MaskInterrupts()
		defer g.Restore()
	}

	n, ok := r.ring.Peek(r.scratch[:])
	if !ok {
		return Result{Status: protocol.StatusNoData}
	}
	f, ok := r.layout.ParseFrame(r.scratch[:n])
	if !ok {
		// Too short to hold a payload byte
		r.ring.Discard()
		return Result{Status: protocol.StatusNoise}
	}
	if len(f.Payload) > len(buf) {
		return Result{Status: protocol.StatusBufferOverflow, N: len(f.Payload)}
	}
	r.ring.Discard()

	res := Result{N: copy(buf, f.Payload), Seq: f.Seq}
	if res.Status = r.layout.Verify(f); res.Status != protocol.StatusSuccess {
		return res
	}
	if !r.layout.Sequence {
		return res
	}
	lost, dup := r.seq.Observe(f.Seq)
	if dup {
		if r.layout.Check.Enabled() {
			res.Status = protocol.StatusDuplicate
		}
		// Without an error check a repeated number proves nothing
		return res
	}
	res.Lost = lost
	r.lost += uint32(lost)
	return res
}

// Skip drops the oldest queued frame, typically one that did not fit the
// caller's buffer. It reports whether a frame was dropped.
func (r *Receiver) Skip() bool {
	if hostedInterrupts {
		g := MaskInterrupts()
		defer g.Restore()
	}
	if _, ok := r.ring.Peek(nil); !ok {
		return false
	}
	r.ring.Discard()
	return true
}

// Pending returns the number of frames waiting to be read
func (r *Receiver) Pending() int {
	if hostedInterrupts {
		g := MaskInterrupts()
		defer g.Restore()
	}
	return r.ring.Pending()
}

// LastSequence returns the last accepted sequence number
func (r *Receiver) LastSequence() (byte, bool) {
	return r.seq.Last()
}

// Stats counts receiver events since creation
type Stats struct {
	Frames    uint32 // frames committed to the ring
	Evicted   uint32 // unread frames overwritten to make room
	Skipped   uint32 // times the consumer fell behind the producer
	Overruns  uint32 // bytes or frames the ring refused
	NoiseEOTs uint32 // frames ended by a noise pulse
	Timeouts  uint32 // frames ended by CheckTimeout
	Lost      uint32 // messages missed according to sequence gaps
}

// Stats returns a snapshot of the receiver counters
func (r *Receiver) Stats() Stats {
	return Stats{
		Frames:    r.ring.Commits(),
		Evicted:   r.ring.Evictions(),
		Skipped:   r.ring.Dropped(),
		Overruns:  r.overruns.Load(),
		NoiseEOTs: r.noise.Load(),
		Timeouts:  r.timeouts.Load(),
		Lost:      r.lost,
	}
}

func (s Stats) String() string {
	return "frames=" + Utoa(s.Frames) +
		" evicted=" + Utoa(s.Evicted) +
		" skipped=" + Utoa(s.Skipped) +
		" overruns=" + Utoa(s.Overruns) +
		" noise=" + Utoa(s.NoiseEOTs) +
		" timeouts=" + Utoa(s.Timeouts) +
		" lost=" + Utoa(s.Lost)
}
