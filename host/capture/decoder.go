package capture

import (
	"errors"

	"tinyrf/core"
	"tinyrf/protocol"
)

// Decoder turns the sniffer's stream of VLQ encoded pulse periods back into
// timestamped falling edges. Time comes from a ManualClock that each period
// advances, so a receiver sees the same timing the sniffer measured.
type Decoder struct {
	clock  *core.ManualClock
	sink   core.EdgeSink
	stream *protocol.StreamBuffer

	periods uint64
	invalid uint64
}

// NewDecoder creates a decoder delivering edges to sink
func NewDecoder(clock *core.ManualClock, sink core.EdgeSink) *Decoder {
	return &Decoder{
		clock:  clock,
		sink:   sink,
		stream: protocol.NewStreamBuffer(256),
	}
}

// Feed consumes raw stream bytes and returns the number of periods
// delivered. A value split across two reads is completed on the next call.
func (d *Decoder) Feed(data []byte) int {
	d.stream.Write(data)
	buf := d.stream.Data()
	total := len(buf)

	n := 0
	for len(buf) > 0 {
		period, err := protocol.DecodeVLQUint(&buf)
		if errors.Is(err, protocol.ErrBufferTooSmall) {
			break
		}
		if err != nil {
			// Resync on the next byte
			d.invalid++
			buf = buf[1:]
			continue
		}
		d.edge(period)
		n++
	}
	d.stream.Pop(total - len(buf))
	return n
}

func (d *Decoder) edge(period uint32) {
	now := d.clock.Advance(period)
	core.Interrupt(func() {
		d.sink.HandleEdgeAt(now)
	})
	d.periods++
}

// Idle advances the clock without an edge, as a quiet line does
func (d *Decoder) Idle(us uint32) {
	d.clock.Advance(us)
}

// Periods returns the number of periods delivered
func (d *Decoder) Periods() uint64 {
	return d.periods
}

// Invalid returns the number of bytes skipped to resynchronize
func (d *Decoder) Invalid() uint64 {
	return d.invalid
}
