package capture

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/golang/glog"

	"tinyrf/core"
	"tinyrf/protocol"
)

// Message is one decoded frame
type Message struct {
	Seq      byte
	Lost     uint8
	Payload  []byte
	Received time.Time
}

// Handler is called for every message received
type Handler func(Message)

// Counters tallies frames the consumer rejected
type Counters struct {
	Messages  uint64
	Corrupted uint64
	Noise     uint64
}

// Drain reads every queued frame from rx, calling handler for valid ones.
// buf must hold a full payload.
func Drain(rx *core.Receiver, buf []byte, handler Handler, counters *Counters) {
	for {
		res := rx.GetReceivedData(buf)
		switch res.Status {
		case protocol.StatusNoData:
			return
		case protocol.StatusSuccess:
			counters.Messages++
			payload := make([]byte, res.N)
			copy(payload, buf[:res.N])
			if res.Lost > 0 {
				glog.Warningf("capture: %d message(s) lost before seq %d", res.Lost, res.Seq)
			}
			glog.V(2).Infof("capture: seq=%d %q", res.Seq, payload)
			if handler != nil {
				handler(Message{Seq: res.Seq, Lost: res.Lost, Payload: payload, Received: time.Now()})
			}
		case protocol.StatusBufferOverflow:
			glog.Errorf("capture: frame of %d bytes does not fit %d", res.N, len(buf))
			rx.Skip()
		case protocol.StatusCorrupted:
			counters.Corrupted++
			glog.V(2).Infof("capture: dropped corrupted frame")
		default:
			counters.Noise++
			glog.V(2).Infof("capture: dropped %s frame", res.Status)
		}
	}
}

// Listener decodes a sniffer capture stream with its own Receiver
type Listener struct {
	rx       *core.Receiver
	clock    *core.ManualClock
	decoder  *Decoder
	handler  Handler
	idle     uint32
	buf      [protocol.MaxFrameLength]byte
	counters Counters
}

// NewListener creates a listener decoding with cfg
func NewListener(cfg core.Config, handler Handler) (*Listener, error) {
	clock := &core.ManualClock{}
	rx, err := core.NewReceiver(cfg, clock)
	if err != nil {
		return nil, err
	}
	return &Listener{
		rx:      rx,
		clock:   clock,
		decoder: NewDecoder(clock, rx),
		handler: handler,
		idle:    cfg.Codec().StartBand().Max + 1,
	}, nil
}

// Receiver returns the receiver the stream is decoded with
func (l *Listener) Receiver() *core.Receiver {
	return l.rx
}

// Counters returns the message and rejection counts
func (l *Listener) Counters() Counters {
	return l.counters
}

// Feed decodes data and dispatches the complete messages it produced
func (l *Listener) Feed(data []byte) int {
	n := l.decoder.Feed(data)
	Drain(l.rx, l.buf[:], l.handler, &l.counters)
	return n
}

// Idle tells the listener the line has been quiet long enough to end any
// frame in progress
func (l *Listener) Idle() {
	l.decoder.Idle(l.idle)
	Drain(l.rx, l.buf[:], l.handler, &l.counters)
}

// Run decodes r until ctx is done or r fails. Reads returning no data,
// including io.EOF from a port with a read timeout, count as idle line.
func (l *Listener) Run(ctx context.Context, r io.Reader) error {
	var buf [512]byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf[:])
		if n > 0 {
			l.Feed(buf[:n])
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		l.Idle()
		if err != nil {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// Replay decodes a recorded capture until EOF
func (l *Listener) Replay(r io.Reader) error {
	var buf [512]byte
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			l.Feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			l.Idle()
			return nil
		}
		if err != nil {
			return err
		}
	}
}
