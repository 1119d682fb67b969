package mcu

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/jpillora/backoff"

	"tinyrf/core"
	"tinyrf/host/capture"
	"tinyrf/host/serial"
	"tinyrf/protocol"
)

var (
	ErrNotConnected = errors.New("not connected to MCU")
	ErrBadLine      = errors.New("not a message line")
)

// MCU represents a connection to a tinyrf board over USB serial. What
// flows on the port depends on the firmware role: text lines from a
// receiver, payload lines to a transmitter, VLQ periods from a sniffer.
type MCU struct {
	port serial.Port
	cfg  *serial.Config

	// Open opens the port; replaced in tests
	Open func(cfg *serial.Config) (serial.Port, error)

	// Backoff paces Reconnect attempts
	Backoff *backoff.Backoff

	// MaxPayload is the longest line the board's frame layout can send
	MaxPayload int

	// Connection state
	connected bool
}

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{
		Open: serial.Open,
		Backoff: &backoff.Backoff{
			Min:    100 * time.Millisecond,
			Max:    10 * time.Second,
			Factor: 2,
			Jitter: true,
		},
		MaxPayload: core.DefaultConfig().Layout().MaxPayload(),
	}
}

// Connect connects to an MCU via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to an MCU with a custom serial config
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := m.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	m.port = port
	m.cfg = cfg
	m.connected = true

	// Drop whatever the board printed before we were listening
	if err := port.Flush(); err != nil {
		glog.Warningf("mcu: flush %s: %v", cfg.Device, err)
	}
	return nil
}

// Reconnect closes the port and reopens it, backing off between attempts
// until it succeeds or ctx is done. Boards re-enumerate on reset, so the
// device can be missing for a while.
func (m *MCU) Reconnect(ctx context.Context) error {
	if m.cfg == nil {
		return ErrNotConnected
	}
	_ = m.Close()
	defer m.Backoff.Reset()
	for {
		err := m.ConnectWithConfig(m.cfg)
		if err == nil {
			glog.Infof("mcu: reconnected to %s", m.cfg.Device)
			return nil
		}
		d := m.Backoff.Duration()
		glog.V(1).Infof("mcu: %v, retrying in %v", err, d)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	m.connected = false
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}

// Connected reports whether the port is open
func (m *MCU) Connected() bool {
	return m.connected
}

// Port returns the open port, for streaming sniffer captures
func (m *MCU) Port() serial.Port {
	return m.port
}

// Send asks a transmitter-role board to send payload as one message. The
// firmware splits on newlines, so payload cannot contain one.
func (m *MCU) Send(payload []byte) error {
	if !m.connected {
		return ErrNotConnected
	}
	if len(payload) > m.MaxPayload {
		return protocol.ErrPayloadTooLarge
	}
	if bytes.ContainsAny(payload, "\r\n") {
		return fmt.Errorf("payload contains a line break")
	}
	line := make([]byte, 0, len(payload)+1)
	line = append(append(line, payload...), '\n')
	if _, err := m.port.Write(line); err != nil {
		return fmt.Errorf("failed to write to MCU: %w", err)
	}
	return nil
}

// ReadMessages reads lines from a receiver-role board until ctx is done
// or the port fails. Message lines go to handler; anything else is board
// debug output and is logged.
func (m *MCU) ReadMessages(ctx context.Context, handler capture.Handler) error {
	if !m.connected {
		return ErrNotConnected
	}
	return readMessages(ctx, m.port, handler)
}

func readMessages(ctx context.Context, r io.Reader, handler capture.Handler) error {
	reader := bufio.NewReader(r)
	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Read timeout; keep the partial line
				continue
			}
			return err
		}
		line := strings.TrimRight(string(pending), "\r\n")
		pending = pending[:0]
		msg, perr := ParseLine(line)
		if perr != nil {
			glog.V(1).Infof("mcu: %s", line)
			continue
		}
		msg.Received = time.Now()
		handler(msg)
	}
}

// ParseLine parses a receiver line: "seq=<n> lost=<n> <payload>"
func ParseLine(line string) (capture.Message, error) {
	var m capture.Message
	rest, ok := strings.CutPrefix(line, "seq=")
	if !ok {
		return m, ErrBadLine
	}
	seqStr, rest, ok := strings.Cut(rest, " lost=")
	if !ok {
		return m, ErrBadLine
	}
	lostStr, payload, ok := strings.Cut(rest, " ")
	if !ok {
		return m, ErrBadLine
	}
	seq, err := strconv.ParseUint(seqStr, 10, 8)
	if err != nil {
		return m, fmt.Errorf("%w: seq: %v", ErrBadLine, err)
	}
	lost, err := strconv.ParseUint(lostStr, 10, 8)
	if err != nil {
		return m, fmt.Errorf("%w: lost: %v", ErrBadLine, err)
	}
	m.Seq = byte(seq)
	m.Lost = uint8(lost)
	m.Payload = []byte(payload)
	return m, nil
}
