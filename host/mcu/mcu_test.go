package mcu

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jpillora/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyrf/core"
	"tinyrf/host/capture"
	"tinyrf/host/serial"
	"tinyrf/protocol"
)

// fakePort serves canned input and records writes
type fakePort struct {
	in      *bytes.Reader
	out     bytes.Buffer
	closed  bool
	flushed bool
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }
func (p *fakePort) Flush() error                { p.flushed = true; return nil }

func connected(t *testing.T, input string) (*MCU, *fakePort) {
	t.Helper()
	port := &fakePort{in: bytes.NewReader([]byte(input))}
	m := NewMCU()
	m.Open = func(*serial.Config) (serial.Port, error) { return port, nil }
	require.NoError(t, m.Connect("/dev/ttyACM0"))
	assert.True(t, port.flushed)
	return m, port
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		seq     byte
		lost    uint8
		payload string
		ok      bool
	}{
		{"seq=3 lost=0 hello", 3, 0, "hello", true},
		{"seq=255 lost=12 with spaces in it", 255, 12, "with spaces in it", true},
		{"seq=0 lost=0 ", 0, 0, "", true},
		{"tinyrf 0.3.0 receiver @1100", 0, 0, "", false},
		{"seq=300 lost=0 x", 0, 0, "", false},
		{"seq=1 lost=x y", 0, 0, "", false},
		{"seq=1 lost=0", 0, 0, "", false},
	}
	for _, tt := range tests {
		m, err := ParseLine(tt.line)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrBadLine, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.seq, m.Seq)
		assert.Equal(t, tt.lost, m.Lost)
		assert.Equal(t, tt.payload, string(m.Payload))
	}
}

func TestReadMessages(t *testing.T) {
	m, _ := connected(t, "rx: corrupted\r\nseq=1 lost=0 one\r\nseq=3 lost=1 three\r\nseq=4 lost=0 par")

	var msgs []capture.Message
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.ReadMessages(ctx, func(msg capture.Message) { msgs = append(msgs, msg) })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Len(t, msgs, 2)
	assert.Equal(t, "one", string(msgs[0].Payload))
	assert.Equal(t, byte(3), msgs[1].Seq)
	assert.Equal(t, uint8(1), msgs[1].Lost)
	assert.False(t, msgs[1].Received.IsZero())
}

func TestSend(t *testing.T) {
	m, port := connected(t, "")
	require.NoError(t, m.Send([]byte("lamp on")))
	assert.Equal(t, "lamp on\n", port.out.String())

	assert.Error(t, m.Send([]byte("two\nlines")))
	// The check and sequence bytes share the frame with the payload
	full := bytes.Repeat([]byte{'x'}, core.DefaultConfig().Layout().MaxPayload())
	require.NoError(t, m.Send(full))
	assert.ErrorIs(t, m.Send(append(full, 'x')), protocol.ErrPayloadTooLarge)
	m.MaxPayload = 4
	assert.ErrorIs(t, m.Send([]byte("lamp on")), protocol.ErrPayloadTooLarge)

	require.NoError(t, m.Close())
	assert.True(t, port.closed)
	assert.ErrorIs(t, m.Send([]byte("x")), ErrNotConnected)
}

func TestReconnect(t *testing.T) {
	m, _ := connected(t, "")
	m.Backoff = &backoff.Backoff{Min: time.Millisecond, Max: 2 * time.Millisecond}

	attempts := 0
	m.Open = func(*serial.Config) (serial.Port, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("no such device")
		}
		return &fakePort{in: bytes.NewReader(nil)}, nil
	}
	require.NoError(t, m.Reconnect(context.Background()))
	assert.Equal(t, 3, attempts)
	assert.True(t, m.Connected())
}

func TestReconnectCancelled(t *testing.T) {
	m, _ := connected(t, "")
	m.Open = func(*serial.Config) (serial.Port, error) { return nil, io.ErrClosedPipe }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Reconnect(ctx), context.Canceled)
	assert.False(t, m.Connected())
}

func TestNotConnected(t *testing.T) {
	m := NewMCU()
	assert.ErrorIs(t, m.Reconnect(context.Background()), ErrNotConnected)
	assert.ErrorIs(t, m.ReadMessages(context.Background(), nil), ErrNotConnected)
}
