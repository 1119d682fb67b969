package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"tinyrf/core"
	"tinyrf/host/capture"
	hostgpio "tinyrf/host/gpio"
	"tinyrf/host/mcu"
	"tinyrf/host/mqtt"
	"tinyrf/host/serial"
	"tinyrf/protocol"
)

const appKey = "$app"

// pollInterval is how often the gpio source drains its receiver
const pollInterval = 2 * time.Millisecond

// App owns the connections the shell commands share
type App struct {
	cfg core.Config

	board  *mcu.MCU
	pins   *hostgpio.Driver
	bridge *mqtt.Bridge

	sendMu sync.Mutex
	tx     *core.Transmitter

	counters capture.Counters
	stats    core.Stats
}

func newApp(cfg core.Config) *App {
	return &App{cfg: cfg}
}

// Close releases every open connection
func (a *App) Close() {
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.board != nil {
		_ = a.board.Close()
	}
	if a.pins != nil {
		_ = a.pins.Close()
	}
}

func (a *App) openBoard() (*mcu.MCU, error) {
	if a.board != nil && a.board.Connected() {
		return a.board, nil
	}
	dev := *device
	if dev == "" {
		ports, err := serial.List()
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, fmt.Errorf("no serial ports found, use -device")
		}
		dev = ports[0]
	}
	board := mcu.NewMCU()
	board.MaxPayload = a.cfg.Layout().MaxPayload()
	if err := board.Connect(dev); err != nil {
		return nil, err
	}
	glog.Infof("connected to %s", dev)
	a.board = board
	return board, nil
}

func (a *App) openPins() (*hostgpio.Driver, error) {
	if a.pins != nil {
		return a.pins, nil
	}
	d, err := hostgpio.Open()
	if err != nil {
		return nil, err
	}
	a.pins = d
	return d, nil
}

func (a *App) openBridge() error {
	if *broker == "" || a.bridge != nil {
		return nil
	}
	b, err := mqtt.NewBridge(*broker)
	if err != nil {
		return err
	}
	if err := b.Connect(); err != nil {
		return err
	}
	if err := b.HandleTransmit(a.Send); err != nil {
		b.Close()
		return err
	}
	glog.Infof("bridging to %s on %s", *broker, b.TopicPrefix)
	a.bridge = b
	return nil
}

// Listen delivers received messages to handler until ctx is done
func (a *App) Listen(ctx context.Context, handler capture.Handler) error {
	if err := a.openBridge(); err != nil {
		return err
	}
	h := func(m capture.Message) {
		handler(m)
		if a.bridge != nil {
			if err := a.bridge.Publish(m); err != nil {
				glog.Errorf("publish: %v", err)
			}
		}
	}

	switch *source {
	case "board":
		board, err := a.openBoard()
		if err != nil {
			return err
		}
		return a.reconnecting(ctx, board, func() error {
			return board.ReadMessages(ctx, func(m capture.Message) {
				a.counters.Messages++
				h(m)
			})
		})
	case "sniffer":
		board, err := a.openBoard()
		if err != nil {
			return err
		}
		l, err := capture.NewListener(a.cfg, h)
		if err != nil {
			return err
		}
		defer func() {
			a.counters = l.Counters()
			a.stats = l.Receiver().Stats()
		}()
		return a.reconnecting(ctx, board, func() error {
			return l.Run(ctx, board.Port())
		})
	case "gpio":
		return a.listenGPIO(ctx, h)
	}
	return fmt.Errorf("unknown source %q", *source)
}

// reconnecting runs read, reopening the board whenever the port fails
func (a *App) reconnecting(ctx context.Context, board *mcu.MCU, read func() error) error {
	for {
		err := read()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		glog.Warningf("board: %v", err)
		if err := board.Reconnect(ctx); err != nil {
			return err
		}
	}
}

func (a *App) listenGPIO(ctx context.Context, h capture.Handler) error {
	pins, err := a.openPins()
	if err != nil {
		return err
	}
	cfg := a.cfg
	cfg.Pin = core.GPIOPin(*rxPin)
	rx, err := core.NewReceiver(cfg, core.NewSystemClock())
	if err != nil {
		return err
	}
	if err := rx.Attach(pins); err != nil {
		return err
	}
	defer rx.Detach(pins)

	buf := make([]byte, protocol.MaxFrameLength)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.stats = rx.Stats()
			return ctx.Err()
		case <-ticker.C:
			capture.Drain(rx, buf, h, &a.counters)
		}
	}
}

// Replay decodes a recorded sniffer capture
func (a *App) Replay(r io.Reader, handler capture.Handler) error {
	l, err := capture.NewListener(a.cfg, handler)
	if err != nil {
		return err
	}
	err = l.Replay(r)
	a.counters = l.Counters()
	a.stats = l.Receiver().Stats()
	return err
}

// Send transmits payload through the configured sink. It is safe to call
// from the MQTT bridge while the shell is sending too.
func (a *App) Send(payload []byte) error {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	switch *sink {
	case "board":
		board, err := a.openBoard()
		if err != nil {
			return err
		}
		return board.Send(payload)
	case "gpio":
		if a.tx == nil {
			pins, err := a.openPins()
			if err != nil {
				return err
			}
			cfg := a.cfg
			cfg.Pin = core.GPIOPin(*txPin)
			w, err := core.NewGPIOPulseWriter(pins, cfg.Pin, core.NewSystemClock())
			if err != nil {
				return err
			}
			if a.tx, err = core.NewTransmitter(cfg, w); err != nil {
				return err
			}
		}
		return a.tx.Send(payload)
	}
	return fmt.Errorf("unknown sink %q", *sink)
}

// SelfTest sends count messages through an in-memory link for every preset
func SelfTest(cfg core.Config, count int) map[string]error {
	results := make(map[string]error)
	for _, t := range protocol.Presets() {
		c := cfg
		c.Timing = t
		results[t.Name] = loopbackTest(c, count)
	}
	return results
}

func loopbackTest(cfg core.Config, count int) error {
	clock := &core.ManualClock{}
	rx, err := core.NewReceiver(cfg, clock)
	if err != nil {
		return err
	}
	tx, err := core.NewTransmitter(cfg, core.NewLoopback(clock, rx))
	if err != nil {
		return err
	}

	buf := make([]byte, protocol.MaxFrameLength)
	for i := 0; i < count; i++ {
		want := fmt.Sprintf("selftest %d/%d", i+1, count)
		if err := tx.Send([]byte(want)); err != nil {
			return err
		}
		res := rx.GetReceivedData(buf)
		if res.Status != protocol.StatusSuccess {
			return fmt.Errorf("message %d: %w", i, res.Err())
		}
		if got := string(buf[:res.N]); got != want {
			return fmt.Errorf("message %d: got %q", i, got)
		}
	}
	return nil
}

// printer is satisfied by ishell.Context.Printf
type printer func(format string, a ...interface{})

func printMessage(printf printer) capture.Handler {
	return func(m capture.Message) {
		lost := ""
		if m.Lost > 0 {
			lost = fmt.Sprintf(" (%d lost)", m.Lost)
		}
		printf("%s seq=%d%s %q\n", m.Received.Format("15:04:05.000"), m.Seq, lost, m.Payload)
	}
}
