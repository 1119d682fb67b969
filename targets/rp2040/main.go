//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"tinyrf/core"
	"tinyrf/protocol"
	"tinyrf/targets/pio"
)

var (
	// Buffers for communication
	lines        *core.LineFramer
	outputBuffer protocol.ScratchOutput

	// Debug counters
	messagesReceived uint32
	messagesSent     uint32
	msgerrors        uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	core.SetDebugWriter(USBPrintln)
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	gpioDriver := NewRPGPIODriver()
	core.SetGPIODriver(gpioDriver)

	mode := GetMode()
	switch mode.Role {
	case RoleTransmitter:
		runTransmitter(mode)
	case RoleSniffer:
		runSniffer(mode)
	default:
		runReceiver(mode)
	}
}

// flashUS is how long the LED stays lit per message
const flashUS = 50000

func activityLED(sched *core.Scheduler) *core.Indicator {
	led, err := core.NewIndicator(core.MustGPIO(), core.GPIOPin(machine.LED), sched, false)
	if err != nil {
		fail(err.Error())
	}
	return led
}

// fail blinks the LED forever
func fail(msg string) {
	core.DebugPrintln("tinyrf: " + msg)
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}

// guarded runs one main loop iteration, surviving panics
func guarded(step func()) {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			if lines != nil {
				lines.Reset()
			}
			outputBuffer.Reset()
		}
	}()
	step()
}

func runReceiver(mode ModeConfig) {
	clock := hwClock{}
	rx, err := core.NewReceiver(mode.Radio, clock)
	if err != nil {
		fail(err.Error())
	}
	if err := rx.Attach(core.MustEdgeGPIO()); err != nil {
		fail(err.Error())
	}

	sched := core.NewScheduler(clock)
	rx.ScheduleTimeout(sched, 0)
	led := activityLED(sched)
	core.DebugAsync("tinyrf " + protocol.Version + " receiver @" + mode.Radio.Timing.Name)
	core.SetTraceEnabled(true)

	buf := make([]byte, protocol.MaxFrameLength)
	for {
		guarded(func() {
			sched.Dispatch()
			res := rx.GetReceivedData(buf)
			switch res.Status {
			case protocol.StatusNoData:
			case protocol.StatusSuccess:
				messagesReceived++
				led.Flash(flashUS)
				printMessage(res, buf[:res.N])
			case protocol.StatusBufferOverflow:
				rx.Skip()
				fallthrough
			default:
				msgerrors++
				core.DebugPrintln("rx: " + res.Status.String() + " " + rx.Stats().String())
				core.DumpTrace()
				core.ClearTrace()
			}
		})

		// Yield to other goroutines
		time.Sleep(100 * time.Microsecond)
	}
}

func printMessage(res core.Result, payload []byte) {
	outputBuffer.Reset()
	outputBuffer.Output([]byte("seq=" + core.Utoa(uint32(res.Seq)) +
		" lost=" + core.Utoa(uint32(res.Lost)) + " "))
	USBWriteBytes(outputBuffer.Result())
	USBWriteBytes(payload)
	USBWriteBytes([]byte("\r\n"))
}

func runTransmitter(mode ModeConfig) {
	var w core.PulseWriter
	if mode.UsePIO {
		pw := pio.NewPulseWriter(0, 0)
		if err := pw.Init(mode.Radio.Pin); err != nil {
			fail(err.Error())
		}
		w = pw
	} else {
		gw, err := core.NewGPIOPulseWriter(core.MustGPIO(), mode.Radio.Pin, hwClock{})
		if err != nil {
			fail(err.Error())
		}
		// Bit-banged timing must not be stretched by interrupts
		mode.Radio.SuppressInterrupts = true
		w = gw
	}

	tx, err := core.NewTransmitter(mode.Radio, w)
	if err != nil {
		fail(err.Error())
	}
	lines = core.NewLineFramer(tx.MaxPayload())
	sched := core.NewScheduler(hwClock{})
	led := activityLED(sched)
	core.DebugAsync("tinyrf " + protocol.Version + " transmitter @" + mode.Radio.Timing.Name)

	for {
		guarded(func() {
			sched.Dispatch()
			for USBAvailable() > 0 {
				b, err := USBRead()
				if err != nil {
					msgerrors++
					break
				}
				line := lines.Feed(b)
				if line == nil {
					continue
				}
				if err := tx.Send(line); err != nil {
					msgerrors++
					core.DebugAsync("tx: " + err.Error())
				} else {
					messagesSent++
					led.Flash(flashUS)
				}
			}
		})

		time.Sleep(100 * time.Microsecond)
	}
}

// Sniffer state, written by the edge interrupt
var (
	periods     protocol.PeriodQueue
	lastSniffed uint32
)

func runSniffer(mode ModeConfig) {
	gpio := core.MustEdgeGPIO()
	if err := gpio.ConfigureInput(mode.Radio.Pin); err != nil {
		fail(err.Error())
	}
	lastSniffed = GetHardwareTime()
	err := gpio.AttachFallingEdge(mode.Radio.Pin, func() {
		now := GetHardwareTime()
		periods.Push(now - lastSniffed)
		lastSniffed = now
	})
	if err != nil {
		fail(err.Error())
	}

	for {
		guarded(func() {
			outputBuffer.Reset()
			for outputBuffer.Free() >= 5 {
				p, ok := periods.Pop()
				if !ok {
					break
				}
				protocol.EncodeVLQUint(&outputBuffer, p)
			}
			if data := outputBuffer.Result(); len(data) > 0 {
				if _, err := USBWriteBytes(data); err != nil {
					msgerrors++
				}
			}
		})

		time.Sleep(50 * time.Microsecond)
	}
}
