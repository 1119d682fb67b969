//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"time"
	"unsafe"

	"tinyrf/core"

	"tinygo.org/x/drivers/delay"
)

// RP2040/RP2350 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareTime reads the RP2040 hardware timer
// Returns the low 32 bits of the 1MHz microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// GetHardwareUptime reads the full 64-bit RP2040 hardware timer
func GetHardwareUptime() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		// If high didn't change, we got a consistent reading
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// hwClock is the core.Clock and core.Delayer backed by the hardware timer
type hwClock struct{}

func (hwClock) Micros() uint32 {
	return GetHardwareTime()
}

// cycleDelayUS is the longest wait delay.Sleep cycle-counts before it
// falls back to time.Sleep
const cycleDelayUS = 16000

// DelayMicros busy-waits us microseconds. It never yields: the transmitter
// may call it with interrupts masked, where time.Sleep would never return.
// Short waits are cycle-counted; longer ones poll the hardware timer.
func (hwClock) DelayMicros(us uint32) {
	if us < cycleDelayUS {
		delay.Sleep(time.Duration(us) * time.Microsecond)
		return
	}
	start := GetHardwareTime()
	for GetHardwareTime()-start < us {
	}
}

var _ core.Delayer = hwClock{}
