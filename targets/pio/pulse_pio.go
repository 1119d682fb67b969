//go:build rp2040 || rp2350

package pio

// PIO pulse-train backend using tinygo-org/pio package
// Pulses are timed by the state machine, so transmissions do not depend on
// the CPU being free of interrupts.

import (
	"device/rp"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"tinyrf/core"
)

// PIO program for LOW/HIGH pulse generation, one instruction per microsecond
// Command word format:
//
//	Bits 0-15:  LOW loop count
//	Bits 16-31: HIGH loop count, 0 leaves the line LOW (idle)
//
// Program flow:
//  1. Pull 32-bit command from FIFO
//  2. Drive the pin LOW for X+3 cycles
//  3. If Y is zero, go back for the next command with the line still LOW
//  4. Otherwise drive the pin HIGH for Y+5 cycles, the pull included
//
// buildPulseProgram creates the pulse PIO program using AssemblerV0
func buildPulseProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),   // 1: out x, 16 (low count)
		asm.Out(rp2pio.OutDestY, 16).Encode(),   // 2: out y, 16 (high count)
		asm.Set(rp2pio.SetDestPins, 0).Encode(), // 3: set pins, 0
		// low_loop:
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 4: jmp x--, 4
		asm.Jmp(0, rp2pio.JmpYZero).Encode(),     // 5: jmp !y, 0 (idle)
		asm.Set(rp2pio.SetDestPins, 1).Encode(),  // 6: set pins, 1
		// high_loop:
		asm.Jmp(7, rp2pio.JmpYNZeroDec).Encode(), // 7: jmp y--, 7
		// .wrap
	}
}

const pulsePIOOrigin = 0 // Load at offset 0 for correct jump addresses

// Fixed instruction overhead of each segment, see the program above
const (
	lowOverhead  = 3
	highOverhead = 5
)

// PulseWriter implements core.PulseWriter on a PIO state machine
type PulseWriter struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8

	// FDEBUG register of the block and this machine's TXSTALL bit
	regs  *rp.PIO0_Type
	stall uint32
}

var _ core.PulseWriter = (*PulseWriter)(nil)

// NewPulseWriter creates a PIO pulse writer
// pioNum: 0 for PIO0, 1 for PIO1
// smNum: 0-3 for state machine number
func NewPulseWriter(pioNum, smNum uint8) *PulseWriter {
	var pioHW *rp2pio.PIO
	regs := rp.PIO0
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
		regs = rp.PIO1
	}

	return &PulseWriter{
		pio:   pioHW,
		sm:    pioHW.StateMachine(smNum),
		regs:  regs,
		stall: 1 << (rp.PIO0_FDEBUG_TXSTALL_Pos + uint32(smNum)),
	}
}

// Init loads the program and drives pin LOW
func (w *PulseWriter) Init(pin core.GPIOPin) error {
	w.pin = machine.Pin(pin)

	// Claim the state machine first
	w.sm.TryClaim()

	program := buildPulseProgram()
	offset, err := w.pio.AddProgram(program, pulsePIOOrigin)
	if err != nil {
		return err
	}
	w.offset = offset

	w.pin.Configure(machine.PinConfig{Mode: w.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(w.pin, 1)

	// Shift right, explicit PULL, 32-bit threshold
	cfg.SetOutShift(true, false, 32)

	// Both FIFOs feed TX: eight queued pulses
	cfg.SetFIFOJoin(rp2pio.FifoJoinTx)

	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// 1MHz state machine clock: one instruction per microsecond
	cfg.SetClkDivIntFrac(uint16(machine.CPUFrequency()/1000000), 0)

	// Initialize state machine FIRST
	w.sm.Init(offset, cfg)

	// THEN set pin direction (must be after Init!)
	w.sm.SetPindirsConsecutive(w.pin, 1, true)
	w.sm.SetPinsConsecutive(w.pin, 1, false)

	w.sm.SetEnabled(true)
	return nil
}

func loops(us, overhead uint32) uint32 {
	if us <= overhead {
		return 0
	}
	us -= overhead
	if us > 0xFFFF {
		us = 0xFFFF
	}
	return us
}

func (w *PulseWriter) put(cmd uint32) {
	// Wait for FIFO space and write
	for w.sm.IsTxFIFOFull() {
		// Busy wait - at most one pulse
	}
	w.sm.TxPut(cmd)
}

// Pulse queues one LOW/HIGH pulse
func (w *PulseWriter) Pulse(lowUS, highUS uint32) {
	high := loops(highUS, highOverhead)
	if high == 0 {
		// Zero means idle to the program
		high = 1
	}
	w.put(loops(lowUS, lowOverhead) | high<<16)
}

// Idle queues a LOW hold and returns once the state machine has clocked
// it out and stalled on the empty FIFO
func (w *PulseWriter) Idle(holdUS uint32) {
	w.put(loops(holdUS, lowOverhead))
	for !w.sm.IsTxFIFOEmpty() {
		// Busy wait
	}
	// The hold is now executing. TXSTALL is sticky, and re-asserts at once
	// if the machine already stalled before the clear.
	w.regs.FDEBUG.Set(w.stall)
	for w.regs.FDEBUG.Get()&w.stall == 0 {
	}
}

// Stop halts the state machine and leaves the pin LOW
func (w *PulseWriter) Stop() {
	w.sm.SetEnabled(false)
	w.sm.ClearFIFOs()
	w.sm.Restart()
	w.sm.SetPinsConsecutive(w.pin, 1, false)
	w.sm.SetEnabled(true)
}
