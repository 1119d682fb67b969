//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// hostedInterrupts is set when "interrupts" are goroutines serialized by
// irqLock rather than real hardware exceptions
const hostedInterrupts = true

// irqLock stands in for the interrupt controller on regular Go: edge
// handlers run holding it (see Interrupt) and masking acquires it.
// It does not nest.
var irqLock sync.Mutex

// disableInterrupts blocks handlers started through Interrupt
func disableInterrupts() State {
	irqLock.Lock()
	return 0
}

// restoreInterrupts lets handlers run again
func restoreInterrupts(state State) {
	irqLock.Unlock()
}
