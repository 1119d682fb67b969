package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures one receiver decision for post-mortem analysis
type TraceEvent struct {
	EventType uint8  // Event type code
	Clock     uint32 // Microsecond clock at event
	Value     uint32 // Period, byte value or frame length
}

// Event type codes
const (
	EvtStart   = 1 // START pulse opened a frame
	EvtByte    = 2 // Byte assembled, Value is the byte
	EvtNoise   = 3 // NOISE ended a frame, Value is the period
	EvtEOT     = 4 // Frame committed, Value is the stored length
	EvtTimeout = 5 // Foreground timeout forced EOT
	EvtOverrun = 6 // Ring could not take a byte
	EvtAbandon = 7 // Frame ended with nothing stored
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Trace ring buffer (non-blocking, for post-mortem)
	traceRing     [TraceRingSize]TraceEvent
	traceRingHead uint8 // Next write position
	traceEnabled  bool

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetTraceEnabled turns receiver event capture on or off
func SetTraceEnabled(enabled bool) {
	traceEnabled = enabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
			// Channel full, drop message (non-blocking)
		}
	}
}

// RecordTrace captures an event in the trace ring. Called from interrupt
// context; it never blocks.
func RecordTrace(eventType uint8, clock, value uint32) {
	if !traceEnabled {
		return
	}
	idx := traceRingHead
	traceRing[idx] = TraceEvent{
		EventType: eventType,
		Clock:     clock,
		Value:     value,
	}
	traceRingHead = (idx + 1) % TraceRingSize
}

// SnapshotTrace returns the recorded events, oldest first
func SnapshotTrace() []TraceEvent {
	g := MaskInterrupts()
	ring := traceRing
	start := traceRingHead
	g.Restore()

	events := make([]TraceEvent, 0, TraceRingSize)
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := ring[(start+i)%TraceRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// EventName returns the printable name of an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtStart:
		return "START"
	case EvtByte:
		return "BYTE"
	case EvtNoise:
		return "NOISE"
	case EvtEOT:
		return "EOT"
	case EvtTimeout:
		return "TIMEOUT"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtAbandon:
		return "ABANDON"
	default:
		return "UNKNOWN"
	}
}

// DumpTrace outputs the trace ring (call after a failed receive)
func DumpTrace() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Receiver Trace Dump ===")
	for _, evt := range SnapshotTrace() {
		debugPrintln("[TRACE] " + EventName(evt.EventType) +
			" t=" + Utoa(evt.Clock) +
			" v=" + Utoa(evt.Value))
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// ClearTrace clears the trace buffer
func ClearTrace() {
	g := MaskInterrupts()
	defer g.Restore()
	for i := range traceRing {
		traceRing[i] = TraceEvent{}
	}
	traceRingHead = 0
}
