// Package protocol implements the tinyrf pulse-period radio protocol
package protocol

// Version represents the tinyrf protocol/firmware version
const Version = "0.3.0"

// Protocol constants
const (
	BitsPerByte = 8

	// MaxFrameLength is the largest value the length byte can carry.
	// Everything that counts bytes on the wire is a single byte.
	MaxFrameLength = 255

	// FrameHeaderSize is the in-ring header that precedes every stored frame
	FrameHeaderSize = 1

	// MaxStoredFrame is header plus the largest frame body
	MaxStoredFrame = FrameHeaderSize + MaxFrameLength

	// MinRingCapacity guarantees a frame in progress never has to evict itself
	MinRingCapacity = MaxStoredFrame + 1

	// DefaultRingCapacity matches two maximal frames
	DefaultRingCapacity = 2 * MaxStoredFrame

	// MaxRingCapacity bounds the ring so positions stay far from 2^31 apart
	MaxRingCapacity = 1 << 16

	// EOTBurstPulses is the number of artificial noise pulses sent after a
	// frame when end-of-transmission is signalled by the transmitter.
	// 8 fill the receiver's byte accumulator, 2 spare.
	EOTBurstPulses = 10
)
