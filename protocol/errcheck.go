package protocol

// ErrorCheck selects the error-detection byte carried by each frame
type ErrorCheck uint8

const (
	ErrorCheckNone ErrorCheck = iota
	ErrorCheckChecksum
	ErrorCheckCRC8
)

// Checksum8 computes a one's-complement 8-bit checksum (the TCP algorithm
// folded to a byte). The sequence number is summed in as if it were the
// first data byte.
func Checksum8(data []byte, seq byte) byte {
	// Let overflows accumulate in the upper 8 bits
	sum := uint16(^seq)
	for _, b := range data {
		sum += uint16(^b)
	}
	// Fold the overflows into the lower 8 bits
	sum = (sum & 0xFF) + (sum >> 8)
	return ^byte(sum)
}

// CRC8 computes the Dallas/Maxim CRC-8 (reflected polynomial 0x8C) seeded
// with the sequence number
func CRC8(data []byte, seq byte) byte {
	crc := seq
	for _, b := range data {
		for i := 0; i < BitsPerByte; i++ {
			mix := (crc ^ b) & 0x01
			crc >>= 1
			if mix != 0 {
				crc ^= 0x8C
			}
			b >>= 1
		}
	}
	return crc
}

// Size returns the number of bytes the check occupies in a frame
func (c ErrorCheck) Size() int {
	if c == ErrorCheckNone {
		return 0
	}
	return 1
}

// Enabled reports whether frames carry an error-check byte
func (c ErrorCheck) Enabled() bool {
	return c != ErrorCheckNone
}

// Compute returns the check byte for payload seeded with seq.
// ErrorCheckNone always returns 0.
func (c ErrorCheck) Compute(payload []byte, seq byte) byte {
	switch c {
	case ErrorCheckChecksum:
		return Checksum8(payload, seq)
	case ErrorCheckCRC8:
		return CRC8(payload, seq)
	default:
		return 0
	}
}

func (c ErrorCheck) String() string {
	switch c {
	case ErrorCheckNone:
		return "none"
	case ErrorCheckChecksum:
		return "checksum8"
	case ErrorCheckCRC8:
		return "crc8"
	default:
		return "unknown"
	}
}

// ParseErrorCheck maps a name as printed by String back to an ErrorCheck
func ParseErrorCheck(name string) (ErrorCheck, error) {
	switch name {
	case "none", "":
		return ErrorCheckNone, nil
	case "checksum8", "checksum":
		return ErrorCheckChecksum, nil
	case "crc8", "crc":
		return ErrorCheckCRC8, nil
	}
	return ErrorCheckNone, ErrUnknownErrorCheck
}
