package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// The capture stream carries one VLQ per pulse period. The encoding is the
// Klipper one: 7 bits per byte, most significant group first, high bit set
// on every byte except the last.

// maxVLQBytes is enough for any uint32
const maxVLQBytes = 5

// EncodeVLQInt encodes a signed integer to VLQ format
func EncodeVLQInt(output OutputBuffer, v int32) {
	var tmp [maxVLQBytes]byte
	output.Output(AppendVLQInt(tmp[:0], v))
}

// AppendVLQInt appends the VLQ form of v to dst without allocating when dst
// has room
func AppendVLQInt(dst []byte, v int32) []byte {
	if !(-(1<<26) <= v && v < (3<<26)) {
		dst = append(dst, byte((v>>28)&0x7F)|0x80)
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		dst = append(dst, byte((v>>21)&0x7F)|0x80)
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		dst = append(dst, byte((v>>14)&0x7F)|0x80)
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		dst = append(dst, byte((v>>7)&0x7F)|0x80)
	}
	return append(dst, byte(v&0x7F))
}

// EncodeVLQUint encodes an unsigned integer to VLQ format
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes a VLQ signed integer and advances data past it.
// data is left untouched when the value is incomplete.
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32(buf[0])
	v := c & 0x7F
	// Sign extension for negative numbers
	if (c & 0x60) == 0x60 {
		v |= ^uint32(0x1F)
	}

	i := 1
	for c&0x80 != 0 {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i >= maxVLQBytes {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[i])
		i++
		v = (v << 7) | (c & 0x7F)
	}

	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes a VLQ unsigned integer from the data slice
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}
