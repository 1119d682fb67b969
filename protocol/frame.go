package protocol

// Frame layout on the wire, after the preamble and START pulse:
//
//	+--------+-------------+----------+-------------+
//	| Length | Error check | Sequence |   Payload   |
//	+--------+-------------+----------+-------------+
//	| 1 byte |  0-1 byte   | 0-1 byte | 0-253 bytes |
//	+--------+-------------+----------+-------------+
//
// Length counts everything after itself. A length of 0 is an empty frame and
// is never delivered. Bytes go out LSB first, payload in forward order.

// FrameLayout describes which optional fields a frame carries
type FrameLayout struct {
	Check    ErrorCheck
	Sequence bool
}

// Overhead returns the number of non-payload bytes counted by Length
func (l FrameLayout) Overhead() int {
	n := l.Check.Size()
	if l.Sequence {
		n++
	}
	return n
}

// MinLength is the smallest Length that can carry at least one payload byte
func (l FrameLayout) MinLength() int {
	return l.Overhead() + 1
}

// MaxPayload returns the largest payload a single frame can carry
func (l FrameLayout) MaxPayload() int {
	return MaxFrameLength - l.Overhead()
}

// AppendFrame appends Length, check, sequence and payload to dst.
// The check byte is computed over payload seeded with seq (or 0 when
// sequencing is off); Length itself is never covered.
func (l FrameLayout) AppendFrame(dst []byte, payload []byte, seq byte) ([]byte, error) {
	if len(payload) > l.MaxPayload() {
		return dst, ErrPayloadTooLarge
	}
	if !l.Sequence {
		seq = 0
	}
	dst = append(dst, byte(l.Overhead()+len(payload)))
	if l.Check.Enabled() {
		dst = append(dst, l.Check.Compute(payload, seq))
	}
	if l.Sequence {
		dst = append(dst, seq)
	}
	return append(dst, payload...), nil
}

// FrameFields is a stored frame body split into its fields.
// Payload aliases the body passed to ParseFrame.
type FrameFields struct {
	Check   byte
	Seq     byte
	Payload []byte
}

// ParseFrame splits a frame body (the bytes after Length). ok is false when
// the body is shorter than MinLength.
func (l FrameLayout) ParseFrame(body []byte) (f FrameFields, ok bool) {
	if len(body) < l.MinLength() {
		return f, false
	}
	if l.Check.Enabled() {
		f.Check = body[0]
		body = body[1:]
	}
	if l.Sequence {
		f.Seq = body[0]
		body = body[1:]
	}
	f.Payload = body
	return f, true
}

// Verify recomputes the check for a parsed frame. An all-zero payload whose
// stored and computed checks are both zero passes any zero-seeded check
// trivially, so it is reported as noise rather than valid.
func (l FrameLayout) Verify(f FrameFields) Status {
	if !l.Check.Enabled() {
		return StatusSuccess
	}
	seq := f.Seq
	if !l.Sequence {
		seq = 0
	}
	calc := l.Check.Compute(f.Payload, seq)
	if calc != f.Check {
		return StatusCorrupted
	}
	if calc|f.Check == 0 && allZero(f.Payload) {
		return StatusNoise
	}
	return StatusSuccess
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
