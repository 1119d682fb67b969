package protocol

// SequenceTracker follows the transmitter's 8-bit sequence counter to
// detect duplicates and count lost messages. It lives in the foreground and
// is only updated for frames that are not duplicates. The zero value is
// unset and ready to use.
type SequenceTracker struct {
	last byte
	seen bool
}

// Observe records seq. The first frame ever seen seeds the tracker and
// reports no loss. An exact repeat reports duplicate and leaves the tracker
// untouched. Otherwise lost is the gap (seq - last - 1) mod 256.
func (t *SequenceTracker) Observe(seq byte) (lost uint8, duplicate bool) {
	if !t.seen {
		t.last, t.seen = seq, true
		return 0, false
	}
	if seq == t.last {
		return 0, true
	}
	lost = seq - t.last - 1
	t.last = seq
	return lost, false
}

// Last returns the last accepted sequence number; ok is false when unset
func (t *SequenceTracker) Last() (seq byte, ok bool) {
	return t.last, t.seen
}

// Reset forgets the last sequence number
func (t *SequenceTracker) Reset() {
	t.last, t.seen = 0, false
}
