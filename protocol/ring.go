package protocol

import "sync/atomic"

// FrameRing is a fixed-size byte ring holding complete frames back to back,
// each prefixed in place by a one-byte header giving the number of body
// bytes that follow.
//
// It is a single-producer/single-consumer structure. The producer side
// (Begin, Put, Commit, Abort) runs in interrupt context; the consumer side
// (Peek, Discard, Len, Pending) runs in the foreground. Positions are
// free-running uint32 counters and only masked down when indexing buf. The
// capacity is a power of two, so wraparound of either the buffer or the
// counters never produces an out-of-range or aliased index.
//
// When the producer needs room it first reclaims the space of frames the
// consumer has already read, then evicts the oldest unread frames whole:
// overwrite-when-full is the policy. The consumer notices by comparing its
// read position with tail and skips ahead.
type FrameRing struct {
	buf  []byte
	size uint32
	mask uint32

	// Producer-owned. head and tail are published with atomic stores.
	write   uint32 // next byte of the open frame
	start   uint32 // header slot of the open frame
	open    bool
	head    atomic.Uint32 // end of committed data
	tail    atomic.Uint32 // header of the oldest frame still in buf
	commits atomic.Uint32
	evicts  atomic.Uint32

	// Consumer-owned. released mirrors read for the producer.
	read     uint32
	released atomic.Uint32
	peekEnd  uint32
	peeked   bool
	dropped  uint32
}

// NewFrameRing allocates a ring of at least capacity bytes, rounded up to
// a power of two
func NewFrameRing(capacity int) (*FrameRing, error) {
	if capacity < MinRingCapacity {
		return nil, ErrRingTooSmall
	}
	if capacity > MaxRingCapacity {
		capacity = MaxRingCapacity
	}
	size := uint32(1)
	for size < uint32(capacity) {
		size <<= 1
	}
	return &FrameRing{
		buf:  make([]byte, size),
		size: size,
		mask: size - 1,
	}, nil
}

// before reports whether position a precedes b, modulo 2^32
func before(a, b uint32) bool {
	return int32(a-b) < 0
}

// Cap returns the ring capacity in bytes
func (r *FrameRing) Cap() int {
	return int(r.size)
}

// Begin opens a new frame at the end of committed data and reserves its
// header slot. Any frame still open is abandoned.
func (r *FrameRing) Begin() bool {
	r.start = r.head.Load()
	r.write = r.start
	r.open = false
	if !r.makeRoom(r.start + FrameHeaderSize) {
		return false
	}
	r.write = r.start + FrameHeaderSize
	r.open = true
	return true
}

// Put appends one body byte to the open frame. It returns false when no
// frame is open or the frame already holds MaxFrameLength bytes.
func (r *FrameRing) Put(b byte) bool {
	if !r.open || r.write-r.start >= MaxStoredFrame {
		return false
	}
	if !r.makeRoom(r.write + 1) {
		return false
	}
	r.buf[r.write&r.mask] = b
	r.write++
	return true
}

// Open reports whether a frame is being assembled
func (r *FrameRing) Open() bool {
	return r.open
}

// OpenLen returns the number of body bytes in the open frame
func (r *FrameRing) OpenLen() int {
	if !r.open {
		return 0
	}
	return int(r.write - r.start - FrameHeaderSize)
}

// Commit closes the open frame, writes its header and publishes it to the
// consumer. A frame without body bytes is dropped and its space reused.
// It returns the body length committed.
func (r *FrameRing) Commit() int {
	if !r.open {
		return 0
	}
	r.open = false
	n := r.write - r.start - FrameHeaderSize
	if n == 0 {
		r.write = r.start
		return 0
	}
	r.buf[r.start&r.mask] = byte(n)
	r.commits.Add(1)
	r.head.Store(r.write)
	return int(n)
}

// Abort discards the open frame
func (r *FrameRing) Abort() {
	r.open = false
	r.write = r.start
}

// makeRoom frees space from tail until position end fits. Frames already
// consumed are reclaimed without counting; unread ones are evicted. The
// open frame itself is never evicted.
func (r *FrameRing) makeRoom(end uint32) bool {
	tail := r.tail.Load()
	if end-tail <= r.size {
		return true
	}
	if rd := r.released.Load(); before(tail, rd) && !before(r.start, rd) {
		tail = rd
		r.tail.Store(tail)
	}
	for end-tail > r.size {
		if tail == r.start {
			return false
		}
		tail += FrameHeaderSize + uint32(r.buf[tail&r.mask])
		// Publish before the old bytes are overwritten
		r.tail.Store(tail)
		r.evicts.Add(1)
	}
	return true
}

// Commits returns the number of frames committed since creation
func (r *FrameRing) Commits() uint32 {
	return r.commits.Load()
}

// Evictions returns the number of unread frames overwritten to make room
func (r *FrameRing) Evictions() uint32 {
	return r.evicts.Load()
}

// WriteIndex returns the producer cursor as an index into the buffer
func (r *FrameRing) WriteIndex() int {
	return int(r.write & r.mask)
}

// resync moves read forward to tail if the producer overwrote unread frames
func (r *FrameRing) resync() {
	if tail := r.tail.Load(); before(r.read, tail) {
		r.read = tail
		r.peeked = false
		r.dropped++
		r.released.Store(tail)
	}
}

// Peek copies the body of the oldest unread frame into dst without
// consuming it and returns the body length, which may exceed len(dst).
// ok is false when nothing is buffered. A frame overwritten while being
// copied is skipped.
func (r *FrameRing) Peek(dst []byte) (n int, ok bool) {
	for {
		r.resync()
		head := r.head.Load()
		if r.read == head {
			r.peeked = false
			return 0, false
		}
		pos := r.read
		n = int(r.buf[pos&r.mask])
		body := pos + FrameHeaderSize
		for i := 0; i < n && i < len(dst); i++ {
			dst[i] = r.buf[(body+uint32(i))&r.mask]
		}
		if before(pos, r.tail.Load()) {
			continue
		}
		r.peekEnd = body + uint32(n)
		r.peeked = true
		return n, true
	}
}

// Discard consumes the frame returned by the last successful Peek
func (r *FrameRing) Discard() {
	if !r.peeked {
		return
	}
	r.peeked = false
	r.read = r.peekEnd
	r.released.Store(r.read)
	r.resync()
}

// ReadIndex returns the consumer cursor as an index into the buffer
func (r *FrameRing) ReadIndex() int {
	return int(r.read & r.mask)
}

// Len returns the ring distance: unread bytes between the consumer and the
// end of committed data, headers included
func (r *FrameRing) Len() int {
	r.resync()
	return int(r.head.Load() - r.read)
}

// Pending counts unread committed frames by walking their headers
func (r *FrameRing) Pending() int {
	r.resync()
	head := r.head.Load()
	count := 0
	for pos := r.read; before(pos, head); count++ {
		pos += FrameHeaderSize + uint32(r.buf[pos&r.mask])
	}
	return count
}

// Dropped returns how many times the consumer had to skip overwritten frames
func (r *FrameRing) Dropped() uint32 {
	return r.dropped
}
