package protocol

import "sync/atomic"

// OutputBuffer provides an abstraction for writing outgoing stream data
type OutputBuffer interface {
	Output(data []byte)
}

// ScratchOutput implements OutputBuffer using a fixed-size scratch buffer.
// Writes beyond the capacity are truncated.
type ScratchOutput struct {
	buf [ScratchSize]byte
	pos int
}

// ScratchSize holds a batch of VLQ encoded periods
const ScratchSize = 64

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

// Free returns the bytes still available
func (s *ScratchOutput) Free() int {
	return len(s.buf) - s.pos
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// StreamBuffer accumulates stream bytes until complete values can be
// decoded. Data is always contiguous.
type StreamBuffer struct {
	buf []byte
}

// NewStreamBuffer creates a StreamBuffer with an initial capacity
func NewStreamBuffer(capacity int) *StreamBuffer {
	return &StreamBuffer{buf: make([]byte, 0, capacity)}
}

// Write appends data; it never fails
func (s *StreamBuffer) Write(data []byte) (int, error) {
	s.buf = append(s.buf, data...)
	return len(data), nil
}

func (s *StreamBuffer) Data() []byte {
	return s.buf
}

// Pop removes n bytes from the front, compacting in place
func (s *StreamBuffer) Pop(n int) {
	if n > len(s.buf) {
		n = len(s.buf)
	}
	remaining := copy(s.buf, s.buf[n:])
	s.buf = s.buf[:remaining]
}

// Reset clears the buffer
func (s *StreamBuffer) Reset() {
	s.buf = s.buf[:0]
}

// PeriodQueueSize is the number of periods a PeriodQueue holds; a power of
// two so the free-running indices wrap cleanly
const PeriodQueueSize = 64

// PeriodQueue is a lock-free SPSC queue of pulse periods. Push runs in the
// edge interrupt, Pop in the foreground. When full, new periods are dropped
// and counted.
type PeriodQueue struct {
	buf     [PeriodQueueSize]uint32
	head    atomic.Uint32 // producer
	tail    atomic.Uint32 // consumer
	dropped atomic.Uint32
}

// Push appends a period, returning false if the queue is full
func (q *PeriodQueue) Push(period uint32) bool {
	head := q.head.Load()
	if head-q.tail.Load() >= PeriodQueueSize {
		q.dropped.Add(1)
		return false
	}
	q.buf[head%PeriodQueueSize] = period
	q.head.Store(head + 1)
	return true
}

// Pop removes the oldest period
func (q *PeriodQueue) Pop() (uint32, bool) {
	tail := q.tail.Load()
	if tail == q.head.Load() {
		return 0, false
	}
	period := q.buf[tail%PeriodQueueSize]
	q.tail.Store(tail + 1)
	return period, true
}

// Dropped returns the number of periods lost to a full queue
func (q *PeriodQueue) Dropped() uint32 {
	return q.dropped.Load()
}
