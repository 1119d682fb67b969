package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRing(t *testing.T, capacity int) *FrameRing {
	t.Helper()
	r, err := NewFrameRing(capacity)
	require.NoError(t, err)
	return r
}

// putFrame writes a frame of n bytes, each set to tag
func putFrame(t *testing.T, r *FrameRing, n int, tag byte) {
	t.Helper()
	require.True(t, r.Begin())
	for i := 0; i < n; i++ {
		require.True(t, r.Put(tag))
	}
	require.Equal(t, n, r.Commit())
}

func TestFrameRingCapacity(t *testing.T) {
	_, err := NewFrameRing(MinRingCapacity - 1)
	assert.ErrorIs(t, err, ErrRingTooSmall)

	assert.Equal(t, 512, newRing(t, MinRingCapacity).Cap())
	assert.Equal(t, 512, newRing(t, 512).Cap())
	assert.Equal(t, MaxRingCapacity, newRing(t, 1<<20).Cap())
}

func TestFrameRingPutPeekDiscard(t *testing.T) {
	r := newRing(t, DefaultRingCapacity)
	_, ok := r.Peek(nil)
	assert.False(t, ok)

	require.True(t, r.Begin())
	for _, b := range []byte("hello") {
		require.True(t, r.Put(b))
	}
	assert.Equal(t, 5, r.OpenLen())
	_, ok = r.Peek(nil)
	assert.False(t, ok, "open frame is not visible")

	assert.Equal(t, 5, r.Commit())
	assert.Equal(t, 1, r.Pending())
	assert.Equal(t, 6, r.Len())

	buf := make([]byte, 16)
	n, ok := r.Peek(buf)
	require.True(t, ok)
	assert.Equal(t, "hello", string(buf[:n]))

	// Peek does not consume
	n, ok = r.Peek(buf)
	require.True(t, ok)
	assert.Equal(t, 5, n)

	r.Discard()
	_, ok = r.Peek(buf)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestFrameRingPeekShortBuffer(t *testing.T) {
	r := newRing(t, DefaultRingCapacity)
	putFrame(t, r, 10, 0xAB)

	buf := make([]byte, 4)
	n, ok := r.Peek(buf)
	require.True(t, ok)
	assert.Equal(t, 10, n, "full length is reported")
	assert.Equal(t, []byte{0xAB, 0xAB, 0xAB, 0xAB}, buf)
}

func TestFrameRingEmptyCommit(t *testing.T) {
	r := newRing(t, DefaultRingCapacity)
	require.True(t, r.Begin())
	assert.Zero(t, r.Commit())
	assert.Zero(t, r.Commits())
	assert.Zero(t, r.Pending())

	require.True(t, r.Begin())
	r.Put(1)
	r.Abort()
	assert.False(t, r.Open())
	assert.Zero(t, r.Pending())
}

func TestFrameRingFrameLimit(t *testing.T) {
	r := newRing(t, DefaultRingCapacity)
	require.True(t, r.Begin())
	for i := 0; i < MaxFrameLength; i++ {
		require.True(t, r.Put(byte(i)))
	}
	assert.False(t, r.Put(0xFF))
	assert.Equal(t, MaxFrameLength, r.Commit())
	assert.False(t, r.Put(0x00), "no frame open")
}

func TestFrameRingWraparound(t *testing.T) {
	r := newRing(t, MinRingCapacity)
	buf := make([]byte, MaxFrameLength)

	// 100 frames of 10 bytes cover the 512 byte buffer twice over
	for i := 0; i < 100; i++ {
		putFrame(t, r, 10, byte(i))
		assert.GreaterOrEqual(t, r.WriteIndex(), 0)
		assert.Less(t, r.WriteIndex(), r.Cap())

		n, ok := r.Peek(buf)
		require.True(t, ok)
		require.Equal(t, 10, n)
		for _, b := range buf[:n] {
			require.Equal(t, byte(i), b, "frame %d", i)
		}
		r.Discard()
		assert.Less(t, r.ReadIndex(), r.Cap())
	}
	assert.Zero(t, r.Dropped())
	assert.Zero(t, r.Evictions())
}

func TestFrameRingCounterWrap(t *testing.T) {
	r := newRing(t, MinRingCapacity)
	const near = uint32(0xFFFFFF00)
	r.head.Store(near)
	r.tail.Store(near)
	r.read = near
	r.released.Store(near)

	buf := make([]byte, MaxFrameLength)
	for i := 0; i < 40; i++ {
		putFrame(t, r, 20, byte(i))
		n, ok := r.Peek(buf)
		require.True(t, ok)
		require.Equal(t, 20, n)
		assert.Equal(t, byte(i), buf[0])
		assert.Equal(t, byte(i), buf[19])
		r.Discard()
	}
	assert.Less(t, r.head.Load(), near, "positions wrapped")
	assert.Zero(t, r.Dropped())
}

func TestFrameRingOverwriteWhenFull(t *testing.T) {
	r := newRing(t, MinRingCapacity)

	// 32 bytes per stored frame, 16 fit in 512
	for i := 0; i < 40; i++ {
		putFrame(t, r, 31, byte(i))
	}
	assert.Equal(t, uint32(40), r.Commits())
	assert.Equal(t, uint32(24), r.Evictions())
	assert.Equal(t, 16, r.Pending())
	assert.LessOrEqual(t, r.Len(), r.Cap())

	// Every remaining header predicts the span of its frame: the frames come
	// back whole and in order
	buf := make([]byte, MaxFrameLength)
	for want := 24; want < 40; want++ {
		n, ok := r.Peek(buf)
		require.True(t, ok)
		require.Equal(t, 31, n)
		for _, b := range buf[:n] {
			require.Equal(t, byte(want), b)
		}
		r.Discard()
	}
	_, ok := r.Peek(buf)
	assert.False(t, ok)
	assert.Equal(t, uint32(1), r.Dropped())
}

func TestFrameRingReclaimsReadFrames(t *testing.T) {
	r := newRing(t, MinRingCapacity)
	buf := make([]byte, MaxFrameLength)

	// Read the first 4 of 16 frames that fill the buffer exactly
	for i := 0; i < 16; i++ {
		putFrame(t, r, 31, byte(i))
	}
	for i := 0; i < 4; i++ {
		_, ok := r.Peek(buf)
		require.True(t, ok)
		r.Discard()
	}

	// 6 more frames: 4 reuse consumed space, 2 push out unread frames
	for i := 16; i < 22; i++ {
		putFrame(t, r, 31, byte(i))
	}
	assert.Equal(t, uint32(2), r.Evictions())
	assert.Equal(t, 16, r.Pending())

	n, ok := r.Peek(buf)
	require.True(t, ok)
	require.Equal(t, 31, n)
	assert.Equal(t, byte(6), buf[0])
	assert.Equal(t, uint32(1), r.Dropped())
}

func TestFrameRingOverwriteWhilePeeked(t *testing.T) {
	r := newRing(t, MinRingCapacity)
	putFrame(t, r, 100, 1)

	buf := make([]byte, MaxFrameLength)
	_, ok := r.Peek(buf)
	require.True(t, ok)

	// Push the peeked frame and the one after it out before the discard
	for i := 0; i < 6; i++ {
		putFrame(t, r, 100, byte(i+2))
	}
	r.Discard()

	n, ok := r.Peek(buf)
	require.True(t, ok)
	assert.Equal(t, 100, n)
	assert.Equal(t, byte(3), buf[0])
	assert.Equal(t, uint32(1), r.Dropped())
}

func TestFrameRingOpenFrameNeverEvictsItself(t *testing.T) {
	r := newRing(t, MinRingCapacity)
	putFrame(t, r, 200, 1)
	putFrame(t, r, 200, 2)

	require.True(t, r.Begin())
	for i := 0; i < MaxFrameLength; i++ {
		require.True(t, r.Put(3))
	}
	assert.Equal(t, MaxFrameLength, r.Commit())
	assert.Equal(t, uint32(1), r.Evictions())

	buf := make([]byte, MaxFrameLength)
	n, ok := r.Peek(buf)
	require.True(t, ok)
	assert.Equal(t, 200, n)
	assert.Equal(t, byte(2), buf[0])
	r.Discard()

	n, ok = r.Peek(buf)
	require.True(t, ok)
	assert.Equal(t, MaxFrameLength, n)
	assert.Equal(t, byte(3), buf[0])
}
