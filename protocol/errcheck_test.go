package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC8KnownVector(t *testing.T) {
	// CRC-8/MAXIM check value
	assert.Equal(t, byte(0xA1), CRC8([]byte("123456789"), 0))
	assert.Equal(t, byte(0x00), CRC8(nil, 0))
	assert.Equal(t, byte(0x5A), CRC8(nil, 0x5A), "seed passes through empty data")
}

func TestCRC8SeedChangesResult(t *testing.T) {
	data := []byte("hello")
	seen := make(map[byte]bool)
	for seq := 0; seq < 8; seq++ {
		seen[CRC8(data, byte(seq))] = true
	}
	assert.Len(t, seen, 8)
}

func TestChecksum8(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		seq  byte
		want byte
	}{
		{"empty", nil, 0, 0x00},
		{"single", []byte{0x01}, 0, 0x01},
		{"sum", []byte{0x01, 0x02}, 0, 0x03},
		{"seeded", []byte{0x01}, 5, 0x06},
		{"all zero", []byte{0, 0, 0}, 0, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum8(tt.data, tt.seq))
		})
	}
}

func TestSingleBitFlipsDetected(t *testing.T) {
	payload := []byte("TinyRF says hi")
	for _, check := range []ErrorCheck{ErrorCheckChecksum, ErrorCheckCRC8} {
		t.Run(check.String(), func(t *testing.T) {
			want := check.Compute(payload, 42)
			for i := range payload {
				for bit := 0; bit < BitsPerByte; bit++ {
					flipped := append([]byte(nil), payload...)
					flipped[i] ^= 1 << bit
					assert.NotEqual(t, want, check.Compute(flipped, 42), "byte %d bit %d", i, bit)
				}
			}
		})
	}
}

func TestErrorCheckSize(t *testing.T) {
	assert.Equal(t, 0, ErrorCheckNone.Size())
	assert.Equal(t, 1, ErrorCheckChecksum.Size())
	assert.Equal(t, 1, ErrorCheckCRC8.Size())
	assert.False(t, ErrorCheckNone.Enabled())
	assert.Equal(t, byte(0), ErrorCheckNone.Compute([]byte{1, 2, 3}, 9))
}

func TestParseErrorCheck(t *testing.T) {
	for _, c := range []ErrorCheck{ErrorCheckNone, ErrorCheckChecksum, ErrorCheckCRC8} {
		got, err := ParseErrorCheck(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseErrorCheck("md5")
	assert.ErrorIs(t, err, ErrUnknownErrorCheck)
}
