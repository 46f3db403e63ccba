package midifile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVarLen(t *testing.T) {
	tests := []struct {
		name  string
		in    []byte
		value uint32
		n     int
	}{
		{"zero", []byte{0x00}, 0, 1},
		{"single byte max", []byte{0x7F}, 0x7F, 1},
		{"two bytes", []byte{0x81, 0x00}, 0x80, 2},
		{"quarter note at 480", []byte{0x83, 0x60}, 480, 2},
		{"three bytes", []byte{0xC0, 0x80, 0x00}, 0x100000, 3},
		{"four bytes max", []byte{0xFF, 0xFF, 0xFF, 0x7F}, 0x0FFFFFFF, 4},
		{"trailing bytes ignored", []byte{0x40, 0x90, 0x3C}, 0x40, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := ReadVarLen(tt.in, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestReadVarLenOffset(t *testing.T) {
	v, n, err := ReadVarLen([]byte{0xFF, 0x2F, 0x81, 0x40}, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xC0), v)
	assert.Equal(t, 2, n)
}

func TestReadVarLenTruncated(t *testing.T) {
	_, _, err := ReadVarLen([]byte{0x81, 0x80}, 0)
	assert.ErrorIs(t, err, ErrTruncatedVarLen)

	_, _, err = ReadVarLen([]byte{0x00}, 1)
	assert.ErrorIs(t, err, ErrTruncatedVarLen)
}

func TestVarLenRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x3F, 0x7F, 0x80, 0x2000, 0x3FFF, 0x4000, 0x1FFFFF, 0x200000, 0x0FFFFFFF, math.MaxUint32}
	for v := uint32(1); v < 1<<28; v *= 3 {
		values = append(values, v, v-1)
	}

	for _, v := range values {
		enc := AppendVarLen(nil, v)
		got, n, err := ReadVarLen(enc, 0)
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got, "value %d", v)
		assert.Equal(t, len(enc), n, "value %d", v)
	}
}

func TestAppendVarLenEncoding(t *testing.T) {
	assert.Equal(t, []byte{0x00}, AppendVarLen(nil, 0))
	assert.Equal(t, []byte{0x81, 0x00}, AppendVarLen(nil, 0x80))
	assert.Equal(t, []byte{0x90, 0x83, 0x60}, AppendVarLen([]byte{0x90}, 480))
}
