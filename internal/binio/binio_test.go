package binio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPrimitives(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUint8(200))
	require.NoError(t, w.WriteUint32(4294967295))
	require.NoError(t, w.WriteInt32(-12345))
	require.NoError(t, w.WriteUint64(18446744073709551615))
	require.NoError(t, w.WriteFloat64(-3.5e10))
	require.NoError(t, w.WriteString("pineappl"))

	r := NewReader(&buf)
	u8, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(200), u8)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(4294967295), u32)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-12345), i32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), u64)

	f64, err := r.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -3.5e10, f64)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "pineappl", s)
}

func TestReadShortBufferErrors(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2}))
	_, err := r.ReadUint32()
	assert.Error(t, err)
}

func TestWriteBytesEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteBytes(nil))
	r := NewReader(&buf)
	b, err := r.ReadBytes()
	require.NoError(t, err)
	assert.Empty(t, b)
}
