package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameChecksumIsAlwaysZeroModulo256(t *testing.T) {
	cases := [][]Arg{
		nil,
		{A(1, 1, 1)},
		{A(0xBEEF, 1, 2)},
		{A(0xFFFFFFFF, 1, 4)},
		{A(1, 1, 4), A(2, 5, 2)},
	}
	for _, args := range cases {
		m, err := New(0x10, args...)
		require.NoError(t, err)
		var sum byte
		for _, b := range m {
			sum += b
		}
		require.EqualValuesf(t, 0, sum, "frame %v did not sum to 0 mod 256", m)
	}
}

func TestArgumentRoundTrip(t *testing.T) {
	type triple struct {
		value  uint32
		offset int
		width  int
	}
	cases := []triple{
		{0xAB, 1, 1},
		{0xBEEF, 1, 2},
		{0x00FACE, 1, 3},
		{0xDEADBEEF, 1, 4},
		{0xFF, 6, 1},
	}
	for _, c := range cases {
		m, err := New(0x20, A(c.value, c.offset, c.width))
		require.NoError(t, err)
		got, err := m.Argument(c.offset, c.width)
		require.NoError(t, err)
		require.EqualValues(t, c.value, got)
	}
}

func TestArgumentOffsetOutOfRangeRejected(t *testing.T) {
	_, err := New(0x20, A(1, 0, 1))
	require.Error(t, err, "offset 0 overlaps the opcode byte")

	_, err = New(0x20, A(1, 6, 2))
	require.Error(t, err, "offset 6 width 2 spills into the checksum byte")
}

func TestLaterArgumentOverwritesEarlierOverlap(t *testing.T) {
	m, err := New(0x20, A(0x01, 1, 4), A(0x02, 1, 4))
	require.NoError(t, err)
	got, err := m.Argument(1, 4)
	require.NoError(t, err)
	require.EqualValues(t, 0x02, got)
}

func TestParseDoesNotValidateChecksum(t *testing.T) {
	buf := make([]byte, Size)
	buf[0] = 0x01
	buf[7] = 0xFF // deliberately wrong
	m, err := Parse(buf)
	require.NoError(t, err)
	require.EqualValues(t, 0xFF, m.Checksum())
	require.NotEqual(t, m.Checksum(), m.ComputedChecksum())
}

func TestIsDeviceError(t *testing.T) {
	require.True(t, IsDeviceError(ErrorParameter))
	require.False(t, IsDeviceError(ResponseVersion))
}
