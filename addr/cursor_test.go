package addr

import (
	"testing"

	"github.com/rpcpool/patricia-cache/errs"
	"github.com/stretchr/testify/require"
)

func TestCursorNextAndEndOfInput(t *testing.T) {
	c := NewCursor(10, []byte{0x01, 0x02})
	require.True(t, c.HasNext())
	require.Equal(t, Address(10), c.Address())

	b, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, byte(0x01), b)
	require.Equal(t, Address(11), c.Address())

	_, err = c.Next()
	require.NoError(t, err)
	require.False(t, c.HasNext())

	_, err = c.Next()
	require.ErrorIs(t, err, errs.EndOfInput)
}

func TestCursorSkip(t *testing.T) {
	c := NewCursor(0, []byte{1, 2, 3, 4, 5})
	require.Equal(t, 3, c.Skip(3))
	require.Equal(t, 2, c.Skip(10))
	require.Equal(t, 0, c.Skip(1))
}

func TestCursorNextLong(t *testing.T) {
	c := NewCursor(0, []byte{0x00, 0x00, 0x01, 0x00})
	v, err := c.NextLong(4)
	require.NoError(t, err)
	require.Equal(t, uint64(256), v)
}

func TestCursorNextLongAtDoesNotMove(t *testing.T) {
	c := NewCursor(0, []byte{0xff, 0x00, 0x01})
	v, err := c.NextLongAt(1, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)
	require.Equal(t, 0, c.Offset())
}

func TestNewCursorAt(t *testing.T) {
	c := NewCursorAt(100, []byte{1, 2, 3}, 2)
	require.Equal(t, Address(102), c.Address())
	b, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, byte(3), b)
}
