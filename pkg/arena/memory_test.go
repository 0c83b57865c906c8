package arena

import (
	"testing"

	"github.com/andrei-cloud/go_protoop/internal/errorcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadWriteBytes verifies that bytes written into a block can be read back.
func TestReadWriteBytes(t *testing.T) {
	t.Parallel()

	a := New(128)
	p, err := a.Alloc(10)
	require.NoError(t, err)

	require.NoError(t, WriteBytes(a, p, []byte("hello")))

	got, err := ReadBytes(a, p, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	// The copy is detached from the arena.
	got[0] = 'j'
	again, _ := ReadBytes(a, p, 1)
	assert.Equal(t, []byte("h"), again)
}

// TestReadWriteBytesBounds verifies that accesses beyond the block are rejected.
func TestReadWriteBytesBounds(t *testing.T) {
	t.Parallel()

	a := New(128)
	p, err := a.Alloc(4)
	require.NoError(t, err)

	_, err = ReadBytes(a, p, 5)
	require.ErrorIs(t, err, errorcodes.ErrInvalidPointer)

	err = WriteBytes(a, p, []byte("too long"))
	require.ErrorIs(t, err, errorcodes.ErrInvalidPointer)

	err = WriteBytes(a, Ptr(64), []byte("x"))
	require.ErrorIs(t, err, errorcodes.ErrInvalidPointer)
}

// TestAllocBytes verifies that AllocBytes copies data into a fresh block.
func TestAllocBytes(t *testing.T) {
	t.Parallel()

	a := New(64)
	p, err := AllocBytes(a, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0}, a.Bytes(p))

	_, err = AllocBytes(a, make([]byte, 100))
	require.ErrorIs(t, err, errorcodes.ErrOutOfMemory)
}

// TestRegionView verifies that an arena writes through to its region.
func TestRegionView(t *testing.T) {
	t.Parallel()

	region := make(SliceRegion, 32)
	a := NewWithRegion(region)
	require.Equal(t, uint32(32), a.Capacity())

	p, err := AllocBytes(a, []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), []byte(region[p:p+4]))
}
