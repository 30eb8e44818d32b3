package securedata

import (
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "krypton.module/internal/errors"
)

func TestReadAllTruncatesToInput(t *testing.T) {
	arena, _ := newTestArena(0)

	buf, err := ReadAll(strings.NewReader("hello"), 64, NoAccess, WithArena(arena))
	require.NoError(t, err)
	assert.Equal(t, 5, buf.Len())
	assert.Equal(t, NoAccess, buf.Protection())
	assert.Equal(t, []byte("hello"), contents(t, buf))
	assert.Equal(t, 1, arena.Stats().Buffers, "oversized staging buffer must be released")
	require.NoError(t, buf.Release())
}

func TestReadAllExactLimit(t *testing.T) {
	arena, _ := newTestArena(0)

	buf, err := ReadAll(iotest.OneByteReader(strings.NewReader("hello")), 5, ReadOnly, WithArena(arena))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), contents(t, buf))
	require.NoError(t, buf.Release())
}

func TestReadAllRefusesOversizedInput(t *testing.T) {
	arena, _ := newTestArena(0)

	_, err := ReadAll(strings.NewReader("hello"), 3, ReadOnly, WithArena(arena))
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInitializer))
	assert.Zero(t, arena.Stats().Buffers)
}

func TestReadAllPropagatesReadError(t *testing.T) {
	arena, fake := newTestArena(0)

	_, err := ReadAll(iotest.ErrReader(assert.AnError), 16, ReadOnly, WithArena(arena))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, fake.allocs, fake.frees)
}

func TestReadAllEmpty(t *testing.T) {
	arena, _ := newTestArena(0)

	buf, err := ReadAll(strings.NewReader(""), 16, ReadOnly, WithArena(arena))
	require.NoError(t, err)
	assert.Zero(t, buf.Len())
	require.NoError(t, buf.Release())
}
