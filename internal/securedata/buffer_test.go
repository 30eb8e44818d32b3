package securedata

import (
	"bytes"
	stderrors "errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "krypton.module/internal/errors"
)

func newTestArena(quota int) (*Arena, *fakeAllocator) {
	fake := newFakeAllocator()
	return NewArena(fake, quota), fake
}

func sequence(start byte) func([]byte) error {
	return func(data []byte) error {
		for i := range data {
			data[i] = start + byte(i)
		}
		return nil
	}
}

func contents(t *testing.T, d Data) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, d.Read(func(data []byte) error {
		out = append([]byte(nil), data...)
		return nil
	}))
	return out
}

// newPlatformBuffer allocates from the real allocator, skipping when the
// environment will not lock memory.
func newPlatformBuffer(t *testing.T, length int, p Protection, init func([]byte) error) *Buffer {
	t.Helper()
	b, err := New(length, p, init)
	if kerrors.IsCode(err, kerrors.ErrCodeAllocation) {
		t.Skipf("platform refused protected memory: %v", err)
	}
	require.NoError(t, err)
	return b
}

func TestXorInsideReadWriteWindow(t *testing.T) {
	b := newPlatformBuffer(t, 32, ReadOnly, sequence(1))
	defer b.Release()

	err := b.ReadWrite(func(data []byte) error {
		for i := 0; i < 4; i++ {
			data[i] ^= 0xFF
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, ReadOnly, b.Protection())
	got := contents(t, b)
	assert.Equal(t, []byte{0xFE, 0xFD, 0xFC, 0xFB}, got[:4])
	assert.Equal(t, byte(5), got[4])
	assert.Equal(t, 32, b.Len())
}

func TestTruncateThenOutOfRange(t *testing.T) {
	arena, _ := newTestArena(0)
	b, err := NewReadOnly(10, sequence(0), WithArena(arena))
	require.NoError(t, err)
	defer b.Release()

	short, err := b.Truncate(5)
	require.NoError(t, err)
	defer short.Release()

	assert.Equal(t, 5, short.Len())
	assert.Equal(t, ReadOnly, short.Protection())

	_, err = short.At(7)
	assert.ErrorIs(t, err, kerrors.ErrOutOfRange)
	assert.True(t, kerrors.IsMisuse(err))

	v, err := short.At(4)
	require.NoError(t, err)
	assert.Equal(t, byte(4), v)

	assert.Equal(t, 10, b.Len(), "receiver must be unchanged")
}

func TestTruncateComposes(t *testing.T) {
	arena, _ := newTestArena(0)
	b, err := NewReadOnly(16, sequence(0x40), WithArena(arena))
	require.NoError(t, err)
	defer b.Release()

	for n1 := 0; n1 <= 18; n1 += 3 {
		for n2 := n1; n2 <= 18; n2 += 4 {
			once, err := b.Truncate(n2)
			require.NoError(t, err)
			twice, err := once.Truncate(n1)
			require.NoError(t, err)
			direct, err := b.Truncate(n1)
			require.NoError(t, err)

			assert.Equal(t, contents(t, direct), contents(t, twice), "n1=%d n2=%d", n1, n2)
			assert.Equal(t, min(n1, 16), twice.Len())

			require.NoError(t, once.Release())
			require.NoError(t, twice.Release())
			require.NoError(t, direct.Release())
		}
	}
	assert.Equal(t, 1, arena.Stats().Buffers)
}

func TestTruncateBeyondLengthCopies(t *testing.T) {
	arena, _ := newTestArena(0)
	b, err := New(4, NoAccess, sequence(9), WithArena(arena))
	require.NoError(t, err)
	defer b.Release()

	same, err := b.Truncate(100)
	require.NoError(t, err)
	defer same.Release()

	assert.Equal(t, 4, same.Len())
	assert.Equal(t, NoAccess, same.Protection())
	assert.Equal(t, contents(t, b), contents(t, same))

	_, err = b.Truncate(-1)
	assert.ErrorIs(t, err, kerrors.ErrMisuse)
}

func TestQuotaExceededNeverReachesAllocator(t *testing.T) {
	page := os.Getpagesize()
	arena, fake := newTestArena(page)

	first, err := NewReadOnly(page, nil, WithArena(arena))
	require.NoError(t, err)

	b, err := NewReadOnly(1, nil, WithArena(arena))
	assert.Nil(t, b)
	assert.ErrorIs(t, err, kerrors.ErrAllocation)
	assert.Equal(t, 1, fake.allocs)

	require.NoError(t, first.Release())
	assert.Equal(t, ArenaStats{Quota: page, InUse: 0, Buffers: 0}, arena.Stats())

	again, err := NewReadOnly(1, nil, WithArena(arena))
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAllocationFailures(t *testing.T) {
	t.Run("alloc refused", func(t *testing.T) {
		arena, fake := newTestArena(0)
		fake.allocErr = stderrors.New("ENOMEM")

		b, err := NewReadOnly(8, sequence(0), WithArena(arena))
		assert.Nil(t, b)
		assert.ErrorIs(t, err, kerrors.ErrAllocation)
		assert.Zero(t, arena.Stats().InUse)
	})

	t.Run("lock refused", func(t *testing.T) {
		arena, fake := newTestArena(0)
		fake.lockErr = stderrors.New("EPERM")

		called := false
		b, err := NewReadOnly(8, func([]byte) error { called = true; return nil }, WithArena(arena))
		assert.Nil(t, b)
		assert.ErrorIs(t, err, kerrors.ErrAllocation)
		assert.False(t, called, "initializer must not see unlocked memory")
		assert.Equal(t, 1, fake.frees)
		assert.Zero(t, arena.Stats().Buffers)
	})
}

func TestCreateRejectsBadArguments(t *testing.T) {
	arena, fake := newTestArena(0)

	_, err := New(8, ReadWrite, nil, WithArena(arena))
	assert.ErrorIs(t, err, kerrors.ErrMisuse)

	_, err = New(-1, ReadOnly, nil, WithArena(arena))
	assert.ErrorIs(t, err, kerrors.ErrMisuse)

	assert.Zero(t, fake.allocs)
}

func TestInitializerFailureFreesRegion(t *testing.T) {
	arena, fake := newTestArena(0)

	b, err := NewReadOnly(8, func(data []byte) error {
		copy(data, "secret!!")
		return stderrors.New("source unavailable")
	}, WithArena(arena))

	assert.Nil(t, b)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInitializer))
	require.Len(t, fake.freed, 1)
	assert.Equal(t, make([]byte, 8), fake.freed[0], "region must be wiped before free")
	assert.Zero(t, arena.Stats().InUse)
}

func TestInitializerPanicFreesRegion(t *testing.T) {
	arena, fake := newTestArena(0)

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = NewReadOnly(8, func([]byte) error { panic("boom") }, WithArena(arena))
	})
	assert.Equal(t, 1, fake.frees)
	assert.Zero(t, arena.Stats().Buffers)
}

func TestReadWriteRestoresProtection(t *testing.T) {
	for _, final := range []Protection{ReadOnly, NoAccess} {
		t.Run(final.String(), func(t *testing.T) {
			arena, fake := newTestArena(0)
			b, err := New(16, final, sequence(0), WithArena(arena))
			require.NoError(t, err)
			defer b.Release()

			check := func() {
				assert.Equal(t, final, b.Protection())
				p, ok := fake.protectionOf(b)
				require.True(t, ok)
				assert.Equal(t, final, p)
			}

			require.NoError(t, b.ReadWrite(func(data []byte) error {
				assert.Equal(t, ReadWrite, b.Protection())
				data[0] = 0xAA
				return nil
			}))
			check()

			sentinel := stderrors.New("action failed")
			err = b.ReadWrite(func([]byte) error { return sentinel })
			assert.ErrorIs(t, err, sentinel)
			check()

			assert.Panics(t, func() {
				_ = b.ReadWrite(func([]byte) error { panic("inside window") })
			})
			check()

			v, err := b.At(0)
			require.NoError(t, err)
			assert.Equal(t, byte(0xAA), v)
			check()
		})
	}
}

func TestNestedWindowIsMisuse(t *testing.T) {
	arena, _ := newTestArena(0)
	b, err := NewReadOnly(4, nil, WithArena(arena))
	require.NoError(t, err)
	defer b.Release()

	var inner error
	require.NoError(t, b.ReadWrite(func([]byte) error {
		inner = b.ReadWrite(func([]byte) error { return nil })
		assert.ErrorIs(t, b.Release(), kerrors.ErrMisuse)
		_, truncErr := b.Truncate(2)
		assert.ErrorIs(t, truncErr, kerrors.ErrMisuse)
		return nil
	}))
	assert.ErrorIs(t, inner, kerrors.ErrMisuse)
	assert.False(t, b.Released())
}

func TestReadWindowBlocksMutation(t *testing.T) {
	for _, p := range []Protection{ReadOnly, NoAccess} {
		t.Run(p.String(), func(t *testing.T) {
			arena, fake := newTestArena(0)
			b, err := New(4, p, sequence(1), WithArena(arena))
			require.NoError(t, err)
			defer b.Release()

			require.NoError(t, b.Read(func(data []byte) error {
				assert.ErrorIs(t, b.Release(), kerrors.ErrMisuse)
				assert.ErrorIs(t, b.ReadWrite(func([]byte) error { return nil }), kerrors.ErrMisuse)
				_, truncErr := b.Truncate(2)
				assert.ErrorIs(t, truncErr, kerrors.ErrMisuse)

				// nested reads and indexing stay allowed
				v, atErr := b.At(3)
				require.NoError(t, atErr)
				assert.Equal(t, byte(4), v)
				assert.Equal(t, []byte{1, 2, 3, 4}, data)
				return nil
			}))

			assert.False(t, b.Released())
			assert.Equal(t, p, b.Protection())
			current, ok := fake.protectionOf(b)
			require.True(t, ok)
			assert.Equal(t, p, current)

			short, err := b.Truncate(2)
			require.NoError(t, err)
			require.NoError(t, short.Release())
		})
	}
}

func TestReadWindowClosesOnPanic(t *testing.T) {
	arena, _ := newTestArena(0)
	b, err := NewReadOnly(4, nil, WithArena(arena))
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = b.Read(func([]byte) error { panic("boom") })
	})
	require.NoError(t, b.Release())
}

func TestNoAccessReadOpensReadOnlyWindow(t *testing.T) {
	arena, fake := newTestArena(0)
	b, err := New(4, NoAccess, sequence(1), WithArena(arena))
	require.NoError(t, err)
	defer b.Release()

	fake.protects = nil
	require.NoError(t, b.Read(func(data []byte) error {
		assert.Equal(t, ReadOnly, b.Protection())
		assert.Equal(t, []byte{1, 2, 3, 4}, data)
		return nil
	}))
	assert.Equal(t, []Protection{ReadOnly, NoAccess}, fake.protects)
	assert.Equal(t, NoAccess, b.Protection())
}

func TestEqualIsContentComparison(t *testing.T) {
	arena, _ := newTestArena(0)
	b, err := NewReadOnly(3, sequence(7), WithArena(arena))
	require.NoError(t, err)
	defer b.Release()

	eq, err := b.Equal([]byte{7, 8, 9})
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = b.Equal([]byte{7, 8})
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestUseAfterRelease(t *testing.T) {
	arena, fake := newTestArena(0)
	b, err := NewReadOnly(8, sequence(1), WithArena(arena))
	require.NoError(t, err)

	require.NoError(t, b.Release())
	assert.True(t, b.Released())
	require.Len(t, fake.freed, 1)
	assert.Equal(t, make([]byte, 8), fake.freed[0])
	assert.Equal(t, 1, fake.unlocks)

	_, err = b.At(0)
	assert.ErrorIs(t, err, kerrors.ErrBufferReleased)
	assert.ErrorIs(t, b.Read(func([]byte) error { return nil }), kerrors.ErrBufferReleased)
	assert.ErrorIs(t, b.ReadWrite(func([]byte) error { return nil }), kerrors.ErrBufferReleased)
	_, err = b.Truncate(1)
	assert.ErrorIs(t, err, kerrors.ErrBufferReleased)

	err = b.Release()
	assert.True(t, kerrors.IsMisuse(err))
	assert.Equal(t, 1, fake.frees)
}

func TestProtectFailurePoisons(t *testing.T) {
	t.Run("during creation", func(t *testing.T) {
		arena, fake := newTestArena(0)
		fake.failProtectTo(ReadOnly, stderrors.New("EACCES"))

		b, err := NewReadOnly(8, sequence(1), WithArena(arena))
		assert.Nil(t, b)
		assert.ErrorIs(t, err, kerrors.ErrProtectionTransition)
		require.Len(t, fake.freed, 1)
		assert.Equal(t, make([]byte, 8), fake.freed[0])
		assert.Zero(t, arena.Stats().Buffers)
	})

	t.Run("restoring after a window", func(t *testing.T) {
		arena, fake := newTestArena(0)
		b, err := NewReadOnly(8, sequence(1), WithArena(arena))
		require.NoError(t, err)

		fake.failProtectTo(ReadOnly, stderrors.New("EACCES"))
		err = b.ReadWrite(func([]byte) error { return nil })
		assert.ErrorIs(t, err, kerrors.ErrProtectionTransition)
		assert.True(t, b.Poisoned())
		assert.Equal(t, 1, fake.frees)

		_, err = b.At(0)
		assert.ErrorIs(t, err, kerrors.ErrProtectionTransition)

		assert.NoError(t, b.Release())
		assert.True(t, kerrors.IsMisuse(b.Release()))
	})
}

func TestZeroLengthBuffer(t *testing.T) {
	arena, fake := newTestArena(0)
	b, err := NewReadOnly(0, sequence(0), WithArena(arena))
	require.NoError(t, err)

	assert.Equal(t, 0, b.Len())
	assert.NoError(t, b.ReadWrite(func(data []byte) error {
		assert.Empty(t, data)
		return nil
	}))
	_, err = b.At(0)
	assert.ErrorIs(t, err, kerrors.ErrOutOfRange)
	require.NoError(t, b.Release())

	assert.Zero(t, fake.allocs)
	assert.Empty(t, fake.protects)
}

func TestStringRedacts(t *testing.T) {
	arena, _ := newTestArena(0)
	b, err := NewReadOnly(6, func(data []byte) error {
		copy(data, "hunter")
		return nil
	}, WithArena(arena))
	require.NoError(t, err)
	defer b.Release()

	s := b.String()
	assert.NotContains(t, s, "hunter")
	assert.Contains(t, s, "REDACTED")
}

func TestPageRoundedAccounting(t *testing.T) {
	page := os.Getpagesize()
	arena, _ := newTestArena(0)

	a, err := NewReadOnly(1, nil, WithArena(arena))
	require.NoError(t, err)
	b, err := NewReadOnly(page+1, nil, WithArena(arena))
	require.NoError(t, err)

	assert.Equal(t, ArenaStats{InUse: 3 * page, Buffers: 2}, arena.Stats())
	require.NoError(t, a.Release())
	require.NoError(t, b.Release())
	assert.Equal(t, ArenaStats{}, arena.Stats())
}

func TestOversizedRequestNeverReachesAllocator(t *testing.T) {
	for _, quota := range []int{0, os.Getpagesize()} {
		arena, fake := newTestArena(quota)

		for _, n := range []int{math.MaxInt, math.MaxInt - 1, math.MaxInt - os.Getpagesize() + 1} {
			b, err := NewReadOnly(n, nil, WithArena(arena))
			assert.Nil(t, b)
			assert.ErrorIs(t, err, kerrors.ErrAllocation)
		}
		assert.Zero(t, fake.allocs)
		assert.Equal(t, ArenaStats{Quota: quota}, arena.Stats())
	}
}

func TestParseProtection(t *testing.T) {
	tests := []struct {
		in      string
		want    Protection
		wantErr bool
	}{
		{"readonly", ReadOnly, false},
		{"Read-Only", ReadOnly, false},
		{"noaccess", NoAccess, false},
		{"NO_ACCESS", NoAccess, false},
		{"readwrite", ReadWrite, false},
		{"execute", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseProtection(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPlatformContentsSurviveProtectionCycles(t *testing.T) {
	b := newPlatformBuffer(t, 64, NoAccess, sequence(0))
	defer b.Release()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.ReadWrite(func(data []byte) error {
			data[i] = 0xFF
			return nil
		}))
	}
	got := contents(t, b)
	assert.True(t, bytes.Equal([]byte{0xFF, 0xFF, 0xFF, 3}, got[:4]))
	assert.Equal(t, NoAccess, b.Protection())
}
