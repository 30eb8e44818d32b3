package securedata

import (
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"runtime"

	kerrors "krypton.module/internal/errors"
)

type state int

const (
	stateLive state = iota
	statePoisoned
	stateReleased
)

// Buffer is a fixed-length region of protected memory. Its protection is
// ReadOnly or NoAccess whenever no scoped window is open.
type Buffer struct {
	arena      *Arena
	region     []byte
	footprint  int
	length     int
	protection Protection
	state      state
	guarded    bool
	cleanup    runtime.Cleanup
}

// Option configures buffer creation.
type Option func(*options)

type options struct {
	arena *Arena
}

// WithArena allocates from arena instead of DefaultArena.
func WithArena(arena *Arena) Option {
	return func(o *options) {
		if arena != nil {
			o.arena = arena
		}
	}
}

// NewReadOnly is New with a final protection of ReadOnly.
func NewReadOnly(length int, init func(data []byte) error, opts ...Option) (*Buffer, error) {
	return New(length, ReadOnly, init, opts...)
}

// New allocates a protected buffer of length bytes, runs init over the
// zero-filled writable region and then applies protection, which must be
// ReadOnly or NoAccess. If init fails or panics the region is wiped and freed
// before the error (or panic) propagates. A nil init leaves the buffer zeroed.
func New(length int, protection Protection, init func(data []byte) error, opts ...Option) (*Buffer, error) {
	o := options{arena: DefaultArena()}
	for _, opt := range opts {
		opt(&o)
	}

	if length < 0 {
		return nil, kerrors.NewMisuseError("create", fmt.Sprintf("negative length %d", length))
	}
	if protection != ReadOnly && protection != NoAccess {
		return nil, kerrors.NewMisuseError("create",
			"final protection must be ReadOnly or NoAccess, got "+protection.String())
	}
	return allocate(o.arena, length, protection, init)
}

func allocate(arena *Arena, length int, final Protection, init func([]byte) error) (*Buffer, error) {
	footprint, err := arena.reserve(length)
	if err != nil {
		arena.log().Warn("protected allocation refused", "length", length, "error", err)
		return nil, err
	}

	b := &Buffer{
		arena:      arena,
		footprint:  footprint,
		length:     length,
		protection: ReadWrite,
	}

	if length > 0 {
		region, err := arena.alloc.Alloc(length)
		if err != nil {
			arena.unreserve(footprint)
			return nil, kerrors.NewAllocationError(length, arena.Quota(), err)
		}
		if err := arena.alloc.Lock(region); err != nil {
			_ = arena.alloc.Free(region)
			arena.unreserve(footprint)
			return nil, kerrors.NewAllocationError(length, arena.Quota(), err).
				WithDetails("region could not be locked against swapping")
		}
		b.region = region
	}

	if init != nil {
		if err := b.initialize(init); err != nil {
			_ = b.destroy()
			return nil, err
		}
	}

	if err := b.transition(final); err != nil {
		return nil, err
	}

	b.cleanup = runtime.AddCleanup(b, reclaim, leaked{
		arena:     arena,
		region:    b.region,
		footprint: footprint,
		length:    length,
	})
	return b, nil
}

func (b *Buffer) initialize(init func([]byte) error) error {
	b.guarded = true
	defer func() {
		b.guarded = false
		if r := recover(); r != nil {
			_ = b.destroy()
			panic(r)
		}
	}()

	if err := init(b.region[:b.length]); err != nil {
		return kerrors.NewInitializerError(err)
	}
	return nil
}

// ReadWrite opens a writable window for the duration of action and then
// restores the previous protection, whether action returns, fails or panics.
// The slice passed to action must not be retained.
func (b *Buffer) ReadWrite(action func(data []byte) error) (err error) {
	if err := b.usable("read-write"); err != nil {
		return err
	}
	if b.guarded {
		return kerrors.NewMisuseError("read-write", "a scoped window is already open on this buffer")
	}

	previous := b.protection
	if err := b.transition(ReadWrite); err != nil {
		return err
	}
	b.guarded = true
	defer func() {
		b.guarded = false
		if restoreErr := b.transition(previous); restoreErr != nil {
			err = joinErrors(err, restoreErr)
		}
	}()

	return action(b.region[:b.length])
}

// Read runs fn over the contents inside a read window. NoAccess buffers are
// made ReadOnly for the call and restored afterwards. Inside an already open
// window fn sees the same bytes without any protection change. While fn runs
// the buffer cannot be released, truncated or opened for writing.
func (b *Buffer) Read(fn func(data []byte) error) (err error) {
	if err := b.usable("read"); err != nil {
		return err
	}
	if b.guarded {
		return fn(b.region[:b.length])
	}

	hidden := b.protection == NoAccess
	if hidden {
		if err := b.transition(ReadOnly); err != nil {
			return err
		}
	}
	b.guarded = true
	defer func() {
		b.guarded = false
		if !hidden {
			return
		}
		if restoreErr := b.transition(NoAccess); restoreErr != nil {
			err = joinErrors(err, restoreErr)
		}
	}()

	return fn(b.region[:b.length])
}

// At returns the byte at index i.
func (b *Buffer) At(i int) (byte, error) {
	if err := b.usable("at"); err != nil {
		return 0, err
	}
	if i < 0 || i >= b.length {
		return 0, kerrors.NewOutOfRangeError(i, b.length)
	}

	var v byte
	err := b.Read(func(data []byte) error {
		v = data[i]
		return nil
	})
	return v, err
}

// Equal reports in constant time whether the contents equal other.
func (b *Buffer) Equal(other []byte) (bool, error) {
	var equal bool
	err := b.Read(func(data []byte) error {
		equal = subtle.ConstantTimeCompare(data, other) == 1
		return nil
	})
	return equal, err
}

// Truncate returns a new independent buffer holding the first min(Len, n)
// bytes, with this buffer's protection and arena. The receiver is unchanged.
func (b *Buffer) Truncate(n int) (*Buffer, error) {
	if err := b.usable("truncate"); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, kerrors.NewMisuseError("truncate", fmt.Sprintf("negative length %d", n))
	}
	if b.guarded {
		return nil, kerrors.NewMisuseError("truncate", "cannot truncate inside an open scoped window")
	}
	if n > b.length {
		n = b.length
	}

	return allocate(b.arena, n, b.protection, func(dst []byte) error {
		return b.Read(func(src []byte) error {
			copy(dst, src[:n])
			return nil
		})
	})
}

// Release zero-fills the region, unlocks it and returns it to the allocator.
// Releasing a poisoned buffer succeeds once. Releasing twice is misuse.
func (b *Buffer) Release() error {
	switch b.state {
	case stateReleased:
		return kerrors.NewBufferReleasedError("release")
	case statePoisoned:
		b.state = stateReleased
		return nil
	}
	if b.guarded {
		return kerrors.NewMisuseError("release", "cannot release inside an open scoped window")
	}

	if err := b.destroy(); err != nil {
		b.arena.log().Error("secure buffer release incomplete", "length", b.length, "error", err)
		return kerrors.NewReleaseError(err)
	}
	return nil
}

func (b *Buffer) Len() int {
	return b.length
}

func (b *Buffer) Protection() Protection {
	return b.protection
}

// Released reports whether the buffer can no longer be used, either because
// it was released or because it was poisoned.
func (b *Buffer) Released() bool {
	return b.state != stateLive
}

// Poisoned reports whether a failed protection change destroyed the buffer.
func (b *Buffer) Poisoned() bool {
	return b.state == statePoisoned
}

func (b *Buffer) Secure() bool {
	return true
}

func (b *Buffer) String() string {
	return fmt.Sprintf("securedata.Buffer{len: %d, protection: %s, contents: [REDACTED]}", b.length, b.protection)
}

func (b *Buffer) usable(operation string) error {
	switch b.state {
	case stateReleased:
		return kerrors.NewBufferReleasedError(operation)
	case statePoisoned:
		return kerrors.NewPoisonedError(operation)
	}
	return nil
}

// transition changes the region's protection. A refused change poisons the
// buffer.
func (b *Buffer) transition(to Protection) error {
	if to == b.protection {
		return nil
	}
	if len(b.region) > 0 {
		if err := b.arena.alloc.Protect(b.region, to); err != nil {
			from := b.protection
			b.poison()
			return kerrors.NewProtectionTransitionError(from.String(), to.String(), err)
		}
	}
	b.protection = to
	return nil
}

func (b *Buffer) poison() {
	b.arena.log().Error("secure buffer poisoned", "length", b.length, "protection", b.protection.String())
	_ = b.destroy()
	b.state = statePoisoned
}

// destroy wipes, unlocks and frees the region and gives the footprint back
// to the arena. It reports the first failure but always finishes.
func (b *Buffer) destroy() error {
	b.cleanup.Stop()

	var firstErr error
	if len(b.region) > 0 {
		if b.protection != ReadWrite {
			if err := b.arena.alloc.Protect(b.region, ReadWrite); err != nil {
				firstErr = err
			} else {
				b.protection = ReadWrite
			}
		}
		if b.protection == ReadWrite {
			wipe(b.region)
		}
		if err := b.arena.alloc.Unlock(b.region); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := b.arena.alloc.Free(b.region); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	b.arena.unreserve(b.footprint)
	b.region = nil
	b.footprint = 0
	b.state = stateReleased
	return firstErr
}

// leaked is what reclaim needs to free a buffer that was dropped without
// Release. It must not reference the Buffer itself.
type leaked struct {
	arena     *Arena
	region    []byte
	footprint int
	length    int
}

func reclaim(l leaked) {
	if len(l.region) > 0 {
		if err := l.arena.alloc.Protect(l.region, ReadWrite); err == nil {
			wipe(l.region)
		}
		_ = l.arena.alloc.Unlock(l.region)
		_ = l.arena.alloc.Free(l.region)
	}
	l.arena.unreserve(l.footprint)
	l.arena.log().Warn("secure buffer collected without Release", "length", l.length)
}

func wipe(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

func joinErrors(err, restoreErr error) error {
	if err == nil {
		return restoreErr
	}
	return stderrors.Join(err, restoreErr)
}
