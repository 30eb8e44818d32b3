package securedata

import (
	"fmt"

	kerrors "krypton.module/internal/errors"
)

// Data is the surface shared by protected buffers and plain heap buffers,
// for code paths where holding a secret is a runtime decision.
type Data interface {
	Len() int
	Secure() bool
	Protection() Protection
	Released() bool
	Read(fn func(data []byte) error) error
	ReadWrite(action func(data []byte) error) error
	At(i int) (byte, error)
	Equal(other []byte) (bool, error)
	Release() error
}

var (
	_ Data = (*Buffer)(nil)
	_ Data = (*Insecure)(nil)
)

// NewData returns a ReadOnly protected buffer when secure is set and an
// Insecure heap buffer otherwise.
func NewData(secure bool, length int, init func(data []byte) error, opts ...Option) (Data, error) {
	if secure {
		b, err := NewReadOnly(length, init, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	d, err := NewInsecure(length, init)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Truncate shortens any Data to its first min(Len, n) bytes, keeping the
// secure or insecure variant of the input.
func Truncate(d Data, n int) (Data, error) {
	switch v := d.(type) {
	case *Buffer:
		b, err := v.Truncate(n)
		if err != nil {
			return nil, err
		}
		return b, nil
	case *Insecure:
		i, err := v.Truncate(n)
		if err != nil {
			return nil, err
		}
		return i, nil
	case nil:
		return nil, kerrors.NewMisuseError("truncate", "nil data")
	}
	return nil, kerrors.NewMisuseError("truncate", fmt.Sprintf("unsupported data type %T", d))
}

// Insecure holds bytes on the ordinary Go heap. It is never locked or
// protected and may be swapped or dumped, so it is only for bytes that are
// not secret. Release still zeroes it.
type Insecure struct {
	data     []byte
	released bool
	guarded  bool
}

func NewInsecure(length int, init func(data []byte) error) (*Insecure, error) {
	if length < 0 {
		return nil, kerrors.NewMisuseError("create", fmt.Sprintf("negative length %d", length))
	}
	d := &Insecure{data: make([]byte, length)}
	if init != nil {
		if err := init(d.data); err != nil {
			wipe(d.data)
			return nil, kerrors.NewInitializerError(err)
		}
	}
	return d, nil
}

func (d *Insecure) Len() int {
	return len(d.data)
}

func (d *Insecure) Secure() bool {
	return false
}

func (d *Insecure) Protection() Protection {
	return ReadWrite
}

func (d *Insecure) Released() bool {
	return d.released
}

func (d *Insecure) Read(fn func(data []byte) error) error {
	if d.released {
		return kerrors.NewBufferReleasedError("read")
	}
	return fn(d.data)
}

func (d *Insecure) ReadWrite(action func(data []byte) error) error {
	if d.released {
		return kerrors.NewBufferReleasedError("read-write")
	}
	if d.guarded {
		return kerrors.NewMisuseError("read-write", "a scoped window is already open on this buffer")
	}
	d.guarded = true
	defer func() { d.guarded = false }()
	return action(d.data)
}

func (d *Insecure) At(i int) (byte, error) {
	if d.released {
		return 0, kerrors.NewBufferReleasedError("at")
	}
	if i < 0 || i >= len(d.data) {
		return 0, kerrors.NewOutOfRangeError(i, len(d.data))
	}
	return d.data[i], nil
}

func (d *Insecure) Equal(other []byte) (bool, error) {
	if d.released {
		return false, kerrors.NewBufferReleasedError("equal")
	}
	return string(d.data) == string(other), nil
}

func (d *Insecure) Truncate(n int) (*Insecure, error) {
	if d.released {
		return nil, kerrors.NewBufferReleasedError("truncate")
	}
	if n < 0 {
		return nil, kerrors.NewMisuseError("truncate", fmt.Sprintf("negative length %d", n))
	}
	n = min(n, len(d.data))
	return NewInsecure(n, func(dst []byte) error {
		copy(dst, d.data[:n])
		return nil
	})
}

func (d *Insecure) Release() error {
	if d.released {
		return kerrors.NewBufferReleasedError("release")
	}
	if d.guarded {
		return kerrors.NewMisuseError("release", "cannot release inside an open scoped window")
	}
	wipe(d.data)
	d.data = nil
	d.released = true
	return nil
}
