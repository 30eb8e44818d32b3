package securedata

import (
	"fmt"
	"io"
)

// ReadAll reads r to EOF into a new buffer resting at protection. Input
// longer than limit bytes is refused. The bytes never pass through an
// unguarded intermediate buffer.
func ReadAll(r io.Reader, limit int, protection Protection, opts ...Option) (*Buffer, error) {
	n := 0
	buf, err := New(limit, protection, func(dst []byte) error {
		var err error
		n, err = io.ReadFull(r, dst)
		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			return nil
		case err != nil:
			return err
		}
		var probe [1]byte
		if m, _ := r.Read(probe[:]); m > 0 {
			probe[0] = 0
			return fmt.Errorf("input exceeds %d bytes", limit)
		}
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if n == buf.Len() {
		return buf, nil
	}
	defer buf.Release()
	return buf.Truncate(n)
}
