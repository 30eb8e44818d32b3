package securedata

import (
	"fmt"

	"github.com/awnumar/memcall"
)

// Allocator is the page-locking memory provider a Buffer is carved from.
// Free must receive exactly the slice Alloc returned.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Lock(b []byte) error
	Unlock(b []byte) error
	Protect(b []byte, p Protection) error
	Free(b []byte) error
}

// MemcallAllocator returns the platform allocator: anonymous mappings outside
// the Go heap, mlock/VirtualLock, mprotect/VirtualProtect.
func MemcallAllocator() Allocator {
	return memcallAllocator{}
}

type memcallAllocator struct{}

func (memcallAllocator) Alloc(n int) ([]byte, error) {
	return memcall.Alloc(n)
}

// Lock also marks the region MADV_DONTDUMP where the platform supports it.
func (memcallAllocator) Lock(b []byte) error {
	return memcall.Lock(b)
}

func (memcallAllocator) Unlock(b []byte) error {
	return memcall.Unlock(b)
}

func (memcallAllocator) Protect(b []byte, p Protection) error {
	switch p {
	case ReadWrite:
		return memcall.Protect(b, memcall.ReadWrite())
	case ReadOnly:
		return memcall.Protect(b, memcall.ReadOnly())
	case NoAccess:
		return memcall.Protect(b, memcall.NoAccess())
	}
	return fmt.Errorf("unknown protection %d", int(p))
}

func (memcallAllocator) Free(b []byte) error {
	return memcall.Free(b)
}
