package securedata

import (
	"sync"
	"unsafe"
)

// fakeAllocator records every call and can be told to fail any of them.
type fakeAllocator struct {
	mu sync.Mutex

	allocs   int
	locks    int
	unlocks  int
	frees    int
	protects []Protection
	current  map[uintptr]Protection
	freed    [][]byte

	allocErr   error
	lockErr    error
	protectErr func(to Protection) error
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{current: make(map[uintptr]Protection)}
}

func key(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func (f *fakeAllocator) Alloc(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocs++
	if f.allocErr != nil {
		return nil, f.allocErr
	}
	b := make([]byte, n)
	f.current[key(b)] = ReadWrite
	return b, nil
}

func (f *fakeAllocator) Lock(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks++
	return f.lockErr
}

func (f *fakeAllocator) Unlock(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocks++
	return nil
}

func (f *fakeAllocator) Protect(b []byte, p Protection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.protectErr != nil {
		if err := f.protectErr(p); err != nil {
			return err
		}
	}
	f.protects = append(f.protects, p)
	f.current[key(b)] = p
	return nil
}

func (f *fakeAllocator) Free(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frees++
	f.freed = append(f.freed, append([]byte(nil), b...))
	delete(f.current, key(b))
	return nil
}

func (f *fakeAllocator) protectionOf(b *Buffer) (Protection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.current[key(b.region)]
	return p, ok
}

func (f *fakeAllocator) failProtectTo(target Protection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.protectErr = func(to Protection) error {
		if to == target {
			return err
		}
		return nil
	}
}
