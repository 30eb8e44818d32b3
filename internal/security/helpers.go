// internal/security/helpers.go
package security

import (
	"github.com/awnumar/memguard"

	"krypton.module/internal/audit"
)

// SecureZero wipes b in a way the compiler will not elide.
func SecureZero(b []byte) {
	memguard.WipeBytes(b)
}

// Purge destroys every memguard enclave key and buffer. It runs last during
// shutdown.
func Purge() {
	memguard.Purge()
}

// CreateTempFileWithAutoCleanup creates a temporary file and registers it for
// secure deletion at shutdown.
func CreateTempFileWithAutoCleanup(dir, pattern string, content []byte, description string) (string, error) {
	filePath, err := SecureCreateTempFile(dir, pattern, content)
	if err != nil {
		return "", err
	}
	if manager := GetResourceManager(); manager != nil {
		manager.RegisterTempFile(filePath, description)
	}
	return filePath, nil
}

// Track registers r for release at shutdown and returns it.
func Track[R Releasable](r R, description string) R {
	if manager := GetResourceManager(); manager != nil {
		manager.RegisterSecureData(r, description)
	}
	return r
}

// Release unregisters r and releases it. Already released memory is left
// alone, except that a poisoned buffer is logged and given its one release.
func Release(r Releasable) error {
	if r == nil {
		return nil
	}
	if manager := GetResourceManager(); manager != nil {
		manager.UnregisterSecureData(r)
	}
	if p, ok := r.(interface{ Poisoned() bool }); ok && p.Poisoned() {
		audit.Logger.Warn("secret memory was wiped early after a failed protection change")
		return r.Release()
	}
	if r.Released() {
		return nil
	}
	return r.Release()
}
