// internal/security/resource_manager.go
package security

// Releasable is secret memory (a buffer, a key) that can be released once.
type Releasable interface {
	Release() error
	Released() bool
}

// ResourceManager defines the interface for managing cleanup of sensitive resources
type ResourceManager interface {
	// RegisterSecureData registers secret memory for release during shutdown
	RegisterSecureData(r Releasable, description string)

	// UnregisterSecureData removes it from the cleanup registry
	UnregisterSecureData(r Releasable)

	// RegisterTempFile registers a temporary file for secure cleanup
	RegisterTempFile(filePath string, description string)

	// RegisterClipboard registers clipboard for cleanup
	RegisterClipboard(description string)

	IsShutdown() bool
	GetResourceCount() int
}

// Global resource manager instance
var globalResourceManager ResourceManager

// SetResourceManager sets the global resource manager instance
func SetResourceManager(manager ResourceManager) {
	globalResourceManager = manager
}

// GetResourceManager returns the global resource manager instance
func GetResourceManager() ResourceManager {
	return globalResourceManager
}
