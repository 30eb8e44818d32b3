// internal/integration.go
package internal

import (
	"krypton.module/internal/security"
	"krypton.module/internal/shutdown"
)

// ShutdownManagerAdapter adapts the shutdown manager to the security ResourceManager interface
type ShutdownManagerAdapter struct {
	manager *shutdown.GracefulShutdownManager
}

// NewShutdownManagerAdapter creates a new adapter
func NewShutdownManagerAdapter(manager *shutdown.GracefulShutdownManager) *ShutdownManagerAdapter {
	return &ShutdownManagerAdapter{manager: manager}
}

// RegisterSecureData delegates to the shutdown manager
func (a *ShutdownManagerAdapter) RegisterSecureData(r security.Releasable, description string) {
	a.manager.RegisterBuffer(r, description)
}

// UnregisterSecureData delegates to the shutdown manager
func (a *ShutdownManagerAdapter) UnregisterSecureData(r security.Releasable) {
	a.manager.UnregisterBuffer(r)
}

// RegisterTempFile delegates to the shutdown manager
func (a *ShutdownManagerAdapter) RegisterTempFile(filePath string, description string) {
	a.manager.RegisterTempFile(filePath, description)
}

// RegisterClipboard delegates to the shutdown manager
func (a *ShutdownManagerAdapter) RegisterClipboard(description string) {
	a.manager.RegisterClipboard(description)
}

// IsShutdown delegates to the shutdown manager
func (a *ShutdownManagerAdapter) IsShutdown() bool {
	return a.manager.IsShutdown()
}

// GetResourceCount delegates to the shutdown manager
func (a *ShutdownManagerAdapter) GetResourceCount() int {
	return a.manager.GetResourceCount()
}

// InitializeIntegration wires security into shutdown without an import cycle.
func InitializeIntegration() *shutdown.GracefulShutdownManager {
	shutdown.SetSecurityFunctions(
		security.SecureFileDelete,
		security.ClearClipboard,
		security.Purge,
	)

	manager := shutdown.GetManager()
	security.SetResourceManager(NewShutdownManagerAdapter(manager))
	return manager
}
