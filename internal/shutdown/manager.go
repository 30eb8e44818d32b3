// internal/shutdown/manager.go
package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"krypton.module/internal/audit"
)

// CleanupResource represents a resource that needs cleanup during shutdown
type CleanupResource interface {
	Cleanup() error
	Description() string
}

// Releasable is anything holding secret memory that can be released once.
type Releasable interface {
	Release() error
	Released() bool
}

// BufferResource releases a secure buffer unless its owner already did.
// Buffers are not synchronized, so Cleanup must only run once the owning
// goroutine has stopped using the buffer.
type BufferResource struct {
	buf         Releasable
	description string
}

func (r *BufferResource) Cleanup() error {
	if r.buf.Released() {
		return nil
	}
	return r.buf.Release()
}

func (r *BufferResource) Description() string {
	return r.description
}

// TempFileResource represents a temporary file that contains sensitive data
type TempFileResource struct {
	filePath    string
	description string
	deleteFunc  func(string) error
}

func (r *TempFileResource) Cleanup() error {
	if _, err := os.Stat(r.filePath); err == nil {
		if err := r.deleteFunc(r.filePath); err != nil {
			return fmt.Errorf("failed to securely delete %s: %v", r.filePath, err)
		}
	}
	return nil
}

func (r *TempFileResource) Description() string {
	return r.description
}

// ClipboardResource handles clipboard cleanup
type ClipboardResource struct {
	description string
	clearFunc   func() error
}

func (r *ClipboardResource) Cleanup() error {
	return r.clearFunc()
}

func (r *ClipboardResource) Description() string {
	return r.description
}

// GracefulShutdownManager handles graceful shutdown and resource cleanup
type GracefulShutdownManager struct {
	resources    []CleanupResource
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   bool
	done         chan struct{}
	interrupted  atomic.Bool
	signals      chan os.Signal
	timeout      time.Duration
	grace        time.Duration
	exit         func(code int)
}

var (
	// Global instance
	globalManager *GracefulShutdownManager
	managerOnce   sync.Once
)

// GetManager returns the global shutdown manager instance, which also
// listens for SIGINT, SIGTERM and SIGQUIT.
func GetManager() *GracefulShutdownManager {
	managerOnce.Do(func() {
		globalManager = New()
		globalManager.listen()
	})
	return globalManager
}

// New creates a manager that does not listen for signals.
func New() *GracefulShutdownManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &GracefulShutdownManager{
		resources: make([]CleanupResource, 0),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		signals:   make(chan os.Signal, 1),
		timeout:   30 * time.Second,
		grace:     5 * time.Second,
		exit:      os.Exit,
	}
}

func (m *GracefulShutdownManager) listen() {
	signal.Notify(m.signals,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // Termination request
		syscall.SIGQUIT, // Quit request
	)
	go m.signalHandler()
}

// signalHandler cancels the command context on a signal and waits for the
// commands to unwind. The owner then calls Shutdown and exits; buffers are
// never released from this goroutine, so an open window cannot be freed
// underneath its owner. If the grace period runs out the files and the
// clipboard are cleaned and locked memory is left to the kernel.
func (m *GracefulShutdownManager) signalHandler() {
	select {
	case sig := <-m.signals:
		fmt.Fprintf(os.Stderr, "\nReceived signal %v, wiping secrets...\n", sig)
		m.interrupted.Store(true)
		m.cancel()
		select {
		case <-m.done:
		case <-time.After(m.grace):
			m.logger().Warn("commands did not stop in time, skipping secure buffers", "grace", m.grace)
			m.abandon()
			m.exit(130)
		}
	case <-m.done:
	}
}

func (m *GracefulShutdownManager) logger() *slog.Logger {
	return audit.Console
}

// RegisterBuffer registers secret memory for release on shutdown.
func (m *GracefulShutdownManager) RegisterBuffer(buf Releasable, description string) {
	if buf == nil {
		return
	}
	m.RegisterCustomResource(&BufferResource{buf: buf, description: description})
}

// UnregisterBuffer removes a buffer from the cleanup registry
func (m *GracefulShutdownManager) UnregisterBuffer(buf Releasable) {
	if buf == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, resource := range m.resources {
		if br, ok := resource.(*BufferResource); ok && br.buf == buf {
			m.resources = append(m.resources[:i], m.resources[i+1:]...)
			return
		}
	}
}

// RegisterTempFile registers a temporary file for secure cleanup
func (m *GracefulShutdownManager) RegisterTempFile(filePath string, description string) {
	if filePath == "" {
		return
	}
	m.RegisterCustomResource(&TempFileResource{
		filePath:    filePath,
		description: description,
		deleteFunc:  secureFileDeleteFunc,
	})
}

// RegisterClipboard registers clipboard for cleanup
func (m *GracefulShutdownManager) RegisterClipboard(description string) {
	m.RegisterCustomResource(&ClipboardResource{
		description: description,
		clearFunc:   clearClipboardFunc,
	})
}

// RegisterCustomResource registers a custom cleanup resource. After shutdown
// has started the resource is cleaned immediately.
func (m *GracefulShutdownManager) RegisterCustomResource(resource CleanupResource) {
	if resource == nil {
		return
	}

	m.mu.Lock()
	if m.isShutdown {
		m.mu.Unlock()
		if err := resource.Cleanup(); err != nil {
			m.logger().Warn("late cleanup failed", "resource", resource.Description(), "error", err)
		}
		return
	}
	m.resources = append(m.resources, resource)
	m.mu.Unlock()
}

// Shutdown performs graceful shutdown and cleanup of all resources. Buffers,
// files and the clipboard are handled first, then the purge hook runs. It
// must be called from the goroutine that owns the registered buffers, after
// it has stopped using them.
func (m *GracefulShutdownManager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.isShutdown = true
		m.mu.Unlock()

		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), m.timeout)
		defer cleanupCancel()

		m.cleanupResources(cleanupCtx, false)
		if purgeFunc != nil {
			purgeFunc()
		}

		m.cancel()
		close(m.done)
		audit.Logger.Info("shutdown complete")
	})
}

// abandon is the shutdown used when the owners are still running: buffers
// and the purge hook are skipped because they may be in use.
func (m *GracefulShutdownManager) abandon() {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.isShutdown = true
		m.mu.Unlock()

		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), m.timeout)
		defer cleanupCancel()

		m.cleanupResources(cleanupCtx, true)
		close(m.done)
		audit.Logger.Warn("shutdown abandoned secure buffers")
	})
}

// cleanupResources cleans up all registered resources
func (m *GracefulShutdownManager) cleanupResources(ctx context.Context, skipBuffers bool) {
	m.mu.RLock()
	resources := make([]CleanupResource, 0, len(m.resources))
	for _, r := range m.resources {
		if _, ok := r.(*BufferResource); ok && skipBuffers {
			continue
		}
		resources = append(resources, r)
	}
	m.mu.RUnlock()

	if len(resources) == 0 {
		return
	}

	const maxWorkers = 10
	workers := min(len(resources), maxWorkers)

	resourceChan := make(chan CleanupResource, len(resources))
	resultChan := make(chan error, len(resources))

	for i := 0; i < workers; i++ {
		go func() {
			for resource := range resourceChan {
				select {
				case <-ctx.Done():
					resultChan <- fmt.Errorf("cleanup timeout for %s", resource.Description())
				default:
					if err := resource.Cleanup(); err != nil {
						resultChan <- fmt.Errorf("failed to cleanup %s: %v", resource.Description(), err)
					} else {
						resultChan <- nil
					}
				}
			}
		}()
	}

	for _, resource := range resources {
		resourceChan <- resource
	}
	close(resourceChan)

	failures := 0
	for i := 0; i < len(resources); i++ {
		select {
		case err := <-resultChan:
			if err != nil {
				failures++
				m.logger().Error("cleanup error", "error", err)
			}
		case <-ctx.Done():
			m.logger().Error("cleanup timeout reached, forcing exit")
			return
		}
	}
	m.logger().Debug("resources cleaned", "count", len(resources), "failures", failures)

	m.mu.Lock()
	m.resources = m.resources[:0]
	m.mu.Unlock()
}

// GetResourceCount returns the number of registered resources
func (m *GracefulShutdownManager) GetResourceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.resources)
}

// IsShutdown returns true if shutdown has been initiated
func (m *GracefulShutdownManager) IsShutdown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isShutdown
}

// Interrupted reports whether a shutdown signal was received.
func (m *GracefulShutdownManager) Interrupted() bool {
	return m.interrupted.Load()
}

// Context is cancelled when a signal arrives or once shutdown completes.
func (m *GracefulShutdownManager) Context() context.Context {
	return m.ctx
}

// --- Dependency Injection for Security Functions ---

var (
	secureFileDeleteFunc = os.Remove
	clearClipboardFunc   = func() error { return nil }
	purgeFunc            func()
)

// SetSecurityFunctions sets the dependency injection functions for security operations
func SetSecurityFunctions(
	secureFileDelete func(string) error,
	clearClipboard func() error,
	purge func(),
) {
	if secureFileDelete != nil {
		secureFileDeleteFunc = secureFileDelete
	}
	if clearClipboard != nil {
		clearClipboardFunc = clearClipboard
	}
	purgeFunc = purge
}
