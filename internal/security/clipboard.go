// internal/security/clipboard.go
package security

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	kerrors "krypton.module/internal/errors"
)

// Clipboard wraps the system clipboard. The read/write funcs are swappable
// for headless tests.
type Clipboard struct {
	mu       sync.Mutex
	write    func(string) error
	read     func() (string, error)
	lastHash [32]byte
	owned    bool
}

var (
	clipboardInstance *Clipboard
	clipboardOnce     sync.Once
)

func GetClipboard() *Clipboard {
	clipboardOnce.Do(func() {
		clipboardInstance = &Clipboard{
			write: clipboard.WriteAll,
			read:  clipboard.ReadAll,
		}
	})
	return clipboardInstance
}

// Write puts text on the clipboard and remembers a hash of it so Clear only
// wipes what this process put there.
func (c *Clipboard) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(text); err != nil {
		return kerrors.NewClipboardError(err)
	}
	c.lastHash = hashText(text)
	c.owned = true
	return nil
}

// Clear empties the clipboard if it still holds what Write put there.
func (c *Clipboard) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.owned {
		return nil
	}
	current, err := c.read()
	if err == nil && hashText(current) != c.lastHash {
		c.owned = false
		return nil
	}
	if err := c.write(""); err != nil {
		return kerrors.NewClipboardError(err)
	}
	c.owned = false
	return nil
}

// WriteWithTimeout copies text and blocks until timeout elapses or ctx is
// done, then clears the clipboard.
func (c *Clipboard) WriteWithTimeout(ctx context.Context, text string, timeout time.Duration) error {
	if err := c.Write(text); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return c.Clear()
}

// CopyToClipboard copies text and clears it after timeout, registering the
// clipboard for shutdown cleanup in case the process is interrupted.
func CopyToClipboard(ctx context.Context, text string, timeout time.Duration) error {
	if manager := GetResourceManager(); manager != nil {
		manager.RegisterClipboard("clipboard contents")
	}
	return GetClipboard().WriteWithTimeout(ctx, text, timeout)
}

// ClearClipboard immediately clears the clipboard (for shutdown cleanup)
func ClearClipboard() error {
	return GetClipboard().Clear()
}

func hashText(text string) [32]byte {
	return sha256.Sum256([]byte(text))
}
