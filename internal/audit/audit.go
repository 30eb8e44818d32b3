// File: internal/audit/audit.go
package audit

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	clog "github.com/charmbracelet/log"
)

// Logger records security relevant events as JSON lines. It discards until
// InitLogger succeeds.
var Logger = slog.New(slog.DiscardHandler)

// Console is the human facing diagnostic logger on stderr.
var Console = slog.New(slog.DiscardHandler)

var logFile *os.File

// InitLogger initializes the logger for auditing purposes.
func InitLogger(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	// Open or create the log file for appending.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if logFile != nil {
		logFile.Close()
	}
	logFile = f

	Logger = slog.New(slog.NewJSONHandler(f, nil))
	return nil
}

// InitConsole routes Console to stderr at the given level
// (debug, info, warn, error).
func InitConsole(level string) {
	handler := clog.NewWithOptions(os.Stderr, clog.Options{
		Level:  parseLevel(level),
		Prefix: "krypton",
	})
	Console = slog.New(handler)
}

// Close flushes and closes the audit file.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	Logger = slog.New(slog.DiscardHandler)
	return err
}

func parseLevel(level string) clog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return clog.DebugLevel
	case "warn", "warning":
		return clog.WarnLevel
	case "error":
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}
