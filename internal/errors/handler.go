// File: internal/errors/handler.go
package errors

import (
	"context"
	"log/slog"

	"krypton.module/internal/audit"
	"krypton.module/internal/colors"
)

// Handler provides centralized error handling functionality
type Handler struct {
	logger *slog.Logger
}

// DefaultHandler is the global error handler instance
var DefaultHandler *Handler

// InitHandler initializes the global error handler
func InitHandler(logger *slog.Logger) {
	DefaultHandler = &Handler{
		logger: logger,
	}
}

// Handle processes an error with logging
func (h *Handler) Handle(err error) {
	if err == nil {
		return
	}

	var kErr *KryptonError
	if !AsKryptonError(err, &kErr) {
		kErr = Wrap(ErrCodeInternal, "unexpected error occurred", err)
	}

	h.logError(kErr)
}

// logError logs the error with appropriate level based on severity
func (h *Handler) logError(kErr *KryptonError) {
	attrs := kErr.ToSlogAttrs()
	ctx := context.Background()

	switch kErr.Severity {
	case SeverityInfo:
		h.logger.LogAttrs(ctx, slog.LevelInfo, "Operation info", attrs...)
	case SeverityWarning:
		h.logger.LogAttrs(ctx, slog.LevelWarn, "Operation warning", attrs...)
	case SeverityError:
		h.logger.LogAttrs(ctx, slog.LevelError, "Operation error", attrs...)
	case SeverityCritical:
		h.logger.LogAttrs(ctx, slog.LevelError, "Critical error", attrs...)
	default:
		h.logger.LogAttrs(ctx, slog.LevelError, "Unknown severity error", attrs...)
	}
}

// FormatForUser formats error for user display
func (h *Handler) FormatForUser(err error) string {
	if err == nil {
		return ""
	}

	var kErr *KryptonError
	if !AsKryptonError(err, &kErr) {
		return colors.SafeColor(err.Error(), colors.Error)
	}

	var colorFunc func(string) string
	switch kErr.Severity {
	case SeverityInfo:
		colorFunc = colors.Info
	case SeverityWarning:
		colorFunc = colors.Warning
	default:
		colorFunc = colors.Error
	}

	message := kErr.Message
	if kErr.Details != "" {
		message += " (" + kErr.Details + ")"
	}

	switch kErr.Code {
	case ErrCodeAllocation, ErrCodeProtectionTransition:
		message += "; cannot safely hold this secret right now, operation aborted"
	}

	return colors.SafeColor(message, colorFunc)
}

// Global convenience functions
func Handle(err error) {
	if DefaultHandler != nil {
		DefaultHandler.Handle(err)
	}
}

func FormatForUser(err error) string {
	if DefaultHandler != nil {
		return DefaultHandler.FormatForUser(err)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// WrapCommand wraps command execution with consistent error handling.
// A panic inside fn is converted into a critical internal error.
func WrapCommand(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			kErr := New(ErrCodeInternal, "unexpected panic occurred").
				WithSeverity(SeverityCritical).
				WithDetails("panic recovered in command execution")
			Handle(kErr)
			err = kErr
		}
	}()

	if err := fn(); err != nil {
		Handle(err)
		return err
	}

	return nil
}

// InitWithAuditLogger initializes error handler with audit logger
func InitWithAuditLogger() {
	InitHandler(audit.Logger)
}
