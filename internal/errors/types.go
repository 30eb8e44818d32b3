// File: internal/errors/types.go
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Secure memory errors
	ErrCodeAllocation           ErrorCode = "ALLOCATION_FAILED"
	ErrCodeProtectionTransition ErrorCode = "PROTECTION_TRANSITION_FAILED"
	ErrCodeMisuse               ErrorCode = "MISUSE"
	ErrCodeOutOfRange           ErrorCode = "OUT_OF_RANGE"
	ErrCodeBufferReleased       ErrorCode = "BUFFER_RELEASED"
	ErrCodeInitializer          ErrorCode = "INITIALIZER_FAILED"

	// Configuration errors
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD_FAILED"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE_FAILED"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION_FAILED"
	ErrCodeConfigMissing    ErrorCode = "CONFIG_MISSING"

	// Keyring errors
	ErrCodeKeyringLoad    ErrorCode = "KEYRING_LOAD_FAILED"
	ErrCodeKeyringSave    ErrorCode = "KEYRING_SAVE_FAILED"
	ErrCodeKeyringLocked  ErrorCode = "KEYRING_LOCKED"
	ErrCodeKeyringCorrupt ErrorCode = "KEYRING_CORRUPT"
	ErrCodeEntryNotFound  ErrorCode = "ENTRY_NOT_FOUND"
	ErrCodeEntryExists    ErrorCode = "ENTRY_EXISTS"
	ErrCodeAuthFailed     ErrorCode = "AUTH_FAILED"

	// Key and sealing errors
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeInputCancelled  ErrorCode = "INPUT_CANCELLED"
	ErrCodeInvalidKey      ErrorCode = "INVALID_KEY"
	ErrCodeInvalidMnemonic ErrorCode = "INVALID_MNEMONIC"
	ErrCodeSeal            ErrorCode = "SEAL_FAILED"
	ErrCodeUnseal          ErrorCode = "UNSEAL_FAILED"

	// System errors
	ErrCodeFileSystem ErrorCode = "FILESYSTEM_ERROR"
	ErrCodePermission ErrorCode = "PERMISSION_DENIED"
	ErrCodeClipboard  ErrorCode = "CLIPBOARD_ERROR"

	// Generic errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityInfo     ErrorSeverity = "INFO"
	SeverityWarning  ErrorSeverity = "WARNING"
	SeverityError    ErrorSeverity = "ERROR"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrAllocation           = &KryptonError{Code: ErrCodeAllocation}
	ErrProtectionTransition = &KryptonError{Code: ErrCodeProtectionTransition}
	ErrMisuse               = &KryptonError{Code: ErrCodeMisuse}
	ErrOutOfRange           = &KryptonError{Code: ErrCodeOutOfRange}
	ErrBufferReleased       = &KryptonError{Code: ErrCodeBufferReleased}
	ErrEntryNotFound        = &KryptonError{Code: ErrCodeEntryNotFound}
	ErrEntryExists          = &KryptonError{Code: ErrCodeEntryExists}
)

// KryptonError represents a standardized error structure
type KryptonError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Severity ErrorSeverity          `json:"severity"`
	Context  map[string]interface{} `json:"context,omitempty"`
	Cause    error                  `json:"-"`
}

// Error implements the error interface
func (e *KryptonError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping
func (e *KryptonError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a specific code
func (e *KryptonError) Is(target error) bool {
	if targetErr, ok := target.(*KryptonError); ok {
		return e.Code == targetErr.Code
	}
	return false
}

// WithContext adds context information to the error
func (e *KryptonError) WithContext(key string, value interface{}) *KryptonError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the severity level
func (e *KryptonError) WithSeverity(severity ErrorSeverity) *KryptonError {
	e.Severity = severity
	return e
}

// WithDetails adds detailed information
func (e *KryptonError) WithDetails(details string) *KryptonError {
	e.Details = details
	return e
}

// ToSlogAttrs converts error context to slog attributes
func (e *KryptonError) ToSlogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("error_code", string(e.Code)),
		slog.String("error_message", e.Message),
		slog.String("severity", string(e.Severity)),
	}

	if e.Details != "" {
		attrs = append(attrs, slog.String("details", e.Details))
	}

	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}

	for key, value := range e.Context {
		attrs = append(attrs, slog.Any(fmt.Sprintf("ctx_%s", key), value))
	}

	return attrs
}

// New creates a new KryptonError
func New(code ErrorCode, message string) *KryptonError {
	return &KryptonError{
		Code:     code,
		Message:  message,
		Severity: SeverityError,
		Context:  make(map[string]interface{}),
	}
}

// Newf creates a new KryptonError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *KryptonError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with KryptonError
func Wrap(code ErrorCode, message string, cause error) *KryptonError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// AsKryptonError finds the first KryptonError in err's chain.
func AsKryptonError(err error, target **KryptonError) bool {
	return stderrors.As(err, target)
}

// IsCode checks if error has specific code anywhere in its chain
func IsCode(err error, code ErrorCode) bool {
	var kErr *KryptonError
	if AsKryptonError(err, &kErr) {
		return kErr.Code == code
	}
	return false
}

// GetCode extracts error code from error
func GetCode(err error) ErrorCode {
	var kErr *KryptonError
	if AsKryptonError(err, &kErr) {
		return kErr.Code
	}
	return ErrCodeInternal
}

// IsMisuse reports whether err is a programming error against a secure
// buffer: general misuse, an out-of-range access or use after release.
func IsMisuse(err error) bool {
	switch GetCode(err) {
	case ErrCodeMisuse, ErrCodeOutOfRange, ErrCodeBufferReleased:
		return true
	}
	return false
}
