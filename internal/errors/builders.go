// File: internal/errors/builders.go
package errors

import (
	"fmt"
	"os"
)

// Secure memory Error Builders
func NewAllocationError(length, quota int, cause error) *KryptonError {
	e := Wrap(ErrCodeAllocation, "protected memory unavailable", cause).
		WithContext("length", length).
		WithSeverity(SeverityCritical)
	if quota > 0 {
		e.WithContext("quota", quota).
			WithDetails(fmt.Sprintf("request of %d bytes exceeds the protected arena quota of %d bytes", length, quota))
	}
	return e
}

func NewProtectionTransitionError(from, to string, cause error) *KryptonError {
	return Wrap(ErrCodeProtectionTransition, "memory protection change denied", cause).
		WithDetails(fmt.Sprintf("%s -> %s; buffer poisoned and released", from, to)).
		WithContext("from", from).
		WithContext("to", to).
		WithSeverity(SeverityCritical)
}

func NewPoisonedError(operation string) *KryptonError {
	return Newf(ErrCodeProtectionTransition, "secure buffer is poisoned, %s refused", operation).
		WithDetails("an earlier protection change failed and the contents were destroyed").
		WithContext("operation", operation).
		WithSeverity(SeverityCritical)
}

func NewReleaseError(cause error) *KryptonError {
	return Wrap(ErrCodeInternal, "failed to return protected memory", cause).
		WithSeverity(SeverityCritical)
}

func NewMisuseError(operation, reason string) *KryptonError {
	return Newf(ErrCodeMisuse, "invalid use of secure buffer in %s", operation).
		WithDetails(reason).
		WithContext("operation", operation).
		WithSeverity(SeverityError)
}

func NewOutOfRangeError(index, length int) *KryptonError {
	return Newf(ErrCodeOutOfRange, "index %d out of range", index).
		WithDetails(fmt.Sprintf("buffer length is %d", length)).
		WithContext("index", index).
		WithContext("length", length).
		WithSeverity(SeverityError)
}

func NewBufferReleasedError(operation string) *KryptonError {
	return Newf(ErrCodeBufferReleased, "secure buffer used after release in %s", operation).
		WithContext("operation", operation).
		WithSeverity(SeverityError)
}

func NewInitializerError(cause error) *KryptonError {
	return Wrap(ErrCodeInitializer, "secure buffer initializer failed", cause).
		WithSeverity(SeverityError)
}

// Configuration Error Builders
func NewConfigLoadError(path string, cause error) *KryptonError {
	return Wrap(ErrCodeConfigLoad, "failed to load configuration", cause).
		WithContext("config_path", path).
		WithSeverity(SeverityError)
}

func NewConfigSaveError(path string, cause error) *KryptonError {
	return Wrap(ErrCodeConfigSave, "failed to save configuration", cause).
		WithContext("config_path", path).
		WithSeverity(SeverityError)
}

func NewConfigValidationError(field, value, message string) *KryptonError {
	return New(ErrCodeConfigValidation, "configuration validation failed").
		WithDetails(fmt.Sprintf("field '%s' with value '%s': %s", field, value, message)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityError)
}

func NewConfigMissingError(field string) *KryptonError {
	return Newf(ErrCodeConfigMissing, "required configuration field missing: %s", field).
		WithContext("field", field).
		WithSeverity(SeverityError)
}

// Keyring Error Builders
func NewKeyringLoadError(path string, cause error) *KryptonError {
	return Wrap(ErrCodeKeyringLoad, "failed to load keyring", cause).
		WithContext("keyring_path", path).
		WithSeverity(SeverityError)
}

func NewKeyringSaveError(path string, cause error) *KryptonError {
	return Wrap(ErrCodeKeyringSave, "failed to save keyring", cause).
		WithContext("keyring_path", path).
		WithSeverity(SeverityError)
}

func NewKeyringLockedError(path string) *KryptonError {
	return New(ErrCodeKeyringLocked, "keyring is locked by another process").
		WithContext("keyring_path", path).
		WithSeverity(SeverityWarning)
}

func NewKeyringCorruptError(path string, cause error) *KryptonError {
	return Wrap(ErrCodeKeyringCorrupt, "keyring data is corrupted", cause).
		WithContext("keyring_path", path).
		WithSeverity(SeverityCritical)
}

func NewEntryNotFoundError(name string) *KryptonError {
	return Newf(ErrCodeEntryNotFound, "key '%s' not found", name).
		WithContext("entry", name).
		WithSeverity(SeverityError)
}

func NewEntryExistsError(name string) *KryptonError {
	return Newf(ErrCodeEntryExists, "key '%s' already exists", name).
		WithContext("entry", name).
		WithSeverity(SeverityError)
}

func NewAuthFailedError(details string) *KryptonError {
	return New(ErrCodeAuthFailed, "authentication failed").
		WithDetails(details).
		WithSeverity(SeverityError)
}

// Input and key Error Builders
func NewInvalidInputError(input, reason string) *KryptonError {
	return New(ErrCodeInvalidInput, "invalid input provided").
		WithDetails(reason).
		WithContext("input", input).
		WithSeverity(SeverityError)
}

func NewInvalidKeyError(keyType, reason string) *KryptonError {
	return Newf(ErrCodeInvalidKey, "invalid %s key", keyType).
		WithDetails(reason).
		WithContext("key_type", keyType).
		WithSeverity(SeverityError)
}

func NewInvalidMnemonicError(reason string) *KryptonError {
	return New(ErrCodeInvalidMnemonic, "invalid mnemonic phrase").
		WithDetails(reason).
		WithSeverity(SeverityError)
}

func NewSealError(reason string, cause error) *KryptonError {
	return Wrap(ErrCodeSeal, "failed to seal message", cause).
		WithDetails(reason).
		WithSeverity(SeverityError)
}

func NewUnsealError(reason string) *KryptonError {
	return New(ErrCodeUnseal, "failed to open sealed message").
		WithDetails(reason).
		WithSeverity(SeverityError)
}

// System Error Builders
func NewFileSystemError(operation, path string, cause error) *KryptonError {
	return Wrap(ErrCodeFileSystem, fmt.Sprintf("filesystem operation '%s' failed", operation), cause).
		WithContext("operation", operation).
		WithContext("path", path).
		WithSeverity(SeverityError)
}

func NewPermissionError(path string, cause error) *KryptonError {
	return Wrap(ErrCodePermission, "permission denied", cause).
		WithContext("path", path).
		WithSeverity(SeverityError)
}

func NewClipboardError(cause error) *KryptonError {
	return Wrap(ErrCodeClipboard, "clipboard operation failed", cause).
		WithSeverity(SeverityWarning)
}

// Error conversion helpers
func FromOSError(err error, path string) *KryptonError {
	if err == nil {
		return nil
	}

	if os.IsNotExist(err) {
		return NewFileSystemError("access", path, err).
			WithDetails("file or directory does not exist")
	}

	if os.IsPermission(err) {
		return NewPermissionError(path, err)
	}

	return NewFileSystemError("unknown", path, err)
}
