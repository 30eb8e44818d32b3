package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"krypton.module/internal/constants"
)

// ValidateConfig checks every field of cfg. It returns *ConfigError.
func ValidateConfig(cfg *Config) error {
	if !isOneOf(cfg.Encryption, constants.EncryptionPassphrase, constants.EncryptionRecipients) {
		return NewConfigError("encryption", cfg.Encryption,
			"must be one of: "+strings.Join([]string{constants.EncryptionPassphrase, constants.EncryptionRecipients}, ", "))
	}
	if cfg.KeyringFile == "" {
		return NewConfigError("keyring_file", "", "cannot be empty")
	}
	if err := ValidateFilePath(cfg.KeyringFile, "keyring file"); err != nil {
		return NewConfigError("keyring_file", cfg.KeyringFile, err.Error())
	}
	if cfg.Encryption == constants.EncryptionRecipients {
		if cfg.RecipientsFile == "" {
			return NewConfigError("recipients_file", "", "required for recipients encryption")
		}
		if err := ValidateFilePath(cfg.RecipientsFile, "recipients file"); err != nil {
			return NewConfigError("recipients_file", cfg.RecipientsFile, err.Error())
		}
	}
	if cfg.IdentityFile != "" {
		if err := ValidateFilePath(cfg.IdentityFile, "identity file"); err != nil {
			return NewConfigError("identity_file", cfg.IdentityFile, err.Error())
		}
	}
	if cfg.ScryptWorkFactor < 1 || cfg.ScryptWorkFactor > 30 {
		return NewConfigError("scrypt_work_factor", strconv.Itoa(cfg.ScryptWorkFactor), "must be between 1 and 30")
	}
	if cfg.ArenaQuota < 0 {
		return NewConfigError("arena_quota", strconv.Itoa(cfg.ArenaQuota), "cannot be negative")
	}
	if !isOneOf(cfg.DefaultProtection, constants.ProtectionReadOnly, constants.ProtectionNoAccess) {
		return NewConfigError("default_protection", cfg.DefaultProtection,
			"must be one of: "+constants.ProtectionReadOnly+", "+constants.ProtectionNoAccess)
	}
	if cfg.ClipboardTimeout < 0 {
		return NewConfigError("clipboard_timeout", strconv.Itoa(cfg.ClipboardTimeout), "cannot be negative")
	}
	if !isOneOf(strings.ToLower(cfg.LogLevel), "debug", "info", "warn", "error") {
		return NewConfigError("log_level", cfg.LogLevel, "must be one of: debug, info, warn, error")
	}
	return nil
}

// ValidateFilePath rejects traversal and symlinks into system directories.
// The file itself may not exist yet, but its directory must.
func ValidateFilePath(filePath string, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	cleanPath := filepath.Clean(filePath)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("%s path contains invalid path traversal elements", description)
	}

	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		dirPath := filepath.Dir(cleanPath)
		if _, dirErr := os.Stat(dirPath); os.IsNotExist(dirErr) {
			// created on first save
			if filepath.Base(dirPath) == constants.AppName {
				return nil
			}
			return fmt.Errorf("%s directory does not exist: %s", description, dirPath)
		}
		return nil
	}

	if realPath != cleanPath {
		if err := validateSymlinkSecurity(realPath, description); err != nil {
			return err
		}
	}

	stat, err := os.Stat(realPath)
	if err != nil {
		return fmt.Errorf("cannot access %s: %v", description, err)
	}
	if stat.IsDir() {
		return fmt.Errorf("%s path points to a directory, not a file: %s", description, realPath)
	}
	return nil
}

func validateSymlinkSecurity(realPath, description string) error {
	absReal, err := filepath.Abs(realPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute real path for %s: %v", description, err)
	}
	for _, sysDir := range []string{"/etc", "/sys", "/proc", "/dev", "/boot"} {
		if absReal == sysDir || strings.HasPrefix(absReal, sysDir+string(filepath.Separator)) {
			return fmt.Errorf("%s symlink points to restricted system directory: %s", description, absReal)
		}
	}
	return nil
}

func LoadConfigWithValidation() error {
	if err := LoadConfig(); err != nil {
		return err
	}
	return ValidateConfig(&Cfg)
}

func assign(cfg *Config, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, NewConfigError(key, value, "must be an integer")
		}
		return n, nil
	}

	var err error
	switch key {
	case "keyring_file":
		cfg.KeyringFile = value
	case "encryption":
		cfg.Encryption = strings.ToLower(value)
	case "recipients_file":
		cfg.RecipientsFile = value
	case "identity_file":
		cfg.IdentityFile = value
	case "scrypt_work_factor":
		cfg.ScryptWorkFactor, err = atoi()
	case "arena_quota":
		cfg.ArenaQuota, err = atoi()
	case "default_protection":
		cfg.DefaultProtection = strings.ToLower(value)
	case "clipboard_timeout":
		cfg.ClipboardTimeout, err = atoi()
	case "audit_log":
		cfg.AuditLog = value
	case "log_level":
		cfg.LogLevel = strings.ToLower(value)
	default:
		return NewConfigError(key, value, "unknown key")
	}
	return err
}

func lookup(cfg *Config, key string) string {
	switch key {
	case "keyring_file":
		return cfg.KeyringFile
	case "encryption":
		return cfg.Encryption
	case "recipients_file":
		return cfg.RecipientsFile
	case "identity_file":
		return cfg.IdentityFile
	case "scrypt_work_factor":
		return strconv.Itoa(cfg.ScryptWorkFactor)
	case "arena_quota":
		return strconv.Itoa(cfg.ArenaQuota)
	case "default_protection":
		return cfg.DefaultProtection
	case "clipboard_timeout":
		return strconv.Itoa(cfg.ClipboardTimeout)
	case "audit_log":
		return cfg.AuditLog
	case "log_level":
		return cfg.LogLevel
	}
	return ""
}

func isOneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
