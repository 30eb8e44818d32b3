// File: internal/config/config.go
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
)

// Config is the on-disk configuration (config.json).
type Config struct {
	KeyringFile       string `mapstructure:"keyring_file"`
	Encryption        string `mapstructure:"encryption"`
	RecipientsFile    string `mapstructure:"recipients_file"`
	IdentityFile      string `mapstructure:"identity_file"`
	ScryptWorkFactor  int    `mapstructure:"scrypt_work_factor"`
	ArenaQuota        int    `mapstructure:"arena_quota"`
	DefaultProtection string `mapstructure:"default_protection"`
	ClipboardTimeout  int    `mapstructure:"clipboard_timeout"`
	AuditLog          string `mapstructure:"audit_log"`
	LogLevel          string `mapstructure:"log_level"`
}

// Keys lists every settable configuration key.
var Keys = []string{
	"keyring_file",
	"encryption",
	"recipients_file",
	"identity_file",
	"scrypt_work_factor",
	"arena_quota",
	"default_protection",
	"clipboard_timeout",
	"audit_log",
	"log_level",
}

// Cfg is a global variable that holds the loaded configuration.
var Cfg Config

// Dir is $XDG_CONFIG_HOME/krypton (or the platform equivalent).
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, constants.AppName)
}

func setDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("keyring_file", filepath.Join(dir, constants.DefaultKeyringFile))
	v.SetDefault("encryption", constants.EncryptionPassphrase)
	v.SetDefault("recipients_file", "")
	v.SetDefault("identity_file", "")
	v.SetDefault("scrypt_work_factor", constants.DefaultScryptWorkFactor)
	v.SetDefault("arena_quota", 0)
	v.SetDefault("default_protection", constants.ProtectionReadOnly)
	v.SetDefault("clipboard_timeout", constants.DefaultClipboardTimeout)
	v.SetDefault("audit_log", filepath.Join(dir, constants.DefaultAuditLog))
	v.SetDefault("log_level", constants.DefaultLogLevel)
}

// LoadConfig loads the configuration from a file and environment variables.
// A missing file is not an error.
func LoadConfig() error {
	v := viper.GetViper()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath(Dir())
	v.SetEnvPrefix(constants.EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return kerrors.NewConfigLoadError(v.ConfigFileUsed(), err)
		}
	}
	if err := v.Unmarshal(&Cfg); err != nil {
		return kerrors.NewConfigLoadError(v.ConfigFileUsed(), err)
	}
	return nil
}

// LoadFile reads a specific config file into a fresh Config without touching
// the global one.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, kerrors.NewConfigLoadError(path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, kerrors.NewConfigLoadError(path, err)
	}
	return cfg, nil
}

// SaveConfig writes the current configuration to the file it was loaded
// from, or to config.json in the config directory.
func SaveConfig() error {
	v := viper.GetViper()
	v.Set("keyring_file", Cfg.KeyringFile)
	v.Set("encryption", Cfg.Encryption)
	v.Set("recipients_file", Cfg.RecipientsFile)
	v.Set("identity_file", Cfg.IdentityFile)
	v.Set("scrypt_work_factor", Cfg.ScryptWorkFactor)
	v.Set("arena_quota", Cfg.ArenaQuota)
	v.Set("default_protection", Cfg.DefaultProtection)
	v.Set("clipboard_timeout", Cfg.ClipboardTimeout)
	v.Set("audit_log", Cfg.AuditLog)
	v.Set("log_level", Cfg.LogLevel)

	path := v.ConfigFileUsed()
	if path == "" {
		path = filepath.Join(Dir(), "config.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return kerrors.NewConfigSaveError(path, err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return kerrors.NewConfigSaveError(path, err)
	}
	return nil
}

// Get returns the string form of a config key.
func Get(key string) (string, error) {
	if !isKnownKey(key) {
		return "", NewConfigError(key, "", "unknown key")
	}
	return lookup(&Cfg, key), nil
}

// Set validates and applies a single key to Cfg.
func Set(key, value string) error {
	if !isKnownKey(key) {
		return NewConfigError(key, value, "unknown key")
	}
	next := Cfg
	if err := assign(&next, key, value); err != nil {
		return err
	}
	if err := ValidateConfig(&next); err != nil {
		return err
	}
	Cfg = next
	return nil
}

// GetClipboardTimeout returns the clipboard auto-clear delay.
func GetClipboardTimeout() time.Duration {
	if Cfg.ClipboardTimeout <= 0 {
		return constants.DefaultClipboardTimeout * time.Second
	}
	return time.Duration(Cfg.ClipboardTimeout) * time.Second
}

func isKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
