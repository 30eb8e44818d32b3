package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "krypton.module/internal/errors"
)

func validConfig(dir string) Config {
	return Config{
		KeyringFile:       filepath.Join(dir, "keyring.age"),
		Encryption:        "passphrase",
		ScryptWorkFactor:  18,
		DefaultProtection: "readonly",
		ClipboardTimeout:  30,
		AuditLog:          filepath.Join(dir, "audit.log"),
		LogLevel:          "warn",
	}
}

func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()
	recipients := filepath.Join(dir, "recipients.txt")
	require.NoError(t, os.WriteFile(recipients, []byte("age1example\n"), 0600))

	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "noaccess", mutate: func(c *Config) { c.DefaultProtection = "noaccess" }},
		{name: "recipients with file", mutate: func(c *Config) {
			c.Encryption = "recipients"
			c.RecipientsFile = recipients
		}},
		{name: "unknown encryption", mutate: func(c *Config) { c.Encryption = "yubikey" }, field: "encryption", wantErr: true},
		{name: "recipients without file", mutate: func(c *Config) { c.Encryption = "recipients" }, field: "recipients_file", wantErr: true},
		{name: "readwrite resting protection", mutate: func(c *Config) { c.DefaultProtection = "readwrite" }, field: "default_protection", wantErr: true},
		{name: "negative quota", mutate: func(c *Config) { c.ArenaQuota = -1 }, field: "arena_quota", wantErr: true},
		{name: "work factor too high", mutate: func(c *Config) { c.ScryptWorkFactor = 40 }, field: "scrypt_work_factor", wantErr: true},
		{name: "traversal", mutate: func(c *Config) { c.KeyringFile = "../keyring.age" }, field: "keyring_file", wantErr: true},
		{name: "keyring is a directory", mutate: func(c *Config) { c.KeyringFile = dir }, field: "keyring_file", wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, field: "log_level", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(dir)
			tt.mutate(&cfg)
			err := ValidateConfig(&cfg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeConfigValidation))
		})
	}
}

func TestSetAndGet(t *testing.T) {
	saved := Cfg
	t.Cleanup(func() { Cfg = saved })
	Cfg = validConfig(t.TempDir())

	require.NoError(t, Set("default_protection", "NoAccess"))
	got, err := Get("default_protection")
	require.NoError(t, err)
	assert.Equal(t, "noaccess", got)

	require.NoError(t, Set("clipboard_timeout", "5"))
	assert.Equal(t, 5*time.Second, GetClipboardTimeout())

	err = Set("clipboard_timeout", "soon")
	assert.Error(t, err)
	assert.Equal(t, 5, Cfg.ClipboardTimeout, "failed set must not change the config")

	err = Set("default_protection", "readwrite")
	assert.Error(t, err)
	assert.Equal(t, "noaccess", Cfg.DefaultProtection)

	_, err = Get("authtoken")
	assert.Error(t, err)
}

func TestClipboardTimeoutFallback(t *testing.T) {
	saved := Cfg
	t.Cleanup(func() { Cfg = saved })

	Cfg.ClipboardTimeout = 0
	assert.Equal(t, 30*time.Second, GetClipboardTimeout())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "keyring_file": "/tmp/k.age",
  "arena_quota": 65536,
  "default_protection": "noaccess"
}`), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/k.age", cfg.KeyringFile)
	assert.Equal(t, 65536, cfg.ArenaQuota)
	assert.Equal(t, "noaccess", cfg.DefaultProtection)
	assert.Equal(t, "passphrase", cfg.Encryption, "unset keys keep their defaults")
	assert.Equal(t, 18, cfg.ScryptWorkFactor)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeConfigLoad))
}
