// File: internal/constants/constants.go
package constants

// Entry kinds
const (
	KindSSHEd25519 = "ssh-ed25519"
	KindNaClBox    = "nacl-box"
	KindSecretBox  = "secretbox"
)

// Keyring encryption methods
const (
	EncryptionPassphrase = "passphrase"
	EncryptionRecipients = "recipients"
)

// Resting protection of buffers holding loaded secrets
const (
	ProtectionReadOnly = "readonly"
	ProtectionNoAccess = "noaccess"
)

// Defaults
const (
	DefaultKeyringFile      = "keyring.age"
	DefaultAuditLog         = "audit.log"
	DefaultLogLevel         = "warn"
	DefaultClipboardTimeout = 30
	DefaultScryptWorkFactor = 18
	AppName                 = "krypton"
	EnvPrefix               = "KRYPTON"
)

// Copyable fields
const (
	FieldPublicKey   = "pubkey"
	FieldFingerprint = "fingerprint"
	FieldMnemonic    = "mnemonic"
)

// Key sizes
const (
	SeedSize = 32
)
