package keyring

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"

	"krypton.module/internal/audit"
	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/securedata"
)

const formatVersion = 1

type document struct {
	Version int      `json:"version"`
	Keys    []record `json:"keys"`
}

type record struct {
	Entry
	Seed []byte `json:"seed"`
}

func wipeRecords(records []record) {
	for i := range records {
		memguard.WipeBytes(records[i].Seed)
		records[i].Seed = nil
	}
}

// validateAndCleanPath validates and cleans the file path
func validateAndCleanPath(path string) (string, error) {
	if path == "" {
		return "", kerrors.NewInvalidInputError("keyring path", "path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return "", kerrors.NewInvalidInputError("keyring path", "path contains invalid traversal")
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", kerrors.NewFileSystemError("resolve", path, err)
	}
	if strings.ContainsAny(absPath, "<>:\"|?*") {
		return "", kerrors.NewInvalidInputError("keyring path", "path contains invalid characters")
	}
	return absPath, nil
}

// lockFile applies an exclusive lock to the file
func lockFile(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_EX)
}

// unlockFile removes the lock from the file
func unlockFile(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}

// Load decrypts the keyring at path with the first matching identity. A
// missing file yields an empty keyring.
func Load(path string, identities ...age.Identity) (*Keyring, error) {
	cleanPath, err := validateAndCleanPath(path)
	if err != nil {
		audit.Logger.Error("Failed to validate keyring path",
			slog.String("keyring_file", path),
			slog.String("error", err.Error()))
		return nil, err
	}

	if _, err := os.Stat(cleanPath); os.IsNotExist(err) {
		audit.Logger.Info("Keyring file does not exist, starting empty",
			slog.String("keyring_file", cleanPath))
		return New(), nil
	}

	audit.Logger.Info("Loading keyring", slog.String("keyring_file", cleanPath))

	file, err := os.OpenFile(cleanPath, os.O_RDONLY, 0600)
	if err != nil {
		audit.Logger.Error("Failed to open keyring file",
			slog.String("keyring_file", cleanPath),
			slog.String("error", err.Error()))
		return nil, kerrors.FromOSError(err, cleanPath)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		audit.Logger.Error("Failed to lock keyring file",
			slog.String("keyring_file", cleanPath),
			slog.String("error", err.Error()))
		return nil, kerrors.NewKeyringLockedError(cleanPath)
	}
	defer unlockFile(file)

	info, err := file.Stat()
	if err != nil {
		return nil, kerrors.NewKeyringLoadError(cleanPath, err)
	}

	r, err := age.Decrypt(armor.NewReader(file), identities...)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if stderrors.As(err, &noMatch) {
			audit.Logger.Warn("Keyring decryption refused",
				slog.String("keyring_file", cleanPath))
			return nil, kerrors.NewAuthFailedError("no identity or passphrase matched the keyring")
		}
		audit.Logger.Error("Failed to decrypt keyring",
			slog.String("keyring_file", cleanPath),
			slog.String("error", err.Error()))
		return nil, kerrors.NewKeyringLoadError(cleanPath, err)
	}

	// The armored file is always larger than the plaintext it carries.
	plain, err := securedata.ReadAll(r, int(info.Size()), securedata.NoAccess)
	if err != nil {
		audit.Logger.Error("Failed to read keyring plaintext",
			slog.String("keyring_file", cleanPath),
			slog.String("error", err.Error()))
		return nil, kerrors.NewKeyringLoadError(cleanPath, err)
	}
	defer plain.Release()

	k, err := decode(plain)
	if err != nil {
		audit.Logger.Error("Failed to parse keyring data",
			slog.String("keyring_file", cleanPath),
			slog.String("error", err.Error()))
		return nil, kerrors.NewKeyringCorruptError(cleanPath, err)
	}

	audit.Logger.Info("Keyring loaded successfully",
		slog.String("keyring_file", cleanPath),
		slog.Int("key_count", k.Len()))
	return k, nil
}

func decode(plain securedata.Data) (*Keyring, error) {
	var doc document
	defer func() { wipeRecords(doc.Keys) }()

	err := plain.Read(func(data []byte) error {
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("unsupported keyring version %d", doc.Version)
	}

	k := New()
	for i := range doc.Keys {
		rec := &doc.Keys[i]
		if err := ValidateName(rec.Name); err != nil {
			return nil, fmt.Errorf("entry %d: invalid name", i)
		}
		if err := keys.ValidateKind(rec.Kind); err != nil {
			return nil, fmt.Errorf("entry %q: unsupported kind", rec.Name)
		}
		if len(rec.Seed) != constants.SeedSize {
			return nil, fmt.Errorf("entry %q: seed must be %d bytes", rec.Name, constants.SeedSize)
		}
		if _, dup := k.entries[rec.Name]; dup {
			return nil, fmt.Errorf("entry %q: duplicate name", rec.Name)
		}
		// NewEnclave wipes its source.
		k.entries[rec.Name] = &item{Entry: rec.Entry, secret: memguard.NewEnclave(rec.Seed)}
		rec.Seed = nil
	}
	return k, nil
}

// createSecureTempFile creates a temporary file with secure permissions (0600)
func createSecureTempFile(dir string) (*os.File, error) {
	tmpfile, err := os.CreateTemp(dir, "keyring-tmp-*")
	if err != nil {
		return nil, err
	}
	if err := tmpfile.Chmod(0600); err != nil {
		tmpfile.Close()
		os.Remove(tmpfile.Name())
		return nil, err
	}
	return tmpfile, nil
}

// Save encrypts the keyring to recipients and atomically replaces path.
func (k *Keyring) Save(path string, recipients ...age.Recipient) error {
	cleanPath, err := validateAndCleanPath(path)
	if err != nil {
		audit.Logger.Error("Failed to validate keyring path",
			slog.String("keyring_file", path),
			slog.String("error", err.Error()))
		return err
	}
	if len(recipients) == 0 {
		return kerrors.NewInvalidInputError("recipients", "at least one recipient is required")
	}

	audit.Logger.Info("Saving keyring",
		slog.String("keyring_file", cleanPath),
		slog.Int("key_count", k.Len()))

	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return kerrors.FromOSError(err, dir)
	}

	lockFileName := cleanPath + ".lock"
	lock, err := os.OpenFile(lockFileName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return kerrors.NewKeyringLockedError(cleanPath)
		}
		return kerrors.NewFileSystemError("create", lockFileName, err)
	}
	defer func() {
		lock.Close()
		os.Remove(lockFileName)
	}()

	payload, err := k.marshal()
	if err != nil {
		return kerrors.NewKeyringSaveError(cleanPath, err)
	}
	defer memguard.WipeBytes(payload)

	tmp, err := createSecureTempFile(dir)
	if err != nil {
		return kerrors.NewFileSystemError("create_temp", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := encryptTo(tmp, payload, recipients); err != nil {
		audit.Logger.Error("Failed to encrypt keyring",
			slog.String("keyring_file", cleanPath),
			slog.String("error", err.Error()))
		return kerrors.NewKeyringSaveError(cleanPath, err)
	}
	if err := tmp.Close(); err != nil {
		return kerrors.NewKeyringSaveError(cleanPath, err)
	}

	if err := os.Rename(tmpName, cleanPath); err != nil {
		audit.Logger.Error("Failed to atomically move encrypted file",
			slog.String("from", tmpName),
			slog.String("to", cleanPath),
			slog.String("error", err.Error()))
		return kerrors.NewFileSystemError("rename", cleanPath, err)
	}
	committed = true

	if err := os.Chmod(cleanPath, 0600); err != nil {
		audit.Logger.Error("Failed to set secure permissions on final file",
			slog.String("keyring_file", cleanPath),
			slog.String("error", err.Error()))
		return kerrors.NewPermissionError(cleanPath, err)
	}

	audit.Logger.Info("Keyring saved successfully",
		slog.String("keyring_file", cleanPath))
	return nil
}

func encryptTo(f *os.File, payload []byte, recipients []age.Recipient) error {
	aw := armor.NewWriter(f)
	w, err := age.Encrypt(aw, recipients...)
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := aw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// marshal renders the keyring as JSON. The caller wipes the result.
func (k *Keyring) marshal() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	doc := document{Version: formatVersion, Keys: make([]record, 0, len(k.entries))}
	defer func() { wipeRecords(doc.Keys) }()

	for _, entry := range k.listLocked() {
		lb, err := k.entries[entry.Name].secret.Open()
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry.Name, err)
		}
		doc.Keys = append(doc.Keys, record{Entry: entry, Seed: append([]byte(nil), lb.Bytes()...)})
		lb.Destroy()
	}
	return json.MarshalIndent(doc, "", "  ")
}
