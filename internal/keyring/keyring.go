// Package keyring stores named keys in an age-encrypted file. While loaded,
// each secret is held in a memguard enclave and only decrypted into a
// guarded buffer on Open.
package keyring

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"krypton.module/internal/audit"
	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/securedata"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.@-]*$`)

const maxNameLength = 64

// Entry is the public half of a stored key.
type Entry struct {
	Name    string    `json:"name"`
	Kind    string    `json:"kind"`
	Created time.Time `json:"created"`
	// PublicKey is base64; empty for secretbox keys.
	PublicKey string `json:"public_key,omitempty"`
	// PeerKey is the paired workstation's base64 public key.
	PeerKey string `json:"peer_key,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// PublicBytes decodes PublicKey.
func (e Entry) PublicBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.PublicKey)
}

// PeerBytes decodes PeerKey.
func (e Entry) PeerBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.PeerKey)
}

type item struct {
	Entry
	secret *memguard.Enclave
}

// Keyring is a set of named keys. It is safe for concurrent use.
type Keyring struct {
	mu      sync.RWMutex
	entries map[string]*item
}

// New returns an empty keyring.
func New() *Keyring {
	return &Keyring{entries: make(map[string]*item)}
}

// ValidateName checks if a key name follows the naming rules.
func ValidateName(name string) error {
	if name == "" {
		return kerrors.NewInvalidInputError("key name", "name cannot be empty")
	}
	if len(name) > maxNameLength {
		return kerrors.NewInvalidInputError("key name", fmt.Sprintf("name too long (max %d characters)", maxNameLength))
	}
	if !namePattern.MatchString(name) {
		return kerrors.NewInvalidInputError("key name", "name may contain letters, digits and '_', '.', '@', '-' and must start with a letter or digit")
	}
	return nil
}

// Len reports the number of entries.
func (k *Keyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

// Put stores seed under entry.Name. The seed is copied; the caller keeps
// ownership of it.
func (k *Keyring) Put(entry Entry, seed securedata.Data) error {
	if err := ValidateName(entry.Name); err != nil {
		return err
	}
	entry.Kind = keys.NormalizeKind(entry.Kind)
	if err := keys.ValidateKind(entry.Kind); err != nil {
		return err
	}
	if seed == nil || seed.Len() != constants.SeedSize {
		return kerrors.NewInvalidKeyError(entry.Kind, "seed must be 32 bytes")
	}
	if entry.Created.IsZero() {
		entry.Created = time.Now().UTC()
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.entries[entry.Name]; ok {
		return kerrors.NewEntryExistsError(entry.Name)
	}

	enclave, err := seal(seed)
	if err != nil {
		return err
	}
	k.entries[entry.Name] = &item{Entry: entry, secret: enclave}

	audit.Logger.Info("Key stored",
		slog.String("name", entry.Name),
		slog.String("kind", entry.Kind))
	return nil
}

// PutKey stores kp under name, recording its public half.
func (k *Keyring) PutKey(name, comment string, kp keys.KeyPair) error {
	seed, err := kp.Seed()
	if err != nil {
		return err
	}
	defer seed.Release()

	entry := Entry{Name: name, Kind: kp.Kind(), Comment: comment}
	if pub := kp.PublicBytes(); len(pub) > 0 {
		entry.PublicKey = base64.StdEncoding.EncodeToString(pub)
	}
	return k.Put(entry, seed)
}

// Get returns the public half of name.
func (k *Keyring) Get(name string) (Entry, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	it, ok := k.entries[name]
	if !ok {
		return Entry{}, kerrors.NewEntryNotFoundError(name)
	}
	return it.Entry, nil
}

// SetComment replaces the comment of name.
func (k *Keyring) SetComment(name, comment string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	it, ok := k.entries[name]
	if !ok {
		return kerrors.NewEntryNotFoundError(name)
	}
	it.Comment = comment
	return nil
}

// List returns every entry sorted by name.
func (k *Keyring) List() []Entry {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.listLocked()
}

func (k *Keyring) listLocked() []Entry {
	out := make([]Entry, 0, len(k.entries))
	for _, it := range k.entries {
		out = append(out, it.Entry)
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Delete removes name.
func (k *Keyring) Delete(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.entries[name]; !ok {
		return kerrors.NewEntryNotFoundError(name)
	}
	delete(k.entries, name)
	audit.Logger.Info("Key deleted", slog.String("name", name))
	return nil
}

// Open decrypts the seed of name into a new guarded buffer resting at
// protection. The caller releases it.
func (k *Keyring) Open(name string, protection securedata.Protection) (*securedata.Buffer, error) {
	k.mu.RLock()
	it, ok := k.entries[name]
	k.mu.RUnlock()
	if !ok {
		return nil, kerrors.NewEntryNotFoundError(name)
	}
	return unseal(it.secret, protection)
}

// OpenKey rebuilds the key stored under name.
func (k *Keyring) OpenKey(name string, protection securedata.Protection) (keys.KeyPair, error) {
	entry, err := k.Get(name)
	if err != nil {
		return nil, err
	}
	seed, err := k.Open(name, protection)
	if err != nil {
		return nil, err
	}
	defer seed.Release()

	audit.Logger.Info("Key opened",
		slog.String("name", name),
		slog.String("kind", entry.Kind))
	return keys.FromSeed(entry.Kind, seed)
}

// Close drops every enclave. The keyring is empty afterwards.
func (k *Keyring) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for name, it := range k.entries {
		it.secret = nil
		delete(k.entries, name)
	}
}

// seal copies a guarded seed into a memguard enclave.
func seal(seed securedata.Data) (*memguard.Enclave, error) {
	var enclave *memguard.Enclave
	err := seed.Read(func(data []byte) error {
		lb := memguard.NewBuffer(len(data))
		lb.Copy(data)
		enclave = lb.Seal()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enclave, nil
}

func unseal(enclave *memguard.Enclave, protection securedata.Protection) (*securedata.Buffer, error) {
	lb, err := enclave.Open()
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrCodeInternal, "failed to open key enclave", err)
	}
	defer lb.Destroy()

	return securedata.New(lb.Size(), protection, func(dst []byte) error {
		copy(dst, lb.Bytes())
		return nil
	})
}
