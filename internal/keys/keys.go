// File: internal/keys/keys.go
package keys

import (
	"io"
	"strings"

	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/securedata"
)

// KeyPair is a key whose secret half lives in a guarded buffer.
type KeyPair interface {
	Kind() string
	// PublicBytes is empty for symmetric keys.
	PublicBytes() []byte
	// Seed returns a new buffer holding the 32 bytes the key can be rebuilt
	// from. The caller releases it.
	Seed() (*securedata.Buffer, error)
	Release() error
	Released() bool
}

// Kinds lists every supported key kind.
func Kinds() []string {
	return []string{constants.KindSSHEd25519, constants.KindNaClBox, constants.KindSecretBox}
}

// NormalizeKind lowercases and trims kind.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// ValidateKind checks if the key kind is supported
func ValidateKind(kind string) error {
	switch NormalizeKind(kind) {
	case constants.KindSSHEd25519, constants.KindNaClBox, constants.KindSecretBox:
		return nil
	}
	return kerrors.NewInvalidKeyError(kind, "unsupported kind (supported: "+strings.Join(Kinds(), ", ")+")")
}

// Generate creates a fresh key of kind from rand, resting at protection.
func Generate(kind string, rand io.Reader, protection securedata.Protection) (KeyPair, error) {
	switch NormalizeKind(kind) {
	case constants.KindSSHEd25519:
		return GenerateSSHKey(rand, protection)
	case constants.KindNaClBox:
		return GenerateBoxKeyPair(rand, protection)
	case constants.KindSecretBox:
		return GenerateSymmetricKey(rand, protection)
	}
	return nil, ValidateKind(kind)
}

// FromSeed rebuilds a key of kind from seed. The seed is only read; the
// caller keeps ownership of it.
func FromSeed(kind string, seed *securedata.Buffer) (KeyPair, error) {
	switch NormalizeKind(kind) {
	case constants.KindSSHEd25519:
		return SSHKeyFromSeed(seed)
	case constants.KindNaClBox:
		return BoxKeyPairFromSeed(seed)
	case constants.KindSecretBox:
		return SymmetricKeyFromSeed(seed)
	}
	return nil, ValidateKind(kind)
}

func checkSeed(kind string, seed *securedata.Buffer) error {
	if seed == nil {
		return kerrors.NewInvalidKeyError(kind, "missing seed")
	}
	if seed.Len() != constants.SeedSize {
		return kerrors.NewInvalidKeyError(kind, "seed must be 32 bytes")
	}
	return nil
}

func randomFill(rand io.Reader) func([]byte) error {
	return func(data []byte) error {
		_, err := io.ReadFull(rand, data)
		return err
	}
}

// copyFrom returns an initializer copying src's contents into the new buffer.
func copyFrom(src *securedata.Buffer) func([]byte) error {
	return func(dst []byte) error {
		return src.Read(func(data []byte) error {
			copy(dst, data)
			return nil
		})
	}
}
