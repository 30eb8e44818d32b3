// File: internal/keys/symmetric.go
package keys

import (
	"io"

	"krypton.module/internal/constants"
	"krypton.module/internal/securedata"
)

// SymmetricKey is a 32-byte nacl/secretbox key.
type SymmetricKey struct {
	key *securedata.Buffer
}

func GenerateSymmetricKey(rand io.Reader, protection securedata.Protection) (*SymmetricKey, error) {
	key, err := securedata.New(constants.SeedSize, protection, randomFill(rand))
	if err != nil {
		return nil, err
	}
	return &SymmetricKey{key: key}, nil
}

func SymmetricKeyFromSeed(seed *securedata.Buffer) (*SymmetricKey, error) {
	if err := checkSeed(constants.KindSecretBox, seed); err != nil {
		return nil, err
	}
	key, err := seed.Truncate(constants.SeedSize)
	if err != nil {
		return nil, err
	}
	return &SymmetricKey{key: key}, nil
}

func (k *SymmetricKey) Kind() string {
	return constants.KindSecretBox
}

func (k *SymmetricKey) PublicBytes() []byte {
	return nil
}

// Key is the guarded key material. It stays owned by k.
func (k *SymmetricKey) Key() *securedata.Buffer {
	return k.key
}

func (k *SymmetricKey) Seed() (*securedata.Buffer, error) {
	return k.key.Truncate(constants.SeedSize)
}

func (k *SymmetricKey) Release() error {
	return k.key.Release()
}

func (k *SymmetricKey) Released() bool {
	return k.key.Released()
}
