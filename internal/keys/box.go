// File: internal/keys/box.go
package keys

import (
	"io"

	"golang.org/x/crypto/curve25519"

	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/securedata"
)

// BoxKeyPair is an X25519 key pair for nacl/box. The secret scalar lives in
// a guarded buffer.
type BoxKeyPair struct {
	secret *securedata.Buffer
	public [32]byte
}

func GenerateBoxKeyPair(rand io.Reader, protection securedata.Protection) (*BoxKeyPair, error) {
	secret, err := securedata.New(curve25519.ScalarSize, protection, randomFill(rand))
	if err != nil {
		return nil, err
	}
	return newBoxKeyPair(secret)
}

func BoxKeyPairFromSeed(seed *securedata.Buffer) (*BoxKeyPair, error) {
	if err := checkSeed(constants.KindNaClBox, seed); err != nil {
		return nil, err
	}
	secret, err := seed.Truncate(curve25519.ScalarSize)
	if err != nil {
		return nil, err
	}
	return newBoxKeyPair(secret)
}

func newBoxKeyPair(secret *securedata.Buffer) (*BoxKeyPair, error) {
	kp := &BoxKeyPair{secret: secret}
	err := secret.Read(func(scalar []byte) error {
		pub, err := curve25519.X25519(scalar, curve25519.Basepoint)
		if err != nil {
			return err
		}
		copy(kp.public[:], pub)
		return nil
	})
	if err != nil {
		_ = secret.Release()
		return nil, kerrors.NewInvalidKeyError(constants.KindNaClBox, err.Error())
	}
	return kp, nil
}

func (k *BoxKeyPair) Kind() string {
	return constants.KindNaClBox
}

func (k *BoxKeyPair) PublicKey() *[32]byte {
	pub := k.public
	return &pub
}

func (k *BoxKeyPair) PublicBytes() []byte {
	return append([]byte(nil), k.public[:]...)
}

// Secret is the guarded scalar. It stays owned by the key pair.
func (k *BoxKeyPair) Secret() *securedata.Buffer {
	return k.secret
}

func (k *BoxKeyPair) Seed() (*securedata.Buffer, error) {
	return k.secret.Truncate(curve25519.ScalarSize)
}

func (k *BoxKeyPair) Release() error {
	return k.secret.Release()
}

func (k *BoxKeyPair) Released() bool {
	return k.secret.Released()
}

// ParsePublicKey validates a raw 32-byte X25519 public key.
func ParsePublicKey(raw []byte) (*[32]byte, error) {
	if len(raw) != 32 {
		return nil, kerrors.NewInvalidKeyError(constants.KindNaClBox, "public key must be 32 bytes")
	}
	var pub [32]byte
	copy(pub[:], raw)
	return &pub, nil
}
