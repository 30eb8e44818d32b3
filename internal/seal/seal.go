// Package seal encrypts payloads with nacl/secretbox and nacl/box. Keys are
// passed to the nacl primitives as pointers into guarded memory and opened
// plaintexts are written straight into new guarded buffers.
package seal

import (
	"crypto/rand"
	stderrors "errors"
	"io"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"

	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/securedata"
)

const (
	NonceSize = 24
	// Overhead is the nonce plus the Poly1305 tag.
	Overhead = NonceSize + secretbox.Overhead
)

var errAuthFailed = stderrors.New("authentication failed")

// Reader is the randomness source for nonces.
var Reader io.Reader = rand.Reader

func newNonce() (*[NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(Reader, nonce[:]); err != nil {
		return nil, kerrors.NewSealError("nonce generation failed", err)
	}
	return &nonce, nil
}

func splitNonce(sealed []byte) (*[NonceSize]byte, []byte, error) {
	if len(sealed) < Overhead {
		return nil, nil, kerrors.NewUnsealError("ciphertext too short")
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])
	return &nonce, sealed[NonceSize:], nil
}

// SealSecret encrypts msg under key. The output is nonce || box.
func SealSecret(key *keys.SymmetricKey, msg []byte) ([]byte, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	var out []byte
	err = key.Key().Read(func(k []byte) error {
		out = secretbox.Seal(nonce[:], msg, nonce, (*[32]byte)(k))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenSecret authenticates and decrypts a SealSecret output into a guarded
// buffer resting at protection.
func OpenSecret(key *keys.SymmetricKey, sealed []byte, protection securedata.Protection) (*securedata.Buffer, error) {
	nonce, ciphertext, err := splitNonce(sealed)
	if err != nil {
		return nil, err
	}

	return openInto(len(ciphertext)-secretbox.Overhead, protection, func(dst []byte) (ok bool, err error) {
		err = key.Key().Read(func(k []byte) error {
			_, ok = secretbox.Open(dst[:0], ciphertext, nonce, (*[32]byte)(k))
			return nil
		})
		return ok, err
	})
}

// SealBox encrypts msg from kp to peer. The output is nonce || box.
func SealBox(peer *[32]byte, kp *keys.BoxKeyPair, msg []byte) ([]byte, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	var out []byte
	err = kp.Secret().Read(func(secret []byte) error {
		out = box.Seal(nonce[:], msg, nonce, peer, (*[32]byte)(secret))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenBox authenticates and decrypts a SealBox output sent by peer to kp.
func OpenBox(peer *[32]byte, kp *keys.BoxKeyPair, sealed []byte, protection securedata.Protection) (*securedata.Buffer, error) {
	nonce, ciphertext, err := splitNonce(sealed)
	if err != nil {
		return nil, err
	}

	return openInto(len(ciphertext)-box.Overhead, protection, func(dst []byte) (ok bool, err error) {
		err = kp.Secret().Read(func(secret []byte) error {
			_, ok = box.Open(dst[:0], ciphertext, nonce, peer, (*[32]byte)(secret))
			return nil
		})
		return ok, err
	})
}

// SealAnonymous encrypts msg to recipient without revealing the sender.
func SealAnonymous(recipient *[32]byte, msg []byte) ([]byte, error) {
	out, err := box.SealAnonymous(nil, msg, recipient, Reader)
	if err != nil {
		return nil, kerrors.NewSealError("anonymous seal failed", err)
	}
	return out, nil
}

// OpenAnonymous decrypts a SealAnonymous output addressed to kp.
func OpenAnonymous(kp *keys.BoxKeyPair, sealed []byte, protection securedata.Protection) (*securedata.Buffer, error) {
	if len(sealed) < box.AnonymousOverhead {
		return nil, kerrors.NewUnsealError("ciphertext too short")
	}
	pub := kp.PublicKey()

	return openInto(len(sealed)-box.AnonymousOverhead, protection, func(dst []byte) (ok bool, err error) {
		err = kp.Secret().Read(func(secret []byte) error {
			_, ok = box.OpenAnonymous(dst[:0], sealed, pub, (*[32]byte)(secret))
			return nil
		})
		return ok, err
	})
}

// openInto allocates a guarded buffer of length n and lets open write the
// plaintext into it. A failed authentication frees the buffer.
func openInto(n int, protection securedata.Protection, open func(dst []byte) (bool, error)) (*securedata.Buffer, error) {
	var keyErr error
	authenticated := true
	buf, err := securedata.New(n, protection, func(dst []byte) error {
		authenticated, keyErr = open(dst)
		if keyErr != nil || !authenticated {
			return errAuthFailed
		}
		return nil
	})
	switch {
	case keyErr != nil:
		return nil, keyErr
	case !authenticated:
		return nil, kerrors.NewUnsealError("authentication failed")
	}
	return buf, err
}
