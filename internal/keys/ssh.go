// File: internal/keys/ssh.go
package keys

import (
	"crypto/ed25519"
	"io"
	"strings"

	"golang.org/x/crypto/ssh"

	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/securedata"
	"krypton.module/internal/security"
)

// SSHKey is an ed25519 key. The 64-byte private key (seed || public) is
// held in a guarded buffer and only exposed to ed25519.Sign inside a read
// window.
type SSHKey struct {
	private *securedata.Buffer
	public  ssh.PublicKey
}

// GenerateSSHKey reads a 32-byte seed from rand straight into protected
// memory.
func GenerateSSHKey(rand io.Reader, protection securedata.Protection) (*SSHKey, error) {
	private, err := securedata.New(ed25519.PrivateKeySize, protection, func(data []byte) error {
		if err := randomFill(rand)(data[:ed25519.SeedSize]); err != nil {
			return err
		}
		expand(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newSSHKey(private)
}

// SSHKeyFromSeed rebuilds the key from a 32-byte seed buffer.
func SSHKeyFromSeed(seed *securedata.Buffer) (*SSHKey, error) {
	if err := checkSeed(constants.KindSSHEd25519, seed); err != nil {
		return nil, err
	}
	private, err := securedata.New(ed25519.PrivateKeySize, seed.Protection(), func(data []byte) error {
		if err := copyFrom(seed)(data[:ed25519.SeedSize]); err != nil {
			return err
		}
		expand(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newSSHKey(private)
}

// expand fills data[32:] with the public key for the seed in data[:32].
func expand(data []byte) {
	full := ed25519.NewKeyFromSeed(data[:ed25519.SeedSize])
	copy(data[ed25519.SeedSize:], full[ed25519.SeedSize:])
	security.SecureZero(full)
}

func newSSHKey(private *securedata.Buffer) (*SSHKey, error) {
	var public ssh.PublicKey
	err := private.Read(func(data []byte) error {
		pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(pub, data[ed25519.SeedSize:])
		var err error
		public, err = ssh.NewPublicKey(pub)
		return err
	})
	if err != nil {
		_ = private.Release()
		return nil, kerrors.NewInvalidKeyError(constants.KindSSHEd25519, err.Error())
	}
	return &SSHKey{private: private, public: public}, nil
}

func (k *SSHKey) Kind() string {
	return constants.KindSSHEd25519
}

func (k *SSHKey) PublicKey() ssh.PublicKey {
	return k.public
}

func (k *SSHKey) PublicBytes() []byte {
	return k.public.(ssh.CryptoPublicKey).CryptoPublicKey().(ed25519.PublicKey)
}

// AuthorizedKey renders the key in authorized_keys format.
func (k *SSHKey) AuthorizedKey(comment string) string {
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(k.public)))
	if comment != "" {
		line += " " + comment
	}
	return line
}

func (k *SSHKey) Fingerprint() string {
	return ssh.FingerprintSHA256(k.public)
}

// Sign produces an ssh-ed25519 signature over data. ed25519.Sign caches the
// expanded key behind a weak pointer to the key's first byte, which the
// runtime only allows for Go heap memory, so the key is signed from a heap
// copy that is wiped afterwards.
func (k *SSHKey) Sign(data []byte) (*ssh.Signature, error) {
	var blob []byte
	err := k.private.Read(func(private []byte) error {
		key := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
		defer security.SecureZero(key)
		copy(key, private)
		blob = ed25519.Sign(key, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ssh.Signature{Format: ssh.KeyAlgoED25519, Blob: blob}, nil
}

func (k *SSHKey) Seed() (*securedata.Buffer, error) {
	return k.private.Truncate(ed25519.SeedSize)
}

func (k *SSHKey) Release() error {
	return k.private.Release()
}

func (k *SSHKey) Released() bool {
	return k.private.Released()
}

// Verify checks sig over data against pub.
func Verify(pub ssh.PublicKey, data []byte, sig *ssh.Signature) error {
	if err := pub.Verify(data, sig); err != nil {
		return kerrors.Wrap(kerrors.ErrCodeAuthFailed, "signature verification failed", err)
	}
	return nil
}

// ParseSignature decodes a wire-format ssh signature.
func ParseSignature(wire []byte) (*ssh.Signature, error) {
	sig := new(ssh.Signature)
	if err := ssh.Unmarshal(wire, sig); err != nil {
		return nil, kerrors.NewInvalidInputError("signature", err.Error())
	}
	return sig, nil
}

// MarshalSignature encodes sig in ssh wire format.
func MarshalSignature(sig *ssh.Signature) []byte {
	return ssh.Marshal(sig)
}
