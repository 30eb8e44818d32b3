// Package pairing binds a workstation's X25519 public key to a local box key
// pair and exchanges sealed JSON payloads with it.
package pairing

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/seal"
	"krypton.module/internal/securedata"
)

// Pairing is one paired workstation.
type Pairing struct {
	Name                 string
	UUID                 uuid.UUID
	WorkstationPublicKey [32]byte

	keyPair *keys.BoxKeyPair
}

// Request is the pairing request a workstation displays as a QR code.
type Request struct {
	Name      string `json:"n"`
	PublicKey string `json:"pk"`
}

// New pairs kp with a workstation. The pairing takes ownership of kp.
func New(name string, workstationPublicKey []byte, kp *keys.BoxKeyPair) (*Pairing, error) {
	pub, err := keys.ParsePublicKey(workstationPublicKey)
	if err != nil {
		return nil, err
	}
	id, err := uuidFor(pub[:])
	if err != nil {
		return nil, err
	}
	return &Pairing{
		Name:                 name,
		UUID:                 id,
		WorkstationPublicKey: *pub,
		keyPair:              kp,
	}, nil
}

// ParseRequest decodes a {"n": name, "pk": base64} pairing request.
func ParseRequest(data []byte) (Request, []byte, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return req, nil, kerrors.NewInvalidInputError("pairing request", err.Error())
	}
	if req.Name == "" {
		return req, nil, kerrors.NewInvalidInputError("pairing request", "missing workstation name")
	}
	pk, err := FromBase64(req.PublicKey)
	if err != nil {
		return req, nil, err
	}
	return req, pk, nil
}

func uuidFor(workstationPublicKey []byte) (uuid.UUID, error) {
	digest := sha256.Sum256(workstationPublicKey)
	id, err := uuid.FromBytes(digest[:16])
	if err != nil {
		return uuid.Nil, kerrors.Wrap(kerrors.ErrCodeInternal, "failed to derive pairing uuid", err)
	}
	return id, nil
}

// Queue is the uppercase UUID the workstation listens on.
func (p *Pairing) Queue() string {
	return strings.ToUpper(p.UUID.String())
}

// DisplayName strips a trailing ".local" from the workstation name.
func (p *Pairing) DisplayName() string {
	return strings.TrimSuffix(p.Name, ".local")
}

// WorkstationKeyDoubleHash is SHA-256(SHA-256(workstation public key)).
func (p *Pairing) WorkstationKeyDoubleHash() [32]byte {
	once := sha256.Sum256(p.WorkstationPublicKey[:])
	return sha256.Sum256(once[:])
}

// PublicKey is the local half the workstation encrypts to.
func (p *Pairing) PublicKey() *[32]byte {
	return p.keyPair.PublicKey()
}

func (p *Pairing) KeyPair() *keys.BoxKeyPair {
	return p.keyPair
}

// Seal marshals v to JSON and boxes it to the workstation.
func (p *Pairing) Seal(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, kerrors.NewSealError("payload encoding failed", err)
	}
	return seal.SealBox(&p.WorkstationPublicKey, p.keyPair, payload)
}

// SealBase64 is Seal with standard base64 output.
func (p *Pairing) SealBase64(v any) (string, error) {
	sealed, err := p.Seal(v)
	if err != nil {
		return "", err
	}
	return ToBase64(sealed), nil
}

// Open authenticates a payload from the workstation and unmarshals it into
// v. The plaintext only exists in a guarded buffer released before return.
func (p *Pairing) Open(sealed []byte, v any) error {
	plain, err := seal.OpenBox(&p.WorkstationPublicKey, p.keyPair, sealed, securedata.NoAccess)
	if err != nil {
		return err
	}
	defer plain.Release()

	return plain.Read(func(data []byte) error {
		if err := json.Unmarshal(data, v); err != nil {
			return kerrors.NewUnsealError("payload is not valid JSON")
		}
		return nil
	})
}

// OpenBase64 is Open for base64 input.
func (p *Pairing) OpenBase64(sealed string, v any) error {
	raw, err := FromBase64(sealed)
	if err != nil {
		return err
	}
	return p.Open(raw, v)
}

// Release destroys the local key pair.
func (p *Pairing) Release() error {
	return p.keyPair.Release()
}

func (p *Pairing) Released() bool {
	return p.keyPair.Released()
}

func ToBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// FromBase64 accepts standard or URL-safe base64, padded or not.
func FromBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, kerrors.NewInvalidInputError("base64", "not valid base64")
}
