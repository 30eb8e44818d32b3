package keyring

import (
	"os"
	"unsafe"

	"filippo.io/age"

	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/securedata"
)

// MinMaxWorkFactor is the lowest scrypt cost a passphrase identity accepts
// as its ceiling.
const MinMaxWorkFactor = 22

func checkWorkFactor(logN int) error {
	if logN < 1 || logN > 30 {
		return kerrors.NewInvalidInputError("scrypt work factor", "must be between 1 and 30")
	}
	return nil
}

// withPassphrase exposes pass to fn as a string view over the guarded
// bytes. fn must not retain it.
func withPassphrase(pass securedata.Data, fn func(string) error) error {
	if pass == nil || pass.Len() == 0 {
		return kerrors.NewInvalidInputError("passphrase", "passphrase cannot be empty")
	}
	return pass.Read(func(data []byte) error {
		return fn(unsafe.String(unsafe.SliceData(data), len(data)))
	})
}

// PassphraseRecipient encrypts to pass with scrypt cost 2^workFactor.
func PassphraseRecipient(pass securedata.Data, workFactor int) (*age.ScryptRecipient, error) {
	if err := checkWorkFactor(workFactor); err != nil {
		return nil, err
	}
	var r *age.ScryptRecipient
	err := withPassphrase(pass, func(s string) error {
		var err error
		r, err = age.NewScryptRecipient(s)
		return err
	})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrCodeInvalidInput, "invalid passphrase", err)
	}
	r.SetWorkFactor(workFactor)
	return r, nil
}

// PassphraseIdentity decrypts files sealed to pass, accepting scrypt costs up
// to max(workFactor, MinMaxWorkFactor).
func PassphraseIdentity(pass securedata.Data, workFactor int) (*age.ScryptIdentity, error) {
	if err := checkWorkFactor(workFactor); err != nil {
		return nil, err
	}
	var id *age.ScryptIdentity
	err := withPassphrase(pass, func(s string) error {
		var err error
		id, err = age.NewScryptIdentity(s)
		return err
	})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrCodeInvalidInput, "invalid passphrase", err)
	}
	id.SetMaxWorkFactor(max(workFactor, MinMaxWorkFactor))
	return id, nil
}

// RecipientsFromFile parses an age recipients file.
func RecipientsFromFile(path string) ([]age.Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kerrors.FromOSError(err, path)
	}
	defer f.Close()

	recipients, err := age.ParseRecipients(f)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrCodeInvalidInput, "invalid recipients file", err).
			WithContext("path", path)
	}
	return recipients, nil
}

// IdentitiesFromFile parses an age identity file.
func IdentitiesFromFile(path string) ([]age.Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kerrors.FromOSError(err, path)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ErrCodeInvalidInput, "invalid identity file", err).
			WithContext("path", path)
	}
	return identities, nil
}
