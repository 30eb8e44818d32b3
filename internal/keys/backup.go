// File: internal/keys/backup.go
package keys

import (
	"strings"
	"unsafe"

	"github.com/tyler-smith/go-bip39"

	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/securedata"
	"krypton.module/internal/security"
)

// MnemonicWords is the length of a paper backup of a 32-byte seed.
const MnemonicWords = 24

// Mnemonic encodes a 32-byte seed as 24 BIP-39 words held in a guarded
// buffer. bip39 builds the phrase as a Go string first; that copy cannot be
// wiped and is left to the collector.
func Mnemonic(seed *securedata.Buffer) (*securedata.Buffer, error) {
	if seed == nil || seed.Len() != constants.SeedSize {
		return nil, kerrors.NewInvalidInputError("seed", "paper backups need a 32-byte seed")
	}

	var phrase string
	err := seed.Read(func(entropy []byte) error {
		var err error
		phrase, err = bip39.NewMnemonic(entropy)
		return err
	})
	if err != nil {
		return nil, kerrors.NewInvalidMnemonicError(err.Error())
	}

	return securedata.New(len(phrase), seed.Protection(), func(data []byte) error {
		copy(data, phrase)
		return nil
	})
}

// SeedFromMnemonic validates the checksum of a 24-word phrase and returns the
// 32-byte seed. The phrase is handed to bip39 as a string view over the
// guarded bytes, so no heap copy of the words is made.
func SeedFromMnemonic(words securedata.Data, protection securedata.Protection) (*securedata.Buffer, error) {
	var entropy []byte
	err := words.Read(func(data []byte) error {
		if len(data) == 0 {
			return kerrors.NewInvalidMnemonicError("empty phrase")
		}
		phrase := unsafe.String(unsafe.SliceData(data), len(data))
		if n := len(strings.Fields(phrase)); n != MnemonicWords {
			return kerrors.NewInvalidMnemonicError("expected 24 words")
		}
		var err error
		entropy, err = bip39.EntropyFromMnemonic(phrase)
		if err != nil {
			// the library error can quote a word of the phrase
			return kerrors.NewInvalidMnemonicError(mnemonicReason(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer security.SecureZero(entropy)

	if len(entropy) != constants.SeedSize {
		return nil, kerrors.NewInvalidMnemonicError("phrase does not encode a 32-byte seed")
	}
	return securedata.New(constants.SeedSize, protection, func(data []byte) error {
		copy(data, entropy)
		return nil
	})
}

func mnemonicReason(err error) string {
	switch err {
	case bip39.ErrChecksumIncorrect:
		return "checksum incorrect"
	case bip39.ErrInvalidMnemonic:
		return "not a valid BIP-39 phrase"
	}
	return "unknown word in phrase"
}
