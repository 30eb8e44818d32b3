package seal

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/securedata"
)

func plaintext(t *testing.T, b *securedata.Buffer) string {
	t.Helper()
	var out string
	require.NoError(t, b.Read(func(data []byte) error {
		out = string(data)
		return nil
	}))
	return out
}

func TestSecretRoundTrip(t *testing.T) {
	key, err := keys.GenerateSymmetricKey(rand.Reader, securedata.NoAccess)
	require.NoError(t, err)
	defer key.Release()

	sealed, err := SealSecret(key, []byte("deploy token"))
	require.NoError(t, err)
	assert.Len(t, sealed, Overhead+len("deploy token"))

	opened, err := OpenSecret(key, sealed, securedata.ReadOnly)
	require.NoError(t, err)
	defer opened.Release()
	assert.Equal(t, "deploy token", plaintext(t, opened))
	assert.Equal(t, securedata.ReadOnly, opened.Protection())

	again, err := SealSecret(key, []byte("deploy token"))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")
}

func TestSecretRejectsTampering(t *testing.T) {
	key, err := keys.GenerateSymmetricKey(rand.Reader, securedata.ReadOnly)
	require.NoError(t, err)
	defer key.Release()
	other, err := keys.GenerateSymmetricKey(rand.Reader, securedata.ReadOnly)
	require.NoError(t, err)
	defer other.Release()

	sealed, err := SealSecret(key, []byte("payload"))
	require.NoError(t, err)

	flipped := append([]byte(nil), sealed...)
	flipped[len(flipped)-1] ^= 1
	_, err = OpenSecret(key, flipped, securedata.ReadOnly)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeUnseal))

	_, err = OpenSecret(other, sealed, securedata.ReadOnly)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeUnseal))

	_, err = OpenSecret(key, sealed[:10], securedata.ReadOnly)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeUnseal))
}

func TestOpenWithReleasedKey(t *testing.T) {
	key, err := keys.GenerateSymmetricKey(rand.Reader, securedata.ReadOnly)
	require.NoError(t, err)
	sealed, err := SealSecret(key, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, key.Release())

	_, err = OpenSecret(key, sealed, securedata.ReadOnly)
	assert.ErrorIs(t, err, kerrors.ErrBufferReleased)
}

func TestBoxRoundTrip(t *testing.T) {
	phone, err := keys.GenerateBoxKeyPair(rand.Reader, securedata.NoAccess)
	require.NoError(t, err)
	defer phone.Release()
	workstation, err := keys.GenerateBoxKeyPair(rand.Reader, securedata.NoAccess)
	require.NoError(t, err)
	defer workstation.Release()

	sealed, err := SealBox(workstation.PublicKey(), phone, []byte(`{"request":"sign"}`))
	require.NoError(t, err)

	opened, err := OpenBox(phone.PublicKey(), workstation, sealed, securedata.ReadOnly)
	require.NoError(t, err)
	defer opened.Release()
	assert.Equal(t, `{"request":"sign"}`, plaintext(t, opened))

	stranger, err := keys.GenerateBoxKeyPair(rand.Reader, securedata.ReadOnly)
	require.NoError(t, err)
	defer stranger.Release()
	_, err = OpenBox(phone.PublicKey(), stranger, sealed, securedata.ReadOnly)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeUnseal))
}

func TestAnonymousRoundTrip(t *testing.T) {
	recipient, err := keys.GenerateBoxKeyPair(rand.Reader, securedata.ReadOnly)
	require.NoError(t, err)
	defer recipient.Release()

	sealed, err := SealAnonymous(recipient.PublicKey(), []byte("wrapped key"))
	require.NoError(t, err)

	opened, err := OpenAnonymous(recipient, sealed, securedata.NoAccess)
	require.NoError(t, err)
	defer opened.Release()
	assert.Equal(t, "wrapped key", plaintext(t, opened))

	_, err = OpenAnonymous(recipient, sealed[:5], securedata.ReadOnly)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeUnseal))
}

func TestEmptyPlaintext(t *testing.T) {
	key, err := keys.GenerateSymmetricKey(rand.Reader, securedata.ReadOnly)
	require.NoError(t, err)
	defer key.Release()

	sealed, err := SealSecret(key, nil)
	require.NoError(t, err)
	opened, err := OpenSecret(key, sealed, securedata.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, 0, opened.Len())
	require.NoError(t, opened.Release())
}
