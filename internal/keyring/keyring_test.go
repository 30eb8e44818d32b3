package keyring

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/keys"
	"krypton.module/internal/securedata"
)

const testWorkFactor = 10

func secret(t *testing.T, s string) *securedata.Buffer {
	t.Helper()
	b, err := securedata.NewReadOnly(len(s), func(d []byte) error {
		copy(d, s)
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Release() })
	return b
}

func passphrase(t *testing.T, s string) (age.Recipient, age.Identity) {
	t.Helper()
	pass := secret(t, s)
	r, err := PassphraseRecipient(pass, testWorkFactor)
	require.NoError(t, err)
	id, err := PassphraseIdentity(pass, testWorkFactor)
	require.NoError(t, err)
	return r, id
}

func populated(t *testing.T) *Keyring {
	t.Helper()
	k := New()
	t.Cleanup(k.Close)
	for _, kind := range keys.Kinds() {
		kp, err := keys.Generate(kind, rand.Reader, securedata.ReadOnly)
		require.NoError(t, err)
		require.NoError(t, k.PutKey("key-"+kind, "test "+kind, kp))
		require.NoError(t, kp.Release())
	}
	return k
}

func TestPutGetListDelete(t *testing.T) {
	k := populated(t)
	assert.Equal(t, 3, k.Len())

	list := k.List()
	require.Len(t, list, 3)
	assert.Equal(t, "key-nacl-box", list[0].Name)
	assert.Equal(t, "key-secretbox", list[1].Name)
	assert.Equal(t, "key-ssh-ed25519", list[2].Name)
	assert.Empty(t, list[1].PublicKey)
	assert.NotEmpty(t, list[2].PublicKey)
	assert.False(t, list[0].Created.IsZero())

	entry, err := k.Get("key-ssh-ed25519")
	require.NoError(t, err)
	assert.Equal(t, constants.KindSSHEd25519, entry.Kind)
	assert.Equal(t, "test ssh-ed25519", entry.Comment)

	require.NoError(t, k.SetComment("key-ssh-ed25519", "laptop"))
	entry, _ = k.Get("key-ssh-ed25519")
	assert.Equal(t, "laptop", entry.Comment)

	seed := secret(t, string(make([]byte, 32)))
	err = k.Put(Entry{Name: "key-nacl-box", Kind: constants.KindNaClBox}, seed)
	assert.ErrorIs(t, err, kerrors.ErrEntryExists)

	require.NoError(t, k.Delete("key-nacl-box"))
	_, err = k.Get("key-nacl-box")
	assert.ErrorIs(t, err, kerrors.ErrEntryNotFound)
	assert.ErrorIs(t, k.Delete("key-nacl-box"), kerrors.ErrEntryNotFound)
	_, err = k.Open("missing", securedata.ReadOnly)
	assert.ErrorIs(t, err, kerrors.ErrEntryNotFound)
}

func TestPutRejectsBadInput(t *testing.T) {
	k := New()
	seed := secret(t, string(make([]byte, 32)))

	for _, name := range []string{"", "-lead", "has space", "a/b", string(make([]byte, 65))} {
		err := k.Put(Entry{Name: name, Kind: constants.KindSecretBox}, seed)
		assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidInput), "%q", name)
	}

	err := k.Put(Entry{Name: "ok", Kind: "rsa"}, seed)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidKey))

	err = k.Put(Entry{Name: "ok", Kind: constants.KindSecretBox}, secret(t, "short"))
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidKey))

	require.NoError(t, k.Put(Entry{Name: "build-box.local", Kind: " NaCl-Box "}, seed))
	entry, err := k.Get("build-box.local")
	require.NoError(t, err)
	assert.Equal(t, constants.KindNaClBox, entry.Kind)
}

func TestOpenReturnsGuardedSeed(t *testing.T) {
	k := New()
	defer k.Close()
	raw := bytes.Repeat([]byte{7}, 32)
	require.NoError(t, k.Put(Entry{Name: "s", Kind: constants.KindSecretBox}, secret(t, string(raw))))

	seed, err := k.Open("s", securedata.NoAccess)
	require.NoError(t, err)
	defer seed.Release()

	assert.Equal(t, securedata.NoAccess, seed.Protection())
	eq, err := seed.Equal(raw)
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestOpenKeyRebuildsPublicHalf(t *testing.T) {
	k := populated(t)
	for _, entry := range k.List() {
		kp, err := k.OpenKey(entry.Name, securedata.NoAccess)
		require.NoError(t, err, entry.Name)
		assert.Equal(t, entry.Kind, kp.Kind())
		if entry.PublicKey != "" {
			pub, err := entry.PublicBytes()
			require.NoError(t, err)
			assert.Equal(t, pub, kp.PublicBytes())
		}
		require.NoError(t, kp.Release())
	}
}

func TestSaveLoadPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.age")
	k := populated(t)
	recipient, identity := passphrase(t, "correct horse")

	require.NoError(t, k.Save(path, recipient))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte(armor.Header)))
	assert.NotContains(t, string(raw), "key-ssh-ed25519")

	loaded, err := Load(path, identity)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, k.List(), loaded.List())

	for _, entry := range k.List() {
		a, err := k.Open(entry.Name, securedata.ReadOnly)
		require.NoError(t, err)
		b, err := loaded.Open(entry.Name, securedata.ReadOnly)
		require.NoError(t, err)
		require.NoError(t, a.Read(func(d []byte) error {
			eq, err := b.Equal(d)
			assert.True(t, eq, entry.Name)
			return err
		}))
		require.NoError(t, a.Release())
		require.NoError(t, b.Release())
	}

	_, wrong := passphrase(t, "battery staple")
	_, err = Load(path, wrong)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeAuthFailed))
}

func TestSaveLoadRecipients(t *testing.T) {
	dir := t.TempDir()
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	recipientsFile := filepath.Join(dir, "recipients.txt")
	identityFile := filepath.Join(dir, "identity.txt")
	require.NoError(t, os.WriteFile(recipientsFile, []byte("# workstation\n"+identity.Recipient().String()+"\n"), 0600))
	require.NoError(t, os.WriteFile(identityFile, []byte(identity.String()+"\n"), 0600))

	recipients, err := RecipientsFromFile(recipientsFile)
	require.NoError(t, err)
	identities, err := IdentitiesFromFile(identityFile)
	require.NoError(t, err)

	path := filepath.Join(dir, "keyring.age")
	k := populated(t)
	require.NoError(t, k.Save(path, recipients...))

	loaded, err := Load(path, identities...)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, 3, loaded.Len())

	_, err = RecipientsFromFile(identityFile)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidInput))
	_, err = IdentitiesFromFile(filepath.Join(dir, "missing"))
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeFileSystem))
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	k, err := Load(filepath.Join(t.TempDir(), "none.age"))
	require.NoError(t, err)
	assert.Equal(t, 0, k.Len())
}

func TestSaveRefusesWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.age")
	require.NoError(t, os.WriteFile(path+".lock", nil, 0600))

	recipient, _ := passphrase(t, "pw")
	err := populated(t).Save(path, recipient)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeKeyringLocked))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveValidatesArguments(t *testing.T) {
	k := New()
	recipient, _ := passphrase(t, "pw")

	assert.True(t, kerrors.IsCode(k.Save("", recipient), kerrors.ErrCodeInvalidInput))
	assert.True(t, kerrors.IsCode(k.Save(filepath.Join(t.TempDir(), "k.age")), kerrors.ErrCodeInvalidInput))
}

func TestLoadRejectsCorruptPlaintext(t *testing.T) {
	recipient, identity := passphrase(t, "pw")

	for name, payload := range map[string]string{
		"not json":      "{{{",
		"wrong version": `{"version":9,"keys":[]}`,
		"short seed":    `{"version":1,"keys":[{"name":"a","kind":"secretbox","seed":"AAAA"}]}`,
		"bad kind":      `{"version":1,"keys":[{"name":"a","kind":"rsa","seed":"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "keyring.age")
			f, err := os.Create(path)
			require.NoError(t, err)
			require.NoError(t, encryptTo(f, []byte(payload), []age.Recipient{recipient}))
			require.NoError(t, f.Close())

			_, err = Load(path, identity)
			assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeKeyringCorrupt), "%v", err)
		})
	}
}

func TestLoadRejectsGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.age")
	require.NoError(t, os.WriteFile(path, []byte("not an age file"), 0600))

	_, identity := passphrase(t, "pw")
	_, err := Load(path, identity)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeKeyringLoad))
}

func TestPassphraseValidation(t *testing.T) {
	_, err := PassphraseRecipient(secret(t, "pw"), 0)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidInput))
	_, err = PassphraseIdentity(secret(t, ""), testWorkFactor)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidInput))
	_, err = PassphraseRecipient(nil, testWorkFactor)
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidInput))
}
