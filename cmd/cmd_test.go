package cmd

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krypton.module/internal/config"
	"krypton.module/internal/constants"
	kerrors "krypton.module/internal/errors"
	"krypton.module/internal/keyring"
	"krypton.module/internal/keys"
	"krypton.module/internal/pairing"
	"krypton.module/internal/securedata"
)

// useRecipients points the global config at a fresh keyring encrypted to a
// new X25519 identity.
func useRecipients(t *testing.T) {
	t.Helper()
	saved := config.Cfg
	t.Cleanup(func() { config.Cfg = saved })

	dir := t.TempDir()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	recipients := filepath.Join(dir, "recipients.txt")
	identity := filepath.Join(dir, "identity.txt")
	require.NoError(t, os.WriteFile(recipients, []byte(id.Recipient().String()+"\n"), 0600))
	require.NoError(t, os.WriteFile(identity, []byte(id.String()+"\n"), 0600))

	config.Cfg = config.Config{
		KeyringFile:       filepath.Join(dir, "keyring.age"),
		Encryption:        constants.EncryptionRecipients,
		RecipientsFile:    recipients,
		IdentityFile:      identity,
		DefaultProtection: constants.ProtectionReadOnly,
	}
}

func TestSelfChecksPass(t *testing.T) {
	for _, check := range selfChecks {
		t.Run(check.name, func(t *testing.T) {
			require.NoError(t, check.run())
		})
	}
}

func TestSessionRoundTrip(t *testing.T) {
	useRecipients(t)
	ctx := context.Background()

	s, err := openSession(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.ring.Len())

	kp, err := keys.Generate(constants.KindSSHEd25519, rand.Reader, resting())
	require.NoError(t, err)
	defer kp.Release()
	require.NoError(t, s.ring.PutKey("laptop", "me@laptop", kp))
	require.NoError(t, s.save())
	s.close()

	s, err = openSession(ctx)
	require.NoError(t, err)
	defer s.close()

	entry, err := s.ring.Get("laptop")
	require.NoError(t, err)
	assert.Equal(t, "me@laptop", entry.Comment)
	assert.Equal(t, kp.(*keys.SSHKey).Fingerprint(), fingerprint(entry))
}

func TestOpenSessionNeedsIdentityForExistingKeyring(t *testing.T) {
	useRecipients(t)

	s, _, err := newSession(context.Background(), false, false)
	require.NoError(t, err)
	require.NoError(t, s.save())
	s.close()

	config.Cfg.IdentityFile = ""
	_, err = openSession(context.Background())
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeConfigMissing))
}

func TestPeerKey(t *testing.T) {
	var raw [32]byte
	raw[0] = 7
	encoded := pairing.ToBase64(raw[:])

	peer, err := peerKey("", keyring.Entry{Name: "paired", PeerKey: encoded})
	require.NoError(t, err)
	assert.Equal(t, raw, *peer)

	var other [32]byte
	other[0] = 9
	peer, err = peerKey(pairing.ToBase64(other[:]), keyring.Entry{Name: "paired", PeerKey: encoded})
	require.NoError(t, err)
	assert.Equal(t, other, *peer, "flag wins over the stored peer")

	_, err = peerKey("", keyring.Entry{Name: "lonely"})
	assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidInput))

	_, err = peerKey(pairing.ToBase64([]byte("short")), keyring.Entry{Name: "x"})
	assert.Error(t, err)
}

func TestFingerprintOnlyForSSH(t *testing.T) {
	assert.Empty(t, fingerprint(keyring.Entry{Kind: constants.KindNaClBox, PublicKey: "AAAA"}))
	assert.Empty(t, fingerprint(keyring.Entry{Kind: constants.KindSSHEd25519, PublicKey: "AAAA"}))
}

func TestParseResting(t *testing.T) {
	for in, want := range map[string]string{
		"readonly":  constants.ProtectionReadOnly,
		"RO":        constants.ProtectionReadOnly,
		"no-access": constants.ProtectionNoAccess,
		"none":      constants.ProtectionNoAccess,
	} {
		got, err := parseResting(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"readwrite", "rw", "Read_Write", "bogus", ""} {
		_, err := parseResting(in)
		assert.True(t, kerrors.IsCode(err, kerrors.ErrCodeInvalidInput), in)
	}
}

func TestRestingNeverWritable(t *testing.T) {
	saved := config.Cfg.DefaultProtection
	t.Cleanup(func() { config.Cfg.DefaultProtection = saved })

	config.Cfg.DefaultProtection = "readwrite"
	assert.Equal(t, securedata.NoAccess, resting())
	config.Cfg.DefaultProtection = constants.ProtectionReadOnly
	assert.Equal(t, securedata.ReadOnly, resting())
}

func TestWriteOutputReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sealed.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0600))

	require.NoError(t, writeOutput(path, []byte("new\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))

	leftovers, err := filepath.Glob(filepath.Join(dir, ".krypton-out-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriteGuarded(t *testing.T) {
	b, err := securedata.NewReadOnly(5, func(d []byte) error {
		copy(d, "hello")
		return nil
	})
	require.NoError(t, err)
	defer b.Release()

	path := filepath.Join(t.TempDir(), "out")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, writeGuarded(f, b))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
