package keygen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateEd25519KeyPair(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateEd25519KeyPair()
	require.NoError(t, err)

	signer, err := ssh.ParsePrivateKey(keyPair.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())

	pub, _, _, _, err := ssh.ParseAuthorizedKey(keyPair.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey().Marshal(), pub.Marshal())
}

func TestGenerateRSAKeyPair(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	signer, err := ssh.ParsePrivateKey(keyPair.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoRSA, signer.PublicKey().Type())
	assert.True(t, strings.HasPrefix(string(keyPair.PublicKey), "ssh-rsa "))
}

func TestGenerateRSAKeyPair_InvalidBits(t *testing.T) {
	t.Parallel()
	_, err := GenerateRSAKeyPair(0)
	assert.Error(t, err)
}

func TestKeyPairWrite(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateEd25519KeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "chaos_ed25519")
	require.NoError(t, keyPair.Write(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pub, err := os.ReadFile(path + ".pub")
	require.NoError(t, err)
	assert.Equal(t, keyPair.PublicKey, pub)

	assert.Error(t, keyPair.Write(path), "existing keys are not overwritten")
}
