package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKEKBase64(t *testing.T) string {
	t.Helper()
	raw := make([]byte, kekSize)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestLoadKEKRejectsWrongSize(t *testing.T) {
	_, err := LoadKEK(base64.StdEncoding.EncodeToString([]byte("too-short")))
	assert.Error(t, err)
}

func TestLoadKEKRejectsEmpty(t *testing.T) {
	_, err := LoadKEK("")
	assert.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	kek, err := LoadKEK(randomKEKBase64(t))
	require.NoError(t, err)

	env, err := kek.encryptValue("sk-super-secret")
	require.NoError(t, err)
	assert.NotEmpty(t, env.ciphertext)
	assert.NotEmpty(t, env.wrappedDEK)

	plaintext, err := kek.decryptValue(env)
	require.NoError(t, err)
	assert.Equal(t, "sk-super-secret", plaintext)
}

func TestEnvelopeWrongKEKFails(t *testing.T) {
	kek1, err := LoadKEK(randomKEKBase64(t))
	require.NoError(t, err)
	kek2, err := LoadKEK(randomKEKBase64(t))
	require.NoError(t, err)

	env, err := kek1.encryptValue("top-secret")
	require.NoError(t, err)

	_, err = kek2.decryptValue(env)
	assert.Error(t, err)
}

func TestEnvelopeUniqueNoncesPerEncryption(t *testing.T) {
	kek, err := LoadKEK(randomKEKBase64(t))
	require.NoError(t, err)

	env1, err := kek.encryptValue("same-value")
	require.NoError(t, err)
	env2, err := kek.encryptValue("same-value")
	require.NoError(t, err)

	assert.NotEqual(t, env1.ciphertext, env2.ciphertext)
	assert.NotEqual(t, env1.wrappedDEK, env2.wrappedDEK)
}
