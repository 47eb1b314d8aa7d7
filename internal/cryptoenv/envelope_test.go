package cryptoenv

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signForTest signs message with env's private key the same way
// VerifySigned expects, for exercising the verification path in isolation.
func signForTest(env *Envelope, message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	return rsa.SignPKCS1v15(rand.Reader, env.signingKey, crypto.SHA256, hash[:])
}

func TestEnvelope_PublicKeyData(t *testing.T) {
	env, err := New(1024)
	require.NoError(t, err)

	blob, err := env.PublicKeyData()
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
}

func TestEnvelope_VerifySigned(t *testing.T) {
	env, err := New(1024)
	require.NoError(t, err)

	msg := []byte("handshake-nonce")
	sig, err := signForTest(env, msg)
	require.NoError(t, err)

	assert.True(t, env.VerifySigned(msg, sig, 1024))
	assert.False(t, env.VerifySigned([]byte("tampered"), sig, 1024))
	assert.False(t, env.VerifySigned(msg, sig, 2048))
}

func TestSessionEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := NewSessionKey()
	require.NoError(t, err)

	plaintext := []byte("PLAYER_COMMAND payload bytes")
	ciphertext, err := EncryptSession(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := DecryptSession(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestSessionDecrypt_IntegrityFailure(t *testing.T) {
	key, err := NewSessionKey()
	require.NoError(t, err)

	ciphertext, err := EncryptSession(key, []byte("hello"))
	require.NoError(t, err)

	// Flip a byte in the ciphertext body — must fail closed, not panic.
	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err = DecryptSession(key, ciphertext)
	assert.ErrorIs(t, err, ErrCrypto)
}

func TestSessionDecrypt_WrongKey(t *testing.T) {
	keyA, err := NewSessionKey()
	require.NoError(t, err)
	keyB, err := NewSessionKey()
	require.NoError(t, err)

	ciphertext, err := EncryptSession(keyA, []byte("secret"))
	require.NoError(t, err)

	_, err = DecryptSession(keyB, ciphertext)
	assert.ErrorIs(t, err, ErrCrypto)
}
