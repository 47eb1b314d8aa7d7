package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicket_MintAndVerify(t *testing.T) {
	secret := []byte("shared-auth-secret-32-bytes-long")
	minter := NewMinter(secret, time.Minute)
	verifier := NewVerifier(secret)

	sessionKey := []byte("0123456789ABCDEF0123456789ABCDE")
	raw, err := minter.Mint(42, 7, sessionKey)
	require.NoError(t, err)

	claims, err := verifier.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), claims.CharacterID)
	assert.Equal(t, uint32(7), claims.AccountID)

	gotKey, err := claims.SessionKeyBytes()
	require.NoError(t, err)
	assert.Equal(t, sessionKey, gotKey)
}

func TestTicket_ExpiredRejected(t *testing.T) {
	secret := []byte("shared-auth-secret-32-bytes-long")
	minter := NewMinter(secret, -time.Second) // already expired
	verifier := NewVerifier(secret)

	raw, err := minter.Mint(1, 1, []byte("key"))
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTicket_WrongSecretRejected(t *testing.T) {
	minter := NewMinter([]byte("secret-a-secret-a-secret-a-secre"), time.Minute)
	verifier := NewVerifier([]byte("secret-b-secret-b-secret-b-secre"))

	raw, err := minter.Mint(1, 1, []byte("key"))
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalid)
}
