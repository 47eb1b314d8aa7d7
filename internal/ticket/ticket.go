// Package ticket implements the session ticket contract between the
// (out-of-scope) authentication stream A and the game transport G: A mints
// a short-lived signed ticket naming a character/account/session-key
// tuple, and G verifies it during handshake (§4.5 INITIAL -> HANDSHAKE).
package ticket

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid covers any ticket that fails signature, expiry, or shape
// checks. The transport must treat this identically to SessionNotFound.
var ErrInvalid = errors.New("ticket: invalid or expired")

// Claims is the JWT payload minted by A and consumed by C4/C8 on handshake.
type Claims struct {
	CharacterID uint32 `json:"cid"`
	AccountID   uint32 `json:"aid"`
	SessionKey  string `json:"key"` // base64 of the raw session symmetric key
	jwt.RegisteredClaims
}

// Minter mints tickets; owned by A, exposed here only so tests and the
// admin tooling can produce fixtures without a live A instance.
type Minter struct {
	secret []byte
	ttl    time.Duration
}

// NewMinter builds a minter using an HMAC secret shared with the
// verifier side. In production the secret is provisioned out of band
// between A and G.
func NewMinter(secret []byte, ttl time.Duration) *Minter {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &Minter{secret: secret, ttl: ttl}
}

// Mint produces a signed ticket string for the given character/account,
// embedding the session key that C3 will use once the handshake completes.
func (m *Minter) Mint(characterID, accountID uint32, sessionKey []byte) (string, error) {
	claims := &Claims{
		CharacterID: characterID,
		AccountID:   accountID,
		SessionKey:  base64.StdEncoding.EncodeToString(sessionKey),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "auth",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("ticket: sign: %w", err)
	}
	return signed, nil
}

// Verifier checks tickets minted by A. Held by C8 (session index), whose
// VerifyTicket C7 calls when a HANDSHAKE frame arrives; the ticket is
// checked off its own claims, not looked up on the auth.tickets stream.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier sharing the minter's secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify parses and validates a ticket string, returning its claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("ticket: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.CharacterID == 0 {
		return nil, ErrInvalid
	}
	return claims, nil
}

// SessionKeyBytes decodes the embedded session key.
func (c *Claims) SessionKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("ticket: decode session key: %w", err)
	}
	return key, nil
}
