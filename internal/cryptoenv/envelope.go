// Package cryptoenv holds the long-lived signing key material and the
// per-session symmetric encryption used to keep session-key material
// confidential once a session reaches STATE_CONNECTED.
package cryptoenv

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrCrypto is the sentinel §7 CryptoError: any decrypt whose integrity
// check fails yields this and the caller must drop the datagram without
// mutating session state.
var ErrCrypto = errors.New("cryptoenv: integrity check failed")

// SessionKeySize is the width of a session symmetric key (secretbox key).
const SessionKeySize = 32

// nonceSize is the secretbox nonce width.
const nonceSize = 24

// Envelope holds the server's long-lived signing keypair. One Envelope is
// constructed at startup and passed by reference; it carries no per-session
// state (session keys are threaded through Encrypt/Decrypt explicitly).
type Envelope struct {
	signingKey *rsa.PrivateKey
	bits       int
}

// New generates a fresh signing keypair of the given bit size (1024 or
// 2048, per §4.3). Larger or smaller sizes are accepted but discouraged.
func New(bits int) (*Envelope, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptoenv: generate signing key: %w", err)
	}
	return &Envelope{signingKey: key, bits: bits}, nil
}

// PublicKeyData returns the server's public modulus signed with its own
// long-lived key, in the shape a client would consume during handshake:
// a little-endian uint32 modulus length, the modulus bytes, then the
// PKCS#1v15 signature over their SHA-256 hash.
func (e *Envelope) PublicKeyData() ([]byte, error) {
	modulus := e.signingKey.PublicKey.N.Bytes()
	hash := sha256.Sum256(modulus)
	sig, err := rsa.SignPKCS1v15(rand.Reader, e.signingKey, crypto.SHA256, hash[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoenv: sign public key: %w", err)
	}
	out := make([]byte, 0, len(modulus)+len(sig)+4)
	out = appendUint32(out, uint32(len(modulus)))
	out = append(out, modulus...)
	out = append(out, sig...)
	return out, nil
}

func appendUint32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// VerifySigned checks a signature produced by a keypair of the stated bit
// size against message, using the server's own public key material as the
// trust anchor (single-server deployment; see §4.3).
func (e *Envelope) VerifySigned(message, signature []byte, bits int) bool {
	if bits != e.bits {
		return false
	}
	hash := sha256.Sum256(message)
	err := rsa.VerifyPKCS1v15(&e.signingKey.PublicKey, crypto.SHA256, hash[:], signature)
	return err == nil
}

// NewSessionKey draws a fresh random session symmetric key.
func NewSessionKey() ([SessionKeySize]byte, error) {
	var key [SessionKeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("cryptoenv: generate session key: %w", err)
	}
	return key, nil
}

// EncryptSession seals plaintext under sessionKey, producing
// nonce||ciphertext. Called on every outbound non-handshake datagram once
// the session has entered STATE_CONNECTED.
func EncryptSession(sessionKey [SessionKeySize]byte, plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("cryptoenv: generate nonce: %w", err)
	}
	out := make([]byte, 0, nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plaintext, &nonce, &sessionKey)
	return out, nil
}

// DecryptSession opens a payload produced by EncryptSession. Any integrity
// failure returns ErrCrypto; the caller must drop the datagram without
// mutating session state (§4.3 failure contract).
func DecryptSession(sessionKey [SessionKeySize]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, ErrCrypto
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &sessionKey)
	if !ok {
		return nil, ErrCrypto
	}
	return plaintext, nil
}
