// Package primitives wraps the raw cryptographic operations the channel is
// built from: P-256 ECDH, HKDF-SHA-256, AES-256-GCM, and the small set of
// helpers (secure random, constant-time compare, zeroize) every layer above
// needs. Nothing here knows about sessions, handshakes, or records.
package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrCryptoFailure is the single opaque error every primitive returns on
// failure. Callers must not branch on anything more specific than "failed":
// distinguishing bad-point-vs-bad-tag-vs-short-output creates a timing or
// decision oracle for an attacker probing the channel.
var ErrCryptoFailure = errors.New("primitives: crypto failure")

// Curve is the ECDH group used throughout the protocol.
func Curve() ecdh.Curve { return ecdh.P256() }

// GenerateKeyPair creates a fresh ephemeral ECDH keypair.
func GenerateKeyPair() (*ecdh.PrivateKey, error) {
	priv, err := Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	return priv, nil
}

// ExportRaw returns the uncompressed SEC1 point encoding of a public key.
func ExportRaw(pub *ecdh.PublicKey) []byte {
	return pub.Bytes()
}

// ImportRaw parses an uncompressed SEC1 point into a public key.
func ImportRaw(raw []byte) (*ecdh.PublicKey, error) {
	pub, err := Curve().NewPublicKey(raw)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	return pub, nil
}

// ECDH computes the shared secret between a local private key and a peer's
// public key. The result is the raw X-coordinate shared secret; it is never
// used directly as key material, only as HKDF input keying material.
func ECDH(priv *ecdh.PrivateKey, peerPub *ecdh.PublicKey) ([]byte, error) {
	secret, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	return secret, nil
}

// HKDFExpand runs HKDF-Extract(salt, ikm) then HKDF-Expand(prk, info, n)
// over SHA-256, returning n bytes of keying material.
func HKDFExpand(ikm, salt, info []byte, n int) ([]byte, error) {
	reader := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, ErrCryptoFailure
	}
	return out, nil
}

// SHA256 hashes data.
func SHA256(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// SecureRandom returns n cryptographically random bytes.
func SecureRandom(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, ErrCryptoFailure
	}
	return buf, nil
}

// ConstantTimeEqual compares two byte slices in constant time.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites buf with zeros. Best-effort: Go's garbage collector may
// retain earlier copies of the slice's contents made before this call, so
// callers must avoid copying sensitive buffers more than necessary.
func Zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// AEAD is a ready-to-use AES-256-GCM instance bound to one key.
type AEAD struct {
	gcm cipher.AEAD
}

// NewAEAD builds an AES-256-GCM instance from a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != 32 {
		return nil, ErrCryptoFailure
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	return &AEAD{gcm: gcm}, nil
}

// Seal encrypts plaintext under nonce (must be exactly NonceSize) and aad,
// returning ciphertext||tag.
func (a *AEAD) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != a.gcm.NonceSize() {
		return nil, ErrCryptoFailure
	}
	return a.gcm.Seal(nil, nonce, plaintext, aad), nil
}

// Open authenticates and decrypts ciphertext||tag under nonce and aad.
func (a *AEAD) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != a.gcm.NonceSize() {
		return nil, ErrCryptoFailure
	}
	pt, err := a.gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	return pt, nil
}

// NonceSize is the deterministic AES-GCM nonce length used throughout.
const NonceSize = 12

// KeySize is the AEAD key length (AES-256).
const KeySize = 32
