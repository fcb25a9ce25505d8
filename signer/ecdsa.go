package signer

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrInvalidSignature is returned when a signature fails to parse or
// verify.
var ErrInvalidSignature = errors.New("signer: invalid signature")

// ECDSABackend signs raw bytes with a secp256k1 private key
// (caller-supplied raw bytes with no chain-specific transaction framing).
// It is not a registry default: a Registry resolves only the chain tags
// registered in it, and the enclave-demo registers this backend under
// "ecdsa".
type ECDSABackend struct{}

// NewECDSABackend returns the default raw-secp256k1 signing backend.
func NewECDSABackend() *ECDSABackend {
	return &ECDSABackend{}
}

func (b *ECDSABackend) Sign(txBytes, privKey []byte) ([]byte, error) {
	priv := secp256k1.PrivKeyFromBytes(privKey)
	hash := sha256.Sum256(txBytes)

	r, s, err := ecdsa.Sign(rand.Reader, priv.ToECDSA(), hash[:])
	if err != nil {
		return nil, err
	}
	return serializeSignature(r, s), nil
}

func serializeSignature(r, s *big.Int) []byte {
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	sig := make([]byte, 64)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	return sig
}
