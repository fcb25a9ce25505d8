package handshake

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// AttestationVerifier checks a compact JWT asserting provenance of a
// code_hash before the handshake binds that hash into the transcript.
// This is additive to the core protocol: it proves who asserted the hash,
// not that the hash is correct, and is only consulted when
// Config.RequireCodeAttestation is set.
type AttestationVerifier interface {
	Verify(token string, codeHash string) error
}

// JWTAttestationVerifier verifies an HS256/RS256 JWT whose "code_hash"
// claim must equal the HELLO's code_hash.
type JWTAttestationVerifier struct {
	KeyFunc jwt.Keyfunc
}

// NewJWTAttestationVerifier builds a verifier using keyFunc to resolve the
// signing key from the token header, mirroring jwt.Parse's usual contract.
func NewJWTAttestationVerifier(keyFunc jwt.Keyfunc) *JWTAttestationVerifier {
	return &JWTAttestationVerifier{KeyFunc: keyFunc}
}

func (v *JWTAttestationVerifier) Verify(token string, codeHash string) error {
	if token == "" {
		return errors.New("handshake: missing code attestation token")
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.KeyFunc)
	if err != nil || !parsed.Valid {
		return errors.New("handshake: invalid code attestation token")
	}
	claimedHash, _ := claims["code_hash"].(string)
	if claimedHash != codeHash {
		return errors.New("handshake: code attestation does not match code_hash")
	}
	return nil
}
