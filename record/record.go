// Package record implements the wire-level seal/open operations: turning a
// plaintext body into an authenticated, replay-protected ciphertext record
// and back. It is the only package that touches a Session's AEAD keys
// directly; everything above it (the enclave pipeline) only ever calls
// Seal and Open.
package record

import (
	"encoding/json"
	"errors"

	"github.com/sage-x-project/soft-enclave/session"
)

// Errors mirror the taxonomy in the error-handling design: callers branch
// on these, never on anything primitives.ErrCryptoFailure might wrap.
var (
	ErrContextMismatch   = errors.New("record: aad tag mismatch")
	ErrTooLarge          = errors.New("record: ciphertext exceeds size cap")
	ErrReplay            = errors.New("record: nonce already seen")
	ErrCryptoFailure     = errors.New("record: crypto failure")
	ErrSequenceViolation = errors.New("record: sequence violation")
)

// Record is the wire value produced by Seal and consumed by Open.
type Record struct {
	Seq        uint64
	Nonce      []byte
	Ciphertext []byte
	AADTag     string
}

// Seal serializes body to its canonical JSON form, derives the next
// deterministic nonce from the session's send counter, and produces an
// authenticated Record under aadTag.
func Seal(s *session.Session, body any, aadTag string) (Record, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return Record{}, err
	}

	seq, nonce, err := s.NextSendNonce()
	if err != nil {
		return Record{}, err
	}

	ct, err := s.SealAEAD().Seal(nonce, bodyBytes, []byte(aadTag))
	if err != nil {
		return Record{}, ErrCryptoFailure
	}

	return Record{
		Seq:        seq,
		Nonce:      nonce,
		Ciphertext: ct,
		AADTag:     aadTag,
	}, nil
}

// Open validates and decrypts r, enforcing, in order: ciphertext size cap,
// AAD match, replay-cache membership, AEAD authentication, and sequence
// acceptance. Only on full success is the record's nonce and sequence
// committed to the session. out receives the decoded body via
// encoding/json.
//
// The order is load-bearing: size is checked before any other work to cap
// amplification, AAD/replay are checked before decryption so a duplicate
// or mismatched record never reaches the AEAD, and sequence is checked
// only after authentication so an attacker cannot use sequence state as a
// decryption oracle.
func Open(s *session.Session, r Record, expectedAADTag string, out any) (seq uint64, err error) {
	cfg := s.Config()
	if len(r.Ciphertext) > cfg.MaxCiphertext {
		return 0, ErrTooLarge
	}
	if r.AADTag != expectedAADTag {
		return 0, ErrContextMismatch
	}

	expectedNonce := s.NonceForRecv(r.Seq)
	if len(r.Nonce) != 0 && string(r.Nonce) != string(expectedNonce) {
		// A record whose carried nonce doesn't match the one derived from
		// its own seq cannot possibly decrypt; report it as the AEAD failure
		// it would be, without spending an AEAD call on it.
		return 0, ErrCryptoFailure
	}
	if s.CheckReplay(expectedNonce) {
		return 0, ErrReplay
	}

	bodyBytes, err := s.OpenAEAD().Open(expectedNonce, r.Ciphertext, []byte(expectedAADTag))
	if err != nil {
		return 0, ErrCryptoFailure
	}

	if len(bodyBytes) > cfg.MaxPlaintext {
		return 0, ErrTooLarge
	}

	if err := s.CheckSequence(r.Seq); err != nil {
		return 0, ErrSequenceViolation
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return 0, ErrCryptoFailure
		}
	}

	s.RecordAccepted(expectedNonce, r.Seq)
	return r.Seq, nil
}
