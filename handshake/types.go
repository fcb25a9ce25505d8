// Package handshake implements the one-round, context-bound ECDH handshake
// that produces a session.Session on each end. The host is the initiator;
// the enclave is the responder. Both sides run the same salt/key
// derivation independently — no handshake confirmation message exists, so
// a mismatched code_hash surfaces later, indistinguishably, as a
// CryptoFailure on the first opened record.
package handshake

import (
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/soft-enclave/session"
)

// SaltMode selects how the HKDF salt binds the handshake transcript.
type SaltMode int

const (
	// SaltOrigin uses only the agreed-upon origin strings and code hash,
	// the "legacy" form named as an Open Question in the design notes.
	SaltOrigin SaltMode = iota
	// SaltHardened additionally binds both nonces and both raw public
	// keys into the salt, giving full transcript binding. This is the
	// default.
	SaltHardened
)

// Config governs handshake behavior.
type Config struct {
	SaltMode SaltMode `yaml:"salt_mode" json:"salt_mode"`
	// PerDirectionKeys derives distinct host→enclave / enclave→host keys
	// under distinct HKDF info labels (the stricter of the two documented
	// variants) rather than one shared key relied on by directional
	// convention. Default true.
	PerDirectionKeys bool `yaml:"per_direction_keys" json:"per_direction_keys"`
	// Timeout is the configured handshake deadline. Neither Initiator nor
	// Responder reads it; the handshake itself enforces no deadline.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// RequireCodeAttestation, if set, rejects any HELLO whose
	// CodeAttestation token does not verify with the Responder's
	// AttestationVerifier (see Responder.WithAttestationVerifier); with no
	// verifier attached, every HELLO is rejected.
	RequireCodeAttestation bool `yaml:"require_code_attestation" json:"require_code_attestation"`
}

// DefaultConfig returns the hardened, per-direction-key default.
func DefaultConfig() Config {
	return Config{
		SaltMode:         SaltHardened,
		PerDirectionKeys: true,
		Timeout:          10 * time.Second,
	}
}

// Context is the ephemeral HandshakeContext both sides build before key
// derivation (spec §3). It is never retained once the Session exists.
type Context struct {
	HostOrigin    string
	EnclaveOrigin string
	CodeHash      string
	NonceHost     []byte // 16 bytes
	NonceEnclave  []byte // 16 bytes
	HostPubRaw    []byte
	EnclavePubRaw []byte
}

// Hello is the initiator's first message.
type Hello struct {
	ID   uuid.UUID `json:"id"`
	HostPub   []byte `json:"host_pub"`
	NonceHost []byte `json:"nonce_host"`
	// CodeHash identifies the enclave bundle the host expects to be
	// talking to; bound into the salt.
	CodeHash string `json:"code_hash"`
	// HostOrigin/EnclaveOrigin are the origin strings both sides must
	// agree on; carried so the responder can check them against the
	// origins it was built with. A mismatch makes Accept fail with
	// ErrMalformedHello and is never reported back to the peer.
	HostOrigin    string `json:"host_origin"`
	EnclaveOrigin string `json:"enclave_origin"`
	// CodeAttestation is an optional compact JWT asserting provenance of
	// CodeHash. Supplemental to the core spec; only checked when
	// Config.RequireCodeAttestation is set.
	CodeAttestation string `json:"code_attestation,omitempty"`
}

// HelloAck is the responder's reply.
type HelloAck struct {
	ID           uuid.UUID `json:"id"`
	EnclavePub   []byte    `json:"enclave_pub"`
	NonceEnclave []byte    `json:"nonce_enclave"`
}

// Result is what a completed handshake hands back: the derived Session and
// the context it was bound to (kept briefly for logging/diagnostics, never
// for re-derivation).
type Result struct {
	Session *session.Session
	Context Context
}

const (
	nonceSize = 16
	idSize    = 16
)
