package handshake

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sage-x-project/soft-enclave/audit"
	"github.com/sage-x-project/soft-enclave/internal/logger"
	"github.com/sage-x-project/soft-enclave/primitives"
	"github.com/sage-x-project/soft-enclave/session"
)

// Responder runs the enclave side of the handshake. It is stateless across
// calls to Accept except for the singleflight group, which collapses a
// retransmitted HELLO for an id that's already mid-derivation into the
// same in-flight computation rather than racing a second one.
type Responder struct {
	cfg           Config
	hostOrigin    string
	enclaveOrigin string
	sessionCfg    session.Config
	verifier      AttestationVerifier
	log           logger.Logger
	audit         audit.Sink

	inflight singleflight.Group
}

// NewResponder builds a Responder bound to the expected origins. A
// mismatched origin in an incoming HELLO is never distinguishable from any
// other bad handshake input — both simply fail to produce a usable
// Session.
func NewResponder(cfg Config, hostOrigin, enclaveOrigin string, sessionCfg session.Config) *Responder {
	return &Responder{
		cfg:           cfg,
		hostOrigin:    hostOrigin,
		enclaveOrigin: enclaveOrigin,
		sessionCfg:    sessionCfg,
		log:           logger.Nop(),
		audit:         audit.NullSink{},
	}
}

// WithAttestationVerifier supplies the verifier for the optional
// code-attestation check. The check runs only when
// Config.RequireCodeAttestation is set; then any HELLO must carry a
// CodeAttestation token verifiable by v, or accept fails with
// ErrMalformedHello.
func (r *Responder) WithAttestationVerifier(v AttestationVerifier) *Responder {
	r.verifier = v
	return r
}

// WithLogger attaches a logger for handshake lifecycle events. Without one,
// Responder logs nothing.
func (r *Responder) WithLogger(l logger.Logger) *Responder {
	r.log = l
	return r
}

// WithAuditSink attaches a durable audit trail for handshake completions
// and rejections. Without one, events are discarded.
func (r *Responder) WithAuditSink(s audit.Sink) *Responder {
	r.audit = s
	return r
}

func (r *Responder) recordAudit(kind audit.EventKind, sessionID, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = r.audit.Record(ctx, audit.Event{
		Kind:      kind,
		SessionID: sessionID,
		Detail:    detail,
		At:        time.Now(),
	})
}

type acceptResult struct {
	ack HelloAck
	res *Result
}

// Accept validates an incoming HELLO, generates the responder's ephemeral
// keypair, derives the Session, and returns the HELLO_ACK to send back.
func (r *Responder) Accept(hello Hello) (HelloAck, *Result, error) {
	v, err, _ := r.inflight.Do(hello.ID.String(), func() (interface{}, error) {
		return r.accept(hello)
	})
	if err != nil {
		return HelloAck{}, nil, err
	}
	out := v.(acceptResult)
	return out.ack, out.res, nil
}

func (r *Responder) accept(hello Hello) (acceptResult, error) {
	if len(hello.HostPub) == 0 || len(hello.NonceHost) != nonceSize {
		r.log.Warn("handshake rejected: malformed hello", logger.String("session_id", hello.ID.String()))
		r.recordAudit(audit.EventHandshakeRejected, hello.ID.String(), "malformed_hello")
		return acceptResult{}, ErrMalformedHello
	}
	if hello.HostOrigin != r.hostOrigin || hello.EnclaveOrigin != r.enclaveOrigin {
		r.log.Warn("handshake rejected: origin mismatch", logger.String("session_id", hello.ID.String()))
		r.recordAudit(audit.EventHandshakeRejected, hello.ID.String(), "origin_mismatch")
		return acceptResult{}, ErrMalformedHello
	}
	if r.cfg.RequireCodeAttestation {
		if r.verifier == nil {
			r.log.Warn("handshake rejected: no attestation verifier configured", logger.String("session_id", hello.ID.String()))
			r.recordAudit(audit.EventHandshakeRejected, hello.ID.String(), "no_attestation_verifier")
			return acceptResult{}, ErrMalformedHello
		}
		if err := r.verifier.Verify(hello.CodeAttestation, hello.CodeHash); err != nil {
			r.log.Warn("handshake rejected: attestation failed", logger.String("session_id", hello.ID.String()))
			r.recordAudit(audit.EventHandshakeRejected, hello.ID.String(), "attestation_failed")
			return acceptResult{}, ErrMalformedHello
		}
	}

	hostPub, err := primitives.ImportRaw(hello.HostPub)
	if err != nil {
		r.log.Warn("handshake rejected: malformed host public key", logger.String("session_id", hello.ID.String()))
		r.recordAudit(audit.EventHandshakeRejected, hello.ID.String(), "malformed_host_pub")
		return acceptResult{}, ErrMalformedHello
	}

	priv, err := primitives.GenerateKeyPair()
	if err != nil {
		return acceptResult{}, err
	}
	nonceEnclave, err := primitives.SecureRandom(nonceSize)
	if err != nil {
		return acceptResult{}, err
	}
	enclavePubRaw := primitives.ExportRaw(priv.PublicKey())

	ctx := Context{
		HostOrigin:    hello.HostOrigin,
		EnclaveOrigin: hello.EnclaveOrigin,
		CodeHash:      hello.CodeHash,
		NonceHost:     hello.NonceHost,
		NonceEnclave:  nonceEnclave,
		HostPubRaw:    hello.HostPub,
		EnclavePubRaw: enclavePubRaw,
	}

	ikm, err := primitives.ECDH(priv, hostPub)
	if err != nil {
		r.log.Warn("handshake rejected: key agreement failed", logger.String("session_id", hello.ID.String()))
		r.recordAudit(audit.EventHandshakeRejected, hello.ID.String(), "ecdh_failed")
		return acceptResult{}, ErrMalformedHello
	}
	salt := deriveSalt(r.cfg.SaltMode, ctx)
	keys, err := deriveKeys(r.cfg, ikm, salt)
	primitives.Zeroize(ikm)
	if err != nil {
		return acceptResult{}, err
	}

	sess, err := session.New(hello.ID.String(), session.SideEnclave, keys, r.sessionCfg)
	if err != nil {
		return acceptResult{}, err
	}

	r.log.Info("handshake accepted", logger.String("session_id", hello.ID.String()))
	r.recordAudit(audit.EventHandshakeAccepted, hello.ID.String(), "")

	return acceptResult{
		ack: HelloAck{
			ID:           hello.ID,
			EnclavePub:   enclavePubRaw,
			NonceEnclave: nonceEnclave,
		},
		res: &Result{Session: sess, Context: ctx},
	}, nil
}
