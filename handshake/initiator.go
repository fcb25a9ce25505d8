package handshake

import (
	"crypto/ecdh"
	"errors"

	"github.com/google/uuid"

	"github.com/sage-x-project/soft-enclave/internal/logger"
	"github.com/sage-x-project/soft-enclave/primitives"
	"github.com/sage-x-project/soft-enclave/session"
)

// ErrMalformedHello is returned when a peer's handshake message fails to
// parse or carries inputs of the wrong shape. Per the error-handling
// design this is a silent-drop condition: callers must not relay any
// detail back to the peer.
var ErrMalformedHello = errors.New("handshake: malformed hello")

// Initiator runs the host side of the one-round handshake: it holds the
// ephemeral keypair and context between sending HELLO and receiving
// HELLO_ACK.
type Initiator struct {
	cfg      Config
	priv     *ecdh.PrivateKey
	ctx      Context
	id       uuid.UUID
	sentOnce bool
	log      logger.Logger
}

// NewInitiator generates a fresh ephemeral keypair and nonce and returns
// the Initiator plus the HELLO message to send.
func NewInitiator(cfg Config, hostOrigin, enclaveOrigin, codeHash string) (*Initiator, Hello, error) {
	priv, err := primitives.GenerateKeyPair()
	if err != nil {
		return nil, Hello{}, err
	}
	nonceHost, err := primitives.SecureRandom(nonceSize)
	if err != nil {
		return nil, Hello{}, err
	}
	id := uuid.New()

	hostPubRaw := primitives.ExportRaw(priv.PublicKey())

	init := &Initiator{
		cfg:  cfg,
		priv: priv,
		id:   id,
		log:  logger.Nop(),
		ctx: Context{
			HostOrigin:    hostOrigin,
			EnclaveOrigin: enclaveOrigin,
			CodeHash:      codeHash,
			NonceHost:     nonceHost,
			HostPubRaw:    hostPubRaw,
		},
	}

	hello := Hello{
		ID:            id,
		HostPub:       hostPubRaw,
		NonceHost:     nonceHost,
		CodeHash:      codeHash,
		HostOrigin:    hostOrigin,
		EnclaveOrigin: enclaveOrigin,
	}
	return init, hello, nil
}

// WithCodeAttestation attaches a compact JWT to the pending HELLO, proving
// provenance of CodeHash. Supplemental, optional feature.
func (init *Initiator) WithCodeAttestation(hello Hello, token string) Hello {
	hello.CodeAttestation = token
	return hello
}

// WithLogger attaches a logger for handshake lifecycle events. Without one,
// Initiator logs nothing.
func (init *Initiator) WithLogger(l logger.Logger) *Initiator {
	init.log = l
	return init
}

// Complete consumes the responder's HELLO_ACK, derives the shared Session,
// and returns it. Any id mismatch or malformed public key is a silent
// handshake abort (ErrMalformedHello), never reported to the peer.
func (init *Initiator) Complete(ack HelloAck) (*Result, error) {
	if init.sentOnce {
		// A session already exists for this handshake; any further
		// HELLO_ACK for the same id is ignored per spec §4.2.
		init.log.Warn("handshake aborted: duplicate hello_ack", logger.String("session_id", init.id.String()))
		return nil, ErrMalformedHello
	}
	if ack.ID != init.id {
		init.log.Warn("handshake aborted: id mismatch", logger.String("session_id", init.id.String()))
		return nil, ErrMalformedHello
	}
	if len(ack.NonceEnclave) != nonceSize {
		init.log.Warn("handshake aborted: malformed nonce", logger.String("session_id", init.id.String()))
		return nil, ErrMalformedHello
	}
	enclavePub, err := primitives.ImportRaw(ack.EnclavePub)
	if err != nil {
		init.log.Warn("handshake aborted: malformed enclave public key", logger.String("session_id", init.id.String()))
		return nil, ErrMalformedHello
	}

	init.ctx.NonceEnclave = ack.NonceEnclave
	init.ctx.EnclavePubRaw = ack.EnclavePub

	ikm, err := primitives.ECDH(init.priv, enclavePub)
	if err != nil {
		init.log.Warn("handshake aborted: key agreement failed", logger.String("session_id", init.id.String()))
		return nil, ErrMalformedHello
	}
	salt := deriveSalt(init.cfg.SaltMode, init.ctx)
	keys, err := deriveKeys(init.cfg, ikm, salt)
	primitives.Zeroize(ikm)
	if err != nil {
		return nil, err
	}

	sess, err := session.New(init.id.String(), session.SideHost, keys, session.DefaultConfig())
	if err != nil {
		return nil, err
	}
	init.sentOnce = true
	init.log.Info("handshake complete", logger.String("session_id", init.id.String()))

	return &Result{Session: sess, Context: init.ctx}, nil
}
