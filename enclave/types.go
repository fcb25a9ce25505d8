// Package enclave implements the request pipeline that runs inside the
// sandboxed compartment: it owns a Session once the handshake completes,
// routes inbound CIPHER records to a fixed operation table by their AAD
// tag, dispatches to a handler, and re-seals the result. Only CIPHER and
// ERROR records are ever allowed to leave Dispatch.
package enclave

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// State is the enclave compartment's lifecycle state.
type State int

const (
	Waiting State = iota
	Handshaking
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrorKind is the closed, opaque-on-the-wire error taxonomy from the
// error handling design. Only the kind label crosses the wire; it is
// never a decryption oracle.
type ErrorKind string

const (
	KindMalformedHello    ErrorKind = "MalformedHello"
	KindContextMismatch   ErrorKind = "ContextMismatch"
	KindReplay            ErrorKind = "Replay"
	KindSequenceViolation ErrorKind = "SequenceViolation"
	KindTooLarge          ErrorKind = "TooLarge"
	KindCryptoFailure     ErrorKind = "CryptoFailure"
	KindTimeout           ErrorKind = "Timeout"
	KindHandlerError      ErrorKind = "HandlerError"
	KindEgressViolation   ErrorKind = "EgressViolation"
)

// AAD closed set. Compile-time fixed per spec; never minted at runtime.
const (
	AADEvaluateIn  = "op=evaluate"
	AADEvaluateOut = "op=evaluate:result"
	AADSignIn      = "op=sign"
	AADSignOut     = "op=sign:result"
)

// ErrorRecord is the wire shape of an ERROR message: an opaque kind label,
// never the underlying decrypted detail.
type ErrorRecord struct {
	ID  uuid.UUID `json:"id"`
	Kind ErrorKind `json:"kind"`
	Seq *uint64   `json:"seq,omitempty"`
}

// Handler executes one recognized operation against its decrypted body
// and returns the value to be re-sealed under aad_out.
type Handler func(ctx context.Context, body json.RawMessage) (any, error)

// Operation is one entry of the pluggable op -> (aad_in, handler, aad_out)
// table spec.md §4.5 describes.
type Operation struct {
	Name    string
	AADIn   string
	AADOut  string
	Handler Handler
}

// EvaluateRequest is the decrypted body of an "evaluate" CIPHER record.
type EvaluateRequest struct {
	Source     string         `json:"source"`
	Bindings   map[string]any `json:"bindings,omitempty"`
	DeadlineMS int64          `json:"deadline_ms,omitempty"`
}

// EvaluateResult is the body re-sealed under AADEvaluateOut.
type EvaluateResult struct {
	Value any `json:"value"`
}

// SignRequest is the decrypted body of a "sign" CIPHER record. PrivKey is
// zeroized by the handler before it returns, success or failure.
type SignRequest struct {
	TxBytes []byte `json:"tx_bytes"`
	PrivKey []byte `json:"priv_key"`
	Chain   string `json:"chain"`
}

// SignResult is the body re-sealed under AADSignOut. Address is populated
// only for chains whose backend implements signer.AddressEncoder (e.g.
// Solana's base58 account addresses); it is empty otherwise.
type SignResult struct {
	Signature []byte `json:"signature"`
	Address   string `json:"address,omitempty"`
}
