// Package transport is the framing-agnostic collaborator the protocol
// assumes but never specifies: something that can move an Envelope between
// a host and an enclave. It has no opinion about handshake or record
// semantics — Envelope is a tagged, opaque-payload wire value, and callers
// (the host-demo and enclave-demo commands) do their own marshaling of
// handshake messages and records into and out of it.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by Send/Recv after Close.
var ErrClosed = errors.New("transport: closed")

// Kind tags an Envelope's payload shape. The set is closed, mirroring the
// protocol's own closed message-type set (spec.md §6).
type Kind string

const (
	KindHello    Kind = "HELLO"
	KindHelloAck Kind = "HELLO_ACK"
	KindCipher   Kind = "CIPHER"
	KindError    Kind = "ERROR"
)

// Envelope is the wire value a Transport moves. Payload is left as raw
// JSON so this package never needs to import handshake/record/enclave
// types directly.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode builds an Envelope around v, marshaled as JSON.
func Encode(kind Kind, v any) (Envelope, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Payload: payload}, nil
}

// Decode unmarshals an Envelope's payload into out.
func Decode(e Envelope, out any) error {
	return json.Unmarshal(e.Payload, out)
}

// Transport moves Envelopes between a host and an enclave over some
// unspecified framing. Implementations need not be safe for concurrent
// use from multiple goroutines on the same side, matching the protocol's
// single-owner-per-session concurrency model.
type Transport interface {
	Send(ctx context.Context, e Envelope) error
	Recv(ctx context.Context) (Envelope, error)
	Close() error
}
