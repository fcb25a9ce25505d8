// Package audit defines an optional, append-only event sink for
// enclave-pipeline decisions (handshake accepted, record rejected,
// operation dispatched). Spec.md has no audit requirement of its own;
// this is the supplemental "observability the teacher would ship"
// component called for in the ambient stack.
package audit

import (
	"context"
	"time"
)

// EventKind classifies an audit event. Kept as a small closed set rather
// than a free-form string, mirroring the protocol's own closed AAD/error
// taxonomies.
type EventKind string

const (
	EventHandshakeAccepted EventKind = "handshake_accepted"
	EventHandshakeRejected EventKind = "handshake_rejected"
	EventRecordAccepted    EventKind = "record_accepted"
	EventRecordRejected    EventKind = "record_rejected"
	EventSessionClosed     EventKind = "session_closed"
)

// Event is one append-only audit record. Detail never carries decrypted
// plaintext or key material — only opaque, already-public metadata
// (session id, sequence number, error kind).
type Event struct {
	Kind      EventKind
	SessionID string
	Seq       uint64
	Detail    string
	At        time.Time
}

// Sink persists Events. Implementations must not block the pipeline for
// long; callers typically fire-and-forget with a short timeout context.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// NullSink discards every event. The default when no audit trail is
// configured.
type NullSink struct{}

func (NullSink) Record(ctx context.Context, e Event) error { return nil }

var _ Sink = NullSink{}
