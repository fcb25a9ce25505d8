package enclave

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/soft-enclave/audit"
	"github.com/sage-x-project/soft-enclave/evaluator"
	"github.com/sage-x-project/soft-enclave/internal/logger"
	"github.com/sage-x-project/soft-enclave/record"
	"github.com/sage-x-project/soft-enclave/session"
)

// ErrNotReady is returned by Dispatch when the pipeline has no session yet
// (still Waiting/Handshaking) or has already been torn down (Closed).
var ErrNotReady = errors.New("enclave: pipeline not ready")

// Pipeline is the enclave-side request dispatcher. It owns the Session
// produced by a completed handshake and routes CIPHER records to the
// registered operation table by their (cleartext, authenticated) AAD tag.
// A Pipeline is single-owner, matching the Session it wraps: it is never
// shared across goroutines and takes no internal lock.
type Pipeline struct {
	id    uuid.UUID
	state State
	sess  *session.Session
	ops   map[string]Operation // keyed by AADIn
	log   logger.Logger
	audit audit.Sink
}

// NewPipeline constructs an empty pipeline in the Waiting state. Register
// operations with Register before calling CompleteHandshake.
func NewPipeline(id uuid.UUID) *Pipeline {
	return &Pipeline{
		id:    id,
		state: Waiting,
		ops:   make(map[string]Operation),
		log:   logger.Nop(),
		audit: audit.NullSink{},
	}
}

// WithLogger attaches a logger for dispatch errors. Without one, Pipeline
// logs nothing. Silent-drop kinds (ContextMismatch, CryptoFailure) are
// logged locally only — nothing about them ever reaches the peer.
func (p *Pipeline) WithLogger(l logger.Logger) *Pipeline {
	p.log = l
	return p
}

// WithAuditSink attaches a durable audit trail for dispatch outcomes.
// Without one, events are discarded.
func (p *Pipeline) WithAuditSink(s audit.Sink) *Pipeline {
	p.audit = s
	return p
}

func (p *Pipeline) recordAudit(ctx context.Context, kind audit.EventKind, seq uint64, detail string) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = p.audit.Record(ctx, audit.Event{
		Kind:      kind,
		SessionID: p.id.String(),
		Seq:       seq,
		Detail:    detail,
		At:        time.Now(),
	})
}

// Register adds an operation to the dispatch table, keyed by its AADIn
// tag. Registering a second operation under the same AADIn replaces the
// first; the table itself is fixed at wiring time, never mutated per
// request.
func (p *Pipeline) Register(op Operation) {
	p.ops[op.AADIn] = op
}

// State reports the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	return p.state
}

// BeginHandshake transitions Waiting -> Handshaking on receipt of HELLO.
func (p *Pipeline) BeginHandshake() {
	if p.state == Waiting {
		p.state = Handshaking
	}
}

// CompleteHandshake installs the derived session and transitions to
// Ready. Called once, after the responder has produced a *session.Session
// from the HELLO/HELLO_ACK exchange.
func (p *Pipeline) CompleteHandshake(s *session.Session) {
	p.sess = s
	p.state = Ready
}

// Close tears the pipeline down; no further records may be dispatched.
func (p *Pipeline) Close() {
	if p.sess != nil {
		p.sess.Close()
	}
	p.state = Closed
	p.recordAudit(context.Background(), audit.EventSessionClosed, 0, "")
}

// Outcome is the only shape Dispatch can hand back to a caller for
// egress: a CIPHER record, an opaque ERROR record, or neither. The empty
// outcome (Cipher == nil && Error == nil) means "drop the record, send
// nothing on the wire" — the required handling for ContextMismatch and
// CryptoFailure (spec.md §7: these must never produce an observable
// response, or the error kind itself becomes a decryption oracle).
// Cipher and Error are never both set.
type Outcome struct {
	Cipher *record.Record
	Error  *ErrorRecord
}

// Silent reports whether this Outcome carries no wire response at all.
// A caller must send nothing — not even a close frame tagged with a
// reason — when this is true.
func (o Outcome) Silent() bool {
	return o.Cipher == nil && o.Error == nil
}

// silentDrop is the empty Outcome used for kinds spec.md §7 marks "no
// (silent drop)": ContextMismatch and CryptoFailure.
var silentDrop = Outcome{}

// Dispatch processes one inbound CIPHER record: it looks up the
// operation by the record's AAD tag, opens it, invokes the handler, and
// re-seals the result. ContextMismatch and CryptoFailure are silently
// dropped (no reply at all); Replay, SequenceViolation, TooLarge,
// HandlerError, and Timeout produce an opaque ERROR outcome instead. A
// fatal failure (sequence violation) additionally closes the pipeline.
func (p *Pipeline) Dispatch(ctx context.Context, rec record.Record) Outcome {
	if p.state != Ready || p.sess == nil {
		p.log.Warn("dispatch rejected: pipeline not ready", logger.String("session_id", p.id.String()))
		p.recordAudit(ctx, audit.EventRecordRejected, 0, string(KindContextMismatch))
		return silentDrop
	}

	op, ok := p.ops[rec.AADTag]
	if !ok {
		p.log.Warn("dispatch rejected: unrecognized aad tag", logger.String("session_id", p.id.String()))
		p.recordAudit(ctx, audit.EventRecordRejected, 0, string(KindContextMismatch))
		return silentDrop
	}

	var body json.RawMessage
	seq, err := record.Open(p.sess, rec, op.AADIn, &body)
	if err != nil {
		kind := classifyOpenErr(err)
		ref := p.fatalIfNeeded(err)
		if kind == KindContextMismatch || kind == KindCryptoFailure {
			p.log.Warn("dispatch dropped record silently", logger.String("session_id", p.id.String()), logger.String("kind", string(kind)))
			p.recordAudit(ctx, audit.EventRecordRejected, 0, string(kind))
			return silentDrop
		}
		p.log.Warn("dispatch error", logger.String("session_id", p.id.String()), logger.String("kind", string(kind)))
		p.recordAudit(ctx, audit.EventRecordRejected, 0, string(kind))
		return p.errorOutcome(kind, ref)
	}

	result, err := op.Handler(ctx, body)
	if err != nil {
		kind := KindHandlerError
		if errors.Is(err, evaluator.ErrTimeout) {
			kind = KindTimeout
		}
		p.log.Warn("dispatch handler error", logger.String("session_id", p.id.String()), logger.String("kind", string(kind)), logger.Error(err))
		p.recordAudit(ctx, audit.EventRecordRejected, seq, string(kind))
		return p.errorOutcome(kind, &seq)
	}

	out, err := record.Seal(p.sess, result, op.AADOut)
	if err != nil {
		p.log.Warn("dispatch dropped record silently", logger.String("session_id", p.id.String()), logger.String("kind", string(KindCryptoFailure)))
		p.recordAudit(ctx, audit.EventRecordRejected, seq, string(KindCryptoFailure))
		return silentDrop
	}

	p.recordAudit(ctx, audit.EventRecordAccepted, seq, op.Name)
	return Outcome{Cipher: &out}
}

// fatalIfNeeded tears the pipeline down for error classes the error
// handling design marks as session-terminating, and returns the
// reference sequence for the ERROR record (nil when none applies).
func (p *Pipeline) fatalIfNeeded(err error) *uint64 {
	if errors.Is(err, record.ErrSequenceViolation) {
		p.Close()
	}
	return nil
}

func (p *Pipeline) errorOutcome(kind ErrorKind, seq *uint64) Outcome {
	return Outcome{Error: &ErrorRecord{ID: p.id, Kind: kind, Seq: seq}}
}

func classifyOpenErr(err error) ErrorKind {
	switch {
	case errors.Is(err, record.ErrContextMismatch):
		return KindContextMismatch
	case errors.Is(err, record.ErrTooLarge):
		return KindTooLarge
	case errors.Is(err, record.ErrReplay):
		return KindReplay
	case errors.Is(err, record.ErrSequenceViolation):
		return KindSequenceViolation
	case errors.Is(err, record.ErrCryptoFailure):
		return KindCryptoFailure
	default:
		return KindCryptoFailure
	}
}
