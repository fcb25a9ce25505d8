package enclave

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/soft-enclave/audit"
	"github.com/sage-x-project/soft-enclave/evaluator"
	"github.com/sage-x-project/soft-enclave/handshake"
	"github.com/sage-x-project/soft-enclave/record"
	"github.com/sage-x-project/soft-enclave/session"
)

// memAuditSink collects every recorded event for assertions, guarded by a
// mutex since Dispatch has no concurrency guarantees of its own to lean on.
type memAuditSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *memAuditSink) Record(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memAuditSink) kinds() []audit.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

// stubEvaluator always returns a fixed value, counting how many times it
// was invoked so replay/rejection tests can assert the handler never ran.
type stubEvaluator struct {
	calls int
	value any
}

func (s *stubEvaluator) Evaluate(ctx context.Context, source string, bindings map[string]any, deadline time.Time) (any, error) {
	s.calls++
	return s.value, nil
}

var _ evaluator.Evaluator = (*stubEvaluator)(nil)

// buildPair runs a real handshake and returns the host session, the
// enclave pipeline (Ready, with the evaluate op wired to stub), and the
// stub itself for call-count assertions.
func buildPair(t *testing.T) (*session.Session, *Pipeline, *stubEvaluator) {
	t.Helper()

	cfg := handshake.DefaultConfig()
	initiator, hello, err := handshake.NewInitiator(cfg, "A", "B", "H")
	require.NoError(t, err)

	responder := handshake.NewResponder(cfg, "A", "B", session.DefaultConfig())
	ack, encResult, err := responder.Accept(hello)
	require.NoError(t, err)

	hostResult, err := initiator.Complete(ack)
	require.NoError(t, err)

	stub := &stubEvaluator{value: float64(42)}
	pipe := NewPipeline(hello.ID)
	pipe.Register(EvaluateOperation(stub, session.DefaultMaxCode))
	pipe.CompleteHandshake(encResult.Session)

	return hostResult.Session, pipe, stub
}

func TestHappyRoundTrip(t *testing.T) {
	hostSess, pipe, stub := buildPair(t)

	req := EvaluateRequest{Source: "40+2"}
	rec, err := record.Seal(hostSess, req, AADEvaluateIn)
	require.NoError(t, err)

	outcome := pipe.Dispatch(context.Background(), rec)
	require.NotNil(t, outcome.Cipher)
	require.Nil(t, outcome.Error)
	require.Equal(t, 1, stub.calls)

	var result EvaluateResult
	_, err = record.Open(hostSess, *outcome.Cipher, AADEvaluateOut, &result)
	require.NoError(t, err)
	require.Equal(t, float64(42), result.Value)
}

func TestReplayRejected(t *testing.T) {
	hostSess, pipe, stub := buildPair(t)

	req := EvaluateRequest{Source: "40+2"}
	rec, err := record.Seal(hostSess, req, AADEvaluateIn)
	require.NoError(t, err)

	first := pipe.Dispatch(context.Background(), rec)
	require.NotNil(t, first.Cipher)
	require.Equal(t, 1, stub.calls)

	second := pipe.Dispatch(context.Background(), rec)
	require.Nil(t, second.Cipher)
	require.NotNil(t, second.Error)
	require.Equal(t, KindReplay, second.Error.Kind)
	require.Equal(t, 1, stub.calls, "handler must not run again on replay")
}

func TestSequenceViolationClosesPipeline(t *testing.T) {
	hostSess, pipe, _ := buildPair(t)

	// Seal three records, then present the third before the first two.
	var recs []record.Record
	for i := 0; i < 3; i++ {
		rec, err := record.Seal(hostSess, EvaluateRequest{Source: "1"}, AADEvaluateIn)
		require.NoError(t, err)
		recs = append(recs, rec)
	}

	outcome := pipe.Dispatch(context.Background(), recs[2])
	require.Nil(t, outcome.Cipher)
	require.NotNil(t, outcome.Error)
	require.Equal(t, KindSequenceViolation, outcome.Error.Kind)
	require.Equal(t, Closed, pipe.State())
}

func TestContextMismatchFailsOnFirstOpen(t *testing.T) {
	cfg := handshake.DefaultConfig()

	initiator, hello, err := handshake.NewInitiator(cfg, "A", "B", "H")
	require.NoError(t, err)
	hello.CodeHash = "different-from-enclave"

	responder := handshake.NewResponder(cfg, "A", "B", session.DefaultConfig())
	ack, encResult, err := responder.Accept(hello)
	require.NoError(t, err)

	hostResult, err := initiator.Complete(ack)
	require.NoError(t, err)

	stub := &stubEvaluator{value: float64(1)}
	pipe := NewPipeline(hello.ID)
	pipe.Register(EvaluateOperation(stub, session.DefaultMaxCode))
	pipe.CompleteHandshake(encResult.Session)

	rec, err := record.Seal(hostResult.Session, EvaluateRequest{Source: "1"}, AADEvaluateIn)
	require.NoError(t, err)

	outcome := pipe.Dispatch(context.Background(), rec)
	require.True(t, outcome.Silent(), "context mismatch must drop silently, never reveal the failure kind")
	require.Equal(t, 0, stub.calls)
}

func TestAADConfusionRejected(t *testing.T) {
	hostSess, pipe, stub := buildPair(t)

	rec, err := record.Seal(hostSess, EvaluateRequest{Source: "1"}, AADEvaluateIn)
	require.NoError(t, err)

	// Register a sign operation so op=sign is a recognized tag.
	pipe.Register(Operation{
		Name:   "sign",
		AADIn:  AADSignIn,
		AADOut: AADSignOut,
		Handler: func(ctx context.Context, body json.RawMessage) (any, error) {
			return nil, errBadSign
		},
	})

	// Flip the AAD tag to a different, recognized operation's tag: the
	// pipeline must route by rec.AADTag and fail cleanly, never try
	// multiple AADs until one decrypts.
	rec.AADTag = AADSignIn

	outcome := pipe.Dispatch(context.Background(), rec)
	require.True(t, outcome.Silent(), "AAD confusion must drop silently, never reveal that the tag was recognized")
	require.Equal(t, 0, stub.calls)
}

func TestOversizeCiphertextRejected(t *testing.T) {
	hostSess, pipe, stub := buildPair(t)

	rec, err := record.Seal(hostSess, EvaluateRequest{Source: "1"}, AADEvaluateIn)
	require.NoError(t, err)
	rec.Ciphertext = make([]byte, session.DefaultMaxCiphertext+1)

	outcome := pipe.Dispatch(context.Background(), rec)
	require.Nil(t, outcome.Cipher)
	require.NotNil(t, outcome.Error)
	require.Equal(t, KindTooLarge, outcome.Error.Kind)
	require.Equal(t, 0, stub.calls)
}

func TestDispatchBeforeReadyIsRejected(t *testing.T) {
	pipe := NewPipeline(uuid.New())
	outcome := pipe.Dispatch(context.Background(), record.Record{AADTag: AADEvaluateIn})
	require.True(t, outcome.Silent(), "dispatch with no session must drop silently, not leak state via an ERROR reply")
}

func TestFailingHandlerMapsToKindHandlerError(t *testing.T) {
	hostSess, pipe, _ := buildPair(t)

	pipe.Register(Operation{
		Name:   "sign",
		AADIn:  AADSignIn,
		AADOut: AADSignOut,
		Handler: func(ctx context.Context, body json.RawMessage) (any, error) {
			return nil, errBadSign
		},
	})

	rec, err := record.Seal(hostSess, map[string]string{"x": "y"}, AADSignIn)
	require.NoError(t, err)

	outcome := pipe.Dispatch(context.Background(), rec)
	require.Nil(t, outcome.Cipher)
	require.NotNil(t, outcome.Error)
	require.Equal(t, KindHandlerError, outcome.Error.Kind)
}

func TestDispatchRecordsAuditEvents(t *testing.T) {
	hostSess, pipe, _ := buildPair(t)
	sink := &memAuditSink{}
	pipe.WithAuditSink(sink)

	req := EvaluateRequest{Source: "40+2"}
	rec, err := record.Seal(hostSess, req, AADEvaluateIn)
	require.NoError(t, err)

	outcome := pipe.Dispatch(context.Background(), rec)
	require.NotNil(t, outcome.Cipher)

	second := pipe.Dispatch(context.Background(), rec)
	require.True(t, second.Error != nil || second.Silent())

	require.Equal(t, []audit.EventKind{audit.EventRecordAccepted, audit.EventRecordRejected}, sink.kinds())
}

func TestHandlerTimeoutMapsToKindTimeout(t *testing.T) {
	hostSess, pipe, _ := buildPair(t)

	pipe.Register(Operation{
		Name:   "sign",
		AADIn:  AADSignIn,
		AADOut: AADSignOut,
		Handler: func(ctx context.Context, body json.RawMessage) (any, error) {
			return nil, evaluator.ErrTimeout
		},
	})

	rec, err := record.Seal(hostSess, map[string]string{"x": "y"}, AADSignIn)
	require.NoError(t, err)

	outcome := pipe.Dispatch(context.Background(), rec)
	require.Nil(t, outcome.Cipher)
	require.NotNil(t, outcome.Error)
	require.Equal(t, KindTimeout, outcome.Error.Kind)
}

var errBadSign = &handlerTestError{"sign failed"}

type handlerTestError struct{ msg string }

func (e *handlerTestError) Error() string { return e.msg }
