package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pingBody struct {
	Value int `json:"value"`
}

func TestLoopbackRoundTrip(t *testing.T) {
	a, b := NewLoopbackPair(1)
	defer a.Close()
	defer b.Close()

	env, err := Encode(KindCipher, pingBody{Value: 7})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.Send(ctx, env))
	got, err := b.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, KindCipher, got.Kind)

	var body pingBody
	require.NoError(t, Decode(got, &body))
	require.Equal(t, 7, body.Value)
}

func TestLoopbackCloseUnblocksRecv(t *testing.T) {
	a, b := NewLoopbackPair(0)
	defer a.Close()

	done := make(chan error, 1)
	go func() {
		_, err := b.Recv(context.Background())
		done <- err
	}()

	b.Close()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

func TestLoopbackContextCancel(t *testing.T) {
	a, _ := NewLoopbackPair(0)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Recv(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
