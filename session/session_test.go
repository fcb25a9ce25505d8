// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) Keys {
	t.Helper()
	mk := func(seed byte) DirectionKeys {
		key := make([]byte, 32)
		base := make([]byte, 12)
		for i := range key {
			key[i] = seed
		}
		for i := range base {
			base[i] = seed + 1
		}
		return DirectionKeys{AEADKey: key, BaseNonce: base}
	}
	return Keys{
		HostToEnclave: mk(1),
		EnclaveToHost: mk(2),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	keys := testKeys(t)
	host, err := New("sess-1", SideHost, keys, DefaultConfig())
	require.NoError(t, err)
	enclave, err := New("sess-1", SideEnclave, keys, DefaultConfig())
	require.NoError(t, err)

	seq, nonce, err := host.NextSendNonce()
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)

	ct, err := host.SealAEAD().Seal(nonce, []byte("hello"), []byte("op=evaluate"))
	require.NoError(t, err)

	expectNonce := enclave.NonceForRecv(seq)
	require.Equal(t, nonce, expectNonce)

	require.False(t, enclave.CheckReplay(expectNonce))
	pt, err := enclave.OpenAEAD().Open(expectNonce, ct, []byte("op=evaluate"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt)
	require.NoError(t, enclave.CheckSequence(seq))
	enclave.RecordAccepted(expectNonce, seq)
	require.Equal(t, 1, enclave.ReplayCacheLen())
}

func TestSessionCloseZeroizesAndIsIdempotent(t *testing.T) {
	keys := testKeys(t)
	s, err := New("sess-2", SideHost, keys, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.True(t, s.Closed())

	_, _, err = s.NextSendNonce()
	require.ErrorIs(t, err, ErrClosed)
}

func TestSessionExpiry(t *testing.T) {
	keys := testKeys(t)
	cfg := DefaultConfig()
	cfg.MaxAge = time.Millisecond
	s, err := New("sess-3", SideHost, keys, cfg)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	require.True(t, s.IsExpired())
}

func TestDeriveNonceUniquePerSeq(t *testing.T) {
	keys := testKeys(t)
	s, err := New("sess-4", SideHost, keys, DefaultConfig())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		_, nonce, err := s.NextSendNonce()
		require.NoError(t, err)
		require.False(t, seen[string(nonce)])
		seen[string(nonce)] = true
	}
}
