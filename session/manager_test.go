// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/soft-enclave/internal/logger"
)

func TestManagerPutGetRemove(t *testing.T) {
	m := NewManager(DefaultConfig(), time.Hour)
	defer m.Stop()

	keys := testKeys(t)
	s, err := New("sess-mgr-1", SideHost, keys, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, m.Put(s))
	require.ErrorIs(t, m.Put(s), ErrAlreadyExists)

	got, err := m.Get("sess-mgr-1")
	require.NoError(t, err)
	require.Same(t, s, got)

	require.NoError(t, m.Remove("sess-mgr-1"))
	require.True(t, s.Closed())

	_, err = m.Get("sess-mgr-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManagerSweepExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = time.Millisecond
	var logOut bytes.Buffer
	m := NewManager(cfg, 5*time.Millisecond).WithLogger(logger.NewLogger(&logOut, logger.InfoLevel))
	defer m.Stop()

	keys := testKeys(t)
	s, err := New("sess-mgr-2", SideHost, keys, cfg)
	require.NoError(t, err)
	require.NoError(t, m.Put(s))

	require.Eventually(t, func() bool {
		_, err := m.Get("sess-mgr-2")
		return err == ErrNotFound
	}, time.Second, 5*time.Millisecond)
	require.True(t, s.Closed())

	require.Eventually(t, func() bool {
		return bytes.Contains(logOut.Bytes(), []byte("session expired"))
	}, time.Second, 5*time.Millisecond, "manager must log session expiry")
}

func TestManagerStatus(t *testing.T) {
	m := NewManager(DefaultConfig(), time.Hour)
	defer m.Stop()

	keys := testKeys(t)
	s1, _ := New("a", SideHost, keys, DefaultConfig())
	s2, _ := New("b", SideHost, keys, DefaultConfig())
	require.NoError(t, m.Put(s1))
	require.NoError(t, m.Put(s2))

	st := m.Status()
	require.Equal(t, 2, st.TotalSessions)
	require.Equal(t, 2, st.ActiveSessions)
}
