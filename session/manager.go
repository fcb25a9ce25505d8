// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"errors"
	"sync"
	"time"

	"github.com/sage-x-project/soft-enclave/internal/logger"
)

// ErrNotFound is returned when a session id has no corresponding Session.
var ErrNotFound = errors.New("session: not found")

// ErrAlreadyExists is returned by Put when a session with that id is
// already tracked.
var ErrAlreadyExists = errors.New("session: already exists")

// Manager tracks the set of live sessions on one side of the channel
// (a host or an enclave may run several independent sessions at once) and
// periodically sweeps expired ones. Each Session is independent; Manager
// only owns the lookup table, never a Session's cryptographic state.
type Manager struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	defaultConfig Config

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
	log           logger.Logger
}

// NewManager creates a Manager using cfg as the default for sessions
// created without an explicit override, and starts a background sweep
// that closes and evicts expired sessions every interval.
func NewManager(cfg Config, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m := &Manager{
		sessions:      make(map[string]*Session),
		defaultConfig: cfg,
		cleanupTicker: time.NewTicker(interval),
		stopCleanup:   make(chan struct{}),
		log:           logger.Nop(),
	}
	go m.runCleanup()
	return m
}

// WithLogger attaches a logger for session expiry events. Without one,
// Manager logs nothing.
func (m *Manager) WithLogger(l logger.Logger) *Manager {
	m.log = l
	return m
}

// Put registers a session produced by the handshake package.
func (m *Manager) Put(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrAlreadyExists
	}
	m.sessions[s.ID] = s
	return nil
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove closes and evicts a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return s.Close()
}

// Status reports the current counts across all tracked sessions.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Status{TotalSessions: len(m.sessions)}
	for _, s := range m.sessions {
		if s.IsExpired() {
			st.ExpiredSessions++
		} else {
			st.ActiveSessions++
		}
	}
	return st
}

// DefaultConfig returns the config new sessions should be built with
// absent a caller override.
func (m *Manager) DefaultConfig() Config {
	return m.defaultConfig
}

// Stop halts the background cleanup goroutine. It does not close tracked
// sessions.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.stopCleanup)
	})
}

func (m *Manager) runCleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.sweepExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) sweepExpired() {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.IsExpired() {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.log.Info("session expired", logger.String("session_id", s.ID))
	}
}
