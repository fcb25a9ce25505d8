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
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sage-x-project/soft-enclave/primitives"
)

// Side identifies which end of the handshake a Session belongs to; it
// selects which derived key pair is used for sealing versus opening.
type Side int

const (
	SideHost Side = iota
	SideEnclave
)

// ErrClosed is returned by any operation attempted on a closed Session.
var ErrClosed = errors.New("session: closed")

// DirectionKeys is one direction's derived AEAD key and base nonce.
type DirectionKeys struct {
	AEADKey   []byte // 32 bytes
	BaseNonce []byte // 12 bytes
}

// Keys bundles both directions' derived key material, produced by the
// handshake package.
type Keys struct {
	HostToEnclave DirectionKeys
	EnclaveToHost DirectionKeys
}

// Session is the derived state produced by one handshake: the AEAD keys,
// per-direction nonce bases, send/receive counters, replay cache, and size
// caps. It is single-owner per direction: created atomically at the end of
// a handshake, consumed exclusively by the record layer, and torn down by
// Close. A Session is never shared across goroutines.
type Session struct {
	ID        string
	Side      Side
	CreatedAt time.Time

	sealAEAD *primitives.AEAD
	openAEAD *primitives.AEAD
	sealBase []byte
	openBase []byte

	send   SendCounter
	recv   *SequenceAcceptor
	replay *ReplayCache

	config Config

	lastUsedAt atomic.Int64 // unix nano
	closed     atomic.Bool
}

// New builds a Session from derived keys for the given side. The host
// seals under HostToEnclave and opens under EnclaveToHost; the enclave is
// the mirror image.
func New(id string, side Side, keys Keys, cfg Config) (*Session, error) {
	var sealKeys, openKeys DirectionKeys
	switch side {
	case SideHost:
		sealKeys, openKeys = keys.HostToEnclave, keys.EnclaveToHost
	case SideEnclave:
		sealKeys, openKeys = keys.EnclaveToHost, keys.HostToEnclave
	default:
		return nil, errors.New("session: invalid side")
	}

	sealAEAD, err := primitives.NewAEAD(sealKeys.AEADKey)
	if err != nil {
		return nil, err
	}
	openAEAD, err := primitives.NewAEAD(openKeys.AEADKey)
	if err != nil {
		return nil, err
	}

	if cfg.MaxReplayCache == 0 {
		cfg.MaxReplayCache = DefaultMaxReplayCache
	}
	if cfg.MaxCiphertext == 0 {
		cfg.MaxCiphertext = DefaultMaxCiphertext
	}
	if cfg.MaxPlaintext == 0 {
		cfg.MaxPlaintext = DefaultMaxPlaintext
	}
	if cfg.MaxCode == 0 {
		cfg.MaxCode = DefaultMaxCode
	}

	s := &Session{
		ID:        id,
		Side:      side,
		CreatedAt: time.Now(),
		sealAEAD:  sealAEAD,
		openAEAD:  openAEAD,
		sealBase:  append([]byte(nil), sealKeys.BaseNonce...),
		openBase:  append([]byte(nil), openKeys.BaseNonce...),
		recv:      NewSequenceAcceptor(cfg.SequenceWindow),
		replay:    NewReplayCache(cfg.MaxReplayCache),
		config:    cfg,
	}
	s.lastUsedAt.Store(s.CreatedAt.UnixNano())
	return s, nil
}

// IsExpired reports whether the session has exceeded its configured
// absolute age or idle timeout. A zero duration disables that check.
func (s *Session) IsExpired() bool {
	now := time.Now()
	if s.config.MaxAge > 0 && now.Sub(s.CreatedAt) > s.config.MaxAge {
		return true
	}
	if s.config.IdleTimeout > 0 {
		last := time.Unix(0, s.lastUsedAt.Load())
		if now.Sub(last) > s.config.IdleTimeout {
			return true
		}
	}
	return false
}

// UpdateLastUsed marks the session as active now.
func (s *Session) UpdateLastUsed() {
	s.lastUsedAt.Store(time.Now().UnixNano())
}

// LastUsedAt returns the last-activity timestamp.
func (s *Session) LastUsedAt() time.Time {
	return time.Unix(0, s.lastUsedAt.Load())
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close tears the session down, zeroizing both nonce bases; the AEAD key
// material held inside the cipher instances is not overwritten. It is
// idempotent.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	primitives.Zeroize(s.sealBase)
	primitives.Zeroize(s.openBase)
	return nil
}

// Config returns the session's active policy limits.
func (s *Session) Config() Config {
	return s.config
}

// NextSendNonce pre-increments the send counter and derives the
// corresponding deterministic nonce: base_nonce XOR big-endian(seq) in the
// low 8 bytes.
func (s *Session) NextSendNonce() (seq uint64, nonce []byte, err error) {
	if s.closed.Load() {
		return 0, nil, ErrClosed
	}
	seq, err = s.send.Next()
	if err != nil {
		return 0, nil, err
	}
	return seq, deriveNonce(s.sealBase, seq), nil
}

// SealAEAD returns the AEAD instance used to seal outbound records.
func (s *Session) SealAEAD() *primitives.AEAD { return s.sealAEAD }

// OpenAEAD returns the AEAD instance used to open inbound records.
func (s *Session) OpenAEAD() *primitives.AEAD { return s.openAEAD }

// NonceForRecv derives the expected nonce for an inbound record's seq,
// using the receive-direction base nonce.
func (s *Session) NonceForRecv(seq uint64) []byte {
	return deriveNonce(s.openBase, seq)
}

// CheckReplay reports whether nonce has already been accepted. It performs
// no mutation; callers must call RecordAccepted only after the record
// authenticates and passes the sequence check.
func (s *Session) CheckReplay(nonce []byte) bool {
	var key [NonceKeySize]byte
	copy(key[:], nonce)
	return s.replay.Contains(key)
}

// CheckSequence reports whether seq would be accepted by the receive
// sequence acceptor, without mutating state.
func (s *Session) CheckSequence(seq uint64) error {
	return s.recv.Check(seq)
}

// RecordAccepted commits an authenticated, in-window record: the nonce is
// inserted into the replay cache and the sequence high-water mark advances.
func (s *Session) RecordAccepted(nonce []byte, seq uint64) {
	var key [NonceKeySize]byte
	copy(key[:], nonce)
	s.replay.Insert(key)
	s.recv.Accept(seq)
	s.UpdateLastUsed()
}

// ReplayCacheLen reports how many nonces the replay cache currently holds.
func (s *Session) ReplayCacheLen() int {
	return s.replay.Len()
}

func deriveNonce(base []byte, seq uint64) []byte {
	nonce := make([]byte, len(base))
	copy(nonce, base)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	off := len(nonce) - 8
	for i := 0; i < 8; i++ {
		nonce[off+i] ^= seqBytes[i]
	}
	return nonce
}
