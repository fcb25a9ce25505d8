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

// Package session holds the post-handshake state: derived AEAD keys, send
// and receive counters, the replay cache, and the size caps every record
// is checked against. A Session is produced once by the handshake package
// and then owned exclusively by one local direction pair; it is never
// shared across goroutines.
package session

import "time"

// Defaults mirror the bounds the protocol specifies.
const (
	DefaultMaxReplayCache = 4096
	DefaultMaxCiphertext  = 1 << 20 // 1 MiB
	DefaultMaxPlaintext   = 256 << 10
	DefaultMaxCode        = 128 << 10

	// WrapGuard is the send/receive counter value at which a session must
	// be torn down rather than risk nonce reuse on wrap-around.
	WrapGuard = uint64(1) << 63
)

// Config defines session policies and limits. SequenceWindow of 0 means
// strict, in-order acceptance; a positive value allows that many records
// of reordering slack.
type Config struct {
	MaxReplayCache int           `yaml:"max_replay_cache" json:"max_replay_cache"`
	MaxCiphertext  int           `yaml:"max_ciphertext" json:"max_ciphertext"`
	MaxPlaintext   int           `yaml:"max_plaintext" json:"max_plaintext"`
	MaxCode        int           `yaml:"max_code" json:"max_code"`
	SequenceWindow uint64        `yaml:"sequence_window" json:"sequence_window"`
	MaxAge         time.Duration `yaml:"max_age" json:"max_age"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// DefaultConfig returns the protocol's default size caps and strict
// sequencing, with no absolute/idle expiry (callers opt into expiry).
func DefaultConfig() Config {
	return Config{
		MaxReplayCache: DefaultMaxReplayCache,
		MaxCiphertext:  DefaultMaxCiphertext,
		MaxPlaintext:   DefaultMaxPlaintext,
		MaxCode:        DefaultMaxCode,
		SequenceWindow: 0,
	}
}

// Status reports aggregate session manager state, for operators
// inspecting a running enclave.
type Status struct {
	TotalSessions   int `json:"total_sessions"`
	ActiveSessions  int `json:"active_sessions"`
	ExpiredSessions int `json:"expired_sessions"`
}
