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

// Package vault is the minimal concrete shape of the persisted-key-at-rest
// collaborator the core spec mentions only at the interface level
// (seal/unseal/delete/clear/stats, "encrypt-at-rest with AAD = session
// context id"). It is never imported by the handshake, record, or enclave
// packages; it exists for callers that need to persist a private key
// between process runs (e.g. a signer's key material).
package vault

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"

	"github.com/sage-x-project/soft-enclave/primitives"
)

var (
	ErrKeyNotFound      = errors.New("vault: key not found")
	ErrInvalidPassphrase = errors.New("vault: invalid passphrase")
	ErrInvalidKeyID     = errors.New("vault: invalid key id")
)

// Stats reports aggregate vault occupancy.
type Stats struct {
	KeyCount int `json:"key_count"`
}

// Vault is the seal/unseal/delete/clear/stats interface the core treats as
// an external collaborator.
type Vault interface {
	StoreEncrypted(keyID string, key []byte, passphrase string) error
	LoadDecrypted(keyID string, passphrase string) ([]byte, error)
	Delete(keyID string) error
	Exists(keyID string) bool
	ListKeys() []string
	SetPermissions(keyID string, mode os.FileMode) error
	Clear() error
	Stats() Stats
}

type envelope struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	saltSize     = 16
	derivedKeyN  = primitives.KeySize
)

func sealEnvelope(keyID string, key []byte, passphrase string) (envelope, error) {
	salt, err := primitives.SecureRandom(saltSize)
	if err != nil {
		return envelope{}, err
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, derivedKeyN)
	if err != nil {
		return envelope{}, err
	}
	aead, err := primitives.NewAEAD(derived)
	if err != nil {
		return envelope{}, err
	}
	nonce, err := primitives.SecureRandom(primitives.NonceSize)
	if err != nil {
		return envelope{}, err
	}
	ct, err := aead.Seal(nonce, key, []byte(keyID))
	if err != nil {
		return envelope{}, err
	}
	return envelope{Salt: salt, Nonce: nonce, Ciphertext: ct}, nil
}

func openEnvelope(keyID string, env envelope, passphrase string) ([]byte, error) {
	derived, err := scrypt.Key([]byte(passphrase), env.Salt, scryptN, scryptR, scryptP, derivedKeyN)
	if err != nil {
		return nil, err
	}
	aead, err := primitives.NewAEAD(derived)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(env.Nonce, env.Ciphertext, []byte(keyID))
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return pt, nil
}

// FileVault persists one JSON-encoded envelope per key under a directory,
// each written with 0600 permissions.
type FileVault struct {
	mu  sync.Mutex
	dir string
}

// NewFileVault creates the directory if needed and returns a FileVault
// rooted there.
func NewFileVault(dir string) (*FileVault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &FileVault{dir: dir}, nil
}

func (v *FileVault) path(keyID string) string {
	return filepath.Join(v.dir, keyID+".json")
}

func (v *FileVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	if keyID == "" {
		return ErrInvalidKeyID
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	env, err := sealEnvelope(keyID, key, passphrase)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return os.WriteFile(v.path(keyID), data, 0600)
}

func (v *FileVault) LoadDecrypted(keyID string, passphrase string) ([]byte, error) {
	if keyID == "" {
		return nil, ErrInvalidKeyID
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path(keyID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return openEnvelope(keyID, env, passphrase)
}

func (v *FileVault) Delete(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Remove(v.path(keyID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrKeyNotFound
		}
		return err
	}
	return nil
}

func (v *FileVault) Exists(keyID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := os.Stat(v.path(keyID))
	return err == nil
}

func (v *FileVault) ListKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return nil
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			keys = append(keys, name[:len(name)-len(".json")])
		}
	}
	return keys
}

func (v *FileVault) SetPermissions(keyID string, mode os.FileMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Chmod(v.path(keyID), mode); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrKeyNotFound
		}
		return err
	}
	return nil
}

func (v *FileVault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			if err := os.Remove(filepath.Join(v.dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *FileVault) Stats() Stats {
	return Stats{KeyCount: len(v.ListKeys())}
}

// MemoryVault is an in-process, non-persistent Vault, used in tests and by
// short-lived demo processes.
type MemoryVault struct {
	mu   sync.Mutex
	data map[string]envelope
}

// NewMemoryVault builds an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{data: make(map[string]envelope)}
}

func (v *MemoryVault) StoreEncrypted(keyID string, key []byte, passphrase string) error {
	if keyID == "" {
		return ErrInvalidKeyID
	}
	env, err := sealEnvelope(keyID, key, passphrase)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data[keyID] = env
	return nil
}

func (v *MemoryVault) LoadDecrypted(keyID string, passphrase string) ([]byte, error) {
	if keyID == "" {
		return nil, ErrInvalidKeyID
	}
	v.mu.Lock()
	env, ok := v.data[keyID]
	v.mu.Unlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	return openEnvelope(keyID, env, passphrase)
}

func (v *MemoryVault) Delete(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.data[keyID]; !ok {
		return ErrKeyNotFound
	}
	delete(v.data, keyID)
	return nil
}

func (v *MemoryVault) Exists(keyID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.data[keyID]
	return ok
}

func (v *MemoryVault) ListKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	keys := make([]string, 0, len(v.data))
	for k := range v.data {
		keys = append(keys, k)
	}
	return keys
}

func (v *MemoryVault) SetPermissions(keyID string, _ os.FileMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.data[keyID]; !ok {
		return ErrKeyNotFound
	}
	return nil
}

func (v *MemoryVault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data = make(map[string]envelope)
	return nil
}

func (v *MemoryVault) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Stats{KeyCount: len(v.data)}
}
