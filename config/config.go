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

// Package config loads the enclave process's configuration: session
// policy, handshake behavior, logging, evaluator limits, and vault
// backend selection. It carries no blockchain/DID-registry fields — this
// protocol has no on-chain identity layer.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sage-x-project/soft-enclave/handshake"
	"github.com/sage-x-project/soft-enclave/session"
)

// Config is the root configuration structure.
type Config struct {
	Environment string           `yaml:"environment" json:"environment"`
	Session     session.Config   `yaml:"session" json:"session"`
	Handshake   handshake.Config `yaml:"handshake" json:"handshake"`
	Logging     LoggingConfig    `yaml:"logging" json:"logging"`
	Evaluator   EvaluatorConfig  `yaml:"evaluator" json:"evaluator"`
	Vault       VaultConfig      `yaml:"vault" json:"vault"`
	Audit       AuditConfig      `yaml:"audit" json:"audit"`
}

// LoggingConfig controls internal/logger's default logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Pretty bool   `yaml:"pretty" json:"pretty"` // pretty-print JSON log lines
}

// EvaluatorConfig bounds the default goja-backed evaluator.
type EvaluatorConfig struct {
	DefaultDeadline time.Duration `yaml:"default_deadline" json:"default_deadline"`
	MaxMemoryBytes  int64         `yaml:"max_memory_bytes" json:"max_memory_bytes"`
	MaxSteps        int64         `yaml:"max_steps" json:"max_steps"`
}

// VaultConfig selects and configures the vault.Vault backend.
type VaultConfig struct {
	Backend   string `yaml:"backend" json:"backend"` // file, memory
	Directory string `yaml:"directory" json:"directory"`
}

// AuditConfig selects the optional durable audit.Sink. Disabled by
// default: dispatch and handshake events go nowhere until a Postgres DSN
// is configured.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// DefaultConfig returns the protocol's defaults for every block.
func DefaultConfig() Config {
	return Config{
		Environment: "development",
		Session:     session.DefaultConfig(),
		Handshake:   handshake.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
		Evaluator: EvaluatorConfig{
			DefaultDeadline: 5 * time.Second,
			MaxMemoryBytes:  64 << 20,
			MaxSteps:        0, // 0 means unbounded; goja has no native step counter
		},
		Vault: VaultConfig{
			Backend:   "file",
			Directory: ".soft-enclave/keys",
		},
		Audit: AuditConfig{
			Enabled: false,
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// LoadFromFile loads configuration from a YAML (or, as a fallback, JSON)
// file over DefaultConfig: fields the file does not set keep their
// defaults, and fields it sets (even to a zero value) replace them.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse file (tried YAML and JSON): %w", err)
		}
	}

	return &cfg, nil
}

// SaveToFile writes cfg back out, choosing YAML or JSON by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}
