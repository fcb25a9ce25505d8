// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import "fmt"

// Validate checks a Config for values that would make the protocol's
// invariants impossible to satisfy, returning a human-readable error per
// violation. An empty slice means cfg is usable as-is.
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.Session.MaxCiphertext <= 0 {
		errs = append(errs, "session.max_ciphertext must be positive")
	}
	if cfg.Session.MaxPlaintext <= 0 {
		errs = append(errs, "session.max_plaintext must be positive")
	}
	if cfg.Session.MaxReplayCache <= 0 {
		errs = append(errs, "session.max_replay_cache must be positive")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug/info/warn/error", cfg.Logging.Level))
	}

	switch cfg.Vault.Backend {
	case "file", "memory":
	default:
		errs = append(errs, fmt.Sprintf("vault.backend %q is not one of file/memory", cfg.Vault.Backend))
	}
	if cfg.Vault.Backend == "file" && cfg.Vault.Directory == "" {
		errs = append(errs, "vault.directory is required when vault.backend is file")
	}

	if cfg.Audit.Enabled {
		if cfg.Audit.Host == "" {
			errs = append(errs, "audit.host is required when audit.enabled is true")
		}
		if cfg.Audit.Database == "" {
			errs = append(errs, "audit.database is required when audit.enabled is true")
		}
	}

	return errs
}
