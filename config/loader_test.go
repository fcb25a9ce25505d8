// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigDir: filepath.Join(t.TempDir(), "nonexistent")})
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Session.MaxCiphertext, cfg.Session.MaxCiphertext)
}

func TestLoadReadsEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	require.NoError(t, SaveToFile(&cfg, filepath.Join(dir, "staging.yaml")))

	loaded, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	require.Equal(t, "debug", loaded.Logging.Level)
	require.Equal(t, "staging", loaded.Environment)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("SOFT_ENCLAVE_LOG_LEVEL", "warn")
	t.Setenv("SOFT_ENCLAVE_VAULT_DIR", "/override/keys")

	cfg, err := Load(LoaderOptions{ConfigDir: filepath.Join(t.TempDir(), "nonexistent")})
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, "/override/keys", cfg.Vault.Directory)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: nonsense\n"), 0o644))

	_, err := Load(LoaderOptions{ConfigDir: dir})
	require.Error(t, err)
}

func TestMustLoadPanicsOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vault:\n  backend: unknown\n"), 0o644))

	require.Panics(t, func() {
		MustLoad(LoaderOptions{ConfigDir: dir})
	})
}
