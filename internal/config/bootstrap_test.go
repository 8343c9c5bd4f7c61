// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrixa-lab/sentrixa/internal/config"
)

func TestBootstrapConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := config.BootstrapConfig()
	require.Equal(t, filepath.Join(home, ".config", "sentrixa", "sentrixa.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)

	// Second call leaves the existing file alone.
	assert.Empty(t, config.BootstrapConfig())
}

func TestInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mode bits are not used on windows")
	}
	dir := t.TempDir()

	private := filepath.Join(dir, "private.yaml")
	require.NoError(t, os.WriteFile(private, nil, 0o600))
	insecure, err := config.InsecurePermissions(private)
	require.NoError(t, err)
	assert.False(t, insecure)

	shared := filepath.Join(dir, "shared.yaml")
	require.NoError(t, os.WriteFile(shared, nil, 0o600))
	require.NoError(t, os.Chmod(shared, 0o644))
	insecure, err = config.InsecurePermissions(shared)
	require.NoError(t, err)
	assert.True(t, insecure)

	_, err = config.InsecurePermissions(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
