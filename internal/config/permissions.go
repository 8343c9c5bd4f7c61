// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package config

import (
	"io/fs"
	"log/slog"
	"os"
	"runtime"
)

// InsecurePermissions reports whether the file at path is readable by group
// or others. It is always false on Windows, which uses ACLs.
func InsecurePermissions(path string) (bool, error) {
	if runtime.GOOS == "windows" {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	const groupOrOtherRead fs.FileMode = 0o044
	return info.Mode().Perm()&groupOrOtherRead != 0, nil
}

// WarnInsecurePermissions logs a warning when a config file that may hold
// provider API keys is readable by other users.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}
	insecure, err := InsecurePermissions(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if insecure {
		slog.Warn("config file is readable by other users and may expose provider API keys",
			"path", path,
			"recommended", "0600")
	}
}
