// Package appdir resolves the per-user directory used to persist the
// dependency optimizer's cache and manifest across server restarts.
package appdir

import (
	"os"
	"path/filepath"
	"runtime"
)

// Get returns the OS-appropriate home for this tool's cache and state.
func Get() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(homeDir, ".vite-devcore")
	if runtime.GOOS == "windows" {
		dir = filepath.Join(homeDir, "AppData\\Local\\vite-devcore")
	}

	return dir, nil
}
