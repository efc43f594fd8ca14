// Package paths resolves the data directories teamwire writes to.
package paths

import (
	"os"
	"path/filepath"
)

// DataDir returns the base directory for persistent data, honoring
// XDG_DATA_HOME and falling back to ~/.local/share.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "teamwire")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "teamwire-data"
	}
	return filepath.Join(home, ".local", "share", "teamwire")
}

// SessionDBPath returns the default path of the team session database.
func SessionDBPath() string {
	return filepath.Join(DataDir(), "sessions.db")
}
