package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DatabaseName is the file name of the SQLite database inside a .psiz directory.
const DatabaseName = "psiz.db"

// GlobalPsizPath returns the path to the global .psiz directory.
// On Unix: ~/.psiz
// On Windows: %USERPROFILE%\.psiz
func GlobalPsizPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".psiz"), nil
}

// LocalPsizPath returns the path to the local .psiz directory
// for the given project root.
func LocalPsizPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".psiz")
}

// EnsureGlobalPsizDir creates the global .psiz directory if it doesn't exist.
func EnsureGlobalPsizDir() error {
	globalPath, err := GlobalPsizPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(globalPath, 0755); err != nil {
		return fmt.Errorf("failed to create global .psiz directory: %w", err)
	}

	return nil
}
