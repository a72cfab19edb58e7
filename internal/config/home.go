package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeDirName is the per-project directory holding config and the results database
const HomeDirName = ".rescuelens"

// EnvHome overrides the rescuelens home directory
const EnvHome = "RESCUELENS_HOME"

// GetHome returns the rescuelens home directory
// Priority order:
//  1. RESCUELENS_HOME environment variable (if set)
//  2. The nearest ancestor of the working directory containing .rescuelens
//  3. .rescuelens under the current working directory (fallback)
func GetHome() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	if found, ok := findHome(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, HomeDirName), nil
}

// findHome walks up from dir looking for an existing .rescuelens directory
func findHome(dir string) (string, bool) {
	current := dir
	for {
		candidate := filepath.Join(current, HomeDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// ResolveDBPath resolves a relative database path against the home
// directory and creates the containing directory.
// ":memory:" is returned unchanged.
func ResolveDBPath(dbPath string) (string, error) {
	if dbPath == ":memory:" || filepath.IsAbs(dbPath) {
		return dbPath, ensureParent(dbPath)
	}

	home, err := GetHome()
	if err != nil {
		return "", err
	}

	resolved := filepath.Join(home, dbPath)
	return resolved, ensureParent(resolved)
}

func ensureParent(path string) error {
	if path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}
