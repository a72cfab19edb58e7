package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHome_Environment(t *testing.T) {
	t.Setenv(EnvHome, "/custom/home")

	home, err := GetHome()
	if err != nil {
		t.Fatalf("GetHome() error = %v", err)
	}
	if home != "/custom/home" {
		t.Errorf("GetHome() = %q, want /custom/home", home)
	}
}

func TestFindHome(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, ok := findHome(nested); ok {
		t.Fatal("findHome() found a home before one exists")
	}

	if err := os.MkdirAll(filepath.Join(root, HomeDirName), 0755); err != nil {
		t.Fatal(err)
	}
	got, ok := findHome(nested)
	if !ok {
		t.Fatal("findHome() did not find the ancestor home")
	}
	if got != filepath.Join(root, HomeDirName) {
		t.Errorf("findHome() = %q", got)
	}
}

func TestResolveDBPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)

	got, err := ResolveDBPath(filepath.Join("db", "results.db"))
	if err != nil {
		t.Fatalf("ResolveDBPath() error = %v", err)
	}
	if got != filepath.Join(home, "db", "results.db") {
		t.Errorf("ResolveDBPath() = %q", got)
	}
	if info, err := os.Stat(filepath.Join(home, "db")); err != nil || !info.IsDir() {
		t.Errorf("database directory not created: %v", err)
	}

	mem, err := ResolveDBPath(":memory:")
	if err != nil || mem != ":memory:" {
		t.Errorf("ResolveDBPath(:memory:) = %q, %v", mem, err)
	}

	abs := filepath.Join(t.TempDir(), "x", "abs.db")
	got, err = ResolveDBPath(abs)
	if err != nil || got != abs {
		t.Errorf("ResolveDBPath(abs) = %q, %v", got, err)
	}
}
