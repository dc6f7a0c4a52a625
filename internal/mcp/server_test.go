package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/psiz/internal/store"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.psiz/
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0755); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
}

func TestNewServer(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		Root:    tmpDir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.engine == nil {
		t.Error("Server.engine is nil")
	}
	if server.root != tmpDir {
		t.Errorf("Server.root = %q, want %q", server.root, tmpDir)
	}

	dbPath := filepath.Join(tmpDir, ".psiz", "psiz.db")
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected database at %s: %v", dbPath, err)
	}
}

func TestNewServer_StoreDir(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	storeDir := filepath.Join(tmpDir, "custom")

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir, StoreDir: storeDir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if _, err := os.Stat(filepath.Join(storeDir, "psiz.db")); err != nil {
		t.Errorf("expected database in custom dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(storeDir, "audit.jsonl")); err != nil {
		t.Errorf("expected audit log in custom dir: %v", err)
	}
}

func TestServer_CloseTwice(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("second Close returned %v, want nil", err)
	}
}

func TestNewServer_InjectedStore(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	mem := store.NewInMemoryTrialStore()

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir, Store: mem})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.store != store.TrialStore(mem) {
		t.Error("expected the injected store")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ".psiz", "psiz.db")); !os.IsNotExist(err) {
		t.Errorf("expected no database file, stat error = %v", err)
	}
}
