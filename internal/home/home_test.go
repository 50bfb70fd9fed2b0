package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-novelcore")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-novelcore" {
			t.Errorf("expected path /tmp/test-novelcore, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-novelcore")

	t.Run("RawPath", func(t *testing.T) {
		expected := "/tmp/test-novelcore/raw/biquge"
		if dir.RawPath("biquge") != expected {
			t.Errorf("expected %s, got %s", expected, dir.RawPath("biquge"))
		}
	})

	t.Run("CachePath", func(t *testing.T) {
		expected := "/tmp/test-novelcore/cache/biquge"
		if dir.CachePath("biquge") != expected {
			t.Errorf("expected %s, got %s", expected, dir.CachePath("biquge"))
		}
	})

	t.Run("StatePath", func(t *testing.T) {
		expected := "/tmp/test-novelcore/state/biquge"
		if dir.StatePath("biquge") != expected {
			t.Errorf("expected %s, got %s", expected, dir.StatePath("biquge"))
		}
	})

	t.Run("ConfigPath", func(t *testing.T) {
		expected := "/tmp/test-novelcore/config.yaml"
		if dir.ConfigPath() != expected {
			t.Errorf("expected %s, got %s", expected, dir.ConfigPath())
		}
	})
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	homeDir := filepath.Join(tmpDir, "novelcore-test")

	dir, err := New(homeDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists("biquge"); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}

	for _, p := range []string{dir.RawPath("biquge"), dir.CachePath("biquge"), dir.StatePath("biquge")} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Errorf("%s should exist after EnsureExists", p)
		}
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}
