// Package home locates and creates the on-disk directory tree a download
// session reads and writes under: a raw-data tree for persisted book info,
// a cache tree for HTML page dumps and the chapter store, and per-site
// session state.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the novelcore home directory.
	DefaultDirName = ".novelcore"

	// RawDirName is the subdirectory persisted book_info.json documents are
	// written under.
	RawDirName = "raw"

	// CacheDirName is the subdirectory HTML page dumps and the CLI's chapter
	// store are written under.
	CacheDirName = "cache"

	// StateDirName is the subdirectory session cookies are persisted under.
	StateDirName = "state"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the novelcore home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path. If path is empty, uses the
// default (~/.novelcore).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// RawPath returns the path to the raw-data directory for a site.
func (d *Dir) RawPath(site string) string {
	return filepath.Join(d.path, RawDirName, site)
}

// CachePath returns the path to the cache directory for a site.
func (d *Dir) CachePath(site string) string {
	return filepath.Join(d.path, CacheDirName, site)
}

// StatePath returns the path to the session-state directory for a site.
func (d *Dir) StatePath(site string) string {
	return filepath.Join(d.path, StateDirName, site)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and its per-site subdirectories
// for site, if they don't already exist.
func (d *Dir) EnsureExists(site string) error {
	for _, p := range []string{d.RawPath(site), d.CachePath(site), d.StatePath(site)} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
