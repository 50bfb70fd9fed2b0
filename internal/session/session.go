// Package session persists and restores per-site login state (cookies and
// storage state) and implements the pipeline's login-required lifecycle:
// prepare before a download, finalize after.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-novel/novelcore/internal/novel"
)

// Store loads and saves SessionState documents to a per-site file.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir (one file per site beneath it).
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("component", "session")}
}

func (s *Store) path(site string) string {
	return filepath.Join(s.dir, site, "session_state.cookies")
}

// Load reads the persisted SessionState for site. A missing file is not an
// error: it returns the zero value and ok=false.
func (s *Store) Load(site string) (novel.SessionState, bool, error) {
	raw, err := os.ReadFile(s.path(site))
	if os.IsNotExist(err) {
		return novel.SessionState{}, false, nil
	}
	if err != nil {
		return novel.SessionState{}, false, fmt.Errorf("read session state for %s: %w", site, err)
	}
	var st novel.SessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return novel.SessionState{}, false, fmt.Errorf("decode session state for %s: %w", site, err)
	}
	return st, true, nil
}

// Save persists SessionState for site, creating parent directories as
// needed.
func (s *Store) Save(site string, st novel.SessionState) error {
	p := s.path(site)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create session dir for %s: %w", site, err)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state for %s: %w", site, err)
	}
	if err := os.WriteFile(p, raw, 0o600); err != nil {
		return fmt.Errorf("write session state for %s: %w", site, err)
	}
	return nil
}

// ParseExpiry accepts the cookie expiry formats seen in the wild: an
// integer epoch-seconds string, or an RFC-1123 date string. Anything else
// (including the empty string) falls back to -1, marking a session cookie.
func ParseExpiry(raw string) int64 {
	if raw == "" {
		return -1
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return secs
	}
	if t, err := time.Parse(time.RFC1123, raw); err == nil {
		return t.Unix()
	}
	if t, err := time.Parse(time.RFC1123Z, raw); err == nil {
		return t.Unix()
	}
	return -1
}

// Lifecycle drives login/state prepare-and-finalize around one book
// download, per the pipeline's session contract.
type Lifecycle struct {
	Store   *Store
	Fetcher novel.Fetcher
	Site    string

	// LoginRequired, when true, means Prepare must end with the fetcher
	// authenticated or the book is skipped entirely.
	LoginRequired bool

	// Username/Password/Cookies are whatever credentials the caller
	// supplied up front for Fetcher.Login; any may be empty.
	Username string
	Password string
	Cookies  []novel.Cookie

	logger *slog.Logger
}

// NewLifecycle constructs a Lifecycle, defaulting the logger.
func NewLifecycle(store *Store, fetcher novel.Fetcher, site string, loginRequired bool, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{Store: store, Fetcher: fetcher, Site: site, LoginRequired: loginRequired, logger: logger.With("component", "session", "site", site)}
}

// ErrLoginFailed is returned by Prepare when LoginRequired is set and no
// valid session could be established.
var ErrLoginFailed = fmt.Errorf("login required but not established")

// Prepare attempts LoadState, falling back to Login when required. It
// returns nil if the fetcher is ready to use (either login isn't required,
// or it succeeded).
func (l *Lifecycle) Prepare(ctx context.Context) error {
	if !l.LoginRequired {
		return nil
	}

	ok, err := l.Fetcher.LoadState(ctx)
	if err != nil {
		l.logger.Warn("load state failed", "error", err)
	}
	if ok && l.Fetcher.IsLoggedIn() {
		l.logger.Info("restored session from saved state")
		return nil
	}

	for attempt := 0; attempt < 1; attempt++ {
		authed, err := l.Fetcher.Login(ctx, l.Username, l.Password, l.Cookies, attempt)
		if err != nil {
			l.logger.Warn("login attempt failed", "attempt", attempt, "error", err)
			continue
		}
		if authed {
			return nil
		}
	}

	return ErrLoginFailed
}

// Finalize persists session state if the fetcher ended up authenticated.
func (l *Lifecycle) Finalize(ctx context.Context) {
	if !l.Fetcher.IsLoggedIn() {
		return
	}
	if err := l.Fetcher.SaveState(ctx); err != nil {
		l.logger.Warn("save state failed", "error", err)
	}
}
