// Package bookinfo loads and refreshes the persisted table-of-contents and
// metadata document for a book, deciding whether a cached copy is still
// fresh enough to use.
package bookinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-novel/novelcore/internal/novel"
)

// Stage loads, refreshes, and persists book_info.json for one site.
type Stage struct {
	RawDataDir string
	SaveHTML   bool
	CacheDir   string
	Site       string

	logger *slog.Logger
}

// New constructs a Stage, defaulting the logger.
func New(site, rawDataDir, cacheDir string, saveHTML bool, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{Site: site, RawDataDir: rawDataDir, CacheDir: cacheDir, SaveHTML: saveHTML, logger: logger.With("component", "bookinfo", "site", site)}
}

func (s *Stage) infoPath(bookID string) string {
	return filepath.Join(s.RawDataDir, s.Site, bookID, "book_info.json")
}

// Load implements the decision rule: use the cached copy if it parses and
// is no more than novel.StaleAfter old (per its UTC+8 update_time);
// otherwise re-fetch via fetcher/parser.
func (s *Stage) Load(ctx context.Context, bookID string, fetcher novel.Fetcher, parser novel.Parser) (novel.BookInfo, error) {
	cached, cacheErr := s.loadCached(bookID)
	if cacheErr == nil && s.isFresh(cached) {
		return cached, nil
	}
	if cacheErr != nil {
		s.logger.Debug("book_info cache miss or unreadable, refetching", "book_id", bookID, "error", cacheErr)
	}

	info, err := s.refetch(ctx, bookID, fetcher, parser)
	if err != nil {
		s.logger.Warn("book_info refetch failed, falling back", "book_id", bookID, "error", err)
		if cacheErr == nil {
			return cached, nil
		}
		return novel.BookInfo{Status: novel.InfoNotFound, BookName: novel.NotFoundBookName}, nil
	}

	if info.Status == novel.InfoNotFound {
		// Keep the previous cached copy, if any, rather than destroy it.
		if cacheErr == nil {
			return cached, nil
		}
		return info, nil
	}

	if err := s.Persist(bookID, info); err != nil {
		s.logger.Warn("persist book_info failed", "book_id", bookID, "error", err)
	}
	return info, nil
}

func (s *Stage) loadCached(bookID string) (novel.BookInfo, error) {
	raw, err := os.ReadFile(s.infoPath(bookID))
	if err != nil {
		return novel.BookInfo{}, err
	}
	var info novel.BookInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return novel.BookInfo{}, err
	}
	info.Status = novel.InfoFound
	return info, nil
}

func (s *Stage) isFresh(info novel.BookInfo) bool {
	if info.UpdateTime == "" {
		return false
	}
	t, err := time.ParseInLocation(novel.BookInfoTimeLayout, info.UpdateTime, novel.UTC8)
	if err != nil {
		// Parse failures are treated as stale, per the staleness policy.
		return false
	}
	return time.Now().In(novel.UTC8).Sub(t) <= novel.StaleAfter
}

func (s *Stage) refetch(ctx context.Context, bookID string, fetcher novel.Fetcher, parser novel.Parser) (novel.BookInfo, error) {
	pages, err := fetcher.GetBookInfo(ctx, bookID)
	if err != nil {
		return novel.BookInfo{}, fmt.Errorf("fetch book info: %w", err)
	}

	if s.SaveHTML {
		s.dumpHTML(bookID, pages)
	}

	info, err := parser.ParseBookInfo(pages)
	if err != nil {
		return novel.BookInfo{}, fmt.Errorf("parse book info: %w", err)
	}
	if info.UpdateTime == "" {
		info.UpdateTime = time.Now().In(novel.UTC8).Format(novel.BookInfoTimeLayout)
	}
	return info, nil
}

func (s *Stage) dumpHTML(bookID string, pages []string) {
	dir := filepath.Join(s.CacheDir, s.Site, bookID, "html")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("create html cache dir failed", "error", err)
		return
	}
	for i, page := range pages {
		name := filepath.Join(dir, fmt.Sprintf("book_info_%d.html", i))
		if err := os.WriteFile(name, []byte(page), 0o644); err != nil {
			s.logger.Warn("write html cache failed", "file", name, "error", err)
		}
	}
}

// Persist writes info to raw/<site>/<book_id>/book_info.json.
func (s *Stage) Persist(bookID string, info novel.BookInfo) error {
	p := s.infoPath(bookID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create book_info dir: %w", err)
	}
	raw, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode book_info: %w", err)
	}
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		return fmt.Errorf("write book_info: %w", err)
	}
	return nil
}

// IsNotFoundName reports whether name matches a known not-found sentinel
// (the typed InfoStatus replaces this for in-process logic; this remains
// useful only when decoding book names from raw site payloads).
func IsNotFoundName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), novel.NotFoundBookName)
}
