// Package mockfetcher is an in-memory novel.Fetcher double for pipeline
// tests, following the pack's error-injection convention: exported fields
// let a test script canned responses and transient failures per call.
package mockfetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-novel/novelcore/internal/novel"
)

// Fetcher is a scriptable novel.Fetcher.
type Fetcher struct {
	mu sync.Mutex

	// BookInfoPages maps book ID to the pages GetBookInfo returns.
	BookInfoPages map[string][]string

	// ChapterPages maps chapter ID to the pages GetBookChapter returns.
	ChapterPages map[string][]string

	// FailChapterTimes makes GetBookChapter fail for a chapter ID the
	// first N calls, then succeed; decremented on each failing call.
	FailChapterTimes map[string]int

	// LoginOK controls what Login returns; LoggedIn starts true if the
	// site never needs a real login flow.
	LoginOK   bool
	LoggedIn  bool
	StateOK   bool

	calls map[string]int
}

// New creates an empty Fetcher double.
func New() *Fetcher {
	return &Fetcher{
		BookInfoPages:    make(map[string][]string),
		ChapterPages:     make(map[string][]string),
		FailChapterTimes: make(map[string]int),
		calls:            make(map[string]int),
	}
}

func (f *Fetcher) Init(context.Context) error  { return nil }
func (f *Fetcher) Close(context.Context) error { return nil }

func (f *Fetcher) Login(_ context.Context, _, _ string, _ []novel.Cookie, _ int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoggedIn = f.LoginOK
	return f.LoginOK, nil
}

func (f *Fetcher) LoadState(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StateOK {
		f.LoggedIn = true
	}
	return f.StateOK, nil
}

func (f *Fetcher) SaveState(context.Context) error { return nil }
func (f *Fetcher) IsLoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LoggedIn
}
func (f *Fetcher) LoginFields() []novel.FieldSpec { return nil }

func (f *Fetcher) GetBookInfo(_ context.Context, bookID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages, ok := f.BookInfoPages[bookID]
	if !ok {
		return nil, fmt.Errorf("mockfetcher: no book info pages scripted for %s", bookID)
	}
	return pages, nil
}

// GetBookChapter returns the scripted pages for chapterID, honoring
// FailChapterTimes.
func (f *Fetcher) GetBookChapter(_ context.Context, _, chapterID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[chapterID]++

	if remaining, ok := f.FailChapterTimes[chapterID]; ok && remaining > 0 {
		f.FailChapterTimes[chapterID] = remaining - 1
		return nil, fmt.Errorf("mockfetcher: injected failure for %s", chapterID)
	}
	pages, ok := f.ChapterPages[chapterID]
	if !ok {
		return nil, fmt.Errorf("mockfetcher: no pages scripted for %s", chapterID)
	}
	return pages, nil
}

// CallCount returns how many times GetBookChapter was called for chapterID.
func (f *Fetcher) CallCount(chapterID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[chapterID]
}
