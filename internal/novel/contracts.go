package novel

import "context"

// Fetcher is the per-site HTTP/browser session contract. Implementations
// are shared across the pipeline's fetcher pool and must be safe under N
// concurrent GetBookChapter calls bounded by max_connections; rate limiting,
// retries, and backoff on transient HTTP failures are the Fetcher's own
// responsibility, not the pipeline's.
type Fetcher interface {
	// Init prepares the fetcher for use (e.g. opening an HTTP client, a
	// headless browser context). Close releases those resources; both are
	// safe to call even if the other was never called.
	Init(ctx context.Context) error
	Close(ctx context.Context) error

	// Login attempts to authenticate, returning true iff the session is
	// now authenticated. username/password/cookies are whatever the
	// caller supplied for the fields declared by LoginFields; any of them
	// may be empty if the corresponding field wasn't required.
	Login(ctx context.Context, username, password string, cookies []Cookie, attempt int) (bool, error)

	// LoadState restores persisted session state (cookies, storage state)
	// from disk, returning true iff a usable session was restored.
	LoadState(ctx context.Context) (bool, error)
	// SaveState persists the current session state to disk.
	SaveState(ctx context.Context) error

	IsLoggedIn() bool
	LoginFields() []FieldSpec

	// GetBookInfo returns one or more raw pages (info, catalog, volume
	// indices) for the given book.
	GetBookInfo(ctx context.Context, bookID string) ([]string, error)

	// GetBookChapter returns one or more raw pages for a single chapter.
	GetBookChapter(ctx context.Context, bookID, chapterID string) ([]string, error)
}

// Parser is the pure, deterministic per-site transform from raw page HTML
// to structured records. Implementations may consult cached resources
// (fonts, OCR tables) but must not depend on mutable global state that the
// pipeline can observe.
type Parser interface {
	// ParseBookInfo turns the pages returned by Fetcher.GetBookInfo into a
	// BookInfo. A parser that cannot find a book name at all should return
	// a BookInfo with Status == InfoNotFound rather than guessing.
	ParseBookInfo(htmlList []string) (BookInfo, error)

	// ParseChapter turns the pages returned by Fetcher.GetBookChapter into
	// a ChapterRecord. A nil record (with nil error) signals an
	// unparseable page; the pipeline will retry it up to retry_times.
	ParseChapter(htmlList []string, chapterID string) (*ChapterRecord, error)
}
