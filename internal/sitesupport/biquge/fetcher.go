// Package biquge is a reference Fetcher/Parser pair for a simple
// session-cookie site with single-page chapters: no login is required,
// and GetBookInfo/GetBookChapter each return exactly one HTML page.
package biquge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/go-novel/novelcore/internal/jitter"
	"github.com/go-novel/novelcore/internal/novel"
)

const (
	bookInfoURLFormat = "http://www.b520.cc/%s/"
	chapterURLFormat  = "http://www.b520.cc/%s/%s.html"
)

// Config configures a Fetcher.
type Config struct {
	HTTPClient   *http.Client
	RetryTimes   uint
	RetryBackoff time.Duration
}

// Fetcher implements novel.Fetcher for the biquge reference site. No
// authentication is required, so Login/LoadState/SaveState are no-ops
// that report success.
type Fetcher struct {
	client *http.Client
	jar    *cookiejar.Jar

	retryTimes   uint
	retryBackoff time.Duration
}

// New constructs a Fetcher, applying sane defaults for any zero-valued
// Config fields.
func New(cfg Config) (*Fetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("biquge: create cookie jar: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	client.Jar = jar

	retryTimes := cfg.RetryTimes
	if retryTimes == 0 {
		retryTimes = 3
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = time.Second
	}

	return &Fetcher{client: client, jar: jar, retryTimes: retryTimes, retryBackoff: retryBackoff}, nil
}

func (f *Fetcher) Init(context.Context) error  { return nil }
func (f *Fetcher) Close(context.Context) error { return nil }

// Login is a no-op: biquge needs no authentication.
func (f *Fetcher) Login(context.Context, string, string, []novel.Cookie, int) (bool, error) {
	return true, nil
}

func (f *Fetcher) LoadState(context.Context) (bool, error) { return true, nil }
func (f *Fetcher) SaveState(context.Context) error          { return nil }
func (f *Fetcher) IsLoggedIn() bool                         { return true }
func (f *Fetcher) LoginFields() []novel.FieldSpec           { return nil }

func (f *Fetcher) GetBookInfo(ctx context.Context, bookID string) ([]string, error) {
	page, err := f.get(ctx, fmt.Sprintf(bookInfoURLFormat, bookID))
	if err != nil {
		return nil, err
	}
	return []string{page}, nil
}

func (f *Fetcher) GetBookChapter(ctx context.Context, bookID, chapterID string) ([]string, error) {
	page, err := f.get(ctx, fmt.Sprintf(chapterURLFormat, bookID, chapterID))
	if err != nil {
		return nil, err
	}
	return []string{page}, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	var body string
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("biquge: status %d for %s", resp.StatusCode, url)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("biquge: status %d for %s", resp.StatusCode, url))
			}
			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			body = string(raw)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.retryTimes),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return jitter.Backoff(int(n), f.retryBackoff, 0)
		}),
	)
	return body, err
}
