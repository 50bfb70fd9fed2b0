// Package yamibo is a reference Fetcher/Parser pair for a login-required
// site with multi-page chapters: a two-step CSRF-token login form, cookie
// persistence via internal/session, and a chapter page that may be served
// paginated or, for premium content, in an encrypted variant.
package yamibo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/net/html"

	"github.com/go-novel/novelcore/internal/jitter"
	"github.com/go-novel/novelcore/internal/novel"
	"github.com/go-novel/novelcore/internal/session"
)

const (
	baseURL       = "https://www.yamibo.com"
	loginURL      = baseURL + "/user/login"
	bookcaseURL   = baseURL + "/my/fav"
	bookInfoURL   = baseURL + "/novel/%s"
	chapterURL    = baseURL + "/novel/view-chapter?id=%s"
	loggedOutMark = "用户名/邮箱"
)

// Config configures a Fetcher.
type Config struct {
	HTTPClient   *http.Client
	RetryTimes   uint
	RetryBackoff time.Duration
	StateDir     string // directory session_state.cookies is persisted under
}

// Fetcher implements novel.Fetcher for the yamibo reference site.
type Fetcher struct {
	client *http.Client
	jar    *cookiejar.Jar
	states *session.Store

	retryTimes   uint
	retryBackoff time.Duration

	mu       sync.Mutex
	loggedIn bool
}

// New constructs a Fetcher, applying sane defaults for any zero-valued
// Config fields.
func New(cfg Config) (*Fetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("yamibo: create cookie jar: %w", err)
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
	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = "."
	}

	return &Fetcher{
		client:       client,
		jar:          jar,
		states:       session.NewStore(stateDir, nil),
		retryTimes:   retryTimes,
		retryBackoff: retryBackoff,
	}, nil
}

func (f *Fetcher) Init(context.Context) error  { return nil }
func (f *Fetcher) Close(context.Context) error { return nil }

func (f *Fetcher) IsLoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn
}

func (f *Fetcher) LoginFields() []novel.FieldSpec {
	return []novel.FieldSpec{
		{Name: "username", Type: novel.FieldText, Required: true, Description: "yamibo account username or email"},
		{Name: "password", Type: novel.FieldPassword, Required: true, Description: "yamibo account password"},
	}
}

// LoadState restores cookies persisted under the site's state directory and
// checks whether they still represent an authenticated session.
func (f *Fetcher) LoadState(ctx context.Context) (bool, error) {
	st, ok, err := f.states.Load("")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	setCookies(f.jar, st)

	authed, err := f.checkLoginStatus(ctx)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	f.loggedIn = authed
	f.mu.Unlock()
	return authed, nil
}

// SaveState persists the jar's current cookies for this site.
func (f *Fetcher) SaveState(context.Context) error {
	base, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	var cookies []novel.Cookie
	for _, c := range f.jar.Cookies(base) {
		expires := int64(-1)
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		cookies = append(cookies, novel.Cookie{Name: c.Name, Value: c.Value, Domain: base.Host, Path: "/", Expires: expires})
	}
	return f.states.Save("", novel.SessionState{Cookies: cookies})
}

func setCookies(jar *cookiejar.Jar, st novel.SessionState) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return
	}
	cookies := make([]*http.Cookie, 0, len(st.Cookies))
	for _, c := range st.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	jar.SetCookies(base, cookies)
}

// Login restores persisted cookies, checks whether they're still valid,
// and otherwise performs the two-step CSRF-token login form.
func (f *Fetcher) Login(ctx context.Context, username, password string, _ []novel.Cookie, attempt int) (bool, error) {
	if attempt == 0 {
		if ok, err := f.LoadState(ctx); err == nil && ok {
			return true, nil
		}
	}

	if username == "" || password == "" {
		return false, fmt.Errorf("yamibo: login requires username and password")
	}

	csrf, err := f.fetchCSRFToken(ctx)
	if err != nil {
		return false, fmt.Errorf("yamibo: fetch csrf token: %w", err)
	}

	form := url.Values{
		"_csrf-frontend":        {csrf},
		"LoginForm[username]":   {username},
		"LoginForm[password]":   {password},
		"LoginForm[rememberMe]": {"1"},
		"login-button":          {""},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", baseURL)
	req.Header.Set("Referer", loginURL)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	authed := strings.Contains(string(body), "登录成功")
	if !authed {
		authed, err = f.checkLoginStatus(ctx)
		if err != nil {
			return false, err
		}
	}

	f.mu.Lock()
	f.loggedIn = authed
	f.mu.Unlock()
	return authed, nil
}

func (f *Fetcher) fetchCSRFToken(ctx context.Context) (string, error) {
	page, err := f.get(ctx, loginURL)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	token := findInputValue(doc, "_csrf-frontend")
	if token == "" {
		return "", fmt.Errorf("csrf token not found")
	}
	return token, nil
}

func (f *Fetcher) checkLoginStatus(ctx context.Context) (bool, error) {
	page, err := f.get(ctx, bookcaseURL)
	if err != nil {
		return false, err
	}
	return !strings.Contains(page, loggedOutMark), nil
}

func (f *Fetcher) GetBookInfo(ctx context.Context, bookID string) ([]string, error) {
	page, err := f.get(ctx, fmt.Sprintf(bookInfoURL, bookID))
	if err != nil {
		return nil, err
	}
	return []string{page}, nil
}

// GetBookChapter fetches every page of a chapter, following "next page"
// links until none remain (multi-page chapters).
func (f *Fetcher) GetBookChapter(ctx context.Context, _, chapterID string) ([]string, error) {
	var pages []string
	url := fmt.Sprintf(chapterURL, chapterID)
	for url != "" {
		page, err := f.get(ctx, url)
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
		url = nextPageURL(page)
		if strings.HasPrefix(url, "/") {
			url = baseURL + url
		}
	}
	return pages, nil
}

// nextPageURL returns the chapter's next-page URL if the page advertises
// one, else "".
func nextPageURL(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	return findHrefByClass(doc, "pager-next")
}

func (f *Fetcher) get(ctx context.Context, target string) (string, error) {
	var body string
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("yamibo: status %d for %s", resp.StatusCode, target)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("yamibo: status %d for %s", resp.StatusCode, target))
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
