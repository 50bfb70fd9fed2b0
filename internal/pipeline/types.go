package pipeline

import (
	"time"

	"github.com/go-novel/novelcore/internal/novel"
)

// CidTask carries a chapter identifier (or a pending restore) through the
// fetcher stage.
type CidTask struct {
	PrevCid string
	Cid     string
	Retry   int
	VolIdx  int
	ChapIdx int
}

// HtmlTask carries raw fetched pages through the parser stage.
type HtmlTask struct {
	Cid      string
	Retry    int
	HtmlList []string
	VolIdx   int
	ChapIdx  int
}

// RestoreTask asks the storage worker to resolve a missing chapter ID from
// its predecessor's parsed payload.
type RestoreTask struct {
	VolIdx  int
	ChapIdx int
	PrevCid string
}

// saveItem is a parsed chapter record routed to the storage worker,
// carrying the book-info slot it came from so chain-repair can update it.
type saveItem struct {
	Rec     novel.ChapterRecord
	VolIdx  int
	ChapIdx int
}

// Config is the caller-supplied DownloaderConfig: every tunable the
// pipeline reads, with the spec's defaults applied by Defaults/Config.normalize.
type Config struct {
	Site string

	RequestInterval  time.Duration
	RetryTimes       int
	BackoffFactor    time.Duration
	RawDataDir       string
	CacheDir         string
	DownloadWorkers  int
	ParserWorkers    int
	SkipExisting     bool
	LoginRequired    bool
	SaveHTML         bool
	StorageBatchSize int
	MaxRPS           float64 // <= 0 disables the rate limiter
	MaxConnections   int
}

// Defaults returns the spec's default DownloaderConfig values. Callers
// that care about the bool defaults (SkipExisting is true by default)
// should build their Config from Defaults() and override fields, since
// normalize() can only backfill zero-valued numeric/duration fields — a
// zero bool is ambiguous between "false" and "unset".
func Defaults() Config {
	return Config{
		RequestInterval:  2 * time.Second,
		RetryTimes:       3,
		BackoffFactor:    time.Second,
		DownloadWorkers:  4,
		ParserWorkers:    4,
		SkipExisting:     true,
		SaveHTML:         false,
		StorageBatchSize: 1,
		MaxConnections:   4,
	}
}

func (c Config) normalize() Config {
	d := Defaults()
	if c.RequestInterval <= 0 {
		c.RequestInterval = d.RequestInterval
	}
	if c.RetryTimes <= 0 {
		c.RetryTimes = d.RetryTimes
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = d.BackoffFactor
	}
	if c.DownloadWorkers <= 0 {
		c.DownloadWorkers = d.DownloadWorkers
	}
	if c.ParserWorkers <= 0 {
		c.ParserWorkers = d.ParserWorkers
	}
	if c.StorageBatchSize <= 0 {
		c.StorageBatchSize = d.StorageBatchSize
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = c.DownloadWorkers
	}
	return c
}

// ProgressReporter is called by the storage worker after each successful
// save and by the enqueue loop for chapters counted as already done. It
// must be non-blocking, or dispatch to its own executor.
type ProgressReporter func(completed, total int)

// Options configures a single Download/DownloadMany call.
type Options struct {
	Progress ProgressReporter
	// Username/Password/Cookies feed SessionLifecycle when LoginRequired.
	Username string
	Password string
	Cookies  []novel.Cookie
}
