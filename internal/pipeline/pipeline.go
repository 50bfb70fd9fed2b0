// Package pipeline implements the download orchestrator: a producer/
// consumer pipeline of fetcher workers, CPU-bound parser workers, and a
// single storage worker that also drives chain-repair ("Restore") when a
// chapter's next ID must be discovered from its predecessor.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-novel/novelcore/internal/bookinfo"
	"github.com/go-novel/novelcore/internal/jitter"
	"github.com/go-novel/novelcore/internal/novel"
	"github.com/go-novel/novelcore/internal/ratelimit"
	"github.com/go-novel/novelcore/internal/session"
	"github.com/go-novel/novelcore/internal/store"
)

// Pipeline ties one site's collaborators together and runs downloads
// against them. All per-book mutable state (queues, counters,
// pending-restore map, book info) is scoped to a single Download call, not
// held on Pipeline itself — the same book can be downloaded again
// concurrently without cross-talk.
type Pipeline struct {
	cfg       Config
	fetcher   novel.Fetcher
	parser    novel.Parser
	chapters  store.ChapterStore
	sessions  *session.Store
	bookInfo  *bookinfo.Stage
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
}

// New constructs a Pipeline for one site from its collaborators.
func New(cfg Config, fetcher novel.Fetcher, parser novel.Parser, chapters store.ChapterStore, sessions *session.Store, info *bookinfo.Stage, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalize()
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		parser:   parser,
		chapters: chapters,
		sessions: sessions,
		bookInfo: info,
		limiter:  ratelimit.New(cfg.MaxRPS, cfg.DownloadWorkers),
		logger:   logger.With("component", "pipeline", "site", cfg.Site),
	}
}

// ErrSkippedLogin is returned when login_required is set and no session
// could be established; the caller should treat this book as skipped, not
// failed.
var ErrSkippedLogin = errors.New("pipeline: book skipped, login not established")

// Download runs the full pipeline for one book: ensure session, refresh
// book info, compute the enqueue plan, run the four-stage pipeline to
// completion, persist final state.
func (p *Pipeline) Download(ctx context.Context, book novel.BookConfig, opts Options) error {
	// A fresh run_id per call correlates this Download's log lines even when
	// the same book is downloaded again concurrently.
	logger := p.logger.With("book_id", book.BookID, "run_id", uuid.New().String())

	lifecycle := session.NewLifecycle(p.sessions, p.fetcher, p.cfg.Site, p.cfg.LoginRequired, logger)
	lifecycle.Username, lifecycle.Password, lifecycle.Cookies = opts.Username, opts.Password, opts.Cookies
	if err := lifecycle.Prepare(ctx); err != nil {
		logger.Warn("skipping book, session not established", "error", err)
		return ErrSkippedLogin
	}
	defer lifecycle.Finalize(ctx)

	info, err := p.bookInfo.Load(ctx, book.BookID, p.fetcher, p.parser)
	if err != nil {
		return fmt.Errorf("load book info: %w", err)
	}

	r := newRun(p, book, info, opts, logger)
	if err := r.execute(ctx); err != nil {
		return err
	}

	if err := p.bookInfo.Persist(book.BookID, r.info); err != nil {
		logger.Warn("persist updated book_info failed", "error", err)
	}
	if err := p.chapters.Flush(ctx); err != nil {
		logger.Warn("flush chapter store failed", "error", err)
	}
	return nil
}

// DownloadMany runs Download for each book in order, isolating and logging
// per-book errors rather than aborting the batch.
func (p *Pipeline) DownloadMany(ctx context.Context, books []novel.BookConfig, opts Options) []error {
	errs := make([]error, len(books))
	for i, b := range books {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		if err := p.Download(ctx, b, opts); err != nil {
			p.logger.Warn("book download failed", "book_id", b.BookID, "error", err)
			errs[i] = err
		}
	}
	return errs
}

// run holds all state scoped to one Download invocation: the four queues
// and their trackers, the pending-restore map, counters, and the mutable
// book-info copy chain-repair writes into. No field here is shared across
// books or across concurrent Download calls.
type run struct {
	p       *Pipeline
	book    novel.BookConfig
	info    novel.BookInfo
	opts    Options
	logger  *slog.Logger

	cidQueue     chan CidTask
	restoreQueue chan RestoreTask
	htmlQueue    chan HtmlTask
	saveQueue    chan saveItem

	cidT, restoreT, htmlT, saveT *tracker

	sem chan struct{} // fetcher concurrency gate, sized DownloadWorkers

	// storage-worker-owned state: touched only by the storage goroutine.
	pendingRestore map[string]RestoreTask

	progress *progress
}

func newRun(p *Pipeline, book novel.BookConfig, info novel.BookInfo, opts Options, logger *slog.Logger) *run {
	depth := p.cfg.DownloadWorkers + p.cfg.ParserWorkers + 16
	total := 0
	for _, v := range info.Volumes {
		total += len(v.Chapters)
	}
	return &run{
		p:              p,
		book:           book,
		info:           info,
		opts:           opts,
		logger:         logger,
		cidQueue:       make(chan CidTask, depth),
		restoreQueue:   make(chan RestoreTask, depth),
		htmlQueue:      make(chan HtmlTask, depth),
		saveQueue:      make(chan saveItem, depth),
		cidT:           newTracker(),
		restoreT:       newTracker(),
		htmlT:          newTracker(),
		saveT:          newTracker(),
		sem:            make(chan struct{}, p.cfg.DownloadWorkers),
		pendingRestore: make(map[string]RestoreTask),
		progress:       newProgress(total, opts.Progress),
	}
}

func (r *run) execute(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < r.p.cfg.DownloadWorkers; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); r.fetcherWorker(ctx) }()
	}
	for i := 0; i < r.p.cfg.ParserWorkers; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); r.parserWorker(ctx) }()
	}
	wg.Add(1)
	go func() { defer wg.Done(); r.storageWorker(ctx) }()

	r.enqueue(ctx)

	// Drain in dependency order: restore resolves into cid, cid into
	// html, html into save. Parser retries and chain-repair push work back
	// onto the cid queue after its wait may have returned, so the pass
	// repeats until a snapshot taken with every tracker locked is empty.
	trackers := []*tracker{r.restoreT, r.cidT, r.htmlT, r.saveT}
	var drainErr error
	for inFlight := 1; inFlight > 0 && drainErr == nil; {
		for _, t := range trackers {
			if err := t.wait(ctx); err != nil {
				drainErr = err
				break
			}
		}
		inFlight = 0
		for _, t := range trackers {
			t.lock()
			inFlight += t.count
		}
		for _, t := range trackers {
			t.unlock()
		}
	}

	cancel()
	wg.Wait()

	if len(r.pendingRestore) > 0 {
		for prevCid, rt := range r.pendingRestore {
			r.logger.Warn("dangling restore entry at shutdown", "prev_cid", prevCid, "vol_idx", rt.VolIdx, "chap_idx", rt.ChapIdx)
		}
	}

	if drainErr != nil {
		return fmt.Errorf("pipeline drain: %w", drainErr)
	}
	return nil
}

// enqueue walks book_info.volumes in reading order, producing CidTasks per
// the start_id/end_id/skip_existing selection rules (ignore_ids is applied
// later, by the fetcher worker). It runs on
// the caller's goroutine: workers are already running and draining the
// queue as it fills, so this never deadlocks on a bounded channel.
func (r *run) enqueue(ctx context.Context) {
	foundStart := r.book.StartID == ""
	lastCid := ""

outer:
	for volIdx := range r.info.Volumes {
		chapters := r.info.Volumes[volIdx].Chapters
		for chapIdx := range chapters {
			if ctx.Err() != nil {
				return
			}
			cid := chapters[chapIdx].ChapterID
			stopEarly := false

			if !foundStart {
				if cid == r.book.StartID {
					foundStart = true
				} else {
					r.progress.markDone()
					lastCid = cid
					continue
				}
			}

			if r.book.EndID != "" && cid == r.book.EndID {
				stopEarly = true
			}

			if cid != "" && r.p.cfg.SkipExisting {
				if exists, err := r.p.chapters.Exists(ctx, r.p.cfg.Site, r.book.BookID, cid); err == nil && exists {
					r.progress.markDone()
					lastCid = cid
					continue
				}
			}

			r.cidT.add(1)
			select {
			case r.cidQueue <- CidTask{PrevCid: lastCid, Cid: cid, VolIdx: volIdx, ChapIdx: chapIdx}:
			case <-ctx.Done():
				r.cidT.done()
				return
			}
			lastCid = cid

			if stopEarly {
				break outer
			}
		}
	}
}

func (r *run) fetcherWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-r.cidQueue:
			if !ok {
				return
			}
			r.processCidTask(ctx, t)
		}
	}
}

func (r *run) processCidTask(ctx context.Context, t CidTask) {
	defer r.cidT.done()

	if t.Cid == "" {
		if t.PrevCid != "" {
			r.restoreT.add(1)
			select {
			case r.restoreQueue <- RestoreTask{VolIdx: t.VolIdx, ChapIdx: t.ChapIdx, PrevCid: t.PrevCid}:
			case <-ctx.Done():
				r.restoreT.done()
			}
		} else {
			r.logger.Warn("dropping cid task with no cid and no prev_cid", "vol_idx", t.VolIdx, "chap_idx", t.ChapIdx)
		}
		return
	}

	if _, ignored := r.book.IgnoreIDs[t.Cid]; ignored {
		return
	}

	if err := r.p.limiter.Wait(ctx); err != nil {
		return
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	pages, err := r.p.fetcher.GetBookChapter(ctx, r.book.BookID, t.Cid)
	<-r.sem

	if err != nil {
		r.retryFetch(ctx, t, err)
		return
	}

	if err := jitter.Sleep(ctx, r.p.cfg.RequestInterval, 2*time.Second); err != nil {
		return
	}

	r.htmlT.add(1)
	select {
	case r.htmlQueue <- HtmlTask{Cid: t.Cid, Retry: t.Retry, HtmlList: pages, VolIdx: t.VolIdx, ChapIdx: t.ChapIdx}:
	case <-ctx.Done():
		r.htmlT.done()
	}
}

func (r *run) retryFetch(ctx context.Context, t CidTask, cause error) {
	if t.Retry >= r.p.cfg.RetryTimes {
		r.logger.Warn("fetch retries exhausted, dropping chapter", "cid", t.Cid, "error", cause)
		return
	}
	r.logger.Warn("fetch failed, retrying", "cid", t.Cid, "attempt", t.Retry+1, "error", cause)

	delay := jitter.Backoff(t.Retry, r.p.cfg.BackoffFactor, 0)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	r.cidT.add(1)
	next := CidTask{PrevCid: t.PrevCid, Cid: t.Cid, Retry: t.Retry + 1, VolIdx: t.VolIdx, ChapIdx: t.ChapIdx}
	select {
	case r.cidQueue <- next:
	case <-ctx.Done():
		r.cidT.done()
	}
}

func (r *run) parserWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-r.htmlQueue:
			if !ok {
				return
			}
			r.processHtmlTask(ctx, h)
		}
	}
}

func (r *run) processHtmlTask(ctx context.Context, h HtmlTask) {
	defer r.htmlT.done()

	rec, err := r.p.parser.ParseChapter(h.HtmlList, h.Cid)
	if err == nil && rec != nil && rec.Content != "" {
		r.saveT.add(1)
		select {
		case r.saveQueue <- saveItem{Rec: *rec, VolIdx: h.VolIdx, ChapIdx: h.ChapIdx}:
		case <-ctx.Done():
			r.saveT.done()
		}
		return
	}

	if h.Retry >= r.p.cfg.RetryTimes {
		r.logger.Warn("parse retries exhausted, dropping chapter", "cid", h.Cid, "error", err)
		return
	}
	r.logger.Warn("parse failed, retrying", "cid", h.Cid, "attempt", h.Retry+1, "error", err)

	r.cidT.add(1)
	next := CidTask{PrevCid: "", Cid: h.Cid, Retry: h.Retry + 1, VolIdx: h.VolIdx, ChapIdx: h.ChapIdx}
	select {
	case r.cidQueue <- next:
	case <-ctx.Done():
		r.cidT.done()
	}
}

// storageWorker is the sole mutator of pending_restore, book_info.volumes,
// and existing_ids (via the ChapterStore); completed_count it shares with
// the enqueue loop, which counts already-done chapters. It multiplexes
// the save and restore queues with a single select — the Go analogue of
// "wait for first of either, the loser stays queued for next iteration":
// an unreceived channel value is simply still there next loop, no
// explicit cancel step is needed.
func (r *run) storageWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case item, ok := <-r.saveQueue:
			if !ok {
				return
			}
			r.handleSave(ctx, item)

		case rt, ok := <-r.restoreQueue:
			if !ok {
				return
			}
			r.handleRestore(ctx, rt)
		}
	}
}

func (r *run) handleSave(ctx context.Context, item saveItem) {
	defer r.saveT.done()

	if err := r.p.chapters.Save(ctx, r.p.cfg.Site, r.book.BookID, item.Rec, store.OnExistSkip); err != nil {
		r.logger.Warn("save chapter failed", "cid", item.Rec.ID, "error", err)
		return
	}
	r.progress.markDone()

	rt, pending := r.pendingRestore[item.Rec.ID]
	if !pending {
		return
	}
	delete(r.pendingRestore, item.Rec.ID)

	nextCid, ok := item.Rec.NextChapterID()
	if !ok {
		r.logger.Warn("cannot chain restore further, no next_chapter_id", "prev_cid", item.Rec.ID)
		return
	}
	r.chainTo(ctx, rt, nextCid)
}

func (r *run) handleRestore(ctx context.Context, rt RestoreTask) {
	defer r.restoreT.done()

	prev, found, err := r.p.chapters.Get(ctx, r.p.cfg.Site, r.book.BookID, rt.PrevCid)
	if err != nil {
		r.logger.Warn("restore lookup failed", "prev_cid", rt.PrevCid, "error", err)
		r.pendingRestore[rt.PrevCid] = rt
		return
	}
	if !found {
		r.pendingRestore[rt.PrevCid] = rt
		return
	}
	nextCid, ok := prev.NextChapterID()
	if !ok {
		r.pendingRestore[rt.PrevCid] = rt
		return
	}
	r.chainTo(ctx, rt, nextCid)
}

// chainTo fills in the resolved chapter ID on the book-info slot and
// enqueues a fresh CidTask for it.
func (r *run) chainTo(ctx context.Context, rt RestoreTask, nextCid string) {
	if rt.VolIdx < len(r.info.Volumes) && rt.ChapIdx < len(r.info.Volumes[rt.VolIdx].Chapters) {
		r.info.Volumes[rt.VolIdx].Chapters[rt.ChapIdx].ChapterID = nextCid
	}
	r.cidT.add(1)
	next := CidTask{PrevCid: rt.PrevCid, Cid: nextCid, VolIdx: rt.VolIdx, ChapIdx: rt.ChapIdx}
	select {
	case r.cidQueue <- next:
	case <-ctx.Done():
		r.cidT.done()
	}
}

// progress tracks completed/total and invokes the caller's hook.
type progress struct {
	mu        sync.Mutex
	completed int
	total     int
	hook      ProgressReporter
}

func newProgress(total int, hook ProgressReporter) *progress {
	return &progress{total: total, hook: hook}
}

func (pr *progress) markDone() {
	pr.mu.Lock()
	pr.completed++
	completed, total := pr.completed, pr.total
	pr.mu.Unlock()
	if pr.hook != nil {
		pr.hook(completed, total)
	}
}
