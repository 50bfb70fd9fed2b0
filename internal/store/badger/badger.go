// Package badger is the reference ChapterStore backend: an embedded
// key/value store with batched upserts, grounded in the same dgraph-io
// badger/v4 transaction shape used elsewhere in the pack for persistent
// per-entity metadata.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	bdg "github.com/dgraph-io/badger/v4"

	"github.com/go-novel/novelcore/internal/novel"
	"github.com/go-novel/novelcore/internal/store"
)

// Store is a badger-backed ChapterStore. One Store instance owns one
// database directory and serves every site/book namespaced by key prefix.
type Store struct {
	db     *bdg.DB
	logger *slog.Logger

	mu        sync.RWMutex
	known     map[string]struct{} // populated at Open, tracks existing chapter keys
	closed    bool
	batchSize int
	wb        *bdg.WriteBatch // accumulates staged writes until pending reaches batchSize
	pending   int
	staged    map[string]novel.ChapterRecord // records written to wb but not yet committed; Get must see these
}

// Config configures Open.
type Config struct {
	Dir    string
	Logger *slog.Logger
	// BatchSize is the number of chapter writes to accumulate before
	// committing to disk. 1 (the default) commits every call. Values > 1
	// trade a larger crash-loss window for fewer fsyncs.
	BatchSize int
}

// Open opens (creating if absent) the badger database at cfg.Dir and
// preloads the set of existing chapter keys so Exists is O(1) in memory
// without a per-call disk read.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := bdg.DefaultOptions(cfg.Dir).WithLogger(nil)
	db, err := bdg.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open chapter store: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	s := &Store{
		db:        db,
		logger:    logger.With("component", "chapterstore"),
		known:     make(map[string]struct{}),
		batchSize: batchSize,
		wb:        db.NewWriteBatch(),
		staged:    make(map[string]novel.ChapterRecord),
	}
	if err := s.loadKnownKeys(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load existing chapter keys: %w", err)
	}
	return s, nil
}

func (s *Store) loadKnownKeys() error {
	return s.db.View(func(txn *bdg.Txn) error {
		it := txn.NewIterator(bdg.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().KeyCopy(nil))
			s.known[key] = struct{}{}
		}
		return nil
	})
}

// chapterKey returns the key for a chapter, routed into the
// "encrypted_chapters" namespace when the record's extra.encrypted flag is
// set (spec's two-namespace raw directory layout), and "chapters"
// otherwise.
func chapterKey(site, bookID, chapterID string, encrypted bool) []byte {
	ns := "chapters"
	if encrypted {
		ns = "encrypted_chapters"
	}
	return []byte(fmt.Sprintf("%s/%s/%s/%s", ns, site, bookID, chapterID))
}

func isEncrypted(rec novel.ChapterRecord) bool {
	v, _ := rec.Extra[novel.ExtraEncrypted].(bool)
	return v
}

type wireRecord struct {
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Exists reports whether chapterID has already been saved, checked purely
// against the in-memory key set loaded at Open plus subsequent writes.
func (s *Store) Exists(_ context.Context, site, bookID, chapterID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, store.ErrClosed
	}
	if _, ok := s.known[string(chapterKey(site, bookID, chapterID, false))]; ok {
		return true, nil
	}
	_, ok := s.known[string(chapterKey(site, bookID, chapterID, true))]
	return ok, nil
}

// Save persists one chapter record.
func (s *Store) Save(ctx context.Context, site, bookID string, rec novel.ChapterRecord, on store.OnExist) error {
	return s.SaveMany(ctx, site, bookID, []novel.ChapterRecord{rec}, on)
}

// SaveMany stages a batch of chapter records into the store's open
// WriteBatch and commits only once the configured BatchSize worth of
// records has accumulated, so the badger commit cadence matches
// pipeline.Config.StorageBatchSize. A crash between commits loses only
// the chapters staged since the last commit.
func (s *Store) SaveMany(_ context.Context, site, bookID string, recs []novel.ChapterRecord, on store.OnExist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	written := make([]string, 0, len(recs))
	for _, rec := range recs {
		key := chapterKey(site, bookID, rec.ID, isEncrypted(rec))
		if on == store.OnExistSkip {
			if _, ok := s.known[string(key)]; ok {
				continue
			}
		}
		payload, err := json.Marshal(wireRecord{Title: rec.Title, Content: rec.Content, Extra: rec.Extra})
		if err != nil {
			return fmt.Errorf("encode chapter %s: %w", rec.ID, err)
		}
		if err := s.wb.Set(key, payload); err != nil {
			return fmt.Errorf("stage chapter %s: %w", rec.ID, err)
		}
		s.staged[string(key)] = rec
		written = append(written, string(key))
	}
	for _, k := range written {
		s.known[k] = struct{}{}
	}
	s.pending += len(written)

	if s.pending >= s.batchSize {
		if err := s.commitLocked(); err != nil {
			return err
		}
		s.logger.Debug("committed chapter batch", "book_id", bookID, "count", len(written))
		return nil
	}
	s.logger.Debug("staged chapter batch", "book_id", bookID, "count", len(written), "pending", s.pending)
	return nil
}

// commitLocked flushes the open WriteBatch to disk and opens a fresh one
// for the next batch. Callers must hold s.mu.
func (s *Store) commitLocked() error {
	if s.pending == 0 {
		return nil
	}
	if err := s.wb.Flush(); err != nil {
		return fmt.Errorf("flush chapter batch: %w", err)
	}
	s.wb = s.db.NewWriteBatch()
	s.pending = 0
	s.staged = make(map[string]novel.ChapterRecord)
	return nil
}

// Get returns a previously saved chapter, including one still staged in an
// uncommitted batch so callers can't observe a gap between Exists
// reporting a chapter known and Get being able to read it back.
func (s *Store) Get(_ context.Context, site, bookID, chapterID string) (novel.ChapterRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return novel.ChapterRecord{}, false, store.ErrClosed
	}

	for _, encrypted := range []bool{false, true} {
		if rec, ok := s.staged[string(chapterKey(site, bookID, chapterID, encrypted))]; ok {
			return rec, true, nil
		}
	}

	var rec novel.ChapterRecord
	found := false
	err := s.db.View(func(txn *bdg.Txn) error {
		for _, encrypted := range []bool{false, true} {
			item, err := txn.Get(chapterKey(site, bookID, chapterID, encrypted))
			if err == bdg.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				var wr wireRecord
				if err := json.Unmarshal(val, &wr); err != nil {
					return err
				}
				rec = novel.ChapterRecord{ID: chapterID, Title: wr.Title, Content: wr.Content, Extra: wr.Extra}
				found = true
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return novel.ChapterRecord{}, false, fmt.Errorf("get chapter %s: %w", chapterID, err)
	}
	return rec, found, nil
}

// Flush forces commit of any partial batch staged by SaveMany, then syncs
// the LSM tree to disk. pipeline.Config.StorageBatchSize > 1 relies on this
// being called at the end of a run so the trailing partial batch isn't lost.
func (s *Store) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if err := s.commitLocked(); err != nil {
		return err
	}
	return s.db.Sync()
}

// Close commits any pending partial batch, then closes the underlying
// database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.commitLocked(); err != nil {
		s.logger.Warn("failed to flush pending chapters before close", "error", err)
	}
	s.closed = true
	return s.db.Close()
}
