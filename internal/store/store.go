// Package store defines the ChapterStore contract: the single persistence
// boundary the storage worker writes through. Implementations only need to
// support batched upserts keyed by chapter ID within a book/site namespace;
// the badger subpackage is the reference implementation, memstore is the
// in-memory test double.
package store

import (
	"context"
	"errors"

	"github.com/go-novel/novelcore/internal/novel"
)

// ErrClosed is returned by any operation called after Close.
var ErrClosed = errors.New("chapter store: closed")

// OnExist controls what Save/SaveMany do when a chapter ID already exists.
type OnExist int

const (
	// OnExistSkip leaves the existing record untouched (the default: the
	// pipeline treats a chapter as at-most-once-stored).
	OnExistSkip OnExist = iota
	// OnExistOverwrite replaces the existing record.
	OnExistOverwrite
)

// ChapterStore is the sole mutator of persisted chapter state. The storage
// worker is its only writer; the enqueue loop only calls Exists, and
// Download calls Flush once the run has drained.
type ChapterStore interface {
	// Exists reports whether chapterID has already been saved for book.
	Exists(ctx context.Context, site, bookID, chapterID string) (bool, error)

	// Save persists one chapter. Behavior on a pre-existing ID is governed
	// by on.
	Save(ctx context.Context, site, bookID string, rec novel.ChapterRecord, on OnExist) error

	// SaveMany persists a batch in one round-trip. The pipeline itself
	// saves chapters one at a time through Save.
	SaveMany(ctx context.Context, site, bookID string, recs []novel.ChapterRecord, on OnExist) error

	// Get returns a previously saved chapter.
	Get(ctx context.Context, site, bookID, chapterID string) (novel.ChapterRecord, bool, error)

	// Flush forces any buffered writes to durable storage.
	Flush(ctx context.Context) error

	// Close releases underlying resources. Safe to call more than once.
	Close() error
}
