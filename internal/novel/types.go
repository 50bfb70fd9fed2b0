// Package novel defines the data model and external contracts shared by
// every stage of the download pipeline: book metadata, chapter records, and
// the Fetcher/Parser interfaces that site-specific adapters implement.
package novel

import "time"

// InfoStatus distinguishes a successfully parsed BookInfo from the sentinel
// "book not found" case a site's parser can report. Kept as a typed enum
// rather than matching against a magic string (the source site's own
// not-found marker), per the open question in the spec this was distilled
// from.
type InfoStatus int

const (
	InfoFound InfoStatus = iota
	InfoNotFound
)

// BookConfig selects which chapters of a book to download.
type BookConfig struct {
	BookID    string
	StartID   string // inclusive; empty means from the beginning
	EndID     string // inclusive; empty means through the end
	IgnoreIDs map[string]struct{}
}

// ChapterEntry is one entry in a BookInfo volume's reading order. ChapterID
// may be empty; Restore is responsible for filling it in from a
// predecessor's parsed payload.
type ChapterEntry struct {
	ChapterID string `json:"chapterId,omitempty"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
}

// Volume groups chapters under a named section of the book.
type Volume struct {
	VolumeName  string         `json:"volume_name"`
	VolumeIntro string         `json:"volume_intro,omitempty"`
	VolumeCover string         `json:"volume_cover,omitempty"`
	Chapters    []ChapterEntry `json:"chapters"`
}

// BookInfo is the persisted table-of-contents and metadata document for a
// book, serialized to raw/<site>/<book_id>/book_info.json.
type BookInfo struct {
	Status     InfoStatus `json:"-"`
	BookName   string     `json:"book_name"`
	Author     string     `json:"author,omitempty"`
	CoverURL   string     `json:"cover_url,omitempty"`
	UpdateTime string     `json:"update_time,omitempty"` // "YYYY-MM-DD HH:MM:SS", UTC+8
	Serial     string     `json:"serial_status,omitempty"`
	WordCount  int        `json:"word_count,omitempty"`
	Summary    string     `json:"summary,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Volumes    []Volume   `json:"volumes"`
}

// NotFoundBookName is the stub name used when a book re-fetch fails and no
// cached copy exists (spec §7: "minimal stub ... do not persist the stub").
const NotFoundBookName = "not found"

// ChapterRecord is a parsed chapter as handed to the ChapterStore.
type ChapterRecord struct {
	ID      string
	Title   string
	Content string
	Extra   map[string]any
}

// Extra keys recognized by the pipeline (others pass through opaquely).
const (
	ExtraNextChapterID = "next_chapter_id"
	ExtraEncrypted     = "encrypted"
	ExtraDuplicated    = "duplicated"
	ExtraWordCount     = "word_count"
	ExtraUpdatedAt     = "updated_at"
	ExtraVolume        = "volume"
	ExtraSeq           = "seq"
)

// NextChapterID reads extra[ExtraNextChapterID] if present.
func (r *ChapterRecord) NextChapterID() (string, bool) {
	if r == nil || r.Extra == nil {
		return "", false
	}
	v, ok := r.Extra[ExtraNextChapterID]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// FieldType enumerates the kinds of login fields a Fetcher can ask for.
type FieldType string

const (
	FieldText         FieldType = "text"
	FieldPassword     FieldType = "password"
	FieldCookie       FieldType = "cookie"
	FieldManualLogin  FieldType = "manual_login"
)

// FieldSpec describes one field a site's login flow needs from the caller.
type FieldSpec struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// Cookie mirrors the persisted session-state cookie shape from spec §6.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  int64  `json:"expires"` // epoch seconds, or -1 for a session cookie
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
	SameSite string `json:"sameSite,omitempty"`
}

// SessionState is the on-disk persisted login state for a site.
type SessionState struct {
	Cookies []Cookie `json:"cookies"`
	Origins []any    `json:"origins"`
}

// StaleAfter is how long a cached book_info.json is trusted before the
// BookInfoStage re-fetches it (spec §4.5: "days <= 1").
const StaleAfter = 24 * time.Hour

// BookInfoTimeLayout is the wire format for BookInfo.UpdateTime, always in
// UTC+8 as declared by the source sites.
const BookInfoTimeLayout = "2006-01-02 15:04:05"

// UTC8 is the fixed offset used by every supported site for update_time.
var UTC8 = time.FixedZone("UTC+8", 8*60*60)
