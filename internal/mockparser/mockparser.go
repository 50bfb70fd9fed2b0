// Package mockparser is a scriptable novel.Parser double for pipeline
// tests.
package mockparser

import (
	"sync"

	"github.com/go-novel/novelcore/internal/novel"
)

// Parser is a scriptable novel.Parser.
type Parser struct {
	mu sync.Mutex

	// Info is returned by ParseBookInfo.
	Info novel.BookInfo

	// Records maps chapter ID to the record ParseChapter returns.
	Records map[string]novel.ChapterRecord

	// EmptyTimes makes ParseChapter return a nil record for the first N
	// calls for that chapter ID, then the scripted record.
	EmptyTimes map[string]int

	calls map[string]int
}

// New creates an empty Parser double.
func New() *Parser {
	return &Parser{Records: make(map[string]novel.ChapterRecord), EmptyTimes: make(map[string]int), calls: make(map[string]int)}
}

func (p *Parser) ParseBookInfo([]string) (novel.BookInfo, error) {
	return p.Info, nil
}

func (p *Parser) ParseChapter(_ []string, chapterID string) (*novel.ChapterRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[chapterID]++

	if remaining, ok := p.EmptyTimes[chapterID]; ok && remaining > 0 {
		p.EmptyTimes[chapterID] = remaining - 1
		return nil, nil
	}
	rec, ok := p.Records[chapterID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

// CallCount returns how many times ParseChapter was called for chapterID.
func (p *Parser) CallCount(chapterID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[chapterID]
}
