// Package textutil provides small, site-agnostic text-cleaning helpers
// that reference Parser implementations use when turning raw HTML into
// ChapterRecord content: stripping promotional bracketed content from
// titles, filtering ad-like lines, and formatting paragraphs into a single
// chapter body.
package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var (
	bracketPattern  = regexp.MustCompile(`[(（](.*?)[)）]`)
	kPromoPattern   = regexp.MustCompile(`(?i)\b\d{1,4}k\b`)
	imgTagPattern   = regexp.MustCompile(`(?i)<img[^>]*>`)
	fullwidthDigits = regexp.MustCompile(`[０-９]+`)
)

// BlacklistedWords are substrings that mark a bracketed title section or a
// content line as promotional. Reference site adapters supply their own
// site-specific list; this package ships none built in.
type BlacklistedWords []string

func (bw BlacklistedWords) containsAny(s string) bool {
	low := strings.ToLower(s)
	for _, w := range bw {
		if strings.Contains(low, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// NormalizeWidth folds fullwidth digit runs (common in chapter numbers
// scraped from Chinese sites, e.g. "第１章") to halfwidth ASCII digits,
// leaving surrounding fullwidth punctuation (brackets, etc.) untouched.
func NormalizeWidth(s string) string {
	return fullwidthDigits.ReplaceAllStringFunc(s, width.Narrow.String)
}

// CleanChapterTitle strips bracketed sections of title that contain any
// blacklisted word.
func CleanChapterTitle(title string, blacklist BlacklistedWords) string {
	title = NormalizeWidth(title)
	cleaned := title
	for _, match := range bracketPattern.FindAllStringSubmatch(title, -1) {
		content := match[1]
		if blacklist.containsAny(content) {
			cleaned = strings.ReplaceAll(cleaned, match[0], "")
		}
	}
	return strings.TrimSpace(cleaned)
}

// IsPromotionalLine reports whether line likely contains ad-like content:
// a blacklisted keyword, or a "###k" vote-count pattern.
func IsPromotionalLine(line string, blacklist BlacklistedWords) bool {
	low := strings.ToLower(line)
	if blacklist.containsAny(low) {
		return true
	}
	return kPromoPattern.MatchString(low)
}

// FormatChapter builds a chapter body from a title, raw multi-line
// paragraph text (img tags stripped, blank lines dropped), and an optional
// author's note appended at the end.
func FormatChapter(title, paragraphs, authorSay string) string {
	parts := []string{strings.TrimSpace(title)}

	cleaned := imgTagPattern.ReplaceAllString(paragraphs, "")
	for _, ln := range strings.Split(cleaned, "\n") {
		if line := strings.TrimSpace(ln); line != "" {
			parts = append(parts, line)
		}
	}

	if authorSay != "" {
		var noteLines []string
		for _, ln := range strings.Split(authorSay, "\n") {
			if line := strings.TrimSpace(ln); line != "" {
				noteLines = append(noteLines, line)
			}
		}
		if len(noteLines) > 0 {
			parts = append(parts, "---", "author's note:")
			parts = append(parts, noteLines...)
		}
	}

	return strings.Join(parts, "\n\n")
}
