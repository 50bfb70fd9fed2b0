package biquge

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/go-novel/novelcore/internal/novel"
	"github.com/go-novel/novelcore/internal/textutil"
)

// Parser implements novel.Parser for biquge's book-info and chapter page
// markup: a "#info" block with book name/author, a "#list" block of
// chapter anchors (href holds the chapter ID), and a "#content" div of
// paragraph text per chapter.
type Parser struct {
	Blacklist textutil.BlacklistedWords
}

// ParseBookInfo extracts the book name, author, and flat chapter list from
// a single info page.
func (p Parser) ParseBookInfo(htmlList []string) (novel.BookInfo, error) {
	if len(htmlList) == 0 {
		return novel.BookInfo{Status: novel.InfoNotFound, BookName: novel.NotFoundBookName}, nil
	}
	doc, err := html.Parse(strings.NewReader(htmlList[0]))
	if err != nil {
		return novel.BookInfo{}, err
	}

	bookName := firstText(doc, "h1")
	if bookName == "" {
		return novel.BookInfo{Status: novel.InfoNotFound, BookName: novel.NotFoundBookName}, nil
	}
	author := strings.TrimPrefix(firstTextWithPrefix(doc, "作"), "作者：")

	var chapters []novel.ChapterEntry
	walkLinks(doc, "list", func(href, text string) {
		chapters = append(chapters, novel.ChapterEntry{ChapterID: chapterIDFromHref(href), Title: text, URL: href})
	})

	return novel.BookInfo{
		Status:   novel.InfoFound,
		BookName: bookName,
		Author:   author,
		Volumes:  []novel.Volume{{VolumeName: "正文", Chapters: chapters}},
	}, nil
}

// ParseChapter extracts the chapter title and body from a single chapter
// page.
func (p Parser) ParseChapter(htmlList []string, chapterID string) (*novel.ChapterRecord, error) {
	if len(htmlList) == 0 {
		return nil, nil
	}
	doc, err := html.Parse(strings.NewReader(htmlList[0]))
	if err != nil {
		return nil, err
	}

	title := textutil.CleanChapterTitle(firstText(doc, "h1"), p.Blacklist)
	content := findByID(doc, "content")
	if content == "" {
		return nil, nil
	}
	content = dropPromotionalLines(content, p.Blacklist)

	body := textutil.FormatChapter(title, content, "")
	return &novel.ChapterRecord{ID: chapterID, Title: title, Content: body}, nil
}

func dropPromotionalLines(content string, blacklist textutil.BlacklistedWords) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if !textutil.IsPromotionalLine(ln, blacklist) {
			kept = append(kept, ln)
		}
	}
	return strings.Join(kept, "\n")
}

func chapterIDFromHref(href string) string {
	href = strings.TrimSuffix(href, ".html")
	if idx := strings.LastIndex(href, "/"); idx >= 0 {
		return href[idx+1:]
	}
	return href
}

func firstText(n *html.Node, tag string) string {
	var result string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if result != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == tag {
			result = strings.TrimSpace(textContent(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

func firstTextWithPrefix(n *html.Node, prefix string) string {
	var result string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if result != "" {
			return
		}
		if n.Type == html.TextNode && strings.HasPrefix(strings.TrimSpace(n.Data), prefix) {
			result = strings.TrimSpace(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

func findByID(n *html.Node, id string) string {
	var result string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if result != "" {
			return
		}
		if n.Type == html.ElementNode && attr(n, "id") == id {
			result = textContent(n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

func walkLinks(n *html.Node, withinID string, fn func(href, text string)) {
	var inContainer bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		wasContainer := false
		if n.Type == html.ElementNode && attr(n, "id") == withinID {
			inContainer = true
			wasContainer = true
		}
		if inContainer && n.Type == html.ElementNode && n.Data == "a" {
			fn(attr(n, "href"), strings.TrimSpace(textContent(n)))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if wasContainer {
			inContainer = false
		}
	}
	walk(n)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
