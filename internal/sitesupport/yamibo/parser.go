package yamibo

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/go-novel/novelcore/internal/novel"
	"github.com/go-novel/novelcore/internal/textutil"
)

// Parser implements novel.Parser for yamibo's book-info and chapter page
// markup. Premium chapters are served with their body wrapped in a
// "encrypted-content" container instead of plain paragraphs; ParseChapter
// detects that and sets extra.encrypted so the storage layer routes the
// record into the encrypted_chapters namespace.
type Parser struct {
	Blacklist textutil.BlacklistedWords
}

func (p Parser) ParseBookInfo(htmlList []string) (novel.BookInfo, error) {
	if len(htmlList) == 0 {
		return novel.BookInfo{Status: novel.InfoNotFound, BookName: novel.NotFoundBookName}, nil
	}
	doc, err := html.Parse(strings.NewReader(htmlList[0]))
	if err != nil {
		return novel.BookInfo{}, err
	}

	bookName := firstTextByClass(doc, "novel-title")
	if bookName == "" {
		return novel.BookInfo{Status: novel.InfoNotFound, BookName: novel.NotFoundBookName}, nil
	}
	author := firstTextByClass(doc, "novel-author")

	var chapters []novel.ChapterEntry
	forEachByClass(doc, "chapter-link", func(n *html.Node) {
		chapters = append(chapters, novel.ChapterEntry{
			ChapterID: strings.TrimPrefix(attr(n, "href"), "/novel/view-chapter?id="),
			Title:     strings.TrimSpace(textContent(n)),
			URL:       attr(n, "href"),
		})
	})

	return novel.BookInfo{
		Status:   novel.InfoFound,
		BookName: bookName,
		Author:   author,
		Volumes:  []novel.Volume{{VolumeName: "正文", Chapters: chapters}},
	}, nil
}

func (p Parser) ParseChapter(htmlList []string, chapterID string) (*novel.ChapterRecord, error) {
	if len(htmlList) == 0 {
		return nil, nil
	}

	var title string
	var bodyParts []string
	encrypted := false

	for i, page := range htmlList {
		doc, err := html.Parse(strings.NewReader(page))
		if err != nil {
			return nil, err
		}
		if i == 0 {
			title = firstTextByClass(doc, "chapter-title")
		}
		if content := firstByClass(doc, "encrypted-content"); content != "" {
			encrypted = true
			bodyParts = append(bodyParts, content)
			continue
		}
		bodyParts = append(bodyParts, firstByClass(doc, "chapter-content"))
	}

	if title == "" && len(bodyParts) == 0 {
		return nil, nil
	}
	title = textutil.CleanChapterTitle(title, p.Blacklist)

	joined := dropPromotionalLines(strings.Join(bodyParts, "\n"), p.Blacklist)
	body := textutil.FormatChapter(title, joined, "")
	extra := map[string]any{}
	if encrypted {
		extra[novel.ExtraEncrypted] = true
	}
	return &novel.ChapterRecord{ID: chapterID, Title: title, Content: body, Extra: extra}, nil
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

func firstTextByClass(n *html.Node, class string) string {
	if node := firstNodeByClass(n, class); node != nil {
		return strings.TrimSpace(textContent(node))
	}
	return ""
}

func firstByClass(n *html.Node, class string) string {
	if node := firstNodeByClass(n, class); node != nil {
		return textContent(node)
	}
	return ""
}

func firstNodeByClass(n *html.Node, class string) *html.Node {
	var result *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if result != nil {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, class) {
			result = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

func forEachByClass(n *html.Node, class string, fn func(*html.Node)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			fn(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findInputValue(n *html.Node, name string) string {
	var result string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if result != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "input" && attr(n, "name") == name {
			result = attr(n, "value")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

func findHrefByClass(n *html.Node, class string) string {
	if node := firstNodeByClass(n, class); node != nil {
		return attr(node, "href")
	}
	return ""
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
