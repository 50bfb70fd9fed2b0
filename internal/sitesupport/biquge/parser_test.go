package biquge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-novel/novelcore/internal/textutil"
)

const bookInfoPage = `<html><body>
<div id="info"><h1>Test Book</h1><p>作者：Jane Doe</p></div>
<div id="list">
<a href="/12345/1.html">Chapter One</a>
<a href="/12345/2.html">Chapter Two</a>
</div>
</body></html>`

func TestParser_ParseBookInfo(t *testing.T) {
	p := Parser{}
	info, err := p.ParseBookInfo([]string{bookInfoPage})
	require.NoError(t, err)
	require.Equal(t, "Test Book", info.BookName)
	require.Equal(t, "Jane Doe", info.Author)
	require.Len(t, info.Volumes, 1)
	require.Equal(t, []string{"1", "2"}, []string{info.Volumes[0].Chapters[0].ChapterID, info.Volumes[0].Chapters[1].ChapterID})
	require.Equal(t, "Chapter One", info.Volumes[0].Chapters[0].Title)
}

func TestParser_ParseBookInfo_EmptyPagesYieldsNotFound(t *testing.T) {
	p := Parser{}
	info, err := p.ParseBookInfo(nil)
	require.NoError(t, err)
	require.Equal(t, "not found", info.BookName)
}

const chapterPage = `<html><body>
<h1>Chapter One（求订阅）</h1>
<div id="content">第一行内容<br>广告推广链接<br>第二行内容</div>
</body></html>`

func TestParser_ParseChapter_CleansTitleAndDropsPromotionalLines(t *testing.T) {
	p := Parser{Blacklist: textutil.BlacklistedWords{"求订阅", "广告"}}
	rec, err := p.ParseChapter([]string{chapterPage}, "1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "1", rec.ID)
	require.Equal(t, "Chapter One", rec.Title)
	require.Equal(t, "Chapter One\n\n第一行内容\n\n第二行内容", rec.Content)
}

func TestParser_ParseChapter_NoContentDivYieldsNil(t *testing.T) {
	p := Parser{}
	rec, err := p.ParseChapter([]string{"<html><body><h1>T</h1></body></html>"}, "1")
	require.NoError(t, err)
	require.Nil(t, rec)
}
