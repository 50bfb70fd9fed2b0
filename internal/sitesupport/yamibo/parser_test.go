package yamibo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-novel/novelcore/internal/novel"
)

const yamiboBookInfoPage = `<html><body>
<h1 class="novel-title">Yami Book</h1>
<span class="novel-author">Author X</span>
<div class="chapters">
<a class="chapter-link" href="/novel/view-chapter?id=100">Ch 1</a>
<a class="chapter-link" href="/novel/view-chapter?id=101">Ch 2</a>
</div>
</body></html>`

func TestParser_ParseBookInfo(t *testing.T) {
	p := Parser{}
	info, err := p.ParseBookInfo([]string{yamiboBookInfoPage})
	require.NoError(t, err)
	require.Equal(t, "Yami Book", info.BookName)
	require.Equal(t, "Author X", info.Author)
	require.Len(t, info.Volumes[0].Chapters, 2)
	require.Equal(t, "100", info.Volumes[0].Chapters[0].ChapterID)
	require.Equal(t, "101", info.Volumes[0].Chapters[1].ChapterID)
}

func TestParser_ParseBookInfo_NoTitleYieldsNotFound(t *testing.T) {
	p := Parser{}
	info, err := p.ParseBookInfo([]string{"<html><body></body></html>"})
	require.NoError(t, err)
	require.Equal(t, novel.InfoNotFound, info.Status)
}

const yamiboChapterPlainPage = `<html><body>
<h1 class="chapter-title">Ch One</h1>
<div class="chapter-content">正文内容</div>
</body></html>`

func TestParser_ParseChapter_PlainSinglePage(t *testing.T) {
	p := Parser{}
	rec, err := p.ParseChapter([]string{yamiboChapterPlainPage}, "100")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "Ch One\n\n正文内容", rec.Content)
	require.Empty(t, rec.Extra)
}

func TestParser_ParseChapter_MultiPageJoinsBody(t *testing.T) {
	page1 := `<html><body><h1 class="chapter-title">Ch One</h1><div class="chapter-content">Page1</div></body></html>`
	page2 := `<html><body><div class="chapter-content">Page2</div></body></html>`

	p := Parser{}
	rec, err := p.ParseChapter([]string{page1, page2}, "100")
	require.NoError(t, err)
	require.Equal(t, "Ch One\n\nPage1\n\nPage2", rec.Content)
}

func TestParser_ParseChapter_EncryptedContentSetsExtraFlag(t *testing.T) {
	page := `<html><body><h1 class="chapter-title">Locked</h1><div class="encrypted-content">gibberish</div></body></html>`

	p := Parser{}
	rec, err := p.ParseChapter([]string{page}, "100")
	require.NoError(t, err)
	require.NotNil(t, rec)
	v, ok := rec.Extra[novel.ExtraEncrypted].(bool)
	require.True(t, ok)
	require.True(t, v)
}

func TestParser_ParseChapter_EmptyPagesReturnsNil(t *testing.T) {
	p := Parser{}
	rec, err := p.ParseChapter(nil, "100")
	require.NoError(t, err)
	require.Nil(t, rec)
}
