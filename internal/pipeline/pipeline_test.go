package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-novel/novelcore/internal/bookinfo"
	"github.com/go-novel/novelcore/internal/mockfetcher"
	"github.com/go-novel/novelcore/internal/mockparser"
	"github.com/go-novel/novelcore/internal/novel"
	"github.com/go-novel/novelcore/internal/session"
	"github.com/go-novel/novelcore/internal/store/memstore"
)

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, *mockfetcher.Fetcher, *mockparser.Parser, *memstore.Store) {
	t.Helper()
	cfg.Site = "testsite"
	cfg.RawDataDir = t.TempDir()
	cfg.CacheDir = t.TempDir()

	f := mockfetcher.New()
	p := mockparser.New()
	cs := memstore.New()
	sessStore := session.NewStore(t.TempDir(), nil)
	biStage := bookinfo.New(cfg.Site, cfg.RawDataDir, cfg.CacheDir, cfg.SaveHTML, nil)

	return New(cfg, f, p, cs, sessStore, biStage, nil), f, p, cs
}

func volumeOf(ids ...string) novel.Volume {
	chs := make([]novel.ChapterEntry, len(ids))
	for i, id := range ids {
		chs[i] = novel.ChapterEntry{ChapterID: id, Title: "ch-" + id}
	}
	return novel.Volume{VolumeName: "v1", Chapters: chs}
}

func scriptChapter(f *mockfetcher.Fetcher, p *mockparser.Parser, id string) {
	f.ChapterPages[id] = []string{"<html>" + id + "</html>"}
	p.Records[id] = novel.ChapterRecord{ID: id, Title: "ch-" + id, Content: "content-" + id}
}

func TestDownload_HappyPath(t *testing.T) {
	pl, f, p, cs := newTestPipeline(t, Config{RequestInterval: time.Millisecond, BackoffFactor: time.Millisecond})
	for _, id := range []string{"a", "b", "c"} {
		scriptChapter(f, p, id)
	}
	require.NoError(t, pl.bookInfo.Persist("book1", novel.BookInfo{BookName: "Book", UpdateTime: time.Now().In(novel.UTC8).Format(novel.BookInfoTimeLayout), Volumes: []novel.Volume{volumeOf("a", "b", "c")}}))

	var progress [][2]int
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := pl.Download(ctx, novel.BookConfig{BookID: "book1"}, Options{Progress: func(completed, total int) {
		progress = append(progress, [2]int{completed, total})
	}})
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		_, ok, err := cs.Get(ctx, "testsite", "book1", id)
		require.NoError(t, err)
		require.True(t, ok, "chapter %s should be stored", id)
	}
	require.NotEmpty(t, progress)
	require.Equal(t, 3, progress[len(progress)-1][0])
	require.Equal(t, 3, progress[len(progress)-1][1])
}

func TestDownload_SkipExisting(t *testing.T) {
	pl, f, p, cs := newTestPipeline(t, Config{RequestInterval: time.Millisecond, SkipExisting: true})
	for _, id := range []string{"a", "b", "c"} {
		scriptChapter(f, p, id)
	}
	require.NoError(t, cs.Save(context.Background(), "testsite", "book1", novel.ChapterRecord{ID: "a", Title: "ch-a", Content: "content-a"}, 0))
	require.NoError(t, pl.bookInfo.Persist("book1", novel.BookInfo{BookName: "Book", UpdateTime: time.Now().In(novel.UTC8).Format(novel.BookInfoTimeLayout), Volumes: []novel.Volume{volumeOf("a", "b", "c")}}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pl.Download(ctx, novel.BookConfig{BookID: "book1"}, Options{}))

	require.Equal(t, 0, f.CallCount("a"))
	require.Equal(t, 1, f.CallCount("b"))
	require.Equal(t, 1, f.CallCount("c"))
}

func TestDownload_StartEndRange(t *testing.T) {
	pl, f, p, cs := newTestPipeline(t, Config{RequestInterval: time.Millisecond})
	for _, id := range []string{"a", "b", "c", "d"} {
		scriptChapter(f, p, id)
	}
	require.NoError(t, pl.bookInfo.Persist("book1", novel.BookInfo{BookName: "Book", UpdateTime: time.Now().In(novel.UTC8).Format(novel.BookInfoTimeLayout), Volumes: []novel.Volume{volumeOf("a", "b", "c", "d")}}))

	var last [2]int
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pl.Download(ctx, novel.BookConfig{BookID: "book1", StartID: "b", EndID: "c"}, Options{Progress: func(completed, total int) { last = [2]int{completed, total} }}))

	require.Equal(t, 0, f.CallCount("a"))
	require.Equal(t, 1, f.CallCount("b"))
	require.Equal(t, 1, f.CallCount("c"))
	require.Equal(t, 0, f.CallCount("d"))
	require.Equal(t, 4, last[0])
	require.Equal(t, 4, last[1])

	for _, id := range []string{"b", "c"} {
		_, ok, _ := cs.Get(ctx, "testsite", "book1", id)
		require.True(t, ok)
	}
}

func TestDownload_TransientFetchFailureThenSuccess(t *testing.T) {
	pl, f, p, cs := newTestPipeline(t, Config{RequestInterval: time.Millisecond, BackoffFactor: time.Millisecond, RetryTimes: 3})
	scriptChapter(f, p, "a")
	f.FailChapterTimes["a"] = 2

	require.NoError(t, pl.bookInfo.Persist("book1", novel.BookInfo{BookName: "Book", UpdateTime: time.Now().In(novel.UTC8).Format(novel.BookInfoTimeLayout), Volumes: []novel.Volume{volumeOf("a")}}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pl.Download(ctx, novel.BookConfig{BookID: "book1"}, Options{}))

	require.Equal(t, 3, f.CallCount("a"))
	_, ok, _ := cs.Get(ctx, "testsite", "book1", "a")
	require.True(t, ok)
}

func TestDownload_ParseEmptyThenSuccess(t *testing.T) {
	pl, f, p, cs := newTestPipeline(t, Config{RequestInterval: time.Millisecond, BackoffFactor: time.Millisecond, RetryTimes: 3})
	scriptChapter(f, p, "a")
	p.EmptyTimes["a"] = 1

	require.NoError(t, pl.bookInfo.Persist("book1", novel.BookInfo{BookName: "Book", UpdateTime: time.Now().In(novel.UTC8).Format(novel.BookInfoTimeLayout), Volumes: []novel.Volume{volumeOf("a")}}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pl.Download(ctx, novel.BookConfig{BookID: "book1"}, Options{}))

	require.Equal(t, 2, p.CallCount("a"))
	_, ok, _ := cs.Get(ctx, "testsite", "book1", "a")
	require.True(t, ok)
}

func TestDownload_RestoreChain(t *testing.T) {
	pl, f, p, cs := newTestPipeline(t, Config{RequestInterval: time.Millisecond, BackoffFactor: time.Millisecond})
	scriptChapter(f, p, "a")
	p.Records["a"] = novel.ChapterRecord{ID: "a", Title: "ch-a", Content: "content-a", Extra: map[string]any{novel.ExtraNextChapterID: "b"}}
	scriptChapter(f, p, "b")
	scriptChapter(f, p, "c")

	info := novel.BookInfo{BookName: "Book", UpdateTime: time.Now().In(novel.UTC8).Format(novel.BookInfoTimeLayout), Volumes: []novel.Volume{{
		VolumeName: "v1",
		Chapters: []novel.ChapterEntry{
			{ChapterID: "a", Title: "ch-a"},
			{ChapterID: "", Title: "ch-b"},
			{ChapterID: "c", Title: "ch-c"},
		},
	}}}
	require.NoError(t, pl.bookInfo.Persist("book1", info))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pl.Download(ctx, novel.BookConfig{BookID: "book1"}, Options{}))

	for _, id := range []string{"a", "b", "c"} {
		_, ok, _ := cs.Get(ctx, "testsite", "book1", id)
		require.True(t, ok, "chapter %s should be stored", id)
	}

	persisted, found, err := loadPersistedInfo(t, pl, "book1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "b", persisted.Volumes[0].Chapters[1].ChapterID)
}

func loadPersistedInfo(t *testing.T, pl *Pipeline, bookID string) (novel.BookInfo, bool, error) {
	t.Helper()
	info, err := pl.bookInfo.Load(context.Background(), bookID, mockfetcher.New(), mockparser.New())
	return info, err == nil, err
}

func TestDownload_LoginRequiredWithValidCookies(t *testing.T) {
	pl, f, p, cs := newTestPipeline(t, Config{RequestInterval: time.Millisecond, LoginRequired: true})
	f.StateOK = true
	scriptChapter(f, p, "a")

	require.NoError(t, pl.bookInfo.Persist("book1", novel.BookInfo{BookName: "Book", UpdateTime: time.Now().In(novel.UTC8).Format(novel.BookInfoTimeLayout), Volumes: []novel.Volume{volumeOf("a")}}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pl.Download(ctx, novel.BookConfig{BookID: "book1"}, Options{}))

	_, ok, _ := cs.Get(ctx, "testsite", "book1", "a")
	require.True(t, ok)
	require.True(t, f.IsLoggedIn())
}
