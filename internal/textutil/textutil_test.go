package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeWidth_FoldsFullwidthDigits(t *testing.T) {
	require.Equal(t, "第123章", NormalizeWidth("第123章"))
	require.Equal(t, "第123章", NormalizeWidth("第１２３章"))
}

func TestCleanChapterTitle_StripsBlacklistedBracket(t *testing.T) {
	blacklist := BlacklistedWords{"求订阅"}
	got := CleanChapterTitle("第一章 开始（求订阅）", blacklist)
	require.Equal(t, "第一章 开始", got)
}

func TestCleanChapterTitle_KeepsNonBlacklistedBracket(t *testing.T) {
	blacklist := BlacklistedWords{"求订阅"}
	got := CleanChapterTitle("第一章（上）", blacklist)
	require.Equal(t, "第一章（上）", got)
}

func TestIsPromotionalLine_MatchesBlacklistWord(t *testing.T) {
	require.True(t, IsPromotionalLine("记得投推荐票哦", BlacklistedWords{"投推荐票"}))
}

func TestIsPromotionalLine_MatchesVoteCountPattern(t *testing.T) {
	require.True(t, IsPromotionalLine("本月第100k张月票", nil))
}

func TestIsPromotionalLine_OrdinaryLineNotFlagged(t *testing.T) {
	require.False(t, IsPromotionalLine("他推开了门。", nil))
}

func TestFormatChapter_StripsImgTagsAndBlankLines(t *testing.T) {
	got := FormatChapter("标题", "第一行\n\n<img src=\"ad.png\">\n第二行", "")
	require.Equal(t, "标题\n\n第一行\n\n第二行", got)
}

func TestFormatChapter_AppendsAuthorNote(t *testing.T) {
	got := FormatChapter("标题", "正文", "谢谢支持")
	require.Contains(t, got, "author's note:")
	require.Contains(t, got, "谢谢支持")
}

func TestFormatChapter_OmitsAuthorNoteSectionWhenEmpty(t *testing.T) {
	got := FormatChapter("标题", "正文", "")
	require.NotContains(t, got, "author's note:")
}
