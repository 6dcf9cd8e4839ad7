/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: evasions_test.go
Description: Tests for the evasion transforms.
*/

package payloads

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripZeroWidth(s string) string {
	for _, zw := range zeroWidth {
		s = strings.ReplaceAll(s, zw, "")
	}
	return s
}

func TestExpandStartsWithOriginalAndIsUnique(t *testing.T) {
	p := NewPipeline(seeded(1))
	out := p.Expand(`<img src=x onerror="document.title='x'">`)
	require.NotEmpty(t, out)
	assert.Equal(t, `<img src=x onerror="document.title='x'">`, out[0])
	assert.Equal(t, out, Dedupe(out))
	// looks like JS, so wrappers are appended
	assert.Contains(t, out, `(()=>{<img src=x onerror="document.title='x'">})()`)
}

func TestExpandSkipsWrappersForPlainMarkup(t *testing.T) {
	out := NewPipeline(seeded(1)).Expand("<b>abc</b>")
	for _, v := range out {
		assert.False(t, strings.HasPrefix(v, "setTimeout("), v)
	}
}

func TestExpandDeterministic(t *testing.T) {
	a := NewPipeline(seeded(99)).Expand("<script>document.title='m'</script>")
	b := NewPipeline(seeded(99)).Expand("<script>document.title='m'</script>")
	assert.Equal(t, a, b)
}

func TestDedupeIdempotent(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b"}
	once := Dedupe(in)
	assert.Equal(t, []string{"a", "b", "c"}, once)
	assert.Equal(t, once, Dedupe(once))

	// deterministic transforms produce nothing new on a second pass
	first := Dedupe(append([]string{"<svg onload=x>"}, URLMangle("<svg onload=x>"), JSCommentNoise("<svg onload=x>")))
	second := Dedupe(append(first, URLMangle("<svg onload=x>"), JSCommentNoise("<svg onload=x>")))
	assert.Equal(t, first, second)
}

func TestCaseShufflePreservesLettersCaseInsensitively(t *testing.T) {
	p := NewPipeline(seeded(4))
	p.CaseProbability = 1
	assert.Equal(t, "<SCRIPT>1</SCRIPT>", p.CaseShuffle("<script>1</script>"))
	p.CaseProbability = 0.5
	out := p.CaseShuffle("<script>alert</script>")
	assert.True(t, strings.EqualFold(out, "<script>alert</script>"))
}

func TestInsertZeroWidthOnlyBetweenAlnum(t *testing.T) {
	p := NewPipeline(seeded(2))
	p.ZeroWidthDensity = 1
	out := p.InsertZeroWidth("ab<c")
	assert.Equal(t, "ab<c", stripZeroWidth(out))
	assert.NotEqual(t, "ab<c", out)
	assert.True(t, strings.HasPrefix(out, "a"))
	assert.True(t, strings.HasSuffix(out, "<c"))
	assert.Equal(t, "", p.InsertZeroWidth(""))
}

func TestHTMLCommentNoise(t *testing.T) {
	p := NewPipeline(seeded(1))
	assert.Equal(t, "<!--x-->abcde<!--x-->fg", p.HTMLCommentNoise("abcdefg"))
	assert.Equal(t, "", p.HTMLCommentNoise(""))
}

func TestJSCommentNoise(t *testing.T) {
	assert.Equal(t, "</**/script/**/>", JSCommentNoise("<script>"))
	assert.Equal(t, "<b>", JSCommentNoise("<b>"))
}

func TestEntityMangle(t *testing.T) {
	out := NewPipeline(seeded(7)).EntityMangle(`<a href="x">`)
	assert.NotContains(t, out, "<")
	assert.NotContains(t, out, `"`)
	assert.Contains(t, out, "a href")
}

func TestURLMangle(t *testing.T) {
	assert.Equal(t, "%3Cscript%3Ea-b_c.d~%3C%2Fscript%3E", URLMangle("<script>a-b_c.d~</script>"))
	assert.Equal(t, "%E2%80%8B", URLMangle("\u200b"))
}

func TestKeywordSplitKeepsCase(t *testing.T) {
	p := NewPipeline(seeded(11))
	out := p.KeywordSplit("<ScRiPt>")
	assert.NotEqual(t, "<ScRiPt>", out)
	assert.True(t, strings.HasPrefix(out, "<ScR"))
	assert.True(t, strings.HasSuffix(out, "iPt>"))
	assert.Equal(t, "<b>", p.KeywordSplit("<b>"))
}

func TestKeywordSplitKeepsUTF8ForFoldedKeywords(t *testing.T) {
	// U+017F case-folds to s, so it matches the script keywords
	payload := "<a href=\"java\u017fcript:x\">"
	for seed := int64(0); seed < 20; seed++ {
		p := NewPipeline(seeded(seed))
		out := p.KeywordSplit(payload)
		assert.True(t, utf8.ValidString(out), "seed %d: %q", seed, out)
		assert.NotEqual(t, payload, out)
		for _, variant := range NewPipeline(seeded(seed)).Expand(payload) {
			assert.True(t, utf8.ValidString(variant), "seed %d: %q", seed, variant)
		}
	}
}

func TestDeferredWrappers(t *testing.T) {
	out := DeferredWrappers("document.title='x'")
	assert.Equal(t, []string{
		"setTimeout(function(){document.title='x'},10)",
		"(()=>{document.title='x'})()",
		`Function('','document.title=\'x\'')()`,
	}, out)
	assert.True(t, LooksLikeJS("a=b"))
	assert.False(t, LooksLikeJS("<b>plain</b>"))
}
