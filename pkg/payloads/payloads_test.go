/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: payloads_test.go
Description: Tests for the mutation engine: catalog selection, CSP filtering, wordlists,
determinism, deduplication and truncation.
*/

package payloads

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/csp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSubstitute(t *testing.T) {
	out := Substitute(`<b>{MARKER}</b><img onerror="{JSCMD}">`, "abc123")
	assert.Equal(t, `<b>abc123</b><img onerror="document.title='xssentinel-hit-abc123'">`, out)
	assert.NotContains(t, out, "alert")
	assert.Equal(t, `document.title='xssentinel-hit-a\'b'`, JSCommand("a'b"))
}

func TestBuildDeterministicForSeed(t *testing.T) {
	opts := func() BuildOptions {
		caps := csp.Parse("default-src 'self'")
		return BuildOptions{CSP: &caps, Marker: "abc123", Rand: seeded(1337), InlineRetention: DefaultInlineRetention}
	}
	a, err := Build(opts())
	require.NoError(t, err)
	b, err := Build(opts())
	require.NoError(t, err)
	assert.Equal(t, a.Payloads, b.Payloads)
	assert.NotEmpty(t, a.Payloads)
}

func TestBuildDeduplicatesAndCaps(t *testing.T) {
	res, err := Build(BuildOptions{Marker: "abc123", Rand: seeded(3), MaxPayloads: 17})
	require.NoError(t, err)
	assert.Len(t, res.Payloads, 17)
	assert.Equal(t, res.Payloads, Dedupe(res.Payloads))

	full, err := Build(BuildOptions{Marker: "abc123", Rand: seeded(3)})
	require.NoError(t, err)
	assert.Equal(t, full.Payloads[:17], res.Payloads, "truncation keeps the stable prefix")
}

func TestBuildNeverEmptyUnderMaximalFiltering(t *testing.T) {
	caps := csp.Parse("script-src 'none'")
	catalog := []Template{
		{Body: "<script>{JSCMD}</script>", RequiresInline: true},
		{Body: "<iframe src=data:text/html,x>", RequiresData: true},
		{Body: "<x>", RequiresBlob: true},
	}
	res, err := Build(BuildOptions{CSP: &caps, Marker: "m1", Rand: seeded(9), Catalog: catalog, InlineRetention: 0})
	require.NoError(t, err)
	assert.True(t, res.FilterBypassed)
	assert.NotEmpty(t, res.Payloads)
	assert.Equal(t, 3, res.Kept)
}

func TestBuildScenarioAExcludesMostInline(t *testing.T) {
	caps := csp.Parse("default-src 'self'")
	require.False(t, caps.AllowsInline)

	catalog := make([]Template, 0, 400)
	for i := 0; i < 400; i++ {
		catalog = append(catalog, Template{Body: "<script>{MARKER}</script>", RequiresInline: true})
	}
	catalog = append(catalog, Template{Body: "';{JSCMD};//"})

	kept, retained := FilterByCSP(catalog, caps, DefaultInlineRetention, seeded(42))
	assert.Equal(t, retained+1, len(kept))
	assert.Greater(t, retained, 40)
	assert.Less(t, retained, 160)
}

func TestFilterByCSPDropsDataAndBlob(t *testing.T) {
	caps := csp.Parse("script-src 'unsafe-inline'")
	catalog := []Template{
		{Body: "a", RequiresData: true},
		{Body: "b", RequiresBlob: true},
		{Body: "c", RequiresInline: true},
	}
	kept, retained := FilterByCSP(catalog, caps, 0, seeded(1))
	require.Len(t, kept, 1)
	assert.Equal(t, "c", kept[0].Body)
	assert.Zero(t, retained)
}

func TestBuildWithoutCSPKeepsEverything(t *testing.T) {
	res, err := Build(BuildOptions{Marker: "abc123", Rand: seeded(5)})
	require.NoError(t, err)
	assert.Equal(t, len(BuiltinCatalog()), res.Kept)
	assert.Equal(t, res.Templates, res.Kept)
}

func TestBuildReplaceMode(t *testing.T) {
	path := writeFile(t, "list.txt", "# comment\n\n<u>{MARKER}</u>\n")
	res, err := Build(BuildOptions{Marker: "zz", Rand: seeded(1), Wordlists: []string{path}, Mode: ModeReplace})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Templates)
	assert.Equal(t, "<u>zz</u>", res.Payloads[0])

	// replace with nothing loadable falls back to the catalog
	res, err = Build(BuildOptions{Marker: "zz", Rand: seeded(1), Wordlists: []string{"/does/not/exist"}, Mode: ModeReplace})
	require.NoError(t, err)
	assert.Equal(t, len(BuiltinCatalog()), res.Templates)
	require.Len(t, res.Warnings, 1)
	assert.True(t, errors.Is(res.Warnings[0], core.ErrWordlistLoad))
}

func TestLoadWordlistsSkipsUnreadableFiles(t *testing.T) {
	good := writeFile(t, "good.txt", "one\ntwo\n")
	templates, errs := LoadWordlists([]string{"/missing.txt", good})
	assert.Len(t, errs, 1)
	require.Len(t, templates, 2)
	assert.True(t, templates[0].RequiresInline)
	assert.False(t, templates[0].RequiresData)
	assert.Equal(t, good, templates[1].Source)
}

func TestLoadYAMLCatalog(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `templates:
  - body: "';{JSCMD};//"
    requires_inline: false
    context_tags: [js_string]
  - body: "<script>{JSCMD}</script>"
  - body: ""
`)
	templates, err := LoadWordlist(path)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.False(t, templates[0].RequiresInline)
	assert.Equal(t, []string{TagJSString}, templates[0].ContextTags)
	assert.True(t, templates[1].RequiresInline)

	bad := writeFile(t, "bad.yml", "templates: [")
	_, err = LoadWordlist(bad)
	assert.ErrorIs(t, err, core.ErrWordlistLoad)
}

func TestBuildRequiresMarker(t *testing.T) {
	_, err := Build(BuildOptions{})
	assert.Error(t, err)
}

func TestBuiltinCatalogIsCopied(t *testing.T) {
	c := BuiltinCatalog()
	c[0].Body = "mutated"
	assert.NotEqual(t, "mutated", BuiltinCatalog()[0].Body)
	for _, tpl := range BuiltinCatalog() {
		assert.True(t, strings.Contains(tpl.Body, PlaceholderJSCmd) || strings.Contains(tpl.Body, PlaceholderMarker), tpl.Body)
	}
}
