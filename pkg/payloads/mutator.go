/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: mutator.go
Description: Payload mutation engine. Expands the template catalog and external wordlists
into a deduplicated, capped, CSP-aware list of concrete payloads, passing every
substituted template through the evasion pipeline.
*/

package payloads

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/csp"
)

// MergeMode decides how external wordlists combine with the built-in catalog
type MergeMode string

const (
	ModeExtend  MergeMode = "extend"
	ModeReplace MergeMode = "replace"
)

// DefaultInlineRetention is the share of inline-requiring templates kept under a
// blocking CSP, covering parser differentials between enforcement and rendering.
const DefaultInlineRetention = 0.25

// BuildOptions configures one payload build
type BuildOptions struct {
	CSP             *csp.Capabilities // nil: no CSP awareness
	Marker          string
	Wordlists       []string
	Mode            MergeMode
	MaxPayloads     int        // 0 = unlimited
	Rand            *rand.Rand // nil: time-seeded source
	InlineRetention float64    // probability in [0,1]; negative means DefaultInlineRetention
	Catalog         []Template // nil: BuiltinCatalog()
}

// BuildResult holds the payloads plus what happened on the way
type BuildResult struct {
	Payloads       []string
	Templates      int     // templates selected before CSP filtering
	Kept           int     // templates surviving CSP filtering
	Retained       int     // inline templates kept despite a blocking CSP
	FilterBypassed bool    // filtering removed everything so the unfiltered list was used
	Warnings       []error // skipped wordlists
}

// JSCommand is the benign, alert-free execution beacon substituted for {JSCMD}
func JSCommand(marker string) string {
	escaped := strings.ReplaceAll(strings.ReplaceAll(marker, `\`, `\\`), `'`, `\'`)
	return "document.title='" + core.ExecutionMark(escaped) + "'"
}

// Substitute resolves the template placeholders
func Substitute(body, marker string) string {
	body = strings.ReplaceAll(body, PlaceholderMarker, marker)
	return strings.ReplaceAll(body, PlaceholderJSCmd, JSCommand(marker))
}

// Build runs the full mutation pipeline
func Build(opts BuildOptions) (*BuildResult, error) {
	if opts.Marker == "" {
		return nil, errors.New("payload build requires a marker")
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	retention := opts.InlineRetention
	if retention < 0 {
		retention = DefaultInlineRetention
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = BuiltinCatalog()
	}

	result := &BuildResult{}

	external, warnings := LoadWordlists(opts.Wordlists)
	result.Warnings = warnings

	var base []Template
	if opts.Mode == ModeReplace && len(external) > 0 {
		base = external
	} else {
		base = append(append(base, catalog...), external...)
	}
	result.Templates = len(base)

	selected := base
	if opts.CSP != nil {
		filtered, retained := FilterByCSP(base, *opts.CSP, retention, rng)
		result.Retained = retained
		if len(filtered) == 0 && len(base) > 0 {
			result.FilterBypassed = true
		} else {
			selected = filtered
		}
	}
	result.Kept = len(selected)

	pipeline := NewPipeline(rng)
	seen := make(map[string]struct{})
	out := make([]string, 0)

fill:
	for _, tpl := range selected {
		for _, variant := range pipeline.Expand(Substitute(tpl.Body, opts.Marker)) {
			if _, ok := seen[variant]; ok {
				continue
			}
			seen[variant] = struct{}{}
			out = append(out, variant)
			if opts.MaxPayloads > 0 && len(out) >= opts.MaxPayloads {
				break fill
			}
		}
	}
	result.Payloads = out
	return result, nil
}

// FilterByCSP drops templates the policy would block. Inline-requiring templates
// survive with probability retention. Returns the kept templates and how many
// inline templates were retained against the policy.
func FilterByCSP(templates []Template, caps csp.Capabilities, retention float64, rng *rand.Rand) ([]Template, int) {
	kept := make([]Template, 0, len(templates))
	retained := 0
	for _, tpl := range templates {
		if tpl.RequiresData && !caps.AllowsData {
			continue
		}
		if tpl.RequiresBlob && !caps.AllowsBlob {
			continue
		}
		if tpl.RequiresInline && !caps.AllowsInline {
			if rng.Float64() >= retention {
				continue
			}
			retained++
		}
		kept = append(kept, tpl)
	}
	return kept, retained
}
