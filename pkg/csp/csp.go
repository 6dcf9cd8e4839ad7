/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: csp.go
Description: Content-Security-Policy capability adapter. Reduces a raw policy string
into the handful of capabilities the payload engine cares about: inline scripts,
eval, data: and blob: sources.
*/

package csp

import (
	"strings"
)

// Source tokens that grant a capability inside script-src/default-src
const (
	tokenUnsafeInline = "'unsafe-inline'"
	tokenUnsafeEval   = "'unsafe-eval'"
	tokenData         = "data:"
	tokenBlob         = "blob:"
)

// Capabilities is the reduced view of a policy.
// The zero value is NOT permissive; use Permissive() for "no policy".
type Capabilities struct {
	Raw          string   `json:"raw,omitempty" yaml:"raw,omitempty"`
	Directive    string   `json:"directive,omitempty" yaml:"directive,omitempty"` // script-src, default-src or "" when none applied
	ScriptSrc    []string `json:"script_src" yaml:"script_src"`
	AllowsInline bool     `json:"allows_inline" yaml:"allows_inline"`
	AllowsEval   bool     `json:"allows_eval" yaml:"allows_eval"`
	AllowsData   bool     `json:"allows_data" yaml:"allows_data"`
	AllowsBlob   bool     `json:"allows_blob" yaml:"allows_blob"`
}

// Permissive returns the capabilities of a page that declared no restriction.
func Permissive(raw string) Capabilities {
	return Capabilities{
		Raw:          raw,
		ScriptSrc:    []string{},
		AllowsInline: true,
		AllowsEval:   true,
		AllowsData:   true,
		AllowsBlob:   true,
	}
}

// Restricted reports whether any capability is denied.
func (c Capabilities) Restricted() bool {
	return !(c.AllowsInline && c.AllowsEval && c.AllowsData && c.AllowsBlob)
}

// Parse reduces a raw policy string. An empty string means no policy was sent.
// Malformed directives are skipped one by one; parsing never fails.
func Parse(raw string) Capabilities {
	if strings.TrimSpace(raw) == "" {
		return Permissive(raw)
	}

	directives := parseDirectives(raw)

	name := "script-src"
	value, ok := directives[name]
	if !ok {
		name = "default-src"
		value, ok = directives[name]
	}
	if !ok {
		return Permissive(raw)
	}

	tokens := strings.Fields(value)
	caps := Capabilities{
		Raw:       raw,
		Directive: name,
		ScriptSrc: tokens,
	}
	for _, tok := range tokens {
		// nonce-/sha256- sources deliberately grant nothing here
		switch strings.ToLower(tok) {
		case tokenUnsafeInline:
			caps.AllowsInline = true
		case tokenUnsafeEval:
			caps.AllowsEval = true
		case tokenData:
			caps.AllowsData = true
		case tokenBlob:
			caps.AllowsBlob = true
		}
	}
	return caps
}

// Merge picks the header policy when present and falls back to the <meta> policy.
func Merge(header, meta string) Capabilities {
	if strings.TrimSpace(header) != "" {
		return Parse(header)
	}
	return Parse(meta)
}

// parseDirectives splits a policy into name -> value. First occurrence wins,
// matching how browsers treat duplicated directives.
func parseDirectives(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value := part, ""
		if idx := strings.IndexAny(part, " \t\r\n"); idx >= 0 {
			name, value = part[:idx], strings.TrimSpace(part[idx+1:])
		}
		name = strings.ToLower(name)
		if !validDirectiveName(name) {
			continue
		}
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = value
	}
	return out
}

func validDirectiveName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}
