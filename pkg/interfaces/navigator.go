/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: navigator.go
Description: The navigator contract. Everything the probe needs from a browser session
goes through this interface so the orchestration logic can be driven by chromedp in
production and by a scripted fake in tests.
*/

package interfaces

import (
	"context"
	"net/http"
	"net/url"
)

// NavigationResponse is the main-document response of a navigation
type NavigationResponse struct {
	Status   int
	Headers  http.Header
	FinalURL string
}

// Header returns a response header, case-insensitively
func (r *NavigationResponse) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// ElementHandle is an opaque reference to a DOM element
type ElementHandle interface {
	// Attribute returns the element attribute captured when the handle was resolved
	Attribute(name string) (string, bool)
}

// Cookie is a cookie scoped to a URL
type Cookie struct {
	Name  string
	Value string
	URL   string
}

// Navigator abstracts one browser page/session.
// Implementations apply their configured default timeout to every call.
type Navigator interface {
	// Navigate loads url and waits until the document is parsed
	Navigate(ctx context.Context, url string) (*NavigationResponse, error)
	// Evaluate runs script in page context and decodes its JSON result into out (out may be nil)
	Evaluate(ctx context.Context, script string, out interface{}) error
	// QuerySelectorAll resolves selector in the document, or within parent when non-nil
	QuerySelectorAll(ctx context.Context, selector string, parent ElementHandle) ([]ElementHandle, error)
	Fill(ctx context.Context, el ElementHandle, value string) error
	SubmitForm(ctx context.Context, form ElementHandle) error
	// WaitForLoad blocks until the current document is parsed
	WaitForLoad(ctx context.Context) error
	Screenshot(ctx context.Context, path string) error
	// AddInitScript registers a script that runs before any page script on every later navigation
	AddInitScript(ctx context.Context, script string) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error
	AddCookies(ctx context.Context, cookies []Cookie) error
	StartTrace(ctx context.Context) error
	StopTrace(ctx context.Context, path string) error
	StartHARRecording(path string) error
	// Close releases the session and flushes HAR/trace artifacts
	Close() error
}

// SameDocument reports whether moving from current to target only changes the fragment.
// An identical URL is not a same-document move; navigating to it again reloads the page.
func SameDocument(current, target *url.URL) bool {
	if current == nil || target == nil || target.Fragment == "" {
		return false
	}
	if current.String() == target.String() {
		return false
	}
	a, b := *current, *target
	a.Fragment, a.RawFragment = "", ""
	b.Fragment, b.RawFragment = "", ""
	return a.String() == b.String()
}
