/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: navtest.go
Description: In-memory scripted navigator for tests. A Site callback renders pages per
URL; the fake keeps title, DOM and sink log the way a real page would and records every
call so tests can assert on the orchestration.
*/

package navtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/interfaces"
)

// Page is what the fake site renders for a navigation or form submission
type Page struct {
	Status  int
	Headers http.Header
	HTML    string
	Title   string
	Sinks   []core.SinkEvent
	Forms   [][]string // named fields per form
	Console []string   // console lines emitted while loading
	// URL is the location after a form submission. Empty leaves the location unknown.
	URL string
}

// Site renders a page for a URL
type Site func(u *url.URL) Page

// SubmitHandler renders the page produced by submitting form formIndex with values
type SubmitHandler func(formIndex int, values map[string]string) Page

// Navigator is a scripted interfaces.Navigator
type Navigator struct {
	mu sync.Mutex

	Site     Site
	OnSubmit SubmitHandler

	// Failure injection
	NavigateErr   func(rawURL string) error
	EvaluateErr   func(script string) error
	ScreenshotErr error
	TraceErr      error

	// Recorded calls
	Navigations []string
	Headers     []map[string]string
	Cookies     []interfaces.Cookie
	InitScripts []string
	Evaluated   []string
	Screenshots []string
	Traces      []string
	TraceStarts int
	HARPath     string
	Submits     []map[string]string
	Renders     int
	Closed      bool

	current *url.URL
	page    Page
	values  map[string]string
	console []string
}

// New creates a navigator serving site
func New(site Site) *Navigator {
	return &Navigator{Site: site}
}

type element struct {
	attrs     map[string]string
	formIndex int
	field     string
}

func (e *element) Attribute(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// Navigate renders the page for rawURL. Fragment-only changes keep the current page,
// as a browser would for a same-document navigation. The exact current URL re-renders.
func (n *Navigator) Navigate(ctx context.Context, rawURL string) (*interfaces.NavigationResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.Navigations = append(n.Navigations, rawURL)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.NavigateErr != nil {
		if err := n.NavigateErr(rawURL); err != nil {
			return nil, err
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if interfaces.SameDocument(n.current, u) {
		n.current = u
		return &interfaces.NavigationResponse{Status: n.page.Status, Headers: n.page.Headers, FinalURL: rawURL}, nil
	}
	n.current = u
	n.page = n.Site(u)
	if n.page.Status == 0 {
		n.page.Status = http.StatusOK
	}
	n.values = make(map[string]string)
	n.console = append(n.console, n.page.Console...)
	n.Renders++
	return &interfaces.NavigationResponse{Status: n.page.Status, Headers: n.page.Headers, FinalURL: rawURL}, nil
}

// Evaluate answers the detector's known scripts from the simulated page state
func (n *Navigator) Evaluate(ctx context.Context, script string, out interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.Evaluated = append(n.Evaluated, script)
	if n.EvaluateErr != nil {
		if err := n.EvaluateErr(script); err != nil {
			return err
		}
	}

	var result interface{}
	switch {
	case strings.Contains(script, "outerHTML"):
		result = n.page.HTML
	case strings.Contains(script, "__xssentinel_sinks||[]"):
		records := make([]map[string]interface{}, 0, len(n.page.Sinks))
		for _, s := range n.page.Sinks {
			records = append(records, map[string]interface{}{
				"name":   s.Name,
				"detail": s.Detail,
				"ts":     float64(s.Timestamp.UnixMilli()),
			})
		}
		result = records
	case strings.TrimSpace(script) == "document.title":
		result = n.page.Title
	case strings.Contains(script, "location.href"):
		if n.current != nil {
			result = n.current.String()
		}
	}
	if out == nil || result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// QuerySelectorAll supports "form" at document level and named fields within a form
func (n *Navigator) QuerySelectorAll(ctx context.Context, selector string, parent interfaces.ElementHandle) ([]interfaces.ElementHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if parent == nil {
		if selector != "form" {
			return nil, fmt.Errorf("navtest: unsupported selector %q", selector)
		}
		out := make([]interfaces.ElementHandle, 0, len(n.page.Forms))
		for i := range n.page.Forms {
			out = append(out, &element{attrs: map[string]string{}, formIndex: i})
		}
		return out, nil
	}
	form, ok := parent.(*element)
	if !ok || form.formIndex >= len(n.page.Forms) {
		return nil, errors.New("navtest: stale form handle")
	}
	out := make([]interfaces.ElementHandle, 0)
	for _, name := range n.page.Forms[form.formIndex] {
		out = append(out, &element{attrs: map[string]string{"name": name}, formIndex: form.formIndex, field: name})
	}
	return out, nil
}

func (n *Navigator) Fill(ctx context.Context, el interfaces.ElementHandle, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := el.(*element)
	if !ok || e.field == "" {
		return errors.New("navtest: not a field")
	}
	n.values[e.field] = value
	return nil
}

func (n *Navigator) SubmitForm(ctx context.Context, form interfaces.ElementHandle) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := form.(*element)
	if !ok {
		return errors.New("navtest: not a form")
	}
	submitted := make(map[string]string, len(n.values))
	for k, v := range n.values {
		submitted[k] = v
	}
	n.Submits = append(n.Submits, submitted)
	n.current = nil
	if n.OnSubmit != nil {
		n.page = n.OnSubmit(e.formIndex, submitted)
		n.console = append(n.console, n.page.Console...)
		if n.page.URL != "" {
			if u, err := url.Parse(n.page.URL); err == nil {
				n.current = u
			}
		}
	}
	n.values = make(map[string]string)
	return nil
}

// DrainConsole returns console lines emitted since the last call
func (n *Navigator) DrainConsole() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.console
	n.console = nil
	return out
}

func (n *Navigator) WaitForLoad(ctx context.Context) error {
	return ctx.Err()
}

func (n *Navigator) Screenshot(ctx context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ScreenshotErr != nil {
		return n.ScreenshotErr
	}
	n.Screenshots = append(n.Screenshots, path)
	return nil
}

func (n *Navigator) AddInitScript(ctx context.Context, script string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.InitScripts = append(n.InitScripts, script)
	return nil
}

func (n *Navigator) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	copied := make(map[string]string, len(headers))
	for k, v := range headers {
		copied[k] = v
	}
	n.Headers = append(n.Headers, copied)
	return nil
}

func (n *Navigator) AddCookies(ctx context.Context, cookies []interfaces.Cookie) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Cookies = append(n.Cookies, cookies...)
	return nil
}

func (n *Navigator) StartTrace(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.TraceStarts++
	return nil
}

func (n *Navigator) StopTrace(ctx context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.TraceErr != nil {
		return n.TraceErr
	}
	n.Traces = append(n.Traces, path)
	return nil
}

func (n *Navigator) StartHARRecording(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.HARPath = path
	return nil
}

func (n *Navigator) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Closed = true
	return nil
}

// Sink is a convenience constructor for simulated sink events
func Sink(name, detail string) core.SinkEvent {
	return core.SinkEvent{Name: name, Detail: detail, Timestamp: time.UnixMilli(1700000000000)}
}
