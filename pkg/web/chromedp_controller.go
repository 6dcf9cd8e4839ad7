/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: chromedp_controller.go
Description: Navigator implementation using chromedp. Handles navigation with response capture,
script evaluation, form interaction, screenshots, init scripts, headers and cookies, Chrome
tracing for hit evidence, and keeps an event journal that backs the session HAR.
*/

package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/tracing"
	"github.com/chromedp/chromedp"
	"github.com/kleascm/xssentinel/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// ControllerOptions configures the browser session
type ControllerOptions struct {
	Headless   bool
	ChromePath string
	UserAgent  string
	Timeout    time.Duration
}

// ChromeDPController implements interfaces.Navigator using headless Chrome
type ChromeDPController struct {
	opts   ControllerOptions
	logger logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	alloc  context.CancelFunc

	current  *url.URL
	lastResp *interfaces.NavigationResponse

	journal *journal
	conMu   sync.Mutex
	console []string

	harPath       string
	tracing       bool
	chromeTracing bool
}

// traceCategories covers script execution, DOM timeline and loading
var traceCategories = []string{
	"devtools.timeline",
	"disabled-by-default-devtools.timeline",
	"v8.execute",
	"blink.user_timing",
	"loading",
}

type nodeHandle struct {
	node *cdp.Node
}

func (h *nodeHandle) Attribute(name string) (string, bool) {
	attrs := h.node.Attributes
	for i := 0; i+1 < len(attrs); i += 2 {
		if strings.EqualFold(attrs[i], name) {
			return attrs[i+1], true
		}
	}
	return "", false
}

// NewChromeDPController creates a controller; call Start before use
func NewChromeDPController(opts ControllerOptions, logger logrus.FieldLogger) *ChromeDPController {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ChromeDPController{opts: opts, logger: logger, journal: newJournal()}
}

// ChromeDPSession returns a SessionFactory that starts a new controller per run
func ChromeDPSession(opts ControllerOptions, logger logrus.FieldLogger) SessionFactory {
	return func(ctx context.Context) (interfaces.Navigator, error) {
		c := NewChromeDPController(opts, logger)
		if err := c.Start(ctx); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	}
}

// Start launches the browser and attaches event listeners
func (c *ChromeDPController) Start(ctx context.Context) error {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", c.opts.Headless))
	if c.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ChromePath))
	}
	if c.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(c.opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	c.ctx = browserCtx
	c.cancel = browserCancel
	c.alloc = allocCancel

	chromedp.ListenTarget(c.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			c.journal.request(e)
		case *network.EventResponseReceived:
			c.journal.response(e)
		case *network.EventLoadingFinished:
			c.journal.finished(e)
		case *network.EventLoadingFailed:
			c.journal.failed(e)
		case *tracing.EventDataCollected:
			c.journal.collect(e)
		case *tracing.EventTracingComplete:
			c.journal.completed(e)
		case *runtime.EventConsoleAPICalled:
			parts := make([]string, 0, len(e.Args))
			for _, arg := range e.Args {
				if len(arg.Value) > 0 {
					parts = append(parts, string(arg.Value))
				} else {
					parts = append(parts, arg.Description)
				}
			}
			c.addConsole(fmt.Sprintf("[console.%s] %s", e.Type, strings.Join(parts, " ")))
		case *runtime.EventExceptionThrown:
			c.addConsole(fmt.Sprintf("[exception] %s", e.ExceptionDetails.Error()))
		}
	})

	if err := chromedp.Run(c.ctx, network.Enable(), runtime.Enable(), page.Enable()); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	return nil
}

func (c *ChromeDPController) addConsole(line string) {
	c.conMu.Lock()
	c.console = append(c.console, line)
	c.conMu.Unlock()
}

// DrainConsole returns console output and exceptions collected since the last call
func (c *ChromeDPController) DrainConsole() []string {
	c.conMu.Lock()
	defer c.conMu.Unlock()
	out := c.console
	c.console = nil
	return out
}

// run executes actions bounded by the session timeout and the caller's context
func (c *ChromeDPController) run(ctx context.Context, actions ...chromedp.Action) error {
	if c.ctx == nil {
		return errors.New("browser not started")
	}
	runCtx, cancel := context.WithTimeout(c.ctx, c.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads rawURL. A change of fragment only is a same-document navigation:
// it is applied through location.hash and reports the last document response.
// Navigating to the exact current URL reloads it.
func (c *ChromeDPController) Navigate(ctx context.Context, rawURL string) (*interfaces.NavigationResponse, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if target.Fragment != "" && c.lastResp != nil {
		c.refreshLocation(ctx)
	}
	if c.lastResp != nil && interfaces.SameDocument(c.current, target) {
		script := fmt.Sprintf("location.hash = %q", "#"+target.EscapedFragment())
		if err := c.run(ctx, chromedp.Evaluate(script, nil)); err != nil {
			return nil, err
		}
		c.current = target
		resp := *c.lastResp
		resp.FinalURL = rawURL
		return &resp, nil
	}

	if c.ctx == nil {
		return nil, errors.New("browser not started")
	}
	runCtx, cancel := context.WithTimeout(c.ctx, c.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	res, err := chromedp.RunResponse(runCtx, chromedp.Navigate(rawURL))
	if err != nil {
		c.current = nil
		return nil, err
	}

	resp := &interfaces.NavigationResponse{FinalURL: rawURL, Headers: make(http.Header)}
	if res != nil {
		resp.Status = int(res.Status)
		resp.FinalURL = res.URL
		for k, v := range res.Headers {
			resp.Headers.Set(k, fmt.Sprint(v))
		}
	}
	c.current = target
	c.lastResp = resp
	return resp, nil
}

// refreshLocation replaces the remembered URL with the page's live location.
// Redirects, scripts and form posts can all move the page without a Navigate call.
func (c *ChromeDPController) refreshLocation(ctx context.Context) {
	var live string
	if err := c.run(ctx, chromedp.Evaluate("location.href", &live)); err != nil {
		c.current = nil
		return
	}
	u, err := url.Parse(live)
	if err != nil {
		c.current = nil
		return
	}
	c.current = u
}

// Evaluate runs script in page context and decodes the result into out
func (c *ChromeDPController) Evaluate(ctx context.Context, script string, out interface{}) error {
	return c.run(ctx, chromedp.Evaluate(script, out))
}

// QuerySelectorAll resolves selector in the document or below parent
func (c *ChromeDPController) QuerySelectorAll(ctx context.Context, selector string, parent interfaces.ElementHandle) ([]interfaces.ElementHandle, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if parent != nil {
		p, ok := parent.(*nodeHandle)
		if !ok {
			return nil, errors.New("foreign element handle")
		}
		opts = append(opts, chromedp.FromNode(p.node))
	}
	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, err
	}
	out := make([]interfaces.ElementHandle, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &nodeHandle{node: n})
	}
	return out, nil
}

// Fill sets the value of an input or textarea
func (c *ChromeDPController) Fill(ctx context.Context, el interfaces.ElementHandle, value string) error {
	h, ok := el.(*nodeHandle)
	if !ok {
		return errors.New("foreign element handle")
	}
	return c.run(ctx, chromedp.SetValue([]cdp.NodeID{h.node.NodeID}, value, chromedp.ByNodeID))
}

// SubmitForm submits the form element. The page location is unknown afterwards.
func (c *ChromeDPController) SubmitForm(ctx context.Context, form interfaces.ElementHandle) error {
	h, ok := form.(*nodeHandle)
	if !ok {
		return errors.New("foreign element handle")
	}
	c.current = nil
	return c.run(ctx, chromedp.Submit([]cdp.NodeID{h.node.NodeID}, chromedp.ByNodeID))
}

// WaitForLoad waits until the document body is ready
func (c *ChromeDPController) WaitForLoad(ctx context.Context) error {
	return c.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

// Screenshot saves a full-page screenshot to path
func (c *ChromeDPController) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := c.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	return writeFile(path, buf)
}

// AddInitScript registers script for every new document in this session
func (c *ChromeDPController) AddInitScript(ctx context.Context, script string) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
		return err
	}))
}

// SetExtraHeaders replaces the extra headers sent with every request
func (c *ChromeDPController) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	hdrs := make(network.Headers, len(headers))
	for k, v := range headers {
		hdrs[k] = v
	}
	return c.run(ctx, network.SetExtraHTTPHeaders(hdrs))
}

// AddCookies sets browser cookies, each scoped to its URL
func (c *ChromeDPController) AddCookies(ctx context.Context, cookies []interfaces.Cookie) error {
	for _, ck := range cookies {
		if err := c.run(ctx, network.SetCookie(ck.Name, ck.Value).WithURL(ck.URL)); err != nil {
			return fmt.Errorf("failed to set cookie %s: %w", ck.Name, err)
		}
	}
	return nil
}

// StartTrace begins a new trace buffer and starts Chrome tracing.
// When Chrome refuses, the buffer still records network events and the error is returned.
func (c *ChromeDPController) StartTrace(ctx context.Context) error {
	c.journal.startTrace()
	c.tracing = true
	c.chromeTracing = false

	start := tracing.Start().
		WithTransferMode(tracing.TransferModeReportEvents).
		WithTraceConfig(&tracing.TraceConfig{
			RecordMode:         tracing.RecordModeRecordAsMuchAsPossible,
			IncludedCategories: traceCategories,
		})
	if err := c.run(ctx, start); err != nil {
		return fmt.Errorf("chrome tracing unavailable: %w", err)
	}
	c.chromeTracing = true
	return nil
}

// StopTrace ends Chrome tracing, waits for the flush and writes the trace to path
func (c *ChromeDPController) StopTrace(ctx context.Context, path string) error {
	if !c.tracing {
		return errors.New("trace not started")
	}
	c.tracing = false

	if c.chromeTracing {
		c.chromeTracing = false
		flushed := c.journal.flushed()
		if err := c.run(ctx, tracing.End()); err != nil {
			c.logger.WithError(err).Debug("Chrome tracing did not stop cleanly")
		} else {
			timer := time.NewTimer(c.opts.Timeout)
			defer timer.Stop()
			select {
			case <-flushed:
			case <-timer.C:
				c.logger.Debug("Chrome trace flush timed out, writing partial trace")
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return writeJSON(path, c.journal.stopTrace())
}

// StartHARRecording records every request of the session; the HAR is written on Close
func (c *ChromeDPController) StartHARRecording(path string) error {
	c.harPath = path
	return nil
}

// Close flushes the HAR and shuts the browser down
func (c *ChromeDPController) Close() error {
	var err error
	if c.harPath != "" {
		if werr := writeJSON(c.harPath, c.journal.har()); werr != nil {
			err = fmt.Errorf("failed to write HAR: %w", werr)
		} else {
			c.logger.WithField("path", c.harPath).Debug("Session HAR written")
		}
		c.harPath = ""
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.alloc != nil {
		c.alloc()
	}
	return err
}

// Helper to write evidence files
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
