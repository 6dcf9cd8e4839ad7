/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fuzzer.go
Description: Fuzzing orchestrator. Drives one navigator session through the run state machine:
navigate and capture CSP, build payloads, fuzz URL parameters with a fragment fallback, fuzz
form fields, and record one finding per attempt with evidence for every hit.
*/

package web

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/csp"
	"github.com/kleascm/xssentinel/pkg/detector"
	"github.com/kleascm/xssentinel/pkg/interfaces"
	"github.com/kleascm/xssentinel/pkg/payloads"
	"github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"
	"golang.org/x/time/rate"
)

// State is a step of the run state machine
type State string

const (
	StateIdle             State = "idle"
	StateNavigated        State = "navigated"
	StateFuzzingURLParams State = "fuzzing_url_params"
	StateFuzzingForms     State = "fuzzing_forms"
	StateDone             State = "done"
)

// SyntheticParams are tried after the target's own query keys
var SyntheticParams = []string{
	"q", "query", "search", "id", "name", "title", "keyword",
	"s", "lang", "redirect", "url", "callback", "page", "ref",
}

const fieldSelector = "input[name], textarea[name]"

// RunResult is everything one run produced
type RunResult struct {
	RunID           string                      `json:"run_id"`
	Target          string                      `json:"target"`
	Marker          string                      `json:"marker"`
	Seed            int64                       `json:"seed"`
	StartedAt       time.Time                   `json:"started_at"`
	FinishedAt      time.Time                   `json:"finished_at"`
	CSP             *csp.Capabilities           `json:"csp,omitempty"`
	CSPByOrigin     map[string]csp.Capabilities `json:"csp_by_origin"`
	Payloads        int                         `json:"payloads"`
	PayloadWarnings []string                    `json:"payload_warnings,omitempty"`
	HARPath         string                      `json:"har_path,omitempty"`
	Interrupted     bool                        `json:"interrupted"`
	Findings        []core.Finding              `json:"findings"`
}

// Fuzzer orchestrates a probe run
type Fuzzer struct {
	config  *Config
	factory SessionFactory
	logger  logrus.FieldLogger

	// Reporter receives every finding, phase change and throttle; defaults to logging
	Reporter core.Reporter
	// Sleep is used for pacing, backoff and warmup waits
	Sleep SleepFunc

	rng      *rand.Rand
	seed     int64
	marker   string
	state    State
	nav      interfaces.Navigator
	det      *detector.Detector
	backoff  *Backoff
	pacer    *Pacer
	limiter  *rate.Limiter
	caps     *csp.Capabilities
	payloads []string
	seq      int
	result   *RunResult
}

// NewFuzzer validates config and prepares a run
func NewFuzzer(config *Config, factory SessionFactory, logger logrus.FieldLogger) (*Fuzzer, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	f := &Fuzzer{
		config:   config,
		factory:  factory,
		logger:   logger,
		Reporter: core.NewLoggerReporter(logger),
		Sleep:    Sleep,
		rng:      rng,
		seed:     seed,
		state:    StateIdle,
		backoff:  NewBackoff(config.BackoffBase, config.BackoffMax),
		pacer:    NewPacer(config.Pacing, config.Jitter, rng),
	}
	if config.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return f, nil
}

// State returns the current state
func (f *Fuzzer) State() State {
	return f.state
}

// Marker returns the run marker (set once Run starts)
func (f *Fuzzer) Marker() string {
	return f.marker
}

func (f *Fuzzer) setState(s State) {
	f.state = s
	f.Reporter.OnPhase(string(s))
}

// Run executes the full state machine once. Only session acquisition fails the run;
// every per-attempt failure ends up in a finding. On cancellation the findings
// collected so far are returned with Interrupted set.
func (f *Fuzzer) Run(ctx context.Context) (*RunResult, error) {
	if f.state != StateIdle {
		return nil, errors.New("fuzzer already ran")
	}

	f.marker = f.config.Marker
	if f.marker == "" {
		f.marker = core.NewMarker(f.rng, core.DefaultMarkerLength)
	}
	f.result = &RunResult{
		RunID:       uuid.NewString(),
		Target:      f.config.TargetURL,
		Marker:      f.marker,
		Seed:        f.seed,
		StartedAt:   time.Now(),
		CSPByOrigin: make(map[string]csp.Capabilities),
		Findings:    []core.Finding{},
	}
	log := f.logger.WithFields(logrus.Fields{"run_id": f.result.RunID, "target": f.config.TargetURL})

	nav, err := f.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSessionAcquire, err)
	}
	f.nav = nav
	defer func() {
		if err := nav.Close(); err != nil {
			log.WithError(err).Warn("Failed to close session cleanly")
		}
	}()
	f.det = detector.New(nav, f.logger, f.config.Timeout)

	f.setState(StateIdle)
	f.prepareSession(ctx)

	f.navigateTarget(ctx)
	f.setState(StateNavigated)

	f.buildPayloads()
	log.WithFields(logrus.Fields{
		"marker":   f.marker,
		"seed":     f.seed,
		"payloads": len(f.payloads),
	}).Info("Payloads ready")

	if f.config.FuzzURLParams && ctx.Err() == nil {
		f.setState(StateFuzzingURLParams)
		f.fuzzURLParams(ctx)
	}
	if f.config.FuzzForms && ctx.Err() == nil {
		f.setState(StateFuzzingForms)
		f.fuzzForms(ctx)
	}

	f.result.Interrupted = ctx.Err() != nil
	f.result.FinishedAt = time.Now()
	f.setState(StateDone)
	return f.result, nil
}

// prepareSession applies cookies, headers, identity and recorders. Failures are logged only.
func (f *Fuzzer) prepareSession(ctx context.Context) {
	if len(f.config.Cookies) > 0 {
		cookies := make([]interfaces.Cookie, 0, len(f.config.Cookies))
		for name, value := range f.config.Cookies {
			cookies = append(cookies, interfaces.Cookie{Name: name, Value: value, URL: f.config.TargetURL})
		}
		if err := f.nav.AddCookies(ctx, cookies); err != nil {
			f.logger.WithError(err).Warn("Failed to set cookies")
		}
	}
	if err := f.applyHeaders(ctx, f.config.UserAgent); err != nil {
		f.logger.WithError(err).Warn("Failed to set extra headers")
	}
	if f.config.RecordHAR {
		path := f.config.HARPath()
		if err := f.nav.StartHARRecording(path); err != nil {
			f.logger.WithError(err).Warn("Failed to start HAR recording")
		} else {
			f.result.HARPath = path
		}
	}
	if f.config.TraceOnHit {
		if err := f.nav.StartTrace(ctx); err != nil {
			f.logger.WithError(err).Warn("Failed to start tracing")
		}
	}
}

func (f *Fuzzer) applyHeaders(ctx context.Context, userAgent string) error {
	headers := make(map[string]string, len(f.config.Headers)+1)
	for k, v := range f.config.Headers {
		headers[k] = v
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	if len(headers) == 0 {
		return nil
	}
	return f.nav.SetExtraHeaders(ctx, headers)
}

func (f *Fuzzer) rotateUA(ctx context.Context) {
	if f.config.UAMode != UAModePerRequest {
		return
	}
	if err := f.applyHeaders(ctx, RandomUserAgent(f.rng)); err != nil {
		f.logger.WithError(err).Debug("User-Agent rotation failed")
	}
}

// navigateTarget loads the target, captures its CSP and warms up
func (f *Fuzzer) navigateTarget(ctx context.Context) {
	resp, _, err := f.navigate(ctx, f.config.TargetURL)
	if err != nil {
		f.logger.WithError(err).Warn("Initial navigation failed, continuing without CSP")
		return
	}
	f.captureCSP(ctx, resp)
	f.warmup(ctx)
}

func (f *Fuzzer) captureCSP(ctx context.Context, resp *interfaces.NavigationResponse) {
	header := resp.Header("Content-Security-Policy")
	meta := ""
	if header == "" {
		if dom, err := f.det.Snapshot(ctx); err == nil {
			meta = csp.FromHTML(dom)
		} else {
			f.logger.WithError(err).Debug("Meta CSP lookup failed")
		}
	}
	caps := csp.Merge(header, meta)

	origin := originOf(resp.FinalURL)
	if origin == "" {
		origin = originOf(f.config.TargetURL)
	}
	f.result.CSPByOrigin[origin] = caps
	if strings.TrimSpace(caps.Raw) == "" {
		f.logger.Info("No content security policy captured")
		return
	}
	f.caps = &caps
	f.result.CSP = &caps
	f.logger.WithFields(logrus.Fields{
		"directive":     caps.Directive,
		"allows_inline": caps.AllowsInline,
		"allows_eval":   caps.AllowsEval,
		"allows_data":   caps.AllowsData,
		"allows_blob":   caps.AllowsBlob,
	}).Info("Content security policy captured")
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// warmup performs gentle best-effort navigations before fuzzing
func (f *Fuzzer) warmup(ctx context.Context) {
	for i := 0; i < f.config.WarmupRequests; i++ {
		if ctx.Err() != nil {
			return
		}
		f.rotateUA(ctx)
		if err := f.waitRate(ctx); err != nil {
			return
		}
		if _, err := f.nav.Navigate(ctx, f.config.TargetURL); err != nil {
			f.logger.WithError(err).Debug("Warmup navigation failed")
		}
		if err := f.Sleep(ctx, f.config.WarmupWait); err != nil {
			return
		}
	}
}

func (f *Fuzzer) buildPayloads() {
	opts := payloads.BuildOptions{
		Marker:          f.marker,
		Wordlists:       f.config.Wordlists,
		Mode:            f.config.WordlistMode,
		MaxPayloads:     f.config.MaxPayloads,
		Rand:            f.rng,
		InlineRetention: f.config.InlineRetention,
	}
	if f.config.CSPAware && f.caps != nil {
		opts.CSP = f.caps
	}
	res, err := payloads.Build(opts)
	if err != nil {
		f.logger.WithError(err).Error("Payload build failed")
		return
	}
	for _, w := range res.Warnings {
		f.logger.WithError(w).Warn("Skipping wordlist")
		f.result.PayloadWarnings = append(f.result.PayloadWarnings, w.Error())
	}
	if res.FilterBypassed {
		f.logger.Warn("CSP filtering removed every template, using the unfiltered set")
	}
	f.payloads = res.Payloads
	f.result.Payloads = len(res.Payloads)
}

func (f *Fuzzer) waitRate(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}

// navigate loads target, retrying once after backoff on 403/429.
// The second return reports that the retry was throttled too.
func (f *Fuzzer) navigate(ctx context.Context, target string) (*interfaces.NavigationResponse, bool, error) {
	resp, err := f.navigateOnce(ctx, target)
	if err != nil {
		return nil, false, err
	}
	if !IsThrottled(resp.Status) {
		f.backoff.Reset()
		return resp, false, nil
	}

	wait := f.backoff.Next()
	f.Reporter.OnThrottle(resp.Status)
	f.logger.WithFields(logrus.Fields{"status": resp.Status, "backoff": wait}).Debug("Retrying after backoff")
	if err := f.Sleep(ctx, wait); err != nil {
		return resp, true, err
	}

	resp, err = f.navigateOnce(ctx, target)
	if err != nil {
		return nil, false, err
	}
	if !IsThrottled(resp.Status) {
		f.backoff.Reset()
		return resp, false, nil
	}
	f.Reporter.OnThrottle(resp.Status)
	return resp, true, nil
}

func (f *Fuzzer) navigateOnce(ctx context.Context, target string) (*interfaces.NavigationResponse, error) {
	if err := f.waitRate(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNavigation, err)
	}
	resp, err := f.nav.Navigate(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNavigation, err)
	}
	return resp, nil
}

func (f *Fuzzer) pace(ctx context.Context) {
	if d := f.pacer.Delay(); d > 0 {
		_ = f.Sleep(ctx, d)
	}
}

// CandidateParams returns the target's query keys followed by the synthetic
// names, deduplicated and capped at max (0 = unlimited)
func CandidateParams(target string, max int) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(SyntheticParams))
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if u, err := url.Parse(target); err == nil {
		for _, pair := range strings.Split(u.RawQuery, "&") {
			key := strings.SplitN(pair, "=", 2)[0]
			if k, err := url.QueryUnescape(key); err == nil {
				add(k)
			}
		}
	}
	for _, name := range SyntheticParams {
		add(name)
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// WithParam sets name to value in target's query. Every other pair keeps its
// original encoding and position; a new name is appended. The fragment is dropped.
func WithParam(target, name, value string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	encoded := url.QueryEscape(name) + "=" + url.QueryEscape(value)
	var pairs []string
	replaced := false
	if u.RawQuery != "" {
		for _, pair := range strings.Split(u.RawQuery, "&") {
			key := strings.SplitN(pair, "=", 2)[0]
			if k, err := url.QueryUnescape(key); err == nil && k == name {
				if !replaced {
					pairs = append(pairs, encoded)
					replaced = true
				}
				continue
			}
			pairs = append(pairs, pair)
		}
	}
	if !replaced {
		pairs = append(pairs, encoded)
	}
	u.RawQuery = strings.Join(pairs, "&")
	u.Fragment, u.RawFragment = "", ""
	return u.String(), nil
}

// WithFragment replaces target's fragment with the percent-encoded value
func WithFragment(target, value string) string {
	base := strings.SplitN(target, "#", 2)[0]
	return base + "#" + strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

func (f *Fuzzer) fuzzURLParams(ctx context.Context) {
	params := CandidateParams(f.config.TargetURL, f.config.MaxParams)
	f.logger.WithFields(logrus.Fields{"params": params, "payloads": len(f.payloads)}).Info("Fuzzing URL parameters")

	for _, name := range params {
		for _, payload := range f.payloads {
			if ctx.Err() != nil {
				return
			}
			paramURL, hit := f.attemptURLParam(ctx, name, payload)
			if !hit && paramURL != "" && ctx.Err() == nil {
				f.attemptFragment(ctx, name, payload, paramURL)
			}
			f.pace(ctx)
		}
	}
}

// attemptURLParam returns the attempted URL and whether a signal fired.
// The URL is empty when the attempt failed.
func (f *Fuzzer) attemptURLParam(ctx context.Context, name, payload string) (string, bool) {
	finding := f.newFinding(core.URLParam(name), payload)

	target, err := WithParam(f.config.TargetURL, name, payload)
	if err != nil {
		f.fail(&finding, err)
		return "", false
	}
	finding.URL = target

	f.beginAttempt(ctx, &finding)
	resp, throttled, err := f.navigate(ctx, target)
	if err != nil {
		f.fail(&finding, err)
		return "", false
	}
	f.applyResponse(&finding, resp, throttled)

	f.detect(ctx, &finding)
	f.finish(ctx, &finding)
	return target, finding.Hit()
}

func (f *Fuzzer) attemptFragment(ctx context.Context, name, payload, paramURL string) {
	finding := f.newFinding(core.URLFragment(name), payload)
	target := WithFragment(paramURL, payload)
	finding.URL = target

	f.beginAttempt(ctx, &finding)
	resp, throttled, err := f.navigate(ctx, target)
	if err != nil {
		f.fail(&finding, err)
		return
	}
	f.applyResponse(&finding, resp, throttled)
	if err := f.nav.Evaluate(ctx, detector.HashChangeScript, nil); err != nil {
		finding.Warnings = append(finding.Warnings, fmt.Sprintf("hashchange dispatch failed: %v", err))
	}

	f.detect(ctx, &finding)
	f.finish(ctx, &finding)
}

func (f *Fuzzer) fuzzForms(ctx context.Context) {
	if _, _, err := f.navigate(ctx, f.config.TargetURL); err != nil {
		f.logger.WithError(err).Warn("Form discovery navigation failed")
		return
	}
	forms, err := f.nav.QuerySelectorAll(ctx, "form", nil)
	if err != nil {
		f.logger.WithError(err).Warn("Form discovery failed")
		return
	}
	if f.config.MaxForms > 0 && len(forms) > f.config.MaxForms {
		forms = forms[:f.config.MaxForms]
	}
	f.logger.WithField("forms", len(forms)).Info("Fuzzing forms")

	for formIndex, form := range forms {
		names := f.fieldNames(ctx, form)
		for _, name := range names {
			for _, payload := range f.payloads {
				if ctx.Err() != nil {
					return
				}
				f.attemptForm(ctx, formIndex, name, payload)
				f.pace(ctx)
			}
		}
	}
}

func (f *Fuzzer) fieldNames(ctx context.Context, form interfaces.ElementHandle) []string {
	fields, err := f.nav.QuerySelectorAll(ctx, fieldSelector, form)
	if err != nil {
		f.logger.WithError(err).Debug("Field discovery failed")
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	for _, el := range fields {
		name, ok := el.Attribute("name")
		if !ok || name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// attemptForm reloads the form page so every attempt starts from fresh handles
func (f *Fuzzer) attemptForm(ctx context.Context, formIndex int, field, payload string) {
	finding := f.newFinding(core.FormField(formIndex, field), payload)
	finding.URL = f.config.TargetURL

	f.beginAttempt(ctx, &finding)
	if _, _, err := f.navigate(ctx, f.config.TargetURL); err != nil {
		f.fail(&finding, err)
		return
	}
	forms, err := f.nav.QuerySelectorAll(ctx, "form", nil)
	if err != nil {
		f.fail(&finding, fmt.Errorf("form lookup: %w", err))
		return
	}
	if formIndex >= len(forms) {
		f.fail(&finding, fmt.Errorf("form %d no longer present", formIndex))
		return
	}
	form := forms[formIndex]
	fields, err := f.nav.QuerySelectorAll(ctx, fieldSelector, form)
	if err != nil {
		f.fail(&finding, fmt.Errorf("field lookup: %w", err))
		return
	}

	filled := false
	for _, el := range fields {
		name, ok := el.Attribute("name")
		if !ok || name == "" {
			continue
		}
		if name == field {
			if err := f.nav.Fill(ctx, el, payload); err != nil {
				f.fail(&finding, fmt.Errorf("fill %s: %w", name, err))
				return
			}
			filled = true
			continue
		}
		// innocuous values keep unrelated validation from rejecting the submit
		if err := f.nav.Fill(ctx, el, "test-"+f.marker); err != nil {
			f.logger.WithError(err).WithField("field", name).Debug("Filler value rejected")
		}
	}
	if !filled {
		f.fail(&finding, fmt.Errorf("field %q not found in form %d", field, formIndex))
		return
	}

	if err := f.nav.SubmitForm(ctx, form); err != nil {
		f.fail(&finding, fmt.Errorf("submit: %w", err))
		return
	}
	if err := f.nav.WaitForLoad(ctx); err != nil {
		finding.Warnings = append(finding.Warnings, fmt.Sprintf("page did not settle: %v", err))
	}
	var current string
	if err := f.nav.Evaluate(ctx, "location.href", &current); err == nil && current != "" {
		finding.URL = current
	}

	f.detect(ctx, &finding)
	f.finish(ctx, &finding)
}

func (f *Fuzzer) newFinding(point core.InjectionPoint, payload string) core.Finding {
	f.seq++
	return core.Finding{
		ID:        uuid.NewString(),
		Point:     point,
		Payload:   payload,
		Sinks:     []core.SinkEvent{},
		CSP:       f.caps,
		CreatedAt: time.Now(),
	}
}

// beginAttempt rotates identity and instruments the session
func (f *Fuzzer) beginAttempt(ctx context.Context, finding *core.Finding) {
	f.rotateUA(ctx)
	if err := f.det.Instrument(ctx, f.marker); err != nil {
		finding.Warnings = append(finding.Warnings, err.Error())
	}
	if f.config.ClearSinksPerAttempt {
		if err := f.det.ClearSinks(ctx); err != nil {
			finding.Warnings = append(finding.Warnings, err.Error())
		}
	}
	if src, ok := f.nav.(ConsoleSource); ok {
		src.DrainConsole()
	}
}

func (f *Fuzzer) applyResponse(finding *core.Finding, resp *interfaces.NavigationResponse, throttled bool) {
	finding.HTTPStatus = core.IntPtr(resp.Status)
	if resp.FinalURL != "" {
		finding.URL = resp.FinalURL
	}
	if throttled {
		finding.Warnings = append(finding.Warnings, fmt.Errorf("%w: status %d after retry", core.ErrThrottled, resp.Status).Error())
	}
}

func (f *Fuzzer) detect(ctx context.Context, finding *core.Finding) {
	sig := f.det.Check(ctx, f.marker)
	finding.Executed = sig.Executed
	finding.Reflected = sig.Reflected
	finding.ReflectionContexts = sig.Contexts
	for _, err := range sig.Errors {
		finding.Warnings = append(finding.Warnings, err.Error())
	}
	if sig.Degraded() {
		f.logger.WithFields(logrus.Fields{
			"point":   finding.Point.String(),
			"payload": finding.Payload,
		}).Warn("Detection degraded, a miss may be a false negative")
	}
	if src, ok := f.nav.(ConsoleSource); ok {
		finding.Console = AnalyzeConsole(src.DrainConsole(), f.marker)
		if BlockedByCSP(finding.Console) {
			f.logger.WithField("point", finding.Point.String()).Debug("Console reports a CSP violation")
		}
	}
}

// finish captures evidence for hits and records the finding
func (f *Fuzzer) finish(ctx context.Context, finding *core.Finding) {
	if finding.Hit() {
		f.captureEvidence(ctx, finding)
	}
	f.record(finding)
}

func (f *Fuzzer) fail(finding *core.Finding, err error) {
	finding.Error = err.Error()
	finding.Executed = false
	finding.Reflected = false
	f.record(finding)
}

func (f *Fuzzer) record(finding *core.Finding) {
	f.result.Findings = append(f.result.Findings, *finding)
	f.Reporter.OnAttempt(finding)
}

var tagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// EvidenceTag names the artifacts of one attempt
func EvidenceTag(point core.InjectionPoint, seq int, payload string) string {
	name := tagUnsafe.ReplaceAllString(point.Name, "_")
	if len(name) > 32 {
		name = name[:32]
	}
	prefix := string(point.Kind)
	if point.Kind == core.KindFormField {
		prefix = fmt.Sprintf("form%d", point.FormIndex)
	}
	return fmt.Sprintf("%s_%s_%04d_%08x", prefix, name, seq, murmur3.Sum32([]byte(payload)))
}

// captureEvidence takes a screenshot, reads the sink log and exports the trace.
// A failed capture leaves its field empty and adds a warning.
func (f *Fuzzer) captureEvidence(ctx context.Context, finding *core.Finding) {
	tag := EvidenceTag(finding.Point, f.seq, finding.Payload)

	shot := filepath.Join(f.config.EvidenceDir(), "hit_"+tag+".png")
	if err := f.nav.Screenshot(ctx, shot); err != nil {
		finding.Warnings = append(finding.Warnings, fmt.Errorf("%w: screenshot: %v", core.ErrEvidenceCapture, err).Error())
	} else {
		finding.Screenshot = shot
	}

	if sinks, err := f.det.SinkLog(ctx); err != nil {
		finding.Warnings = append(finding.Warnings, err.Error())
	} else {
		finding.Sinks = sinks
	}

	if f.config.TraceOnHit {
		trace := filepath.Join(f.config.TraceDir(), "trace_"+tag+".json")
		if err := f.nav.StopTrace(ctx, trace); err != nil {
			finding.Warnings = append(finding.Warnings, fmt.Errorf("%w: trace: %v", core.ErrEvidenceCapture, err).Error())
		} else {
			finding.Trace = trace
		}
		if err := f.nav.StartTrace(ctx); err != nil {
			f.logger.WithError(err).Warn("Failed to restart tracing")
		}
	}
}
