/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: detector.go
Description: Execution, reflection and sink signal detection against the current page state.
Every failure degrades the affected signal to false or empty and is reported back as an
instrumentation error; nothing here aborts an attempt.
*/

package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Defaults
const (
	DefaultTimeout      = 4 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Signals is the outcome of one detection pass
type Signals struct {
	Executed  bool
	Reflected bool
	Sinks     []core.SinkEvent
	DOM       string
	Contexts  []string
	Errors    []error
}

// Detector instruments a navigator session and reads the three signals from it
type Detector struct {
	nav          interfaces.Navigator
	logger       logrus.FieldLogger
	Timeout      time.Duration
	PollInterval time.Duration

	registered map[string]bool
}

// New creates a detector bound to one session
func New(nav interfaces.Navigator, logger logrus.FieldLogger, timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Detector{
		nav:          nav,
		logger:       logger,
		Timeout:      timeout,
		PollInterval: DefaultPollInterval,
		registered:   make(map[string]bool),
	}
}

type sinkRecord struct {
	Name   string  `json:"name"`
	Detail string  `json:"detail"`
	TS     float64 `json:"ts"`
}

// Instrument registers the watcher and sink hooks for every later navigation
// and applies them to the current document. Both scripts guard against
// double installation, so calling this before every attempt is safe.
func (d *Detector) Instrument(ctx context.Context, marker string) error {
	watcher := WatcherScript(marker)
	if !d.registered[marker] {
		if err := d.nav.AddInitScript(ctx, SinkHookScript); err != nil {
			return fmt.Errorf("%w: register sink hooks: %v", core.ErrInstrumentation, err)
		}
		if err := d.nav.AddInitScript(ctx, watcher); err != nil {
			return fmt.Errorf("%w: register watcher: %v", core.ErrInstrumentation, err)
		}
		d.registered[marker] = true
	}
	if err := d.nav.Evaluate(ctx, SinkHookScript, nil); err != nil {
		return fmt.Errorf("%w: apply sink hooks: %v", core.ErrInstrumentation, err)
	}
	if err := d.nav.Evaluate(ctx, watcher, nil); err != nil {
		return fmt.Errorf("%w: apply watcher: %v", core.ErrInstrumentation, err)
	}
	return nil
}

// WaitForExecution polls the title channel until it carries the execution mark
// or the timeout elapses. A timeout is a clean false; an error is returned only
// when the title could never be read.
func (d *Detector) WaitForExecution(ctx context.Context, marker string) (bool, error) {
	mark := core.ExecutionMark(marker)
	waitCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	interval := d.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	readOK := false
	for {
		var title string
		if err := d.nav.Evaluate(waitCtx, titleScript, &title); err != nil {
			lastErr = err
		} else {
			readOK = true
			if strings.Contains(title, mark) {
				return true, nil
			}
		}

		select {
		case <-waitCtx.Done():
			if !readOK && lastErr != nil {
				return false, fmt.Errorf("%w: read title: %v", core.ErrInstrumentation, lastErr)
			}
			return false, nil
		case <-ticker.C:
		}
	}
}

// Snapshot returns the serialized live DOM
func (d *Detector) Snapshot(ctx context.Context) (string, error) {
	var dom string
	if err := d.nav.Evaluate(ctx, domScript, &dom); err != nil {
		return "", fmt.Errorf("%w: dom snapshot: %v", core.ErrInstrumentation, err)
	}
	return dom, nil
}

// Reflected reports whether marker is present in the rendered DOM, independent of execution
func (d *Detector) Reflected(ctx context.Context, marker string) (bool, string, error) {
	dom, err := d.Snapshot(ctx)
	if err != nil {
		return false, "", err
	}
	return strings.Contains(dom, marker), dom, nil
}

// SinkLog reads the page-lifetime sink log without clearing it
func (d *Detector) SinkLog(ctx context.Context) ([]core.SinkEvent, error) {
	var records []sinkRecord
	if err := d.nav.Evaluate(ctx, sinkReadScript, &records); err != nil {
		return nil, fmt.Errorf("%w: read sink log: %v", core.ErrInstrumentation, err)
	}
	events := make([]core.SinkEvent, 0, len(records))
	for _, r := range records {
		events = append(events, core.SinkEvent{
			Name:      r.Name,
			Detail:    r.Detail,
			Timestamp: time.UnixMilli(int64(r.TS)),
		})
	}
	return events, nil
}

// ClearSinks empties the page sink log
func (d *Detector) ClearSinks(ctx context.Context) error {
	if err := d.nav.Evaluate(ctx, sinkClearScript, nil); err != nil {
		return fmt.Errorf("%w: clear sink log: %v", core.ErrInstrumentation, err)
	}
	return nil
}

// Check runs execution and reflection detection against the current page.
// Sinks are read only by evidence capture.
func (d *Detector) Check(ctx context.Context, marker string) Signals {
	var sig Signals

	executed, err := d.WaitForExecution(ctx, marker)
	if err != nil {
		sig.Errors = append(sig.Errors, err)
	}
	sig.Executed = executed

	reflected, dom, err := d.Reflected(ctx, marker)
	if err != nil {
		sig.Errors = append(sig.Errors, err)
	}
	sig.Reflected = reflected
	sig.DOM = dom
	if reflected {
		sig.Contexts = ReflectionContexts(dom, marker)
	}

	for _, e := range sig.Errors {
		d.logger.WithError(e).WithField("marker", marker).Debug("Detection degraded")
	}
	return sig
}

// Degraded reports whether any signal was lost to an instrumentation failure
func (s Signals) Degraded() bool {
	for _, err := range s.Errors {
		if errors.Is(err, core.ErrInstrumentation) {
			return true
		}
	}
	return false
}
