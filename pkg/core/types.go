/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Core records shared by the probe: injection points, sink events, findings
and the executive summary. Every record is an explicit struct so missing fields are
compile errors rather than silent lookups.
*/

package core

import (
	"fmt"
	"time"

	"github.com/kleascm/xssentinel/pkg/csp"
)

// InjectionKind identifies the surface a payload was injected into
type InjectionKind string

const (
	KindURLParam    InjectionKind = "url_param"
	KindURLFragment InjectionKind = "url_fragment"
	KindFormField   InjectionKind = "form_field"
)

// InjectionKinds lists every kind in reporting order
var InjectionKinds = []InjectionKind{KindURLParam, KindURLFragment, KindFormField}

// InjectionPoint is one place a payload can be injected.
// FormIndex is only meaningful for KindFormField.
type InjectionPoint struct {
	Kind      InjectionKind `json:"kind" yaml:"kind"`
	Name      string        `json:"name" yaml:"name"`
	FormIndex int           `json:"form_index,omitempty" yaml:"form_index,omitempty"`
}

// URLParam builds a query-parameter injection point
func URLParam(name string) InjectionPoint {
	return InjectionPoint{Kind: KindURLParam, Name: name}
}

// URLFragment builds a fragment injection point, named after the parameter it falls back from
func URLFragment(name string) InjectionPoint {
	return InjectionPoint{Kind: KindURLFragment, Name: name}
}

// FormField builds a form-field injection point
func FormField(formIndex int, field string) InjectionPoint {
	return InjectionPoint{Kind: KindFormField, Name: field, FormIndex: formIndex}
}

func (p InjectionPoint) String() string {
	if p.Kind == KindFormField {
		return fmt.Sprintf("%s[%d].%s", p.Kind, p.FormIndex, p.Name)
	}
	return fmt.Sprintf("%s:%s", p.Kind, p.Name)
}

// SinkEvent is one call to an instrumented DOM write primitive.
// The log is page-lifetime scoped: events are evidence for the page, not proof
// that a particular payload triggered them.
type SinkEvent struct {
	Name      string    `json:"name" yaml:"name"`
	Detail    string    `json:"detail" yaml:"detail"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Severity is the band a score falls into
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Severities lists the bands from most to least severe
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Finding is the record of a single injection attempt.
// The orchestrator creates it; only the scoring engine fills Score and Severity.
type Finding struct {
	ID                 string            `json:"id" yaml:"id"`
	Point              InjectionPoint    `json:"injection_point" yaml:"injection_point"`
	Payload            string            `json:"payload" yaml:"payload"`
	Executed           bool              `json:"executed" yaml:"executed"`
	Reflected          bool              `json:"reflected" yaml:"reflected"`
	Sinks              []SinkEvent       `json:"sinks" yaml:"sinks"`
	HTTPStatus         *int              `json:"http_status,omitempty" yaml:"http_status,omitempty"`
	URL                string            `json:"url" yaml:"url"`
	CSP                *csp.Capabilities `json:"csp,omitempty" yaml:"csp,omitempty"`
	ReflectionContexts []string          `json:"reflection_contexts,omitempty" yaml:"reflection_contexts,omitempty"`
	Screenshot         string            `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
	Trace              string            `json:"trace,omitempty" yaml:"trace,omitempty"`
	Error              string            `json:"error,omitempty" yaml:"error,omitempty"`
	Warnings           []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Console            []string          `json:"console,omitempty" yaml:"console,omitempty"`
	CreatedAt          time.Time         `json:"created_at" yaml:"created_at"`

	Score    int      `json:"score" yaml:"score"`
	Severity Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// Hit reports whether either primary signal fired
func (f *Finding) Hit() bool {
	return f.Executed || f.Reflected
}

// Failed reports whether the attempt itself errored
func (f *Finding) Failed() bool {
	return f.Error != ""
}

// Summary is the derived executive view of a run
type Summary struct {
	Total            int                   `json:"total_findings" yaml:"total_findings"`
	Executed         int                   `json:"executed" yaml:"executed"`
	Reflected        int                   `json:"reflected" yaml:"reflected"`
	Errors           int                   `json:"errors" yaml:"errors"`
	CountsBySeverity map[Severity]int      `json:"counts_by_severity" yaml:"counts_by_severity"`
	CountsByKind     map[InjectionKind]int `json:"counts_by_kind" yaml:"counts_by_kind"`
	Top              []Finding             `json:"top_findings" yaml:"top_findings"`
}

// IntPtr is a small helper for optional status codes
func IntPtr(v int) *int {
	return &v
}
