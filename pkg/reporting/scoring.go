/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scoring.go
Description: Scoring and aggregation engine. Turns raw findings into a 0-100 risk score and
severity band, then derives the executive summary with per-band and per-kind counts and the
top ranked findings. Every value here is a pure function of the findings.
*/

package reporting

import (
	"sort"

	"github.com/kleascm/xssentinel/pkg/core"
)

// Score weights
const (
	ExecutedWeight  = 80
	ReflectedWeight = 30
	EvidenceWeight  = 5 // per screenshot or trace reference
	Status2xxWeight = 5
	Status4xxWeight = -10
	Status5xxWeight = -5

	MaxScore = 100
	TopN     = 5
)

// SinkWeights scores each sink log entry by exact primitive name
var SinkWeights = map[string]int{
	"document.write":       25,
	"document.writeln":     20,
	"innerHTML":            22,
	"insertAdjacentHTML":   22,
	"setAttribute":         18,
	"location.assign":      12,
	"location.replace":     12,
	"history.pushState":    8,
	"history.replaceState": 8,
}

// severityFloors maps the lower bound of each band, most severe first
var severityFloors = []struct {
	floor    int
	severity core.Severity
}{
	{90, core.SeverityCritical},
	{70, core.SeverityHigh},
	{40, core.SeverityMedium},
	{15, core.SeverityLow},
}

// SeverityFor maps a clamped score to its band
func SeverityFor(score int) core.Severity {
	for _, b := range severityFloors {
		if score >= b.floor {
			return b.severity
		}
	}
	return core.SeverityInfo
}

// Score computes the risk score and band for one finding
func Score(f core.Finding) (int, core.Severity) {
	score := 0
	switch {
	case f.Executed:
		score += ExecutedWeight
	case f.Reflected:
		score += ReflectedWeight
	}

	for _, s := range f.Sinks {
		score += SinkWeights[s.Name]
	}

	if f.Screenshot != "" {
		score += EvidenceWeight
	}
	if f.Trace != "" {
		score += EvidenceWeight
	}

	if f.HTTPStatus != nil {
		switch status := *f.HTTPStatus; {
		case status >= 200 && status < 300:
			score += Status2xxWeight
		case status >= 400 && status < 500:
			score += Status4xxWeight
		case status >= 500 && status < 600:
			score += Status5xxWeight
		}
	}

	if score < 0 {
		score = 0
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score, SeverityFor(score)
}

// ScoreAll fills Score and Severity on every finding in place
func ScoreAll(findings []core.Finding) {
	for i := range findings {
		findings[i].Score, findings[i].Severity = Score(findings[i])
	}
}

// Summarize builds the executive summary. Findings that were never scored are
// scored on the fly; the input slice is not modified.
func Summarize(findings []core.Finding) core.Summary {
	summary := core.Summary{
		Total:            len(findings),
		CountsBySeverity: make(map[core.Severity]int, len(core.Severities)),
		CountsByKind:     make(map[core.InjectionKind]int, len(core.InjectionKinds)),
	}
	for _, s := range core.Severities {
		summary.CountsBySeverity[s] = 0
	}
	for _, k := range core.InjectionKinds {
		summary.CountsByKind[k] = 0
	}

	ranked := make([]core.Finding, len(findings))
	copy(ranked, findings)
	for i := range ranked {
		f := &ranked[i]
		if f.Severity == "" {
			f.Score, f.Severity = Score(*f)
		}
		summary.CountsBySeverity[f.Severity]++
		summary.CountsByKind[f.Point.Kind]++
		if f.Executed {
			summary.Executed++
		}
		if f.Reflected {
			summary.Reflected++
		}
		if f.Failed() {
			summary.Errors++
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Executed != b.Executed {
			return a.Executed
		}
		return len(a.Sinks) > len(b.Sinks)
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	summary.Top = ranked
	return summary
}
