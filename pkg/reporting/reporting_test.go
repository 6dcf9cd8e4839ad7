/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporting_test.go
Description: Tests for scoring, summary aggregation and the report writers.
*/

package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/csp"
	"github.com/kleascm/xssentinel/pkg/web"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sink(name string) core.SinkEvent {
	return core.SinkEvent{Name: name, Detail: "x", Timestamp: time.Unix(1700000000, 0)}
}

func TestScoreExecutedInnerHTMLClampsToCritical(t *testing.T) {
	score, sev := Score(core.Finding{Executed: true, Sinks: []core.SinkEvent{sink("innerHTML")}})
	assert.Equal(t, 100, score)
	assert.Equal(t, core.SeverityCritical, sev)
}

func TestScoreComponents(t *testing.T) {
	cases := []struct {
		name  string
		f     core.Finding
		score int
	}{
		{"nothing", core.Finding{}, 0},
		{"reflected", core.Finding{Reflected: true}, 30},
		{"executed beats reflected", core.Finding{Executed: true, Reflected: true}, 80},
		{"exact sink names only", core.Finding{Sinks: []core.SinkEvent{sink("innerHTMLx"), sink("document.write")}}, 25},
		{"sink counted per entry", core.Finding{Sinks: []core.SinkEvent{sink("history.pushState"), sink("history.pushState")}}, 16},
		{"evidence", core.Finding{Reflected: true, Screenshot: "a.png", Trace: "t.json"}, 40},
		{"2xx", core.Finding{Reflected: true, HTTPStatus: core.IntPtr(200)}, 35},
		{"4xx", core.Finding{Reflected: true, HTTPStatus: core.IntPtr(404)}, 20},
		{"5xx", core.Finding{Reflected: true, HTTPStatus: core.IntPtr(502)}, 25},
		{"3xx neutral", core.Finding{Reflected: true, HTTPStatus: core.IntPtr(302)}, 30},
		{"clamped at zero", core.Finding{HTTPStatus: core.IntPtr(403)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, _ := Score(tc.f)
			assert.Equal(t, tc.score, score)
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	statuses := []*int{nil, core.IntPtr(200), core.IntPtr(404), core.IntPtr(500)}
	sinkSets := [][]core.SinkEvent{nil, {sink("setAttribute")}, {sink("innerHTML"), sink("location.assign")}}
	for _, st := range statuses {
		for _, sinks := range sinkSets {
			reflected := core.Finding{Reflected: true, HTTPStatus: st, Sinks: sinks}
			executed := reflected
			executed.Executed = true

			rs, _ := Score(reflected)
			es, _ := Score(executed)
			assert.GreaterOrEqual(t, es, rs)

			for name := range SinkWeights {
				more := executed
				more.Sinks = append(append([]core.SinkEvent{}, sinks...), sink(name))
				ms, _ := Score(more)
				assert.GreaterOrEqual(t, ms, es, name)
			}
		}
	}
}

func TestSeverityBandsPartitionRange(t *testing.T) {
	expected := map[core.Severity][2]int{
		core.SeverityInfo:     {0, 14},
		core.SeverityLow:      {15, 39},
		core.SeverityMedium:   {40, 69},
		core.SeverityHigh:     {70, 89},
		core.SeverityCritical: {90, 100},
	}
	seen := make(map[core.Severity]int)
	for score := 0; score <= 100; score++ {
		sev := SeverityFor(score)
		bounds, ok := expected[sev]
		require.True(t, ok, "score %d mapped to %q", score, sev)
		assert.True(t, score >= bounds[0] && score <= bounds[1], "score %d in %s", score, sev)
		seen[sev]++
	}
	assert.Len(t, seen, 5)
}

func TestScoreAllFillsFields(t *testing.T) {
	findings := []core.Finding{{Executed: true}, {Reflected: true}}
	ScoreAll(findings)
	assert.Equal(t, 80, findings[0].Score)
	assert.Equal(t, core.SeverityHigh, findings[0].Severity)
	assert.Equal(t, 30, findings[1].Score)
	assert.Equal(t, core.SeverityLow, findings[1].Severity)
}

func TestSummarizeZeroFillsAndRanks(t *testing.T) {
	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Total)
	assert.Len(t, empty.CountsBySeverity, 5)
	assert.Len(t, empty.CountsByKind, 3)
	assert.Empty(t, empty.Top)

	findings := []core.Finding{
		{ID: "a", Point: core.URLParam("q"), Reflected: true},
		{ID: "b", Point: core.URLParam("q"), Executed: true},
		{ID: "c", Point: core.FormField(0, "x"), Reflected: true, Sinks: []core.SinkEvent{sink("unknown")}},
		{ID: "d", Point: core.URLFragment("q"), Reflected: true},
		{ID: "e", Point: core.URLParam("id"), Error: "navigation failure"},
		{ID: "f", Point: core.URLParam("id")},
		{ID: "g", Point: core.URLParam("id"), Reflected: true},
	}
	ScoreAll(findings)
	s := Summarize(findings)

	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 1, s.Executed)
	assert.Equal(t, 4, s.Reflected)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.CountsBySeverity[core.SeverityHigh])
	assert.Equal(t, 4, s.CountsBySeverity[core.SeverityLow])
	assert.Equal(t, 2, s.CountsBySeverity[core.SeverityInfo])
	assert.Equal(t, 0, s.CountsBySeverity[core.SeverityCritical])
	assert.Equal(t, 5, s.CountsByKind[core.KindURLParam])
	assert.Equal(t, 1, s.CountsByKind[core.KindURLFragment])
	assert.Equal(t, 1, s.CountsByKind[core.KindFormField])

	require.Len(t, s.Top, 5)
	ids := make([]string, 0, len(s.Top))
	for _, f := range s.Top {
		ids = append(ids, f.ID)
	}
	// equal scores: more sinks first, otherwise input order
	assert.Equal(t, []string{"b", "c", "a", "d", "g"}, ids)
	assert.Equal(t, "a", findings[0].ID, "input untouched")
}

func TestSummarizeScoresUnscoredFindings(t *testing.T) {
	s := Summarize([]core.Finding{{Executed: true, Sinks: []core.SinkEvent{sink("document.write")}}})
	assert.Equal(t, 1, s.CountsBySeverity[core.SeverityCritical])
	assert.Equal(t, 100, s.Top[0].Score)
}

func sampleResult() *web.RunResult {
	caps := csp.Parse("default-src 'self'")
	return &web.RunResult{
		RunID:       "run-1",
		Target:      "http://target.test/",
		Marker:      "abc123",
		Seed:        42,
		CSP:         &caps,
		CSPByOrigin: map[string]csp.Capabilities{"http://target.test": caps},
		Payloads:    2,
		Findings: []core.Finding{
			{ID: "1", Point: core.URLParam("q"), Payload: "<svg onload=x>", Executed: true, Reflected: true,
				Sinks: []core.SinkEvent{sink("innerHTML")}, HTTPStatus: core.IntPtr(200), URL: "http://target.test/?q=x"},
			{ID: "2", Point: core.URLParam("query"), Payload: "<b>abc123</b>", HTTPStatus: core.IntPtr(200)},
			{ID: "3", Point: core.URLParam("id"), Payload: "<b>abc123</b>", Error: "navigation failure: reset"},
		},
	}
}

func TestNewReportScoresWithoutMutatingResult(t *testing.T) {
	res := sampleResult()
	r := NewReport(res)
	assert.Equal(t, 100, r.Findings[0].Score)
	assert.Equal(t, core.SeverityCritical, r.Findings[0].Severity)
	assert.Zero(t, res.Findings[0].Score)
	assert.Equal(t, 3, r.Summary.Total)
	assert.Equal(t, "abc123", r.Marker)
}

func TestWriteJSON(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir, logger)
	path, err := w.WriteJSON(NewReport(sampleResult()))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ReportFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "run-1", back["run_id"])
	assert.Len(t, back["findings"], 3)
	assert.Contains(t, back, "summary")
}

func TestWriteJSONFailureIsFatal(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	logger, _ := test.NewNullLogger()
	_, err := NewWriter(filepath.Join(blocker, "out"), logger).WriteJSON(NewReport(sampleResult()))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrReportWrite)
	assert.True(t, core.IsFatal(err))
}

func TestPrintFormats(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := NewWriter(t.TempDir(), logger)
	r := NewReport(sampleResult())

	var buf bytes.Buffer
	require.NoError(t, w.Print(&buf, r, FormatNDJSON))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"payload":"<svg onload=x>"`)

	buf.Reset()
	require.NoError(t, w.Print(&buf, r, FormatJSON))
	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Findings, 3)

	buf.Reset()
	require.NoError(t, w.Print(&buf, r, FormatYAML))
	var fromYAML map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, "abc123", fromYAML["marker"])

	buf.Reset()
	require.NoError(t, w.Print(&buf, r, FormatSummary))
	assert.Contains(t, buf.String(), "Total: 3  |  Executed: 1  |  Reflected: 1  |  Errors: 1")
	assert.Contains(t, buf.String(), "Top findings:")

	buf.Reset()
	require.NoError(t, w.Print(&buf, r, FormatTable))
	out := buf.String()
	assert.Contains(t, out, "SEVERITY")
	assert.Contains(t, out, "url_param:q")
	assert.Contains(t, out, "<svg onload=x>")

	assert.Error(t, w.Print(&buf, r, Format("pdf")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" NDJSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatNDJSON, f)
	_, err = ParseFormat("html")
	assert.Error(t, err)
}

func TestDashboardEscapesPayloads(t *testing.T) {
	logger, _ := test.NewNullLogger()
	dir := t.TempDir()
	res := sampleResult()
	res.Findings[0].Screenshot = filepath.Join(dir, "evidence", "hit_x.png")
	r := NewReport(res)

	path, err := NewDashboardGenerator(dir, logger).GenerateDashboard(r, "1.0.0")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.NotContains(t, html, "<svg onload=x>")
	assert.Contains(t, html, "&lt;svg onload=x&gt;")
	assert.Contains(t, html, `src="evidence/hit_x.png"`)
	assert.Contains(t, html, "default-src")
}

func TestDashboardDataListsHitsOnly(t *testing.T) {
	r := NewReport(sampleResult())
	data := NewDashboardGenerator(t.TempDir(), nil).BuildData(r, "dev")
	require.Len(t, data.Hits, 1)
	assert.Equal(t, "1", data.Hits[0].ID)
	assert.Len(t, data.Bands, 5)
	assert.Len(t, data.Kinds, 3)
}
