/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report.go
Description: Run report assembly and writers. Scores the findings of a run, writes the
report.json artifact and prints the terminal view in table, json, ndjson, summary or yaml form.
*/

package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/csp"
	"github.com/kleascm/xssentinel/pkg/web"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Format selects the terminal output
type Format string

const (
	FormatTable   Format = "table"
	FormatJSON    Format = "json"
	FormatNDJSON  Format = "ndjson"
	FormatSummary Format = "summary"
	FormatYAML    Format = "yaml"
)

// Formats lists every supported terminal format
var Formats = []Format{FormatTable, FormatJSON, FormatNDJSON, FormatSummary, FormatYAML}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// ReportFile is the name of the JSON artifact in the output directory
const ReportFile = "report.json"

// Report is the complete record of a run
type Report struct {
	RunID           string                      `json:"run_id" yaml:"run_id"`
	Target          string                      `json:"target" yaml:"target"`
	Marker          string                      `json:"marker" yaml:"marker"`
	Seed            int64                       `json:"seed" yaml:"seed"`
	StartedAt       time.Time                   `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time                   `json:"finished_at" yaml:"finished_at"`
	Interrupted     bool                        `json:"interrupted" yaml:"interrupted"`
	CSP             *csp.Capabilities           `json:"csp,omitempty" yaml:"csp,omitempty"`
	CSPByOrigin     map[string]csp.Capabilities `json:"csp_by_origin" yaml:"csp_by_origin"`
	Payloads        int                         `json:"payloads" yaml:"payloads"`
	PayloadWarnings []string                    `json:"payload_warnings,omitempty" yaml:"payload_warnings,omitempty"`
	HARPath         string                      `json:"har_path,omitempty" yaml:"har_path,omitempty"`
	Summary         core.Summary                `json:"summary" yaml:"summary"`
	Findings        []core.Finding              `json:"findings" yaml:"findings"`
}

// NewReport scores the run's findings and builds the summary
func NewReport(res *web.RunResult) *Report {
	findings := make([]core.Finding, len(res.Findings))
	copy(findings, res.Findings)
	ScoreAll(findings)

	return &Report{
		RunID:           res.RunID,
		Target:          res.Target,
		Marker:          res.Marker,
		Seed:            res.Seed,
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
		Interrupted:     res.Interrupted,
		CSP:             res.CSP,
		CSPByOrigin:     res.CSPByOrigin,
		Payloads:        res.Payloads,
		PayloadWarnings: res.PayloadWarnings,
		HARPath:         res.HARPath,
		Summary:         Summarize(findings),
		Findings:        findings,
	}
}

// Writer persists and prints reports
type Writer struct {
	outputDir string
	logger    logrus.FieldLogger
}

// NewWriter creates a writer rooted at outputDir
func NewWriter(outputDir string, logger logrus.FieldLogger) *Writer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Writer{outputDir: outputDir, logger: logger}
}

// WriteJSON writes <output>/report.json. Failure is fatal for the run.
func (w *Writer) WriteJSON(r *Report) (string, error) {
	path := filepath.Join(w.outputDir, ReportFile)
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("%w: create output directory: %v", core.ErrReportWrite, err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encode: %v", core.ErrReportWrite, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrReportWrite, err)
	}
	w.logger.WithField("path", path).Info("Report written")
	return path, nil
}

// Print renders the report to out in the chosen format
func (w *Writer) Print(out io.Writer, r *Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(r)
	case FormatNDJSON:
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		for i := range r.Findings {
			if err := enc.Encode(&r.Findings[i]); err != nil {
				return err
			}
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatSummary:
		_, err := io.WriteString(out, RenderSummary(r)+"\n")
		return err
	case FormatTable, "":
		_, err := io.WriteString(out, RenderTable(r.Findings)+"\n")
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Severity colours follow the usual scanner palette
var severityStyles = map[core.Severity]lipgloss.Style{
	core.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	core.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
	core.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D")),
	core.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77")),
	core.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("#4D96FF")),
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func check(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

// RenderTable renders one row per finding
func RenderTable(findings []core.Finding) string {
	rows := make([][]string, 0, len(findings))
	for i, f := range findings {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(f.Severity),
			strconv.Itoa(f.Score),
			shorten(f.Point.String(), 28),
			check(f.Executed),
			check(f.Reflected),
			strconv.Itoa(len(f.Sinks)),
			shorten(f.Payload, 40),
			shorten(f.URL, 60),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "SEVERITY", "SCORE", "POINT", "EXEC", "REFL", "SINKS", "PAYLOAD", "URL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(findings) {
				if style, ok := severityStyles[findings[row].Severity]; ok {
					return style.Padding(0, 1)
				}
			}
			return cellStyle
		})
	return t.String()
}

// RenderSummary renders the executive summary
func RenderSummary(r *Report) string {
	s := r.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Total: %d  |  Executed: %d  |  Reflected: %d  |  Errors: %d\n", s.Total, s.Executed, s.Reflected, s.Errors)

	bands := make([]string, 0, len(core.Severities))
	for _, sev := range core.Severities {
		bands = append(bands, severityStyles[sev].Render(fmt.Sprintf("%s: %d", sev, s.CountsBySeverity[sev])))
	}
	b.WriteString(strings.Join(bands, "  ") + "\n")

	kinds := make([]string, 0, len(core.InjectionKinds))
	for _, k := range core.InjectionKinds {
		kinds = append(kinds, fmt.Sprintf("%s: %d", k, s.CountsByKind[k]))
	}
	b.WriteString(strings.Join(kinds, "  "))

	if len(s.Top) > 0 {
		b.WriteString("\nTop findings:")
		for i, f := range s.Top {
			fmt.Fprintf(&b, "\n  %d. [%s %d] %s %s", i+1, f.Severity, f.Score, f.Point, shorten(f.Payload, 60))
		}
	}
	if r.Interrupted {
		b.WriteString("\n" + mutedStyle.Render("Run interrupted; findings are partial"))
	}
	return b.String()
}
