/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dashboard.go
Description: HTML evidence dashboard for a probe run. Renders the summary, the captured CSP
and every finding with links to its screenshot and trace into <output>/report.html.
*/

package reporting

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/sirupsen/logrus"
)

// DashboardFile is the name of the HTML report in the output directory
const DashboardFile = "report.html"

// DashboardGenerator renders the HTML dashboard
type DashboardGenerator struct {
	outputDir string
	logger    logrus.FieldLogger
	templates *template.Template
}

// DashboardData is what the template sees
type DashboardData struct {
	Title       string
	GeneratedAt time.Time
	Version     string
	Report      *Report
	Bands       []BandCount
	Kinds       []KindCount
	Hits        []core.Finding
}

// BandCount is one severity tile
type BandCount struct {
	Severity core.Severity
	Count    int
}

// KindCount is one injection kind tile
type KindCount struct {
	Kind  core.InjectionKind
	Count int
}

// NewDashboardGenerator creates a generator writing into outputDir
func NewDashboardGenerator(outputDir string, logger logrus.FieldLogger) *DashboardGenerator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	funcs := template.FuncMap{
		"rel": func(path string) string {
			if rel, err := filepath.Rel(outputDir, path); err == nil {
				return filepath.ToSlash(rel)
			}
			return filepath.ToSlash(path)
		},
		"status": func(p *int) string {
			if p == nil {
				return "-"
			}
			return fmt.Sprint(*p)
		},
	}
	return &DashboardGenerator{
		outputDir: outputDir,
		logger:    logger,
		templates: template.Must(template.New("dashboard").Funcs(funcs).Parse(dashboardTemplate)),
	}
}

// BuildData prepares template data. Hits are listed in ranking order.
func (dg *DashboardGenerator) BuildData(r *Report, version string) *DashboardData {
	data := &DashboardData{
		Title:       "XSSentinel report",
		GeneratedAt: time.Now(),
		Version:     version,
		Report:      r,
	}
	for _, sev := range core.Severities {
		data.Bands = append(data.Bands, BandCount{Severity: sev, Count: r.Summary.CountsBySeverity[sev]})
	}
	for _, k := range core.InjectionKinds {
		data.Kinds = append(data.Kinds, KindCount{Kind: k, Count: r.Summary.CountsByKind[k]})
	}
	for _, f := range r.Findings {
		if f.Hit() {
			data.Hits = append(data.Hits, f)
		}
	}
	return data
}

// GenerateDashboard writes <output>/report.html
func (dg *DashboardGenerator) GenerateDashboard(r *Report, version string) (string, error) {
	if err := os.MkdirAll(dg.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputFile := filepath.Join(dg.outputDir, DashboardFile)
	file, err := os.Create(outputFile)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := dg.templates.Execute(file, dg.BuildData(r, version)); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	dg.logger.Infof("Dashboard generated successfully in: %s", outputFile)
	return outputFile, nil
}
