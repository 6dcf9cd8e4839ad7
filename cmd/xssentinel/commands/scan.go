/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scan.go
Description: Scan command implementation. Runs one probe against the configured target,
writes report.json with its evidence, optional HTML and metrics artifacts, and prints the
findings to stdout.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/logging"
	"github.com/kleascm/xssentinel/pkg/reporting"
	"github.com/kleascm/xssentinel/pkg/utils"
	"github.com/kleascm/xssentinel/pkg/web"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// HistoryDir holds one summary snapshot per run under the output directory
const HistoryDir = "history"

// runSnapshot is the per-run record kept in the history directory
type runSnapshot struct {
	RunID       string       `json:"run_id"`
	Target      string       `json:"target"`
	Marker      string       `json:"marker"`
	Seed        int64        `json:"seed"`
	Interrupted bool         `json:"interrupted"`
	Summary     core.Summary `json:"summary"`
}

// RunScan executes one probe run
func RunScan(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.GetLogger()

	config, err := BuildWebConfig()
	if err != nil {
		return err
	}
	format, err := reporting.ParseFormat(viper.GetString("scan.stdout"))
	if err != nil {
		return err
	}

	// Interrupts stop the run; findings collected so far are still reported
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := web.ChromeDPSession(web.ControllerOptions{
		Headless:   config.Headless,
		ChromePath: config.ChromePath,
		UserAgent:  config.UserAgent,
		Timeout:    config.Timeout,
	}, log)

	fuzzer, err := web.NewFuzzer(config, session, log)
	if err != nil {
		return err
	}

	var metrics *core.PrometheusReporter
	reporters := core.MultiReporter{logger}
	if viper.GetString("scan.metrics") != "" {
		metrics = core.NewPrometheusReporter()
		reporters = append(reporters, metrics)
	}
	fuzzer.Reporter = reporters

	log.WithFields(logrus.Fields{
		"target":  config.TargetURL,
		"output":  config.OutputDir,
		"version": Version,
	}).Info("Starting scan")

	result, err := fuzzer.Run(ctx)
	if err != nil {
		if core.IsFatal(err) {
			log.WithError(err).Error("Scan aborted")
		}
		return fmt.Errorf("scan failed: %w", err)
	}
	if result.Interrupted {
		log.Warn("Scan interrupted, reporting partial results")
	}

	return writeArtifacts(result, config, format, logger, metrics)
}

// writeArtifacts scores the run and writes everything it produced. Only report.json is mandatory.
func writeArtifacts(result *web.RunResult, config *web.Config, format reporting.Format, logger *logging.Logger, metrics *core.PrometheusReporter) error {
	log := logger.GetLogger()
	report := reporting.NewReport(result)
	writer := reporting.NewWriter(config.OutputDir, log)

	if _, err := writer.WriteJSON(report); err != nil {
		log.WithError(err).Error("Report could not be written")
		return err
	}

	if viper.GetBool("scan.html") {
		dashboard := reporting.NewDashboardGenerator(config.OutputDir, log)
		if _, err := dashboard.GenerateDashboard(report, Version); err != nil {
			log.WithError(err).Warn("Failed to write HTML report")
		}
	}

	if metrics != nil {
		path := viper.GetString("scan.metrics")
		if err := metrics.WriteTextfile(path); err != nil {
			log.WithError(err).Warn("Failed to write metrics")
		} else {
			log.WithField("path", path).Info("Metrics written")
		}
	}

	snapshot := runSnapshot{
		RunID:       report.RunID,
		Target:      report.Target,
		Marker:      report.Marker,
		Seed:        report.Seed,
		Interrupted: report.Interrupted,
		Summary:     report.Summary,
	}
	if _, err := utils.WriteSnapshot(filepath.Join(config.OutputDir, HistoryDir), "scan", report.RunID, Version, snapshot); err != nil {
		log.WithError(err).Warn("Failed to write run snapshot")
	}

	logger.LogSummary(report.Summary)
	return writer.Print(os.Stdout, report, format)
}
