/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Reporter interface and implementations for probe telemetry. The orchestrator
notifies reporters of every attempt, phase change and throttling event; logging and
Prometheus reporters are provided.
*/

package core

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Reporter defines the interface for telemetry and reporting hooks.
type Reporter interface {
	// OnAttempt is called once per recorded finding.
	OnAttempt(f *Finding)
	// OnPhase is called when the orchestrator changes state.
	OnPhase(phase string)
	// OnThrottle is called when a 403/429 response triggers backoff.
	OnThrottle(status int)
}

// MultiReporter fans events out to several reporters
type MultiReporter []Reporter

func (m MultiReporter) OnAttempt(f *Finding) {
	for _, r := range m {
		r.OnAttempt(f)
	}
}

func (m MultiReporter) OnPhase(phase string) {
	for _, r := range m {
		r.OnPhase(phase)
	}
}

func (m MultiReporter) OnThrottle(status int) {
	for _, r := range m {
		r.OnThrottle(status)
	}
}

// LoggerReporter logs attempt events through logrus.
type LoggerReporter struct {
	logger logrus.FieldLogger
}

// NewLoggerReporter creates a new LoggerReporter.
func NewLoggerReporter(logger logrus.FieldLogger) *LoggerReporter {
	return &LoggerReporter{logger: logger}
}

// OnAttempt logs the outcome of an attempt; hits are raised to warn.
func (r *LoggerReporter) OnAttempt(f *Finding) {
	entry := r.logger.WithFields(logrus.Fields{
		"point":     f.Point.String(),
		"executed":  f.Executed,
		"reflected": f.Reflected,
		"sinks":     len(f.Sinks),
	})
	switch {
	case f.Failed():
		entry.WithField("error", f.Error).Warn("Attempt failed")
	case f.Executed:
		entry.WithField("payload", f.Payload).Warn("Payload executed")
	case f.Reflected:
		entry.WithField("payload", f.Payload).Info("Payload reflected")
	default:
		entry.Debug("Attempt clean")
	}
}

// OnPhase logs state transitions.
func (r *LoggerReporter) OnPhase(phase string) {
	r.logger.WithField("phase", phase).Info("Phase changed")
}

// OnThrottle logs throttling responses.
func (r *LoggerReporter) OnThrottle(status int) {
	r.logger.WithField("status", status).Warn("Target is throttling, backing off")
}

// PrometheusReporter keeps run metrics in a private registry that can be
// exported as a node-exporter textfile at the end of a run.
type PrometheusReporter struct {
	registry *prometheus.Registry

	attempts  *prometheus.CounterVec
	sinks     prometheus.Counter
	throttled *prometheus.CounterVec
	phase     *prometheus.GaugeVec
}

// NewPrometheusReporter creates a new PrometheusReporter.
func NewPrometheusReporter() *PrometheusReporter {
	r := &PrometheusReporter{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xssentinel",
			Name:      "attempts_total",
			Help:      "Injection attempts by injection kind and outcome.",
		}, []string{"kind", "outcome"}),
		sinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xssentinel",
			Name:      "sink_events_observed_total",
			Help:      "Sink log entries captured as evidence (cumulative per page).",
		}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xssentinel",
			Name:      "throttled_responses_total",
			Help:      "Responses that triggered backoff, by status code.",
		}, []string{"status"}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "xssentinel",
			Name:      "phase",
			Help:      "1 for the phase currently running.",
		}, []string{"phase"}),
	}
	r.registry.MustRegister(r.attempts, r.sinks, r.throttled, r.phase)
	return r
}

// OnAttempt counts the attempt by outcome.
func (r *PrometheusReporter) OnAttempt(f *Finding) {
	outcome := "clean"
	switch {
	case f.Failed():
		outcome = "error"
	case f.Executed:
		outcome = "executed"
	case f.Reflected:
		outcome = "reflected"
	}
	r.attempts.WithLabelValues(string(f.Point.Kind), outcome).Inc()
	r.sinks.Add(float64(len(f.Sinks)))
}

// OnPhase marks the current phase.
func (r *PrometheusReporter) OnPhase(phase string) {
	r.phase.Reset()
	r.phase.WithLabelValues(phase).Set(1)
}

// OnThrottle counts throttling responses.
func (r *PrometheusReporter) OnThrottle(status int) {
	r.throttled.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Registry exposes the underlying registry (tests, embedding).
func (r *PrometheusReporter) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile exports the metrics in the Prometheus text format.
func (r *PrometheusReporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
