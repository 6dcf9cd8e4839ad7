/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logger.go
Description: Logging system for XSSentinel. Provides structured logging with timestamped
files tee'd to the console, JSON, text and custom formats, old file cleanup, and probe
specific helpers for attempts, hits, throttling and phase changes.
*/

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"log/syslog"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warn"
	LogLevelError   LogLevel = "error"
	LogLevelFatal   LogLevel = "fatal"
)

// LogFormat represents the logging format
type LogFormat string

const (
	LogFormatJSON   LogFormat = "json"
	LogFormatText   LogFormat = "text"
	LogFormatCustom LogFormat = "custom"
)

// File name prefix for run logs
const logFilePrefix = "xssentinel_"

// LoggerConfig holds the configuration for the logger
type LoggerConfig struct {
	Level     LogLevel  `json:"level"`
	Format    LogFormat `json:"format"`
	OutputDir string    `json:"output_dir"` // empty = console only
	MaxFiles  int       `json:"max_files"`
	MaxSize   int64     `json:"max_size"` // in bytes
	Timestamp bool      `json:"timestamp"`
	Caller    bool      `json:"caller"`
	Colors    bool      `json:"colors"`
	Compress  bool      `json:"compress"`

	SyslogEnabled bool   `json:"syslog_enabled"`
	SyslogNetwork string `json:"syslog_network"`
	SyslogAddress string `json:"syslog_address"`

	// Console receives log output alongside the file; defaults to stderr so
	// stdout stays clean for json/ndjson/yaml reports
	Console io.Writer `json:"-"`
}

// DefaultLoggerConfig returns the stock logger configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatCustom,
		OutputDir: "./logs",
		MaxFiles:  10,
		MaxSize:   100 * 1024 * 1024, // 100MB
		Timestamp: true,
		Caller:    false,
		Colors:    true,
	}
}

// Validate checks the LoggerConfig for invalid or missing values.
func (c *LoggerConfig) Validate() error {
	if c.OutputDir != "" {
		if c.MaxFiles <= 0 {
			return fmt.Errorf("max_files must be positive")
		}
		if c.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive")
		}
	}
	switch c.Format {
	case LogFormatJSON, LogFormatText, LogFormatCustom:
		// ok
	default:
		return fmt.Errorf("unsupported log format: %s", c.Format)
	}
	switch c.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelFatal:
		// ok
	default:
		return fmt.Errorf("unsupported log level: %s", c.Level)
	}
	return nil
}

// Logger wraps logrus with file output and probe helpers.
// It also satisfies core.Reporter so a run can report straight into the log.
type Logger struct {
	config     *LoggerConfig
	logger     *logrus.Logger
	fileHandle *os.File
	filePath   string
	startTime  time.Time
	retention  *Retention
}

// NewLogger creates a new logger instance
func NewLogger(config *LoggerConfig) (*Logger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	l := &Logger{
		config:    config,
		logger:    logrus.New(),
		startTime: time.Now(),
	}
	if config.OutputDir != "" {
		l.retention = &Retention{Dir: config.OutputDir, MaxFiles: config.MaxFiles, MaxSize: config.MaxSize, Compress: config.Compress}
	}

	if err := l.setup(); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	return l, nil
}

// setup configures the logger with the given configuration
func (l *Logger) setup() error {
	level, err := logrus.ParseLevel(string(l.config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.logger.SetLevel(level)
	l.logger.SetReportCaller(l.config.Caller)

	if err := l.setFormatter(); err != nil {
		return err
	}

	console := l.config.Console
	if console == nil {
		console = os.Stderr
	}
	l.logger.SetOutput(console)

	if err := l.setupFileOutput(console); err != nil {
		return err
	}

	if l.config.SyslogEnabled {
		writer, err := syslog.Dial(l.config.SyslogNetwork, l.config.SyslogAddress, syslog.LOG_INFO|syslog.LOG_USER, "xssentinel")
		if err != nil {
			return fmt.Errorf("failed to connect to syslog: %w", err)
		}
		l.logger.SetOutput(io.MultiWriter(l.logger.Out, writer))
	}
	return nil
}

// setFormatter configures the log formatter
func (l *Logger) setFormatter() error {
	switch l.config.Format {
	case LogFormatJSON:
		l.logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return "", fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})

	case LogFormatText:
		l.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   l.config.Timestamp,
			TimestampFormat: time.RFC3339,
			ForceColors:     l.config.Colors,
			DisableColors:   !l.config.Colors,
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return "", fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})

	case LogFormatCustom:
		l.logger.SetFormatter(&ProbeFormatter{CustomFormatter: CustomFormatter{
			Timestamp: l.config.Timestamp,
			Caller:    l.config.Caller,
			Colors:    l.config.Colors,
		}})

	default:
		return fmt.Errorf("unsupported log format: %s", l.config.Format)
	}
	return nil
}

// setupFileOutput tees log output into a timestamped file
func (l *Logger) setupFileOutput(console io.Writer) error {
	if l.config.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(l.config.OutputDir, fmt.Sprintf("%s%s.log", logFilePrefix, timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.fileHandle = file
	l.filePath = path
	l.logger.SetOutput(io.MultiWriter(console, file))

	l.logger.WithFields(logrus.Fields{
		"start_time": l.startTime.Format(time.RFC3339),
		"log_file":   path,
		"level":      l.config.Level,
		"format":     l.config.Format,
	}).Debug("Logging initialized")
	return nil
}

// FilePath is the current log file, empty when logging to the console only
func (l *Logger) FilePath() string {
	return l.filePath
}

// Probe-specific logging methods

// LogAttempt logs one injection attempt
func (l *Logger) LogAttempt(f *core.Finding) {
	entry := l.logger.WithFields(logrus.Fields{
		"point":     f.Point.String(),
		"payload":   f.Payload,
		"executed":  f.Executed,
		"reflected": f.Reflected,
	})
	if f.HTTPStatus != nil {
		entry = entry.WithField("status", *f.HTTPStatus)
	}
	switch {
	case f.Failed():
		entry.WithField("error", f.Error).Warn("Attempt failed")
	case f.Hit():
		l.LogFinding(f)
	default:
		entry.Debug("Attempt executed")
	}
	for _, w := range f.Warnings {
		entry.WithField("warning", w).Debug("Attempt degraded")
	}
}

// LogFinding logs a hit with its evidence references
func (l *Logger) LogFinding(f *core.Finding) {
	l.logger.WithFields(logrus.Fields{
		"finding_id": f.ID,
		"point":      f.Point.String(),
		"payload":    f.Payload,
		"executed":   f.Executed,
		"reflected":  f.Reflected,
		"contexts":   f.ReflectionContexts,
		"sinks":      len(f.Sinks),
		"screenshot": f.Screenshot,
		"trace":      f.Trace,
	}).Warn("Hit detected")
}

// LogThrottle logs a 403/429 response
func (l *Logger) LogThrottle(status int) {
	l.logger.WithField("status", status).Warn("Throttled response")
}

// LogPhase logs a state machine transition
func (l *Logger) LogPhase(phase string) {
	l.logger.WithFields(logrus.Fields{
		"phase":  phase,
		"uptime": time.Since(l.startTime),
	}).Info("Phase changed")
}

// LogSummary logs the executive summary of a run
func (l *Logger) LogSummary(s core.Summary) {
	fields := logrus.Fields{
		"total":     s.Total,
		"executed":  s.Executed,
		"reflected": s.Reflected,
		"errors":    s.Errors,
	}
	for _, sev := range core.Severities {
		fields[string(sev)] = s.CountsBySeverity[sev]
	}
	l.logger.WithFields(fields).Info("Run summary")
}

// OnAttempt implements core.Reporter
func (l *Logger) OnAttempt(f *core.Finding) { l.LogAttempt(f) }

// OnPhase implements core.Reporter
func (l *Logger) OnPhase(phase string) { l.LogPhase(phase) }

// OnThrottle implements core.Reporter
func (l *Logger) OnThrottle(status int) { l.LogThrottle(status) }

// Close closes the log file and applies the retention policy
func (l *Logger) Close() error {
	if l.fileHandle != nil {
		l.logger.SetOutput(io.Discard)
		if err := l.fileHandle.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		l.fileHandle = nil
	}
	if l.retention == nil {
		return nil
	}
	if err := l.retention.Apply(); err != nil {
		return fmt.Errorf("failed to apply log retention: %w", err)
	}
	return nil
}

// GetLogger returns the underlying logrus logger
func (l *Logger) GetLogger() *logrus.Logger {
	return l.logger
}
