/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logging_test.go
Description: Tests for the logging system. Covers logger creation, formats, file output,
run helpers, retention, inventory and event tallies.
*/

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, format LogFormat, console *bytes.Buffer) *LoggerConfig {
	t.Helper()
	return &LoggerConfig{
		Level:     LogLevelDebug,
		Format:    format,
		OutputDir: t.TempDir(),
		MaxFiles:  5,
		MaxSize:   1024 * 1024,
		Timestamp: false,
		Colors:    false,
		Console:   console,
	}
}

// TestLoggerWritesFileAndConsole tests the tee into the run log file
func TestLoggerWritesFileAndConsole(t *testing.T) {
	var console bytes.Buffer
	logger, err := NewLogger(testConfig(t, LogFormatText, &console))
	require.NoError(t, err)

	logger.GetLogger().WithField("key", "value").Info("hello")
	path := logger.FilePath()
	require.NoError(t, logger.Close())

	assert.True(t, strings.HasPrefix(filepath.Base(path), "xssentinel_"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, console.String(), "hello")
}

// TestLoggerConfigValidate tests configuration checks
func TestLoggerConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultLoggerConfig().Validate())

	cfg := DefaultLoggerConfig()
	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = DefaultLoggerConfig()
	cfg.Level = "trace"
	assert.Error(t, cfg.Validate())

	cfg = DefaultLoggerConfig()
	cfg.MaxFiles = 0
	assert.Error(t, cfg.Validate())

	cfg.OutputDir = ""
	assert.NoError(t, cfg.Validate(), "console-only logging needs no retention")
}

// TestProbeHelpers tests the attempt, hit, throttle and phase lines
func TestProbeHelpers(t *testing.T) {
	var console bytes.Buffer
	cfg := testConfig(t, LogFormatCustom, &console)
	cfg.OutputDir = ""
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	var reporter core.Reporter = logger
	reporter.OnPhase("fuzzing_url_params")
	reporter.OnThrottle(429)
	reporter.OnAttempt(&core.Finding{Point: core.URLParam("q"), Payload: "<b>x</b>", HTTPStatus: core.IntPtr(200)})
	reporter.OnAttempt(&core.Finding{Point: core.URLParam("q"), Payload: "<b>x</b>", Reflected: true, ID: "0123456789abcdef"})
	reporter.OnAttempt(&core.Finding{Point: core.FormField(0, "c"), Error: "navigation failure: reset"})
	logger.LogSummary(core.Summary{Total: 3, CountsBySeverity: map[core.Severity]int{core.SeverityLow: 1}})

	out := console.String()
	assert.Contains(t, out, "[PHASE] Phase changed")
	assert.Contains(t, out, "[THROTTLE] Throttled response")
	assert.Contains(t, out, "status=429")
	assert.Contains(t, out, "[ATTEMPT] Attempt executed")
	assert.Contains(t, out, "[HIT] Hit detected")
	assert.Contains(t, out, "finding_id=01234567 ")
	assert.Contains(t, out, `payload="<b>x</b>"`)
	assert.Contains(t, out, "[ATTEMPT] Attempt failed")
	assert.Contains(t, out, "form_field[0].c")
	assert.Contains(t, out, "[REPORT] Run summary")
}

// TestCustomFormatterSortsFields tests deterministic field order
func TestCustomFormatterSortsFields(t *testing.T) {
	f := &CustomFormatter{}
	entry := &logrus.Entry{
		Message: "msg",
		Level:   logrus.InfoLevel,
		Data:    logrus.Fields{"b": 2, "a": "with space", "c": 3 * time.Second},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "INFO msg a=\"with space\" b=2 c=3s\n", string(out))
}

// TestJSONFormat tests the JSON formatter
func TestJSONFormat(t *testing.T) {
	var console bytes.Buffer
	cfg := testConfig(t, LogFormatJSON, &console)
	cfg.OutputDir = ""
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	defer logger.Close()

	logger.LogThrottle(403)
	assert.Contains(t, console.String(), `"status":403`)
	assert.Contains(t, console.String(), `"msg":"Throttled response"`)
}

// TestRetentionRotatesAndCaps tests rotation, compression and the file cap
func TestRetentionRotatesAndCaps(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "xssentinel_2024-01-01_00-00-00.log")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte("x"), 64), 0644))
	small := filepath.Join(dir, "xssentinel_2024-01-02_00-00-00.log")
	require.NoError(t, os.WriteFile(small, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(big, old, old))

	r := &Retention{Dir: dir, MaxFiles: 2, MaxSize: 32, Compress: true}
	require.NoError(t, r.Apply())

	_, err := os.Stat(big)
	assert.True(t, os.IsNotExist(err), "oversized log rotated away")
	gz, err := filepath.Glob(filepath.Join(dir, "xssentinel_2024-01-01_00-00-00.log.*.gz"))
	require.NoError(t, err)
	require.Len(t, gz, 1)

	stats, err := Inventory(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Compressed)

	require.NoError(t, os.Chtimes(gz[0], old, old))
	r.MaxFiles = 1
	require.NoError(t, r.Apply())
	remaining, err := filepath.Glob(filepath.Join(dir, "xssentinel_*"))
	require.NoError(t, err)
	assert.Equal(t, []string{small}, remaining)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"), "foreign files untouched")
}

func TestInventoryMissingDirIsEmpty(t *testing.T) {
	stats, err := Inventory(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Zero(t, stats.Files)
	assert.True(t, stats.Oldest.IsZero())
}

// TestScanEvents tests event tallies over console lines
func TestScanEvents(t *testing.T) {
	dir := t.TempDir()
	lines := strings.Join([]string{
		"INFO [PHASE] Phase changed phase=navigated",
		"DEBUG [ATTEMPT] Attempt executed point=url_param:q",
		"WARN [HIT] Hit detected point=url_param:q",
		"WARN [ATTEMPT] Attempt failed error=x",
		"WARN [THROTTLE] Throttled response status=429",
		"2024-01-01 10:00:00.000 \x1b[33mWARNING\x1b[0m Detection degraded, a miss may be a false negative point=url_param:q",
		"not a log line",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xssentinel_run.log"), []byte(lines), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xssentinel_old.log.20240101T000000"), []byte("WARN Hit detected\n"), 0644))

	tally, err := ScanEvents(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Files, "rotated logs skipped")
	assert.Equal(t, int64(7), tally.Lines)
	assert.Equal(t, int64(3), tally.Attempts)
	assert.Equal(t, int64(1), tally.Hits)
	assert.Equal(t, int64(1), tally.Failed)
	assert.Equal(t, int64(1), tally.Throttled)
	assert.Equal(t, int64(1), tally.Phases)
	assert.Equal(t, int64(1), tally.Degraded)
	assert.Equal(t, 4, tally.Levels[logrus.WarnLevel])
	assert.Contains(t, tally.Summary(), "Hits: 1")
	assert.Contains(t, tally.Summary(), "Degraded detections: 1")
}

func TestParseLineFormats(t *testing.T) {
	level, msg, ok := parseLine(`{"level":"warning","msg":"Hit detected","point":"url_param:q"}`)
	require.True(t, ok)
	assert.Equal(t, logrus.WarnLevel, level)
	assert.Equal(t, "Hit detected", msg)

	level, msg, ok = parseLine(`time="2024-01-01T10:00:00Z" level=info msg="Phase changed" phase=done`)
	require.True(t, ok)
	assert.Equal(t, logrus.InfoLevel, level)
	assert.Equal(t, "Phase changed", msg)

	_, _, ok = parseLine(`{"broken"`)
	assert.False(t, ok)
	_, _, ok = parseLine("   ")
	assert.False(t, ok)
}
