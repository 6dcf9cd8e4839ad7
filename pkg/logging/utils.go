/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Run log housekeeping. Size-based rotation with optional gzip, a file count cap,
a directory inventory for the logs command and an event tally that reads every formatter's
output.
*/

package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Retention keeps the run log directory bounded
type Retention struct {
	Dir      string
	MaxFiles int
	MaxSize  int64
	Compress bool
}

type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

// listLogs returns run logs in dir, oldest first. Rotated and compressed files are included.
func listLogs(dir string) ([]logFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []logFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), logFilePrefix) || !strings.Contains(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{path: filepath.Join(dir, e.Name()), size: info.Size(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	return files, nil
}

// live reports whether name is an active log rather than a rotated one
func live(path string) bool {
	return strings.HasSuffix(path, ".log")
}

// Apply rotates oversized live logs, then drops the oldest files beyond MaxFiles
func (r *Retention) Apply() error {
	files, err := listLogs(r.Dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if !live(f.path) || r.MaxSize <= 0 || f.size < r.MaxSize {
			continue
		}
		if err := r.rotate(f.path); err != nil {
			return fmt.Errorf("failed to rotate %s: %w", f.path, err)
		}
	}

	if r.MaxFiles <= 0 {
		return nil
	}
	files, err = listLogs(r.Dir)
	if err != nil {
		return err
	}
	for len(files) > r.MaxFiles {
		if err := os.Remove(files[0].path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", files[0].path, err)
		}
		files = files[1:]
	}
	return nil
}

// rotate renames path to path.<stamp>, gzipping it when Compress is set
func (r *Retention) rotate(path string) error {
	rotated := path + "." + time.Now().Format("20060102T150405")
	if err := os.Rename(path, rotated); err != nil {
		return err
	}
	if !r.Compress {
		return nil
	}
	return gzipFile(rotated)
}

func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	_, copyErr := io.Copy(zw, src)
	closeErr := zw.Close()
	if err := dst.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if copyErr != nil || closeErr != nil {
		os.Remove(path + ".gz")
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	}
	return os.Remove(path)
}

// DirStats describes the log directory
type DirStats struct {
	Files      int       `json:"files"`
	Compressed int       `json:"compressed"`
	Bytes      int64     `json:"bytes"`
	Oldest     time.Time `json:"oldest"`
	Newest     time.Time `json:"newest"`
}

// Inventory counts the run logs in dir. A missing directory is empty.
func Inventory(dir string) (DirStats, error) {
	files, err := listLogs(dir)
	if err != nil {
		return DirStats{}, err
	}
	var st DirStats
	for _, f := range files {
		st.Files++
		st.Bytes += f.size
		if strings.HasSuffix(f.path, ".gz") {
			st.Compressed++
		}
	}
	if len(files) > 0 {
		st.Oldest = files[0].modTime
		st.Newest = files[len(files)-1].modTime
	}
	return st, nil
}

// EventTally counts log levels and run events across the live logs
type EventTally struct {
	Files     int                  `json:"files"`
	Lines     int64                `json:"lines"`
	Levels    map[logrus.Level]int `json:"levels"`
	Attempts  int64                `json:"attempts"`
	Hits      int64                `json:"hits"`
	Failed    int64                `json:"failed"`
	Throttled int64                `json:"throttled"`
	Phases    int64                `json:"phases"`
	Degraded  int64                `json:"degraded"`
}

// messages written by Logger and the fuzzer, matched by prefix
var eventRules = []struct {
	prefix string
	count  func(*EventTally)
}{
	{"Hit detected", func(t *EventTally) { t.Hits++; t.Attempts++ }},
	{"Attempt failed", func(t *EventTally) { t.Failed++; t.Attempts++ }},
	{"Attempt executed", func(t *EventTally) { t.Attempts++ }},
	{"Throttled response", func(t *EventTally) { t.Throttled++ }},
	{"Phase changed", func(t *EventTally) { t.Phases++ }},
	{"Detection degraded", func(t *EventTally) { t.Degraded++ }},
}

// ScanEvents tallies every live log in dir. Rotated files are skipped.
func ScanEvents(dir string) (*EventTally, error) {
	files, err := listLogs(dir)
	if err != nil {
		return nil, err
	}
	tally := &EventTally{Levels: make(map[logrus.Level]int)}
	for _, f := range files {
		if !live(f.path) {
			continue
		}
		tally.Files++
		if err := tally.scanFile(f.path); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
		}
	}
	return tally, nil
}

func (t *EventTally) scanFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		t.Lines++
		level, msg, ok := parseLine(sc.Text())
		if !ok {
			continue
		}
		t.Levels[level]++
		for _, rule := range eventRules {
			if strings.HasPrefix(msg, rule.prefix) {
				rule.count(t)
				break
			}
		}
	}
	return sc.Err()
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

// parseLine reads level and message from JSON, logfmt or console lines
func parseLine(line string) (logrus.Level, string, bool) {
	line = strings.TrimSpace(ansiEscape.ReplaceAllString(line, ""))
	if line == "" {
		return 0, "", false
	}

	if strings.HasPrefix(line, "{") {
		var rec struct {
			Level string `json:"level"`
			Msg   string `json:"msg"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return 0, "", false
		}
		level, err := logrus.ParseLevel(rec.Level)
		return level, rec.Msg, err == nil
	}

	if i := strings.Index(line, "level="); i >= 0 {
		rest := line[i+len("level="):]
		token, _, _ := strings.Cut(rest, " ")
		level, err := logrus.ParseLevel(token)
		if err != nil {
			return 0, "", false
		}
		return level, logfmtMessage(line), true
	}

	// console: [timestamp] LEVEL [caller] [TAG] message fields
	fields := strings.Fields(line)
	for i, tok := range fields {
		level, err := logrus.ParseLevel(tok)
		if err != nil {
			continue
		}
		rest := fields[i+1:]
		for len(rest) > 0 && strings.HasPrefix(rest[0], "[") {
			rest = rest[1:]
		}
		return level, strings.Join(rest, " "), true
	}
	return 0, "", false
}

func logfmtMessage(line string) string {
	i := strings.Index(line, "msg=")
	if i < 0 {
		return ""
	}
	rest := line[i+len("msg="):]
	if strings.HasPrefix(rest, `"`) {
		end := strings.Index(rest[1:], `"`)
		if end < 0 {
			return rest[1:]
		}
		return rest[1 : end+1]
	}
	msg, _, _ := strings.Cut(rest, " ")
	return msg
}

// Summary renders the tally for the logs command
func (t *EventTally) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Events in %d log file(s), %d lines\n", t.Files, t.Lines)
	for _, level := range []logrus.Level{logrus.DebugLevel, logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel, logrus.FatalLevel} {
		fmt.Fprintf(&b, "  %s: %d\n", strings.ToUpper(level.String()), t.Levels[level])
	}
	fmt.Fprintf(&b, "  Attempts: %d\n", t.Attempts)
	fmt.Fprintf(&b, "  Hits: %d\n", t.Hits)
	fmt.Fprintf(&b, "  Failed attempts: %d\n", t.Failed)
	fmt.Fprintf(&b, "  Degraded detections: %d\n", t.Degraded)
	fmt.Fprintf(&b, "  Throttled responses: %d\n", t.Throttled)
	fmt.Fprintf(&b, "  Phase changes: %d", t.Phases)
	return b.String()
}
