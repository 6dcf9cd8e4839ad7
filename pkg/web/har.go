/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: har.go
Description: Event journal for the chromedp navigator. Buffers Chrome tracing data and network
events for the per-hit trace file and builds the session HAR (1.2) written when the session closes.
*/

package web

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/tracing"
)

// TraceEvent is one network event seen while tracing
type TraceEvent struct {
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	Method string    `json:"method,omitempty"`
	URL    string    `json:"url,omitempty"`
	Status int       `json:"status,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// TraceFile is a Chrome trace in the JSON object format, loadable by DevTools and Perfetto.
// The network journal for the same window rides along in metadata.
type TraceFile struct {
	TraceEvents []json.RawMessage `json:"traceEvents"`
	Metadata    TraceMetadata     `json:"metadata"`
}

// TraceMetadata describes the trace window
type TraceMetadata struct {
	StartedAt time.Time    `json:"started_at"`
	StoppedAt time.Time    `json:"stopped_at"`
	DataLoss  bool         `json:"data_loss,omitempty"`
	Network   []TraceEvent `json:"network"`
}

type harNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type harRequest struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	HTTPVersion string         `json:"httpVersion"`
	Headers     []harNameValue `json:"headers"`
	QueryString []harNameValue `json:"queryString"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int            `json:"bodySize"`
}

type harContent struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
}

type harResponse struct {
	Status      int            `json:"status"`
	StatusText  string         `json:"statusText"`
	HTTPVersion string         `json:"httpVersion"`
	Headers     []harNameValue `json:"headers"`
	Content     harContent     `json:"content"`
	RedirectURL string         `json:"redirectURL"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int            `json:"bodySize"`
}

type harTimings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

type harEntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         harTimings  `json:"timings"`
	Comment         string      `json:"comment,omitempty"`

	started  time.Time
	finished time.Time
	seq      int
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harLog struct {
	Version string      `json:"version"`
	Creator harCreator  `json:"creator"`
	Entries []*harEntry `json:"entries"`
}

// HAR is the document root
type HAR struct {
	Log harLog `json:"log"`
}

type journal struct {
	mu      sync.Mutex
	entries map[network.RequestID]*harEntry
	done    []*harEntry
	seq     int

	tracing    bool
	traceStart time.Time
	events     []TraceEvent
	chrome     []json.RawMessage
	dataLoss   bool
	complete   chan struct{}
}

func newJournal() *journal {
	return &journal{entries: make(map[network.RequestID]*harEntry)}
}

func headerPairs(h network.Headers) []harNameValue {
	out := make([]harNameValue, 0, len(h))
	for k, v := range h {
		out = append(out, harNameValue{Name: k, Value: fmt.Sprint(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (j *journal) trace(ev TraceEvent) {
	if j.tracing {
		j.events = append(j.events, ev)
	}
}

func (j *journal) request(e *network.EventRequestWillBeSent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	// a redirect reuses the request id; close out the previous hop
	if prev, ok := j.entries[e.RequestID]; ok {
		prev.finished = now
		if e.RedirectResponse != nil {
			prev.Response = toHARResponse(e.RedirectResponse)
			prev.Response.RedirectURL = e.Request.URL
		}
		j.done = append(j.done, prev)
	}
	j.seq++
	j.entries[e.RequestID] = &harEntry{
		StartedDateTime: now.UTC().Format(time.RFC3339Nano),
		Request: harRequest{
			Method:      e.Request.Method,
			URL:         e.Request.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     headerPairs(e.Request.Headers),
			QueryString: []harNameValue{},
			HeadersSize: -1,
			BodySize:    -1,
		},
		Response: harResponse{Headers: []harNameValue{}, HeadersSize: -1, BodySize: -1},
		started:  now,
		seq:      j.seq,
	}
	j.trace(TraceEvent{Time: now, Kind: "request", Method: e.Request.Method, URL: e.Request.URL})
}

func toHARResponse(r *network.Response) harResponse {
	proto := r.Protocol
	if proto == "" {
		proto = "HTTP/1.1"
	}
	return harResponse{
		Status:      int(r.Status),
		StatusText:  r.StatusText,
		HTTPVersion: proto,
		Headers:     headerPairs(r.Headers),
		Content:     harContent{Size: -1, MimeType: r.MimeType},
		HeadersSize: -1,
		BodySize:    -1,
	}
}

func (j *journal) response(e *network.EventResponseReceived) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if entry, ok := j.entries[e.RequestID]; ok {
		entry.Response = toHARResponse(e.Response)
	}
	j.trace(TraceEvent{Time: time.Now(), Kind: "response", URL: e.Response.URL, Status: int(e.Response.Status), Detail: e.Response.MimeType})
}

func (j *journal) finished(e *network.EventLoadingFinished) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if entry, ok := j.entries[e.RequestID]; ok {
		entry.finished = time.Now()
		entry.Response.BodySize = int(e.EncodedDataLength)
		j.done = append(j.done, entry)
		delete(j.entries, e.RequestID)
	}
}

func (j *journal) failed(e *network.EventLoadingFailed) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	if entry, ok := j.entries[e.RequestID]; ok {
		entry.finished = now
		entry.Comment = e.ErrorText
		j.done = append(j.done, entry)
		delete(j.entries, e.RequestID)
	}
	j.trace(TraceEvent{Time: now, Kind: "failed", Detail: e.ErrorText})
}

func (j *journal) startTrace() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tracing = true
	j.traceStart = time.Now()
	j.events = nil
	j.chrome = nil
	j.dataLoss = false
	j.complete = make(chan struct{})
}

// collect buffers a batch of Chrome trace events
func (j *journal) collect(e *tracing.EventDataCollected) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.tracing {
		return
	}
	for _, v := range e.Value {
		j.chrome = append(j.chrome, json.RawMessage(append([]byte(nil), v...)))
	}
}

// completed marks the end of Chrome's flush after tracing.End
func (j *journal) completed(e *tracing.EventTracingComplete) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.dataLoss = j.dataLoss || e.DataLossOccurred
	if j.complete != nil {
		close(j.complete)
		j.complete = nil
	}
}

// flushed is closed once Chrome has delivered every buffered trace event
func (j *journal) flushed() <-chan struct{} {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.complete == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return j.complete
}

func (j *journal) stopTrace() TraceFile {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := TraceFile{
		TraceEvents: j.chrome,
		Metadata: TraceMetadata{
			StartedAt: j.traceStart,
			StoppedAt: time.Now(),
			DataLoss:  j.dataLoss,
			Network:   j.events,
		},
	}
	if out.TraceEvents == nil {
		out.TraceEvents = []json.RawMessage{}
	}
	if out.Metadata.Network == nil {
		out.Metadata.Network = []TraceEvent{}
	}
	j.tracing = false
	j.events = nil
	j.chrome = nil
	j.complete = nil
	return out
}

func (j *journal) har() HAR {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries := append([]*harEntry{}, j.done...)
	for _, e := range j.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].seq < entries[b].seq })
	for _, e := range entries {
		if !e.finished.IsZero() {
			e.Time = float64(e.finished.Sub(e.started).Microseconds()) / 1000
			e.Timings = harTimings{Wait: e.Time}
		}
	}
	return HAR{Log: harLog{
		Version: "1.2",
		Creator: harCreator{Name: "xssentinel", Version: "1.0.0"},
		Entries: entries,
	}}
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
