/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: har_test.go
Description: Tests for the event journal, trace buffers and console analysis.
*/

package web

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/tracing"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sent(id, method, rawURL string) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Request:   &network.Request{URL: rawURL, Method: method, Headers: network.Headers{"Accept": "*/*"}},
	}
}

func TestJournalBuildsOrderedHAR(t *testing.T) {
	j := newJournal()
	j.request(sent("1", "GET", "http://t.test/"))
	j.request(sent("2", "GET", "http://t.test/app.js"))
	j.response(&network.EventResponseReceived{RequestID: "2", Response: &network.Response{URL: "http://t.test/app.js", Status: 404, StatusText: "Not Found"}})
	j.finished(&network.EventLoadingFinished{RequestID: "2", EncodedDataLength: 12})
	j.response(&network.EventResponseReceived{RequestID: "1", Response: &network.Response{URL: "http://t.test/", Status: 200, MimeType: "text/html"}})
	j.finished(&network.EventLoadingFinished{RequestID: "1", EncodedDataLength: 512})
	j.request(sent("3", "GET", "http://t.test/pending"))

	har := j.har()
	assert.Equal(t, "1.2", har.Log.Version)
	require.Len(t, har.Log.Entries, 3)
	assert.Equal(t, "http://t.test/", har.Log.Entries[0].Request.URL)
	assert.Equal(t, 200, har.Log.Entries[0].Response.Status)
	assert.Equal(t, 512, har.Log.Entries[0].Response.BodySize)
	assert.Equal(t, 404, har.Log.Entries[1].Response.Status)
	assert.Equal(t, "http://t.test/pending", har.Log.Entries[2].Request.URL)
	assert.Equal(t, []harNameValue{{Name: "Accept", Value: "*/*"}}, har.Log.Entries[0].Request.Headers)
}

func TestJournalRecordsRedirectHops(t *testing.T) {
	j := newJournal()
	j.request(sent("1", "GET", "http://t.test/old"))
	redirect := sent("1", "GET", "http://t.test/new")
	redirect.RedirectResponse = &network.Response{URL: "http://t.test/old", Status: 302}
	j.request(redirect)
	j.failed(&network.EventLoadingFailed{RequestID: "1", ErrorText: "net::ERR_ABORTED"})

	entries := j.har().Log.Entries
	require.Len(t, entries, 2)
	assert.Equal(t, 302, entries[0].Response.Status)
	assert.Equal(t, "http://t.test/new", entries[0].Response.RedirectURL)
	assert.Equal(t, "net::ERR_ABORTED", entries[1].Comment)
}

func TestJournalTraceOnlyWhileTracing(t *testing.T) {
	j := newJournal()
	j.request(sent("1", "GET", "http://t.test/before"))
	j.collect(&tracing.EventDataCollected{Value: []jsontext.Value{jsontext.Value(`{"name":"early"}`)}})

	j.startTrace()
	j.request(sent("2", "GET", "http://t.test/during"))
	j.failed(&network.EventLoadingFailed{RequestID: "2", ErrorText: "blocked"})
	trace := j.stopTrace()
	require.Len(t, trace.Metadata.Network, 2)
	assert.Equal(t, "request", trace.Metadata.Network[0].Kind)
	assert.Equal(t, "http://t.test/during", trace.Metadata.Network[0].URL)
	assert.Equal(t, "failed", trace.Metadata.Network[1].Kind)
	assert.Empty(t, trace.TraceEvents)

	j.request(sent("3", "GET", "http://t.test/after"))
	assert.Empty(t, j.stopTrace().Metadata.Network)
}

func TestJournalCollectsChromeTraceEvents(t *testing.T) {
	j := newJournal()
	j.startTrace()
	flushed := j.flushed()

	j.collect(&tracing.EventDataCollected{Value: []jsontext.Value{
		jsontext.Value(`{"name":"EvaluateScript","cat":"devtools.timeline","ph":"X","ts":1}`),
		jsontext.Value(`{"name":"ParseHTML","cat":"devtools.timeline","ph":"X","ts":2}`),
	}})
	select {
	case <-flushed:
		t.Fatal("flushed before tracingComplete")
	default:
	}
	j.completed(&tracing.EventTracingComplete{DataLossOccurred: true})
	<-flushed

	trace := j.stopTrace()
	require.Len(t, trace.TraceEvents, 2)
	assert.JSONEq(t, `{"name":"EvaluateScript","cat":"devtools.timeline","ph":"X","ts":1}`, string(trace.TraceEvents[0]))
	assert.True(t, trace.Metadata.DataLoss)

	// nothing pending after the trace is stopped
	select {
	case <-j.flushed():
	default:
		t.Fatal("idle journal should report flushed")
	}
}

func TestWriteJSONCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trace", "t.json")
	trace := TraceFile{
		TraceEvents: []json.RawMessage{json.RawMessage(`{"name":"EvaluateScript","ph":"X"}`)},
		Metadata:    TraceMetadata{Network: []TraceEvent{{Kind: "request", URL: "http://t.test/"}}},
	}
	require.NoError(t, writeJSON(path, trace))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &back))
	events, ok := back["traceEvents"].([]interface{})
	require.True(t, ok, "chrome trace object format")
	require.Len(t, events, 1)
	assert.Equal(t, "EvaluateScript", events[0].(map[string]interface{})["name"])
	netEvents := back["metadata"].(map[string]interface{})["network"].([]interface{})
	assert.Equal(t, "http://t.test/", netEvents[0].(map[string]interface{})["url"])
}

func TestAnalyzeConsole(t *testing.T) {
	notes := AnalyzeConsole([]string{
		"[console.log] ready",
		"[console.error] Refused to execute inline script because it violates the following Content Security Policy directive: \"script-src 'self'\"",
		"[console.log] abc123 seen",
		"[exception] Uncaught SyntaxError: Unexpected token '<'",
	}, "abc123")
	require.Len(t, notes, 3)
	assert.True(t, strings.HasPrefix(notes[0], NoteCSP))
	assert.True(t, strings.HasPrefix(notes[1], NoteMarker))
	assert.True(t, strings.HasPrefix(notes[2], NoteException))
	assert.True(t, BlockedByCSP(notes))
	assert.False(t, BlockedByCSP(notes[1:]))
}

func TestAnalyzeConsoleCaps(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "[exception] " + strings.Repeat("e", 400)
	}
	notes := AnalyzeConsole(lines, "")
	assert.Len(t, notes, maxConsoleNotes)
	for _, n := range notes {
		assert.LessOrEqual(t, len(n), maxNoteLength)
	}
}
