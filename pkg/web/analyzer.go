/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: analyzer.go
Description: Console analysis for attempts. Picks out CSP violations, page exceptions and
console output carrying the run marker so a finding shows why a payload did or did not fire.
*/

package web

import (
	"strings"
)

// Console note prefixes
const (
	NoteCSP       = "[csp] "
	NoteException = "[error] "
	NoteMarker    = "[marker] "
)

const (
	maxConsoleNotes = 20
	maxNoteLength   = 300
)

// AnalyzeConsole classifies console lines collected during one attempt.
// Lines that are neither CSP reports, exceptions nor marker output are dropped.
func AnalyzeConsole(lines []string, marker string) []string {
	var notes []string
	for _, line := range lines {
		if len(notes) >= maxConsoleNotes {
			break
		}
		lower := strings.ToLower(line)
		var note string
		switch {
		case strings.Contains(lower, "content security policy") || strings.Contains(lower, "refused to execute") ||
			strings.Contains(lower, "refused to evaluate") || strings.Contains(lower, "refused to load"):
			note = NoteCSP + line
		case marker != "" && strings.Contains(line, marker):
			note = NoteMarker + line
		case strings.HasPrefix(line, "[exception]") || strings.Contains(lower, "syntaxerror") ||
			strings.Contains(lower, "unexpected token"):
			note = NoteException + line
		default:
			continue
		}
		if len(note) > maxNoteLength {
			note = note[:maxNoteLength]
		}
		notes = append(notes, note)
	}
	return notes
}

// BlockedByCSP reports whether any note is a CSP violation
func BlockedByCSP(notes []string) bool {
	for _, n := range notes {
		if strings.HasPrefix(n, NoteCSP) {
			return true
		}
	}
	return false
}
