/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Error taxonomy for a probe run. Only ErrSessionAcquire and ErrReportWrite
are fatal; everything else is folded into the affected finding.
*/

package core

import "errors"

var (
	// ErrInstrumentation: hook injection or sink-log read failed; the signal degrades to false/empty
	ErrInstrumentation = errors.New("instrumentation failure")
	// ErrNavigation: target unreachable or timed out
	ErrNavigation = errors.New("navigation failure")
	// ErrThrottled: 403/429 survived the single backoff retry
	ErrThrottled = errors.New("throttled")
	// ErrEvidenceCapture: screenshot or trace could not be written
	ErrEvidenceCapture = errors.New("evidence capture failure")
	// ErrWordlistLoad: one external wordlist could not be read
	ErrWordlistLoad = errors.New("wordlist load failure")
	// ErrSessionAcquire: no navigator session could be obtained (fatal)
	ErrSessionAcquire = errors.New("session acquisition failure")
	// ErrReportWrite: the final report could not be written (fatal)
	ErrReportWrite = errors.New("report write failure")
)

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionAcquire) || errors.Is(err, ErrReportWrite)
}
