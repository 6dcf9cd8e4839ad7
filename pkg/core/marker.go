/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: marker.go
Description: Run marker generation. A marker fingerprints this run's injected content so
its signals can be told apart from whatever the page already contained.
*/

package core

import (
	"math/rand"
	"strings"
)

// DefaultMarkerLength is the number of hex characters in a generated marker
const DefaultMarkerLength = 6

const hexDigits = "0123456789abcdef"

// NewMarker draws a lowercase hex marker from the run's random source
func NewMarker(rng *rand.Rand, n int) string {
	if n <= 0 {
		n = DefaultMarkerLength
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(hexDigits[rng.Intn(len(hexDigits))])
	}
	return b.String()
}

// ExecutionMark is the value written to the page title once the marker is observed
func ExecutionMark(marker string) string {
	return "xssentinel-hit-" + marker
}
