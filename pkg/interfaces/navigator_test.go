/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: navigator_test.go
Description: Tests for the same-document navigation rule shared by the navigators.
*/

package interfaces

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSameDocument(t *testing.T) {
	tests := []struct {
		name    string
		current string
		target  string
		want    bool
	}{
		{"fragment change", "http://app.test/#/search", "http://app.test/#/results", true},
		{"fragment added", "http://app.test/?q=1", "http://app.test/?q=1#x", true},
		{"identical url reloads", "http://app.test/#/search", "http://app.test/#/search", false},
		{"different path", "http://app.test/a#x", "http://app.test/b#x", false},
		{"different query", "http://app.test/?q=1#x", "http://app.test/?q=2#x", false},
		{"no fragment", "http://app.test/#x", "http://app.test/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameDocument(mustURL(t, tt.current), mustURL(t, tt.target)))
		})
	}

	assert.False(t, SameDocument(nil, mustURL(t, "http://app.test/#x")), "unknown location always loads")
	assert.False(t, SameDocument(mustURL(t, "http://app.test/"), nil))
}
