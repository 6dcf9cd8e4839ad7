/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: chromedp_controller_test.go
Description: Browser-free tests for the chromedp navigator's location bookkeeping and trace state.
*/

package web

import (
	"context"
	"net/url"
	"testing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/kleascm/xssentinel/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func controllerAt(t *testing.T, raw string) *ChromeDPController {
	t.Helper()
	c := NewChromeDPController(ControllerOptions{}, nil)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	c.current = u
	c.lastResp = &interfaces.NavigationResponse{Status: 200, FinalURL: raw}
	return c
}

func TestSubmitFormForgetsLocation(t *testing.T) {
	c := controllerAt(t, "http://app.test/#/search")

	err := c.SubmitForm(context.Background(), &nodeHandle{node: &cdp.Node{}})
	assert.Error(t, err, "no browser")
	assert.Nil(t, c.current, "a submitted form may leave the document")
	assert.False(t, interfaces.SameDocument(c.current, &url.URL{Scheme: "http", Host: "app.test", Path: "/", Fragment: "/search"}))
}

func TestNavigateWithFragmentDropsUnverifiedLocation(t *testing.T) {
	c := controllerAt(t, "http://app.test/?q=1")

	// the live location cannot be read, so the hash shortcut is not taken
	_, err := c.Navigate(context.Background(), "http://app.test/?q=1#x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser not started")
	assert.Nil(t, c.current)
}

func TestNavigateRejectsBadURL(t *testing.T) {
	c := NewChromeDPController(ControllerOptions{}, nil)
	_, err := c.Navigate(context.Background(), "http://[::1")
	assert.ErrorContains(t, err, "invalid url")
}

func TestTraceRequiresStart(t *testing.T) {
	c := NewChromeDPController(ControllerOptions{}, nil)
	assert.ErrorContains(t, c.StopTrace(context.Background(), t.TempDir()+"/t.json"), "trace not started")

	// without a browser Chrome tracing fails but the network buffer still runs
	err := c.StartTrace(context.Background())
	assert.ErrorContains(t, err, "chrome tracing unavailable")
	assert.True(t, c.tracing)
	assert.False(t, c.chromeTracing)
	require.NoError(t, c.StopTrace(context.Background(), t.TempDir()+"/t.json"))
}
