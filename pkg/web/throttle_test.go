/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: throttle_test.go
Description: Tests for pacing, backoff, URL helpers, evidence naming and configuration validation.
*/

package web

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesUpToMaxAndResets(t *testing.T) {
	b := NewBackoff(time.Second, 3*time.Second)
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 3*time.Second, b.Next())
	assert.Equal(t, 3*time.Second, b.Next())

	b.Reset()
	assert.Equal(t, time.Second, b.Current())
}

func TestPacerStaysWithinJitterBounds(t *testing.T) {
	p := NewPacer(100*time.Millisecond, 0.3, rand.New(rand.NewSource(1)))
	for i := 0; i < 1000; i++ {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, 70*time.Millisecond)
		assert.LessOrEqual(t, d, 130*time.Millisecond)
	}

	assert.Equal(t, 100*time.Millisecond, NewPacer(100*time.Millisecond, 0, nil).Delay())
	assert.Zero(t, NewPacer(0, 0.5, nil).Delay())
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}

func TestIsThrottled(t *testing.T) {
	assert.True(t, IsThrottled(403))
	assert.True(t, IsThrottled(429))
	assert.False(t, IsThrottled(200))
	assert.False(t, IsThrottled(500))
}

func TestCandidateParamsOrderDedupAndCap(t *testing.T) {
	got := CandidateParams("http://t.test/?id=1&foo=2&id=3", 4)
	assert.Equal(t, []string{"id", "foo", "q", "query"}, got)

	all := CandidateParams("http://t.test/", 0)
	assert.Equal(t, SyntheticParams, all)
}

func TestWithParamPreservesOtherPairsVerbatim(t *testing.T) {
	got, err := WithParam("http://t.test/p?a=1%2B2&q=old&b=x%20y#frag", "q", "<x>")
	require.NoError(t, err)
	assert.Equal(t, "http://t.test/p?a=1%2B2&q=%3Cx%3E&b=x%20y", got)

	got, err = WithParam("http://t.test/p?a=1", "q", "v w")
	require.NoError(t, err)
	assert.Equal(t, "http://t.test/p?a=1&q=v+w", got)
}

func TestWithFragmentEncodesSpacesAsPercent(t *testing.T) {
	assert.Equal(t, "http://t.test/?q=1#%3Cx%3E%20y", WithFragment("http://t.test/?q=1#old", "<x> y"))
}

func TestEvidenceTag(t *testing.T) {
	tag := EvidenceTag(core.URLParam("q"), 7, "<b>x</b>")
	assert.True(t, strings.HasPrefix(tag, "url_param_q_0007_"), tag)
	assert.Len(t, strings.TrimPrefix(tag, "url_param_q_0007_"), 8)
	assert.Equal(t, tag, EvidenceTag(core.URLParam("q"), 7, "<b>x</b>"))
	assert.NotEqual(t, tag, EvidenceTag(core.URLParam("q"), 7, "<i>x</i>"))

	form := EvidenceTag(core.FormField(2, "user[name] "+strings.Repeat("x", 40)), 1, "p")
	assert.True(t, strings.HasPrefix(form, "form2_user_name_xxxxx"), form)
	parts := strings.Split(form, "_0001_")
	require.Len(t, parts, 2)
	assert.LessOrEqual(t, len(strings.TrimPrefix(parts[0], "form2_")), 32)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.TargetURL = "https://target.test/app"
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"missing target":    func(c *Config) { c.TargetURL = "" },
		"bad scheme":        func(c *Config) { c.TargetURL = "file:///etc/passwd" },
		"no host":           func(c *Config) { c.TargetURL = "http://" },
		"zero timeout":      func(c *Config) { c.Timeout = 0 },
		"bad ua mode":       func(c *Config) { c.UAMode = "sometimes" },
		"bad wordlist mode": func(c *Config) { c.WordlistMode = "merge" },
		"negative cap":      func(c *Config) { c.MaxPayloads = -1 },
		"retention range":   func(c *Config) { c.InlineRetention = 1.5 },
		"jitter range":      func(c *Config) { c.Jitter = -0.1 },
		"backoff order":     func(c *Config) { c.BackoffMax = c.BackoffBase / 2 },
		"negative rate":     func(c *Config) { c.RateLimit = -1 },
		"no phases":         func(c *Config) { c.FuzzURLParams, c.FuzzForms = false, false },
		"no output":         func(c *Config) { c.OutputDir = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestRandomUserAgentFromPool(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		assert.Contains(t, UserAgents, RandomUserAgent(rng))
	}
}
