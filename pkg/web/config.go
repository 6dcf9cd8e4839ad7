/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: Probe run configuration. Covers the target, session, phases and caps, payload
generation, pacing and throttling, warmup and evidence capture.
*/

package web

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/kleascm/xssentinel/pkg/payloads"
)

// UAMode selects how the User-Agent is chosen
type UAMode string

const (
	UAModeSession    UAMode = "session"     // one identity for the whole run
	UAModePerRequest UAMode = "per-request" // random pool entry before every attempt
)

// Config holds every knob of a probe run
type Config struct {
	// Target configuration
	TargetURL string            `json:"target_url"` // Authorized target
	Headers   map[string]string `json:"headers"`    // Extra request headers
	Cookies   map[string]string `json:"cookies"`    // Cookies scoped to the target URL

	// Session configuration
	Timeout    time.Duration `json:"timeout"`     // Navigator timeout and execution wait
	Headless   bool          `json:"headless"`    // Run Chrome headless
	ChromePath string        `json:"chrome_path"` // Browser binary (empty = auto-detect)
	UserAgent  string        `json:"user_agent"`  // Fixed session identity (empty = browser default)
	UAMode     UAMode        `json:"ua_mode"`     // session or per-request

	// Phase configuration
	FuzzURLParams bool `json:"fuzz_url_params"` // Run the URL parameter phase
	FuzzForms     bool `json:"fuzz_forms"`      // Run the form phase
	MaxParams     int  `json:"max_params"`      // Candidate parameter cap (0 = unlimited)
	MaxForms      int  `json:"max_forms"`       // Form cap (0 = unlimited)

	// Payload configuration
	Marker          string             `json:"marker"`           // Marker override (empty = random)
	CSPAware        bool               `json:"csp_aware"`        // Filter payloads by the captured CSP
	Wordlists       []string           `json:"wordlists"`        // External wordlist or catalog files
	WordlistMode    payloads.MergeMode `json:"wordlist_mode"`    // extend or replace
	MaxPayloads     int                `json:"max_payloads"`     // Payload cap (0 = unlimited)
	InlineRetention float64            `json:"inline_retention"` // Share of inline templates kept under a blocking CSP
	Seed            int64              `json:"seed"`             // Random seed (0 = time-based, recorded in the result)

	// Pacing and throttling
	Pacing      time.Duration `json:"pacing"`       // Base delay between attempts
	Jitter      float64       `json:"jitter"`       // Fraction of Pacing added or removed at random
	BackoffBase time.Duration `json:"backoff_base"` // First wait after a 403/429
	BackoffMax  time.Duration `json:"backoff_max"`  // Backoff ceiling
	RateLimit   float64       `json:"rate_limit"`   // Navigations per second (0 = off)

	// Warmup
	WarmupRequests int           `json:"warmup_requests"` // Gentle navigations before fuzzing
	WarmupWait     time.Duration `json:"warmup_wait"`     // Delay after each warmup navigation

	// Evidence configuration
	OutputDir            string `json:"output_dir"`              // Root for report, evidence, traces and HAR
	TraceOnHit           bool   `json:"trace_on_hit"`            // Export a trace per hit
	RecordHAR            bool   `json:"record_har"`              // Record <output>/session.har
	ClearSinksPerAttempt bool   `json:"clear_sinks_per_attempt"` // Reset the sink log before each attempt
}

// DefaultConfig returns the stock configuration
func DefaultConfig() *Config {
	return &Config{
		Headers:         make(map[string]string),
		Cookies:         make(map[string]string),
		Timeout:         15 * time.Second,
		Headless:        true,
		UAMode:          UAModeSession,
		FuzzURLParams:   true,
		FuzzForms:       true,
		MaxParams:       8,
		MaxForms:        10,
		CSPAware:        true,
		WordlistMode:    payloads.ModeExtend,
		InlineRetention: payloads.DefaultInlineRetention,
		BackoffBase:     500 * time.Millisecond,
		BackoffMax:      8 * time.Second,
		WarmupWait:      500 * time.Millisecond,
		OutputDir:       "xssentinel-out",
		RecordHAR:       true,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("target URL is required")
	}
	u, err := url.Parse(c.TargetURL)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("target URL has no host")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UAMode != UAModeSession && c.UAMode != UAModePerRequest {
		return fmt.Errorf("invalid ua mode: %s", c.UAMode)
	}
	if c.WordlistMode != payloads.ModeExtend && c.WordlistMode != payloads.ModeReplace {
		return fmt.Errorf("invalid wordlist mode: %s", c.WordlistMode)
	}
	if c.MaxParams < 0 || c.MaxForms < 0 || c.MaxPayloads < 0 {
		return fmt.Errorf("caps must not be negative")
	}
	if c.InlineRetention < 0 || c.InlineRetention > 1 {
		return fmt.Errorf("inline retention must be within [0,1]")
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0,1]")
	}
	if c.Pacing < 0 || c.WarmupWait < 0 || c.WarmupRequests < 0 {
		return fmt.Errorf("pacing and warmup must not be negative")
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("backoff base must be positive and not exceed backoff max")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if !c.FuzzURLParams && !c.FuzzForms {
		return fmt.Errorf("at least one phase must be enabled")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// EvidenceDir is where screenshots go
func (c *Config) EvidenceDir() string {
	return filepath.Join(c.OutputDir, "evidence")
}

// TraceDir is where per-hit traces go
func (c *Config) TraceDir() string {
	return filepath.Join(c.OutputDir, "trace")
}

// HARPath is the session HAR location
func (c *Config) HARPath() string {
	return filepath.Join(c.OutputDir, "session.har")
}
