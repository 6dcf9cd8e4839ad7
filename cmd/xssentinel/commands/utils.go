/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the XSSentinel commands. Provides configuration loading,
logging setup and the translation of viper settings into a probe configuration.
*/

package commands

import (
	"fmt"
	"strings"

	"github.com/kleascm/xssentinel/pkg/core"
	"github.com/kleascm/xssentinel/pkg/logging"
	"github.com/kleascm/xssentinel/pkg/payloads"
	"github.com/kleascm/xssentinel/pkg/reporting"
	"github.com/kleascm/xssentinel/pkg/web"
	"github.com/spf13/viper"
)

// Version of the command-line tool
const Version = "1.0.0"

// DefaultFormat is what scan prints to stdout unless told otherwise
const DefaultFormat = reporting.FormatTable

// Exit codes. A fatal run error (no browser session, no report) is kept apart from usage errors.
const (
	ExitUsage = 1
	ExitFatal = 2
)

// ExitCode maps a command error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case core.IsFatal(err):
		return ExitFatal
	default:
		return ExitUsage
	}
}

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// XSSENTINEL_SCAN_TARGET maps to scan.target
	viper.SetEnvPrefix("XSSENTINEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	return nil
}

// SetupLogging builds the run logger from the log_* settings
func SetupLogging() (*logging.Logger, error) {
	config := logging.DefaultLoggerConfig()
	config.Level = logging.LogLevel(strings.ToLower(viper.GetString("log_level")))
	config.Format = logging.LogFormat(strings.ToLower(viper.GetString("log_format")))
	config.OutputDir = viper.GetString("log_dir")
	config.MaxFiles = viper.GetInt("log_max_files")
	config.MaxSize = viper.GetInt64("log_max_size")
	config.Compress = viper.GetBool("log_compress")
	config.Colors = !viper.GetBool("no_color")

	logger, err := logging.NewLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger, nil
}

// BuildWebConfig turns the scan.* settings into a validated probe configuration
func BuildWebConfig() (*web.Config, error) {
	config := web.DefaultConfig()

	config.TargetURL = strings.TrimSpace(viper.GetString("scan.target"))

	headers, err := ParsePairs(viper.GetStringSlice("scan.headers"), ":")
	if err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}
	config.Headers = headers
	cookies, err := ParsePairs(viper.GetStringSlice("scan.cookies"), "=")
	if err != nil {
		return nil, fmt.Errorf("invalid cookie: %w", err)
	}
	config.Cookies = cookies

	if viper.IsSet("scan.timeout") {
		config.Timeout = viper.GetDuration("scan.timeout")
	}
	if viper.IsSet("scan.headless") {
		config.Headless = viper.GetBool("scan.headless")
	}
	config.ChromePath = viper.GetString("scan.chrome_path")
	config.UserAgent = viper.GetString("scan.user_agent")
	if mode := viper.GetString("scan.ua_mode"); mode != "" {
		config.UAMode = web.UAMode(mode)
	}

	if viper.IsSet("scan.url_params") {
		config.FuzzURLParams = viper.GetBool("scan.url_params")
	}
	if viper.IsSet("scan.forms") {
		config.FuzzForms = viper.GetBool("scan.forms")
	}
	if viper.IsSet("scan.max_params") {
		config.MaxParams = viper.GetInt("scan.max_params")
	}
	if viper.IsSet("scan.max_forms") {
		config.MaxForms = viper.GetInt("scan.max_forms")
	}

	config.Marker = viper.GetString("scan.marker")
	if viper.IsSet("scan.csp_aware") {
		config.CSPAware = viper.GetBool("scan.csp_aware")
	}
	config.Wordlists = viper.GetStringSlice("scan.wordlists")
	if mode := viper.GetString("scan.wordlist_mode"); mode != "" {
		config.WordlistMode = payloads.MergeMode(mode)
	}
	config.MaxPayloads = viper.GetInt("scan.max_payloads")
	if viper.IsSet("scan.inline_retention") {
		config.InlineRetention = viper.GetFloat64("scan.inline_retention")
	}
	config.Seed = viper.GetInt64("scan.seed")

	config.Pacing = viper.GetDuration("scan.pacing")
	config.Jitter = viper.GetFloat64("scan.jitter")
	if viper.IsSet("scan.backoff_base") {
		config.BackoffBase = viper.GetDuration("scan.backoff_base")
	}
	if viper.IsSet("scan.backoff_max") {
		config.BackoffMax = viper.GetDuration("scan.backoff_max")
	}
	config.RateLimit = viper.GetFloat64("scan.rate_limit")
	config.WarmupRequests = viper.GetInt("scan.warmup_requests")
	if viper.IsSet("scan.warmup_wait") {
		config.WarmupWait = viper.GetDuration("scan.warmup_wait")
	}

	if dir := viper.GetString("scan.output_dir"); dir != "" {
		config.OutputDir = dir
	}
	config.TraceOnHit = viper.GetBool("scan.trace_on_hit")
	if viper.IsSet("scan.record_har") {
		config.RecordHAR = viper.GetBool("scan.record_har")
	}
	config.ClearSinksPerAttempt = viper.GetBool("scan.clear_sinks")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// ParsePairs splits "name<sep>value" items into a map. Values keep inner separators.
func ParsePairs(items []string, sep string) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for _, item := range items {
		name, value, ok := strings.Cut(item, sep)
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name%svalue, got %q", sep, item)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}
