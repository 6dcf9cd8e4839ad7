/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line interface for XSSentinel. Wires the scan, payloads, csp, logs and
version commands, binds every flag to viper so values can also come from a YAML config file
or XSSENTINEL_* environment variables.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/xssentinel/cmd/xssentinel/commands"
	"github.com/kleascm/xssentinel/pkg/payloads"
	"github.com/kleascm/xssentinel/pkg/web"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "xssentinel",
		Short: "XSSentinel - dynamic XSS probe for authorized targets",
		Long: `XSSentinel drives a real browser against one authorized target, injects marker-bearing
payloads into URL parameters, fragments and form fields, and reports which of them were reflected
or executed. Payloads adapt to the target's Content Security Policy and every hit is backed by a
screenshot, a trace and the recorded session.`,
		Version:       commands.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags
	rootCmd.PersistentFlags().String("config", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-dir", "./logs", "Log output directory (empty = console only)")
	rootCmd.PersistentFlags().String("log-format", "custom", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().Int("log-max-files", 10, "Maximum number of log files to keep")
	rootCmd.PersistentFlags().Int64("log-max-size", 100*1024*1024, "Maximum log file size in bytes")
	rootCmd.PersistentFlags().Bool("log-compress", false, "Compress rotated log files")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable coloured console logs")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_max_files", rootCmd.PersistentFlags().Lookup("log-max-files"))
	viper.BindPFlag("log_max_size", rootCmd.PersistentFlags().Lookup("log-max-size"))
	viper.BindPFlag("log_compress", rootCmd.PersistentFlags().Lookup("log-compress"))
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	defaults := web.DefaultConfig()

	// Scan command
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Probe one authorized target for reflected and DOM XSS",
		Long: `Open the target in a browser session, capture its CSP, build a policy-aware payload set
and inject it into URL parameters, fragments and form fields. Writes report.json plus evidence to
the output directory and prints the findings to stdout.`,
		RunE: commands.RunScan,
	}

	scanCmd.Flags().String("target", "", "Authorized target URL (required, flag or config)")
	scanCmd.Flags().StringSlice("header", []string{}, "Extra request header (Name: value), repeatable")
	scanCmd.Flags().StringSlice("cookie", []string{}, "Cookie scoped to the target (name=value), repeatable")

	scanCmd.Flags().Duration("timeout", defaults.Timeout, "Navigation timeout and execution wait")
	scanCmd.Flags().Bool("headless", defaults.Headless, "Run Chrome headless")
	scanCmd.Flags().String("chrome-path", "", "Chrome binary (empty = auto-detect)")
	scanCmd.Flags().String("user-agent", "", "Fixed User-Agent (empty = browser default)")
	scanCmd.Flags().String("ua-mode", string(defaults.UAMode), "User-Agent mode (session, per-request)")

	scanCmd.Flags().Bool("url-params", defaults.FuzzURLParams, "Fuzz URL parameters and fragments")
	scanCmd.Flags().Bool("forms", defaults.FuzzForms, "Fuzz form fields")
	scanCmd.Flags().Int("max-params", defaults.MaxParams, "Maximum candidate parameters (0 = unlimited)")
	scanCmd.Flags().Int("max-forms", defaults.MaxForms, "Maximum forms (0 = unlimited)")

	scanCmd.Flags().String("marker", "", "Marker override (empty = random)")
	scanCmd.Flags().Bool("csp-aware", defaults.CSPAware, "Filter payloads by the captured CSP")
	scanCmd.Flags().StringSlice("wordlist", []string{}, "External wordlist or YAML catalog, repeatable")
	scanCmd.Flags().String("wordlist-mode", string(defaults.WordlistMode), "How wordlists combine with the catalog (extend, replace)")
	scanCmd.Flags().Int("max-payloads", defaults.MaxPayloads, "Maximum payloads (0 = unlimited)")
	scanCmd.Flags().Float64("inline-retention", defaults.InlineRetention, "Share of inline payloads kept under a blocking CSP")
	scanCmd.Flags().Int64("seed", 0, "Random seed (0 = time-based)")

	scanCmd.Flags().Duration("pacing", defaults.Pacing, "Base delay between attempts")
	scanCmd.Flags().Float64("jitter", defaults.Jitter, "Pacing jitter fraction (0-1)")
	scanCmd.Flags().Duration("backoff-base", defaults.BackoffBase, "First wait after a 403/429")
	scanCmd.Flags().Duration("backoff-max", defaults.BackoffMax, "Backoff ceiling")
	scanCmd.Flags().Float64("rate-limit", defaults.RateLimit, "Navigations per second (0 = off)")
	scanCmd.Flags().Int("warmup", defaults.WarmupRequests, "Warmup navigations before fuzzing")
	scanCmd.Flags().Duration("warmup-wait", defaults.WarmupWait, "Delay after each warmup navigation")

	scanCmd.Flags().String("output", defaults.OutputDir, "Output directory for report and evidence")
	scanCmd.Flags().Bool("trace-on-hit", defaults.TraceOnHit, "Export a trace for every hit")
	scanCmd.Flags().Bool("har", defaults.RecordHAR, "Record the session as HAR")
	scanCmd.Flags().Bool("clear-sinks", defaults.ClearSinksPerAttempt, "Reset the sink log before each attempt")
	scanCmd.Flags().String("stdout", string(commands.DefaultFormat), "Stdout format (table, summary, json, ndjson, yaml)")
	scanCmd.Flags().Bool("html", false, "Also write report.html")
	scanCmd.Flags().String("metrics", "", "Write Prometheus metrics to this textfile")

	viper.BindPFlag("scan.target", scanCmd.Flags().Lookup("target"))
	viper.BindPFlag("scan.headers", scanCmd.Flags().Lookup("header"))
	viper.BindPFlag("scan.cookies", scanCmd.Flags().Lookup("cookie"))
	viper.BindPFlag("scan.timeout", scanCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("scan.headless", scanCmd.Flags().Lookup("headless"))
	viper.BindPFlag("scan.chrome_path", scanCmd.Flags().Lookup("chrome-path"))
	viper.BindPFlag("scan.user_agent", scanCmd.Flags().Lookup("user-agent"))
	viper.BindPFlag("scan.ua_mode", scanCmd.Flags().Lookup("ua-mode"))
	viper.BindPFlag("scan.url_params", scanCmd.Flags().Lookup("url-params"))
	viper.BindPFlag("scan.forms", scanCmd.Flags().Lookup("forms"))
	viper.BindPFlag("scan.max_params", scanCmd.Flags().Lookup("max-params"))
	viper.BindPFlag("scan.max_forms", scanCmd.Flags().Lookup("max-forms"))
	viper.BindPFlag("scan.marker", scanCmd.Flags().Lookup("marker"))
	viper.BindPFlag("scan.csp_aware", scanCmd.Flags().Lookup("csp-aware"))
	viper.BindPFlag("scan.wordlists", scanCmd.Flags().Lookup("wordlist"))
	viper.BindPFlag("scan.wordlist_mode", scanCmd.Flags().Lookup("wordlist-mode"))
	viper.BindPFlag("scan.max_payloads", scanCmd.Flags().Lookup("max-payloads"))
	viper.BindPFlag("scan.inline_retention", scanCmd.Flags().Lookup("inline-retention"))
	viper.BindPFlag("scan.seed", scanCmd.Flags().Lookup("seed"))
	viper.BindPFlag("scan.pacing", scanCmd.Flags().Lookup("pacing"))
	viper.BindPFlag("scan.jitter", scanCmd.Flags().Lookup("jitter"))
	viper.BindPFlag("scan.backoff_base", scanCmd.Flags().Lookup("backoff-base"))
	viper.BindPFlag("scan.backoff_max", scanCmd.Flags().Lookup("backoff-max"))
	viper.BindPFlag("scan.rate_limit", scanCmd.Flags().Lookup("rate-limit"))
	viper.BindPFlag("scan.warmup_requests", scanCmd.Flags().Lookup("warmup"))
	viper.BindPFlag("scan.warmup_wait", scanCmd.Flags().Lookup("warmup-wait"))
	viper.BindPFlag("scan.output_dir", scanCmd.Flags().Lookup("output"))
	viper.BindPFlag("scan.trace_on_hit", scanCmd.Flags().Lookup("trace-on-hit"))
	viper.BindPFlag("scan.record_har", scanCmd.Flags().Lookup("har"))
	viper.BindPFlag("scan.clear_sinks", scanCmd.Flags().Lookup("clear-sinks"))
	viper.BindPFlag("scan.stdout", scanCmd.Flags().Lookup("stdout"))
	viper.BindPFlag("scan.html", scanCmd.Flags().Lookup("html"))
	viper.BindPFlag("scan.metrics", scanCmd.Flags().Lookup("metrics"))

	rootCmd.AddCommand(scanCmd)

	// Payloads command
	payloadsCmd := &cobra.Command{
		Use:   "payloads",
		Short: "Build and list the payload set without touching a target",
		Long: `Run the mutation pipeline offline. Useful to preview what a scan would send for a
given marker, policy and wordlist combination.`,
		RunE: commands.RunPayloads,
	}
	payloadsCmd.Flags().String("marker", "preview", "Marker substituted into the templates")
	payloadsCmd.Flags().String("policy", "", "Content-Security-Policy to filter against (empty = no filtering)")
	payloadsCmd.Flags().StringSlice("wordlist", []string{}, "External wordlist or YAML catalog, repeatable")
	payloadsCmd.Flags().String("wordlist-mode", string(payloads.ModeExtend), "How wordlists combine with the catalog (extend, replace)")
	payloadsCmd.Flags().Int("max", 0, "Maximum payloads (0 = unlimited)")
	payloadsCmd.Flags().Int64("seed", 1, "Random seed")
	payloadsCmd.Flags().Float64("inline-retention", payloads.DefaultInlineRetention, "Share of inline payloads kept under a blocking CSP")

	viper.BindPFlag("payloads.marker", payloadsCmd.Flags().Lookup("marker"))
	viper.BindPFlag("payloads.policy", payloadsCmd.Flags().Lookup("policy"))
	viper.BindPFlag("payloads.wordlists", payloadsCmd.Flags().Lookup("wordlist"))
	viper.BindPFlag("payloads.wordlist_mode", payloadsCmd.Flags().Lookup("wordlist-mode"))
	viper.BindPFlag("payloads.max", payloadsCmd.Flags().Lookup("max"))
	viper.BindPFlag("payloads.seed", payloadsCmd.Flags().Lookup("seed"))
	viper.BindPFlag("payloads.inline_retention", payloadsCmd.Flags().Lookup("inline-retention"))

	rootCmd.AddCommand(payloadsCmd)

	// CSP command
	cspCmd := &cobra.Command{
		Use:   "csp [policy]",
		Short: "Reduce a Content Security Policy to script capabilities",
		Long: `Parse a policy given as an argument, or pulled from the meta tag of a saved HTML page,
and print what it allows for scripts. When both are given they are merged the way a scan merges
the header and the meta policy.`,
		Args: cobra.MaximumNArgs(1),
		RunE: commands.RunCSP,
	}
	cspCmd.Flags().String("html", "", "HTML file whose meta policy should be read")
	viper.BindPFlag("csp.html", cspCmd.Flags().Lookup("html"))
	rootCmd.AddCommand(cspCmd)

	// Logs command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "logs",
		Short: "Summarize the run logs in the log directory",
		Long: `Analyze the run logs for attempts, hits, failures and throttling, and show the size
of the log directory.`,
		RunE: commands.RunLogs,
	})

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("XSSentinel v%s\n", commands.Version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}
