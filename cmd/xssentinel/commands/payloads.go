/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: payloads.go
Description: Payloads command implementation. Runs the mutation pipeline offline and lists
the resulting payloads one per line so they can be piped into other tools.
*/

package commands

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/kleascm/xssentinel/pkg/csp"
	"github.com/kleascm/xssentinel/pkg/payloads"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunPayloads builds the payload set for a marker and optional policy
func RunPayloads(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	opts := payloads.BuildOptions{
		Marker:          viper.GetString("payloads.marker"),
		Wordlists:       viper.GetStringSlice("payloads.wordlists"),
		Mode:            payloads.MergeMode(viper.GetString("payloads.wordlist_mode")),
		MaxPayloads:     viper.GetInt("payloads.max"),
		Rand:            rand.New(rand.NewSource(viper.GetInt64("payloads.seed"))),
		InlineRetention: viper.GetFloat64("payloads.inline_retention"),
	}
	if policy := viper.GetString("payloads.policy"); strings.TrimSpace(policy) != "" {
		caps := csp.Parse(policy)
		opts.CSP = &caps
	}

	result, err := payloads.Build(opts)
	if err != nil {
		return err
	}
	return PrintPayloads(os.Stdout, os.Stderr, result)
}

// PrintPayloads writes the payloads to out and the build notes to notes
func PrintPayloads(out, notes io.Writer, result *payloads.BuildResult) error {
	for _, w := range result.Warnings {
		fmt.Fprintf(notes, "warning: %v\n", w)
	}
	fmt.Fprintf(notes, "templates: %d  kept: %d  retained inline: %d  payloads: %d\n",
		result.Templates, result.Kept, result.Retained, len(result.Payloads))
	if result.FilterBypassed {
		fmt.Fprintln(notes, "note: the policy blocked every template, so the unfiltered set is listed")
	}
	for _, p := range result.Payloads {
		if _, err := fmt.Fprintln(out, p); err != nil {
			return err
		}
	}
	return nil
}
