/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: csp.go
Description: CSP command implementation. Reduces a policy, given directly or read from the
meta tag of a saved page, to the script capabilities a scan would adapt its payloads to.
*/

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/kleascm/xssentinel/pkg/csp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// RunCSP parses the policy argument and/or the meta policy of an HTML file
func RunCSP(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	path := viper.GetString("csp.html")
	if len(args) == 0 && path == "" {
		return fmt.Errorf("give a policy argument or --html")
	}

	var header string
	if len(args) > 0 {
		header = args[0]
	}

	var meta string
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read HTML file: %w", err)
		}
		meta = csp.FromHTML(string(data))
	}

	return PrintCapabilities(os.Stdout, csp.Merge(header, meta))
}

// PrintCapabilities writes the capabilities as YAML plus a one-line verdict
func PrintCapabilities(out io.Writer, caps csp.Capabilities) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(caps); err != nil {
		return fmt.Errorf("failed to encode capabilities: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	verdict := "no script restriction, every payload template applies"
	if caps.Restricted() {
		verdict = "restricted, payloads needing a denied capability are filtered"
	}
	_, err := fmt.Fprintf(out, "# %s\n", verdict)
	return err
}
