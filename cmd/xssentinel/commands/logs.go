/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logs.go
Description: Logs command implementation. Summarizes the run logs in the log directory.
*/

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/kleascm/xssentinel/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunLogs analyzes the log directory
func RunLogs(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	dir := viper.GetString("log_dir")
	if dir == "" {
		return fmt.Errorf("no log directory configured")
	}
	return PrintLogReport(os.Stdout, dir)
}

// PrintLogReport writes file statistics and the event tallies for dir
func PrintLogReport(out io.Writer, dir string) error {
	stats, err := logging.Inventory(dir)
	if err != nil {
		return err
	}
	tally, err := logging.ScanEvents(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Log directory: %s\n", dir)
	fmt.Fprintf(out, "  Files: %d (%d compressed), %d bytes\n", stats.Files, stats.Compressed, stats.Bytes)
	if stats.Files > 0 {
		fmt.Fprintf(out, "  Oldest: %s  Newest: %s\n",
			stats.Oldest.Format("2006-01-02 15:04:05"), stats.Newest.Format("2006-01-02 15:04:05"))
	}
	_, err = fmt.Fprintln(out, tally.Summary())
	return err
}
