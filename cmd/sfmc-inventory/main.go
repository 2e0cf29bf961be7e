package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sfmc-inventory",
	Short: "Read-only inventory extraction for Salesforce Marketing Cloud",
	Long: `sfmc-inventory walks a Marketing Cloud business unit through its REST and
SOAP APIs and writes a point-in-time snapshot: every automation, query,
journey, data extension and sending asset, plus the relationship graph
between them and a report of objects nothing references.

The tool never writes to the account. Credentials come from a YAML config
file or SFMC_* environment variables.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"sfmc-inventory version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(extractorsCmd)
	rootCmd.AddCommand(presetsCmd)
}
