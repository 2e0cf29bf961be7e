package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marketingops/sfmc-inventory/pkg/extract"
	"github.com/marketingops/sfmc-inventory/pkg/runner"
)

var extractorsCmd = &cobra.Command{
	Use:   "extractors",
	Short: "List available extractors",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range extract.Names() {
			ex, err := extract.Lookup(name)
			if err != nil {
				continue
			}
			fmt.Printf("  %-22s %s\n", name, ex.ObjectType())
		}
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List extractor presets",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range runner.PresetNames() {
			p, err := runner.LookupPreset(name)
			if err != nil {
				continue
			}
			fmt.Printf("  %-12s %s\n", name, p.Description)
			fmt.Printf("  %-12s   %v\n", "", p.Extractors)
		}
	},
}
