package runner

import (
	"fmt"
	"sort"

	"github.com/marketingops/sfmc-inventory/pkg/extract"
)

// Preset is a named extractor selection.
type Preset struct {
	Extractors  []string
	Description string
}

var presets = map[string]Preset{
	"quick": {
		Extractors:  []string{"automations", "data_extensions"},
		Description: "Quick overview: automations and data extensions only",
	},
	"full": {
		Extractors:  extract.Names(),
		Description: "Full inventory: every extractor",
	},
	"automation": {
		Extractors: []string{
			"automations", "queries", "scripts", "imports",
			"data_extracts", "filters", "file_transfers",
		},
		Description: "Automation Studio activities",
	},
	"messaging": {
		Extractors: []string{
			"classic_emails", "triggered_sends", "sender_profiles",
			"delivery_profiles", "send_classifications",
		},
		Description: "Email sending infrastructure",
	},
	"content": {
		Extractors:  []string{"data_extensions", "queries", "assets"},
		Description: "Data extensions, queries and Content Builder assets",
	},
	"journey": {
		Extractors:  []string{"journeys", "data_extensions", "event_definitions"},
		Description: "Journey Builder with entry sources",
	},
}

// LookupPreset resolves a preset by name.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (available: %v)", name, PresetNames())
	}
	return p, nil
}

// PresetNames lists available preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Presets returns the preset table for display.
func Presets() map[string]Preset {
	out := make(map[string]Preset, len(presets))
	for name, p := range presets {
		out[name] = p
	}
	return out
}
