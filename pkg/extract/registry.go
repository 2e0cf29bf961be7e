package extract

import (
	"fmt"
	"sort"
)

// builders maps extractor names to their constructors. Entries are keyed by
// the name the extractor itself reports.
var builders = map[string]func() Extractor{}

func register(build func() Extractor) {
	ex := build()
	builders[ex.Name()] = build
}

func init() {
	register(NewAutomations)
	register(NewQueries)
	register(NewScripts)
	register(NewJourneys)
	register(NewTriggeredSends)
	register(NewDataExtensions)
	register(NewEventDefinitions)
	register(NewImports)
	register(NewDataExtracts)
	register(NewFileTransfers)
	register(NewFilters)
	register(NewClassicEmails)
	register(NewLists)
	register(NewAssets)
	register(NewFolders)
	register(NewSenderProfiles)
	register(NewDeliveryProfiles)
	register(NewSendClassifications)
}

// Names lists all registered extractor names, sorted.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the named extractor.
func Lookup(name string) (Extractor, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown extractor %q", name)
	}
	return build(), nil
}

// All builds every registered extractor, sorted by name.
func All() []Extractor {
	out := make([]Extractor, 0, len(builders))
	for _, name := range Names() {
		out = append(out, builders[name]())
	}
	return out
}
