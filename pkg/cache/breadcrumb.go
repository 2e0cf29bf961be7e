package cache

import (
	"fmt"
	"strings"
	"sync"

	"github.com/marketingops/sfmc-inventory/pkg/types"
)

const pathSeparator = " > "

// Breadcrumb is a resolved folder path. Cyclic is set when the parent chain
// loops back on itself; the path is truncated at the repeated folder.
type Breadcrumb struct {
	Path   string
	Cyclic bool
}

// BreadcrumbBuilder resolves folder IDs into "root > child > leaf" paths.
// Results are memoized per builder; a folder referenced as a parent but
// absent from the map contributes a synthetic "(unknown:<id>)" segment and
// is recorded as missing.
type BreadcrumbBuilder struct {
	mu      sync.Mutex
	folders map[string]types.Folder
	cache   map[string]Breadcrumb
	missing map[string]struct{}
}

// NewBreadcrumbBuilder creates a builder over a folder map keyed by ID.
func NewBreadcrumbBuilder(folders map[string]types.Folder) *BreadcrumbBuilder {
	return &BreadcrumbBuilder{
		folders: folders,
		cache:   make(map[string]Breadcrumb),
		missing: make(map[string]struct{}),
	}
}

// Build resolves the path for folderID. An empty or root ID yields an empty
// path.
func (b *BreadcrumbBuilder) Build(folderID string) Breadcrumb {
	if folderID == "" || folderID == "0" {
		return Breadcrumb{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if bc, ok := b.cache[folderID]; ok {
		return bc
	}

	// Walk up iteratively, collecting segments leaf-first.
	var segments []string
	visited := make(map[string]struct{})
	cyclic := false

	id := folderID
	for id != "" && id != "0" {
		if _, seen := visited[id]; seen {
			cyclic = true
			break
		}
		visited[id] = struct{}{}

		folder, ok := b.folders[id]
		if !ok {
			b.missing[id] = struct{}{}
			segments = append(segments, fmt.Sprintf("(unknown:%s)", id))
			break
		}
		segments = append(segments, folder.Name)
		id = folder.ParentID
	}

	// Reverse into root-first order.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	bc := Breadcrumb{Path: strings.Join(segments, pathSeparator), Cyclic: cyclic}
	b.cache[folderID] = bc
	return bc
}

// Missing returns the IDs of folders referenced but absent from the map.
func (b *BreadcrumbBuilder) Missing() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.missing))
	for id := range b.missing {
		out = append(out, id)
	}
	return out
}
