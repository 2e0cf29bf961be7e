package graph

import (
	"regexp"
	"sort"
	"strings"

	"github.com/marketingops/sfmc-inventory/pkg/types"
)

type objectKey struct {
	objType types.ObjectType
	id      string
}

// Builder assembles the relationship graph from extraction results: it
// indexes objects, dedupes edges, flags edges whose target was never seen,
// and applies the orphan rules.
type Builder struct {
	objects   map[objectKey]types.Object
	nameIndex map[types.ObjectType]map[string]string // name -> id, for by-name edge resolution
	edges     []types.Edge
	edgeKeys  map[string]struct{}
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		objects:   make(map[objectKey]types.Object),
		nameIndex: make(map[types.ObjectType]map[string]string),
		edgeKeys:  make(map[string]struct{}),
	}
}

// AddObjects indexes extracted objects by type and ID, and by name for
// resolving name-keyed edges.
func (b *Builder) AddObjects(objects []types.Object) {
	for _, obj := range objects {
		if obj.ID == "" {
			continue
		}
		b.objects[objectKey{obj.Type, obj.ID}] = obj

		if obj.Name == "" {
			continue
		}
		byName, ok := b.nameIndex[obj.Type]
		if !ok {
			byName = make(map[string]string)
			b.nameIndex[obj.Type] = byName
		}
		byName[obj.Name] = obj.ID
	}
}

// AddEdges merges edges, dropping duplicates by identity tuple.
func (b *Builder) AddEdges(edges []types.Edge) {
	for _, edge := range edges {
		if _, seen := b.edgeKeys[edge.Key()]; seen {
			continue
		}
		b.edgeKeys[edge.Key()] = struct{}{}
		b.edges = append(b.edges, edge)
	}
}

// Resolve finalizes the graph: name-keyed edges are rewritten to object IDs
// where the name is known, and edges whose target was never extracted are
// flagged dangling.
func (b *Builder) Resolve() {
	for i := range b.edges {
		edge := &b.edges[i]

		// Edges recorded by name (SQL reads) resolve to an ID when an object
		// with that exact name was extracted.
		if edge.Metadata["resolvedBy"] == "name" {
			if id, ok := b.nameIndex[edge.TargetType][edge.TargetID]; ok {
				edge.TargetID = id
			}
		}

		target := objectKey{edge.TargetType, edge.TargetID}
		if _, known := b.objects[target]; !known {
			edge.Dangling = true
		}
	}
}

// Edges returns the deduplicated edge list.
func (b *Builder) Edges() []types.Edge {
	return b.edges
}

// Object looks up an indexed object.
func (b *Builder) Object(objType types.ObjectType, id string) (types.Object, bool) {
	obj, ok := b.objects[objectKey{objType, id}]
	return obj, ok
}

// orphanRules lists, per object type, which source types count as a real
// reference. An object of the keyed type with no incoming edge from any of
// the listed types is reported as orphaned.
var orphanRules = map[types.ObjectType][]types.ObjectType{
	types.TypeQuery:        {types.TypeAutomation},
	types.TypeScript:       {types.TypeAutomation},
	types.TypeImport:       {types.TypeAutomation},
	types.TypeDataExtract:  {types.TypeAutomation},
	types.TypeFileTransfer: {types.TypeAutomation},
	types.TypeFilter:       {types.TypeAutomation, types.TypeJourney},
	types.TypeDataExtension: {
		types.TypeAutomation, types.TypeQuery, types.TypeJourney,
		types.TypeImport, types.TypeFilter, types.TypeDataExtract,
		types.TypeEventDefinition, types.TypeTriggeredSend,
	},
	types.TypeEmail:              {types.TypeAutomation, types.TypeJourney, types.TypeTriggeredSend},
	types.TypeAsset:              {types.TypeEmail, types.TypeAsset, types.TypeJourney},
	types.TypeList:               {types.TypeTriggeredSend, types.TypeJourney},
	types.TypeSenderProfile:      {types.TypeSendClassification, types.TypeTriggeredSend},
	types.TypeDeliveryProfile:    {types.TypeSendClassification, types.TypeTriggeredSend},
	types.TypeSendClassification: {types.TypeTriggeredSend},
	types.TypeEventDefinition:    {types.TypeJourney},
}

// uuidSuffixPattern matches names ending in a UUID, the signature of
// generated Journey Builder artifacts.
var uuidSuffixPattern = regexp.MustCompile(
	`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Orphans applies the orphan rules to every indexed object. Call after
// Resolve.
func (b *Builder) Orphans() []types.OrphanedObject {
	// Index which source types reference each object.
	refSources := make(map[objectKey]map[types.ObjectType]struct{})
	for _, edge := range b.edges {
		target := objectKey{edge.TargetType, edge.TargetID}
		if refSources[target] == nil {
			refSources[target] = make(map[types.ObjectType]struct{})
		}
		refSources[target][edge.SourceType] = struct{}{}
	}

	var orphans []types.OrphanedObject
	for key, obj := range b.objects {
		// Abandoned Journey Builder artifacts count regardless of references.
		artifact := isJourneyBuilderArtifact(obj)

		required, ruled := orphanRules[key.objType]
		if !ruled && !artifact {
			continue
		}

		referenced := false
		for _, sourceType := range required {
			if _, ok := refSources[key][sourceType]; ok {
				referenced = true
				break
			}
		}
		if referenced && !artifact {
			continue
		}

		reason := "not referenced by any other object"
		if artifact {
			reason = "generated journey builder artifact, journey deleted"
		}

		orphans = append(orphans, types.OrphanedObject{
			ID:           obj.ID,
			ObjectType:   obj.Type,
			Name:         obj.Name,
			FolderPath:   obj.FolderPath,
			Reason:       reason,
			LastModified: obj.ModifiedDate,
		})
	}

	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].ObjectType != orphans[j].ObjectType {
			return orphans[i].ObjectType < orphans[j].ObjectType
		}
		return orphans[i].ID < orphans[j].ID
	})
	return orphans
}

// isJourneyBuilderArtifact spots the triggered sends Journey Builder
// generates and abandons: parked in a Journey Builder folder, deleted, with
// a generated UUID name suffix.
func isJourneyBuilderArtifact(obj types.Object) bool {
	return strings.Contains(strings.ToLower(obj.FolderPath), "journeybuilder") &&
		strings.EqualFold(obj.Status, "Deleted") &&
		uuidSuffixPattern.MatchString(obj.Name)
}

// mostConnectedLimit caps the most-connected ranking in stats.
const mostConnectedLimit = 10

// Stats summarizes the resolved graph.
func (b *Builder) Stats() types.GraphStats {
	stats := types.GraphStats{
		TotalEdges:   len(b.edges),
		ByKind:       make(map[types.EdgeKind]int),
		BySourceType: make(map[types.ObjectType]int),
		ByTargetType: make(map[types.ObjectType]int),
	}

	degree := make(map[objectKey]int)
	for _, edge := range b.edges {
		stats.ByKind[edge.Kind]++
		stats.BySourceType[edge.SourceType]++
		stats.ByTargetType[edge.TargetType]++
		if edge.Dangling {
			stats.DanglingEdges++
		}
		degree[objectKey{edge.SourceType, edge.SourceID}]++
		degree[objectKey{edge.TargetType, edge.TargetID}]++
	}

	type ranked struct {
		key    objectKey
		degree int
	}
	rankings := make([]ranked, 0, len(degree))
	for key, d := range degree {
		// Rank only objects we actually extracted.
		if _, ok := b.objects[key]; ok {
			rankings = append(rankings, ranked{key, d})
		}
	}
	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].degree != rankings[j].degree {
			return rankings[i].degree > rankings[j].degree
		}
		return rankings[i].key.id < rankings[j].key.id
	})
	if len(rankings) > mostConnectedLimit {
		rankings = rankings[:mostConnectedLimit]
	}
	for _, r := range rankings {
		obj := b.objects[r.key]
		stats.MostConnected = append(stats.MostConnected, types.ConnectedObject{
			ID:    r.key.id,
			Type:  r.key.objType,
			Name:  obj.Name,
			Edges: r.degree,
		})
	}
	return stats
}
