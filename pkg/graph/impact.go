package graph

import (
	"fmt"
	"sort"

	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// maxImpactDepth bounds the reverse-dependency walk.
const maxImpactDepth = 3

// ImpactObject identifies one object in an impact report.
type ImpactObject struct {
	ID   string           `json:"id"`
	Type types.ObjectType `json:"type"`
	Name string           `json:"name,omitempty"`
}

// Dependent is an object that would break if the report's subject were
// deleted. Via names the intermediate object the dependency flows through;
// for direct dependents it is the subject itself.
type Dependent struct {
	ImpactObject
	Relationship types.EdgeKind `json:"relationship"`
	Via          ImpactObject   `json:"via"`
}

// ImpactSummary aggregates an impact report.
type ImpactSummary struct {
	TotalAffected int                      `json:"totalAffected"`
	ByType        map[types.ObjectType]int `json:"byType"`
	ByDepth       map[int]int              `json:"byDepth"`
}

// ImpactReport describes everything that depends, directly or transitively,
// on one object.
type ImpactReport struct {
	Object               ImpactObject        `json:"object"`
	DirectDependents     []Dependent         `json:"directDependents"`
	TransitiveDependents map[int][]Dependent `json:"transitiveDependents,omitempty"`
	Summary              ImpactSummary       `json:"summary"`
}

// Impact walks the graph against edge direction from the given object,
// collecting dependents level by level up to maxImpactDepth. Call after
// Resolve.
func (b *Builder) Impact(objType types.ObjectType, id string) (*ImpactReport, error) {
	subject, ok := b.Object(objType, id)
	if !ok {
		return nil, fmt.Errorf("object %s/%s not in graph", objType, id)
	}

	// Incoming-edge index: target -> edges pointing at it.
	incoming := make(map[objectKey][]types.Edge)
	for _, edge := range b.edges {
		target := objectKey{edge.TargetType, edge.TargetID}
		incoming[target] = append(incoming[target], edge)
	}

	report := &ImpactReport{
		Object: ImpactObject{ID: subject.ID, Type: subject.Type, Name: subject.Name},
		Summary: ImpactSummary{
			ByType:  make(map[types.ObjectType]int),
			ByDepth: make(map[int]int),
		},
	}

	visited := map[objectKey]struct{}{{objType, id}: {}}
	frontier := []objectKey{{objType, id}}

	for depth := 1; depth <= maxImpactDepth && len(frontier) > 0; depth++ {
		var next []objectKey
		var level []Dependent

		for _, at := range frontier {
			via := b.impactObject(at)
			for _, edge := range incoming[at] {
				source := objectKey{edge.SourceType, edge.SourceID}
				if _, seen := visited[source]; seen {
					continue
				}
				visited[source] = struct{}{}
				level = append(level, Dependent{
					ImpactObject: b.impactObject(source),
					Relationship: edge.Kind,
					Via:          via,
				})
				next = append(next, source)
			}
		}

		sort.Slice(level, func(i, j int) bool {
			if level[i].Type != level[j].Type {
				return level[i].Type < level[j].Type
			}
			return level[i].ID < level[j].ID
		})
		for _, dep := range level {
			report.Summary.TotalAffected++
			report.Summary.ByType[dep.Type]++
		}
		if len(level) > 0 {
			report.Summary.ByDepth[depth] = len(level)
		}

		if depth == 1 {
			report.DirectDependents = level
		} else if len(level) > 0 {
			if report.TransitiveDependents == nil {
				report.TransitiveDependents = make(map[int][]Dependent)
			}
			report.TransitiveDependents[depth] = level
		}
		frontier = next
	}

	return report, nil
}

func (b *Builder) impactObject(key objectKey) ImpactObject {
	out := ImpactObject{ID: key.id, Type: key.objType}
	if obj, ok := b.objects[key]; ok {
		out.Name = obj.Name
	}
	return out
}
