package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketingops/sfmc-inventory/pkg/types"
)

func obj(t types.ObjectType, id, name string) types.Object {
	return types.Object{ID: id, Type: t, Name: name}
}

func edge(st types.ObjectType, sid string, kind types.EdgeKind, tt types.ObjectType, tid string) types.Edge {
	return types.Edge{SourceType: st, SourceID: sid, Kind: kind, TargetType: tt, TargetID: tid}
}

func TestAddEdgesDeduplicates(t *testing.T) {
	b := NewBuilder()
	e := edge(types.TypeAutomation, "a-1", types.EdgeAutomationContainsQuery, types.TypeQuery, "q-1")
	b.AddEdges([]types.Edge{e, e, e})
	assert.Len(t, b.Edges(), 1)

	other := e
	other.Kind = types.EdgeAutomationContainsScript
	b.AddEdges([]types.Edge{other})
	assert.Len(t, b.Edges(), 2)
}

func TestResolveFlagsDanglingEdges(t *testing.T) {
	b := NewBuilder()
	b.AddObjects([]types.Object{
		obj(types.TypeAutomation, "a-1", "Nightly"),
		obj(types.TypeQuery, "q-1", "Dedupe"),
	})
	b.AddEdges([]types.Edge{
		edge(types.TypeAutomation, "a-1", types.EdgeAutomationContainsQuery, types.TypeQuery, "q-1"),
		edge(types.TypeQuery, "q-1", types.EdgeQueryWritesDE, types.TypeDataExtension, "de-missing"),
	})
	b.Resolve()

	edges := b.Edges()
	require.Len(t, edges, 2)
	assert.False(t, edges[0].Dangling)
	assert.True(t, edges[1].Dangling)

	stats := b.Stats()
	assert.Equal(t, 2, stats.TotalEdges)
	assert.Equal(t, 1, stats.DanglingEdges)
	assert.Equal(t, 1, stats.ByKind[types.EdgeQueryWritesDE])
	assert.Equal(t, 1, stats.BySourceType[types.TypeAutomation])
	assert.Equal(t, 2, stats.ByTargetType[types.TypeQuery]+stats.ByTargetType[types.TypeDataExtension])
}

func TestResolveRewritesNameKeyedEdges(t *testing.T) {
	b := NewBuilder()
	b.AddObjects([]types.Object{
		obj(types.TypeQuery, "q-1", "Weekly Rollup"),
		obj(types.TypeDataExtension, "de-9", "Orders"),
	})
	byName := edge(types.TypeQuery, "q-1", types.EdgeQueryReadsDE, types.TypeDataExtension, "Orders")
	byName.Metadata = map[string]string{"resolvedBy": "name"}
	unresolved := edge(types.TypeQuery, "q-1", types.EdgeQueryReadsDE, types.TypeDataExtension, "ENT.Subscribers_Master")
	unresolved.Metadata = map[string]string{"resolvedBy": "name", "isShared": "true"}
	b.AddEdges([]types.Edge{byName, unresolved})
	b.Resolve()

	edges := b.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "de-9", edges[0].TargetID)
	assert.False(t, edges[0].Dangling)
	assert.Equal(t, "ENT.Subscribers_Master", edges[1].TargetID)
	assert.True(t, edges[1].Dangling)
}

func TestOrphans(t *testing.T) {
	b := NewBuilder()
	b.AddObjects([]types.Object{
		obj(types.TypeAutomation, "a-1", "Nightly"),
		obj(types.TypeQuery, "q-used", "Dedupe"),
		obj(types.TypeQuery, "q-idle", "Old Export"),
		obj(types.TypeDataExtension, "de-1", "Orders"),
		// Folders have no orphan rule and must never be reported.
		{ID: "f-1", Type: types.TypeFolder, Name: "Query Activities"},
	})
	b.AddEdges([]types.Edge{
		edge(types.TypeAutomation, "a-1", types.EdgeAutomationContainsQuery, types.TypeQuery, "q-used"),
		edge(types.TypeQuery, "q-used", types.EdgeQueryWritesDE, types.TypeDataExtension, "de-1"),
	})
	b.Resolve()

	orphans := b.Orphans()
	require.Len(t, orphans, 1)
	assert.Equal(t, "q-idle", orphans[0].ID)
	assert.Equal(t, types.TypeQuery, orphans[0].ObjectType)
	assert.Equal(t, "not referenced by any other object", orphans[0].Reason)
}

func TestOrphansRequireRuledSourceType(t *testing.T) {
	// A query referenced only by another query is still an orphan: only an
	// automation reference keeps a query alive.
	b := NewBuilder()
	b.AddObjects([]types.Object{
		obj(types.TypeQuery, "q-1", "Staging"),
		obj(types.TypeQuery, "q-2", "Final"),
	})
	b.AddEdges([]types.Edge{
		edge(types.TypeQuery, "q-2", types.EdgeDependsOn, types.TypeQuery, "q-1"),
	})
	b.Resolve()

	orphans := b.Orphans()
	require.Len(t, orphans, 2)
	assert.Equal(t, "q-1", orphans[0].ID)
	assert.Equal(t, "q-2", orphans[1].ID)
}

func TestOrphansJourneyBuilderArtifact(t *testing.T) {
	b := NewBuilder()
	b.AddObjects([]types.Object{
		{
			ID: "ts-1", Type: types.TypeTriggeredSend,
			Name:       "Welcome Email 3f2504e0-4f89-11d3-9a0c-0305e82c3301",
			FolderPath: "Triggered Sends/JourneyBuilderSends",
			Status:     "Deleted",
		},
		{
			ID: "ts-2", Type: types.TypeTriggeredSend,
			Name:       "Order Confirmation",
			FolderPath: "Triggered Sends",
			Status:     "Active",
		},
	})
	b.Resolve()

	orphans := b.Orphans()
	require.Len(t, orphans, 1)
	assert.Equal(t, "ts-1", orphans[0].ID)
	assert.Equal(t, "generated journey builder artifact, journey deleted", orphans[0].Reason)
}

func TestStatsMostConnected(t *testing.T) {
	b := NewBuilder()
	b.AddObjects([]types.Object{
		obj(types.TypeAutomation, "a-1", "Nightly"),
		obj(types.TypeQuery, "q-1", "Dedupe"),
		obj(types.TypeQuery, "q-2", "Rollup"),
		obj(types.TypeDataExtension, "de-1", "Orders"),
	})
	b.AddEdges([]types.Edge{
		edge(types.TypeAutomation, "a-1", types.EdgeAutomationContainsQuery, types.TypeQuery, "q-1"),
		edge(types.TypeAutomation, "a-1", types.EdgeAutomationContainsQuery, types.TypeQuery, "q-2"),
		edge(types.TypeQuery, "q-1", types.EdgeQueryWritesDE, types.TypeDataExtension, "de-1"),
		edge(types.TypeQuery, "q-2", types.EdgeQueryReadsDE, types.TypeDataExtension, "de-1"),
	})
	b.Resolve()

	stats := b.Stats()
	require.NotEmpty(t, stats.MostConnected)
	top := stats.MostConnected[0]
	// a-1, q-1, q-2 and de-1 each touch two edges; ties break by ID.
	assert.Equal(t, 2, top.Edges)
	assert.Equal(t, "a-1", top.ID)
	assert.Len(t, stats.MostConnected, 4)
}

func TestImpactReport(t *testing.T) {
	b := NewBuilder()
	b.AddObjects([]types.Object{
		obj(types.TypeDataExtension, "de-1", "Orders"),
		obj(types.TypeQuery, "q-1", "Rollup"),
		obj(types.TypeAutomation, "a-1", "Nightly"),
		obj(types.TypeAutomation, "a-2", "Weekly"),
	})
	b.AddEdges([]types.Edge{
		edge(types.TypeQuery, "q-1", types.EdgeQueryReadsDE, types.TypeDataExtension, "de-1"),
		edge(types.TypeAutomation, "a-1", types.EdgeAutomationContainsQuery, types.TypeQuery, "q-1"),
		edge(types.TypeAutomation, "a-2", types.EdgeAutomationContainsQuery, types.TypeQuery, "q-1"),
	})
	b.Resolve()

	report, err := b.Impact(types.TypeDataExtension, "de-1")
	require.NoError(t, err)

	assert.Equal(t, "Orders", report.Object.Name)
	require.Len(t, report.DirectDependents, 1)
	assert.Equal(t, "q-1", report.DirectDependents[0].ID)
	assert.Equal(t, types.EdgeQueryReadsDE, report.DirectDependents[0].Relationship)
	assert.Equal(t, "de-1", report.DirectDependents[0].Via.ID)

	require.Len(t, report.TransitiveDependents[2], 2)
	assert.Equal(t, "a-1", report.TransitiveDependents[2][0].ID)
	assert.Equal(t, "q-1", report.TransitiveDependents[2][0].Via.ID)

	assert.Equal(t, 3, report.Summary.TotalAffected)
	assert.Equal(t, 2, report.Summary.ByType[types.TypeAutomation])
	assert.Equal(t, 1, report.Summary.ByDepth[1])
	assert.Equal(t, 2, report.Summary.ByDepth[2])
}

func TestImpactUnknownObject(t *testing.T) {
	b := NewBuilder()
	_, err := b.Impact(types.TypeQuery, "missing")
	assert.Error(t, err)
}

func TestImpactCycleTerminates(t *testing.T) {
	b := NewBuilder()
	b.AddObjects([]types.Object{
		obj(types.TypeQuery, "q-1", "A"),
		obj(types.TypeQuery, "q-2", "B"),
	})
	b.AddEdges([]types.Edge{
		edge(types.TypeQuery, "q-1", types.EdgeDependsOn, types.TypeQuery, "q-2"),
		edge(types.TypeQuery, "q-2", types.EdgeDependsOn, types.TypeQuery, "q-1"),
	})
	b.Resolve()

	report, err := b.Impact(types.TypeQuery, "q-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.TotalAffected)
	assert.Len(t, report.DirectDependents, 1)
}
