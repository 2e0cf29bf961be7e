package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketingops/sfmc-inventory/pkg/types"
)

func TestAmpscriptDERefs(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		refs       []ampRef
		unresolved int
	}{
		{
			name:    "lookup in block",
			content: `<html>%%[ SET @row = Lookup("Subscribers", "Email", "Id", @id) ]%%</html>`,
			refs:    []ampRef{{Name: "Subscribers", Operation: "read"}},
		},
		{
			name:    "writes",
			content: `%%[ InsertDE("Log_DE", "Field", @v) UpsertData("State_DE", 1, "Key", @k) ]%%`,
			refs: []ampRef{
				{Name: "Log_DE", Operation: "insert"},
				{Name: "State_DE", Operation: "upsert"},
			},
		},
		{
			name:    "inline expression",
			content: `<p>%%=LookupRows("Orders", "Status", "open")=%%</p>`,
			refs:    []ampRef{{Name: "Orders", Operation: "read"}},
		},
		{
			name:    "outside ampscript blocks ignored",
			content: `<script>Lookup("NotAMPscript", 1)</script>`,
		},
		{
			name:       "dynamic name counted as unresolved",
			content:    `%%[ SET @rows = LookupRows(@deName, "Id", @id) ]%%`,
			unresolved: 1,
		},
		{
			name:       "mixed literal and dynamic",
			content:    `%%[ SET @a = Lookup("Known_DE", "F", "K", 1) DeleteData(@target, "K", 1) ]%%`,
			refs:       []ampRef{{Name: "Known_DE", Operation: "read"}},
			unresolved: 1,
		},
		{
			name: "empty content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, unresolved := ampscriptDERefs(tt.content)
			assert.Equal(t, tt.refs, refs)
			assert.Equal(t, tt.unresolved, unresolved)
		})
	}
}

func TestAssetRelationships(t *testing.T) {
	ex := &assetExtractor{}
	res := &Result{Extractor: ex.Name(), Type: types.TypeAsset}

	items := []Item{
		{
			"id":   "cp-1",
			"name": "Preference Center",
			"ampRefs": []ampRef{
				{Name: "Preferences", Operation: "upsert"},
				{Name: "Preferences", Operation: "update"},
				{Name: "Subscribers", Operation: "read"},
			},
			"slots": map[string]any{
				"banner": map[string]any{
					"blocks": []any{
						map[string]any{"id": "blk-1", "name": "Header"},
					},
				},
			},
		},
		{"name": "no id, skipped"},
	}
	ex.Relationships(items, res)

	require.Len(t, res.Edges, 3)

	kinds := map[types.EdgeKind]int{}
	for _, e := range res.Edges {
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[types.EdgeEmailUsesContentBlock])
	// Both write operations hit the same DE, so they collapse into one edge.
	assert.Equal(t, 1, kinds[types.EdgeCloudPageWritesDE])
	assert.Equal(t, 1, kinds[types.EdgeCloudPageReadsDE])

	for _, e := range res.Edges {
		if e.Kind == types.EdgeCloudPageReadsDE {
			assert.Equal(t, "Subscribers", e.TargetID)
			assert.Equal(t, "name", e.Metadata["resolvedBy"])
		}
	}
}
