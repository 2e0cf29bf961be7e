package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketingops/sfmc-inventory/pkg/types"
)

func TestScheduleType(t *testing.T) {
	tests := []struct {
		name     string
		schedule Item
		want     string
	}{
		{name: "nil schedule", schedule: nil, want: ""},
		{name: "not scheduled", schedule: Item{"scheduleStatus": "none", "icalRecur": "FREQ=DAILY"}, want: ""},
		{name: "file drop trigger", schedule: Item{"typeId": float64(2)}, want: "Triggered (File Drop)"},
		{name: "daily", schedule: Item{"icalRecur": "FREQ=DAILY;INTERVAL=1"}, want: "Daily"},
		{name: "every 2 days", schedule: Item{"icalRecur": "FREQ=DAILY;INTERVAL=2"}, want: "Every 2 day(s)"},
		{name: "hourly", schedule: Item{"icalRecur": "FREQ=HOURLY"}, want: "Hourly"},
		{name: "weekly with days", schedule: Item{"icalRecur": "FREQ=WEEKLY;BYDAY=MO,WE,FR"}, want: "Weekly (Mon, Wed, Fri)"},
		{name: "monthly on day", schedule: Item{"icalRecur": "FREQ=MONTHLY;BYMONTHDAY=15"}, want: "Monthly (day 15)"},
		{name: "once", schedule: Item{"icalRecur": "FREQ=DAILY;COUNT=1;INTERVAL=1"}, want: "Once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scheduleType(tt.schedule))
		})
	}
}

func TestActivityTypeName(t *testing.T) {
	assert.Equal(t, "Query Activity", activityTypeName(300))
	assert.Equal(t, "Script Activity", activityTypeName(423))
	assert.Equal(t, "Unknown (999)", activityTypeName(999))
}

func TestAutomationStatusName(t *testing.T) {
	assert.Equal(t, "Ready", automationStatusName(1))
	assert.Equal(t, "Error", automationStatusName(-1))
	assert.Equal(t, "Unknown (42)", automationStatusName(42))
}

func TestAutomationRelationships(t *testing.T) {
	items := []Item{{
		"id":   "auto-1",
		"name": "Nightly Sync",
		"steps": []any{
			map[string]any{
				"activities": []any{
					map[string]any{
						"objectTypeId":     float64(300),
						"activityObjectId": "q-1",
						"name":             "Rollup Query",
						"targetDataExtensions": []any{
							map[string]any{"id": "de-7", "name": "Rollup_DE"},
						},
					},
					map[string]any{
						"objectTypeId":     float64(423),
						"activityObjectId": "s-1",
						"name":             "Cleanup Script",
					},
					map[string]any{
						// Wait activities have no external object.
						"objectTypeId":     float64(467),
						"activityObjectId": "w-1",
						"name":             "Wait 1h",
					},
					map[string]any{
						"objectTypeId": float64(300),
						// No object ID, skipped.
						"name": "orphan activity",
					},
				},
			},
		},
	}}

	res := &Result{Extractor: "automations"}
	NewAutomations().Relationships(items, res)

	kinds := make(map[types.EdgeKind]int)
	for _, e := range res.Edges {
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[types.EdgeAutomationContainsQuery])
	assert.Equal(t, 1, kinds[types.EdgeAutomationContainsScript])
	assert.Equal(t, 1, kinds[types.EdgeAutomationContainsWait])
	assert.Equal(t, 1, kinds[types.EdgeQueryWritesDE])
	require.Len(t, res.Edges, 4)

	// The targetDataExtensions write edge originates at the query, not the
	// automation.
	for _, e := range res.Edges {
		if e.Kind == types.EdgeQueryWritesDE {
			assert.Equal(t, "q-1", e.SourceID)
			assert.Equal(t, types.TypeQuery, e.SourceType)
			assert.Equal(t, "de-7", e.TargetID)
		}
	}
}

func TestAutomationTransform(t *testing.T) {
	items := []Item{{
		"id":         "auto-1",
		"name":       "Nightly Sync",
		"key":        "nightly-sync",
		"status":     float64(5),
		"statusName": "Scheduled",
		"categoryId": float64(10),
		"folderPath": "my automations",
		"schedule":   map[string]any{"icalRecur": "FREQ=DAILY;INTERVAL=1"},
		"steps": []any{
			map[string]any{"activities": []any{
				map[string]any{"objectTypeId": float64(300)},
				map[string]any{"objectTypeId": float64(423)},
			}},
			map[string]any{"activities": []any{
				map[string]any{"objectTypeId": float64(467)},
			}},
		},
	}}

	objs := NewAutomations().Transform(items, DefaultOptions())
	require.Len(t, objs, 1)

	obj := objs[0]
	assert.Equal(t, "auto-1", obj.ID)
	assert.Equal(t, "Scheduled", obj.Status)
	assert.Equal(t, "nightly-sync", obj.CustomerKey)
	assert.Equal(t, 2, obj.Prop("stepCount"))
	assert.Equal(t, 3, obj.Prop("activityCount"))
	assert.Equal(t, "Daily", obj.Prop("scheduleType"))
}
