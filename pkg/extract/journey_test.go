package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketingops/sfmc-inventory/pkg/types"
)

func TestJourneyTriggerEdges(t *testing.T) {
	items := []Item{{
		"id":   "j-1",
		"name": "Welcome Series",
		"triggers": []any{
			map[string]any{
				"name": "API Entry",
				"metaData": map[string]any{
					"eventDefinitionId":  "evt-1",
					"eventDefinitionKey": "APIEvent-abc",
				},
				"configurationArguments": map[string]any{
					"eventDataConfig": map[string]any{"deKey": "Welcome_Entry"},
				},
			},
		},
	}}

	res := &Result{Extractor: "journeys"}
	NewJourneys().Relationships(items, res)

	require.Len(t, res.Edges, 2)

	event := res.Edges[0]
	assert.Equal(t, types.EdgeJourneyUsesEvent, event.Kind)
	assert.Equal(t, "evt-1", event.TargetID)
	assert.Equal(t, "APIEvent-abc", event.Metadata["eventDefinitionKey"])

	de := res.Edges[1]
	assert.Equal(t, types.EdgeJourneyUsesDE, de.Kind)
	assert.Equal(t, "Welcome_Entry", de.TargetID)
	assert.Equal(t, "entry_event", de.Metadata["usage"])
}

func TestJourneyActivityEdges(t *testing.T) {
	items := []Item{{
		"id":   "j-2",
		"name": "Nurture",
		"activities": []any{
			map[string]any{
				"type": "EMAILV2",
				"configurationArguments": map[string]any{
					"triggeredSend": map[string]any{
						"emailId":              float64(101),
						"senderProfileId":      "sp-1",
						"sendClassificationId": "sc-1",
						"publicationListId":    float64(55),
					},
				},
			},
			map[string]any{
				"type": "UPDATECONTACTDATA",
				"configurationArguments": map[string]any{
					"deKey": "Contact_Updates",
				},
			},
			map[string]any{
				"type": "FIREAUTOMATION",
				"configurationArguments": map[string]any{
					"automationId": "auto-9",
				},
			},
			map[string]any{
				"type": "ENGAGMENTSPLIT",
				"configurationArguments": map[string]any{
					"filterId": "flt-3",
				},
			},
		},
	}}

	res := &Result{Extractor: "journeys"}
	NewJourneys().Relationships(items, res)

	kinds := make(map[types.EdgeKind][]string)
	for _, e := range res.Edges {
		kinds[e.Kind] = append(kinds[e.Kind], e.TargetID)
	}

	assert.Equal(t, []string{"101"}, kinds[types.EdgeJourneyUsesEmail])
	assert.Equal(t, []string{"sp-1"}, kinds[types.EdgeJourneyUsesSenderProfile])
	assert.Equal(t, []string{"sc-1"}, kinds[types.EdgeJourneyUsesSendClass])
	assert.Equal(t, []string{"55"}, kinds[types.EdgeJourneyUsesList])
	assert.Equal(t, []string{"Contact_Updates"}, kinds[types.EdgeJourneyUsesDE])
	assert.Equal(t, []string{"auto-9"}, kinds[types.EdgeJourneyUsesAutomation])
	assert.Equal(t, []string{"flt-3"}, kinds[types.EdgeJourneyUsesFilter])
}

func TestTriggeredSendRelationships(t *testing.T) {
	items := []Item{{
		"ObjectID":           "ts-1",
		"Name":               "Order Confirmation",
		"Email":              map[string]any{"ID": "1001"},
		"List":               map[string]any{"ID": "2002"},
		"SenderProfile":      map[string]any{"CustomerKey": "default-sender"},
		"DeliveryProfile":    map[string]any{"CustomerKey": "default-delivery"},
		"SendClassification": map[string]any{"CustomerKey": "transactional"},
	}}

	res := &Result{Extractor: "triggered_sends"}
	NewTriggeredSends().Relationships(items, res)

	require.Len(t, res.Edges, 5)
	kinds := make(map[types.EdgeKind]string)
	for _, e := range res.Edges {
		kinds[e.Kind] = e.TargetID
	}
	assert.Equal(t, "1001", kinds[types.EdgeTriggeredSendUsesEmail])
	assert.Equal(t, "2002", kinds[types.EdgeTriggeredSendUsesList])
	assert.Equal(t, "default-sender", kinds[types.EdgeTriggeredSendUsesSenderProfile])
	assert.Equal(t, "default-delivery", kinds[types.EdgeTriggeredSendUsesDeliveryProfile])
	assert.Equal(t, "transactional", kinds[types.EdgeTriggeredSendUsesSendClass])
}
