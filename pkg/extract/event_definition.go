package extract

import (
	"context"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

type eventDefinitionExtractor struct{}

// NewEventDefinitions extracts journey entry event definitions.
func NewEventDefinitions() Extractor { return &eventDefinitionExtractor{} }

func (e *eventDefinitionExtractor) Name() string                 { return "event_definitions" }
func (e *eventDefinitionExtractor) ObjectType() types.ObjectType { return types.TypeEventDefinition }
func (e *eventDefinitionExtractor) RequiredCaches() []cache.Kind { return nil }

func (e *eventDefinitionExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	return fetchRESTPaged(ctx, env, "/interaction/v1/eventDefinitions", nil, opts)
}

func (e *eventDefinitionExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	return nil
}

// boundDataExtension resolves the event's data extension binding, which the
// API reports either directly or through the schema block.
func boundDataExtension(item Item) (id, name string) {
	if id := str(item, "dataExtensionId"); id != "" {
		return id, str(item, "dataExtensionName")
	}
	if schema := sub(item, "schema"); schema != nil {
		return str(schema, "id"), str(schema, "name")
	}
	return "", ""
}

func (e *eventDefinitionExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		deID, deName := boundDataExtension(item)

		obj := types.Object{
			ID:           str(item, "id"),
			Type:         types.TypeEventDefinition,
			Name:         str(item, "name"),
			CustomerKey:  str(item, "eventDefinitionKey"),
			Description:  str(item, "description"),
			Status:       str(item, "status"),
			CreatedDate:  str(item, "createdDate"),
			ModifiedDate: str(item, "modifiedDate"),
		}
		obj.SetProp("eventDefinitionKey", str(item, "eventDefinitionKey"))
		obj.SetProp("type", str(item, "type"))
		obj.SetProp("mode", str(item, "mode"))
		obj.SetProp("dataExtensionId", deID)
		obj.SetProp("dataExtensionName", deName)
		obj.SetProp("isVisibleInPicker", item["isVisibleInPicker"])
		obj.SetProp("schemaId", str(item, "schema", "id"))
		obj.SetProp("createdBy", item["createdBy"])
		obj.SetProp("modifiedBy", item["modifiedBy"])
		out = append(out, obj)
	}
	return out
}

func (e *eventDefinitionExtractor) Relationships(items []Item, res *Result) {
	for _, item := range items {
		eventID := str(item, "id")
		if eventID == "" {
			continue
		}
		deID, deName := boundDataExtension(item)
		if deID == "" {
			continue
		}
		res.AddEdge(types.Edge{
			SourceID:   eventID,
			SourceType: types.TypeEventDefinition,
			SourceName: str(item, "name"),
			TargetID:   deID,
			TargetType: types.TypeDataExtension,
			TargetName: deName,
			Kind:       types.EdgeEventUsesDE,
			Metadata:   map[string]string{"usage": "entry_source"},
		})
	}
}
