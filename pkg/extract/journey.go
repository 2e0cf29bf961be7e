package extract

import (
	"context"
	"strings"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

type journeyExtractor struct{}

// NewJourneys extracts Journey Builder journeys with their triggers,
// activities and goals.
func NewJourneys() Extractor { return &journeyExtractor{} }

func (e *journeyExtractor) Name() string                 { return "journeys" }
func (e *journeyExtractor) ObjectType() types.ObjectType { return types.TypeJourney }

func (e *journeyExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindJourneyFolders}
}

func (e *journeyExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	return fetchRESTPaged(ctx, env, "/interaction/v1/interactions", nil, opts)
}

func (e *journeyExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	if categoryID := str(item, "categoryId"); categoryID != "" {
		item["folderPath"] = env.Caches.Breadcrumb(ctx, categoryID, cache.KindJourneyFolders)
	}

	id := str(item, "id")
	if !opts.IncludeDetails || id == "" {
		return nil
	}

	resp, err := env.Rest.Get(ctx, "/interaction/v1/interactions/"+id, nil)
	if err != nil {
		return err
	}
	detail := resp.Data
	item["triggers"] = detail.Get("triggers").Value()
	item["activities"] = detail.Get("activities").Value()
	item["goals"] = detail.Get("goals").Value()
	item["entryMode"] = detail.Get("entryMode").Value()
	item["definitionId"] = detail.Get("definitionId").Value()
	item["workflowApiVersion"] = detail.Get("workflowApiVersion").Value()
	item["stats"] = detail.Get("stats").Value()
	return nil
}

func (e *journeyExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		triggers := list(item, "triggers")
		activities := list(item, "activities")
		goals := list(item, "goals")

		obj := types.Object{
			ID:           str(item, "id"),
			Type:         types.TypeJourney,
			Name:         str(item, "name"),
			CustomerKey:  str(item, "key"),
			Description:  str(item, "description"),
			Status:       str(item, "status"),
			FolderID:     str(item, "categoryId"),
			FolderPath:   str(item, "folderPath"),
			CreatedDate:  str(item, "createdDate"),
			ModifiedDate: str(item, "modifiedDate"),
		}
		obj.SetProp("version", item["version"])
		obj.SetProp("definitionId", str(item, "definitionId"))
		obj.SetProp("workflowApiVersion", item["workflowApiVersion"])
		obj.SetProp("entryMode", str(item, "entryMode"))
		obj.SetProp("channel", str(item, "channel"))
		obj.SetProp("lastPublishedDate", str(item, "lastPublishedDate"))
		obj.SetProp("triggers", summarizeTriggers(triggers))
		obj.SetProp("triggerCount", len(triggers))
		if opts.IncludeDetails {
			obj.SetProp("activities", summarizeActivities(activities))
		}
		obj.SetProp("activityCount", len(activities))
		obj.SetProp("goals", summarizeGoals(goals))
		obj.SetProp("goalCount", len(goals))
		obj.SetProp("stats", item["stats"])
		obj.SetProp("createdBy", item["createdBy"])
		obj.SetProp("modifiedBy", item["modifiedBy"])
		out = append(out, obj)
	}
	return out
}

func summarizeTriggers(triggers []Item) []Item {
	out := make([]Item, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, Item{
			"id":                 str(t, "id"),
			"key":                str(t, "key"),
			"name":               str(t, "name"),
			"type":               str(t, "type"),
			"eventDefinitionId":  str(t, "metaData", "eventDefinitionId"),
			"eventDefinitionKey": str(t, "metaData", "eventDefinitionKey"),
		})
	}
	return out
}

func summarizeActivities(activities []Item) []Item {
	out := make([]Item, 0, len(activities))
	for _, a := range activities {
		out = append(out, Item{
			"id":           str(a, "id"),
			"key":          str(a, "key"),
			"name":         str(a, "name"),
			"type":         str(a, "type"),
			"outcomeCount": len(list(a, "outcomes")),
		})
	}
	return out
}

func summarizeGoals(goals []Item) []Item {
	out := make([]Item, 0, len(goals))
	for _, g := range goals {
		out = append(out, Item{
			"name":        str(g, "name"),
			"description": str(g, "description"),
			"metric":      str(g, "metric"),
			"target":      g["target"],
		})
	}
	return out
}

func (e *journeyExtractor) Relationships(items []Item, res *Result) {
	for _, item := range items {
		journeyID := str(item, "id")
		if journeyID == "" {
			continue
		}
		journeyName := str(item, "name")

		for _, trigger := range list(item, "triggers") {
			e.triggerEdges(journeyID, journeyName, trigger, res)
		}
		for _, activity := range list(item, "activities") {
			e.activityEdges(journeyID, journeyName, activity, res)
		}
	}
}

func (e *journeyExtractor) triggerEdges(journeyID, journeyName string, trigger Item, res *Result) {
	if eventID := str(trigger, "metaData", "eventDefinitionId"); eventID != "" {
		res.AddEdge(types.Edge{
			SourceID:   journeyID,
			SourceType: types.TypeJourney,
			SourceName: journeyName,
			TargetID:   eventID,
			TargetType: types.TypeEventDefinition,
			TargetName: str(trigger, "name"),
			Kind:       types.EdgeJourneyUsesEvent,
			Metadata:   map[string]string{"eventDefinitionKey": str(trigger, "metaData", "eventDefinitionKey")},
		})
	}

	// Event-triggered journeys may bind an entry data extension directly.
	if deKey := str(trigger, "configurationArguments", "eventDataConfig", "deKey"); deKey != "" {
		res.AddEdge(types.Edge{
			SourceID:   journeyID,
			SourceType: types.TypeJourney,
			SourceName: journeyName,
			TargetID:   deKey,
			TargetType: types.TypeDataExtension,
			TargetName: deKey,
			Kind:       types.EdgeJourneyUsesDE,
			Metadata:   map[string]string{"usage": "entry_event"},
		})
	}
}

func (e *journeyExtractor) activityEdges(journeyID, journeyName string, activity Item, res *Result) {
	activityType := str(activity, "type")
	config := sub(activity, "configurationArguments")

	add := func(targetID string, targetType types.ObjectType, kind types.EdgeKind, meta map[string]string) {
		if targetID == "" {
			return
		}
		res.AddEdge(types.Edge{
			SourceID:   journeyID,
			SourceType: types.TypeJourney,
			SourceName: journeyName,
			TargetID:   targetID,
			TargetType: targetType,
			Kind:       kind,
			Metadata:   meta,
		})
	}

	isEmail := activityType == "EMAILV2" || strings.Contains(strings.ToLower(activityType), "email")
	if isEmail {
		ts := sub(config, "triggeredSend")
		add(str(ts, "emailId"), types.TypeEmail, types.EdgeJourneyUsesEmail, nil)

		assetID := firstNonEmpty(str(ts, "assetId"), str(ts, "assetKey"))
		add(assetID, types.TypeAsset, types.EdgeJourneyUsesAsset,
			map[string]string{"assetKey": str(ts, "assetKey")})

		add(str(ts, "senderProfileId"), types.TypeSenderProfile, types.EdgeJourneyUsesSenderProfile, nil)
		add(str(ts, "sendClassificationId"), types.TypeSendClassification, types.EdgeJourneyUsesSendClass, nil)
		add(str(ts, "publicationListId"), types.TypeList, types.EdgeJourneyUsesList,
			map[string]string{"usage": "publication_list"})

		for _, supp := range list(ts, "suppressionLists") {
			add(str(supp, "id"), types.TypeList, types.EdgeJourneyUsesList,
				map[string]string{"usage": "suppression_list"})
		}
		for _, excl := range list(ts, "domainExclusions") {
			add(str(excl, "id"), types.TypeDataExtension, types.EdgeJourneyUsesDE,
				map[string]string{"usage": "domain_exclusion"})
		}
	} else {
		// Non-email activities may reference an asset directly.
		assetID := firstNonEmpty(str(config, "assetId"), str(config, "assetKey"))
		add(assetID, types.TypeAsset, types.EdgeJourneyUsesAsset,
			map[string]string{"activityType": activityType})
	}

	// High throughput activities pin a data extension in metaData.
	ht := sub(sub(activity, "metaData"), "highThroughput")
	htKey := firstNonEmpty(str(ht, "dataExtensionKey"), str(ht, "deKey"))
	add(htKey, types.TypeDataExtension, types.EdgeJourneyUsesDE,
		map[string]string{"usage": "high_throughput"})

	switch activityType {
	case "ENGAGMENTSPLIT": // the API spells it this way
		add(str(config, "filterId"), types.TypeFilter, types.EdgeJourneyUsesFilter, nil)
	case "UPDATECONTACTDATA":
		add(str(config, "deKey"), types.TypeDataExtension, types.EdgeJourneyUsesDE,
			map[string]string{"usage": "update_contact"})
	case "DATAEXTENSIONUPDATE":
		add(str(config, "dataExtensionId"), types.TypeDataExtension, types.EdgeJourneyUsesDE,
			map[string]string{"usage": "data_extension_update"})
	case "FIREAUTOMATION":
		add(str(config, "automationId"), types.TypeAutomation, types.EdgeJourneyUsesAutomation, nil)
	}

	if !isEmail && strings.Contains(strings.ToLower(activityType), "filter") {
		add(str(config, "filterId"), types.TypeFilter, types.EdgeJourneyUsesFilter, nil)
	}
}
