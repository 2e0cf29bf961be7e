package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// activityTypeNames maps Automation Studio objectTypeId values to display
// names. The IDs follow the sfmc-devtools activityTypeMapping.
var activityTypeNames = map[int]string{
	42:   "Email Send",
	43:   "Import File",
	45:   "Refresh Group",
	53:   "File Transfer",
	73:   "Data Extract",
	84:   "Report Definition",
	300:  "Query Activity",
	303:  "Filter Activity",
	423:  "Script Activity",
	425:  "Data Factory Utility",
	427:  "Build Audience",
	467:  "Wait Activity",
	667:  "Journey Entry Injection",
	724:  "Refresh Mobile Filtered List",
	725:  "SMS",
	726:  "Import Mobile Contact",
	733:  "Journey Entry (Legacy)",
	736:  "Push Notification",
	749:  "Fire Event",
	771:  "Salesforce Send",
	783:  "Send SMS (v2)",
	952:  "Journey Entry",
	1000: "Verification Activity",
	1010: "Interaction Studio Data",
	1101: "Interactions",
}

var automationStatusNames = map[int]string{
	-1: "Error",
	0:  "Building",
	1:  "Ready",
	2:  "Running",
	3:  "Paused",
	4:  "Stopped",
	5:  "Scheduled",
	6:  "Awaiting Trigger",
	7:  "InactiveTrigger",
	8:  "Skipped",
}

// activityEdge maps an activity objectTypeId to the contains edge it produces
// and the type of the referenced object.
type activityEdge struct {
	kind   types.EdgeKind
	target types.ObjectType
}

var activityEdges = map[int]activityEdge{
	300: {types.EdgeAutomationContainsQuery, types.TypeQuery},
	423: {types.EdgeAutomationContainsScript, types.TypeScript},
	43:  {types.EdgeAutomationContainsImport, types.TypeImport},
	73:  {types.EdgeAutomationContainsExtract, types.TypeDataExtract},
	53:  {types.EdgeAutomationContainsFileTransfer, types.TypeFileTransfer},
	303: {types.EdgeAutomationContainsFilter, types.TypeFilter},
	42:  {types.EdgeAutomationContainsEmail, types.TypeEmail},
	749: {types.EdgeAutomationContainsEvent, types.TypeEventDefinition},
	667: {types.EdgeAutomationContainsEvent, types.TypeEventDefinition},
	733: {types.EdgeAutomationContainsEvent, types.TypeEventDefinition},
	952: {types.EdgeAutomationContainsEvent, types.TypeEventDefinition},
	725: {types.EdgeAutomationContainsSMS, "sms_definition"},
	783: {types.EdgeAutomationContainsSMS, "sms_definition"},
	771: {types.EdgeAutomationContainsSalesforce, "salesforce_campaign"},
	736: {types.EdgeAutomationContainsPush, "push_definition"},
	724: {types.EdgeAutomationContainsRefreshGroup, "group"},
	467: {types.EdgeAutomationContainsWait, "wait"},
	1000: {types.EdgeAutomationContainsVerification, "verification"},
}

// targetDEEdges maps activity types whose targetDataExtensions array means a
// write to the listed data extensions.
var targetDEEdges = map[int]struct {
	source types.ObjectType
	kind   types.EdgeKind
}{
	43:  {types.TypeImport, types.EdgeImportWritesDE},
	300: {types.TypeQuery, types.EdgeQueryWritesDE},
	303: {types.TypeFilter, types.EdgeFilterWritesDE},
}

type automationExtractor struct{}

// NewAutomations extracts automations with their steps, activities and
// schedules.
func NewAutomations() Extractor { return &automationExtractor{} }

func (e *automationExtractor) Name() string                 { return "automations" }
func (e *automationExtractor) ObjectType() types.ObjectType { return types.TypeAutomation }

func (e *automationExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindAutomationFolders, cache.KindQueries, cache.KindScripts}
}

func (e *automationExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	return fetchRESTPaged(ctx, env, "/automation/v1/automations", nil, opts)
}

func (e *automationExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	if categoryID := str(item, "categoryId"); categoryID != "" {
		item["folderPath"] = env.Caches.Breadcrumb(ctx, categoryID, cache.KindAutomationFolders)
	}
	if _, ok := item["status"]; ok {
		item["statusName"] = automationStatusName(int(num(item, "status")))
	}

	id := str(item, "id")
	if !opts.IncludeDetails || id == "" {
		return nil
	}

	resp, err := env.Rest.Get(ctx, "/automation/v1/automations/"+id, nil)
	if err != nil {
		return err
	}
	detail := resp.Data
	item["steps"] = detail.Get("steps").Value()
	item["schedule"] = detail.Get("schedule").Value()
	item["notifications"] = detail.Get("notifications").Value()
	item["lastRunTime"] = detail.Get("lastRunTime").Value()
	item["lastRunStatus"] = detail.Get("lastRunStatus").Value()

	for _, step := range list(item, "steps") {
		for _, activity := range list(step, "activities") {
			e.enrichActivity(ctx, env, activity)
		}
	}
	return nil
}

// enrichActivity resolves the activity type name and, for queries and
// scripts, the referenced definition from the warmed caches.
func (e *automationExtractor) enrichActivity(ctx context.Context, env *Env, activity Item) {
	typeID := int(num(activity, "objectTypeId"))
	activity["activityTypeName"] = activityTypeName(typeID)

	objectID := str(activity, "activityObjectId")
	if objectID == "" {
		return
	}

	switch typeID {
	case 300:
		if def, ok, _ := env.Caches.Definition(ctx, cache.KindQueries, objectID); ok {
			activity["queryName"] = def["name"]
			activity["targetDataExtensionId"] = def["targetId"]
			activity["targetDataExtensionName"] = def["targetName"]
		}
	case 423:
		if def, ok, _ := env.Caches.Definition(ctx, cache.KindScripts, objectID); ok {
			activity["scriptName"] = def["name"]
		}
	}
}

func (e *automationExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		steps := list(item, "steps")
		activityCount := 0
		for _, step := range steps {
			activityCount += len(list(step, "activities"))
		}

		obj := types.Object{
			ID:           str(item, "id"),
			Type:         types.TypeAutomation,
			Name:         str(item, "name"),
			CustomerKey:  str(item, "key"),
			Description:  str(item, "description"),
			Status:       str(item, "statusName"),
			FolderID:     str(item, "categoryId"),
			FolderPath:   str(item, "folderPath"),
			CreatedDate:  str(item, "createdDate"),
			ModifiedDate: str(item, "modifiedDate"),
		}
		obj.SetProp("statusId", item["status"])
		obj.SetProp("isActive", item["isActive"])
		obj.SetProp("type", item["type"])
		obj.SetProp("scheduleType", scheduleType(sub(item, "schedule")))
		obj.SetProp("schedule", item["schedule"])
		obj.SetProp("notifications", item["notifications"])
		obj.SetProp("lastRunTime", item["lastRunTime"])
		obj.SetProp("lastRunStatus", item["lastRunStatus"])
		obj.SetProp("steps", item["steps"])
		obj.SetProp("stepCount", len(steps))
		obj.SetProp("activityCount", activityCount)
		obj.SetProp("createdBy", item["createdBy"])
		obj.SetProp("modifiedBy", item["modifiedBy"])
		out = append(out, obj)
	}
	return out
}

func (e *automationExtractor) Relationships(items []Item, res *Result) {
	for _, item := range items {
		automationID := str(item, "id")
		if automationID == "" {
			continue
		}
		automationName := str(item, "name")

		for _, step := range list(item, "steps") {
			for _, activity := range list(step, "activities") {
				typeID := int(num(activity, "objectTypeId"))
				objectID := str(activity, "activityObjectId")
				if objectID == "" {
					continue
				}

				if edge, ok := activityEdges[typeID]; ok {
					res.AddEdge(types.Edge{
						SourceID:   automationID,
						SourceType: types.TypeAutomation,
						SourceName: automationName,
						TargetID:   objectID,
						TargetType: edge.target,
						TargetName: str(activity, "name"),
						Kind:       edge.kind,
					})
				}

				// The targetDataExtensions array appears for imports, queries
				// and filters and records what the activity writes.
				writes, ok := targetDEEdges[typeID]
				if !ok {
					continue
				}
				for _, targetDE := range list(activity, "targetDataExtensions") {
					deID := str(targetDE, "id")
					if deID == "" {
						continue
					}
					res.AddEdge(types.Edge{
						SourceID:   objectID,
						SourceType: writes.source,
						SourceName: str(activity, "name"),
						TargetID:   deID,
						TargetType: types.TypeDataExtension,
						TargetName: str(targetDE, "name"),
						Kind:       writes.kind,
					})
				}
			}
		}
	}
}

func activityTypeName(typeID int) string {
	if name, ok := activityTypeNames[typeID]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", typeID)
}

func automationStatusName(statusID int) string {
	if name, ok := automationStatusNames[statusID]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", statusID)
}

var icalDayNames = map[string]string{
	"MO": "Mon", "TU": "Tue", "WE": "Wed", "TH": "Thu",
	"FR": "Fri", "SA": "Sat", "SU": "Sun",
}

// scheduleType renders the schedule's icalRecur rule as a short description,
// e.g. "Daily" or "Weekly (Mon, Wed)".
func scheduleType(schedule Item) string {
	if schedule == nil {
		return ""
	}
	if str(schedule, "scheduleStatus") == "none" {
		return ""
	}

	ical := str(schedule, "icalRecur")
	if ical == "" {
		if int(num(schedule, "typeId")) == 2 {
			return "Triggered (File Drop)"
		}
		return ""
	}

	parts := make(map[string]string)
	for _, part := range strings.Split(ical, ";") {
		if key, value, ok := strings.Cut(part, "="); ok {
			parts[key] = value
		}
	}

	freq := strings.ToLower(parts["FREQ"])
	interval := parts["INTERVAL"]
	if interval == "" {
		interval = "1"
	}

	var base string
	switch freq {
	case "minutely":
		base = plural(interval, "Every minute", "Every %s minute(s)")
	case "hourly":
		base = plural(interval, "Hourly", "Every %s hour(s)")
	case "daily":
		base = plural(interval, "Daily", "Every %s day(s)")
	case "weekly":
		base = plural(interval, "Weekly", "Every %s week(s)")
		if byday := parts["BYDAY"]; byday != "" {
			days := strings.Split(byday, ",")
			for i, d := range days {
				if name, ok := icalDayNames[d]; ok {
					days[i] = name
				}
			}
			base += " (" + strings.Join(days, ", ") + ")"
		}
	case "monthly":
		base = plural(interval, "Monthly", "Every %s month(s)")
		if bymonthday := parts["BYMONTHDAY"]; bymonthday != "" {
			base += " (day " + bymonthday + ")"
		}
	case "yearly":
		base = plural(interval, "Yearly", "Every %s year(s)")
	case "":
		base = "Unknown"
	default:
		base = strings.ToUpper(freq[:1]) + freq[1:]
	}

	if parts["COUNT"] == "1" {
		base = "Once"
	}
	return base
}

func plural(interval, singular, format string) string {
	if interval == "1" {
		return singular
	}
	return fmt.Sprintf(format, interval)
}
