package types

import "strings"

// EdgeKind classifies a relationship between two inventory objects.
type EdgeKind string

const (
	// Automation activity references
	EdgeAutomationContainsQuery        EdgeKind = "automation_contains_query"
	EdgeAutomationContainsScript       EdgeKind = "automation_contains_script"
	EdgeAutomationContainsImport       EdgeKind = "automation_contains_import"
	EdgeAutomationContainsExtract      EdgeKind = "automation_contains_extract"
	EdgeAutomationContainsFileTransfer EdgeKind = "automation_contains_file_transfer"
	EdgeAutomationContainsFilter       EdgeKind = "automation_contains_filter"
	EdgeAutomationContainsEmail        EdgeKind = "automation_contains_email"
	EdgeAutomationContainsEvent        EdgeKind = "automation_contains_event"
	EdgeAutomationContainsSMS          EdgeKind = "automation_contains_sms"
	EdgeAutomationContainsPush         EdgeKind = "automation_contains_push"
	EdgeAutomationContainsSalesforce   EdgeKind = "automation_contains_salesforce_send"
	EdgeAutomationContainsRefreshGroup EdgeKind = "automation_contains_refresh_group"
	EdgeAutomationContainsWait         EdgeKind = "automation_contains_wait"
	EdgeAutomationContainsVerification EdgeKind = "automation_contains_verification"

	// Query SQL dependencies
	EdgeQueryReadsDE  EdgeKind = "query_reads_de"
	EdgeQueryWritesDE EdgeKind = "query_writes_de"

	// Journey activity references
	EdgeJourneyUsesEvent         EdgeKind = "journey_uses_event"
	EdgeJourneyUsesDE            EdgeKind = "journey_uses_de"
	EdgeJourneyUsesEmail         EdgeKind = "journey_uses_email"
	EdgeJourneyUsesAsset         EdgeKind = "journey_uses_asset"
	EdgeJourneyUsesList          EdgeKind = "journey_uses_list"
	EdgeJourneyUsesAutomation    EdgeKind = "journey_uses_automation"
	EdgeJourneyUsesFilter        EdgeKind = "journey_uses_filter"
	EdgeJourneyUsesSenderProfile EdgeKind = "journey_uses_sender_profile"
	EdgeJourneyUsesSendClass     EdgeKind = "journey_uses_send_classification"

	// Activity target references
	EdgeImportWritesDE        EdgeKind = "import_writes_de"
	EdgeExtractReadsDE        EdgeKind = "extract_reads_de"
	EdgeFilterReadsDE         EdgeKind = "filter_reads_de"
	EdgeFilterWritesDE        EdgeKind = "filter_writes_de"
	EdgeEmailUsesDE           EdgeKind = "email_uses_de"
	EdgeEmailUsesContentBlock EdgeKind = "email_uses_content_block"
	EdgeCloudPageReadsDE      EdgeKind = "cloudpage_reads_de"
	EdgeCloudPageWritesDE     EdgeKind = "cloudpage_writes_de"
	EdgeEventUsesDE           EdgeKind = "event_definition_uses_de"
	EdgeScriptUsesDE          EdgeKind = "script_uses_de"
	EdgeFolderContains        EdgeKind = "folder_contains_folder"

	// Triggered send references
	EdgeTriggeredSendUsesEmail           EdgeKind = "triggered_send_uses_email"
	EdgeTriggeredSendUsesList            EdgeKind = "triggered_send_uses_list"
	EdgeTriggeredSendUsesSenderProfile   EdgeKind = "triggered_send_uses_sender_profile"
	EdgeTriggeredSendUsesDeliveryProfile EdgeKind = "triggered_send_uses_delivery_profile"
	EdgeTriggeredSendUsesSendClass       EdgeKind = "triggered_send_uses_send_classification"

	// Send classification references
	EdgeSendClassUsesSenderProfile   EdgeKind = "send_classification_uses_sender_profile"
	EdgeSendClassUsesDeliveryProfile EdgeKind = "send_classification_uses_delivery_profile"

	// Generic fallbacks
	EdgeReferences EdgeKind = "references"
	EdgeContains   EdgeKind = "contains"
	EdgeDependsOn  EdgeKind = "depends_on"
)

// Edge is a directed reference from one object to another. SourceName and
// TargetName are best-effort display values; identity is the
// (SourceType, SourceID, Kind, TargetType, TargetID) tuple.
type Edge struct {
	SourceID   string     `json:"sourceId"`
	SourceType ObjectType `json:"sourceType"`
	SourceName string     `json:"sourceName,omitempty"`
	TargetID   string     `json:"targetId"`
	TargetType ObjectType `json:"targetType"`
	TargetName string     `json:"targetName,omitempty"`
	Kind       EdgeKind   `json:"relationshipType"`

	// Dangling is set by the graph builder when the target was not seen by
	// any extractor in the same run.
	Dangling bool `json:"dangling,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Key returns the identity tuple used for deduplication.
func (e Edge) Key() string {
	return strings.Join([]string{
		string(e.SourceType), e.SourceID, string(e.Kind), string(e.TargetType), e.TargetID,
	}, "|")
}

// OrphanedObject records an object that no other object references and that
// the orphan rules consider a candidate for cleanup.
type OrphanedObject struct {
	ID           string     `json:"id"`
	ObjectType   ObjectType `json:"objectType"`
	Name         string     `json:"name"`
	FolderPath   string     `json:"folderPath,omitempty"`
	Reason       string     `json:"reason"`
	LastModified string     `json:"lastModified,omitempty"`
}
