package types

import "encoding/json"

// ObjectType identifies the kind of marketing cloud object an extractor
// produces. Values are the singular snake_case names used in edges, orphan
// reports and output file names.
type ObjectType string

const (
	TypeAutomation         ObjectType = "automation"
	TypeQuery              ObjectType = "query"
	TypeScript             ObjectType = "script"
	TypeJourney            ObjectType = "journey"
	TypeTriggeredSend      ObjectType = "triggered_send"
	TypeDataExtension      ObjectType = "data_extension"
	TypeEventDefinition    ObjectType = "event_definition"
	TypeImport             ObjectType = "import"
	TypeDataExtract        ObjectType = "data_extract"
	TypeFileTransfer       ObjectType = "file_transfer"
	TypeFilter             ObjectType = "filter"
	TypeEmail              ObjectType = "email"
	TypeList               ObjectType = "list"
	TypeAsset              ObjectType = "asset"
	TypeFolder             ObjectType = "folder"
	TypeSenderProfile      ObjectType = "sender_profile"
	TypeDeliveryProfile    ObjectType = "delivery_profile"
	TypeSendClassification ObjectType = "send_classification"
)

// Object is the normalized representation of any extracted SFMC object.
// Common identity and placement fields are typed; everything type-specific
// lives in Properties and is flattened into the same JSON document on output.
type Object struct {
	ID           string     `json:"id"`
	Type         ObjectType `json:"-"`
	Name         string     `json:"name"`
	CustomerKey  string     `json:"customerKey,omitempty"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status,omitempty"`
	FolderID     string     `json:"categoryId,omitempty"`
	FolderPath   string     `json:"folderPath,omitempty"`
	CreatedDate  string     `json:"createdDate,omitempty"`
	ModifiedDate string     `json:"modifiedDate,omitempty"`

	Properties map[string]any `json:"-"`
}

// SetProp stores a type-specific property, allocating the map on first use.
func (o *Object) SetProp(key string, value any) {
	if o.Properties == nil {
		o.Properties = make(map[string]any)
	}
	o.Properties[key] = value
}

// Prop returns a type-specific property, or nil when absent.
func (o *Object) Prop(key string) any {
	if o.Properties == nil {
		return nil
	}
	return o.Properties[key]
}

// MarshalJSON flattens Properties into the top-level document so NDJSON
// output matches the shape the source APIs use. Typed fields win on
// key collisions.
func (o Object) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(o.Properties)+10)
	for k, v := range o.Properties {
		doc[k] = v
	}
	doc["id"] = o.ID
	doc["name"] = o.Name
	if o.CustomerKey != "" {
		doc["customerKey"] = o.CustomerKey
	}
	if o.Description != "" {
		doc["description"] = o.Description
	}
	if o.Status != "" {
		doc["status"] = o.Status
	}
	if o.FolderID != "" {
		doc["categoryId"] = o.FolderID
	}
	if o.FolderPath != "" {
		doc["folderPath"] = o.FolderPath
	}
	if o.CreatedDate != "" {
		doc["createdDate"] = o.CreatedDate
	}
	if o.ModifiedDate != "" {
		doc["modifiedDate"] = o.ModifiedDate
	}
	return json.Marshal(doc)
}

// Folder is a content category from either the SOAP DataFolder object or the
// REST category endpoints. ParentID "0" or "" means the folder is a root.
type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ParentID    string `json:"parentId,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"isActive"`
	IsEditable  bool   `json:"isEditable"`
}

// IsRoot reports whether the folder has no parent.
func (f Folder) IsRoot() bool {
	return f.ParentID == "" || f.ParentID == "0"
}
