package extract

import (
	"context"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// soapObject is the shared shape of simple SOAP retrieve extractors. The
// transform hook maps the SOAP property names onto the normalized object.
type soapObject struct {
	name       string
	objType    types.ObjectType
	soapType   string
	properties []string
	// contentProperties are fetched additionally when details are requested.
	contentProperties []string
	folderKind        cache.Kind
	folderIDKey       string
	transform         func(item Item, obj *types.Object)
	edges             func(item Item, res *Result)
}

func (s *soapObject) Name() string                 { return s.name }
func (s *soapObject) ObjectType() types.ObjectType { return s.objType }

func (s *soapObject) RequiredCaches() []cache.Kind {
	if s.folderKind == "" {
		return nil
	}
	return []cache.Kind{s.folderKind}
}

func (s *soapObject) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	properties := s.properties
	if opts.IncludeDetails && len(s.contentProperties) > 0 {
		properties = append(append([]string{}, properties...), s.contentProperties...)
	}
	return fetchSOAPAll(ctx, env, s.soapType, properties, opts)
}

func (s *soapObject) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	if s.folderKind == "" {
		return nil
	}
	if categoryID := str(item, s.folderIDKey); categoryID != "" {
		item["folderPath"] = env.Caches.Breadcrumb(ctx, categoryID, s.folderKind)
	}
	return nil
}

func (s *soapObject) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		obj := types.Object{
			ID:           firstNonEmpty(str(item, "ID"), str(item, "ObjectID")),
			Type:         s.objType,
			Name:         str(item, "Name"),
			CustomerKey:  str(item, "CustomerKey"),
			Description:  str(item, "Description"),
			FolderPath:   str(item, "folderPath"),
			CreatedDate:  str(item, "CreatedDate"),
			ModifiedDate: str(item, "ModifiedDate"),
		}
		if s.folderIDKey != "" {
			obj.FolderID = str(item, s.folderIDKey)
		}
		if s.transform != nil {
			s.transform(item, &obj)
		}
		out = append(out, obj)
	}
	return out
}

func (s *soapObject) Relationships(items []Item, res *Result) {
	if s.edges == nil {
		return
	}
	for _, item := range items {
		s.edges(item, res)
	}
}

// NewClassicEmails extracts classic (non Content Builder) email definitions.
// HTML and text bodies are only retrieved when details are requested.
func NewClassicEmails() Extractor {
	return &soapObject{
		name:     "classic_emails",
		objType:  types.TypeEmail,
		soapType: "Email",
		properties: []string{
			"ID", "ObjectID", "CustomerKey", "Name", "Subject", "Status",
			"CategoryID", "IsHTMLPaste", "CharacterSet",
			"HasDynamicSubjectLine", "PreHeader", "CreatedDate", "ModifiedDate",
		},
		contentProperties: []string{"HTMLBody", "TextBody"},
		folderKind:        cache.KindEmailFolders,
		folderIDKey:       "CategoryID",
		transform: func(item Item, obj *types.Object) {
			obj.Status = str(item, "Status")
			obj.SetProp("objectId", str(item, "ObjectID"))
			obj.SetProp("subject", str(item, "Subject"))
			obj.SetProp("isHTMLPaste", boolean(item, "IsHTMLPaste"))
			obj.SetProp("characterSet", str(item, "CharacterSet"))
			obj.SetProp("hasDynamicSubjectLine", boolean(item, "HasDynamicSubjectLine"))
			obj.SetProp("preHeader", str(item, "PreHeader"))
			obj.SetProp("hasPreheader", str(item, "PreHeader") != "")
			if body := str(item, "HTMLBody"); body != "" {
				obj.SetProp("htmlBody", body)
			}
			if body := str(item, "TextBody"); body != "" {
				obj.SetProp("textBody", body)
			}
		},
	}
}

// NewLists extracts subscriber lists.
func NewLists() Extractor {
	return &soapObject{
		name:     "lists",
		objType:  types.TypeList,
		soapType: "List",
		properties: []string{
			"ID", "ObjectID", "CustomerKey", "ListName", "Description",
			"Category", "Type", "ListClassification", "AutomatedEmail.ID",
			"CreatedDate", "ModifiedDate",
		},
		folderKind:  cache.KindListFolders,
		folderIDKey: "Category",
		transform: func(item Item, obj *types.Object) {
			obj.Name = str(item, "ListName")
			obj.SetProp("objectId", str(item, "ObjectID"))
			obj.SetProp("type", str(item, "Type"))
			obj.SetProp("listClassification", str(item, "ListClassification"))
			obj.SetProp("automatedEmailId", str(item, "AutomatedEmail", "ID"))
		},
	}
}

// NewSenderProfiles extracts sender profiles.
func NewSenderProfiles() Extractor {
	return &soapObject{
		name:     "sender_profiles",
		objType:  types.TypeSenderProfile,
		soapType: "SenderProfile",
		properties: []string{
			"ObjectID", "CustomerKey", "Name", "Description",
			"FromName", "FromAddress", "UseDefaultRMMRules",
			"AutoForwardToEmailAddress", "AutoForwardToName", "DirectForward",
			"AutoReply", "SenderHeaderEmailAddress", "SenderHeaderName",
			"DataRetentionPeriodLength", "DataRetentionPeriodUnitOfMeasure",
			"CreatedDate", "ModifiedDate",
		},
		transform: func(item Item, obj *types.Object) {
			obj.SetProp("fromName", str(item, "FromName"))
			obj.SetProp("fromAddress", str(item, "FromAddress"))
			obj.SetProp("useDefaultRMMRules", boolean(item, "UseDefaultRMMRules"))
			obj.SetProp("autoForwardToEmailAddress", str(item, "AutoForwardToEmailAddress"))
			obj.SetProp("autoForwardToName", str(item, "AutoForwardToName"))
			obj.SetProp("directForward", boolean(item, "DirectForward"))
			obj.SetProp("autoReply", boolean(item, "AutoReply"))
			obj.SetProp("senderHeaderEmailAddress", str(item, "SenderHeaderEmailAddress"))
			obj.SetProp("senderHeaderName", str(item, "SenderHeaderName"))
		},
	}
}

// NewSendClassifications extracts send classifications and their profile
// references.
func NewSendClassifications() Extractor {
	return &soapObject{
		name:     "send_classifications",
		objType:  types.TypeSendClassification,
		soapType: "SendClassification",
		properties: []string{
			"ObjectID", "CustomerKey", "Name", "Description",
			"SenderProfile.ObjectID", "SenderProfile.CustomerKey",
			"DeliveryProfile.ObjectID", "DeliveryProfile.CustomerKey",
			"CreatedDate", "ModifiedDate",
		},
		transform: func(item Item, obj *types.Object) {
			obj.SetProp("senderProfileId", str(item, "SenderProfile", "ObjectID"))
			obj.SetProp("senderProfileKey", str(item, "SenderProfile", "CustomerKey"))
			obj.SetProp("deliveryProfileId", str(item, "DeliveryProfile", "ObjectID"))
			obj.SetProp("deliveryProfileKey", str(item, "DeliveryProfile", "CustomerKey"))
		},
		edges: func(item Item, res *Result) {
			scID := str(item, "ObjectID")
			if scID == "" {
				return
			}
			scName := str(item, "Name")
			if key := str(item, "SenderProfile", "CustomerKey"); key != "" {
				res.AddEdge(types.Edge{
					SourceID:   scID,
					SourceType: types.TypeSendClassification,
					SourceName: scName,
					TargetID:   key,
					TargetType: types.TypeSenderProfile,
					Kind:       types.EdgeSendClassUsesSenderProfile,
				})
			}
			if key := str(item, "DeliveryProfile", "CustomerKey"); key != "" {
				res.AddEdge(types.Edge{
					SourceID:   scID,
					SourceType: types.TypeSendClassification,
					SourceName: scName,
					TargetID:   key,
					TargetType: types.TypeDeliveryProfile,
					Kind:       types.EdgeSendClassUsesDeliveryProfile,
				})
			}
		},
	}
}
