package extract

import (
	"context"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

var triggeredSendProperties = []string{
	"ObjectID",
	"CustomerKey",
	"Name",
	"Description",
	"TriggeredSendStatus",
	"Email.ID",
	"List.ID",
	"SendClassification.CustomerKey",
	"SenderProfile.CustomerKey",
	"DeliveryProfile.CustomerKey",
	"CategoryID",
	"FromName",
	"FromAddress",
	"BccEmail",
	"EmailSubject",
	"DynamicEmailSubject",
	"IsMultipart",
	"IsWrapped",
	"AutoAddSubscribers",
	"AutoUpdateSubscribers",
	"Priority",
	"CreatedDate",
	"ModifiedDate",
}

type triggeredSendExtractor struct{}

// NewTriggeredSends extracts triggered send definitions via the SOAP API.
func NewTriggeredSends() Extractor { return &triggeredSendExtractor{} }

func (e *triggeredSendExtractor) Name() string                 { return "triggered_sends" }
func (e *triggeredSendExtractor) ObjectType() types.ObjectType { return types.TypeTriggeredSend }

func (e *triggeredSendExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindTriggeredSendFolders}
}

func (e *triggeredSendExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	return fetchSOAPAll(ctx, env, "TriggeredSendDefinition", triggeredSendProperties, opts)
}

func (e *triggeredSendExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	if categoryID := str(item, "CategoryID"); categoryID != "" {
		item["folderPath"] = env.Caches.Breadcrumb(ctx, categoryID, cache.KindTriggeredSendFolders)
	}
	return nil
}

func (e *triggeredSendExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		obj := types.Object{
			ID:           str(item, "ObjectID"),
			Type:         types.TypeTriggeredSend,
			Name:         str(item, "Name"),
			CustomerKey:  str(item, "CustomerKey"),
			Description:  str(item, "Description"),
			Status:       str(item, "TriggeredSendStatus"),
			FolderID:     str(item, "CategoryID"),
			FolderPath:   str(item, "folderPath"),
			CreatedDate:  str(item, "CreatedDate"),
			ModifiedDate: str(item, "ModifiedDate"),
		}
		obj.SetProp("emailId", str(item, "Email", "ID"))
		obj.SetProp("listId", str(item, "List", "ID"))
		obj.SetProp("sendClassificationKey", str(item, "SendClassification", "CustomerKey"))
		obj.SetProp("senderProfileKey", str(item, "SenderProfile", "CustomerKey"))
		obj.SetProp("deliveryProfileKey", str(item, "DeliveryProfile", "CustomerKey"))
		obj.SetProp("fromName", str(item, "FromName"))
		obj.SetProp("fromAddress", str(item, "FromAddress"))
		obj.SetProp("bccEmail", str(item, "BccEmail"))
		obj.SetProp("emailSubject", str(item, "EmailSubject"))
		obj.SetProp("dynamicEmailSubject", str(item, "DynamicEmailSubject"))
		obj.SetProp("isMultipart", boolean(item, "IsMultipart"))
		obj.SetProp("isWrapped", boolean(item, "IsWrapped"))
		obj.SetProp("autoAddSubscribers", boolean(item, "AutoAddSubscribers"))
		obj.SetProp("autoUpdateSubscribers", boolean(item, "AutoUpdateSubscribers"))
		obj.SetProp("priority", str(item, "Priority"))
		out = append(out, obj)
	}
	return out
}

func (e *triggeredSendExtractor) Relationships(items []Item, res *Result) {
	for _, item := range items {
		tsID := str(item, "ObjectID")
		if tsID == "" {
			continue
		}
		tsName := str(item, "Name")

		add := func(targetID string, targetType types.ObjectType, kind types.EdgeKind) {
			if targetID == "" {
				return
			}
			res.AddEdge(types.Edge{
				SourceID:   tsID,
				SourceType: types.TypeTriggeredSend,
				SourceName: tsName,
				TargetID:   targetID,
				TargetType: targetType,
				Kind:       kind,
			})
		}

		add(str(item, "Email", "ID"), types.TypeEmail, types.EdgeTriggeredSendUsesEmail)
		add(str(item, "List", "ID"), types.TypeList, types.EdgeTriggeredSendUsesList)
		add(str(item, "SenderProfile", "CustomerKey"), types.TypeSenderProfile, types.EdgeTriggeredSendUsesSenderProfile)
		add(str(item, "DeliveryProfile", "CustomerKey"), types.TypeDeliveryProfile, types.EdgeTriggeredSendUsesDeliveryProfile)
		add(str(item, "SendClassification", "CustomerKey"), types.TypeSendClassification, types.EdgeTriggeredSendUsesSendClass)
	}
}
