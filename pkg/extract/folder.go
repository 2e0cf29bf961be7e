package extract

import (
	"context"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/transport"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// folderContentTypes are the Automation Studio content types swept by the
// folder extractor.
var folderContentTypes = []string{
	"automations",
	"queryactivity",
	"ssjsactivity",
	"importactivity",
	"dataextractactivity",
	"filetransferactivity",
	"filteractivity",
	"dataextension",
}

var folderProperties = []string{
	"ID", "ObjectID", "CustomerKey", "Name",
	"ParentFolder.ID", "ParentFolder.Name",
	"ContentType", "Description",
	"IsActive", "IsEditable", "AllowChildren",
	"CreatedDate", "ModifiedDate",
}

type folderExtractor struct{}

// NewFolders extracts the folder tree for every Automation Studio content
// type. Parent links become folder_contains_folder edges.
func NewFolders() Extractor { return &folderExtractor{} }

func (e *folderExtractor) Name() string                 { return "folders" }
func (e *folderExtractor) ObjectType() types.ObjectType { return types.TypeFolder }
func (e *folderExtractor) RequiredCaches() []cache.Kind { return nil }

func (e *folderExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	logger := log.WithExtractor(e.Name())
	var all []Item
	pages := 0

	for _, contentType := range folderContentTypes {
		filter := &transport.SimpleFilter{
			Property: "ContentType",
			Operator: "equals",
			Value:    contentType,
		}
		objects, p, err := env.Soap.RetrieveAll(ctx, "DataFolder", folderProperties, filter)
		pages += p
		if err != nil {
			if ctx.Err() != nil {
				return all, pages, err
			}
			logger.Warn().Err(err).Str("content_type", contentType).Msg("folder retrieve failed, skipping")
			continue
		}
		for _, o := range objects {
			item := Item(o)
			if str(item, "ContentType") == "" {
				item["ContentType"] = contentType
			}
			all = append(all, item)
		}
		reportProgress(env, e.Name(), opts, "fetching "+contentType+" folders", len(all), 0)
	}
	return all, pages, nil
}

func (e *folderExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	return nil
}

func (e *folderExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		isActive, isEditable, allowChildren := true, true, true
		if _, ok := item["IsActive"]; ok {
			isActive = boolean(item, "IsActive")
		}
		if _, ok := item["IsEditable"]; ok {
			isEditable = boolean(item, "IsEditable")
		}
		if _, ok := item["AllowChildren"]; ok {
			allowChildren = boolean(item, "AllowChildren")
		}

		obj := types.Object{
			ID:           str(item, "ID"),
			Type:         types.TypeFolder,
			Name:         str(item, "Name"),
			CustomerKey:  str(item, "CustomerKey"),
			Description:  str(item, "Description"),
			CreatedDate:  str(item, "CreatedDate"),
			ModifiedDate: str(item, "ModifiedDate"),
		}
		obj.SetProp("objectId", str(item, "ObjectID"))
		obj.SetProp("contentType", str(item, "ContentType"))
		obj.SetProp("parentId", str(item, "ParentFolder", "ID"))
		obj.SetProp("parentName", str(item, "ParentFolder", "Name"))
		obj.SetProp("isActive", isActive)
		obj.SetProp("isEditable", isEditable)
		obj.SetProp("allowChildren", allowChildren)
		out = append(out, obj)
	}
	return out
}

func (e *folderExtractor) Relationships(items []Item, res *Result) {
	for _, item := range items {
		folderID := str(item, "ID")
		parentID := str(item, "ParentFolder", "ID")
		if folderID == "" || parentID == "" || parentID == "0" {
			continue
		}
		res.AddEdge(types.Edge{
			SourceID:   parentID,
			SourceType: types.TypeFolder,
			SourceName: str(item, "ParentFolder", "Name"),
			TargetID:   folderID,
			TargetType: types.TypeFolder,
			TargetName: str(item, "Name"),
			Kind:       types.EdgeFolderContains,
		})
	}
}
