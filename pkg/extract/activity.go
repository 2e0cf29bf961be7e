package extract

import (
	"context"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// restActivity is the shared shape of the Automation Studio activity
// endpoints. Each instance configures the endpoint, the API's ID field and
// the folder cache used for breadcrumbs; edges hooks cover the
// activity-specific data extension references.
type restActivity struct {
	name       string
	objType    types.ObjectType
	path       string
	idKey      string
	folderKind cache.Kind
	transform  func(item Item, obj *types.Object)
	edges      func(item Item, res *Result)
}

func (a *restActivity) Name() string                { return a.name }
func (a *restActivity) ObjectType() types.ObjectType { return a.objType }

func (a *restActivity) RequiredCaches() []cache.Kind {
	if a.folderKind == "" {
		return nil
	}
	return []cache.Kind{a.folderKind}
}

func (a *restActivity) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	return fetchRESTPaged(ctx, env, a.path, nil, opts)
}

func (a *restActivity) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	if a.folderKind == "" {
		return nil
	}
	if categoryID := str(item, "categoryId"); categoryID != "" {
		item["folderPath"] = env.Caches.Breadcrumb(ctx, categoryID, a.folderKind)
	}
	return nil
}

func (a *restActivity) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		obj := types.Object{
			ID:           str(item, a.idKey),
			Type:         a.objType,
			Name:         str(item, "name"),
			CustomerKey:  firstNonEmpty(str(item, "key"), str(item, "customerKey")),
			Description:  str(item, "description"),
			Status:       str(item, "status"),
			FolderID:     str(item, "categoryId"),
			FolderPath:   str(item, "folderPath"),
			CreatedDate:  str(item, "createdDate"),
			ModifiedDate: str(item, "modifiedDate"),
		}
		if a.transform != nil {
			a.transform(item, &obj)
		}
		out = append(out, obj)
	}
	return out
}

func (a *restActivity) Relationships(items []Item, res *Result) {
	if a.edges == nil {
		return
	}
	for _, item := range items {
		a.edges(item, res)
	}
}

// NewScripts extracts SSJS script activities.
func NewScripts() Extractor {
	return &restActivity{
		name:       "scripts",
		objType:    types.TypeScript,
		path:       "/automation/v1/scripts",
		idKey:      "ssjsActivityId",
		folderKind: cache.KindScriptFolders,
		transform: func(item Item, obj *types.Object) {
			if script := str(item, "script"); script != "" {
				obj.SetProp("script", script)
			}
			obj.SetProp("createdBy", item["createdBy"])
			obj.SetProp("modifiedBy", item["modifiedBy"])
		},
	}
}

// NewImports extracts import file definitions. The destination data extension
// reference becomes an import_writes_de edge.
func NewImports() Extractor {
	return &restActivity{
		name:       "imports",
		objType:    types.TypeImport,
		path:       "/automation/v1/imports",
		idKey:      "importDefinitionId",
		folderKind: cache.KindImportFolders,
		transform: func(item Item, obj *types.Object) {
			obj.SetProp("destinationObjectId", str(item, "destinationObject", "id"))
			obj.SetProp("destinationObjectName", str(item, "destinationObject", "name"))
			obj.SetProp("updateType", item["updateTypeId"])
			obj.SetProp("fileSpec", str(item, "fileSpec"))
		},
		edges: func(item Item, res *Result) {
			deID := str(item, "destinationObject", "id")
			if deID == "" {
				return
			}
			res.AddEdge(types.Edge{
				SourceID:   str(item, "importDefinitionId"),
				SourceType: types.TypeImport,
				SourceName: str(item, "name"),
				TargetID:   deID,
				TargetType: types.TypeDataExtension,
				TargetName: str(item, "destinationObject", "name"),
				Kind:       types.EdgeImportWritesDE,
			})
		},
	}
}

// NewDataExtracts extracts data extract definitions. Each extracted data
// extension in dataFields yields an extract_reads_de edge.
func NewDataExtracts() Extractor {
	return &restActivity{
		name:       "data_extracts",
		objType:    types.TypeDataExtract,
		path:       "/automation/v1/dataextracts",
		idKey:      "dataExtractDefinitionId",
		folderKind: cache.KindDataExtractFolders,
		transform: func(item Item, obj *types.Object) {
			obj.SetProp("dataExtractTypeId", str(item, "dataExtractTypeId"))
			obj.SetProp("fileSpec", str(item, "fileSpec"))
		},
		edges: func(item Item, res *Result) {
			for _, field := range list(item, "dataFields") {
				deID := str(field, "dataExtension", "id")
				if deID == "" {
					continue
				}
				res.AddEdge(types.Edge{
					SourceID:   str(item, "dataExtractDefinitionId"),
					SourceType: types.TypeDataExtract,
					SourceName: str(item, "name"),
					TargetID:   deID,
					TargetType: types.TypeDataExtension,
					TargetName: str(field, "dataExtension", "name"),
					Kind:       types.EdgeExtractReadsDE,
				})
			}
		},
	}
}

// NewFileTransfers extracts file transfer definitions. They move files
// between locations and carry no data extension references.
func NewFileTransfers() Extractor {
	return &restActivity{
		name:       "file_transfers",
		objType:    types.TypeFileTransfer,
		path:       "/automation/v1/filetransfers",
		idKey:      "id",
		folderKind: cache.KindFileTransferFolders,
		transform: func(item Item, obj *types.Object) {
			obj.SetProp("fileSpec", str(item, "fileSpec"))
			obj.SetProp("isUpload", boolean(item, "isUpload"))
		},
	}
}

// NewFilters extracts filter activities. Source and result data extensions
// yield filter_reads_de and filter_writes_de edges.
func NewFilters() Extractor {
	return &restActivity{
		name:       "filters",
		objType:    types.TypeFilter,
		path:       "/automation/v1/filters",
		idKey:      "filterActivityId",
		folderKind: cache.KindFilterFolders,
		transform: func(item Item, obj *types.Object) {
			obj.SetProp("sourceObjectId", str(item, "sourceObjectId"))
			obj.SetProp("sourceDEName", str(item, "sourceDEName"))
			obj.SetProp("destinationObjectId", str(item, "destinationObjectId"))
			obj.SetProp("resultDEName", str(item, "resultDEName"))
			obj.SetProp("filterDefinitionId", str(item, "filterDefinitionId"))
		},
		edges: func(item Item, res *Result) {
			filterID := str(item, "filterActivityId")
			if filterID == "" {
				return
			}
			if sourceID := str(item, "sourceObjectId"); sourceID != "" {
				res.AddEdge(types.Edge{
					SourceID:   filterID,
					SourceType: types.TypeFilter,
					SourceName: str(item, "name"),
					TargetID:   sourceID,
					TargetType: types.TypeDataExtension,
					TargetName: str(item, "sourceDEName"),
					Kind:       types.EdgeFilterReadsDE,
				})
			}
			if destID := str(item, "destinationObjectId"); destID != "" {
				res.AddEdge(types.Edge{
					SourceID:   filterID,
					SourceType: types.TypeFilter,
					SourceName: str(item, "name"),
					TargetID:   destID,
					TargetType: types.TypeDataExtension,
					TargetName: str(item, "resultDEName"),
					Kind:       types.EdgeFilterWritesDE,
				})
			}
		},
	}
}

// NewDeliveryProfiles extracts delivery profiles from the legacy messaging
// endpoint. The API exposes only basic metadata.
func NewDeliveryProfiles() Extractor {
	return &restActivity{
		name:    "delivery_profiles",
		objType: types.TypeDeliveryProfile,
		path:    "/legacy/v1/beta/messaging/deliverypolicy/",
		idKey:   "id",
		transform: func(item Item, obj *types.Object) {
			if obj.ModifiedDate == "" {
				obj.ModifiedDate = str(item, "lastUpdated")
			}
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
