package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/metrics"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// assetTypeNames maps Content Builder assetType IDs to display names.
var assetTypeNames = map[int]string{
	5:   "HTML Email",
	20:  "Image",
	22:  "Document",
	23:  "Audio",
	28:  "Video",
	195: "Content Block",
	196: "Code Snippet",
	197: "Text Content",
	198: "HTML Content",
	199: "Free Form Content",
	205: "Webpage",
	207: "Template-Based Email",
	208: "Text-Only Email",
	209: "Email (Default)",
	210: "Email Template",
	211: "Webpage",
	212: "Landing Page",
	220: "Smart Capture Block",
	246: "JSON Message",
	247: "CloudPages",
	248: "Microsite Collection",
	249: "Microsite Page",
}

// assetQueryFields keeps list payloads small; content fields are added only
// when details are on.
var assetQueryFields = []string{
	"id", "customerKey", "name", "description",
	"assetType", "category", "status", "version",
	"createdDate", "modifiedDate", "createdBy", "modifiedBy",
}

var assetContentFields = []string{"content", "views", "slots"}

// cloudpageAssetTypes are the asset types whose content is scanned for
// AMPscript data extension references.
var cloudpageAssetTypes = map[int]bool{
	205: true, // Webpage
	211: true, // Webpage (alternate)
	212: true, // Landing Page
	246: true, // JSON Message
	247: true, // CloudPages
	248: true, // Microsite Collection
	249: true, // Microsite Page
}

type assetExtractor struct{}

// NewAssets extracts Content Builder assets through the asset query API.
func NewAssets() Extractor { return &assetExtractor{} }

func (e *assetExtractor) Name() string                 { return "assets" }
func (e *assetExtractor) ObjectType() types.ObjectType { return types.TypeAsset }

func (e *assetExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindContentCategories}
}

func (e *assetExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	var all []Item
	pages := 0

	fields := assetQueryFields
	if opts.IncludeDetails {
		fields = append(append([]string{}, fields...), assetContentFields...)
	}

	for page := 1; page <= opts.MaxPages; page++ {
		body := map[string]any{
			"page": map[string]int{
				"page":     page,
				"pageSize": opts.PageSize,
			},
			"fields": fields,
		}
		resp, err := env.Rest.Post(ctx, "/asset/v1/content/assets/query", body)
		if err != nil {
			return all, pages, err
		}
		pages++

		items := jsonItems(resp.Data.Get("items").Array())
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		reportProgress(env, e.Name(), opts, "fetching", len(all), 0)

		if len(items) < opts.PageSize {
			break
		}
	}
	return all, pages, nil
}

func (e *assetExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	if categoryID := str(item, "category", "id"); categoryID != "" {
		item["folderPath"] = env.Caches.Breadcrumb(ctx, categoryID, cache.KindContentCategories)
	}
	typeID := int(num(sub(item, "assetType"), "id"))
	if typeID != 0 {
		item["assetTypeName"] = assetTypeName(typeID)
	}

	if cloudpageAssetTypes[typeID] {
		refs, unresolved := ampscriptDERefs(assetContentText(item))
		if len(refs) > 0 {
			item["ampRefs"] = refs
		}
		if unresolved > 0 {
			item["unresolvedReferences"] = unresolved
			metrics.UnresolvedReferencesTotal.WithLabelValues(e.Name()).Add(float64(unresolved))
		}
	}
	return nil
}

// assetContentText gathers every content region of an asset for scanning.
func assetContentText(item Item) string {
	var parts []string
	if content := str(item, "content"); content != "" {
		parts = append(parts, content)
	}
	for _, view := range sub(item, "views") {
		switch v := view.(type) {
		case map[string]any:
			if content := str(v, "content"); content != "" {
				parts = append(parts, content)
			}
		case string:
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

func (e *assetExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		obj := types.Object{
			ID:           str(item, "id"),
			Type:         types.TypeAsset,
			Name:         str(item, "name"),
			CustomerKey:  str(item, "customerKey"),
			Description:  str(item, "description"),
			Status:       firstNonEmpty(str(item, "status", "name"), str(item, "status")),
			FolderID:     str(item, "category", "id"),
			FolderPath:   str(item, "folderPath"),
			CreatedDate:  str(item, "createdDate"),
			ModifiedDate: str(item, "modifiedDate"),
		}
		obj.SetProp("assetTypeId", int(num(sub(item, "assetType"), "id")))
		obj.SetProp("assetTypeName",
			firstNonEmpty(str(item, "assetTypeName"), str(item, "assetType", "name")))
		obj.SetProp("categoryName", str(item, "category", "name"))
		obj.SetProp("version", item["version"])
		obj.SetProp("createdBy", str(item, "createdBy", "name"))
		obj.SetProp("modifiedBy", str(item, "modifiedBy", "name"))
		if n := int(num(item, "unresolvedReferences")); n > 0 {
			obj.SetProp("unresolvedReferences", n)
		}
		out = append(out, obj)
	}
	return out
}

func (e *assetExtractor) Relationships(items []Item, res *Result) {
	for _, item := range items {
		assetID := str(item, "id")
		if assetID == "" {
			continue
		}
		assetName := str(item, "name")

		// Referenced content blocks appear in template slots.
		for _, slot := range sub(item, "slots") {
			slotMap, ok := slot.(map[string]any)
			if !ok {
				continue
			}
			for _, block := range list(slotMap, "blocks") {
				blockID := str(block, "id")
				if blockID == "" {
					continue
				}
				res.AddEdge(types.Edge{
					SourceID: assetID, SourceType: types.TypeAsset, SourceName: assetName,
					TargetID: blockID, TargetType: types.TypeAsset,
					TargetName: str(block, "name"),
					Kind:       types.EdgeEmailUsesContentBlock,
				})
			}
		}

		refs, _ := item["ampRefs"].([]ampRef)
		seen := map[string]bool{}
		for _, ref := range refs {
			kind := types.EdgeCloudPageReadsDE
			if ref.Operation != "read" {
				kind = types.EdgeCloudPageWritesDE
			}
			dedupeKey := string(kind) + "|" + ref.Name
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true
			res.AddEdge(types.Edge{
				SourceID: assetID, SourceType: types.TypeAsset, SourceName: assetName,
				TargetID: ref.Name, TargetType: types.TypeDataExtension, TargetName: ref.Name,
				Kind: kind,
				Metadata: map[string]string{
					"resolvedBy": "name",
					"operation":  ref.Operation,
				},
			})
		}
	}
}

func assetTypeName(typeID int) string {
	if name, ok := assetTypeNames[typeID]; ok {
		return name
	}
	return fmt.Sprintf("Type %d", typeID)
}
