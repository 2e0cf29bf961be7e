package extract

import (
	"context"
	"net/url"
	"strconv"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// dePageSize is what the customobjects category endpoint actually serves
// regardless of the requested size.
const dePageSize = 25

type dataExtensionExtractor struct{}

// NewDataExtensions extracts data extensions with their fields. The category
// endpoint is swept per folder because the flat listing requires a $search
// term; category 0 goes first since it includes shared data extensions.
func NewDataExtensions() Extractor { return &dataExtensionExtractor{} }

func (e *dataExtensionExtractor) Name() string                 { return "data_extensions" }
func (e *dataExtensionExtractor) ObjectType() types.ObjectType { return types.TypeDataExtension }

func (e *dataExtensionExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindDEFolders}
}

func (e *dataExtensionExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	logger := log.WithExtractor(e.Name())
	pages := 0

	categoryIDs, catPages, err := e.fetchCategoryIDs(ctx, env, opts)
	if err != nil {
		return nil, catPages, err
	}
	pages += catPages
	logger.Debug().Int("categories", len(categoryIDs)).Msg("sweeping data extension categories")

	// Dedupe by customer key; the same DE shows up under category 0 and its
	// own folder.
	seen := make(map[string]Item)
	var order []string

	for i, categoryID := range categoryIDs {
		items, p, err := e.fetchByCategory(ctx, env, categoryID, opts)
		pages += p
		if err != nil {
			if ctx.Err() != nil {
				return nil, pages, err
			}
			logger.Warn().Err(err).Str("category", categoryID).Msg("category sweep failed, skipping")
			continue
		}
		for _, item := range items {
			key := firstNonEmpty(str(item, "key"), str(item, "customerKey"))
			if key == "" || seen[key] != nil {
				continue
			}
			if str(item, "categoryId") == "" {
				item["categoryId"] = categoryID
			}
			seen[key] = item
			order = append(order, key)
		}
		reportProgress(env, e.Name(), opts, "sweeping categories", i+1, len(categoryIDs))
	}

	out := make([]Item, 0, len(order))
	for _, key := range order {
		out = append(out, seen[key])
	}
	return out, pages, nil
}

func (e *dataExtensionExtractor) fetchCategoryIDs(ctx context.Context, env *Env, opts Options) ([]string, int, error) {
	params := url.Values{"$filter": {"categorytype eq dataextension"}}
	results, pages, err := env.Rest.GetPaged(ctx, "/automation/v1/folders", params, "items", opts.PageSize, opts.MaxPages)
	if err != nil {
		return nil, pages, err
	}

	ids := []string{"0"}
	for _, r := range results {
		if id := r.Get("categoryId"); id.Exists() {
			ids = append(ids, id.String())
		}
	}
	return ids, pages, nil
}

func (e *dataExtensionExtractor) fetchByCategory(ctx context.Context, env *Env, categoryID string, opts Options) ([]Item, int, error) {
	var all []Item
	pages := 0

	for page := 1; page <= opts.MaxPages; page++ {
		params := url.Values{
			"$page":     {strconv.Itoa(page)},
			"$pageSize": {strconv.Itoa(dePageSize)},
		}
		resp, err := env.Rest.Get(ctx, "/data/v1/customobjects/category/"+categoryID, params)
		if err != nil {
			// Empty categories 404.
			if types.IsCode(err, types.ErrHTTPNonRetryable) {
				return all, pages, nil
			}
			return all, pages, err
		}
		pages++

		items := jsonItems(resp.Data.Get("items").Array())
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		if count := resp.Data.Get("count").Int(); count > 0 && int64(len(all)) >= count {
			break
		}
	}
	return all, pages, nil
}

func (e *dataExtensionExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	if categoryID := str(item, "categoryId"); categoryID != "" {
		item["folderPath"] = env.Caches.Breadcrumb(ctx, categoryID, cache.KindDEFolders)
	}

	id := str(item, "id")
	if !opts.IncludeDetails || id == "" {
		return nil
	}

	resp, err := env.Rest.Get(ctx, "/data/v1/customobjects/"+id+"/fields", nil)
	if err != nil {
		return err
	}
	item["fields"] = resp.Data.Get("fields").Value()
	return nil
}

func (e *dataExtensionExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		fields := list(item, "fields")
		retention := sub(item, "dataRetentionProperties")

		obj := types.Object{
			ID:           str(item, "id"),
			Type:         types.TypeDataExtension,
			Name:         str(item, "name"),
			CustomerKey:  firstNonEmpty(str(item, "key"), str(item, "customerKey")),
			Description:  str(item, "description"),
			FolderID:     str(item, "categoryId"),
			FolderPath:   str(item, "folderPath"),
			CreatedDate:  str(item, "createdDate"),
			ModifiedDate: str(item, "modifiedDate"),
		}
		obj.SetProp("isSendable", boolean(item, "isSendable"))
		obj.SetProp("isTestable", boolean(item, "isTestable"))
		obj.SetProp("sendableDataExtensionField",
			firstNonEmpty(str(item, "sendableCustomObjectField"), str(item, "sendableDataExtensionField")))
		obj.SetProp("sendableSubscriberField", str(item, "sendableSubscriberField"))
		obj.SetProp("rowCount", item["rowCount"])
		obj.SetProp("deleteAtEndOfRetentionPeriod", boolean(retention, "isDeleteAtEndOfRetentionPeriod"))
		obj.SetProp("resetRetentionPeriodOnImport", boolean(retention, "isResetRetentionPeriodOnImport"))
		obj.SetProp("isRowBasedRetention", boolean(retention, "isRowBasedRetention"))

		fieldCount := len(fields)
		if c := int(num(item, "fieldCount")); c > 0 {
			fieldCount = c
		}
		obj.SetProp("fieldCount", fieldCount)
		obj.SetProp("fields", transformFields(fields))

		var primaryKeys []string
		for _, f := range fields {
			if boolean(f, "isPrimaryKey") {
				primaryKeys = append(primaryKeys, str(f, "name"))
			}
		}
		obj.SetProp("primaryKeyFields", primaryKeys)
		out = append(out, obj)
	}
	return out
}

func transformFields(fields []Item) []Item {
	out := make([]Item, 0, len(fields))
	for _, f := range fields {
		isNullable := true
		if _, ok := f["isNullable"]; ok {
			isNullable = boolean(f, "isNullable")
		}
		out = append(out, Item{
			"name":         str(f, "name"),
			"fieldType":    firstNonEmpty(str(f, "type"), str(f, "fieldType")),
			"maxLength":    firstNonEmpty(str(f, "length"), str(f, "maxLength")),
			"isPrimaryKey": boolean(f, "isPrimaryKey"),
			"isRequired":   !isNullable,
			"defaultValue": f["defaultValue"],
			"ordinal":      f["ordinal"],
			"scale":        f["scale"],
			"storageType":  str(f, "storageType"),
		})
	}
	return out
}

func (e *dataExtensionExtractor) Relationships(items []Item, res *Result) {}
