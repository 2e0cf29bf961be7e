package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// deTablePattern matches FROM and JOIN clauses with an optional schema
// prefix, covering bracketed names and every JOIN variant. Group 1 is the
// schema (ENT/_ENT for shared data extensions), group 2 the table name.
var deTablePattern = regexp.MustCompile(
	`(?i)\b(?:FROM|(?:LEFT|RIGHT|INNER|OUTER|CROSS|FULL\s+OUTER)?\s*JOIN)\s+` +
		`\[?(?:(\w+)\.)?\[?([A-Za-z_][A-Za-z0-9_]*)\]?`)

var systemTableNames = map[string]struct{}{
	"dual":                 {},
	"subscribers":          {},
	"subscriberattributes": {},
}

// deReference is one data extension named in a query's SQL text.
type deReference struct {
	Name     string `json:"name"`
	IsShared bool   `json:"isShared"`
}

type queryExtractor struct{}

// NewQueries extracts SQL query activities and derives data extension
// dependencies from their SQL text.
func NewQueries() Extractor { return &queryExtractor{} }

func (e *queryExtractor) Name() string                 { return "queries" }
func (e *queryExtractor) ObjectType() types.ObjectType { return types.TypeQuery }

func (e *queryExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindQueryFolders}
}

func (e *queryExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	return fetchRESTPaged(ctx, env, "/automation/v1/queries", nil, opts)
}

func (e *queryExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	if categoryID := str(item, "categoryId"); categoryID != "" {
		item["folderPath"] = env.Caches.Breadcrumb(ctx, categoryID, cache.KindQueryFolders)
	}
	if sql := str(item, "queryText"); sql != "" {
		item["referencedDataExtensions"] = referencedDataExtensions(sql)
	}
	return nil
}

// referencedDataExtensions parses FROM and JOIN clauses for data extension
// names, skipping system tables. ENT or _ENT schema prefixes mark shared
// (cross-BU) references; once shared, a reference stays shared.
func referencedDataExtensions(sql string) []deReference {
	refs := make(map[string]*deReference)

	for _, match := range deTablePattern.FindAllStringSubmatch(sql, -1) {
		schema, name := match[1], strings.TrimSpace(match[2])
		if name == "" || isSystemTable(name) {
			continue
		}

		shared := false
		switch strings.ToUpper(schema) {
		case "ENT", "_ENT":
			shared = true
		}

		if ref, ok := refs[name]; ok {
			if shared {
				ref.IsShared = true
			}
			continue
		}
		refs[name] = &deReference{Name: name, IsShared: shared}
	}

	out := make([]deReference, 0, len(refs))
	for _, ref := range refs {
		out = append(out, *ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func isSystemTable(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "_") ||
		strings.HasPrefix(lower, "sys") ||
		strings.HasPrefix(lower, "information_schema") {
		return true
	}
	_, ok := systemTableNames[lower]
	return ok
}

func (e *queryExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		obj := types.Object{
			ID:           str(item, "queryDefinitionId"),
			Type:         types.TypeQuery,
			Name:         str(item, "name"),
			CustomerKey:  str(item, "key"),
			Description:  str(item, "description"),
			Status:       str(item, "status"),
			FolderID:     str(item, "categoryId"),
			FolderPath:   str(item, "folderPath"),
			CreatedDate:  str(item, "createdDate"),
			ModifiedDate: str(item, "modifiedDate"),
		}
		obj.SetProp("queryText", str(item, "queryText"))
		obj.SetProp("targetId", str(item, "targetId"))
		obj.SetProp("targetName", str(item, "targetName"))
		obj.SetProp("targetKey", str(item, "targetKey"))
		obj.SetProp("targetUpdateTypeName", str(item, "targetUpdateTypeName"))
		obj.SetProp("createdBy", item["createdBy"])
		obj.SetProp("modifiedBy", item["modifiedBy"])

		refs, _ := item["referencedDataExtensions"].([]deReference)
		obj.SetProp("referencedDataExtensions", refs)
		names := make([]string, len(refs))
		for i, ref := range refs {
			names[i] = ref.Name
		}
		obj.SetProp("referencedDataExtensionNames", names)
		out = append(out, obj)
	}
	return out
}

func (e *queryExtractor) Relationships(items []Item, res *Result) {
	for _, item := range items {
		queryID := str(item, "queryDefinitionId")
		if queryID == "" {
			continue
		}
		queryName := str(item, "name")

		if targetID := str(item, "targetId"); targetID != "" {
			res.AddEdge(types.Edge{
				SourceID:   queryID,
				SourceType: types.TypeQuery,
				SourceName: queryName,
				TargetID:   targetID,
				TargetType: types.TypeDataExtension,
				TargetName: str(item, "targetName"),
				Kind:       types.EdgeQueryWritesDE,
			})
		}

		refs, _ := item["referencedDataExtensions"].([]deReference)
		for _, ref := range refs {
			// No ID available from SQL text; the target is keyed by name and
			// resolved downstream.
			res.AddEdge(types.Edge{
				SourceID:   queryID,
				SourceType: types.TypeQuery,
				SourceName: queryName,
				TargetID:   ref.Name,
				TargetType: types.TypeDataExtension,
				TargetName: ref.Name,
				Kind:       types.EdgeQueryReadsDE,
				Metadata: map[string]string{
					"resolvedBy": "name",
					"isShared":   boolString(ref.IsShared),
				},
			})
		}
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
