package extract

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"
)

// fetchRESTPaged pulls every page of a REST collection and decodes the items
// into generic maps.
func fetchRESTPaged(ctx context.Context, env *Env, path string, params url.Values, opts Options) ([]Item, int, error) {
	results, pages, err := env.Rest.GetPaged(ctx, path, params, "items", opts.PageSize, opts.MaxPages)
	if err != nil {
		return nil, pages, err
	}
	return jsonItems(results), pages, nil
}

// fetchSOAPAll retrieves every page of a SOAP object type.
func fetchSOAPAll(ctx context.Context, env *Env, objectType string, properties []string, opts Options) ([]Item, int, error) {
	objects, pages, err := env.Soap.RetrieveAll(ctx, objectType, properties, nil)
	if err != nil {
		return nil, pages, err
	}
	items := make([]Item, len(objects))
	for i, o := range objects {
		items[i] = o
	}
	return items, pages, nil
}

// jsonItems converts decoded JSON results into generic maps so REST and SOAP
// items flow through the same pipeline.
func jsonItems(results []gjson.Result) []Item {
	items := make([]Item, 0, len(results))
	for _, r := range results {
		if m, ok := r.Value().(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}
