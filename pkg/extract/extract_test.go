package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/ratelimit"
	"github.com/marketingops/sfmc-inventory/pkg/transport"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

type testTokens struct{}

func (testTokens) Token(ctx context.Context) (string, error) { return "test-token", nil }
func (testTokens) Invalidate()                               {}

func newTestEnv(restURL, soapURL string) *Env {
	limiter := ratelimit.New()
	rest := transport.NewRestClient(restURL, testTokens{}, limiter, 10*time.Second)
	soap := transport.NewSoapClient(soapURL, testTokens{}, limiter, 10*time.Second)
	return &Env{
		Rest:   rest,
		Soap:   soap,
		Caches: cache.NewManager(rest, soap),
	}
}

// fakeExtractor lets pipeline tests control each stage.
type fakeExtractor struct {
	fetchItems []Item
	fetchErr   error
	enrichErr  error
	enriched   atomic.Int32
}

func (f *fakeExtractor) Name() string                 { return "fake" }
func (f *fakeExtractor) ObjectType() types.ObjectType { return "fake" }
func (f *fakeExtractor) RequiredCaches() []cache.Kind { return nil }

func (f *fakeExtractor) Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error) {
	return f.fetchItems, 1, f.fetchErr
}

func (f *fakeExtractor) Enrich(ctx context.Context, env *Env, item Item, opts Options) error {
	f.enriched.Add(1)
	if f.enrichErr != nil && str(item, "id") == "bad" {
		return f.enrichErr
	}
	item["enriched"] = true
	return nil
}

func (f *fakeExtractor) Transform(items []Item, opts Options) []types.Object {
	out := make([]types.Object, 0, len(items))
	for _, item := range items {
		out = append(out, types.Object{ID: str(item, "id"), Type: "fake"})
	}
	return out
}

func (f *fakeExtractor) Relationships(items []Item, res *Result) {}

func TestRunPipeline(t *testing.T) {
	env := newTestEnv("http://unused.invalid", "http://unused.invalid")
	fake := &fakeExtractor{fetchItems: []Item{{"id": "a"}, {"id": "b"}}}

	res := Run(context.Background(), env, fake, DefaultOptions())

	assert.Empty(t, res.Errors)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, int32(2), fake.enriched.Load())
	assert.Equal(t, 1, res.PagesFetched)
	assert.False(t, res.CompletedAt.IsZero())
}

func TestRunFetchFailure(t *testing.T) {
	env := newTestEnv("http://unused.invalid", "http://unused.invalid")
	fake := &fakeExtractor{
		fetchErr: types.NewError(types.ErrHTTPRetryableExhausted, "gave up"),
	}

	res := Run(context.Background(), env, fake, DefaultOptions())

	require.Len(t, res.Errors, 1)
	assert.Equal(t, types.ErrHTTPRetryableExhausted, res.Errors[0].Code)
	assert.Equal(t, "fake", res.Errors[0].Extractor)
	assert.Empty(t, res.Items)
}

func TestRunEnrichFailureKeepsItem(t *testing.T) {
	env := newTestEnv("http://unused.invalid", "http://unused.invalid")
	fake := &fakeExtractor{
		fetchItems: []Item{{"id": "good"}, {"id": "bad"}},
		enrichErr:  errors.New("detail fetch blew up"),
	}

	res := Run(context.Background(), env, fake, DefaultOptions())

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad", res.Errors[0].Context["item"])
	assert.Len(t, res.Items, 2, "failed item stays in the output")
}

func TestRunCanceled(t *testing.T) {
	env := newTestEnv("http://unused.invalid", "http://unused.invalid")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeExtractor{
		fetchErr: types.WrapError(types.ErrCanceled, "canceled", context.Canceled),
	}
	res := Run(ctx, env, fake, DefaultOptions())

	require.NotEmpty(t, res.Errors)
	assert.Equal(t, types.ErrCanceled, res.Errors[0].Code)
}

func TestImportsEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/automation/v1/imports":
			w.Write([]byte(`{"count":1,"items":[{
				"importDefinitionId":"imp-1",
				"name":"Customer Import",
				"customerKey":"cust-import",
				"categoryId":200,
				"destinationObject":{"id":"de-5","name":"Customers"},
				"createdDate":"2026-01-10T00:00:00Z"
			}]}`))
		case "/email/v1/category":
			w.Write([]byte(`{"items":[{"id":200,"name":"Import Activities","parentId":0}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	env := newTestEnv(srv.URL, "http://unused.invalid")
	res := Run(context.Background(), env, NewImports(), DefaultOptions())

	require.Empty(t, res.Errors)
	require.Len(t, res.Items, 1)

	obj := res.Items[0]
	assert.Equal(t, "imp-1", obj.ID)
	assert.Equal(t, types.TypeImport, obj.Type)
	assert.Equal(t, "cust-import", obj.CustomerKey)
	assert.Equal(t, "Import Activities", obj.FolderPath)

	require.Len(t, res.Edges, 1)
	edge := res.Edges[0]
	assert.Equal(t, types.EdgeImportWritesDE, edge.Kind)
	assert.Equal(t, "imp-1", edge.SourceID)
	assert.Equal(t, "de-5", edge.TargetID)
	assert.Equal(t, "Customers", edge.TargetName)
}

func TestFiltersRelationships(t *testing.T) {
	items := []Item{{
		"filterActivityId":    "f-1",
		"name":                "VIP Filter",
		"sourceObjectId":      "de-src",
		"sourceDEName":        "All_Customers",
		"destinationObjectId": "de-dst",
		"resultDEName":        "VIP_Customers",
	}}

	res := &Result{Extractor: "filters"}
	NewFilters().Relationships(items, res)

	require.Len(t, res.Edges, 2)
	assert.Equal(t, types.EdgeFilterReadsDE, res.Edges[0].Kind)
	assert.Equal(t, "de-src", res.Edges[0].TargetID)
	assert.Equal(t, types.EdgeFilterWritesDE, res.Edges[1].Kind)
	assert.Equal(t, "VIP_Customers", res.Edges[1].TargetName)
}

func TestRegistry(t *testing.T) {
	names := Names()
	assert.Len(t, names, 18)
	assert.Contains(t, names, "automations")
	assert.Contains(t, names, "data_extensions")

	ex, err := Lookup("queries")
	require.NoError(t, err)
	assert.Equal(t, types.TypeQuery, ex.ObjectType())

	_, err = Lookup("nope")
	assert.Error(t, err)

	all := All()
	assert.Len(t, all, len(names))
}

func TestItemHelpers(t *testing.T) {
	item := Item{
		"id":    float64(42),
		"flag":  "true",
		"count": "17",
		"nested": map[string]any{
			"inner": map[string]any{"name": "deep"},
		},
		"single": map[string]any{"id": "one"},
		"many":   []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}},
	}

	assert.Equal(t, "42", str(item, "id"), "numbers render without decimals")
	assert.Equal(t, "deep", str(item, "nested", "inner", "name"))
	assert.Equal(t, "", str(item, "missing", "path"))
	assert.True(t, boolean(item, "flag"))
	assert.Equal(t, float64(17), num(item, "count"))
	assert.Len(t, list(item, "many"), 2)
	assert.Len(t, list(item, "single"), 1, "single nested object wraps into a slice")
	assert.Nil(t, list(item, "missing"))
}
