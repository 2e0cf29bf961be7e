package extract

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/events"
	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/metrics"
	"github.com/marketingops/sfmc-inventory/pkg/transport"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// Options tunes a single extractor run.
type Options struct {
	PageSize       int
	MaxPages       int
	MaxConcurrent  int
	IncludeDetails bool
	Timeout        time.Duration

	// Progress, when set, receives throttled progress updates.
	Progress func(extractor, message string, done, total int)
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		PageSize:       500,
		MaxPages:       100,
		MaxConcurrent:  8,
		IncludeDetails: true,
	}
}

// Env bundles the shared services extractors run against.
type Env struct {
	Rest   *transport.RestClient
	Soap   *transport.SoapClient
	Caches *cache.Manager
	Events *events.Broker
}

// Item is one raw API object flowing through the pipeline.
type Item = map[string]any

// Result collects everything one extractor produced.
type Result struct {
	Extractor    string
	Type         types.ObjectType
	Items        []types.Object
	Edges        []types.Edge
	Errors       []*types.ExtractError
	PagesFetched int
	StartedAt    time.Time
	CompletedAt  time.Time
}

// AddError records a failure without stopping the run.
func (r *Result) AddError(err *types.ExtractError) {
	err.Extractor = r.Extractor
	r.Errors = append(r.Errors, err)
	metrics.ExtractorErrorsTotal.WithLabelValues(r.Extractor, string(err.Code)).Inc()
}

// AddEdge records a relationship discovered during extraction.
func (r *Result) AddEdge(e types.Edge) {
	r.Edges = append(r.Edges, e)
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Extractor is one object-type pipeline. Fetch pulls raw items, Enrich
// decorates a single item (breadcrumbs, detail calls), Transform normalizes
// items into output objects, and Relationships derives edges from the
// enriched items.
type Extractor interface {
	Name() string
	ObjectType() types.ObjectType
	RequiredCaches() []cache.Kind

	Fetch(ctx context.Context, env *Env, opts Options) ([]Item, int, error)
	Enrich(ctx context.Context, env *Env, item Item, opts Options) error
	Transform(items []Item, opts Options) []types.Object
	Relationships(items []Item, res *Result)
}

// Run executes the full pipeline for one extractor. Fetch failures end the
// run with an error result; enrichment failures are recorded per item and
// the raw item is kept. Cancellation and deadline expiry produce partial
// results tagged CANCELED or EXTRACTOR_TIMEOUT.
func Run(ctx context.Context, env *Env, ex Extractor, opts Options) *Result {
	res := &Result{
		Extractor: ex.Name(),
		Type:      ex.ObjectType(),
		StartedAt: time.Now(),
	}
	logger := log.WithExtractor(ex.Name())
	timer := metrics.NewTimer()
	defer func() {
		res.CompletedAt = time.Now()
		timer.ObserveDurationVec(metrics.ExtractorDuration, ex.Name())
		metrics.ExtractorObjectsTotal.WithLabelValues(ex.Name()).Set(float64(len(res.Items)))
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// Warm required caches up front; a failed cache degrades enrichment but
	// does not stop extraction.
	if kinds := ex.RequiredCaches(); len(kinds) > 0 {
		if err := env.Caches.Warm(ctx, kinds...); err != nil {
			res.AddError(asExtractError(ctx, err))
			logger.Warn().Err(err).Msg("cache warm failed, continuing without enrichment data")
		}
	}

	items, pages, err := ex.Fetch(ctx, env, opts)
	res.PagesFetched = pages
	if err != nil {
		res.AddError(asExtractError(ctx, err))
		logger.Error().Err(err).Msg("fetch failed")
		return res
	}
	logger.Info().Int("items", len(items)).Int("pages", pages).Msg("fetched")

	enrichAll(ctx, env, ex, items, opts, res)

	res.Items = ex.Transform(items, opts)
	ex.Relationships(items, res)

	logger.Info().
		Int("objects", len(res.Items)).
		Int("edges", len(res.Edges)).
		Int("errors", len(res.Errors)).
		Msg("extraction complete")
	return res
}

// enrichAll runs Enrich over every item under a bounded semaphore. Items
// whose enrichment fails stay in the pipeline unenriched.
func enrichAll(ctx context.Context, env *Env, ex Extractor, items []Item, opts Options, res *Result) {
	if len(items) == 0 {
		return
	}

	workers := opts.MaxConcurrent
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))

	type outcome struct {
		index int
		err   error
	}
	outcomes := make(chan outcome, len(items))

	for i := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			res.AddError(asExtractError(ctx, err))
			// Mark the rest as skipped.
			for j := i; j < len(items); j++ {
				outcomes <- outcome{index: j}
			}
			break
		}
		go func(i int) {
			defer sem.Release(1)
			outcomes <- outcome{index: i, err: ex.Enrich(ctx, env, items[i], opts)}
		}(i)
	}

	for done := 0; done < len(items); done++ {
		o := <-outcomes
		if o.err != nil {
			res.AddError(asExtractError(ctx, o.err).
				WithContext("item", itemID(items[o.index])))
		}
		if (done+1)%50 == 0 || done+1 == len(items) {
			reportProgress(env, ex.Name(), opts, "enriching", done+1, len(items))
		}
	}
}

func reportProgress(env *Env, name string, opts Options, message string, done, total int) {
	if opts.Progress != nil {
		opts.Progress(name, message, done, total)
	}
	if env.Events != nil {
		env.Events.Progress(name, message, done, total)
	}
}

// asExtractError classifies err, mapping context errors to CANCELED or
// EXTRACTOR_TIMEOUT and passing typed errors through.
func asExtractError(ctx context.Context, err error) *types.ExtractError {
	var ee *types.ExtractError
	if errors.As(err, &ee) {
		if ee.Code == types.ErrCanceled && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return types.WrapError(types.ErrExtractorTimeout, "extractor deadline exceeded", err)
		}
		return ee
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapError(types.ErrExtractorTimeout, "extractor deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return types.WrapError(types.ErrCanceled, "extraction canceled", err)
	}
	return types.WrapError(types.ErrDataConsistency, "", err)
}

// --- item helpers ---

// str walks nested maps by key path and stringifies the leaf. JSON numbers
// render without a trailing ".0".
func str(item Item, path ...string) string {
	var cur any = item
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	return anyToString(cur)
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// num reads a numeric value; SOAP string numbers parse too.
func num(item Item, key string) float64 {
	switch t := item[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}

// boolean reads a bool; SOAP "true"/"false" strings parse too.
func boolean(item Item, key string) bool {
	switch t := item[key].(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "True"
	}
	return false
}

// sub returns a nested object, or nil.
func sub(item Item, key string) Item {
	m, _ := item[key].(map[string]any)
	return m
}

// list returns a nested array of objects. A single nested object (as SOAP
// decoding produces for one-element collections) is wrapped in a slice.
func list(item Item, key string) []Item {
	switch t := item[key].(type) {
	case []any:
		out := make([]Item, 0, len(t))
		for _, v := range t {
			if m, ok := v.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []Item{t}
	}
	return nil
}

// itemID best-effort identifies an item for error context.
func itemID(item Item) string {
	for _, key := range []string{"id", "ID", "ObjectID", "customerKey", "CustomerKey", "key", "name", "Name"} {
		if v := str(item, key); v != "" {
			return v
		}
	}
	return "unknown"
}
