package runner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/marketingops/sfmc-inventory/pkg/events"
	"github.com/marketingops/sfmc-inventory/pkg/extract"
	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// DefaultMaxParallel bounds how many extractors run at once.
const DefaultMaxParallel = 4

// Runner executes a set of extractors against one account and aggregates
// their results.
type Runner struct {
	env         *extract.Env
	opts        extract.Options
	maxParallel int
}

// New creates a Runner. maxParallel values below 1 fall back to the default.
func New(env *extract.Env, opts extract.Options, maxParallel int) *Runner {
	if maxParallel < 1 {
		maxParallel = DefaultMaxParallel
	}
	return &Runner{env: env, opts: opts, maxParallel: maxParallel}
}

// RunResult aggregates every extractor's output for one run.
type RunResult struct {
	RunID       string
	Status      types.RunStatus
	StartedAt   time.Time
	CompletedAt time.Time

	// Results is keyed by extractor name and holds only extractors that ran.
	Results map[string]*extract.Result
}

// Objects returns every extracted object across all extractors, grouped by
// type name for output.
func (r *RunResult) Objects() map[types.ObjectType][]types.Object {
	out := make(map[types.ObjectType][]types.Object)
	for _, res := range r.Results {
		out[res.Type] = append(out[res.Type], res.Items...)
	}
	return out
}

// Edges returns every edge across all extractors.
func (r *RunResult) Edges() []types.Edge {
	var out []types.Edge
	for _, name := range r.resultNames() {
		out = append(out, r.Results[name].Edges...)
	}
	return out
}

// Errors returns every error across all extractors.
func (r *RunResult) Errors() []*types.ExtractError {
	var out []*types.ExtractError
	for _, name := range r.resultNames() {
		out = append(out, r.Results[name].Errors...)
	}
	return out
}

func (r *RunResult) resultNames() []string {
	names := make([]string, 0, len(r.Results))
	for name := range r.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statistics builds the per-extractor summary for statistics.json.
func (r *RunResult) Statistics() types.Statistics {
	stats := types.Statistics{ByExtractor: make(map[string]types.ExtractorStats)}
	for name, res := range r.Results {
		stats.TotalObjects += len(res.Items)
		stats.TotalErrors += len(res.Errors)
		stats.ByExtractor[name] = types.ExtractorStats{
			Objects:      len(res.Items),
			Edges:        len(res.Edges),
			Errors:       len(res.Errors),
			PagesFetched: res.PagesFetched,
			Duration:     res.Duration(),
		}
	}
	return stats
}

// Run executes the named extractors, at most maxParallel at a time. The run
// continues through extractor failures; cancellation stops dispatch and
// marks the run aborted with whatever completed.
func (r *Runner) Run(ctx context.Context, names []string) (*RunResult, error) {
	extractors, err := resolve(names)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Results:   make(map[string]*extract.Result),
	}
	logger := log.WithRunID(result.RunID)
	logger.Info().Strs("extractors", names).Int("parallel", r.maxParallel).Msg("starting extraction run")
	r.publish(&events.Event{Type: events.EventRunStarted, Metadata: map[string]string{"runId": result.RunID}})

	sem := semaphore.NewWeighted(int64(r.maxParallel))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, ex := range extractors {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(ex extract.Extractor) {
			defer wg.Done()
			defer sem.Release(1)

			r.publish(&events.Event{Type: events.EventExtractorStarted, Extractor: ex.Name()})
			res := extract.Run(ctx, r.env, ex, r.opts)

			mu.Lock()
			result.Results[ex.Name()] = res
			mu.Unlock()

			evType := events.EventExtractorCompleted
			if len(res.Items) == 0 && len(res.Errors) > 0 {
				evType = events.EventExtractorFailed
			}
			r.publish(&events.Event{Type: evType, Extractor: ex.Name(), Metadata: map[string]string{
				"objects": strconv.Itoa(len(res.Items)),
				"errors":  strconv.Itoa(len(res.Errors)),
			}})
		}(ex)
	}
	wg.Wait()

	result.CompletedAt = time.Now()
	result.Status = runStatus(ctx, extractors, result)

	evType := events.EventRunCompleted
	if result.Status == types.RunAborted {
		evType = events.EventRunAborted
	}
	r.publish(&events.Event{Type: evType, Metadata: map[string]string{"runId": result.RunID, "status": string(result.Status)}})
	logger.Info().
		Str("status", string(result.Status)).
		Dur("elapsed", result.CompletedAt.Sub(result.StartedAt)).
		Msg("extraction run finished")
	return result, nil
}

// RunSequential executes the named extractors one at a time in the order
// given. Used when API pressure must stay minimal.
func (r *Runner) RunSequential(ctx context.Context, names []string) (*RunResult, error) {
	sequential := *r
	sequential.maxParallel = 1
	return sequential.Run(ctx, names)
}

func (r *Runner) publish(ev *events.Event) {
	if r.env.Events != nil {
		r.env.Events.Publish(ev)
	}
}

// runStatus classifies the finished run. Aborted wins when the context died
// before every extractor ran; otherwise any error makes the run partial, and
// all-errors-no-objects makes it failed.
func runStatus(ctx context.Context, requested []extract.Extractor, result *RunResult) types.RunStatus {
	if ctx.Err() != nil && len(result.Results) < len(requested) {
		return types.RunAborted
	}

	totalObjects, totalErrors := 0, 0
	for _, res := range result.Results {
		totalObjects += len(res.Items)
		totalErrors += len(res.Errors)
	}

	switch {
	case totalErrors == 0:
		return types.RunSucceeded
	case totalObjects == 0:
		return types.RunFailed
	default:
		return types.RunPartial
	}
}

func resolve(names []string) ([]extract.Extractor, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no extractors selected")
	}
	out := make([]extract.Extractor, 0, len(names))
	for _, name := range names {
		ex, err := extract.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}
