package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketingops/sfmc-inventory/pkg/auth"
	"github.com/marketingops/sfmc-inventory/pkg/cache"
	"github.com/marketingops/sfmc-inventory/pkg/config"
	"github.com/marketingops/sfmc-inventory/pkg/events"
	"github.com/marketingops/sfmc-inventory/pkg/extract"
	"github.com/marketingops/sfmc-inventory/pkg/graph"
	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/metrics"
	"github.com/marketingops/sfmc-inventory/pkg/ratelimit"
	"github.com/marketingops/sfmc-inventory/pkg/runner"
	"github.com/marketingops/sfmc-inventory/pkg/snapshot"
	"github.com/marketingops/sfmc-inventory/pkg/transport"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

var (
	flagConfig      string
	flagPreset      string
	flagExtractors  []string
	flagOutput      string
	flagPageSize    int
	flagSkipDetails bool
	flagSequential  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run extractors and write an inventory snapshot",
	Long: `Extract runs the selected extractors against the configured business unit
and writes a timestamped snapshot directory under the output dir.

Selection order: --extractors wins over --preset, which wins over the
config file. With no selection at all, every extractor runs.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	extractCmd.Flags().StringVarP(&flagPreset, "preset", "p", "", "named extractor preset")
	extractCmd.Flags().StringSliceVarP(&flagExtractors, "extractors", "e", nil, "comma-separated extractor names")
	extractCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "snapshot output directory")
	extractCmd.Flags().IntVar(&flagPageSize, "page-size", 0, "REST page size")
	extractCmd.Flags().BoolVar(&flagSkipDetails, "skip-details", false, "skip per-object detail requests")
	extractCmd.Flags().BoolVar(&flagSequential, "sequential", false, "run extractors one at a time")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.Format == "json",
	})

	names, err := selectExtractors(cfg)
	if err != nil {
		return err
	}

	opts := extract.DefaultOptions()
	opts.PageSize = cfg.Extract.PageSize
	opts.MaxPages = cfg.Extract.MaxPages
	opts.MaxConcurrent = cfg.Extract.MaxConcurrentRequests
	opts.IncludeDetails = !cfg.Extract.SkipDetails
	if flagPageSize > 0 {
		opts.PageSize = flagPageSize
	}
	if flagSkipDetails {
		opts.IncludeDetails = false
	}

	outputDir := cfg.Output.Dir
	if flagOutput != "" {
		outputDir = flagOutput
	}

	if cfg.HTTP.MetricsAddr != "" {
		stop, err := metrics.Serve(cfg.HTTP.MetricsAddr)
		if err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer stop()
	}

	tokens := auth.NewManager(auth.Config{
		TokenURL:     cfg.AuthBaseURL() + "/v2/token",
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		AccountID:    cfg.Auth.AccountID,
	}, nil)

	limiter := ratelimit.New()
	rest := transport.NewRestClient(cfg.RestBaseURL(), tokens, limiter,
		time.Duration(cfg.HTTP.TimeoutSeconds)*time.Second)
	soap := transport.NewSoapClient(cfg.SOAPEndpoint(), tokens, limiter,
		time.Duration(cfg.HTTP.SOAPTimeoutSeconds)*time.Second)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go renderEvents(broker.Subscribe())

	env := &extract.Env{
		Rest:   rest,
		Soap:   soap,
		Caches: cache.NewManager(rest, soap),
		Events: broker,
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := runner.New(env, opts, cfg.Extract.MaxConcurrentExtractors)
	run := func() (*runner.RunResult, error) { return r.Run(ctx, names) }
	if flagSequential {
		run = func() (*runner.RunResult, error) { return r.RunSequential(ctx, names) }
	}
	result, err := run()
	if err != nil {
		return err
	}

	// Assemble the relationship graph across all extractor results.
	b := graph.NewBuilder()
	for _, objects := range result.Objects() {
		b.AddObjects(objects)
	}
	b.AddEdges(result.Edges())
	b.Resolve()
	orphans := b.Orphans()

	stats := result.Statistics()
	stats.Graph = b.Stats()
	stats.Graph.Orphans = len(orphans)
	stats.RateLimits = anyMap(limiter.Snapshot())
	stats.Caches = anyMap(env.Caches.Stats())

	accountID := ""
	if cfg.Auth.AccountID != 0 {
		accountID = fmt.Sprintf("%d", cfg.Auth.AccountID)
	}
	snap := &snapshot.Snapshot{
		Metadata: types.Metadata{
			ToolVersion:        Version,
			RunID:              result.RunID,
			Subdomain:          cfg.Auth.Subdomain,
			AccountID:          accountID,
			Started:            result.StartedAt,
			Completed:          result.CompletedAt,
			SelectedExtractors: names,
			Status:             result.Status,
		},
		Statistics: stats,
		Objects:    snapshotObjects(result),
		Edges:      b.Edges(),
		Orphans:    orphans,
		Errors:     result.Errors(),
	}
	dir, err := snapshot.NewWriter(outputDir, broker).Write(snap)
	if err != nil {
		return err
	}

	fmt.Printf("\nRun %s finished: %s\n", result.RunID, result.Status)
	fmt.Printf("  Objects: %d  Edges: %d  Orphans: %d  Errors: %d\n",
		stats.TotalObjects, stats.Graph.TotalEdges, len(orphans), stats.TotalErrors)
	fmt.Printf("  Snapshot: %s\n", dir)

	if result.Status == types.RunFailed {
		return fmt.Errorf("extraction failed: no objects extracted")
	}
	return nil
}

// selectExtractors resolves the extractor list from flags and config.
func selectExtractors(cfg *config.Config) ([]string, error) {
	if len(flagExtractors) > 0 {
		return flagExtractors, nil
	}
	presetName := flagPreset
	if presetName == "" {
		presetName = cfg.Extract.Preset
	}
	if presetName != "" {
		p, err := runner.LookupPreset(presetName)
		if err != nil {
			return nil, err
		}
		return p.Extractors, nil
	}
	if len(cfg.Extract.Extractors) > 0 {
		return cfg.Extract.Extractors, nil
	}
	return extract.Names(), nil
}

// renderEvents prints lifecycle and progress events to stderr while the run
// is in flight.
func renderEvents(sub events.Subscriber) {
	for ev := range sub {
		switch ev.Type {
		case events.EventExtractorStarted:
			fmt.Fprintf(os.Stderr, "[%s] started\n", ev.Extractor)
		case events.EventExtractorProgress:
			if ev.Total > 0 {
				fmt.Fprintf(os.Stderr, "[%s] %s (%d/%d)\n", ev.Extractor, ev.Message, ev.Done, ev.Total)
			} else {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Extractor, ev.Message)
			}
		case events.EventExtractorCompleted:
			fmt.Fprintf(os.Stderr, "[%s] done (%s objects, %s errors)\n",
				ev.Extractor, ev.Metadata["objects"], ev.Metadata["errors"])
		case events.EventExtractorFailed:
			fmt.Fprintf(os.Stderr, "[%s] FAILED (%s errors)\n", ev.Extractor, ev.Metadata["errors"])
		}
	}
}

func snapshotObjects(result *runner.RunResult) map[string][]types.Object {
	out := make(map[string][]types.Object, len(result.Results))
	for name, res := range result.Results {
		out[name] = res.Items
	}
	return out
}

func anyMap[V any](in map[string]V) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
