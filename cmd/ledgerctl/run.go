package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-importer/internal/app"
	"github.com/dvloznov/ledger-importer/internal/jobs"
	"github.com/dvloznov/ledger-importer/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-importer/internal/ledger"
	"github.com/dvloznov/ledger-importer/internal/logger"
	"github.com/dvloznov/ledger-importer/internal/pipeline"
)

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runImport(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	in := fs.String("in", "", "Input workbook (defaults to the configured default input)")
	out := fs.String("out", "", "Output workbook (defaults to the input name plus the preset suffix)")
	preset := fs.String("preset", "", "Transform preset (see 'ledgerctl presets')")
	window := fs.Int("window", -1, "Retention window in months (overrides the config)")
	sheetName := fs.String("sheet", "", "Sheet to read (defaults to the active sheet)")
	cfgPath := fs.String("config", "", "Config file (defaults to the user config dir)")
	fs.Parse(args)

	cfg, log := loadConfig(log, *cfgPath)
	if *window >= 0 {
		cfg.Pipeline.WindowMonths = *window
	}
	source := *in
	if source == "" {
		source = cfg.DefaultInput
	}
	if source == "" {
		log.Fatal().Msg("Error: -in is required (or set a default with 'ledgerctl config set-default')")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 10*time.Minute)
	defer cancelTimeout()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	summary, err := a.Import(ctx, *preset, pipeline.Request{SourceURI: source, OutputURI: *out, Sheet: *sheetName})
	if err != nil {
		if ledger.IsConfigurationError(err) {
			log.Fatal().Err(err).Msg("Workbook does not have the expected columns")
		}
		log.Fatal().Err(err).Msg("Import failed")
	}

	printSummary(os.Stdout, source, summary)
}

func runBatch(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	var inputs stringList
	fs.Var(&inputs, "in", "Input workbook (repeatable)")
	preset := fs.String("preset", "", "Transform preset for every input")
	window := fs.Int("window", -1, "Retention window in months (overrides the config)")
	workers := fs.Int("workers", 0, "Concurrent imports (defaults to worker.count)")
	cfgPath := fs.String("config", "", "Config file (defaults to the user config dir)")
	fs.Parse(args)
	inputs = append(inputs, fs.Args()...)

	if len(inputs) == 0 {
		log.Fatal().Msg("Usage: ledgerctl batch -in A.xlsx -in B.xlsx ...")
	}

	cfg, log := loadConfig(log, *cfgPath)
	if *window >= 0 {
		cfg.Pipeline.WindowMonths = *window
	}
	if *workers > 0 {
		cfg.Worker.Count = *workers
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	results, err := processBatch(ctx, a, log, inputs, *preset)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch failed")
	}

	failed := 0
	for _, r := range results {
		if r.job.Status != jobs.JobStatusCompleted {
			failed++
			fmt.Printf("FAILED  %s: %s\n", r.job.SourceURI, r.job.Error)
			continue
		}
		printSummary(os.Stdout, r.job.SourceURI, r.summary)
	}
	fmt.Printf("%d of %d workbooks imported.\n", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}

type batchResult struct {
	job     jobs.ImportJob
	summary *ledger.Summary
}

// processBatch runs one job per input on the in-memory queue and waits for
// every job to finish. Results keep the input order.
func processBatch(ctx context.Context, a *app.App, log zerolog.Logger, inputs []string, preset string) ([]batchResult, error) {
	var (
		mu        sync.Mutex
		summaries = make(map[string]*ledger.Summary)
		finished  = make(map[string]jobs.ImportJob)
		wg        sync.WaitGroup
	)
	wg.Add(len(inputs))

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.Config{
		BufferSize:  len(inputs),
		Workers:     a.Config.Worker.Count,
		MaxRetries:  a.Config.Worker.MaxRetries,
		ShouldRetry: app.Retryable,
		OnComplete: func(job jobs.ImportJob) {
			mu.Lock()
			finished[job.JobID] = job
			mu.Unlock()
			wg.Done()
		},
	}, store)

	handler := a.JobHandler(log, func(job *jobs.ImportJob, s *ledger.Summary) {
		mu.Lock()
		summaries[job.JobID] = s
		mu.Unlock()
	})
	if err := queue.Start(ctx, handler); err != nil {
		return nil, err
	}

	ids := make([]string, len(inputs))
	for i, in := range inputs {
		job := &jobs.ImportJob{SourceURI: in, Preset: preset}
		if a.Config.Worker.MaxRetries == 0 {
			job.MaxRetries = -1
		}
		if err := queue.PublishImport(ctx, job); err != nil {
			return nil, fmt.Errorf("queueing %s: %w", in, err)
		}
		ids[i] = job.JobID
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during queue shutdown")
	}

	mu.Lock()
	defer mu.Unlock()
	results := make([]batchResult, len(ids))
	for i, id := range ids {
		results[i] = batchResult{job: finished[id], summary: summaries[id]}
	}
	return results, nil
}
