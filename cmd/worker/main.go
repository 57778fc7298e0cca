package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-importer/internal/app"
	"github.com/dvloznov/ledger-importer/internal/config"
	"github.com/dvloznov/ledger-importer/internal/jobs"
	"github.com/dvloznov/ledger-importer/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-importer/internal/ledger"
	"github.com/dvloznov/ledger-importer/internal/logger"
)

// The worker reads one workbook URI per line from stdin and imports each
// as a queued job. It exits once stdin is closed and every job finished,
// or on SIGINT/SIGTERM.
func main() {
	cfgPath := flag.String("config", "", "Config file (defaults to the user config dir)")
	preset := flag.String("preset", "", "Transform preset for every job")
	flag.Parse()

	log := logger.New()
	cfg, err := config.NewFileProvider(*cfgPath).Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if leveled, err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err == nil {
		log = leveled
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise")
	}
	defer a.Close()

	var pending sync.WaitGroup
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Config{
		BufferSize:  100,
		Workers:     cfg.Worker.Count,
		MaxRetries:  cfg.Worker.MaxRetries,
		ShouldRetry: app.Retryable,
		OnComplete: func(job jobs.ImportJob) {
			ev := log.Info()
			if job.Status == jobs.JobStatusFailed {
				ev = log.Error().Str("error", job.Error)
			}
			ev.Str("job_id", job.JobID).
				Str("source", job.SourceURI).
				Str("status", string(job.Status)).
				Int("retries", job.RetryCount).
				Msg("Job finished")
			pending.Done()
		},
	}, jobStore)

	handler := a.JobHandler(log, func(job *jobs.ImportJob, s *ledger.Summary) {
		log.Info().
			Str("job_id", job.JobID).
			Str("output", s.Output).
			Int("rows", s.Rows).
			Int("output_rows", s.OutputRows).
			Msg("Import written")
	})

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	log.Info().Int("workers", cfg.Worker.Count).Msg("Worker started, reading workbook URIs from stdin")

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			uri := strings.TrimSpace(scanner.Text())
			if uri == "" || strings.HasPrefix(uri, "#") {
				continue
			}
			job := &jobs.ImportJob{SourceURI: uri, Preset: *preset}
			if cfg.Worker.MaxRetries == 0 {
				job.MaxRetries = -1
			}
			pending.Add(1)
			if err := jobQueue.PublishImport(ctx, job); err != nil {
				pending.Done()
				log.Error().Err(err).Str("source", uri).Msg("Failed to queue job")
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error().Err(err).Msg("Failed to read stdin")
		}
	}()

	allDone := make(chan struct{})
	go func() {
		<-inputDone
		pending.Wait()
		close(allDone)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("Shutting down worker...")
	case <-allDone:
		log.Info().Msg("All jobs finished")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	// Jobs still queued or waiting for a retry will not run any more.
	abandoned, err := abandonUnfinished(context.Background(), jobStore, "worker stopped before the job finished")
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark unfinished jobs")
	}

	failed, err := jobStore.ListJobs(context.Background(), jobs.JobFilter{Status: jobs.JobStatusFailed})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list failed jobs")
	}
	for _, job := range failed {
		log.Warn().
			Str("job_id", job.JobID).
			Str("source", job.SourceURI).
			Int("retries", job.RetryCount).
			Str("error", job.Error).
			Msg("Job failed")
	}

	counts := jobStore.Counts()
	log.Info().
		Int("completed", counts[jobs.JobStatusCompleted]).
		Int("failed", counts[jobs.JobStatusFailed]).
		Int("abandoned", abandoned).
		Msg("Worker exited")
	if counts[jobs.JobStatusFailed] > 0 {
		_ = a.Close()
		os.Exit(1)
	}
}

// abandonUnfinished marks every job that has not reached a terminal status
// as failed with reason and returns how many there were.
func abandonUnfinished(ctx context.Context, store jobs.JobStore, reason string) (int, error) {
	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range all {
		if job.Status.Terminal() {
			continue
		}
		if err := store.UpdateJobStatus(ctx, job.JobID, jobs.JobStatusFailed, reason); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
