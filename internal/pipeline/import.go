// Package pipeline runs one ledger import: read the source workbook,
// transform it, and write the output workbook, recording the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	infra "github.com/dvloznov/ledger-importer/internal/infra/bigquery"
	"github.com/dvloznov/ledger-importer/internal/ledger"
	"github.com/dvloznov/ledger-importer/internal/logger"
	"github.com/dvloznov/ledger-importer/internal/objectstore"
)

// Request names one import. An empty OutputURI is derived from SourceURI
// and the preset suffix. An empty Sheet selects the active sheet. An empty
// RunID is generated by the recorder.
type Request struct {
	SourceURI string
	OutputURI string
	Sheet     string
	RunID     string
}

// Deps are the collaborators of RunImport.
type Deps struct {
	Store    objectstore.Store
	Recorder infra.RunRecorder
	Engine   *ledger.Engine
	Preset   ledger.Preset
}

// ErrSameOutput is returned when the output would replace the source.
var ErrSameOutput = errors.New("output path equals the source path")

// RunImport executes a single import. The output workbook is encoded in
// memory before the one write, so a failed run writes nothing.
func RunImport(ctx context.Context, deps Deps, req Request) (*ledger.Summary, error) {
	if req.SourceURI == "" {
		return nil, errors.New("source URI is required")
	}
	if deps.Store == nil || deps.Engine == nil {
		return nil, errors.New("store and engine are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = infra.NopRecorder{}
	}
	if req.OutputURI == "" {
		req.OutputURI = objectstore.DeriveOutputURI(req.SourceURI, deps.Preset.Suffix)
	}
	if objectstore.SameLocation(req.OutputURI, req.SourceURI) {
		return nil, fmt.Errorf("%w: %s", ErrSameOutput, req.SourceURI)
	}

	opts := deps.Engine.Options()
	runID, err := deps.Recorder.StartRun(ctx, &infra.RunRow{
		RunID:        req.RunID,
		SourceURI:    req.SourceURI,
		OutputURI:    req.OutputURI,
		Preset:       deps.Preset.Name,
		OutputMode:   string(opts.OutputMode),
		WindowMonths: int64(opts.WindowMonths),
		StartedTS:    time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("starting import run: %w", err)
	}

	log := logger.WithRun(logger.FromContext(ctx), runID)
	ctx = logger.WithContext(ctx, log)
	log.Info().
		Str("source", req.SourceURI).
		Str("output", req.OutputURI).
		Str("preset", deps.Preset.Name).
		Msg("import started")

	state := &PipelineState{Request: req, RunID: runID}
	if err := NewImportPipeline(deps.Store, deps.Engine).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("import failed")
		deps.Recorder.MarkRunFailed(ctx, runID, err)
		return nil, err
	}

	summary := state.Result.Summary
	summary.Output = req.OutputURI
	if err := deps.Recorder.MarkRunSucceeded(ctx, runID, summary); err != nil {
		// The output is already written; the audit row is best effort.
		log.Warn().Err(err).Msg("failed to mark import run succeeded")
	}
	log.Info().Int("output_rows", summary.OutputRows).Msg("import finished")
	return &summary, nil
}
