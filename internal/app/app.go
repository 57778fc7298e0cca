// Package app wires configuration, the alias dictionary, storage and run
// auditing into the import pipeline for the command line tools.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-importer/internal/classify"
	"github.com/dvloznov/ledger-importer/internal/config"
	infra "github.com/dvloznov/ledger-importer/internal/infra/bigquery"
	"github.com/dvloznov/ledger-importer/internal/jobs"
	"github.com/dvloznov/ledger-importer/internal/ledger"
	"github.com/dvloznov/ledger-importer/internal/logger"
	"github.com/dvloznov/ledger-importer/internal/objectstore"
	"github.com/dvloznov/ledger-importer/internal/pipeline"
)

// App holds the collaborators shared by every import of one process.
type App struct {
	Config    *config.Config
	Index     *classify.Index
	Conflicts []classify.Conflict
	Store     objectstore.Store
	Recorder  infra.RunRecorder

	repo     *infra.RunRepository
	builtins map[string]*classify.Index
}

// New builds an App from cfg. BigQuery is only contacted when a project is
// configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Store: objectstore.NewRouter(), Recorder: infra.NopRecorder{}}

	if cfg.BigQuery.Project != "" {
		repo, err := infra.NewRunRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, err
		}
		a.repo = repo
		a.Recorder = repo
	}

	rules, err := LoadRules(ctx, cfg, a.aliasSource())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Index, a.Conflicts = classify.NewIndex(rules)

	if src := cfg.Classification.DictionarySource; src == config.SourceBuiltin || src == "" {
		a.builtins = make(map[string]*classify.Index)
		for _, name := range classify.BuiltinNames() {
			builtin, _ := classify.BuiltinRules(name)
			a.builtins[name], _ = classify.NewIndex(builtin)
		}
	}

	log := logger.FromContext(ctx)
	for _, c := range a.Conflicts {
		log.Warn().Str("conflict", c.String()).Msg("alias defined for more than one code")
	}
	log.Debug().
		Str("source", cfg.Classification.DictionarySource).
		Int("aliases", a.Index.Len()).
		Msg("alias dictionary loaded")
	return a, nil
}

func (a *App) aliasSource() infra.AliasSource {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

// Close releases the BigQuery client, if any.
func (a *App) Close() error {
	if a.repo != nil {
		return a.repo.Close()
	}
	return nil
}

// LoadRules reads the alias dictionary from the configured source.
func LoadRules(ctx context.Context, cfg *config.Config, src infra.AliasSource) ([]classify.AliasRule, error) {
	switch cfg.Classification.DictionarySource {
	case config.SourceBuiltin, "":
		return classify.DefaultRules(), nil
	case config.SourceFile:
		return LoadRulesFile(cfg.Classification.DictionaryPath)
	case config.SourceBigQuery:
		if src == nil {
			return nil, fmt.Errorf("dictionary source %q needs bigquery.project", config.SourceBigQuery)
		}
		rules, err := src.ListAliasRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading aliases from bigquery: %w", err)
		}
		return rules, nil
	default:
		return nil, fmt.Errorf("unknown dictionary source %q", cfg.Classification.DictionarySource)
	}
}

// LoadRulesFile reads a TOML alias dictionary.
func LoadRulesFile(path string) ([]classify.AliasRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	rules, err := classify.LoadRulesTOML(f)
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", path, err)
	}
	return rules, nil
}

// Deps builds pipeline dependencies for presetName, or for the configured
// preset when empty.
func (a *App) Deps(presetName string) (pipeline.Deps, error) {
	opts, preset, err := a.Config.EngineOptions(presetName)
	if err != nil {
		return pipeline.Deps{}, err
	}
	var index *classify.Index
	if opts.EnableClassification {
		index = a.Index
		if builtin, ok := a.builtins[preset.Dictionary]; ok {
			index = builtin
		}
	}
	engine, err := ledger.NewEngine(opts, index)
	if err != nil {
		return pipeline.Deps{}, err
	}
	return pipeline.Deps{Store: a.Store, Recorder: a.Recorder, Engine: engine, Preset: preset}, nil
}

// Import runs a single import.
func (a *App) Import(ctx context.Context, presetName string, req pipeline.Request) (*ledger.Summary, error) {
	deps, err := a.Deps(presetName)
	if err != nil {
		return nil, err
	}
	return pipeline.RunImport(ctx, deps, req)
}

// Retryable reports whether a failed import may succeed on another
// attempt. Only storage failures qualify.
func Retryable(err error) bool {
	return ledger.IsIOError(err)
}

// JobHandler returns a handler that imports each job's workbook. Results
// are reported through onSummary when it is not nil.
func (a *App) JobHandler(log zerolog.Logger, onSummary func(job *jobs.ImportJob, s *ledger.Summary)) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ImportJob) error {
		job.RunID = uuid.NewString()
		jobLog := log.With().Str("job_id", job.JobID).Str("source", job.SourceURI).Logger()
		jobLog.Info().Int("attempt", job.RetryCount+1).Msg("processing import job")

		summary, err := a.Import(logger.WithContext(ctx, jobLog), job.Preset, pipeline.Request{
			SourceURI: job.SourceURI,
			OutputURI: job.OutputURI,
			Sheet:     job.Sheet,
			RunID:     job.RunID,
		})
		if err != nil {
			jobLog.Error().Err(err).Bool("retryable", Retryable(err)).Msg("import job failed")
			return err
		}
		job.OutputURI = summary.Output
		if onSummary != nil {
			onSummary(job, summary)
		}
		return nil
	}
}
