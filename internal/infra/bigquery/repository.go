package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/ledger-importer/internal/classify"
	"github.com/dvloznov/ledger-importer/internal/ledger"
)

// RunRecorder records the lifecycle of an import run.
type RunRecorder interface {
	// StartRun inserts run with status=RUNNING and returns its run_id.
	StartRun(ctx context.Context, run *RunRow) (string, error)

	// MarkRunFailed sets status=FAILED. Recording errors are only logged.
	MarkRunFailed(ctx context.Context, runID string, runErr error)

	// MarkRunSucceeded sets status=SUCCESS and stores the summary.
	MarkRunSucceeded(ctx context.Context, runID string, summary ledger.Summary) error
}

// AliasSource loads the account alias dictionary.
type AliasSource interface {
	ListAliasRules(ctx context.Context) ([]classify.AliasRule, error)
}

// RunRepository implements RunRecorder and AliasSource against BigQuery.
// It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type RunRepository struct {
	client  *bigquery.Client
	dataset string
}

// NewRunRepository creates a RunRepository for projectID and datasetID.
func NewRunRepository(ctx context.Context, projectID, datasetID string) (*RunRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRunRepository: creating client: %w", err)
	}
	return &RunRepository{client: client, dataset: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *RunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// StartRun delegates to StartImportRunWithClient with the shared client.
func (r *RunRepository) StartRun(ctx context.Context, run *RunRow) (string, error) {
	return StartImportRunWithClient(ctx, r.client, r.dataset, run)
}

// MarkRunFailed delegates to MarkImportRunFailedWithClient with the shared client.
func (r *RunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkImportRunFailedWithClient(ctx, r.client, r.dataset, runID, runErr)
}

// MarkRunSucceeded delegates to MarkImportRunSucceededWithClient with the shared client.
func (r *RunRepository) MarkRunSucceeded(ctx context.Context, runID string, summary ledger.Summary) error {
	return MarkImportRunSucceededWithClient(ctx, r.client, r.dataset, runID, summary)
}

// ListAliasRules loads the active aliases and converts them to rules.
func (r *RunRepository) ListAliasRules(ctx context.Context) ([]classify.AliasRule, error) {
	rows, err := ListAccountAliasesWithClient(ctx, r.client, r.dataset)
	if err != nil {
		return nil, err
	}
	return RulesFromAliases(rows), nil
}

// NopRecorder is a RunRecorder that records nothing. It is used when no
// BigQuery project is configured.
type NopRecorder struct{}

// StartRun returns run.RunID, generating one when empty.
func (NopRecorder) StartRun(_ context.Context, run *RunRow) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	return run.RunID, nil
}

// MarkRunFailed does nothing.
func (NopRecorder) MarkRunFailed(context.Context, string, error) {}

// MarkRunSucceeded does nothing.
func (NopRecorder) MarkRunSucceeded(context.Context, string, ledger.Summary) error { return nil }
