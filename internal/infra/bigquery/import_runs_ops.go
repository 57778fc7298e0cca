package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/ledger-importer/internal/ledger"
	"github.com/dvloznov/ledger-importer/internal/logger"
)

const (
	importRunsTable = "import_runs"
	maxErrorLen     = 2000
)

// StartImportRunWithClient inserts run with status=RUNNING using the provided
// BigQuery client. An empty run.RunID is filled with a new UUID.
func StartImportRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, run *RunRow) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.StartedTS.IsZero() {
		run.StartedTS = time.Now()
	}
	run.Status = StatusRunning

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			source_uri,
			output_uri,
			preset,
			output_mode,
			window_months,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@source_uri,
			@output_uri,
			@preset,
			@output_mode,
			@window_months,
			@started_ts,
			@status
		)
	`, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: run.RunID},
		{Name: "source_uri", Value: run.SourceURI},
		{Name: "output_uri", Value: run.OutputURI},
		{Name: "preset", Value: run.Preset},
		{Name: "output_mode", Value: run.OutputMode},
		{Name: "window_months", Value: run.WindowMonths},
		{Name: "started_ts", Value: run.StartedTS},
		{Name: "status", Value: run.Status},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartImportRun: %w", err)
	}
	return run.RunID, nil
}

// MarkImportRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures to record are logged, not returned.
func MarkImportRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkImportRunFailed: update failed")
	}
}

// MarkImportRunSucceededWithClient sets status=SUCCESS, finished_ts, the
// output URI and the run summary.
func MarkImportRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, summary ledger.Summary) error {
	summaryJSON, err := encodeSummary(summary)
	if err != nil {
		return fmt.Errorf("MarkImportRunSucceeded: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    output_uri = @output_uri,
		    rows_in = @rows_in,
		    rows_out = @rows_out,
		    summary = @summary,
		    error_message = ""
		WHERE run_id = @run_id
	`, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: StatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "output_uri", Value: summary.Output},
		{Name: "rows_in", Value: int64(summary.Rows)},
		{Name: "rows_out", Value: int64(summary.OutputRows)},
		{Name: "summary", Value: summaryJSON},
		{Name: "run_id", Value: runID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkImportRunSucceeded: %w", err)
	}
	return nil
}

// ListRecentImportRuns returns the latest runs, newest first.
func ListRecentImportRuns(ctx context.Context, projectID, datasetID string, limit int) ([]*RunRow, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListRecentImportRuns: bigquery client: %w", err)
	}
	defer client.Close()

	return ListRecentImportRunsWithClient(ctx, client, datasetID, limit)
}

// ListRecentImportRunsWithClient returns the latest runs using the provided client.
func ListRecentImportRunsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, limit int) ([]*RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := client.Query(fmt.Sprintf(`
		SELECT
		  run_id, source_uri, output_uri, preset, output_mode, window_months,
		  started_ts, finished_ts, status, error_message, rows_in, rows_out, summary
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, datasetID, importRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentImportRuns: query read: %w", err)
	}

	var rows []*RunRow
	for {
		var r RunRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentImportRuns: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}

func encodeSummary(s ledger.Summary) (bigquery.NullJSON, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return bigquery.NullJSON{}, fmt.Errorf("encode summary: %w", err)
	}
	return bigquery.NullJSON{JSONVal: string(b), Valid: true}, nil
}
