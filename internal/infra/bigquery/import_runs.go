// Package bigquery records import runs in BigQuery and serves the account
// alias dictionary from a BigQuery table.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Run statuses.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// RunRow is one row of the import_runs table.
type RunRow struct {
	RunID     string `bigquery:"run_id"`     // REQUIRED
	SourceURI string `bigquery:"source_uri"` // REQUIRED
	OutputURI string `bigquery:"output_uri"` // NULLABLE

	Preset       string `bigquery:"preset"`        // NULLABLE
	OutputMode   string `bigquery:"output_mode"`   // NULLABLE
	WindowMonths int64  `bigquery:"window_months"` // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // NULLABLE
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	RowsIn  bigquery.NullInt64 `bigquery:"rows_in"`  // NULLABLE
	RowsOut bigquery.NullInt64 `bigquery:"rows_out"` // NULLABLE

	Summary bigquery.NullJSON `bigquery:"summary"` // NULLABLE
}
