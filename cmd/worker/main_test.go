package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/ledger-importer/internal/jobs"
	"github.com/dvloznov/ledger-importer/internal/jobs/inmemory"
)

func TestAbandonUnfinished(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	for id, status := range map[string]jobs.JobStatus{
		"done":     jobs.JobStatusCompleted,
		"broken":   jobs.JobStatusFailed,
		"queued":   jobs.JobStatusPending,
		"retrying": jobs.JobStatusRetrying,
	} {
		require.NoError(t, store.SaveJob(ctx, &jobs.ImportJob{JobID: id, SourceURI: id + ".xlsx", Status: status, Error: "earlier"}))
	}

	n, err := abandonUnfinished(ctx, store, "stopped")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	failed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 3)

	queued, err := store.GetJob(ctx, "queued")
	require.NoError(t, err)
	assert.Equal(t, "stopped", queued.Error)
	broken, _ := store.GetJob(ctx, "broken")
	assert.Equal(t, "earlier", broken.Error)
	done, _ := store.GetJob(ctx, "done")
	assert.Equal(t, jobs.JobStatusCompleted, done.Status)
}
