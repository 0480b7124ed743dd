package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/veloigp/internal/handlers/testutil"
	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/internal/services"
)

func createBackup(t *testing.T, env *testutil.Env, body map[string]any) models.BackupRecord {
	t.Helper()
	rec := env.Request(http.MethodPost, "/api/backups", body)
	require.Contains(t, []int{http.StatusCreated, http.StatusAccepted}, rec.Code, rec.Body.String())
	var record models.BackupRecord
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &record)
	return record
}

func TestBackupCreateAndFetch(t *testing.T) {
	env := testutil.NewEnv(t)

	record := createBackup(t, env, map[string]any{"type": "full", "description": "nightly", "wait": true})
	require.NotEmpty(t, record.ID)
	require.Equal(t, models.BackupFull, record.Type)
	require.Equal(t, models.BackupSuccess, record.Status)
	require.Equal(t, "nightly", record.Description)
	require.Positive(t, record.Size)
	require.NotNil(t, record.CompletedAt)

	rec := env.Request(http.MethodGet, "/api/backups/"+record.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.BackupRecord
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &fetched)
	require.Equal(t, record.ID, fetched.ID)
	require.Equal(t, models.BackupSuccess, fetched.Status)

	rec = env.Request(http.MethodDelete, "/api/backups/"+record.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(http.MethodGet, "/api/backups/"+record.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackupCreateAsyncCompletes(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Request(http.MethodPost, "/api/backups", map[string]any{"type": "incremental"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var record models.BackupRecord
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &record)
	require.Equal(t, models.BackupInProgress, record.Status)
	require.Equal(t, "incremental backup", record.Description)

	require.Eventually(t, func() bool {
		rec := env.Request(http.MethodGet, "/api/backups/"+record.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var current models.BackupRecord
		testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &current)
		return current.Status == models.BackupSuccess
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBackupSimulatedFailureIsRecorded(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithBackupFailureRate(1))

	record := createBackup(t, env, map[string]any{"type": "full", "wait": true})
	require.Equal(t, models.BackupFailed, record.Status)
	require.NotEmpty(t, record.Error)
}

func TestBackupCreateValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Request(http.MethodPost, "/api/backups", map[string]any{"type": "differential"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.Request(http.MethodPost, "/api/backups", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.Request(http.MethodGet, "/api/backups/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackupListCleanupAndStats(t *testing.T) {
	env := testutil.NewEnv(t)

	var ids []string
	for range 12 {
		record := createBackup(t, env, map[string]any{"type": "incremental", "wait": true})
		ids = append(ids, record.ID)
	}

	rec := env.Request(http.MethodGet, "/api/backups?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := testutil.DecodeResponse(t, rec)
	var page []models.BackupRecord
	testutil.DecodeInto(t, resp.Data, &page)
	require.Len(t, page, 5)
	require.Equal(t, 5, resp.Meta.Total)
	require.Equal(t, ids[len(ids)-1], page[0].ID, "newest first")

	rec = env.Request(http.MethodPost, "/api/backups/cleanup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleanup struct {
		Removed int64 `json:"removed"`
		Retain  int   `json:"retain"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &cleanup)
	require.EqualValues(t, 2, cleanup.Removed)
	require.Equal(t, 10, cleanup.Retain)

	rec = env.Request(http.MethodGet, "/api/backups/"+ids[0], nil)
	require.Equal(t, http.StatusNotFound, rec.Code, "oldest backup is pruned")

	rec = env.Request(http.MethodGet, "/api/backups/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats services.BackupStats
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &stats)
	require.EqualValues(t, 10, stats.Total)
	require.EqualValues(t, 10, stats.Success)
	require.Zero(t, stats.Failed)
	require.Positive(t, stats.TotalSize)
	require.NotNil(t, stats.LastSuccessAt)
}
